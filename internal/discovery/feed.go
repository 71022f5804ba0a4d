package discovery

import (
	"context"
	"encoding/xml"
	"strings"
)

// feedPaths are the conventional RSS/Atom feed locations, in trial order.
var feedPaths = []string{
	"/feed",
	"/feed/",
	"/rss",
	"/rss.xml",
	"/feed.xml",
	"/atom.xml",
	"/index.xml",
}

type rssFeed struct {
	Channel struct {
		Items []struct {
			Link string `xml:"link"`
		} `xml:"item"`
	} `xml:"channel"`
}

type atomFeed struct {
	Entries []struct {
		Links []struct {
			Rel  string `xml:"rel,attr"`
			Href string `xml:"href,attr"`
		} `xml:"link"`
	} `xml:"entry"`
}

// fromFeeds tries the conventional feed locations and returns the article
// links of the first one that parses.
func (d *Discoverer) fromFeeds(ctx context.Context, base string) ([]string, error) {
	for _, path := range feedPaths {
		body, err := d.fetch(ctx, base+path)
		if err != nil {
			return nil, err
		}
		if body == nil {
			continue
		}
		if urls := parseFeed(body); len(urls) > 0 {
			return urls, nil
		}
	}
	return nil, nil
}

func parseFeed(body []byte) []string {
	var rss rssFeed
	if err := xml.Unmarshal(body, &rss); err == nil && len(rss.Channel.Items) > 0 {
		urls := make([]string, 0, len(rss.Channel.Items))
		for _, item := range rss.Channel.Items {
			if link := cleanFeedLink(item.Link); link != "" {
				urls = append(urls, link)
			}
		}
		return urls
	}

	var atom atomFeed
	if err := xml.Unmarshal(body, &atom); err != nil {
		return nil
	}
	urls := make([]string, 0, len(atom.Entries))
	for _, entry := range atom.Entries {
		// Prefer the alternate link; fall back to the first.
		href := ""
		for _, l := range entry.Links {
			if l.Rel == "alternate" || (l.Rel == "" && href == "") {
				href = l.Href
			}
		}
		if href == "" && len(entry.Links) > 0 {
			href = entry.Links[0].Href
		}
		if link := cleanFeedLink(href); link != "" {
			urls = append(urls, link)
		}
	}
	return urls
}

// cleanFeedLink drops links that point at feeds rather than articles.
func cleanFeedLink(link string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}
	for _, ext := range []string{".xml", ".rss", ".atom"} {
		if strings.HasSuffix(link, ext) {
			return ""
		}
	}
	return link
}
