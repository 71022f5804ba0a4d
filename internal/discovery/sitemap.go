package discovery

import (
	"context"
	"encoding/xml"
	"strings"

	"go.uber.org/zap"
)

const (
	// maxSitemapDepth bounds recursion through nested sitemap indexes.
	maxSitemapDepth = 3
	// maxChildSitemaps caps how many child sitemaps of one index we follow.
	maxChildSitemaps = 50
)

type sitemapURLSet struct {
	URLs []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

type sitemapIndex struct {
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

// fromSitemap tries the conventional sitemap locations and walks any
// sitemap indexes it finds.
func (d *Discoverer) fromSitemap(ctx context.Context, base string) ([]string, error) {
	for _, path := range []string{"/sitemap.xml", "/sitemap_index.xml", "/sitemap-index.xml"} {
		urls, err := d.walkSitemap(ctx, base+path, 0)
		if err != nil {
			return nil, err
		}
		if len(urls) > 0 {
			return urls, nil
		}
	}
	return nil, nil
}

func (d *Discoverer) walkSitemap(ctx context.Context, loc string, depth int) ([]string, error) {
	if depth > maxSitemapDepth {
		zap.L().Warn("sitemap nesting too deep", zap.String("loc", loc))
		return nil, nil
	}

	body, err := d.fetch(ctx, loc)
	if err != nil || body == nil {
		return nil, err
	}

	// A sitemap document is either a <urlset> of pages or a <sitemapindex>
	// of child sitemaps.
	var set sitemapURLSet
	if err := xml.Unmarshal(body, &set); err == nil && len(set.URLs) > 0 {
		urls := make([]string, 0, len(set.URLs))
		for _, u := range set.URLs {
			if loc := strings.TrimSpace(u.Loc); loc != "" {
				urls = append(urls, loc)
			}
		}
		return urls, nil
	}

	var index sitemapIndex
	if err := xml.Unmarshal(body, &index); err != nil || len(index.Sitemaps) == 0 {
		return nil, nil
	}

	children := index.Sitemaps
	if len(children) > maxChildSitemaps {
		children = children[:maxChildSitemaps]
	}

	var urls []string
	for _, child := range children {
		childLoc := strings.TrimSpace(child.Loc)
		if childLoc == "" {
			continue
		}
		childURLs, err := d.walkSitemap(ctx, childLoc, depth+1)
		if err != nil {
			return nil, err
		}
		urls = append(urls, childURLs...)
	}
	return urls, nil
}
