package extract

import (
	"io"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// FromHTML parses an HTML document and extracts the article text. Headings
// come out as markdown-style "# " lines and list items as "- " bullets so
// the structural detectors see the same shape a markdown source would have.
func FromHTML(r io.Reader) (*Extraction, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, eris.Wrap(err, "extract: parse html")
	}

	ex := &Extraction{
		Title:         findTitle(doc),
		PublishedDate: findPublishedDate(doc),
	}

	var blocks []string
	collectBlocks(doc, &blocks)
	ex.Text = strings.Join(blocks, "\n\n")
	ex.WordCount = countWords(ex.Text)
	return ex, nil
}

// findTitle prefers og:title over <title>: the meta tag carries the bare
// article title while <title> usually drags a " | Site" suffix along.
func findTitle(n *html.Node) string {
	var meta, title string
	collectTitles(n, &meta, &title)
	if meta != "" {
		return meta
	}
	return title
}

func collectTitles(n *html.Node, meta, title *string) {
	if n.Type == html.ElementNode {
		if *meta == "" && n.DataAtom == atom.Meta && attrVal(n, "property") == "og:title" {
			*meta = strings.TrimSpace(attrVal(n, "content"))
		}
		if *title == "" && n.DataAtom == atom.Title && n.FirstChild != nil {
			*title = strings.TrimSpace(n.FirstChild.Data)
		}
	}
	for c := n.FirstChild; c != nil && *meta == ""; c = c.NextSibling {
		collectTitles(c, meta, title)
	}
}

// findPublishedDate looks for article:published_time meta tags, then any
// <time datetime=...> element.
func findPublishedDate(n *html.Node) *time.Time {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.Meta:
			prop := attrVal(n, "property")
			name := attrVal(n, "name")
			if prop == "article:published_time" || name == "article:published_time" || name == "date" {
				if t := parseDate(attrVal(n, "content")); t != nil {
					return t
				}
			}
		case atom.Time:
			if t := parseDate(attrVal(n, "datetime")); t != nil {
				return t
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findPublishedDate(c); t != nil {
			return t
		}
	}
	return nil
}

func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func collectBlocks(n *html.Node, blocks *[]string) {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Noscript, atom.Nav,
			atom.Header, atom.Footer, atom.Aside, atom.Form, atom.Iframe:
			return
		case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
			if text := collapseText(n); text != "" {
				level := int(n.Data[1] - '0')
				*blocks = append(*blocks, strings.Repeat("#", level)+" "+text)
			}
			return
		case atom.Ul, atom.Ol:
			var items []string
			collectListItems(n, &items)
			if len(items) > 0 {
				*blocks = append(*blocks, strings.Join(items, "\n"))
			}
			return
		case atom.P, atom.Blockquote, atom.Pre, atom.Table, atom.Figcaption:
			if text := collapseText(n); text != "" {
				*blocks = append(*blocks, text)
			}
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectBlocks(c, blocks)
	}
}

func collectListItems(n *html.Node, items *[]string) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Li {
			if text := collapseText(c); text != "" {
				*items = append(*items, "- "+text)
			}
			continue
		}
		collectListItems(c, items)
	}
}

// collapseText flattens the node's text content to single-spaced text.
func collapseText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
			return
		}
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript:
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
