package livefetch

import (
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Page is the readable part of a fetched HTML document.
type Page struct {
	URL         string
	Title       string
	Description string
	Content     string
}

// HasSufficientContent reports whether description and body together are
// long enough to replace a search snippet.
func (p *Page) HasSufficientContent() bool {
	return len(strings.TrimSpace(p.Description))+len(strings.TrimSpace(p.Content)) >= minContentLength
}

const (
	minContentLength = 100
	maxContentLength = 20000
)

// ParseResults reads a DuckDuckGo HTML results page.
func ParseResults(r io.Reader, limit int) ([]Result, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, limit)
	seen := make(map[string]bool)
	doc.Find(".result").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if limit > 0 && len(results) >= limit {
			return false
		}
		if s.HasClass("result--ad") {
			return true
		}

		link := s.Find(".result__a").First()
		href, ok := link.Attr("href")
		if !ok {
			return true
		}
		target := resolveResultURL(href)
		if target == "" || !isValidURL(target) || seen[target] {
			return true
		}
		seen[target] = true

		results = append(results, Result{
			Title:   collapse(link.Text()),
			URL:     target,
			Content: collapse(s.Find(".result__snippet").First().Text()),
		})
		return true
	})

	return results, nil
}

// resolveResultURL unwraps DuckDuckGo redirect links (//duckduckgo.com/l/?uddg=...).
func resolveResultURL(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if strings.HasSuffix(u.Host, "duckduckgo.com") && strings.HasPrefix(u.Path, "/l/") {
		if target := u.Query().Get("uddg"); target != "" {
			return NormalizeURLString(target)
		}
		return ""
	}
	return NormalizeURLString(u.String())
}

// ParsePage extracts title, description and main text from an HTML page.
func ParsePage(r io.Reader, baseURL string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	return &Page{
		URL:         baseURL,
		Title:       strings.TrimSpace(doc.Find("title").First().Text()),
		Description: extractDescription(doc),
		Content:     extractContent(doc),
	}, nil
}

var descriptionMeta = []string{
	`meta[name="description"]`,
	`meta[property="og:description"]`,
	`meta[name="twitter:description"]`,
}

func extractDescription(doc *goquery.Document) string {
	for _, sel := range descriptionMeta {
		if v := strings.TrimSpace(doc.Find(sel).AttrOr("content", "")); v != "" {
			return v
		}
	}
	return ""
}

const boilerplate = "script, style, noscript, template, iframe, svg, nav, header, footer, aside, form, button"

// contentRegions are tried in order. The first region with enough text
// wins; otherwise the longest one found is used.
var contentRegions = []string{
	"article",
	"main",
	`[role="main"]`,
	"#content, #main-content, #article",
	".entry-content, .post-content, .article-content, .article-body",
	".content, .main-content",
}

func extractContent(doc *goquery.Document) string {
	body := doc.Clone().Find("body")
	body.Find(boilerplate).Remove()

	best := ""
	consider := func(text string) bool {
		text = collapse(text)
		if len(text) > len(best) {
			best = text
		}
		return len(best) >= minContentLength
	}

	done := false
	for _, sel := range contentRegions {
		if consider(body.Find(sel).First().Text()) {
			done = true
			break
		}
	}
	if !done && !consider(paragraphText(body)) {
		consider(body.Text())
	}

	if len(best) > maxContentLength {
		best = best[:maxContentLength]
	}
	return best
}

// paragraphText joins paragraphs long enough to be prose.
func paragraphText(sel *goquery.Selection) string {
	var parts []string
	sel.Find("p").Each(func(_ int, p *goquery.Selection) {
		if text := collapse(p.Text()); len(text) > 20 {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, " ")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func normalizeURL(u *url.URL) string {
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	return u.String()
}

// NormalizeURLString drops fragments and trailing slashes. Query strings are
// kept because news sites route articles through them.
func NormalizeURLString(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return urlStr
	}
	return normalizeURL(u)
}

var binaryExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".svg": true, ".webp": true,
	".pdf": true, ".zip": true, ".gz": true, ".tar": true, ".exe": true, ".dmg": true,
	".mp3": true, ".mp4": true, ".mov": true, ".avi": true, ".wav": true,
}

// isValidURL accepts http(s) links that do not point at a binary file.
func isValidURL(urlStr string) bool {
	u, err := url.Parse(urlStr)
	if err != nil || u.Host == "" {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return !binaryExtensions[strings.ToLower(path.Ext(u.Path))]
}

func ExtractDomain(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return u.Host
}
