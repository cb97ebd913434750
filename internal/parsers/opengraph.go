package parsers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"mediagrab/internal/medias"
)

// maxHTMLBytes caps how much of a page is read while looking for
// OpenGraph tags.
const maxHTMLBytes = 10 * 1024 * 1024

// OpenGraphParser is the lowest-priority catch-all: any HTTP(S) page
// that advertises an og:video tag resolves to a single Video. Pages
// without one are a normal empty result. Register it last.
type OpenGraphParser struct {
	Enabled bool
}

func NewOpenGraphParser() *OpenGraphParser {
	return &OpenGraphParser{Enabled: true}
}

func (p *OpenGraphParser) Type() medias.ParserType { return medias.TypeOpenGraph }

func (p *OpenGraphParser) Supports() bool { return p.Enabled }

func (p *OpenGraphParser) Match(raw string) *Match {
	u, err := url.Parse(raw)
	if err != nil {
		return nil
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Host == "" {
		return nil
	}
	return &Match{ID: u.Host, URL: raw}
}

type openGraphData struct {
	Title       string
	Description string
	SiteName    string
	Image       string
	Locale      string
	VideoURL    string
	VideoType   string
	VideoWidth  int
	VideoHeight int
}

func (p *OpenGraphParser) Resolve(ctx context.Context, client *http.Client, m *Match) ([]medias.Media, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.URL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("opengraph fetch: %w", err)
	}
	defer resp.Body.Close()

	// 404/410 style answers mean the page is gone, not that we failed.
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("opengraph fetch returned status %d", resp.StatusCode)
	}

	og, err := parseOpenGraph(io.LimitReader(resp.Body, maxHTMLBytes))
	if err != nil {
		return nil, fmt.Errorf("opengraph parse: %w", err)
	}

	if og.VideoURL == "" {
		slog.Debug("Page has no og:video tag", "url", m.URL)
		return nil, nil
	}

	mime := og.VideoType
	if mime == "" {
		mime = "video/mp4"
	}

	video := medias.Video{
		Parser:       medias.TypeOpenGraph,
		Original:     m.URL,
		URL:          og.VideoURL,
		Caption:      og.Title,
		Author:       og.SiteName,
		ThumbnailURL: og.Image,
		Language:     og.Locale,
		MimeType:     mime,
		Width:        og.VideoWidth,
		Height:       og.VideoHeight,
	}
	if err := video.Validate(); err != nil {
		return nil, err
	}
	return []medias.Media{video}, nil
}

func parseOpenGraph(r io.Reader) (*openGraphData, error) {
	og := &openGraphData{}
	doc, err := html.Parse(r)
	if err != nil {
		// Best effort: og stays empty and the caller treats the page
		// as having no video.
		return og, nil
	}

	var pageTitle string

	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "meta":
				property := getAttr(n, "property")
				content := getAttr(n, "content")

				switch property {
				case "og:title":
					setIfEmpty(&og.Title, content)
				case "og:description":
					setIfEmpty(&og.Description, content)
				case "og:site_name":
					setIfEmpty(&og.SiteName, content)
				case "og:image", "og:image:url":
					setIfEmpty(&og.Image, content)
				case "og:locale":
					setIfEmpty(&og.Locale, content)
				case "og:video", "og:video:url", "og:video:secure_url":
					setIfEmpty(&og.VideoURL, content)
				case "og:video:type":
					setIfEmpty(&og.VideoType, content)
				case "og:video:width":
					if og.VideoWidth == 0 {
						og.VideoWidth, _ = strconv.Atoi(content)
					}
				case "og:video:height":
					if og.VideoHeight == 0 {
						og.VideoHeight, _ = strconv.Atoi(content)
					}
				}
			case "title":
				if pageTitle == "" && n.FirstChild != nil {
					pageTitle = n.FirstChild.Data
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)

	if og.Title == "" {
		og.Title = pageTitle
	}
	return og, nil
}

func setIfEmpty(dst *string, val string) {
	if *dst == "" {
		*dst = val
	}
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
