package medias

import (
	"fmt"
	"net/url"
	"strings"
)

// ParserType identifies which parser variant produced a media value.
type ParserType string

const (
	TypeYouTube   ParserType = "youtube"
	TypeTikTok    ParserType = "tiktok"
	TypeOpenGraph ParserType = "web"
)

// Media is a resolved piece of content ready for delivery.
// Video and MediaGroup are the only implementations.
type Media interface {
	Type() ParserType
	// OriginalURL returns the exact link the user supplied. It is the
	// cache and dedup key and is always a valid absolute URL.
	OriginalURL() string
	Validate() error
}

// Video is a single resolved video with a selected delivery stream.
type Video struct {
	Parser        ParserType `json:"type"`
	Original      string     `json:"original_url"`
	URL           string     `json:"url"`                       // stream selected for delivery
	MaxQualityURL string     `json:"max_quality_url,omitempty"` // best stream, may exceed the ceiling
	Caption       string     `json:"caption,omitempty"`
	Author        string     `json:"author,omitempty"`
	ThumbnailURL  string     `json:"thumbnail_url,omitempty"`
	MimeType      string     `json:"mime_type,omitempty"`
	Width         int        `json:"width,omitempty"`
	Height        int        `json:"height,omitempty"`
	Duration      int        `json:"duration,omitempty"` // seconds
	Language      string     `json:"language,omitempty"` // display annotation only
}

func (v Video) Type() ParserType    { return v.Parser }
func (v Video) OriginalURL() string { return v.Original }

func (v Video) Validate() error {
	if err := validateAbsoluteURL(v.Original); err != nil {
		return fmt.Errorf("original_url: %w", err)
	}
	if v.URL == "" {
		return fmt.Errorf("video %s has no delivery url", v.Original)
	}
	return nil
}

// Degraded reports whether the delivery stream is smaller than the best
// available one. An empty or equal MaxQualityURL means no larger
// alternative existed.
func (v Video) Degraded() bool {
	return v.MaxQualityURL != "" && v.MaxQualityURL != v.URL
}

// GroupItem is one entry of a MediaGroup.
type GroupItem struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type,omitempty"`
}

// MediaGroup is an ordered set of media sharing one caption, e.g. a
// TikTok photo-mode post.
type MediaGroup struct {
	Parser   ParserType  `json:"type"`
	Original string      `json:"original_url"`
	Caption  string      `json:"caption,omitempty"`
	Author   string      `json:"author,omitempty"`
	Items    []GroupItem `json:"items"`
}

func (g MediaGroup) Type() ParserType    { return g.Parser }
func (g MediaGroup) OriginalURL() string { return g.Original }

func (g MediaGroup) Validate() error {
	if err := validateAbsoluteURL(g.Original); err != nil {
		return fmt.Errorf("original_url: %w", err)
	}
	if len(g.Items) == 0 {
		return fmt.Errorf("media group %s is empty", g.Original)
	}
	for i, item := range g.Items {
		if item.URL == "" {
			return fmt.Errorf("media group %s item %d has no url", g.Original, i)
		}
	}
	return nil
}

func validateAbsoluteURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("empty URL")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("URL %q is not absolute", raw)
	}
	return nil
}
