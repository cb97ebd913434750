package parsers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"mediagrab/internal/medias"
)

const tikwmEndpoint = "https://www.tikwm.com/api/"

// Shapes: tiktok.com/@user/video/ID, vm.tiktok.com/CODE, vt.tiktok.com/CODE
var tiktokPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:https?://)?(?:www\.)?tiktok\.com/@[\w.-]+/(?:video|photo)/(\d+)`),
	regexp.MustCompile(`(?:https?://)?v[mt]\.tiktok\.com/([\w-]+)`),
}

// TikTokParser resolves TikTok links through the tikwm API. Photo-mode
// posts resolve to a MediaGroup, everything else to a single Video.
type TikTokParser struct {
	SizeCeiling int64
	Enabled     bool
}

func NewTikTokParser(sizeCeiling int64) *TikTokParser {
	return &TikTokParser{SizeCeiling: sizeCeiling, Enabled: true}
}

func (p *TikTokParser) Type() medias.ParserType { return medias.TypeTikTok }

func (p *TikTokParser) Supports() bool { return p.Enabled }

func (p *TikTokParser) Match(raw string) *Match {
	for _, re := range tiktokPatterns {
		if m := re.FindStringSubmatch(raw); m != nil {
			return &Match{ID: m[1], URL: raw}
		}
	}
	return nil
}

type tikwmResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		ID       string   `json:"id"`
		Title    string   `json:"title"`
		Play     string   `json:"play"` // no-watermark stream
		Wmplay   string   `json:"wmplay"`
		Hdplay   string   `json:"hdplay"`
		Size     int64    `json:"size"`
		WmSize   int64    `json:"wm_size"`
		HdSize   int64    `json:"hd_size"`
		Cover    string   `json:"cover"`
		Duration int      `json:"duration"`
		Images   []string `json:"images"`
		Author   struct {
			UniqueID string `json:"unique_id"`
		} `json:"author"`
	} `json:"data"`
}

func (p *TikTokParser) Resolve(ctx context.Context, client *http.Client, m *Match) ([]medias.Media, error) {
	reqURL := tikwmEndpoint + "?url=" + url.QueryEscape(m.URL) + "&hd=1"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tikwm request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tikwm returned status %d", resp.StatusCode)
	}

	var tw tikwmResponse
	if err := json.NewDecoder(resp.Body).Decode(&tw); err != nil {
		return nil, fmt.Errorf("tikwm response: %w", err)
	}

	// tikwm signals removed/private posts with a non-zero code.
	if tw.Code != 0 {
		slog.Info("TikTok post unavailable", "url", m.URL, "code", tw.Code, "msg", tw.Msg)
		return nil, nil
	}

	if len(tw.Data.Images) > 0 {
		group := medias.MediaGroup{
			Parser:   medias.TypeTikTok,
			Original: m.URL,
			Caption:  tw.Data.Title,
			Author:   tw.Data.Author.UniqueID,
		}
		for _, img := range tw.Data.Images {
			group.Items = append(group.Items, medias.GroupItem{
				URL:      absoluteTikwmURL(img),
				MimeType: "image/jpeg",
			})
		}
		if err := group.Validate(); err != nil {
			return nil, err
		}
		return []medias.Media{group}, nil
	}

	if tw.Data.Play == "" {
		slog.Info("TikTok post has no playable stream", "url", m.URL)
		return nil, nil
	}

	candidates := []CandidateStream{
		{URL: absoluteTikwmURL(tw.Data.Play), SizeBytes: tw.Data.Size, Rank: 1, MimeType: "video/mp4"},
	}
	if tw.Data.Hdplay != "" {
		candidates = append(candidates, CandidateStream{
			URL:       absoluteTikwmURL(tw.Data.Hdplay),
			SizeBytes: tw.Data.HdSize,
			Rank:      2,
			MimeType:  "video/mp4",
		})
	}

	sel, _ := SelectQuality(candidates, p.SizeCeiling)

	video := medias.Video{
		Parser:        medias.TypeTikTok,
		Original:      m.URL,
		URL:           sel.DeliveryURL,
		MaxQualityURL: sel.MaxQualityURL,
		Caption:       tw.Data.Title,
		Author:        tw.Data.Author.UniqueID,
		ThumbnailURL:  absoluteTikwmURL(tw.Data.Cover),
		MimeType:      sel.MimeType,
		Duration:      tw.Data.Duration,
	}
	if err := video.Validate(); err != nil {
		return nil, err
	}
	return []medias.Media{video}, nil
}

// tikwm sometimes returns relative paths.
func absoluteTikwmURL(u string) string {
	if u == "" || strings.HasPrefix(u, "http") {
		return u
	}
	return "https://www.tikwm.com" + u
}
