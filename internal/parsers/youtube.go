package parsers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"

	"mediagrab/internal/medias"
)

const playerEndpoint = "https://www.youtube.com/youtubei/v1/player"

// Shapes: youtube.com/watch?v=ID, youtu.be/ID, youtube.com/shorts/ID
var youtubePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:https?://)?(?:(?:www\.)?youtube\.com/watch\?v=|youtu\.be/)([\w-]+)`),
	regexp.MustCompile(`(?:https?://)?(?:www\.)?youtube\.com/shorts/([\w-]+)`),
}

// YouTubeParser resolves YouTube links through the public player API.
type YouTubeParser struct {
	SizeCeiling int64
	Enabled     bool
}

func NewYouTubeParser(sizeCeiling int64) *YouTubeParser {
	return &YouTubeParser{SizeCeiling: sizeCeiling, Enabled: true}
}

func (p *YouTubeParser) Type() medias.ParserType { return medias.TypeYouTube }

func (p *YouTubeParser) Supports() bool { return p.Enabled }

func (p *YouTubeParser) Match(url string) *Match {
	for _, re := range youtubePatterns {
		if m := re.FindStringSubmatch(url); m != nil {
			return &Match{ID: m[1], URL: url}
		}
	}
	return nil
}

// playerRequest is the innertube payload. The ANDROID client returns
// progressive formats with direct URLs.
type playerRequest struct {
	VideoID string        `json:"videoId"`
	Context playerContext `json:"context"`
}

type playerContext struct {
	Client playerClient `json:"client"`
}

type playerClient struct {
	ClientName    string `json:"clientName"`
	ClientVersion string `json:"clientVersion"`
	AndroidSDKVer int    `json:"androidSdkVersion"`
	HL            string `json:"hl"`
}

type playerResponse struct {
	PlayabilityStatus struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	StreamingData struct {
		Formats []ytFormat `json:"formats"`
	} `json:"streamingData"`
	VideoDetails struct {
		VideoID       string `json:"videoId"`
		Title         string `json:"title"`
		Author        string `json:"author"`
		LengthSeconds string `json:"lengthSeconds"`
		Thumbnail     struct {
			Thumbnails []struct {
				URL    string `json:"url"`
				Width  int    `json:"width"`
				Height int    `json:"height"`
			} `json:"thumbnails"`
		} `json:"thumbnail"`
	} `json:"videoDetails"`
}

type ytFormat struct {
	Itag          int    `json:"itag"`
	URL           string `json:"url"`
	MimeType      string `json:"mimeType"`
	ContentLength string `json:"contentLength"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
}

func (p *YouTubeParser) Resolve(ctx context.Context, client *http.Client, m *Match) ([]medias.Media, error) {
	payload := playerRequest{
		VideoID: m.ID,
		Context: playerContext{Client: playerClient{
			ClientName:    "ANDROID",
			ClientVersion: "19.09.37",
			AndroidSDKVer: 30,
			HL:            "en",
		}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, playerEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("youtube player request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("youtube player request returned status %d", resp.StatusCode)
	}

	var pr playerResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("youtube player response: %w", err)
	}

	// Removed, private or region-locked videos come back with a non-OK
	// playability status. Normal empty result, not an error.
	if pr.PlayabilityStatus.Status != "OK" {
		slog.Info("YouTube video not playable",
			"video_id", m.ID,
			"status", pr.PlayabilityStatus.Status,
			"reason", pr.PlayabilityStatus.Reason)
		return nil, nil
	}

	var candidates []CandidateStream
	for _, f := range pr.StreamingData.Formats {
		if f.URL == "" {
			continue
		}
		size, _ := strconv.ParseInt(f.ContentLength, 10, 64)
		candidates = append(candidates, CandidateStream{
			URL:       f.URL,
			SizeBytes: size,
			Rank:      f.Height,
			MimeType:  f.MimeType,
		})
	}

	sel, ok := SelectQuality(candidates, p.SizeCeiling)
	if !ok {
		slog.Info("YouTube video has no progressive streams", "video_id", m.ID)
		return nil, nil
	}

	duration, _ := strconv.Atoi(pr.VideoDetails.LengthSeconds)

	var thumb string
	var width, height int
	if ts := pr.VideoDetails.Thumbnail.Thumbnails; len(ts) > 0 {
		// Thumbnails are ordered smallest to largest.
		thumb = ts[len(ts)-1].URL
	}
	for _, f := range pr.StreamingData.Formats {
		if f.URL == sel.DeliveryURL {
			width, height = f.Width, f.Height
			break
		}
	}

	video := medias.Video{
		Parser:        medias.TypeYouTube,
		Original:      m.URL,
		URL:           sel.DeliveryURL,
		MaxQualityURL: sel.MaxQualityURL,
		Caption:       pr.VideoDetails.Title,
		Author:        pr.VideoDetails.Author,
		ThumbnailURL:  thumb,
		MimeType:      sel.MimeType,
		Width:         width,
		Height:        height,
		Duration:      duration,
	}
	if err := video.Validate(); err != nil {
		return nil, err
	}
	return []medias.Media{video}, nil
}
