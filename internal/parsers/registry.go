package parsers

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"mediagrab/internal/medias"
	"mediagrab/internal/utils"
)

var linkPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

// Registry holds all parser variants in registration order and turns
// free-form text into resolved media.
//
// Registration order is a contract: the first variant whose Match
// succeeds claims a link, so catch-all variants must be registered
// last.
type Registry struct {
	parsers []Parser
	client  *http.Client
	flight  singleflight.Group

	// ValidateLink gates every extracted link before dispatch. Links
	// failing it are dropped like unsupported ones. Nil disables the
	// gate (tests with fake links).
	ValidateLink func(url string) error

	fetchTimeout time.Duration
}

func NewRegistry(client *http.Client, parsers ...Parser) *Registry {
	timeouts := utils.DefaultTimeoutConfig()
	if client == nil {
		client = &http.Client{Timeout: timeouts.FetchTimeout}
	}
	return &Registry{
		parsers:      parsers,
		client:       client,
		ValidateLink: utils.ValidateURL,
		fetchTimeout: timeouts.FetchTimeout,
	}
}

// Parsers returns the variants in registration order.
func (r *Registry) Parsers() []Parser {
	out := make([]Parser, len(r.parsers))
	copy(out, r.parsers)
	return out
}

// ExtractLinks scans text for link spans in order of appearance.
// Duplicate links keep only their first position.
func ExtractLinks(text string) []string {
	raw := linkPattern.FindAllString(text, -1)
	seen := make(map[string]struct{}, len(raw))
	links := make([]string, 0, len(raw))
	for _, l := range raw {
		// Trailing sentence punctuation is not part of the link.
		l = strings.TrimRight(l, ".,;:!?)")
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		links = append(links, l)
	}
	return links
}

// match finds the first variant claiming the link, honoring
// registration order and the Supports gate.
func (r *Registry) match(link string) (Parser, *Match) {
	for _, p := range r.parsers {
		if !p.Supports() {
			continue
		}
		if m := p.Match(link); m != nil {
			return p, m
		}
	}
	return nil, nil
}

// Dispatch extracts links from text, resolves every supported one
// concurrently and returns the merged results in the order the links
// appeared. Links no variant claims are dropped. A transport failure
// on one link is logged and contributes nothing; it never aborts the
// batch. On context cancellation partial results are discarded.
func (r *Registry) Dispatch(ctx context.Context, text string) ([]medias.Media, error) {
	links := ExtractLinks(text)
	if len(links) == 0 {
		return nil, nil
	}

	type task struct {
		pos    int
		link   string
		parser Parser
		match  *Match
	}

	var tasks []task
	for i, link := range links {
		if r.ValidateLink != nil {
			if err := r.ValidateLink(link); err != nil {
				slog.Info("Rejected link", "link", link, "error", err)
				continue
			}
		}
		p, m := r.match(link)
		if p == nil {
			slog.Debug("No parser for link", "link", link)
			continue
		}
		tasks = append(tasks, task{pos: i, link: link, parser: p, match: m})
	}
	if len(tasks) == 0 {
		return nil, nil
	}

	// One slot per link position keeps output in input order no matter
	// how the goroutines interleave.
	results := make([][]medias.Media, len(links))
	var wg sync.WaitGroup

	for _, t := range tasks {
		wg.Add(1)
		go func(t task) {
			defer wg.Done()
			found, err := r.resolveOne(ctx, t.parser, t.match)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Error("Parser failed for link",
					"parser", string(t.parser.Type()),
					"link", t.link,
					"error", err)
				return
			}
			results[t.pos] = found
		}(t)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var merged []medias.Media
	for _, rs := range results {
		merged = append(merged, rs...)
	}
	return merged, nil
}

// resolveOne runs a single variant resolution, collapsing identical
// in-flight links into one provider fetch. Waiters that get cancelled
// stop waiting; the fetch itself finishes on behalf of the remaining
// callers, so it runs detached from any one caller's context and is
// bounded by the fetch timeout instead.
func (r *Registry) resolveOne(ctx context.Context, p Parser, m *Match) ([]medias.Media, error) {
	ch := r.flight.DoChan(m.URL, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.fetchTimeout)
		defer cancel()
		return p.Resolve(fetchCtx, r.client, m)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Val == nil {
			return nil, nil
		}
		return res.Val.([]medias.Media), nil
	}
}
