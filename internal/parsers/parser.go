package parsers

import (
	"context"
	"net/http"

	"mediagrab/internal/medias"
)

// Match is a successful pattern test against a provider URL shape.
type Match struct {
	// ID is the provider-native identifier captured from the URL
	// (e.g. a YouTube video ID).
	ID string
	// URL is the link as it appeared in the input text. It becomes the
	// OriginalURL of every media the variant returns.
	URL string
}

// Parser is one provider-specific variant. Implementations are
// registered with the Registry in a fixed order; the first variant whose
// Match succeeds claims the link.
type Parser interface {
	Type() medias.ParserType

	// Supports is a static capability gate. A variant returning false
	// stays registered but never claims links.
	Supports() bool

	// Match tests url against the variant's URL shapes and returns nil
	// if none apply.
	Match(url string) *Match

	// Resolve performs the provider fetch for a matched link. Expected
	// provider conditions (removed, private, region-locked content) map
	// to an empty slice, not an error. Only transport-level failures
	// are returned as errors.
	Resolve(ctx context.Context, client *http.Client, m *Match) ([]medias.Media, error)
}
