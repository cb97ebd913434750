package parsers

// CandidateStream is one provider stream considered for delivery.
type CandidateStream struct {
	URL       string
	SizeBytes int64 // 0 means unknown
	// Rank orders streams by resolution; higher is better. Any
	// consistent ordinal works (height, itag order, provider index).
	Rank     int
	MimeType string
}

// Selection is the outcome of quality selection for one video.
type Selection struct {
	// DeliveryURL is the stream to actually send.
	DeliveryURL string
	// MaxQualityURL is the best-available stream when it differs from
	// DeliveryURL, otherwise empty (no degradation occurred).
	MaxQualityURL string
	MimeType      string
}

// SelectQuality picks the largest stream that still fits under
// sizeCeiling. The ceiling is a hard upper bound, not a target: among
// streams with known size <= ceiling the biggest wins, ties broken by
// rank. When nothing fits (or no sizes are known) the best-ranked
// stream is delivered as-is and doubles as the full-quality reference;
// a downstream send failure is surfaced there, not pre-empted here.
func SelectQuality(candidates []CandidateStream, sizeCeiling int64) (Selection, bool) {
	if len(candidates) == 0 {
		return Selection{}, false
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Rank > best.Rank {
			best = c
		}
	}

	chosen := CandidateStream{}
	found := false
	for _, c := range candidates {
		if c.SizeBytes <= 0 || c.SizeBytes > sizeCeiling {
			continue
		}
		if !found || c.SizeBytes > chosen.SizeBytes ||
			(c.SizeBytes == chosen.SizeBytes && c.Rank > chosen.Rank) {
			chosen = c
			found = true
		}
	}

	if !found {
		return Selection{
			DeliveryURL:   best.URL,
			MaxQualityURL: best.URL,
			MimeType:      best.MimeType,
		}, true
	}

	sel := Selection{DeliveryURL: chosen.URL, MimeType: chosen.MimeType}
	if best.URL != chosen.URL {
		sel.MaxQualityURL = best.URL
	}
	return sel, true
}
