package explainer

import (
	"context"
)

// VerseRef identifies one verse within a batch explanation request.
type VerseRef struct {
	Surah     int64
	SurahName string
	Verse     int64
}

// Explanation is the generator output for one batch. When the response
// splits into the expected sections, the three section fields are set.
// Otherwise Degraded is true and Raw carries the whole response text;
// callers render it with fallback formatting instead of guessing at
// section boundaries.
type Explanation struct {
	Transliterations string
	Translations     string
	Commentary       string
	Raw              string
	Degraded         bool
}

// Explainer produces a grouped explanation for a batch of verses in a
// single request.
type Explainer interface {
	Explain(ctx context.Context, refs []VerseRef) (Explanation, error)
}
