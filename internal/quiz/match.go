// Package quiz implements the spoken-answer drill engine: fuzzy matching of
// recognized transcripts against expected answers, and the per-item phase
// state machine that drives a learning session across a primary pass and a
// missed-word review pass.
//
// The engine is event-driven. It owns no goroutines of its own besides
// short-lived timers; all progress happens through callbacks from the
// injected speech ports ([OutputPort], [InputPort]) and through explicit
// calls from the host ([Session.DontKnow], [Session.Restart],
// [Session.Close]). Every asynchronous callback is guarded by a per-session
// generation counter so that late events from a torn-down item or session
// are discarded instead of corrupting state.
package quiz

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	// defaultToleranceRatio is the fraction of the expected answer's length
	// allowed as Levenshtein distance.
	defaultToleranceRatio = 0.25

	// defaultMinDistance is the distance allowed even for short answers
	// above the exact-match cutoff.
	defaultMinDistance = 1

	// defaultExactLength is the answer length at or below which only exact
	// equality counts. Distance tolerance on two-character answers would
	// accept unrelated words.
	defaultExactLength = 2
)

// MatcherOption is a functional option for configuring a [Matcher].
type MatcherOption func(*Matcher)

// WithToleranceRatio sets the fraction of the expected answer's character
// length accepted as edit distance. Default: 0.25.
func WithToleranceRatio(ratio float64) MatcherOption {
	return func(m *Matcher) { m.toleranceRatio = ratio }
}

// WithMinDistance sets the minimum edit distance accepted regardless of
// answer length (above the exact-match cutoff). Default: 1.
func WithMinDistance(d int) MatcherOption {
	return func(m *Matcher) { m.minDistance = d }
}

// WithExactLength sets the expected-answer length at or below which only
// exact equality matches. Default: 2.
func WithExactLength(n int) MatcherOption {
	return func(m *Matcher) { m.exactLength = n }
}

// Matcher decides whether a recognized transcript counts as a correct
// answer. Edit-distance tolerance stands in for true phonetic matching:
// recognizers reliably produce near-homophone spellings, which land within
// a small Levenshtein distance of the expected text.
//
// All methods are safe for concurrent use; the Matcher is read-only after
// construction.
type Matcher struct {
	toleranceRatio float64
	minDistance    int
	exactLength    int
}

// NewMatcher returns a [Matcher] configured with the supplied options.
func NewMatcher(opts ...MatcherOption) *Matcher {
	m := &Matcher{
		toleranceRatio: defaultToleranceRatio,
		minDistance:    defaultMinDistance,
		exactLength:    defaultExactLength,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// IsMatch reports whether transcript counts as a correct rendition of
// expected.
//
// Both strings are lowercased and trimmed first. Expected answers at or
// below the exact-match cutoff require exact equality. Longer answers match
// on equality, on substring containment in either direction (recognizers
// add and drop filler words), or on a Levenshtein distance of at most
// floor(toleranceRatio · len(expected)), never below the minimum distance.
func (m *Matcher) IsMatch(transcript, expected string) bool {
	t := normalize(transcript)
	e := normalize(expected)
	if t == "" || e == "" {
		return false
	}

	expLen := len([]rune(e))
	if expLen <= m.exactLength {
		return t == e
	}
	if t == e {
		return true
	}
	if strings.Contains(t, e) || strings.Contains(e, t) {
		return true
	}

	limit := int(m.toleranceRatio * float64(expLen))
	if limit < m.minDistance {
		limit = m.minDistance
	}
	return matchr.Levenshtein(t, e) <= limit
}

// EvaluateAlternatives tests ranked transcript alternatives against
// expected in order and accepts the first match. It returns whether any
// alternative matched, together with the transcript to display: the
// matching alternative, or the top-ranked one when nothing matched.
func (m *Matcher) EvaluateAlternatives(alternatives []string, expected string) (matched bool, transcript string) {
	for _, alt := range alternatives {
		if m.IsMatch(alt, expected) {
			return true, alt
		}
	}
	if len(alternatives) > 0 {
		return false, alternatives[0]
	}
	return false, ""
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
