package calendar

import "strings"

// MatchThreshold is the minimum similarity score for an external event to be
// considered the same booking as an app event.
const MatchThreshold = 0.7

// Matcher scores how likely two event titles refer to the same booking.
// It is a heuristic with no persisted confirmation; implementations can be
// swapped once a reliable correlation key exists.
type Matcher interface {
	Score(a, b string) float64
}

// TitleSimilarity is the default Matcher: exact match 1.0, substring
// containment either way 0.8, otherwise word overlap relative to the longer
// title.
type TitleSimilarity struct{}

func (TitleSimilarity) Score(a, b string) float64 {
	na := normalizeTitle(a)
	nb := normalizeTitle(b)

	if na == nb {
		return 1.0
	}
	if na == "" || nb == "" {
		return 0
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return 0.8
	}

	wordsA := strings.Fields(na)
	wordsB := strings.Fields(nb)

	setB := make(map[string]struct{}, len(wordsB))
	for _, w := range wordsB {
		setB[w] = struct{}{}
	}

	overlap := 0
	seen := make(map[string]struct{}, len(wordsA))
	for _, w := range wordsA {
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		if _, ok := setB[w]; ok {
			overlap++
		}
	}

	longer := len(wordsA)
	if len(wordsB) > longer {
		longer = len(wordsB)
	}
	if longer == 0 {
		return 0
	}
	return float64(overlap) / float64(longer)
}

// normalizeTitle lowercases and strips everything except letters, digits and
// spaces.
func normalizeTitle(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '\t':
			b.WriteRune(' ')
		}
	}
	return strings.TrimSpace(b.String())
}
