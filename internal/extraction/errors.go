package extraction

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/a3tai/docfields/internal/templates"
)

// ErrNotMatched is the kind of *NotMatchedError.
var ErrNotMatched = errors.New("no template matched")

// NotMatchedError reports that no template keyword occurs in the document.
// The extraction result is still returned alongside it.
type NotMatchedError struct {
	// Closest lists the keywords with the highest partial overlap with the
	// document text, best first.
	Closest []string
}

func (e *NotMatchedError) Error() string {
	if len(e.Closest) == 0 {
		return ErrNotMatched.Error()
	}
	return fmt.Sprintf("%s (closest keywords: %s)", ErrNotMatched, strings.Join(e.Closest, ", "))
}

// Is lets errors.Is(err, ErrNotMatched) match.
func (e *NotMatchedError) Is(target error) bool {
	return target == ErrNotMatched
}

const maxClosest = 3

// closestKeywords ranks every registered keyword by the share of its rune
// bigrams found in text.
func closestKeywords(reg *templates.Registry, text string) []string {
	type scored struct {
		kw    string
		score float64
	}
	var (
		all  []scored
		seen = map[string]bool{}
	)
	grams := bigramSet(text)
	for _, t := range reg.Templates() {
		for _, kw := range t.Keywords {
			if seen[kw] {
				continue
			}
			seen[kw] = true
			if s := overlap(kw, grams); s > 0 {
				all = append(all, scored{kw, s})
			}
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].score > all[j].score
	})
	var out []string
	for i := 0; i < len(all) && i < maxClosest; i++ {
		out = append(out, all[i].kw)
	}
	return out
}

func bigramSet(s string) map[string]struct{} {
	rs := []rune(s)
	set := make(map[string]struct{}, len(rs))
	for i := range rs {
		set[string(rs[i])] = struct{}{}
		if i+1 < len(rs) {
			set[string(rs[i:i+2])] = struct{}{}
		}
	}
	return set
}

func overlap(kw string, grams map[string]struct{}) float64 {
	rs := []rune(kw)
	if len(rs) == 1 {
		if _, ok := grams[kw]; ok {
			return 1
		}
		return 0
	}
	hit := 0
	for i := 0; i+1 < len(rs); i++ {
		if _, ok := grams[string(rs[i:i+2])]; ok {
			hit++
		}
	}
	return float64(hit) / float64(len(rs)-1)
}
