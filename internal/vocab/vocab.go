// Package vocab implements custom-vocabulary correction for final transcript
// fragments. Dictation users register domain terms the backend is likely to
// mishear (names, product terms, jargon); the corrector rewrites recognised
// near-misses to the canonical spelling.
//
// Matching proceeds in two stages:
//
//  1. Phonetic candidate filtering: Double Metaphone codes are computed for
//     the transcript tokens and for each vocabulary term. A term whose codes
//     overlap the input's becomes a phonetic candidate.
//
//  2. Jaro-Winkler ranking: among phonetic candidates the term with the
//     highest Jaro-Winkler similarity wins, provided it clears the phonetic
//     threshold. When no phonetic candidate exists, a pure-similarity pass
//     with a stricter fuzzy threshold serves as fallback.
//
// Multi-word terms ("pull request", "Sankt Augustin") are supported: windows
// of up to the longest term's word count are tested at each position, longest
// first.
package vocab

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.88
)

// Option configures a [Corrector].
type Option func(*Corrector)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score a phonetic
// candidate must reach. Default 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(c *Corrector) { c.phoneticThreshold = threshold }
}

// WithFuzzyThreshold sets the minimum similarity for the non-phonetic
// fallback pass. Default 0.88; kept strict so everyday words near a term are
// left alone.
func WithFuzzyThreshold(threshold float64) Option {
	return func(c *Corrector) { c.fuzzyThreshold = threshold }
}

// term is a vocabulary entry with its matching data precomputed.
type term struct {
	canonical string
	lower     string
	tokens    []string
	codes     map[string]struct{}
}

// Corrector rewrites transcript text against a fixed vocabulary. Read-only
// after construction, so safe for concurrent use.
type Corrector struct {
	phoneticThreshold float64
	fuzzyThreshold    float64

	terms    []term
	maxWords int
}

// NewCorrector precomputes matching data for the given vocabulary terms.
// Blank terms are dropped. A Corrector over an empty vocabulary is valid and
// returns every input unchanged.
func NewCorrector(terms []string, opts ...Option) *Corrector {
	c := &Corrector{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(c)
	}
	for _, raw := range terms {
		canonical := strings.TrimSpace(raw)
		if canonical == "" {
			continue
		}
		lower := strings.ToLower(canonical)
		tokens := strings.Fields(lower)
		c.terms = append(c.terms, term{
			canonical: canonical,
			lower:     lower,
			tokens:    tokens,
			codes:     codesForTokens(tokens),
		})
		if len(tokens) > c.maxWords {
			c.maxWords = len(tokens)
		}
	}
	return c
}

// Correct rewrites near-misses of vocabulary terms in text to their canonical
// spelling. Surrounding punctuation survives the rewrite: "eldrin-ax," becomes
// "Eldrinax," when the vocabulary holds Eldrinax.
func (c *Corrector) Correct(text string) string {
	if len(c.terms) == 0 {
		return text
	}
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return text
	}

	var out []string
	i := 0
	for i < len(tokens) {
		maxN := min(c.maxWords, len(tokens)-i)

		matched := false
		// Longest window first, so multi-word terms beat their fragments.
		for n := maxN; n >= 1; n-- {
			window := tokens[i : i+n]
			core, lead, trail := stripPunct(window)
			if core == "" {
				continue
			}
			canonical, ok := c.match(core)
			if !ok {
				continue
			}
			out = append(out, lead+canonical+trail)
			i += n
			matched = true
			break
		}
		if !matched {
			out = append(out, tokens[i])
			i++
		}
	}
	return strings.Join(out, " ")
}

// match finds the best vocabulary term for the given lowercase phrase.
func (c *Corrector) match(phrase string) (canonical string, ok bool) {
	inputTokens := strings.Fields(phrase)
	inputCodes := codesForTokens(inputTokens)
	stripped := strings.Join(inputTokens, "")

	var (
		bestTerm     string
		bestScore    float64
		bestPhonetic bool
	)
	for _, t := range c.terms {
		phonetic := codesOverlap(inputCodes, t.codes)
		score := similarity(inputTokens, t.tokens, phrase, t.lower, stripped)

		switch {
		case phonetic && score >= c.phoneticThreshold:
			if !bestPhonetic || score > bestScore {
				bestTerm, bestScore, bestPhonetic = t.canonical, score, true
			}
		case !phonetic && !bestPhonetic:
			if score >= c.fuzzyThreshold && score > bestScore {
				bestTerm, bestScore = t.canonical, score
			}
		}
	}
	return bestTerm, bestTerm != ""
}

// similarity is the highest Jaro-Winkler score across three comparison
// strategies: full strings, space-stripped strings, and the best pairwise
// token score. The extra strategies handle word-boundary mismatches, e.g. the
// backend hearing "elder nacks" for "Eldrinax".
func similarity(inputTokens, termTokens []string, inputFull, termFull, inputStripped string) float64 {
	score := matchr.JaroWinkler(inputFull, termFull, false)

	if len(inputTokens) > 1 || len(termTokens) > 1 {
		if s := matchr.JaroWinkler(inputStripped, strings.Join(termTokens, ""), false); s > score {
			score = s
		}
	}
	for _, it := range inputTokens {
		for _, tt := range termTokens {
			if s := matchr.JaroWinkler(it, tt, false); s > score {
				score = s
			}
		}
	}
	return score
}

// codesForTokens returns the union of the Double Metaphone codes of the given
// tokens. Codes the encoder cannot produce (very short or vowel-only words)
// are skipped.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// stripPunct lowercases a token window and splits off leading punctuation of
// the first token and trailing punctuation of the last, so matching sees the
// bare words.
func stripPunct(window []string) (core, lead, trail string) {
	first := window[0]
	for len(first) > 0 && isPunct(first[0]) {
		lead += string(first[0])
		first = first[1:]
	}
	last := window[len(window)-1]
	if len(window) == 1 {
		last = first
	}
	for len(last) > 0 && isPunct(last[len(last)-1]) {
		trail = string(last[len(last)-1]) + trail
		last = last[:len(last)-1]
	}

	parts := make([]string, len(window))
	copy(parts, window)
	if len(window) == 1 {
		parts[0] = last
	} else {
		parts[0] = first
		parts[len(parts)-1] = last
	}
	return strings.ToLower(strings.TrimSpace(strings.Join(parts, " "))), lead, trail
}

func isPunct(b byte) bool {
	switch b {
	case '.', ',', '!', '?', ';', ':', '"', '\'', '(', ')', '-':
		return true
	}
	return false
}
