// Package keywords extracts search keywords from procedure text. Frequency
// analysis feeds the run report; per-record extraction feeds the Keywords
// field consumed by the search frontend.
package keywords

import (
	"sort"
	"strings"
	"unicode"
)

// stopwords is a map of frequently occurring Spanish words that should be
// ignored in keyword extraction. This list can be extended as needed.
var stopwords = map[string]struct{}{
	"a": {}, "al": {}, "algo": {}, "ante": {}, "antes": {}, "aquel": {},
	"aqui": {}, "aquí": {}, "asi": {}, "así": {},

	"bajo": {},

	"cada": {}, "como": {}, "cómo": {}, "con": {}, "contra": {}, "cual": {},
	"cuál": {}, "cuando": {}, "cuándo": {},

	"da": {}, "de": {}, "debe": {}, "deben": {}, "del": {}, "desde": {},
	"donde": {}, "dónde": {}, "dos": {},

	"e": {}, "el": {}, "él": {}, "ella": {}, "ellas": {}, "ellos": {},
	"en": {}, "entre": {}, "era": {}, "es": {}, "esa": {}, "ese": {},
	"eso": {}, "esta": {}, "está": {}, "este": {}, "esto": {},

	"fue": {},

	"ha": {}, "han": {}, "hay": {}, "hacia": {}, "hasta": {},

	"la": {}, "las": {}, "le": {}, "les": {}, "lo": {}, "los": {},

	"mas": {}, "más": {}, "me": {}, "mi": {}, "mis": {}, "muy": {},

	"ni": {}, "no": {}, "nos": {},

	"o": {}, "otra": {}, "otro": {},

	"para": {}, "pero": {}, "poder": {}, "por": {}, "porque": {},
	"puede": {}, "pueden": {},

	"que": {}, "qué": {}, "quien": {}, "quién": {},

	"se": {}, "ser": {}, "si": {}, "sí": {}, "sin": {}, "sobre": {},
	"solo": {}, "sólo": {}, "son": {}, "su": {}, "sus": {},

	"tal": {}, "también": {}, "tambien": {}, "te": {}, "tiene": {},
	"tienen": {}, "toda": {}, "todas": {}, "todo": {}, "todos": {},
	"tu": {}, "tus": {},

	"un": {}, "una": {}, "uno": {},

	"y": {}, "ya": {},

	// Boilerplate that appears on nearly every gob.pe procedure page and
	// carries no search value.
	"tramite": {}, "trámite": {}, "tramites": {}, "trámites": {},
	"procedimiento": {}, "pagina": {}, "página": {}, "web": {},
	"click": {}, "ver": {},
}

// IsStopword checks if a word is a common stopword that should be filtered out.
func IsStopword(word string) bool {
	_, exists := stopwords[strings.ToLower(word)]
	return exists
}

// minKeywordLen filters short function words the stopword list misses.
const minKeywordLen = 4

// maxPerRecord bounds the Keywords field on a single record.
const maxPerRecord = 10

// WordFrequency counts keyword occurrences in text, skipping stopwords and
// words shorter than the minimum length.
func WordFrequency(text string) map[string]int {
	words := strings.Fields(strings.ToLower(text))
	frequencies := make(map[string]int)

	for _, word := range words {
		word = strings.TrimFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})

		if len([]rune(word)) < minKeywordLen {
			continue
		}
		if _, exists := stopwords[word]; exists {
			continue
		}

		frequencies[word]++
	}

	return frequencies
}

// Extract returns up to ten keywords for one procedure, in first-seen order,
// built from its name and description.
func Extract(name, description string) []string {
	words := strings.Fields(strings.ToLower(name + " " + description))
	out := make([]string, 0, maxPerRecord)
	seen := make(map[string]struct{})

	for _, word := range words {
		if len(out) == maxPerRecord {
			break
		}
		word = strings.TrimFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if len([]rune(word)) < minKeywordLen {
			continue
		}
		if _, exists := stopwords[word]; exists {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		out = append(out, word)
	}

	return out
}

type wordCount struct {
	Word  string
	Count int
}

// TopN returns the n most frequent keywords across the aggregated counts,
// most frequent first. Ties break alphabetically so report output is stable.
func TopN(frequencies map[string]int, n int) []string {
	counts := make([]wordCount, 0, len(frequencies))
	for k, v := range frequencies {
		counts = append(counts, wordCount{k, v})
	}

	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Word < counts[j].Word
	})

	limit := n
	if len(counts) < n {
		limit = len(counts)
	}

	topN := make([]string, limit)
	for i := 0; i < limit; i++ {
		topN[i] = counts[i].Word
	}

	return topN
}
