package services

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// nonWordRunes matches every rune that is neither a letter, digit,
// underscore nor whitespace. Matches become spaces before tokenising.
var nonWordRunes = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)

// stopWords are dropped during keyword extraction. English and Chinese
// terms share one set; queries mix both in practice.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"if": true, "because": true, "as": true, "until": true, "while": true,
	"of": true, "at": true, "by": true, "for": true, "with": true,
	"about": true, "against": true, "between": true, "into": true,
	"through": true, "during": true, "before": true, "after": true,
	"above": true, "below": true, "to": true, "from": true,
	"up": true, "down": true, "in": true, "out": true, "on": true,
	"off": true, "over": true, "under": true, "again": true, "further": true,
	"then": true, "once": true, "here": true, "there": true, "when": true,
	"where": true, "why": true, "how": true, "all": true, "any": true,
	"both": true, "each": true, "few": true, "more": true, "most": true,
	"other": true, "some": true, "such": true, "no": true, "nor": true,
	"not": true, "only": true, "own": true, "same": true, "so": true,
	"than": true, "too": true, "very": true, "s": true, "t": true,
	"can": true, "will": true, "just": true, "don": true, "should": true,
	"now": true, "d": true, "ll": true, "m": true, "o": true, "re": true,
	"ve": true, "y": true, "ain": true, "aren": true, "couldn": true,
	"didn": true, "doesn": true, "hadn": true, "hasn": true, "haven": true,
	"isn": true, "ma": true, "mightn": true, "mustn": true, "needn": true,
	"shan": true, "shouldn": true, "wasn": true, "weren": true,
	"won": true, "wouldn": true,
	"的": true, "了": true, "和": true, "是": true, "在": true, "我": true,
	"有": true, "就": true, "不": true, "人": true, "都": true, "一": true,
	"个": true, "上": true, "也": true, "很": true, "到": true, "说": true,
	"要": true, "去": true, "你": true, "会": true, "着": true, "没有": true,
	"看": true, "好": true, "自己": true, "这": true,
}

// extractKeywords tokenises text into lowercased keywords. Stop words
// and tokens of two runes or fewer are dropped. Duplicates are kept,
// so a term repeated in the query weighs more in occurrence scoring.
func extractKeywords(text string) []string {
	cleaned := nonWordRunes.ReplaceAllString(text, " ")

	var keywords []string
	for _, word := range strings.Fields(cleaned) {
		lower := strings.ToLower(word)
		if utf8.RuneCountInString(lower) <= 2 || stopWords[lower] {
			continue
		}
		keywords = append(keywords, lower)
	}
	return keywords
}

// keywordSet returns the distinct keywords of a text.
func keywordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, keyword := range extractKeywords(text) {
		set[keyword] = true
	}
	return set
}

// keywordPatterns compiles one word-boundary matcher per keyword.
// Keywords come pre-lowercased from extractKeywords.
func keywordPatterns(keywords []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(keywords))
	for i, keyword := range keywords {
		patterns[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(keyword) + `\b`)
	}
	return patterns
}

// countMatches sums pattern occurrences over content. The caller
// lowercases content so matching is case-insensitive.
func countMatches(content string, patterns []*regexp.Regexp) float64 {
	var total float64
	for _, pattern := range patterns {
		total += float64(len(pattern.FindAllStringIndex(content, -1)))
	}
	return total
}

// jaccard measures keyword-set overlap. A text without extractable
// keywords carries no similarity signal, so an empty set scores 0
// against everything.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	intersection := 0
	for keyword := range a {
		if b[keyword] {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
