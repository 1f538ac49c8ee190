package memory

import "strings"

// stopWords are common words excluded from keyword extraction.
var stopWords = map[string]bool{
	"this": true, "that": true, "with": true, "from": true, "have": true,
	"will": true, "been": true, "were": true, "when": true, "then": true,
	"them": true, "they": true, "their": true, "there": true, "these": true,
	"those": true, "should": true, "would": true, "could": true, "into": true,
	"also": true, "only": true, "some": true, "make": true, "made": true,
	"please": true, "want": true, "need": true, "page": true, "site": true,
}

// ExtractKeywords pulls significant words from a query: longer than three
// characters, lowercased, stop words removed, deduplicated in order.
func ExtractKeywords(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})

	seen := make(map[string]bool)
	var keywords []string
	for _, w := range fields {
		if len(w) <= 3 || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		keywords = append(keywords, w)
	}
	return keywords
}

// keywordScore is the fraction of keywords present in the text.
func keywordScore(text string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	matched := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			matched++
		}
	}
	return float64(matched) / float64(len(keywords))
}
