package fuzzy

import (
	"strings"
)

// stopWords are filtered from tokenized intents and keyword sweeps.
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "can": {}, "her": {}, "was": {}, "one": {},
	"our": {}, "out": {}, "his": {}, "has": {}, "had": {}, "how": {},
	"any": {}, "may": {}, "who": {}, "get": {}, "him": {}, "its": {},
	"this": {}, "that": {}, "with": {}, "from": {}, "they": {},
	"have": {}, "will": {}, "been": {}, "were": {}, "what": {},
	"when": {}, "about": {}, "would": {}, "there": {}, "their": {},
	"which": {}, "could": {}, "should": {}, "please": {}, "find": {},
	"show": {}, "email": {}, "emails": {}, "mail": {},
}

// IsStopWord reports whether the lower-cased token is filtered.
func IsStopWord(token string) bool {
	_, ok := stopWords[token]
	return ok
}

// Tokenize splits text into lower-cased search tokens, dropping tokens of
// two characters or fewer and stop words, capped at maxTokens (0 = no cap).
func Tokenize(text string, maxTokens int) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})

	tokens := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if len(f) <= 2 {
			continue
		}
		if IsStopWord(f) {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		tokens = append(tokens, f)
		if maxTokens > 0 && len(tokens) >= maxTokens {
			break
		}
	}
	return tokens
}

// LevenshteinDistance calculates the edit distance between two strings.
func LevenshteinDistance(s1, s2 string) int {
	s1 = strings.ToLower(s1)
	s2 = strings.ToLower(s2)

	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	r1 := []rune(s1)
	r2 := []rune(s2)
	m := len(r1)
	n := len(r2)

	d := make([][]int, m+1)
	for i := range d {
		d[i] = make([]int, n+1)
	}
	for i := 0; i <= m; i++ {
		d[i][0] = i
	}
	for j := 0; j <= n; j++ {
		d[0][j] = j
	}

	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			d[i][j] = min3(
				d[i-1][j]+1,
				d[i][j-1]+1,
				d[i-1][j-1]+cost,
			)
		}
	}

	return d[m][n]
}

// RelevanceScore scores how relevant a message is to a token bag.
// Subject matches weigh most, then sender name, then sender address.
func RelevanceScore(tokens []string, subject, from, fromName string) float64 {
	score := 0.0
	subjectNorm := strings.ToLower(subject)
	fromNorm := strings.ToLower(from)
	fromNameNorm := strings.ToLower(fromName)

	for _, token := range tokens {
		if strings.Contains(subjectNorm, token) {
			score += 100.0
			if containsWord(subjectNorm, token) {
				score += 50.0
			}
		} else {
			for _, word := range strings.Fields(subjectNorm) {
				if dist := LevenshteinDistance(token, word); dist <= 2 && dist > 0 {
					score += 50.0 - float64(dist)*15
					break
				}
			}
		}

		if strings.Contains(fromNameNorm, token) {
			score += 80.0
		}
		if strings.Contains(fromNorm, token) {
			score += 60.0
		}
	}

	return score
}

// MatchesAny reports whether any token occurs in the lower-cased text.
func MatchesAny(text string, tokens []string) bool {
	textLower := strings.ToLower(text)
	for _, token := range tokens {
		if strings.Contains(textLower, token) {
			return true
		}
	}
	return false
}

func containsWord(text, word string) bool {
	for _, w := range strings.Fields(text) {
		if strings.Trim(w, ".,!?;:\"'()") == word {
			return true
		}
	}
	return false
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
