package fuzzy

import (
	"html"
	"regexp"
	"strings"
)

// maxCompareRunes caps each edit-distance window for very long bodies
const maxCompareRunes = 4000

var (
	htmlTagRe     = regexp.MustCompile(`(?s)<[^>]*>`)
	htmlBreakRe   = regexp.MustCompile(`(?i)<\s*(br|/p|/div|/li)\s*/?>`)
	gmailQuoteRe  = regexp.MustCompile(`(?is)<div[^>]*class="[^"]*gmail_quote[^"]*".*$`)
	blockquoteRe  = regexp.MustCompile(`(?is)<blockquote.*$`)
	quoteHeaderRe = regexp.MustCompile(`(?i)^on .+ wrote:\s*$`)
)

// LevenshteinDistance calculates the edit distance between two strings
// This measures how many single-character edits (insertions, deletions, or substitutions)
// are required to change one string into another
func LevenshteinDistance(s1, s2 string) int {
	return levenshtein([]rune(normalizeString(s1)), []rune(normalizeString(s2)))
}

func levenshtein(r1, r2 []rune) int {
	m, n := len(r1), len(r2)
	if m == 0 {
		return n
	}
	if n == 0 {
		return m
	}

	// Two rows are enough since each cell only looks one row back
	prev := make([]int, n+1)
	curr := make([]int, n+1)
	for j := 0; j <= n; j++ {
		prev[j] = j
	}

	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			curr[j] = min3(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[n]
}

// Similarity scores two email bodies in [0,1] as one minus the normalized
// edit distance of their reply text. Quoted history and markup are removed
// first, so identical replies score 1.0 whether or not the sent copy
// carries the quoted thread.
func Similarity(a, b string) float64 {
	ra := []rune(NormalizeEmailText(a))
	rb := []rune(NormalizeEmailText(b))

	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 1.0
	}

	dist := chunkedDistance(ra, rb)
	if dist > longest {
		dist = longest
	}
	return 1.0 - float64(dist)/float64(longest)
}

// chunkedDistance sums the edit distance of aligned maxCompareRunes-sized
// windows. It never underestimates the full distance and is exact for
// bodies within one window.
func chunkedDistance(ra, rb []rune) int {
	total := 0
	for len(ra) > 0 || len(rb) > 0 {
		ca, cb := ra, rb
		if len(ca) > maxCompareRunes {
			ca = ca[:maxCompareRunes]
		}
		if len(cb) > maxCompareRunes {
			cb = cb[:maxCompareRunes]
		}
		total += levenshtein(ca, cb)
		ra, rb = ra[len(ca):], rb[len(cb):]
	}
	return total
}

// NormalizeEmailText reduces an HTML or plain-text body to the lowercased,
// whitespace-collapsed text the author actually wrote
func NormalizeEmailText(body string) string {
	if strings.Contains(body, "<") && strings.Contains(body, ">") {
		body = gmailQuoteRe.ReplaceAllString(body, "")
		body = blockquoteRe.ReplaceAllString(body, "")
		body = htmlBreakRe.ReplaceAllString(body, "\n")
		body = htmlTagRe.ReplaceAllString(body, " ")
		body = html.UnescapeString(body)
	}

	var kept []string
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if quoteHeaderRe.MatchString(trimmed) {
			break
		}
		if strings.HasPrefix(trimmed, ">") {
			continue
		}
		kept = append(kept, trimmed)
	}

	return normalizeString(strings.Join(kept, " "))
}

// Helper functions

func min3(a, b, c int) int {
	if a < b {
		if a < c {
			return a
		}
		return c
	}
	if b < c {
		return b
	}
	return c
}

// normalizeString converts to lowercase and collapses whitespace
func normalizeString(s string) string {
	s = strings.ToLower(s)
	s = strings.Join(strings.Fields(s), " ")
	return s
}
