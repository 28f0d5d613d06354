// Package textproc bounds bill text for the language model: it splits
// content into paragraph-aligned chunks and truncates content to a unit budget.
//
// A "unit" approximates one model token and is counted as CharsPerUnit bytes.
package textproc

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	CharsPerUnit = 4

	DefaultChunkUnits      = 4000
	DefaultMaxContentUnits = 8000

	// TruncationNotice is appended to content cut down by Truncate.
	TruncationNotice = "\n\n[Note: Content has been truncated due to length limitations.]"

	paragraphSeparator = "\n\n"
)

var (
	paragraphBreak   = regexp.MustCompile(`\n\s*\n`)
	queryPunctuation = regexp.MustCompile("[.,/#!$%^&*;:{}=\\-_`~()]")
	repeatedSpace    = regexp.MustCompile(`\s{2,}`)
)

// EstimateUnits returns the approximate unit count of text, rounded up.
func EstimateUnits(text string) int {
	return (len(text) + CharsPerUnit - 1) / CharsPerUnit
}

// Segment splits text on blank lines and packs consecutive paragraphs into
// chunks of at most chunkUnits*CharsPerUnit bytes. A paragraph that alone
// exceeds the budget is emitted whole as its own chunk.
func Segment(text string, chunkUnits int) []string {
	if chunkUnits <= 0 {
		chunkUnits = DefaultChunkUnits
	}
	budget := chunkUnits * CharsPerUnit

	clean := strings.ReplaceAll(text, "\r\n", "\n")
	var chunks []string
	var current strings.Builder

	for _, paragraph := range paragraphBreak.Split(clean, -1) {
		p := strings.TrimSpace(paragraph)
		if p == "" {
			continue
		}

		if current.Len() > 0 && current.Len()+len(paragraphSeparator)+len(p) > budget {
			chunks = append(chunks, current.String())
			current.Reset()
		}

		if current.Len() > 0 {
			current.WriteString(paragraphSeparator)
		}
		current.WriteString(p)
	}

	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	return chunks
}

// Truncate returns text unchanged when it fits in maxUnits, otherwise its
// first maxUnits*CharsPerUnit bytes followed by TruncationNotice. Applying
// Truncate to its own output with the same budget is a no-op.
func Truncate(text string, maxUnits int) string {
	if maxUnits <= 0 {
		maxUnits = DefaultMaxContentUnits
	}
	limit := maxUnits * CharsPerUnit

	if len(text) <= limit {
		return text
	}
	if strings.HasSuffix(text, TruncationNotice) && len(text)-len(TruncationNotice) <= limit {
		return text
	}

	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}

	return text[:cut] + TruncationNotice
}

// NormalizeQuery lowercases a question, strips common punctuation and
// collapses runs of whitespace so trivially different phrasings share a key.
func NormalizeQuery(query string) string {
	normalized := strings.TrimSpace(strings.ToLower(query))
	normalized = queryPunctuation.ReplaceAllString(normalized, "")
	return repeatedSpace.ReplaceAllString(normalized, " ")
}
