// Package textchunk splits long text into backend-safe segments that respect
// sentence boundaries wherever possible.
package textchunk

import (
	"strings"
	"unicode/utf8"
)

var (
	sentenceEnders = map[rune]bool{
		'.': true, '!': true, '?': true,
		'。': true, '！': true, '？': true,
	}
	clauseEnders = map[rune]bool{
		',': true, ';': true, ':': true,
		'，': true, '；': true, '：': true, '、': true,
	}
)

// Chunk splits text into pieces of at most maxChars characters. Lengths are
// measured in runes, not bytes, so CJK text gets the same character budget as
// ASCII. Splitting falls back sentence -> clause -> word: sentences are packed
// greedily, a sentence longer than maxChars is split on clause punctuation,
// and a clause still too long is split on word boundaries. Words are never
// split, so a single word longer than maxChars becomes its own oversized
// chunk.
//
// Joining the returned chunks with a single space reconstructs the input
// modulo whitespace normalization.
func Chunk(text string, maxChars int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return []string{normalizeSpace(text)}
	}

	var pieces []string
	for _, sentence := range SplitSentences(text) {
		if utf8.RuneCountInString(sentence) <= maxChars {
			pieces = append(pieces, sentence)
			continue
		}
		for _, clause := range splitOn(sentence, clauseEnders) {
			if utf8.RuneCountInString(clause) <= maxChars {
				pieces = append(pieces, clause)
				continue
			}
			pieces = append(pieces, splitWords(clause, maxChars)...)
		}
	}

	return pack(pieces, maxChars)
}

// SplitSentences splits text on sentence-ending punctuation, keeping the
// punctuation attached to its sentence.
func SplitSentences(text string) []string {
	return splitOn(text, sentenceEnders)
}

func splitOn(text string, enders map[rune]bool) []string {
	var out []string
	var cur strings.Builder
	runes := []rune(text)
	for i, r := range runes {
		cur.WriteRune(r)
		if !enders[r] {
			continue
		}
		// Runs of terminal punctuation ("?!", ellipses) stay together.
		if i+1 < len(runes) && enders[runes[i+1]] {
			continue
		}
		if s := normalizeSpace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}
	if s := normalizeSpace(cur.String()); s != "" {
		out = append(out, s)
	}
	return out
}

func splitWords(text string, maxChars int) []string {
	return joinWithin(strings.Fields(text), maxChars)
}

// pack greedily merges adjacent pieces while the joined rune count stays
// within maxChars.
func pack(pieces []string, maxChars int) []string {
	return joinWithin(pieces, maxChars)
}

func joinWithin(parts []string, maxChars int) []string {
	var out []string
	var cur strings.Builder
	curRunes := 0
	for _, p := range parts {
		n := utf8.RuneCountInString(p)
		if curRunes == 0 {
			cur.WriteString(p)
			curRunes = n
			continue
		}
		if curRunes+1+n <= maxChars {
			cur.WriteString(" ")
			cur.WriteString(p)
			curRunes += 1 + n
			continue
		}
		out = append(out, cur.String())
		cur.Reset()
		cur.WriteString(p)
		curRunes = n
	}
	if curRunes > 0 {
		out = append(out, cur.String())
	}
	return out
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
