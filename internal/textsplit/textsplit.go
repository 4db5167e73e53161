// Package textsplit implements chunking of source prose into an ordered
// list of chunk.Chunk (section 4.1): sentence mode and paragraph mode, each
// producing spans that tile the source text exactly, trailing whitespace
// included, so concatenating every chunk's RawText reproduces the input.
package textsplit

import (
	"regexp"
	"unicode"

	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/chunk"
)

// Mode selects the chunking strategy.
type Mode string

const (
	Sentence  Mode = "sentence"
	Paragraph Mode = "paragraph"
)

var blankRunRe = regexp.MustCompile(`\n\s*\n\s*`)

// Split chunks text starting at character offset start in the source
// document, using the given mode and minimum chunk length, applying clean
// to produce each chunk's CleanedText.
func Split(text string, start int, mode Mode, minChunkLength int, clean chunk.CleanFunc) []chunk.Chunk {
	if text == "" {
		return []chunk.Chunk{chunk.New("", start, clean)}
	}
	var spans []string
	switch mode {
	case Paragraph:
		spans = splitParagraph(text)
	default:
		spans = splitSentence(text, minChunkLength)
	}
	chunks := make([]chunk.Chunk, 0, len(spans))
	offset := start
	for _, s := range spans {
		chunks = append(chunks, chunk.New(s, offset, clean))
		offset += len(s)
	}
	return chunks
}

// splitParagraph splits on blank-line runs, preserving the separator as a
// suffix of the preceding chunk (section 4.1).
func splitParagraph(text string) []string {
	var spans []string
	last := 0
	for _, loc := range blankRunRe.FindAllStringIndex(text, -1) {
		sepEnd := loc[1]
		spans = append(spans, text[last:sepEnd])
		last = sepEnd
	}
	if last < len(text) {
		spans = append(spans, text[last:])
	}
	if len(spans) == 0 {
		spans = []string{text}
	}
	return spans
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == '\n'
}

func isClosingOrEmphasis(r rune) bool {
	switch r {
	case '"', '\'', '”', '’', ')', ']', '*', '_', '`':
		return true
	}
	return false
}

func isWhitespace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// splitSentence implements the sentence-mode scan described in section 4.1:
// consume at least minChunkLength runes, then find the next terminator not
// immediately followed by an alphanumeric, extend through trailing closing
// punctuation/emphasis, then trailing whitespace. If no terminator is found
// the remainder becomes one final chunk.
func splitSentence(text string, minChunkLength int) []string {
	runes := []rune(text)
	n := len(runes)
	var spans []string
	chunkStart := 0
	i := 0
	for i < n {
		// Consume at least minChunkLength characters before looking for a
		// terminator, measured from the start of the current chunk.
		scanFrom := i
		if scanFrom < chunkStart+minChunkLength {
			scanFrom = chunkStart + minChunkLength
		}
		if scanFrom >= n {
			break
		}
		j := scanFrom
		found := -1
		for j < n {
			if isTerminator(runes[j]) {
				next := j + 1
				if next >= n || !unicode.IsLetter(runes[next]) && !unicode.IsDigit(runes[next]) {
					found = j
					break
				}
			}
			j++
		}
		if found == -1 {
			break
		}
		end := found + 1
		for end < n && isClosingOrEmphasis(runes[end]) {
			end++
		}
		for end < n && isWhitespace(runes[end]) {
			end++
		}
		spans = append(spans, string(runes[chunkStart:end]))
		chunkStart = end
		i = end
	}
	if chunkStart < n {
		spans = append(spans, string(runes[chunkStart:n]))
	}
	if len(spans) == 0 {
		spans = []string{text}
	}
	return spans
}
