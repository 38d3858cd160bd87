package qa

import "unicode/utf8"

// isWhitespace reports the separators used to split documents into words: only these characters are
// split on, not everything unicode.IsSpace accepts.
func isWhitespace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\r' || r == '\n' || r == 0x202F
}

// SplitWhitespace splits text into words on whitespace, collapsing consecutive whitespace.
//
// charToWord has one entry per character (rune) of text: the index of the word the character belongs to,
// or for whitespace the index of the last word started before it (-1 for leading whitespace).
func SplitWhitespace(text string) (words []string, charToWord []int) {
	charToWord = make([]int, 0, utf8.RuneCountInString(text))
	wordStart := -1 // Byte position where the current word started, -1 if in whitespace.
	for pos, r := range text {
		if isWhitespace(r) {
			if wordStart >= 0 {
				words = append(words, text[wordStart:pos])
				wordStart = -1
			}
			charToWord = append(charToWord, len(words)-1)
			continue
		}
		if wordStart < 0 {
			wordStart = pos
		}
		// The current word is only appended when it ends, so its index is len(words).
		charToWord = append(charToWord, len(words))
	}
	if wordStart >= 0 {
		words = append(words, text[wordStart:])
	}
	return words, charToWord
}
