// internal/jsonextract/scan.go
package jsonextract

import (
	"regexp"
	"strings"
)

var (
	fenceOpenRe  = regexp.MustCompile("```[a-zA-Z]*\\n?")
	fenceCloseRe = regexp.MustCompile("```")
)

// StripFences removes Markdown code-fence markers anywhere in the text.
func StripFences(text string) string {
	return fenceCloseRe.ReplaceAllString(fenceOpenRe.ReplaceAllString(text, ""), "")
}

// FindStart returns the index of the first '{' or '[', or -1.
func FindStart(text string) int {
	return strings.IndexAny(text, "{[")
}

// scanner tracks string and bracket state one byte at a time. Every
// structural character is ASCII, so multi-byte UTF-8 sequences pass through
// as ordinary content.
type scanner struct {
	quote   byte
	escaped bool
	stack   []byte
}

// step consumes c and reports whether it closed the outermost open bracket.
func (s *scanner) step(c byte) bool {
	if s.quote != 0 {
		switch {
		case s.escaped:
			s.escaped = false
		case c == '\\':
			s.escaped = true
		case c == s.quote:
			s.quote = 0
		}
		return false
	}

	switch c {
	case '"', '\'':
		s.quote = c
	case '{', '[':
		s.stack = append(s.stack, c)
	case '}', ']':
		if len(s.stack) > 0 {
			s.stack = s.stack[:len(s.stack)-1]
			return len(s.stack) == 0
		}
	}
	return false
}

// FirstComplete returns the span from the first '{' or '[' to the bracket
// that balances it. ok is false when the text ends with brackets still open.
func FirstComplete(text string) (span string, ok bool) {
	start := FindStart(text)
	if start < 0 {
		return "", false
	}

	var s scanner
	for i := start; i < len(text); i++ {
		if s.step(text[i]) {
			return text[start : i+1], true
		}
	}
	return "", false
}
