// internal/jsonextract/autoclose.go
package jsonextract

import "strings"

// AutoClose appends whatever is needed to balance text: a closing quote when
// the text ends inside a string (two when it ends on a dangling escape), then
// one closer per still-open bracket, innermost first.
func AutoClose(text string) string {
	var s scanner
	for i := 0; i < len(text); i++ {
		s.step(text[i])
	}

	var b strings.Builder
	b.Grow(len(text) + len(s.stack) + 2)
	b.WriteString(text)

	if s.quote != 0 {
		if s.escaped {
			b.WriteByte(s.quote)
		}
		b.WriteByte(s.quote)
	}
	for i := len(s.stack) - 1; i >= 0; i-- {
		if s.stack[i] == '{' {
			b.WriteByte('}')
		} else {
			b.WriteByte(']')
		}
	}
	return b.String()
}
