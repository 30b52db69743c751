// internal/jsonextract/repair.go
package jsonextract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Pass is one syntactic repair. Each pass targets a single defect class and
// is a pure text-to-text function.
type Pass struct {
	Name  string
	Apply func(string) string
}

var (
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
	bareKeyRe       = regexp.MustCompile(`^(\s*)([A-Za-z0-9_]+)\s*:`)
	pyNoneRe        = regexp.MustCompile(`:\s*None\b`)
	pyTrueRe        = regexp.MustCompile(`:\s*True\b`)
	pyFalseRe       = regexp.MustCompile(`:\s*False\b`)
	undefinedRe     = regexp.MustCompile(`:\s*undefined\b`)
	plainNumberRe   = regexp.MustCompile(`^-?\d+(?:\.\d+)?$`)

	smartQuotes = strings.NewReplacer("\u201C", `"`, "\u201D", `"`, "\u2018", "'", "\u2019", "'")
)

// Passes run in order; later passes assume earlier ones already ran.
var Passes = []Pass{
	// byte-order marks
	{Name: "bom", Apply: func(t string) string { return strings.ReplaceAll(t, "\uFEFF", "") }},
	// “ ” ‘ ’ emitted by chat UIs and some tokenizers
	{Name: "smart_quotes", Apply: smartQuotes.Replace},
	// ```json ... ``` wrappers
	{Name: "fences", Apply: StripFences},
	// [1,2,] and {"a":1,}
	{Name: "trailing_commas", Apply: func(t string) string { return trailingCommaRe.ReplaceAllString(t, "$1") }},
	// {key: 1}
	{Name: "bare_keys", Apply: quoteBareKeys},
	// Python and JavaScript literals
	{Name: "literals", Apply: func(t string) string {
		t = pyNoneRe.ReplaceAllString(t, ": null")
		t = pyTrueRe.ReplaceAllString(t, ": true")
		t = pyFalseRe.ReplaceAllString(t, ": false")
		return undefinedRe.ReplaceAllString(t, ": null")
	}},
	// {"name": egg, "origin": Asia}
	{Name: "bare_scalars", Apply: quoteBareScalars},
}

// Repair trims text and runs every pass in order.
func Repair(text string) string {
	t := strings.TrimSpace(text)
	for _, p := range Passes {
		t = p.Apply(t)
	}
	return t
}

// quoteBareKeys quotes identifier keys that follow '{' or ','. Text inside
// string literals is left alone.
func quoteBareKeys(t string) string {
	var b strings.Builder
	var s scanner
	written := 0
	for i := 0; i < len(t); i++ {
		c := t[i]
		inString := s.quote != 0
		s.step(c)
		if inString || (c != '{' && c != ',') {
			continue
		}
		m := bareKeyRe.FindStringSubmatchIndex(t[i+1:])
		if m == nil {
			continue
		}
		b.WriteString(t[written : i+1])
		b.WriteString(t[i+1+m[2] : i+1+m[3]])
		b.WriteByte('"')
		b.WriteString(t[i+1+m[4] : i+1+m[5]])
		b.WriteString(`":`)
		written = i + 1 + m[1]
		i = written - 1
	}

	if written == 0 {
		return t
	}
	b.WriteString(t[written:])
	return b.String()
}

// quoteBareScalars wraps unquoted values in double quotes. A value runs from
// the whitespace after a ':' to the next ',', '}' or ']'; values that never
// reach one of those are left alone, as are strings, containers, numbers and
// the JSON literals. Colons inside string literals are not value separators,
// and characters consumed by a bare value are not rescanned.
func quoteBareScalars(t string) string {
	var b strings.Builder
	b.Grow(len(t) + 16)

	var s scanner
	written := 0
	for i := 0; i < len(t); i++ {
		if s.quote != 0 || t[i] != ':' {
			s.step(t[i])
			continue
		}

		valStart := skipSpace(t, i+1)
		if valStart >= len(t) {
			break
		}
		switch t[valStart] {
		case '"', '\'', '{', '[':
			continue
		}
		end := strings.IndexAny(t[valStart:], ",}]")
		if end < 0 {
			continue
		}
		end += valStart

		v := strings.TrimSpace(t[valStart:end])
		if v == "" {
			continue
		}

		b.WriteString(t[written:i])
		b.WriteString(": ")
		if keepScalar(v) {
			b.WriteString(v)
		} else {
			b.WriteByte('"')
			b.WriteString(escapeScalar(v))
			b.WriteByte('"')
		}
		written = end
		// the terminator itself is stepped on the next iteration
		i = end - 1
	}

	if written == 0 {
		return t
	}
	b.WriteString(t[written:])
	return b.String()
}

func keepScalar(v string) bool {
	switch v[0] {
	case '"', '\'', '{', '[':
		return true
	}
	switch v {
	case "true", "false", "null":
		return true
	}
	return plainNumberRe.MatchString(v)
}

func escapeScalar(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	return strings.ReplaceAll(v, `"`, `\"`)
}

func skipSpace(t string, i int) int {
	for i < len(t) {
		r, size := utf8.DecodeRuneInString(t[i:])
		if !unicode.IsSpace(r) {
			break
		}
		i += size
	}
	return i
}
