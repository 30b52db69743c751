// internal/jsonextract/extract_test.go
package jsonextract

import (
	stderrors "errors"
	"strings"
	"testing"

	apperrors "grain-workers/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func passByName(t *testing.T, name string) Pass {
	t.Helper()
	for _, p := range Passes {
		if p.Name == name {
			return p
		}
	}
	t.Fatalf("no repair pass named %q", name)
	return Pass{}
}

func obj(kv ...interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i].(string)] = kv[i+1]
	}
	return out
}

func arr(items ...interface{}) []interface{} {
	return items
}

// ==========================
// Extract Tests
// ==========================

func TestExtract_Success(t *testing.T) {
	tests := []struct {
		name              string
		input             string
		expected          interface{}
		expectedCandidate string
		expectedComplete  bool
	}{
		{
			name:              "fenced object is returned unchanged",
			input:             "```json\n{\"a\":1,\"b\":[true,null]}\n```",
			expected:          obj("a", float64(1), "b", arr(true, nil)),
			expectedCandidate: CandidateRaw,
			expectedComplete:  true,
		},
		{
			name:              "prose preamble with bare key and trailing comma",
			input:             "Here you go:\n```json\n{id: 1, items: [1,2,3,]}\n```",
			expected:          obj("id", float64(1), "items", arr(float64(1), float64(2), float64(3))),
			expectedCandidate: CandidateRepaired,
			expectedComplete:  true,
		},
		{
			name:              "missing closers are appended",
			input:             `{"a": {"b": [1, 2`,
			expected:          obj("a", obj("b", arr(float64(1), float64(2)))),
			expectedCandidate: CandidateClosed,
			expectedComplete:  false,
		},
		{
			name:              "truncated inside a string",
			input:             `{"title": "hello wor`,
			expected:          obj("title", "hello wor"),
			expectedCandidate: CandidateClosed,
			expectedComplete:  false,
		},
		{
			name:              "truncated on a dangling escape",
			input:             `{"t": "ab\`,
			expected:          obj("t", `ab"`),
			expectedCandidate: CandidateClosed,
			expectedComplete:  false,
		},
		{
			name:              "python literals",
			input:             `{"a": None, "b": True, "c": False}`,
			expected:          obj("a", nil, "b", true, "c", false),
			expectedCandidate: CandidateRepaired,
			expectedComplete:  true,
		},
		{
			name:              "bare scalar values",
			input:             `{"name": egg, "origin": Asia}`,
			expected:          obj("name", "egg", "origin", "Asia"),
			expectedCandidate: CandidateRepaired,
			expectedComplete:  true,
		},
		{
			name:              "curly quotes",
			input:             "{\u201ca\u201d: \u201cb\u201d}",
			expected:          obj("a", "b"),
			expectedCandidate: CandidateRepaired,
			expectedComplete:  true,
		},
		{
			name:              "closing brace inside a string does not end the span",
			input:             `Result: {"x": "has } brace"} and then {"y": 2}`,
			expected:          obj("x", "has } brace"),
			expectedCandidate: CandidateRaw,
			expectedComplete:  true,
		},
		{
			name:              "array before object",
			input:             `list: [{"a": 1}] done`,
			expected:          arr(obj("a", float64(1))),
			expectedCandidate: CandidateRaw,
			expectedComplete:  true,
		},
		{
			name:              "colon inside a string next to a bare value",
			input:             `{"note": "tip, hint: boil", "name": egg}`,
			expected:          obj("note", "tip, hint: boil", "name", "egg"),
			expectedCandidate: CandidateRepaired,
			expectedComplete:  true,
		},
		{
			name:              "trailing comma and truncation together",
			input:             `{"cards": [{"cardId": "FR_ORIGIN", "facts": ["a", "b",`,
			expected:          obj("cards", arr(obj("cardId", "FR_ORIGIN", "facts", arr("a", "b")))),
			expectedCandidate: CandidateClosedRepaired,
			expectedComplete:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, report, err := ExtractWithReport(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, value)
			assert.Equal(t, tt.expectedCandidate, report.Candidate)
			assert.Equal(t, tt.expectedComplete, report.Complete)
		})
	}
}

func TestExtract_NotJSON(t *testing.T) {
	inputs := []string{
		"",
		"sorry, I cannot help with that",
		"```\nplain text\n```",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			_, err := Extract(input)
			require.Error(t, err)

			var extErr *apperrors.ExtractionError
			require.True(t, stderrors.As(err, &extErr))
			assert.Equal(t, apperrors.ErrCodeModelOutputNotJSON, extErr.Code)
			assert.Equal(t, "MODEL_OUTPUT_NOT_JSON", err.Error())
		})
	}
}

func TestExtract_NotValidJSON(t *testing.T) {
	tests := []struct {
		name              string
		input             string
		expectedTruncated bool
	}{
		{
			name:              "balanced but meaningless",
			input:             "prefix {] suffix",
			expectedTruncated: false,
		},
		{
			name:              "unbalanced and unrepairable",
			input:             `["a" "b"`,
			expectedTruncated: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(tt.input)
			require.Error(t, err)

			var extErr *apperrors.ExtractionError
			require.True(t, stderrors.As(err, &extErr))
			assert.Equal(t, apperrors.ErrCodeModelOutputNotValidJSON, extErr.Code)
			assert.Equal(t, tt.expectedTruncated, extErr.Truncated)
			assert.True(t, strings.HasPrefix(err.Error(), "MODEL_OUTPUT_NOT_VALID_JSON: "))
			assert.Contains(t, err.Error(), "| head=")
		})
	}
}

func TestExtract_HeadIsBounded(t *testing.T) {
	input := "{]" + strings.Repeat("x", 500)

	_, err := Extract(input)
	require.Error(t, err)

	var extErr *apperrors.ExtractionError
	require.True(t, stderrors.As(err, &extErr))
	assert.Equal(t, HeadLength, len([]rune(extErr.Head)))
}

// ==========================
// Scanner Tests
// ==========================

func TestFirstComplete(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		expectedSpan string
		expectedOK   bool
	}{
		{"string-aware", `noise {"a": "}"} more {"b": 1}`, `{"a": "}"}`, true},
		{"single quotes are strings too", `{'a': ']'} x`, `{'a': ']'}`, true},
		{"nested arrays", `[1, [2, 3]] tail`, `[1, [2, 3]]`, true},
		{"escaped quote inside string", `{"a": "x\"}"}`, `{"a": "x\"}"}`, true},
		{"unbalanced", `{"a": [1, 2`, "", false},
		{"no container", "no json here", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			span, ok := FirstComplete(tt.input)
			assert.Equal(t, tt.expectedOK, ok)
			assert.Equal(t, tt.expectedSpan, span)
		})
	}
}

func TestAutoClose(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{`{"a": [1, 2`, `{"a": [1, 2]}`},
		{`{"a": "x`, `{"a": "x"}`},
		{`{"a": "x\`, `{"a": "x\""}`},
		{`{}`, `{}`},
		{`[{"a": 1}, {"b": `, `[{"a": 1}, {"b": }]`},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, AutoClose(tt.input))
		})
	}
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, "{}\n", StripFences("```json\n{}\n```"))
	assert.Equal(t, "x  y", StripFences("x ``` y"))
}

// ==========================
// Repair Pass Tests
// ==========================

func TestRepairPasses(t *testing.T) {
	tests := []struct {
		pass     string
		input    string
		expected string
	}{
		{"bom", "\uFEFF{}", "{}"},
		{"smart_quotes", "\u201cx\u201d \u2018y\u2019", `"x" 'y'`},
		{"fences", "```js\n[1]```", "[1]"},
		{"trailing_commas", `{"a":[1,2,],}`, `{"a":[1,2]}`},
		{"trailing_commas", "[1,\n  ]", "[1]"},
		{"bare_keys", `{a: 1, b_2 :2}`, `{"a": 1, "b_2":2}`},
		{"bare_keys", `{"quoted": 1}`, `{"quoted": 1}`},
		{"bare_keys", `{"a":"x, note: y", b: 1}`, `{"a":"x, note: y", "b": 1}`},
		{"literals", `{"a":None,"b": True}`, `{"a": null,"b": true}`},
		{"literals", `{"a": undefined, "b": False}`, `{"a": null, "b": false}`},
		{"literals", `{"a": Nonesuch}`, `{"a": Nonesuch}`},
		{"bare_scalars", `{"a": egg, "b": 2, "c": "x"}`, `{"a": "egg", "b": 2, "c": "x"}`},
		{"bare_scalars", `{"a": say "hi"}`, `{"a": "say \"hi\""}`},
		{"bare_scalars", `{"a": C:\tmp}`, `{"a": "C:\\tmp"}`},
		{"bare_scalars", `{"a": -1.5, "b": null, "c": [x]}`, `{"a": -1.5, "b": null, "c": [x]}`},
		{"bare_scalars", `{"url": "http://x.y/z"}`, `{"url": "http://x.y/z"}`},
		{"bare_scalars", `{"a": open`, `{"a": open`},
		{"bare_scalars", `{"a":"x, note: y", "b": z}`, `{"a":"x, note: y", "b": "z"}`},
		{"bare_scalars", `{'a': 'k: v', "b": two words}`, `{'a': 'k: v', "b": "two words"}`},
	}

	for _, tt := range tests {
		t.Run(tt.pass+"/"+tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, passByName(t, tt.pass).Apply(tt.input))
		})
	}
}

func TestRepair_AllPassesCompose(t *testing.T) {
	input := "  ```json\n{name: egg, tags: ['a',], ok: True,}\n```  "

	assert.Equal(t, "{\"name\": \"egg\", \"tags\": ['a'], \"ok\": true}\n", Repair(input))
}

func TestCandidates_NamesMatchTransforms(t *testing.T) {
	text := `{a: 1, "b": [2,`
	got := candidates(text)
	require.Len(t, got, 5)

	names := make([]string, 0, len(got))
	for _, c := range got {
		names = append(names, c.name)
	}
	assert.Equal(t, []string{
		CandidateRaw,
		CandidateRepaired,
		CandidateClosed,
		CandidateClosedRepaired,
		CandidateRepairedClosed,
	}, names)

	assert.Equal(t, "closed_then_repaired", CandidateClosedRepaired)
	assert.Equal(t, Repair(AutoClose(text)), got[3].text)
	assert.Equal(t, "repaired_then_closed", CandidateRepairedClosed)
	assert.Equal(t, AutoClose(Repair(text)), got[4].text)
}
