// Package jsonextract turns free-form model output into a parsed JSON value.
// It locates the first JSON container in the text, then tries a fixed list of
// syntactic repairs until one parses. It knows nothing about domain schemas.
package jsonextract

import (
	"encoding/json"
	"strings"

	apperrors "grain-workers/internal/common/errors"
)

// HeadLength is how much cleaned text a parse failure carries for diagnostics.
const HeadLength = 220

// Candidate names, in the order they are tried.
const (
	CandidateRaw            = "raw"
	CandidateRepaired       = "repaired"
	CandidateClosed         = "closed"
	CandidateClosedRepaired = "closed_then_repaired"
	CandidateRepairedClosed = "repaired_then_closed"
)

// Report describes how a successful extraction was reached.
type Report struct {
	// Candidate is the name of the first candidate that parsed.
	Candidate string
	// Complete is false when the brackets never balanced (likely truncation).
	Complete bool
}

// Extract parses the first plausible JSON value in text.
func Extract(text string) (interface{}, error) {
	v, _, err := ExtractWithReport(text)
	return v, err
}

// ExtractWithReport is Extract plus a description of which repair succeeded.
func ExtractWithReport(text string) (interface{}, Report, error) {
	cleaned := strings.TrimSpace(StripFences(text))
	start := FindStart(cleaned)
	if start < 0 {
		return nil, Report{}, apperrors.NewModelOutputNotJSONError()
	}

	span, complete := FirstComplete(cleaned[start:])
	if !complete {
		span = cleaned[start:]
	}
	span = strings.TrimSpace(span)

	v, name, err := parseBestEffort(span)
	if err != nil {
		return nil, Report{Complete: complete}, apperrors.NewModelOutputNotValidJSONError(
			err, apperrors.Truncate(cleaned, HeadLength), !complete)
	}
	return v, Report{Candidate: name, Complete: complete}, nil
}

type candidate struct {
	name string
	text string
}

func candidates(text string) []candidate {
	repaired := Repair(text)
	closed := AutoClose(text)
	return []candidate{
		{CandidateRaw, text},
		{CandidateRepaired, repaired},
		{CandidateClosed, closed},
		{CandidateClosedRepaired, Repair(closed)},
		{CandidateRepairedClosed, AutoClose(repaired)},
	}
}

// parseBestEffort returns the first candidate that parses, or the last
// parse error when none do.
func parseBestEffort(text string) (interface{}, string, error) {
	var lastErr error
	for _, c := range candidates(text) {
		var v interface{}
		if err := json.Unmarshal([]byte(c.text), &v); err != nil {
			lastErr = err
			continue
		}
		return v, c.name, nil
	}
	return nil, "", lastErr
}
