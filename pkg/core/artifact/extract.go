// Package artifact implements the JSON extraction and repair pipeline the
// Analyst Node Runtime uses to turn free-form model text into a structured
// artifact: locate the first '{' and the matching last '}', parse
// strictly, then fall back to progressively more lenient tiers
// (structural repair via json-repair, then Hjson) for the "the model
// almost gave us JSON" situation.
package artifact

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// ParseFailures counts extraction failures, for observability.
var ParseFailures atomic.Int64

// Result is the outcome of attempting to extract a structured artifact from
// model text.
type Result struct {
	JSON    string // the extracted JSON object on success (re-serialized only by the Hjson tier)
	Raw     string // original model text, always preserved
	Parsed  bool
	Fields  map[string]any // decoded top-level fields, for field-level inspection
}

// Extract locates the first '{' and matching last '}' and parses strictly;
// on failure, progressively more lenient strategies are tried before
// giving up. The raw content is never lost either way.
func Extract(content string) Result {
	braced, ok := sliceBraces(content)
	if ok {
		if fields, ok := tryStrict(braced); ok {
			return Result{JSON: braced, Raw: content, Parsed: true, Fields: fields}
		}
		if repaired, fields, ok := tryRepair(braced); ok {
			return Result{JSON: repaired, Raw: content, Parsed: true, Fields: fields}
		}
		if hjsonified, fields, ok := tryHjson(braced); ok {
			return Result{JSON: hjsonified, Raw: content, Parsed: true, Fields: fields}
		}
	}

	ParseFailures.Add(1)
	return Result{Raw: content, Parsed: false}
}

func sliceBraces(content string) (string, bool) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < 0 || end < start {
		return "", false
	}
	return content[start : end+1], true
}

func tryStrict(braced string) (map[string]any, bool) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(braced), &fields); err != nil {
		return nil, false
	}
	return fields, true
}

func tryRepair(braced string) (string, map[string]any, bool) {
	repaired, err := jsonrepair.RepairJSON(braced)
	if err != nil {
		return "", nil, false
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(repaired), &fields); err != nil {
		return "", nil, false
	}
	return repaired, fields, true
}

func tryHjson(braced string) (string, map[string]any, bool) {
	var fields map[string]any
	if err := hjson.Unmarshal([]byte(braced), &fields); err != nil {
		return "", nil, false
	}
	canonical, err := json.Marshal(fields)
	if err != nil {
		return "", nil, false
	}
	return string(canonical), fields, true
}

// StripPositionFields removes any field whose name contains "position"
// from a decoded JSON object, re-serializing the result. The model
// occasionally emits a position-like field despite instructions; rather
// than reject the whole artifact, the offending fields are stripped and
// the caller is expected to note the reduced confidence.
func StripPositionFields(fields map[string]any) (string, []string) {
	var stripped []string
	clean := make(map[string]any, len(fields))
	for k, v := range fields {
		lower := strings.ToLower(k)
		if strings.Contains(lower, "position") {
			stripped = append(stripped, k)
			continue
		}
		clean[k] = v
	}
	raw, err := json.Marshal(clean)
	if err != nil {
		return "", stripped
	}
	return string(raw), stripped
}

// HasContractViolation reports whether fields contains any position-like
// key.
func HasContractViolation(fields map[string]any) bool {
	for k := range fields {
		lower := strings.ToLower(k)
		if strings.Contains(lower, "position") || strings.Contains(lower, "recommended_position") || strings.Contains(lower, "position_adjustment") {
			return true
		}
	}
	return false
}

// ValidatePositionFree returns an error if the artifact carries any
// position-like field, or nil if it is clean. Useful in tests asserting
// responsibility separation directly against a JSON string.
func ValidatePositionFree(rawJSON string) error {
	var fields map[string]any
	if err := json.Unmarshal([]byte(rawJSON), &fields); err != nil {
		return fmt.Errorf("artifact: not valid JSON: %w", err)
	}
	if HasContractViolation(fields) {
		return fmt.Errorf("artifact: contains a position-like field, violating responsibility separation")
	}
	return nil
}
