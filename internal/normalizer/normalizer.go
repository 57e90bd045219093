// Package normalizer turns the loosely shaped JSON returned by the search
// endpoint into an ordered list of product identifiers.
//
// Probes run in a fixed order and the first one that matches decides the
// result:
//
//  1. rejected:    {"rpta": false} is a business rejection, whatever else is present.
//  2. primary:     rpta.dataIA.ids[0] is authoritative, even when empty.
//  3. nested:      rpta.ids, rpta.productos, rpta.skus, rpta.data; first non-empty list wins.
//  4. top-level:   skus, productos, data; first list present wins, valid only if non-empty.
//
// A response matching none of them is neither valid nor an error.
package normalizer

import (
	"encoding/json"
	"strconv"
)

// RejectedMessage is reported when the upstream answers {"rpta": false}.
const RejectedMessage = "API returned rpta: false - request rejected"

// Probe names, reported on ValidationResult.Matched.
const (
	ProbeRejected = "rejected"
	ProbePrimary  = "rpta.dataIA.ids[0]"
	ProbeNested   = "rpta"
	ProbeTopLevel = "top-level"
)

var (
	nestedFields   = []string{"ids", "productos", "skus", "data"}
	topLevelFields = []string{"skus", "productos", "data"}
)

// ValidationResult is the outcome of Normalize. IsValid and HasBusinessError
// are never both true, and Identifiers is only non-empty when IsValid is.
type ValidationResult struct {
	IsValid          bool     `json:"isValid"`
	HasBusinessError bool     `json:"hasBusinessError"`
	ErrorMessage     string   `json:"errorMessage,omitempty"`
	Identifiers      []string `json:"identifiers"`
	// Matched names the probe that decided the result, e.g. "rpta.productos".
	// Empty when the shape was not recognised.
	Matched string `json:"matched,omitempty"`
}

// Recognized reports whether any probe matched the response shape.
func (v ValidationResult) Recognized() bool {
	return v.Matched != ""
}

type probe func(raw map[string]any) (ValidationResult, bool)

var probes = []probe{
	probeRejected,
	probePrimary,
	probeNested,
	probeTopLevel,
}

// Normalize extracts identifiers from a decoded JSON response. raw is
// whatever the transport decoded; anything other than a JSON object yields an
// unrecognised result.
func Normalize(raw any) ValidationResult {
	obj, ok := raw.(map[string]any)
	if !ok {
		return empty()
	}
	for _, p := range probes {
		if res, ok := p(obj); ok {
			return res
		}
	}
	return empty()
}

func empty() ValidationResult {
	return ValidationResult{Identifiers: []string{}}
}

func probeRejected(raw map[string]any) (ValidationResult, bool) {
	rpta, ok := raw["rpta"].(bool)
	if !ok || rpta {
		return ValidationResult{}, false
	}
	return ValidationResult{
		HasBusinessError: true,
		ErrorMessage:     RejectedMessage,
		Identifiers:      []string{},
		Matched:          ProbeRejected,
	}, true
}

func probePrimary(raw map[string]any) (ValidationResult, bool) {
	rpta, ok := raw["rpta"].(map[string]any)
	if !ok {
		return ValidationResult{}, false
	}
	dataIA, ok := rpta["dataIA"].(map[string]any)
	if !ok {
		return ValidationResult{}, false
	}
	ids, ok := dataIA["ids"].([]any)
	if !ok || len(ids) == 0 {
		return ValidationResult{}, false
	}
	first, ok := ids[0].([]any)
	if !ok {
		return ValidationResult{}, false
	}
	return valid(toIdentifiers(first), ProbePrimary), true
}

func probeNested(raw map[string]any) (ValidationResult, bool) {
	rpta, ok := raw["rpta"].(map[string]any)
	if !ok {
		return ValidationResult{}, false
	}
	for _, field := range nestedFields {
		list, ok := rpta[field].([]any)
		if !ok {
			continue
		}
		if ids := toIdentifiers(list); len(ids) > 0 {
			return valid(ids, ProbeNested+"."+field), true
		}
	}
	return ValidationResult{}, false
}

func probeTopLevel(raw map[string]any) (ValidationResult, bool) {
	for _, field := range topLevelFields {
		list, ok := raw[field].([]any)
		if !ok {
			continue
		}
		ids := toIdentifiers(list)
		return ValidationResult{
			IsValid:     len(ids) > 0,
			Identifiers: ids,
			Matched:     ProbeTopLevel + "." + field,
		}, true
	}
	return ValidationResult{}, false
}

func valid(ids []string, matched string) ValidationResult {
	return ValidationResult{IsValid: true, Identifiers: ids, Matched: matched}
}

// identifierKeys are read, in order, from object entries such as
// {"sku": "TE-24155", "title": ...}.
var identifierKeys = []string{"sku", "id", "codigo"}

// toIdentifiers keeps order. Numeric SKUs are rendered as text and objects
// contribute their sku field; entries with no usable identifier are dropped.
func toIdentifiers(list []any) []string {
	ids := make([]string, 0, len(list))
	for _, v := range list {
		if obj, ok := v.(map[string]any); ok {
			for _, key := range identifierKeys {
				if id, ok := scalarID(obj[key]); ok && id != "" {
					ids = append(ids, id)
					break
				}
			}
			continue
		}
		if id, ok := scalarID(v); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func scalarID(v any) (string, bool) {
	switch id := v.(type) {
	case string:
		return id, true
	case json.Number:
		return id.String(), true
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), true
	}
	return "", false
}
