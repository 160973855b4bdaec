// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// transaction payloads, list filters and date ranges.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ledger/internal/core"
	"ledger/internal/ledger"
)

const (
	maxBodyBytes = 64 << 10
	dateLayout   = "2006-01-02"
)

// RequestBodyParser reads a request body once and exposes its fields
// whether it was sent as JSON or form-encoded.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads at most maxBodyBytes from r.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{contentType: r.Header.Get("Content-Type")}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := bytes.TrimSpace(p.body)
	if len(trimmed) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if trimmed[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		p.jsonData = make(map[string]any)
		if err := dec.Decode(&p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}
	if trimmed[0] == '[' {
		p.err = errors.New("expected a JSON object")
		return p.err
	}

	p.formData, p.err = url.ParseQuery(string(trimmed))
	return p.err
}

// Lookup returns a sanitized value and whether the key was present.
func (p *RequestBodyParser) Lookup(key string) (string, bool) {
	if p.jsonData != nil {
		val, ok := p.jsonData[key]
		if !ok || val == nil {
			return "", false
		}
		return sanitizeInput(stringValue(val)), true
	}
	if p.formData != nil {
		if _, ok := p.formData[key]; ok {
			return sanitizeInput(p.formData.Get(key)), true
		}
	}
	return "", false
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// Empty reports whether the body carried no fields at all.
func (p *RequestBodyParser) Empty() bool {
	return len(p.jsonData) == 0 && len(p.formData) == 0
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput removes control characters other than tab, newline and
// carriage return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

// applySessionFields copies every present transaction field into s.
func applySessionFields(p *RequestBodyParser, s *ledger.EditSession) error {
	for _, name := range []string{ledger.FieldAmount, ledger.FieldCategory, ledger.FieldType, ledger.FieldNote, ledger.FieldDate} {
		if v, ok := p.Lookup(name); ok {
			if err := s.SetField(name, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// ParseListFilter reads the filter query parameters into a view state.
//
//	filter=date&start=2024-01-01&end=2024-01-31
//	filter=category&category=Food
//
// A missing or "none" filter clears it, as does a category filter without a
// category. Date bounds are calendar days in loc;
// the end covers its whole day.
func ParseListFilter(query url.Values, loc *time.Location) (*ledger.ViewState, error) {
	state := ledger.NewViewState()
	switch strings.ToLower(strings.TrimSpace(query.Get("filter"))) {
	case "", "none":
		return state, nil
	case "date":
		start, err := parseDay(query.Get("start"), "start", loc)
		if err != nil {
			return nil, err
		}
		end, err := parseDay(query.Get("end"), "end", loc)
		if err != nil {
			return nil, err
		}
		if !end.IsZero() {
			end = end.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		if !start.IsZero() && !end.IsZero() && end.Before(start) {
			return nil, &core.ValidationError{Field: "end", Reason: "end date must not be before start date"}
		}
		state.SelectDateRange(start, end)
		return state, nil
	case "category":
		raw := strings.TrimSpace(query.Get("category"))
		if raw == "" {
			// No category selected matches everything.
			state.SelectCategory("")
			return state, nil
		}
		c, err := core.ParseCategory(raw)
		if err != nil {
			return nil, &core.ValidationError{Field: "category", Reason: err.Error()}
		}
		state.SelectCategory(c)
		return state, nil
	}
	return nil, &core.ValidationError{Field: "filter", Reason: "unknown filter " + strconv.Quote(query.Get("filter"))}
}

type rangeBody struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// ParseScope decodes a JSON {start,end} body of calendar days. Empty bounds
// are open. A body of null yields nil.
func ParseScope(w http.ResponseWriter, r *http.Request, loc *time.Location) (*core.Scope, error) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, &core.ValidationError{Field: "body", Reason: err.Error()}
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var body rangeBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, &core.ValidationError{Field: "body", Reason: "malformed JSON"}
	}
	start, err := parseDay(body.Start, "start", loc)
	if err != nil {
		return nil, err
	}
	end, err := parseDay(body.End, "end", loc)
	if err != nil {
		return nil, err
	}
	scope := core.Scope{Start: start, End: end}
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	return &scope, nil
}

func parseDay(raw, field string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(dateLayout, raw, loc)
	if err != nil {
		return time.Time{}, &core.ValidationError{Field: field, Reason: core.ErrInvalidDate.Error()}
	}
	return t, nil
}
