// Package results turns raw search payloads into a uniform result set.
package results

import (
	"encoding/json"
	"errors"
	"fmt"

	"tweetsaver/internal/tweet"
)

// DefaultLimit is the number of records kept from one response when no
// limit is configured.
const DefaultLimit = 10

// ErrParse marks a payload that could not be decoded.
var ErrParse = errors.New("malformed search payload")

// ParseError describes a payload that failed to decode.
type ParseError struct {
	Offset int64
	Err    error
}

func (e *ParseError) Error() string {
	if e.Offset > 0 {
		return fmt.Sprintf("%s at offset %d: %v", ErrParse, e.Offset, e.Err)
	}
	return fmt.Sprintf("%s: %v", ErrParse, e.Err)
}

func (e *ParseError) Unwrap() []error {
	return []error{ErrParse, e.Err}
}

// SearchResult is a normalized response. Error and a non-empty Records are
// mutually exclusive.
type SearchResult struct {
	Query   string         `json:"query"`
	Records []tweet.Record `json:"results"`
	Error   string         `json:"error,omitempty"`
}

// Failed reports whether the endpoint reported an error.
func (r SearchResult) Failed() bool {
	return r.Error != ""
}

// Lookup returns the record at the given positional index.
func (r SearchResult) Lookup(index int) (tweet.Record, bool) {
	if index < 0 || index >= len(r.Records) {
		return tweet.Record{}, false
	}
	return r.Records[index], true
}

// Normalize converts raw into a SearchResult. raw may be textual ([]byte,
// string, json.RawMessage) or already structured (tweet.APIResponse, a
// pointer to one, or a decoded map). Records are indexed 0..n-1 in their
// original order and capped at limit.
func Normalize(raw any, limit int) (SearchResult, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	payload, err := decode(raw)
	if err != nil {
		return SearchResult{}, err
	}

	if msg, failed := payload.ErrorMessage(); failed {
		if msg == "" {
			msg = "search failed"
		}
		return SearchResult{
			Query:   payload.Query,
			Error:   msg,
			Records: []tweet.Record{},
		}, nil
	}

	n := len(payload.Results)
	if n > limit {
		n = limit
	}
	records := make([]tweet.Record, 0, n)
	for i := 0; i < n; i++ {
		rec := payload.Results[i].Record()
		rec.Index = i
		records = append(records, rec)
	}

	return SearchResult{
		Query:   payload.Query,
		Records: records,
	}, nil
}

func decode(raw any) (tweet.APIResponse, error) {
	switch v := raw.(type) {
	case nil:
		return tweet.APIResponse{}, &ParseError{Err: errors.New("empty payload")}
	case tweet.APIResponse:
		return v, nil
	case *tweet.APIResponse:
		if v == nil {
			return tweet.APIResponse{}, &ParseError{Err: errors.New("nil payload")}
		}
		return *v, nil
	case []byte:
		return decodeText(v)
	case json.RawMessage:
		return decodeText(v)
	case string:
		return decodeText([]byte(v))
	case map[string]any:
		// Round-trip through JSON so decoded maps follow the same field rules.
		data, err := json.Marshal(v)
		if err != nil {
			return tweet.APIResponse{}, &ParseError{Err: err}
		}
		return decodeText(data)
	default:
		return tweet.APIResponse{}, &ParseError{Err: fmt.Errorf("unsupported payload type %T", raw)}
	}
}

func decodeText(data []byte) (tweet.APIResponse, error) {
	var payload tweet.APIResponse
	if err := json.Unmarshal(data, &payload); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return tweet.APIResponse{}, &ParseError{Offset: syntaxErr.Offset, Err: err}
		}
		return tweet.APIResponse{}, &ParseError{Err: err}
	}
	return payload, nil
}
