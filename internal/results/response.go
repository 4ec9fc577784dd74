package results

import "errors"

// Response is the outcome of processing one search payload: either Ok or Err.
type Response interface {
	isResponse()
}

// Ok carries a result set with at least one record.
type Ok struct {
	Result SearchResult
}

// Err carries a failure description. Parse is set when the payload itself
// was unreadable rather than reported as an error by the endpoint.
type Err struct {
	Query       string
	Description string
	Parse       bool
}

func (Ok) isResponse()  {}
func (Err) isResponse() {}

// Process normalizes raw and decides the outcome at this boundary. A payload
// with no records is an Err, as is one that fails to parse.
func Process(raw any, limit int) Response {
	result, err := Normalize(raw, limit)
	if err != nil {
		return Err{
			Description: err.Error(),
			Parse:       errors.Is(err, ErrParse),
		}
	}
	if result.Failed() {
		return Err{Query: result.Query, Description: result.Error}
	}
	if len(result.Records) == 0 {
		return Err{Query: result.Query, Description: "no results"}
	}
	return Ok{Result: result}
}
