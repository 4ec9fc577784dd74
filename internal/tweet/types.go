package tweet

import (
	"encoding/json"
	"strings"
)

// Record is a single tweet as returned by the search endpoint and as stored
// in the saved set. The JSON shape mirrors the endpoint's field names so a
// stored value can be decoded by anything that understands the API.
type Record struct {
	ID          string `json:"id_str"`
	FromUser    string `json:"from_user"`
	Text        string `json:"text"`
	CreatedAt   string `json:"created_at"`
	InReplyToID string `json:"in_reply_to_status_id_str,omitempty"`
	ToUser      string `json:"to_user,omitempty"`

	// Index is the record's position inside one result set. It is assigned
	// when a response is normalized and never persisted.
	Index int `json:"-"`
}

// IsReply reports whether the tweet answers another tweet.
func (r Record) IsReply() bool {
	return strings.TrimSpace(r.InReplyToID) != ""
}

// Valid reports whether the record carries the durable identity.
func (r Record) Valid() bool {
	return r.ID != ""
}

// APIResponse is the raw search payload.
type APIResponse struct {
	Query   string      `json:"query"`
	Results []APIResult `json:"results"`
	// Error is whatever the endpoint put under "error": usually a string,
	// sometimes an object with a message.
	Error json.RawMessage `json:"error,omitempty"`
}

// ErrorMessage reports whether the payload carries an error and describes
// it. null, false, 0 and "" count as no error.
func (a APIResponse) ErrorMessage() (string, bool) {
	if !hasValue(a.Error) {
		return "", false
	}
	var text string
	if err := json.Unmarshal(a.Error, &text); err == nil {
		return text, true
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(a.Error, &obj); err == nil && obj.Message != "" {
		return obj.Message, true
	}
	return strings.TrimSpace(string(a.Error)), true
}

// APIResult is one raw result entry. Unknown fields are ignored.
type APIResult struct {
	IDStr                string          `json:"id_str"`
	FromUser             string          `json:"from_user"`
	Text                 string          `json:"text"`
	CreatedAt            string          `json:"created_at"`
	InReplyToStatusID    json.RawMessage `json:"in_reply_to_status_id,omitempty"`
	InReplyToStatusIDStr string          `json:"in_reply_to_status_id_str,omitempty"`
	ToUser               string          `json:"to_user,omitempty"`
}

// Record converts the raw entry into a Record. The reply id is only kept
// when the numeric in_reply_to_status_id is present and not null, matching
// how the endpoint marks replies.
func (a APIResult) Record() Record {
	rec := Record{
		ID:        a.IDStr,
		FromUser:  a.FromUser,
		Text:      a.Text,
		CreatedAt: a.CreatedAt,
		ToUser:    a.ToUser,
	}
	if hasValue(a.InReplyToStatusID) {
		rec.InReplyToID = a.InReplyToStatusIDStr
		if rec.InReplyToID == "" {
			rec.InReplyToID = strings.Trim(string(a.InReplyToStatusID), `"`)
		}
	}
	return rec
}

func hasValue(raw json.RawMessage) bool {
	v := strings.TrimSpace(string(raw))
	return v != "" && v != "null" && v != "0" && v != `""` && v != "false"
}
