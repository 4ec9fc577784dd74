package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MessageType defines the type of protocol message
type MessageType string

const (
	// Browser -> server actions
	TypeSearch MessageType = "search" // run a search for Query
	TypeDrop   MessageType = "drop"   // save the result the drag payload points at
	TypeDelete MessageType = "delete" // remove a saved tweet by id
	TypeFollow MessageType = "follow" // toggle periodic refresh of the current query

	// Server -> browser
	TypePanelUpdate   MessageType = "panel_update"   // re-rendered panels
	TypeErrorResponse MessageType = "error_response" // an action failed outright
)

// BaseMessage contains common fields for all protocol messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewBase returns a BaseMessage with a fresh id and the current time.
func NewBase(t MessageType) BaseMessage {
	return BaseMessage{Type: t, ID: uuid.NewString(), Timestamp: time.Now()}
}

// SearchRequest asks for a search.
type SearchRequest struct {
	BaseMessage
	Query string `json:"query"`
}

// DropRequest carries the drag transfer payload (the result index).
type DropRequest struct {
	BaseMessage
	Payload string `json:"payload"`
}

// DeleteRequest removes a saved tweet.
type DeleteRequest struct {
	BaseMessage
	TweetID string `json:"tweet_id"`
}

// FollowRequest turns following on or off for this connection.
type FollowRequest struct {
	BaseMessage
	Enabled bool `json:"enabled"`
}

// PanelUpdate is the state of the page after an action.
type PanelUpdate struct {
	BaseMessage
	State       string `json:"state"`
	Query       string `json:"query,omitempty"`
	ResultsHTML string `json:"results_html"`
	SavedHTML   string `json:"saved_html"`
	SavedCount  int    `json:"saved_count"`
	Placeholder bool   `json:"placeholder"`
	Following   bool   `json:"following"`
	ReplyTo     string `json:"reply_to,omitempty"` // id of the request this answers
}

// ErrorResponse reports an action that could not be carried out.
type ErrorResponse struct {
	BaseMessage
	Message string `json:"message"`
	ReplyTo string `json:"reply_to,omitempty"`
}

// NewErrorResponse builds an ErrorResponse for the request replyTo.
func NewErrorResponse(replyTo, message string) *ErrorResponse {
	return &ErrorResponse{BaseMessage: NewBase(TypeErrorResponse), Message: message, ReplyTo: replyTo}
}

// ParseMessage parses a JSON message into the appropriate struct
func ParseMessage(data []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, err
	}

	var msg interface{}
	switch base.Type {
	case TypeSearch:
		msg = &SearchRequest{}
	case TypeDrop:
		msg = &DropRequest{}
	case TypeDelete:
		msg = &DeleteRequest{}
	case TypeFollow:
		msg = &FollowRequest{}
	case TypePanelUpdate:
		msg = &PanelUpdate{}
	case TypeErrorResponse:
		msg = &ErrorResponse{}
	default:
		return nil, fmt.Errorf("unknown message type %q", base.Type)
	}

	if err := json.Unmarshal(data, msg); err != nil {
		return nil, err
	}
	return msg, nil
}
