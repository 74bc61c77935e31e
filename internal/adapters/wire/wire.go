// Package wire holds the JSON shapes shared by every boundary adapter.
package wire

import (
	"bytes"
	"encoding/json"
	"io"
	"time"

	"github.com/PabloGalante/supportchat/internal/app/conversation"
	"github.com/PabloGalante/supportchat/internal/domain"
)

type SendRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId,omitempty"`
}

type SendResponse struct {
	Reply     string `json:"reply"`
	SessionID string `json:"sessionId"`
	Timestamp string `json:"timestamp"`
}

type HistoryRequest struct {
	SessionID string `json:"sessionId"`
	Limit     int    `json:"limit,omitempty"`
}

type HistoryResponse struct {
	SessionID string    `json:"sessionId"`
	Messages  []Message `json:"messages"`
}

type Message struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

type ErrorBody struct {
	Kind       string `json:"kind"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
	Retryable  bool   `json:"retryable"`
}

type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// DecodeSendRequest rejects bodies that are not a single JSON object.
func DecodeSendRequest(r io.Reader) (SendRequest, error) {
	var req SendRequest
	if err := decode(r, &req); err != nil {
		return SendRequest{}, err
	}
	return req, nil
}

func DecodeHistoryRequest(r io.Reader) (HistoryRequest, error) {
	var req HistoryRequest
	if err := decode(r, &req); err != nil {
		return HistoryRequest{}, err
	}
	return req, nil
}

func decode(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	if err := dec.Decode(v); err != nil {
		return conversation.InvalidInput("The request body must be a JSON object.")
	}
	if dec.More() {
		return conversation.InvalidInput("The request body must contain a single JSON object.")
	}
	return nil
}

func (r SendRequest) Input() conversation.SendMessageInput {
	return conversation.SendMessageInput{
		Message:        r.Message,
		ConversationID: r.SessionID,
	}
}

func (r HistoryRequest) Input() conversation.GetHistoryInput {
	return conversation.GetHistoryInput{
		ConversationID: r.SessionID,
		Limit:          r.Limit,
	}
}

func NewSendResponse(out *conversation.SendMessageOutput) SendResponse {
	return SendResponse{
		Reply:     out.Reply,
		SessionID: string(out.ConversationID),
		Timestamp: formatTime(out.Timestamp),
	}
}

func NewHistoryResponse(out *conversation.GetHistoryOutput) HistoryResponse {
	msgs := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, newMessage(m))
	}
	return HistoryResponse{
		SessionID: string(out.ConversationID),
		Messages:  msgs,
	}
}

func newMessage(m *domain.Message) Message {
	return Message{
		ID:        string(m.ID),
		Sender:    string(m.Role),
		Text:      m.Text,
		Timestamp: formatTime(m.CreatedAt),
	}
}

// NewErrorEnvelope maps err into the envelope and the status to send with it.
func NewErrorEnvelope(err error) (int, ErrorEnvelope) {
	derr := conversation.AsError(err)
	return derr.StatusCode, ErrorEnvelope{
		Error: ErrorBody{
			Kind:       string(derr.Kind),
			Message:    derr.Message,
			StatusCode: derr.StatusCode,
			Retryable:  derr.Retryable,
		},
	}
}

// NewRouteErrorEnvelope describes a request that reached no operation, such
// as an unknown path or an unsupported method.
func NewRouteErrorEnvelope(status int, message string) ErrorEnvelope {
	return ErrorEnvelope{
		Error: ErrorBody{
			Kind:       string(conversation.KindInvalidInput),
			Message:    message,
			StatusCode: status,
		},
	}
}

// Marshal encodes v, falling back to a fixed UNKNOWN envelope so callers
// always have bytes to send.
func Marshal(v any) []byte {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		return []byte(`{"error":{"kind":"UNKNOWN","message":"Something went wrong on our side. Please try again.","statusCode":500,"retryable":false}}` + "\n")
	}
	return buf.Bytes()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
