package gateway

import (
	"encoding/json"

	"github.com/YetiPanda/jade-ecosystem-sub005/internal/entity"
)

// Envelope is the wire-level message frame shared by every variant sent over
// a live connection, in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope builds an envelope from a payload struct.
func NewEnvelope(typ string, payload interface{}) (Envelope, error) {
	if payload == nil {
		return Envelope{Type: typ}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: typ, Payload: data}, nil
}

// ConnectionAckPayload acknowledges a registered connection.
type ConnectionAckPayload struct {
	ClientId string `json:"client_id"`
	UserId   string `json:"user_id"`
	UserType string `json:"user_type"`
}

// MessageReceivedPayload carries a newly sent message to subscribed clients.
type MessageReceivedPayload struct {
	Message        *entity.MessageInfo `json:"message"`
	ConversationId string              `json:"conversation_id"`
}

// ConversationUpdatedPayload carries a new or changed conversation to its
// participants' user-scoped connections.
type ConversationUpdatedPayload struct {
	Conversation *entity.ConversationInfo `json:"conversation"`
}

// MessageFlaggedPayload alerts admin connections about a flagged message.
type MessageFlaggedPayload struct {
	MessageId string `json:"message_id"`
	Reason    string `json:"reason"`
	FlaggedBy string `json:"flagged_by"`
}

// SubscribePayload is the client request to start or stop receiving a
// conversation's live events.
type SubscribePayload struct {
	ConversationId string `json:"conversation_id"`
}
