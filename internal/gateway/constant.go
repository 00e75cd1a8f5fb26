package gateway

import "time"

// Server→client envelope types
const (
	TypeConnectionAck       = "connection_ack"
	TypeMessageReceived     = "message_received"
	TypeConversationUpdated = "conversation_updated"
	TypeMessageFlagged      = "message_flagged"
	TypePong                = "pong"
)

// Client→server envelope types
const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypePing        = "ping"
)

// Timeout constants
const (
	// WriteWait is time allowed to write a message to the peer
	WriteWait = 10 * time.Second

	// PongWait is time allowed to read the next pong message from the peer
	PongWait = 30 * time.Second

	// PingPeriod is period between pings. Must be less than PongWait
	PingPeriod = (PongWait * 9) / 10

	// MaxMessageSize is maximum message size allowed from peer
	MaxMessageSize = 51200
)

// DefaultWriteChannelSize is the per-connection outbound queue depth used
// when the configured size is missing or invalid.
const DefaultWriteChannelSize = 256

// Query parameter keys
const (
	QueryToken = "token"
)
