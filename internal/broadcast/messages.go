// Package broadcast fans prediction events out to connected WebSocket
// observers. Delivery is best effort: a failing observer is dropped
// without affecting the others.
package broadcast

import "time"

// Message types sent over the wire.
const (
	TypeNewPrediction    = "new_prediction"
	TypeStatisticsUpdate = "statistics_update"
	TypeSystemMessage    = "system_message"
	TypePong             = "pong"
)

// Message is a typed payload to be delivered to observers.
type Message struct {
	Type string
	Data any
}

// NewPrediction builds a new_prediction message.
func NewPrediction(data any) Message {
	return Message{Type: TypeNewPrediction, Data: data}
}

// StatisticsUpdate builds a statistics_update message.
func StatisticsUpdate(data any) Message {
	return Message{Type: TypeStatisticsUpdate, Data: data}
}

// SystemMessage builds a system_message with free-form text.
func SystemMessage(text string) Message {
	return Message{Type: TypeSystemMessage, Data: map[string]string{"message": text}}
}

// Pong builds the reply to a ping control message.
func Pong() Message {
	return Message{Type: TypePong, Data: nil}
}

// envelope is the wire format for every outgoing message. Each delivery
// is stamped with the send time and the connection count at that moment.
type envelope struct {
	Type             string `json:"type"`
	Timestamp        string `json:"timestamp"`
	TotalConnections int    `json:"total_connections"`
	Data             any    `json:"data,omitempty"`
}

func newEnvelope(msg Message, totalConnections int) envelope {
	return envelope{
		Type:             msg.Type,
		Timestamp:        time.Now().Format(time.RFC3339),
		TotalConnections: totalConnections,
		Data:             msg.Data,
	}
}
