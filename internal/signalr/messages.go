package signalr

import (
	"encoding/json"
	"fmt"

	"github.com/Guliveer/livetiming-connector/internal/constants"
)

// Invocation is a client-to-hub call frame.
type Invocation struct {
	Hub       string `json:"H"`
	Method    string `json:"M"`
	Arguments []any  `json:"A"`
	ID        int    `json:"I"`
}

// SubscribeRequest builds the Subscribe call for the given data streams.
func SubscribeRequest(streams []string) Invocation {
	return Invocation{
		Hub:       constants.HubName,
		Method:    constants.SubscribeMethod,
		Arguments: []any{streams},
		ID:        constants.SubscribeInvocationID,
	}
}

// Encode returns the JSON text of the call.
func (i Invocation) Encode() (string, error) {
	data, err := json.Marshal(i)
	if err != nil {
		return "", fmt.Errorf("encoding %s.%s invocation: %w", i.Hub, i.Method, err)
	}
	return string(data), nil
}

// FeedInvocation is one server-to-client feed call. The mock hub uses it to
// build client method invocation frames.
type FeedInvocation struct {
	Hub       string            `json:"H"`
	Method    string            `json:"M"`
	Arguments []json.RawMessage `json:"A"`
}

// InitFrame is the handshake frame sent by the hub after the upgrade.
type InitFrame struct {
	ConnectionID string            `json:"C"`
	S            int               `json:"S"`
	Messages     []json.RawMessage `json:"M"`
}

// NewInitFrame builds an init frame for the given message id.
func NewInitFrame(messageID string) InitFrame {
	return InitFrame{ConnectionID: messageID, S: 1, Messages: []json.RawMessage{}}
}
