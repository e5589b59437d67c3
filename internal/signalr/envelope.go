// Package signalr decodes the classic SignalR 1.5 wire format used by the
// live timing hub: envelope classification, payload extraction, frame
// reassembly and the subscribe request.
package signalr

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Guliveer/livetiming-connector/internal/jsonutil"
)

// ErrMalformedEnvelope is returned by Decode when a frame is not valid JSON.
var ErrMalformedEnvelope = errors.New("malformed envelope")

// Kind identifies the envelope variant.
type Kind int

const (
	KindUnknown Kind = iota
	KindInit
	KindKeepAlive
	KindGroupMembership
	KindHubResponse
	KindClientMethodInvocation
)

func (k Kind) String() string {
	switch k {
	case KindInit:
		return "Init"
	case KindKeepAlive:
		return "KeepAlive"
	case KindGroupMembership:
		return "GroupMembership"
	case KindHubResponse:
		return "HubResponse"
	case KindClientMethodInvocation:
		return "ClientMethodInvocation"
	default:
		return "Unknown"
	}
}

// Envelope is one top-level protocol message. The concrete type is one of
// Init, KeepAlive, GroupMembership, HubResponse, ClientMethodInvocation or
// Unknown.
type Envelope interface {
	Kind() Kind
}

// Init marks the completed handshake.
type Init struct {
	ConnectionID string
	// Data holds the M items as raw object texts.
	Data []string
}

// KeepAlive is the literal empty object.
type KeepAlive struct{}

// GroupMembership carries a group token update.
type GroupMembership struct {
	ConnectionID string
	GroupToken   string
	Items        []string
}

// HubResponse is the reply to a client hub call.
type HubResponse struct {
	CallID string
	Result json.RawMessage
}

// ClientMethodInvocation carries one or more server-to-client calls.
type ClientMethodInvocation struct {
	ConnectionID string
	Items        []string
}

// Unknown keeps the raw text of a frame no other variant matched.
type Unknown struct {
	Raw string
}

func (Init) Kind() Kind                   { return KindInit }
func (KeepAlive) Kind() Kind              { return KindKeepAlive }
func (GroupMembership) Kind() Kind        { return KindGroupMembership }
func (HubResponse) Kind() Kind            { return KindHubResponse }
func (ClientMethodInvocation) Kind() Kind { return KindClientMethodInvocation }
func (Unknown) Kind() Kind                { return KindUnknown }

const keepAliveFrame = "{}"

// Decode classifies a complete text frame. Checks run in a fixed order
// because a frame can satisfy more than one shape: the exact keep-alive
// text, then an integral S of 1, a textual G, an object R, an array M.
// Only a JSON syntax error is returned as an error.
func Decode(raw string) (Envelope, error) {
	if raw == keepAliveFrame {
		return KeepAlive{}, nil
	}

	var probe json.RawMessage
	if err := json.Unmarshal([]byte(raw), &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	var root map[string]json.RawMessage
	if err := json.Unmarshal(probe, &root); err != nil {
		// Valid JSON that is not an object.
		return Unknown{Raw: raw}, nil
	}

	if s, ok := jsonutil.Integral(root["S"]); ok && s == 1 {
		return Init{
			ConnectionID: jsonutil.Text(root["C"], ""),
			Data:         objectTexts(root["M"]),
		}, nil
	}

	if jsonutil.IsTextual(root["G"]) {
		return GroupMembership{
			ConnectionID: jsonutil.Text(root["C"], ""),
			GroupToken:   jsonutil.Text(root["G"], ""),
			Items:        objectTexts(root["M"]),
		}, nil
	}

	if jsonutil.IsObject(root["R"]) {
		return HubResponse{
			CallID: jsonutil.Text(root["I"], ""),
			Result: root["R"],
		}, nil
	}

	if items, ok := jsonutil.Elements(root["M"]); ok {
		texts := make([]string, 0, len(items))
		for _, item := range items {
			texts = append(texts, string(item))
		}
		return ClientMethodInvocation{
			ConnectionID: jsonutil.Text(root["C"], ""),
			Items:        texts,
		}, nil
	}

	return Unknown{Raw: raw}, nil
}

// objectTexts returns the object members of a JSON array as raw text.
// Anything else yields an empty slice.
func objectTexts(raw json.RawMessage) []string {
	items, ok := jsonutil.Elements(raw)
	if !ok {
		return []string{}
	}
	texts := make([]string, 0, len(items))
	for _, item := range items {
		if jsonutil.IsObject(item) {
			texts = append(texts, string(item))
		}
	}
	return texts
}
