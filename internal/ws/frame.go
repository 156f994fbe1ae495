// Package ws carries the realtime transport: one upgraded socket per
// browser tab, JSON frames both ways, and a hub that fans events out to
// every session that should see them. The hub knows nothing about game
// rules; commands are handed to a Dispatcher and events arrive through
// the Publisher methods.
package ws

import (
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Frame is the wire envelope in both directions. Client commands carry
// an ack id so the reply can be correlated; server pushes leave it zero.
type Frame struct {
	Event string              `json:"event"`
	Data  jsoniter.RawMessage `json:"data,omitempty"`
	Ack   int64               `json:"ack,omitempty"`
}

// outFrame exists so outbound payloads marshal in place instead of
// round-tripping through RawMessage.
type outFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
	Ack   int64  `json:"ack,omitempty"`
}

func encodeFrame(event string, data any, ack int64) ([]byte, error) {
	return json.Marshal(outFrame{Event: event, Data: data, Ack: ack})
}

// ackEvent is the reserved reply event. Payloads are either the
// command's result or an errs.Wire body.
const ackEvent = "ack"
