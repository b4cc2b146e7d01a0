// File: registry/message.go
// Package registry
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Control-channel wire format. One JSON object per request:
//
//	{ "id": <u16>, "msg": <0|1|2> }
//
// The engine replies "1" to a successful registration, "0" to a failed one,
// and an empty frame to ready/stopping so the request/reply socket stays
// balanced.

package registry

import (
	"encoding/json"

	"github.com/momentics/hioload-fwd/api"
)

// MsgType is the client lifecycle event code.
type MsgType int

const (
	// PodStarting registers a client with the engine.
	PodStarting MsgType = 0
	// PodReady signals that client initialization is complete.
	PodReady MsgType = 1
	// PodStopping signals that the client is ending.
	PodStopping MsgType = 2
)

func (t MsgType) String() string {
	switch t {
	case PodStarting:
		return "starting"
	case PodReady:
		return "ready"
	case PodStopping:
		return "stopping"
	default:
		return "invalid"
	}
}

// Reply frames.
const (
	ReplyOK    = "1"
	ReplyError = "0"
	ReplyAck   = ""
)

// Msg is one parsed control message.
type Msg struct {
	ID   api.ClientID
	Type MsgType
}

// wireMsg separates decoding from Msg so missing fields are detectable.
type wireMsg struct {
	ID  *uint16 `json:"id"`
	Msg *int    `json:"msg"`
}

// ParseMsg decodes a control frame. Missing fields or wrong types fail with
// api.ErrUnknownMsgFormat; out-of-range codes are left for dispatch to
// reject.
func ParseMsg(raw []byte) (Msg, error) {
	var w wireMsg
	if err := json.Unmarshal(raw, &w); err != nil {
		return Msg{}, api.ErrUnknownMsgFormat
	}
	if w.ID == nil || w.Msg == nil {
		return Msg{}, api.ErrUnknownMsgFormat
	}
	return Msg{ID: api.ClientID(*w.ID), Type: MsgType(*w.Msg)}, nil
}

// Encode renders the wire form of m.
func (m Msg) Encode() []byte {
	raw, _ := json.Marshal(struct {
		ID  uint16 `json:"id"`
		Msg int    `json:"msg"`
	}{ID: uint16(m.ID), Msg: int(m.Type)})
	return raw
}
