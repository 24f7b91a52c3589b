//
// Copyright © The foghorn authors
//
// This file is distributed under the terms of the MIT License.
// See the LICENSE file at the top of this tree, or if it is missing a copy can
// be found at http://opensource.org/licenses/MIT
//

package vgate

import "encoding/json"

type wsRequest struct {
	Op   int         `json:"op"`
	Data interface{} `json:"d"`
}

type wsEvent struct {
	Op   int             `json:"op"`
	Data json.RawMessage `json:"d"`
}

const (
	opIdentify = iota
	opSelectProtocol
	opReady
	opHeartbeat
	opSessionDescription
	opSpeaking
	opHeartbeatAck
	opResume
	opHello
	opResumed
	_
	_
	_
	opClientDisconnect
)

const modeSalsaPoly = "xsalsa20_poly1305"

type identifyPayload struct {
	ServerID  uint64 `json:"server_id"`
	UserID    uint64 `json:"user_id"`
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
}

type readyPayload struct {
	SSRC  uint32   `json:"ssrc"`
	Port  uint16   `json:"port"`
	Modes []string `json:"modes"`
}

type helloPayload struct {
	HeartbeatInterval int `json:"heartbeat_interval"`
}

// SecretKey arrives as a JSON array of numbers, not a base64 string, so it
// cannot decode straight into a byte slice.
type sessionPayload struct {
	Mode      string `json:"mode"`
	SecretKey []int  `json:"secret_key"`
}

type speakingPayload struct {
	Speaking bool `json:"speaking"`
	Delay    int  `json:"delay"`
}

type selectProtocolPayload struct {
	Protocol string             `json:"protocol"`
	Data     selectProtocolData `json:"data"`
}

type selectProtocolData struct {
	Address string `json:"address"`
	Port    uint16 `json:"port"`
	Mode    string `json:"mode"`
}

type resumePayload struct {
	ServerID  uint64 `json:"server_id"`
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
}
