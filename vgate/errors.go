//
// Copyright © The foghorn authors
//
// This file is distributed under the terms of the MIT License.
// See the LICENSE file at the top of this tree, or if it is missing a copy can
// be found at http://opensource.org/licenses/MIT
//

package vgate

import (
	"fmt"

	"github.com/pkg/errors"
)

// Errc identifies a voice session failure. Values of 4001 and above mirror
// the close codes sent by the voice server; smaller values originate in this
// client.
type Errc int

const (
	ErrIPDiscoveryFailed Errc = iota + 1
	ErrUnsupportedMode
	ErrBadSecretKeyLength
	ErrMalformedEndpoint
	ErrEncryptionFailed
)

const (
	ErrUnknownOpcode         Errc = 4001
	ErrNotAuthenticated      Errc = 4003
	ErrAuthenticationFailed  Errc = 4004
	ErrAlreadyAuthenticated  Errc = 4005
	ErrSessionNoLongerValid  Errc = 4006
	ErrSessionTimeout        Errc = 4009
	ErrServerNotFound        Errc = 4011
	ErrUnknownProtocol       Errc = 4012
	ErrDisconnected          Errc = 4014
	ErrVoiceServerCrashed    Errc = 4015
	ErrUnknownEncryptionMode Errc = 4016
)

var errcText = map[Errc]string{
	ErrIPDiscoveryFailed:     "IP discovery failed",
	ErrUnsupportedMode:       "unsupported encryption mode offered by server",
	ErrBadSecretKeyLength:    "secret key is not 32 bytes",
	ErrMalformedEndpoint:     "no host in voice endpoint",
	ErrEncryptionFailed:      "audio frame encryption failed",
	ErrUnknownOpcode:         "unknown opcode",
	ErrNotAuthenticated:      "not authenticated",
	ErrAuthenticationFailed:  "authentication failed",
	ErrAlreadyAuthenticated:  "already authenticated",
	ErrSessionNoLongerValid:  "session is no longer valid",
	ErrSessionTimeout:        "session timed out",
	ErrServerNotFound:        "voice server not found",
	ErrUnknownProtocol:       "unknown protocol",
	ErrDisconnected:          "disconnected from voice",
	ErrVoiceServerCrashed:    "voice server crashed",
	ErrUnknownEncryptionMode: "unknown encryption mode",
}

func (e Errc) Error() string {
	if s, ok := errcText[e]; ok {
		return s
	}
	return fmt.Sprintf("voice error %d", int(e))
}

// errcFromCloseCode translates a websocket close code from the voice server
// into the matching Errc. Codes outside the known set map to ErrDisconnected.
func errcFromCloseCode(code int) Errc {
	e := Errc(code)
	if _, ok := errcText[e]; ok && code >= 4000 {
		return e
	}
	return ErrDisconnected
}

// AsErrc unwraps err looking for a voice error kind.
func AsErrc(err error) (Errc, bool) {
	var e Errc
	if errors.As(err, &e) {
		return e, true
	}
	return 0, false
}
