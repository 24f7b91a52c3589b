//
// Copyright © The foghorn authors
//
// This file is distributed under the terms of the MIT License.
// See the LICENSE file at the top of this tree, or if it is missing a copy can
// be found at http://opensource.org/licenses/MIT
//

package vgate

import (
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// frameConn is the slice of *websocket.Conn the gateway needs. Tests provide
// scripted implementations.
type frameConn interface {
	WriteJSON(v interface{}) error
	ReadMessage() (int, []byte, error)
	Close() error
}

// dialVoiceWS opens the TLS websocket to the voice server. The dialer
// verifies the certificate against host; the protocol version is pinned in
// the request path.
func dialVoiceWS(host string) (frameConn, error) {
	conn, _, err := websocket.DefaultDialer.Dial("wss://"+host+"/?v=3", nil)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to voice endpoint")
	}
	return conn, nil
}

// closeError maps a read failure to the error kind matching the server's
// close code, when one was sent.
func closeError(err error) error {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return errcFromCloseCode(ce.Code)
	}
	return errors.Wrap(err, "reading voice socket")
}
