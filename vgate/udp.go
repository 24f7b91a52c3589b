//
// Copyright © The foghorn authors
//
// This file is distributed under the terms of the MIT License.
// See the LICENSE file at the top of this tree, or if it is missing a copy can
// be found at http://opensource.org/licenses/MIT
//

package vgate

import (
	"bytes"
	"encoding/binary"
	"net"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// datagramConn is the slice of *net.UDPConn the gateway uses for the media
// socket. Tests substitute scripted peers.
type datagramConn interface {
	Write(b []byte) (int, error)
	Read(b []byte) (int, error)
	SetReadDeadline(t time.Time) error
	Close() error
}

// dialVoiceUDP connects the media socket. The media path is IPv4 only.
func dialVoiceUDP(host string, port uint16) (datagramConn, error) {
	conn, err := net.Dial("udp4", net.JoinHostPort(host, strconv.Itoa(int(port))))
	if err != nil {
		return nil, errors.Wrap(err, "connecting media socket")
	}
	return conn.(*net.UDPConn), nil
}

const (
	discoveryPacketSize = 70
	discoveryTimeout    = 200 * time.Millisecond
	discoveryRetries    = 5
)

// discoverIP performs the reflection exchange on the media socket: a 70-byte
// probe carrying the SSRC in network order, answered by the server with this
// socket's externally visible address and port. The probe is resent after a
// 200ms deadline, discoveryRetries times beyond the first attempt. The same
// socket carries media afterwards.
func discoverIP(conn datagramConn, ssrc uint32) (string, uint16, error) {
	probe := make([]byte, discoveryPacketSize)
	binary.BigEndian.PutUint32(probe[:4], ssrc)
	resp := make([]byte, discoveryPacketSize)

	for attempt := 0; attempt <= discoveryRetries; attempt++ {
		if _, err := conn.Write(probe); err != nil {
			logrus.WithError(err).Warn("could not send discovery probe")
		}
		if err := conn.SetReadDeadline(time.Now().Add(discoveryTimeout)); err != nil {
			return "", 0, errors.Wrap(err, "arming discovery deadline")
		}
		n, err := conn.Read(resp)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			return "", 0, errors.Wrap(err, "receiving discovery response")
		}
		if n < discoveryPacketSize {
			continue
		}
		if binary.BigEndian.Uint32(resp[:4]) != ssrc {
			continue
		}
		// external IP is a NUL-terminated string following the SSRC;
		// a response with no terminator is undecodable
		end := bytes.IndexByte(resp[4:discoveryPacketSize-2], 0)
		if end < 0 {
			return "", 0, ErrIPDiscoveryFailed
		}
		ip := string(resp[4 : 4+end])
		port := binary.LittleEndian.Uint16(resp[discoveryPacketSize-2:])
		conn.SetReadDeadline(time.Time{})
		return ip, port, nil
	}
	return "", 0, ErrIPDiscoveryFailed
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
