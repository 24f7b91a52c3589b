//
// Copyright © The foghorn authors
//
// This file is distributed under the terms of the MIT License.
// See the LICENSE file at the top of this tree, or if it is missing a copy can
// be found at http://opensource.org/licenses/MIT
//

package vgate

import "encoding/binary"

const rtpHeaderSize = 12

// writeRTPHeader fills a 12-byte RTP header: version 2, payload type 120,
// then sequence number, timestamp and SSRC in network order.
func writeRTPHeader(b []byte, seq uint16, timestamp, ssrc uint32) {
	b[0] = 0x80
	b[1] = 0x78
	binary.BigEndian.PutUint16(b[2:4], seq)
	binary.BigEndian.PutUint32(b[4:8], timestamp)
	binary.BigEndian.PutUint32(b[8:12], ssrc)
}

// Play transmits one opus frame, announcing the speaking state first when
// needed. It may be called only after Connect has reported success.
func (g *Gateway) Play(frame AudioFrame) error {
	g.mu.Lock()
	if g.state != stateConnected || !g.keySet {
		g.mu.Unlock()
		return ErrDisconnected
	}
	speaking := g.speaking
	g.mu.Unlock()

	if !speaking {
		err := g.sendJSON(wsRequest{Op: opSpeaking, Data: speakingPayload{Speaking: true, Delay: 0}})
		if err != nil {
			return err
		}
		g.mu.Lock()
		g.speaking = true
		g.mu.Unlock()
		g.log.Debug("now speaking")
	}
	g.sendAudio(frame)
	return nil
}

// Stop clears the speaking state.
func (g *Gateway) Stop() error {
	g.mu.Lock()
	g.speaking = false
	g.mu.Unlock()
	g.log.Debug("stopped speaking")
	return g.sendJSON(wsRequest{Op: opSpeaking, Data: speakingPayload{Speaking: false, Delay: 0}})
}

// sendAudio seals one frame into an RTP packet and emits it on the media
// socket. The nonce is the packet's own header padded with zeros, binding
// the ciphertext to its sequence number, timestamp and SSRC. Counters
// advance once per sealed frame; a send failure is logged but does not
// poison the session.
func (g *Gateway) sendAudio(frame AudioFrame) {
	g.mu.Lock()
	defer g.mu.Unlock()

	pkt := make([]byte, rtpHeaderSize, rtpHeaderSize+len(frame.Opus)+macSize)
	writeRTPHeader(pkt, g.seq, g.timestamp, g.ssrc)

	var nonce [nonceSize]byte
	copy(nonce[:], pkt[:rtpHeaderSize])

	sealed, err := encryptFrame(pkt, frame.Opus, &nonce, g.secretKey[:])
	if err != nil {
		g.log.WithError(err).Error("dropping frame: encryption failed")
		return
	}
	g.seq++
	g.timestamp += frame.FrameCount

	if _, err := g.udp.Write(sealed); err != nil {
		g.log.WithError(err).Warn("dropping audio packet")
	}
}
