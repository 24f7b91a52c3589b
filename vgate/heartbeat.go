//
// Copyright © The foghorn authors
//
// This file is distributed under the terms of the MIT License.
// See the LICENSE file at the top of this tree, or if it is missing a copy can
// be found at http://opensource.org/licenses/MIT
//

package vgate

import (
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// heartbeater keeps the voice websocket alive. The server supplies an
// interval in its hello payload, but its acks lag behind it, so beats go out
// at three quarters of the requested cadence.
type heartbeater struct {
	interval time.Duration
	send     func(nonce int32) error
	expired  func()

	mu        sync.Mutex
	lastNonce int32
	acked     bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

// adjustInterval derives the effective heartbeat period from the
// hello payload value in milliseconds.
func adjustInterval(ms int) time.Duration {
	return time.Duration(ms/4*3) * time.Millisecond
}

// newHeartbeater prepares a heartbeater that emits through send and calls
// expired once when a beat's deadline passes unacknowledged.
func newHeartbeater(intervalMS int, send func(int32) error, expired func()) *heartbeater {
	return &heartbeater{
		interval: adjustInterval(intervalMS),
		send:     send,
		expired:  expired,
		acked:    true,
		stopCh:   make(chan struct{}),
	}
}

// run beats immediately and then on every tick until stopped or expired.
func (h *heartbeater) run() {
	t := time.NewTicker(h.interval)
	defer t.Stop()
	for {
		if !h.beat() {
			h.expired()
			return
		}
		select {
		case <-t.C:
		case <-h.stopCh:
			return
		}
	}
}

// beat sends one heartbeat, reporting false when the previous beat was never
// acknowledged.
func (h *heartbeater) beat() bool {
	h.mu.Lock()
	if !h.acked {
		h.mu.Unlock()
		return false
	}
	h.acked = false
	h.lastNonce = rand.Int31()
	nonce := h.lastNonce
	h.mu.Unlock()

	logrus.WithField("nonce", nonce).Debug("voice heartbeat")
	if err := h.send(nonce); err != nil {
		logrus.WithError(err).Warn("error writing voice heartbeat")
	}
	return true
}

// ack records the acknowledgement of the most recent beat. The nonce the
// server echoes back is not compared with lastNonce; any ack counts.
func (h *heartbeater) ack() {
	h.mu.Lock()
	h.acked = true
	h.mu.Unlock()
}

func (h *heartbeater) stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
}
