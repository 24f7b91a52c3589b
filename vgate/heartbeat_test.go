package vgate

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdjustInterval(t *testing.T) {
	// three quarters of the server value, with integer division first
	assert.Equal(t, 30936*time.Millisecond, adjustInterval(41250))
	assert.Equal(t, 750*time.Millisecond, adjustInterval(1000))
	assert.Equal(t, 3*time.Millisecond, adjustInterval(5))
}

func TestHeartbeaterBeatsAtCadence(t *testing.T) {
	var mu sync.Mutex
	var nonces []int32
	expired := make(chan struct{}, 1)

	var h *heartbeater
	h = newHeartbeater(20, func(n int32) error { // 15ms effective
		mu.Lock()
		nonces = append(nonces, n)
		mu.Unlock()
		h.ack()
		return nil
	}, func() { expired <- struct{}{} })

	go h.run()
	time.Sleep(80 * time.Millisecond)
	h.stop()

	mu.Lock()
	count := len(nonces)
	last := nonces[count-1]
	mu.Unlock()
	require.GreaterOrEqual(t, count, 3, "expected several beats in 80ms at 15ms cadence")
	select {
	case <-expired:
		t.Fatal("acked heartbeats must not expire")
	default:
	}

	h.mu.Lock()
	assert.Equal(t, last, h.lastNonce)
	h.mu.Unlock()
}

func TestHeartbeaterExpiresWithoutAck(t *testing.T) {
	var mu sync.Mutex
	beats := 0
	expired := make(chan struct{})

	h := newHeartbeater(20, func(int32) error {
		mu.Lock()
		beats++
		mu.Unlock()
		return nil
	}, func() { close(expired) })

	go h.run()
	select {
	case <-expired:
	case <-time.After(time.Second):
		t.Fatal("unacked heartbeat never expired")
	}
	mu.Lock()
	assert.Equal(t, 1, beats, "liveness is lost at the first unacked deadline")
	mu.Unlock()
}

func TestHeartbeaterStopIsIdempotent(t *testing.T) {
	h := newHeartbeater(1000, func(int32) error { return nil }, func() {})
	h.stop()
	h.stop()
}
