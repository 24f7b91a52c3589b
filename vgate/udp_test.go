package vgate

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSSRC = 0x11223344

func TestDiscoverIPFirstAttempt(t *testing.T) {
	udp := &scriptUDP{responses: [][]byte{discoveryResponse(testSSRC, "1.2.3.4", 2000)}}

	ip, port, err := discoverIP(udp, testSSRC)
	require.NoError(t, err)
	assert.Equal(t, "1.2.3.4", ip)
	assert.Equal(t, uint16(2000), port)

	sent := udp.sentPackets()
	require.Len(t, sent, 1)
	require.Len(t, sent[0], discoveryPacketSize)
	assert.Equal(t, uint32(testSSRC), binary.BigEndian.Uint32(sent[0][:4]))
	for _, b := range sent[0][4:] {
		assert.Zero(t, b, "probe padding must be zero")
	}
}

func TestDiscoverIPPortIsLittleEndian(t *testing.T) {
	resp := discoveryResponse(testSSRC, "1.2.3.4", 2000)
	assert.Equal(t, byte(0xD0), resp[68])
	assert.Equal(t, byte(0x07), resp[69])

	udp := &scriptUDP{responses: [][]byte{resp}}
	_, port, err := discoverIP(udp, testSSRC)
	require.NoError(t, err)
	assert.Equal(t, uint16(2000), port)
}

func TestDiscoverIPRetries(t *testing.T) {
	cases := []struct {
		name     string
		timeouts int
	}{
		{"second attempt", 1},
		{"fifth attempt", 4},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			responses := make([][]byte, c.timeouts)
			responses = append(responses, discoveryResponse(testSSRC, "5.6.7.8", 50123))
			udp := &scriptUDP{responses: responses}

			ip, _, err := discoverIP(udp, testSSRC)
			require.NoError(t, err)
			assert.Equal(t, "5.6.7.8", ip)
			assert.Len(t, udp.sentPackets(), c.timeouts+1)
		})
	}
}

func TestDiscoverIPExhaustsRetries(t *testing.T) {
	udp := &scriptUDP{}

	_, _, err := discoverIP(udp, testSSRC)
	assert.ErrorIs(t, err, ErrIPDiscoveryFailed)
	assert.Len(t, udp.sentPackets(), 1+discoveryRetries)
}

func TestDiscoverIPIgnoresForeignSSRC(t *testing.T) {
	udp := &scriptUDP{responses: [][]byte{
		discoveryResponse(0xDEADBEEF, "9.9.9.9", 1),
		discoveryResponse(testSSRC, "1.2.3.4", 2000),
	}}

	ip, _, err := discoverIP(udp, testSSRC)
	require.NoError(t, err)
	assert.Equal(t, "1.2.3.4", ip)
	assert.Len(t, udp.sentPackets(), 2)
}

func TestDiscoverIPIgnoresShortResponse(t *testing.T) {
	udp := &scriptUDP{responses: [][]byte{
		discoveryResponse(testSSRC, "1.2.3.4", 2000)[:40],
		discoveryResponse(testSSRC, "1.2.3.4", 2000),
	}}

	_, _, err := discoverIP(udp, testSSRC)
	require.NoError(t, err)
	assert.Len(t, udp.sentPackets(), 2)
}

func TestDiscoverIPRejectsUnterminatedAddress(t *testing.T) {
	resp := discoveryResponse(testSSRC, "", 2000)
	for i := 4; i < discoveryPacketSize-2; i++ {
		resp[i] = 'x'
	}
	udp := &scriptUDP{responses: [][]byte{resp}}

	_, _, err := discoverIP(udp, testSSRC)
	assert.ErrorIs(t, err, ErrIPDiscoveryFailed)
}
