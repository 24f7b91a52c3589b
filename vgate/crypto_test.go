package vgate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/nacl/secretbox"
)

func TestEncryptFrameRoundTrip(t *testing.T) {
	key := make([]byte, secretKeySize)
	for i := range key {
		key[i] = byte(i)
	}
	var nonce [nonceSize]byte
	writeRTPHeader(nonce[:rtpHeaderSize], 0x0102, 0x03040506, 0x11223344)

	plaintext := []byte("not really opus data")
	sealed, err := encryptFrame(nil, plaintext, &nonce, key)
	require.NoError(t, err)
	assert.Len(t, sealed, len(plaintext)+macSize)

	var k [secretKeySize]byte
	copy(k[:], key)
	opened, ok := secretbox.Open(nil, sealed, &nonce, &k)
	require.True(t, ok, "peer decryption must succeed")
	assert.Equal(t, plaintext, opened)
}

func TestEncryptFrameDeterministic(t *testing.T) {
	key := make([]byte, secretKeySize)
	var nonce [nonceSize]byte
	a, err := encryptFrame(nil, []byte{1, 2, 3}, &nonce, key)
	require.NoError(t, err)
	b, err := encryptFrame(nil, []byte{1, 2, 3}, &nonce, key)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEncryptFrameAppendsToDst(t *testing.T) {
	key := make([]byte, secretKeySize)
	var nonce [nonceSize]byte
	hdr := []byte{0x80, 0x78}
	out, err := encryptFrame(hdr, []byte{9}, &nonce, key)
	require.NoError(t, err)
	assert.Equal(t, hdr, out[:2])
	assert.Len(t, out, 2+1+macSize)
}

func TestEncryptFrameBadKeyLength(t *testing.T) {
	var nonce [nonceSize]byte
	for _, n := range []int{0, 16, 31, 33} {
		_, err := encryptFrame(nil, []byte{1}, &nonce, make([]byte, n))
		assert.ErrorIs(t, err, ErrEncryptionFailed, "key length %d", n)
	}
}
