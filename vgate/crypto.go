//
// Copyright © The foghorn authors
//
// This file is distributed under the terms of the MIT License.
// See the LICENSE file at the top of this tree, or if it is missing a copy can
// be found at http://opensource.org/licenses/MIT
//

package vgate

import "golang.org/x/crypto/nacl/secretbox"

const (
	secretKeySize = 32
	nonceSize     = 24
	macSize       = secretbox.Overhead
)

// encryptFrame seals plaintext with XSalsa20-Poly1305, appending ciphertext
// and the 16-byte tag to dst. The key must be exactly 32 bytes.
func encryptFrame(dst, plaintext []byte, nonce *[nonceSize]byte, key []byte) ([]byte, error) {
	if len(key) != secretKeySize {
		return nil, ErrEncryptionFailed
	}
	var k [secretKeySize]byte
	copy(k[:], key)
	return secretbox.Seal(dst, plaintext, nonce, &k), nil
}
