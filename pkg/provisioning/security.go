package provisioning

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// Key sizes for the encrypted exchange.
const (
	// SessionKeySize is the size of the derived session key in bytes.
	SessionKeySize = chacha20poly1305.KeySize

	// SaltSize is the size of the HKDF salt in bytes.
	SaltSize = 16
)

// hkdfInfo binds derived keys to this protocol.
var hkdfInfo = []byte("provlink-session-key-v1")

// newKeyPair generates an X25519 key pair.
func newKeyPair() (private, public []byte, err error) {
	private = make([]byte, curve25519.ScalarSize)
	if _, err := io.ReadFull(rand.Reader, private); err != nil {
		return nil, nil, err
	}

	public, err = curve25519.X25519(private, curve25519.Basepoint)
	if err != nil {
		return nil, nil, err
	}
	return private, public, nil
}

// newSalt generates a random HKDF salt.
func newSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// deriveSessionKey derives the shared session key from the X25519 shared
// secret and the setup key. Both sides must hold the same setup key for
// the derived keys to match, which is what authenticates the exchange.
func deriveSessionKey(private, peerPublic, salt []byte, setupKey string) ([]byte, error) {
	shared, err := curve25519.X25519(private, peerPublic)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}

	secret := append(append([]byte{}, shared...), []byte(setupKey)...)
	reader := hkdf.New(sha256.New, secret, salt, hkdfInfo)

	key := make([]byte, SessionKeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// seal encrypts plaintext with the session key.
func seal(key, plaintext []byte) (sealed, nonce []byte, err error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, err
	}

	return aead.Seal(nil, nonce, plaintext, nil), nonce, nil
}

// open decrypts sealed data with the session key.
func open(key, sealed, nonce []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, ErrInvalidMessage
	}

	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	return plaintext, nil
}
