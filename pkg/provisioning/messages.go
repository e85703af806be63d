package provisioning

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Provisioning message types.
const (
	// MsgHandshakeRequest opens the exchange and carries the client's
	// public value.
	MsgHandshakeRequest uint8 = 1

	// MsgHandshakeResponse carries the server's public value and salt.
	MsgHandshakeResponse uint8 = 2

	// MsgCredentials offers station credentials.
	MsgCredentials uint8 = 3

	// MsgCredentialsResult reports the verification outcome.
	MsgCredentialsResult uint8 = 4

	// MsgSessionEnd requests the session to end.
	MsgSessionEnd uint8 = 5
)

// msgTypeName returns the message type name for trace output.
func msgTypeName(msgType uint8) string {
	switch msgType {
	case MsgHandshakeRequest:
		return "HANDSHAKE_REQUEST"
	case MsgHandshakeResponse:
		return "HANDSHAKE_RESPONSE"
	case MsgCredentials:
		return "CREDENTIALS"
	case MsgCredentialsResult:
		return "CREDENTIALS_RESULT"
	case MsgSessionEnd:
		return "SESSION_END"
	default:
		return "UNKNOWN"
	}
}

// Credential result status codes.
const (
	StatusSuccess         uint8 = 0
	StatusAuthFailed      uint8 = 1
	StatusNetworkNotFound uint8 = 2
	StatusBadSecurity     uint8 = 3
	StatusInternalError   uint8 = 255
)

// MaxFrameSize bounds a single CBOR frame on the wire.
const MaxFrameSize = 4096

// HandshakeRequest opens the exchange.
// CBOR: { 1: msgType, 2: security, 3: clientPublic }
type HandshakeRequest struct {
	MsgType      uint8  `cbor:"1,keyasint"`
	Security     uint8  `cbor:"2,keyasint"`
	ClientPublic []byte `cbor:"3,keyasint,omitempty"`
}

// HandshakeResponse carries the server's public value and the HKDF salt.
// CBOR: { 1: msgType, 2: status, 3: serverPublic, 4: salt }
type HandshakeResponse struct {
	MsgType      uint8  `cbor:"1,keyasint"`
	Status       uint8  `cbor:"2,keyasint"`
	ServerPublic []byte `cbor:"3,keyasint,omitempty"`
	Salt         []byte `cbor:"4,keyasint,omitempty"`
}

// Credentials offers station credentials. With SecurityNone the SSID and
// passphrase are carried in the clear; with SecurityEncrypted they are a
// sealed credentialPayload.
// CBOR: { 1: msgType, 2: ssid, 3: passphrase, 4: sealed, 5: nonce }
type Credentials struct {
	MsgType    uint8  `cbor:"1,keyasint"`
	SSID       string `cbor:"2,keyasint,omitempty"`
	Passphrase string `cbor:"3,keyasint,omitempty"`
	Sealed     []byte `cbor:"4,keyasint,omitempty"`
	Nonce      []byte `cbor:"5,keyasint,omitempty"`
}

// credentialPayload is the plaintext inside Credentials.Sealed.
// CBOR: { 1: ssid, 2: passphrase }
type credentialPayload struct {
	SSID       string `cbor:"1,keyasint"`
	Passphrase string `cbor:"2,keyasint,omitempty"`
}

// CredentialsResult reports the verification outcome.
// CBOR: { 1: msgType, 2: status }
type CredentialsResult struct {
	MsgType uint8 `cbor:"1,keyasint"`
	Status  uint8 `cbor:"2,keyasint"`
}

// SessionEnd requests the session to end.
// CBOR: { 1: msgType }
type SessionEnd struct {
	MsgType uint8 `cbor:"1,keyasint"`
}

// writeFrame CBOR-encodes v and writes it with a 2-byte big-endian
// length prefix.
func writeFrame(w io.Writer, v any) error {
	data, err := cbor.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if len(data) > MaxFrameSize {
		return fmt.Errorf("frame too large: %d bytes", len(data))
	}

	var length [2]byte
	binary.BigEndian.PutUint16(length[:], uint16(len(data)))
	if _, err := w.Write(length[:]); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// readFrame reads a length-prefixed CBOR frame.
func readFrame(r io.Reader) ([]byte, error) {
	var length [2]byte
	if _, err := io.ReadFull(r, length[:]); err != nil {
		return nil, err
	}

	size := binary.BigEndian.Uint16(length[:])
	if size == 0 || size > MaxFrameSize {
		return nil, fmt.Errorf("%w: frame size %d", ErrInvalidMessage, size)
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}

// peekMsgType decodes only the message type of a frame.
func peekMsgType(data []byte) (uint8, error) {
	var header struct {
		MsgType uint8 `cbor:"1,keyasint"`
	}
	if err := cbor.Unmarshal(data, &header); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return header.MsgType, nil
}
