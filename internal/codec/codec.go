// internal/codec/codec.go
package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
)

// BlockSize is the size of every frame on the wire: one AES block.
const BlockSize = aes.BlockSize

// ErrInvalidLength is returned for any frame that is not exactly one block.
var ErrInvalidLength = errors.New("codec: frame must be exactly 16 bytes")

// DefaultKey is the AES-128 key shared by BM6 monitors.
var DefaultKey = []byte{108, 101, 97, 103, 101, 110, 100, 255, 254, 48, 49, 48, 48, 48, 48, 57}

// DefaultCommand asks the monitor to start sending voltage/temperature notifications.
var DefaultCommand = []byte{0xd1, 0x55, 0x07, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}

// Frame is one encrypted or decrypted block.
type Frame [BlockSize]byte

// Hex renders the frame as 32 lowercase hex characters.
func (f Frame) Hex() string {
	return hex.EncodeToString(f[:])
}

// Codec encrypts and decrypts single frames in ECB fashion.
// Every frame is exactly one block; there is no chaining between calls.
type Codec struct {
	block   cipher.Block
	command Frame

	once   sync.Once
	cached Frame
}

// New builds a codec from a 16-byte AES key and a 16-byte command template.
func New(key, command []byte) (*Codec, error) {
	if len(key) != BlockSize {
		return nil, fmt.Errorf("codec: key must be %d bytes, got %d", BlockSize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("codec: %w", err)
	}
	return NewWithBlock(block, command)
}

// NewWithBlock builds a codec around an existing block cipher.
func NewWithBlock(block cipher.Block, command []byte) (*Codec, error) {
	if block == nil {
		return nil, errors.New("codec: block cipher required")
	}
	if block.BlockSize() != BlockSize {
		return nil, fmt.Errorf("codec: block size must be %d, got %d", BlockSize, block.BlockSize())
	}
	if len(command) != BlockSize {
		return nil, fmt.Errorf("codec: command must be %d bytes, got %d", BlockSize, len(command))
	}

	c := &Codec{block: block}
	copy(c.command[:], command)
	return c, nil
}

// PrecomputeCommand encrypts the command template on first use and
// returns the cached ciphertext on every call after that.
func (c *Codec) PrecomputeCommand() Frame {
	c.once.Do(func() {
		c.block.Encrypt(c.cached[:], c.command[:])
	})
	return c.cached
}

// Encrypt encrypts exactly one block.
func (c *Codec) Encrypt(plaintext []byte) (Frame, error) {
	var out Frame
	if len(plaintext) != BlockSize {
		return out, fmt.Errorf("%w: got %d", ErrInvalidLength, len(plaintext))
	}
	c.block.Encrypt(out[:], plaintext)
	return out, nil
}

// Decrypt decrypts exactly one block. Inputs of any other length are
// rejected before the cipher is touched.
func (c *Codec) Decrypt(frame []byte) (Frame, error) {
	var out Frame
	if len(frame) != BlockSize {
		return out, fmt.Errorf("%w: got %d", ErrInvalidLength, len(frame))
	}
	c.block.Decrypt(out[:], frame)
	return out, nil
}

// DecryptHex decrypts one block and renders it as the lowercase hex string
// the response parser works on.
func (c *Codec) DecryptHex(frame []byte) (string, error) {
	out, err := c.Decrypt(frame)
	if err != nil {
		return "", err
	}
	return out.Hex(), nil
}
