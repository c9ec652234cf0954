// Package secret encrypts short secrets, such as game server RCON passwords,
// for storage at rest.
//
// An encoded secret is the lowercase hex of a random 16 byte IV followed by the
// lowercase hex of the AES-OFB ciphertext. Decoding needs nothing but the key,
// and the format is byte compatible with rows written by the previous panel.
package secret

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// IVSize is the IV length in bytes; its hex form is twice as long.
const IVSize = aes.BlockSize

// Codec errors.
var (
	ErrKeySize     = errors.New("secret: key must be 16, 24 or 32 bytes")
	ErrMalformed   = errors.New("secret: malformed encoded value")
	ErrInvalidUTF8 = errors.New("secret: decrypted value is not valid UTF-8")
)

// DecodeError describes why an encoded secret could not be opened.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "failed to decode secret: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Codec seals and opens secrets with a fixed key.
// A Codec is immutable and safe for concurrent use.
type Codec struct {
	block    cipher.Block
	random   io.Reader
	failures prometheus.Counter
}

// Option configures a Codec.
type Option func(*Codec)

// WithFailureCounter counts every secret that Decrypt could not open.
func WithFailureCounter(c prometheus.Counter) Option {
	return func(codec *Codec) {
		codec.failures = c
	}
}

// WithRandom replaces the IV source. Intended for tests.
func WithRandom(r io.Reader) Option {
	return func(codec *Codec) {
		codec.random = r
	}
}

// NewCodec creates a Codec for key. The key is used as raw bytes.
func NewCodec(key []byte, opts ...Option) (*Codec, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: got %d", ErrKeySize, len(key))
	}

	c := &Codec{block: block, random: rand.Reader}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Seal encrypts plaintext under a fresh IV.
func (c *Codec) Seal(plaintext string) (string, error) {
	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(c.random, iv); err != nil {
		return "", fmt.Errorf("failed to generate iv: %w", err)
	}

	src := []byte(plaintext)
	dst := make([]byte, len(src))
	cipher.NewOFB(c.block, iv).XORKeyStream(dst, src)

	return hex.EncodeToString(iv) + hex.EncodeToString(dst), nil
}

// Open decrypts an encoded secret. All failures are *DecodeError.
func (c *Codec) Open(encoded string) (string, error) {
	if len(encoded) < 2*IVSize {
		return "", &DecodeError{Err: fmt.Errorf("%w: %d characters", ErrMalformed, len(encoded))}
	}

	iv, err := hex.DecodeString(encoded[:2*IVSize])
	if err != nil {
		return "", &DecodeError{Err: fmt.Errorf("%w: iv: %v", ErrMalformed, err)}
	}
	src, err := hex.DecodeString(encoded[2*IVSize:])
	if err != nil {
		return "", &DecodeError{Err: fmt.Errorf("%w: ciphertext: %v", ErrMalformed, err)}
	}

	dst := make([]byte, len(src))
	cipher.NewOFB(c.block, iv).XORKeyStream(dst, src)

	if !utf8.Valid(dst) {
		return "", &DecodeError{Err: ErrInvalidUTF8}
	}
	return string(dst), nil
}

// Encrypt is Seal for an optional plaintext. A nil plaintext means
// "no password supplied" and yields nil.
func (c *Codec) Encrypt(plaintext *string) (*string, error) {
	if plaintext == nil {
		return nil, nil
	}
	encoded, err := c.Seal(*plaintext)
	if err != nil {
		return nil, err
	}
	return &encoded, nil
}

// Decrypt is Open for an optional value that never fails: a nil input or
// an undecodable value yields nil. Failures are logged through the context
// logger and counted, so a single corrupt row cannot break a listing.
func (c *Codec) Decrypt(ctx context.Context, encoded *string) *string {
	if encoded == nil {
		return nil
	}

	plaintext, err := c.Open(*encoded)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Failed to decrypt secret, returning null")
		if c.failures != nil {
			c.failures.Inc()
		}
		return nil
	}
	return &plaintext
}
