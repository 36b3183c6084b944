package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
)

// ModeAPIKey is the only mode that enforces a key.
const ModeAPIKey = "apikey"

var (
	// ErrMissingKey is returned by Guard.Check when no key was presented.
	ErrMissingKey = errors.New("missing api key")

	// ErrInvalidKey is returned by Guard.Check for a key that does not match.
	ErrInvalidKey = errors.New("invalid api key")
)

// Guard holds the key rule shared by the gRPC receiver and the HTTP
// surfaces. The zero value allows everything.
type Guard struct {
	header string
	key    string
}

// NewGuard returns a Guard for the configured auth mode. Modes other than
// apikey, or an empty key, yield a Guard that allows every request.
func NewGuard(mode, header, key string) Guard {
	if mode != ModeAPIKey || key == "" {
		return Guard{}
	}
	return Guard{header: strings.ToLower(header), key: key}
}

// Enabled reports whether Check can reject anything.
func (g Guard) Enabled() bool { return g.key != "" }

// Header is the lowercase header or metadata name the key is read from.
func (g Guard) Header() string { return g.header }

// Check compares got against the configured key in constant time.
func (g Guard) Check(got string) error {
	if !g.Enabled() {
		return nil
	}
	if got == "" {
		return ErrMissingKey
	}
	if subtle.ConstantTimeCompare([]byte(got), []byte(g.key)) != 1 {
		return ErrInvalidKey
	}
	return nil
}
