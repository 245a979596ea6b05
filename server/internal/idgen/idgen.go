// Package idgen mints short random object ids.
package idgen

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

const (
	DefaultMaxAttempts = 64
)

var (
	ErrExhausted = errors.New("id space exhausted")
)

// ExistsFunc reports whether an id is already taken in any lifetime class.
type ExistsFunc func(id string) (bool, error)

// Minter draws fixed-length ids uniformly from an alphabet. The existence check is only an
// optimistic pre-check, callers must still rely on an exclusive create to claim the id.
type Minter struct {
	alphabet    string
	length      int
	exists      ExistsFunc
	maxAttempts int
	random      io.Reader
	reserved    map[string]struct{}
}

type Option func(*Minter)

// WithMaxAttempts bounds the number of collisions tolerated before Mint gives up.
func WithMaxAttempts(n int) Option {
	return func(m *Minter) {
		if n > 0 {
			m.maxAttempts = n
		}
	}
}

// WithReserved keeps Mint from returning ids that clash with fixed routes.
func WithReserved(ids ...string) Option {
	return func(m *Minter) {
		for _, id := range ids {
			m.reserved[id] = struct{}{}
		}
	}
}

// WithRandom replaces the crypto/rand source, tests use it to force collisions.
func WithRandom(r io.Reader) Option {
	return func(m *Minter) {
		m.random = r
	}
}

func New(alphabet string, length int, exists ExistsFunc, opts ...Option) (*Minter, error) {
	if len(alphabet) < 2 || len(alphabet) > 256 {
		return nil, fmt.Errorf("alphabet must have between 2 and 256 symbols, got %d", len(alphabet))
	}
	if length < 1 {
		return nil, fmt.Errorf("id length must be at least 1, got %d", length)
	}
	if exists == nil {
		exists = func(string) (bool, error) { return false, nil }
	}

	m := &Minter{
		alphabet:    alphabet,
		length:      length,
		exists:      exists,
		maxAttempts: DefaultMaxAttempts,
		random:      rand.Reader,
		reserved:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// MaxAttempts returns the retry budget, shared with callers that re-mint after a failed claim.
func (m *Minter) MaxAttempts() int {
	return m.maxAttempts
}

// Mint returns an id that did not exist at the time of the check. Reserved draws count towards
// the attempt budget.
func (m *Minter) Mint() (string, error) {
	for range m.maxAttempts {
		id, err := m.randomID()
		if err != nil {
			return "", err
		}
		if _, ok := m.reserved[id]; ok {
			continue
		}

		taken, err := m.exists(id)
		if err != nil {
			return "", fmt.Errorf("check id existence: %w", err)
		}
		if !taken {
			return id, nil
		}
	}

	return "", fmt.Errorf("%w after %d attempts", ErrExhausted, m.maxAttempts)
}

// randomID samples the alphabet with rejection so each symbol has the same probability.
func (m *Minter) randomID() (string, error) {
	n := len(m.alphabet)
	// largest multiple of n that fits in a byte
	limit := 256 - 256%n

	out := make([]byte, 0, m.length)
	buf := make([]byte, m.length*2)
	for len(out) < m.length {
		if _, err := io.ReadFull(m.random, buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, m.alphabet[int(b)%n])
			if len(out) == m.length {
				break
			}
		}
	}

	return string(out), nil
}
