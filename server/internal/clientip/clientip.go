// Package clientip derives the client identity of a request, optionally trusting a number of
// proxy hops recorded in X-Forwarded-For.
package clientip

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

const (
	HeaderForwardedFor = "X-Forwarded-For"
)

var (
	ErrMissingHeader = errors.New("X-Forwarded-For header must be set")
	ErrShortChain    = errors.New("X-Forwarded-For has fewer entries than the trusted depth")
)

// Resolver extracts client identities. With a depth of zero the direct peer address is used.
// With a depth of n the entry n places left of the rightmost one is used, so depth 1 on
// "1.1.1.1, 2.2.2.2" yields "1.1.1.1".
type Resolver struct {
	depth int
}

func NewResolver(depth int) (*Resolver, error) {
	if depth < 0 {
		return nil, fmt.Errorf("trust depth must not be negative, got %d", depth)
	}
	return &Resolver{depth: depth}, nil
}

// Resolve returns the client identity of r. Errors mean the request is malformed for the
// configured trust depth.
func (res *Resolver) Resolve(r *http.Request) (string, error) {
	if res.depth == 0 {
		return peer(r.RemoteAddr), nil
	}

	values := r.Header.Values(HeaderForwardedFor)
	if len(values) == 0 {
		return "", ErrMissingHeader
	}

	var hops []string
	for _, v := range values {
		for hop := range strings.SplitSeq(v, ",") {
			hops = append(hops, strings.TrimSpace(hop))
		}
	}

	idx := len(hops) - 1 - res.depth
	if idx < 0 {
		return "", fmt.Errorf("%w: %d entries, depth %d", ErrShortChain, len(hops), res.depth)
	}
	if hops[idx] == "" {
		return "", fmt.Errorf("%w: empty entry at position %d", ErrShortChain, idx)
	}

	return hops[idx], nil
}

func peer(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
