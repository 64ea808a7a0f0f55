package chain

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/rpc"
)

// Kind is the handling class of an RPC or decode failure.
type Kind string

const (
	KindUnknown          Kind = "unknown"
	KindTransientNetwork Kind = "transient_network"
	KindRateLimited      Kind = "rate_limited"
	KindNotFound         Kind = "not_found"
	KindMalformedData    Kind = "malformed_data"
	KindDecodeMismatch   Kind = "decode_mismatch"
	KindFatalExhaustion  Kind = "fatal_exhaustion"
	KindCanceled         Kind = "canceled"
)

var (
	// ErrDecodeMismatch marks call data whose selector matched but whose fields could not be extracted.
	ErrDecodeMismatch = errors.New("call data decode mismatch")
	// ErrFatalExhaustion is returned once every endpoint failed within one rotation cycle.
	ErrFatalExhaustion = errors.New("all rpc endpoints exhausted")
	// ErrMalformed marks responses that cannot be interpreted.
	ErrMalformed = errors.New("malformed rpc data")
)

type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }

// Mark attaches an explicit kind to err.
func Mark(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: err}
}

// Classify maps an error to its Kind.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var marked *kindError
	if errors.As(err, &marked) {
		return marked.kind
	}

	switch {
	case errors.Is(err, ErrFatalExhaustion):
		return KindFatalExhaustion
	case errors.Is(err, ErrDecodeMismatch):
		return KindDecodeMismatch
	case errors.Is(err, ErrMalformed):
		return KindMalformedData
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return KindTransientNetwork
	case errors.Is(err, ethereum.NotFound):
		return KindNotFound
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return KindTransientNetwork
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == 429:
			return KindRateLimited
		case httpErr.StatusCode >= 500:
			return KindTransientNetwork
		}
	}

	lower := strings.ToLower(err.Error())
	// Providers report quota exhaustion inside generic -32000 range errors.
	if containsAny(lower, rateLimitTokens) {
		return KindRateLimited
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		code := rpcErr.ErrorCode()
		switch {
		case code == -32005:
			return KindRateLimited
		case code == -32700 || code == -32602:
			return KindMalformedData
		case code <= -32000 && code >= -32099:
			return KindTransientNetwork
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransientNetwork
	}

	switch {
	case containsAny(lower, notFoundTokens):
		return KindNotFound
	case containsAny(lower, malformedTokens):
		return KindMalformedData
	case containsAny(lower, transientTokens):
		return KindTransientNetwork
	}
	return KindUnknown
}

// IsRetryable reports whether a single call may be retried on the same endpoint.
func IsRetryable(err error) bool {
	switch Classify(err) {
	case KindTransientNetwork, KindNotFound:
		return true
	default:
		return false
	}
}

func containsAny(msg string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(msg, token) {
			return true
		}
	}
	return false
}

var rateLimitTokens = []string{
	"rate limit",
	"rate-limit",
	"ratelimit",
	"request rate",
	"too many requests",
	"429",
	"limit exceeded",
	"limit reached",
	"quota",
}

var notFoundTokens = []string{
	"not found",
	"unknown block",
}

var malformedTokens = []string{
	"cannot unmarshal",
	"invalid character",
	"invalid argument",
	"unexpected end of json",
}

var transientTokens = []string{
	"timeout",
	"timed out",
	"temporar",
	"unavailable",
	"connection reset",
	"connection refused",
	"broken pipe",
	"use of closed",
	"closed network",
	"eof",
	"websocket",
	"bad gateway",
	"no such host",
}
