package retry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"regexp"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/fd1az/arbitrage-engine/internal/apperror"
	"github.com/fd1az/arbitrage-engine/internal/httpclient"
)

// Class groups failures by how they should be retried.
type Class string

const (
	ClassRateLimit   Class = "RATE_LIMIT"
	ClassNetwork     Class = "NETWORK"
	ClassTimeout     Class = "TIMEOUT"
	ClassServerError Class = "SERVER_ERROR"
	ClassFatal       Class = "FATAL"
)

// JSON-RPC "limit exceeded" code used by Infura, Alchemy and friends.
const rpcLimitExceededCode = -32005

var (
	rateLimitSignatures = []string{"rate limit", "too many requests"}
	timeoutSignatures   = []string{"timeout", "timed out"}
	networkSignatures   = []string{"connection refused", "connection reset", "broken pipe", "no such host", "eof"}
	serverSignatures    = []string{"server error", "bad gateway", "service unavailable"}

	rateLimitStatus = regexp.MustCompile(`\b429\b`)
	serverStatus    = regexp.MustCompile(`\b50[0-4]\b`)
)

// Classify reports whether err is worth retrying and why. Checks run in a
// fixed order: cancellation, rate limiting, timeouts, network, server errors.
// Anything unrecognized is fatal.
func Classify(err error) (bool, Class) {
	if err == nil {
		return false, ClassFatal
	}

	if errors.Is(err, context.Canceled) {
		return false, ClassFatal
	}

	if status := statusCode(err); status != 0 {
		switch {
		case status == http.StatusTooManyRequests:
			return true, ClassRateLimit
		case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
			return true, ClassTimeout
		case status >= 500:
			return true, ClassServerError
		}
	}

	switch apperror.GetCode(err) {
	case apperror.CodeRateLimitExceeded:
		return true, ClassRateLimit
	case apperror.CodeServiceTimeout:
		return true, ClassTimeout
	case apperror.CodeServiceUnavailable:
		return true, ClassServerError
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == rpcLimitExceededCode {
		return true, ClassRateLimit
	}

	msg := chainText(err)

	if containsAny(msg, rateLimitSignatures) || rateLimitStatus.MatchString(msg) {
		return true, ClassRateLimit
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true, ClassTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true, ClassTimeout
	}
	if containsAny(msg, timeoutSignatures) {
		return true, ClassTimeout
	}

	if isNetworkError(err) || containsAny(msg, networkSignatures) {
		return true, ClassNetwork
	}

	if containsAny(msg, serverSignatures) || serverStatus.MatchString(msg) {
		return true, ClassServerError
	}

	return false, ClassFatal
}

func statusCode(err error) int {
	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}

	return 0
}

func isNetworkError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}

// chainText joins the messages of err and every error it wraps, so causes
// hidden behind a structured error still match string signatures.
func chainText(err error) string {
	var b strings.Builder
	var walk func(error)
	walk = func(e error) {
		if e == nil {
			return
		}
		b.WriteString(strings.ToLower(e.Error()))
		b.WriteByte('\n')
		switch u := e.(type) {
		case interface{ Unwrap() error }:
			walk(u.Unwrap())
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				walk(inner)
			}
		}
	}
	walk(err)
	return b.String()
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
