package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
	"testing"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/fd1az/arbitrage-engine/internal/apperror"
	"github.com/fd1az/arbitrage-engine/internal/httpclient"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o deadline" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

type rpcLimitErr struct{}

func (rpcLimitErr) Error() string  { return "daily request count exceeded" }
func (rpcLimitErr) ErrorCode() int { return -32005 }

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
		class     Class
	}{
		{"cancelled", context.Canceled, false, ClassFatal},
		{"wrapped cancelled", fmt.Errorf("fetch: %w", context.Canceled), false, ClassFatal},
		{"http 429", &httpclient.StatusError{StatusCode: 429}, true, ClassRateLimit},
		{"rpc http 429", rpc.HTTPError{StatusCode: 429, Status: "429 Too Many Requests"}, true, ClassRateLimit},
		{"rpc limit code", rpcLimitErr{}, true, ClassRateLimit},
		{"apperror rate limit", apperror.New(apperror.CodeRateLimitExceeded), true, ClassRateLimit},
		{"rate limit text", errors.New("Rate limit reached"), true, ClassRateLimit},
		{"too many requests", errors.New("too many requests"), true, ClassRateLimit},
		{"deadline", context.DeadlineExceeded, true, ClassTimeout},
		{"net timeout", timeoutErr{}, true, ClassTimeout},
		{"timed out text", errors.New("request timed out"), true, ClassTimeout},
		{"op error", &net.OpError{Op: "dial", Err: errors.New("boom")}, true, ClassNetwork},
		{"econnrefused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true, ClassNetwork},
		{"no such host", errors.New("lookup rpc.example: no such host"), true, ClassNetwork},
		{"eof", errors.New("unexpected EOF"), true, ClassNetwork},
		{"http 503", &httpclient.StatusError{StatusCode: 503}, true, ClassServerError},
		{"rpc http 502", rpc.HTTPError{StatusCode: 502}, true, ClassServerError},
		{"server error text", errors.New("upstream returned 500"), true, ClassServerError},
		{"http 400", &httpclient.StatusError{StatusCode: 400, Body: "bad symbol"}, false, ClassFatal},
		{"wrapped in apperror", apperror.New(apperror.CodePriceSourceFailed, apperror.WithCause(errors.New("read: connection reset by peer"))), true, ClassNetwork},
		{"amount is not a status", errors.New("insufficient balance: have 2500 want 5029"), false, ClassFatal},
		{"reverted", errors.New("execution reverted"), false, ClassFatal},
		{"bad scheme", &url.Error{Op: "Get", URL: "htps://api.example", Err: errors.New(`unsupported protocol scheme "htps"`)}, false, ClassFatal},
		{"url wrapping a dial failure", &url.Error{Op: "Get", URL: "https://api.example", Err: &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}}, true, ClassNetwork},
		{"nil", nil, false, ClassFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retryable, class := Classify(tt.err)
			if retryable != tt.retryable || class != tt.class {
				t.Errorf("Classify(%v) = (%v, %s), want (%v, %s)", tt.err, retryable, class, tt.retryable, tt.class)
			}
		})
	}
}

func TestClassify_RateLimitBeatsTimeout(t *testing.T) {
	retryable, class := Classify(errors.New("429 timeout while rate limited"))
	if !retryable || class != ClassRateLimit {
		t.Errorf("got (%v, %s), want (true, %s)", retryable, class, ClassRateLimit)
	}
}
