package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"syscall"
	"testing"

	"github.com/lib/pq"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o deadline reached" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"wrapped canceled", fmt.Errorf("upsert: %w", context.Canceled), false},
		{"deadline", context.DeadlineExceeded, true},
		{"net timeout", fmt.Errorf("request failed: %w", timeoutError{}), true},
		{"econnreset", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"epipe", syscall.EPIPE, true},
		{"unexpected eof", io.ErrUnexpectedEOF, true},
		{"bad conn", driver.ErrBadConn, true},
		{"gateway html", errors.New("unexpected status 502: <!DOCTYPE html><title>502</title>"), true},
		{"html without doctype", errors.New("unexpected status 504: <html><body>upstream</body></html>"), true},
		{"service unavailable", errors.New("unexpected status 503: Service Unavailable"), true},
		{"connection reset text", errors.New("write tcp 10.0.0.1:5432: connection reset by peer"), true},
		{"constraint violation", errors.New("unexpected status 409: duplicate key value violates unique constraint"), false},
		{"bad request", errors.New(`unexpected status 400: {"message":"column odds does not exist"}`), false},
		{"pq connection failure", &pq.Error{Code: "08006", Message: "connection failure"}, true},
		{"pq admin shutdown", &pq.Error{Code: "57P01", Message: "terminating connection"}, true},
		{"pq statement timeout", fmt.Errorf("upsert into live_odds failed: %w", &pq.Error{Code: "57014", Message: "canceling statement due to statement timeout"}), true},
		{"pq lock timeout", &pq.Error{Code: "55P03", Message: "canceling statement due to lock timeout"}, true},
		{"pq unique violation", &pq.Error{Code: "23505", Message: "duplicate key"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
