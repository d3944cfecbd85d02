package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/lib/pq"
)

// transientSignatures are lower-cased fragments of error text produced by
// timeouts, resets, and edge proxies answering with an HTML error page.
var transientSignatures = []string{
	"<!doctype",
	"<html",
	"bad gateway",
	"gateway timeout",
	"gateway time-out",
	"service unavailable",
	"econnreset",
	"connection reset",
	"broken pipe",
	"timed out",
	"timeout",
}

// IsRetryable classifies a write error. Connection resets, timeouts, and
// gateway error pages are transient; everything else fails the batch.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// Class 08 is connection_exception; 57P01-57P03 are server shutdowns;
		// 57014 and 55P03 are statement and lock timeouts.
		if pqErr.Code.Class() == "08" {
			return true
		}
		switch pqErr.Code {
		case "57P01", "57P02", "57P03", "57014", "55P03":
			return true
		}
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, sig := range transientSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}

	return false
}
