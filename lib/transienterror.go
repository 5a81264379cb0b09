/*
Copyright 2015 Google Inc. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file or at
https://developers.google.com/open-source/licenses/bsd
*/
package lib

import (
	"errors"
	"net"
	"os"
	"strings"
	"syscall"
)

// IsTransientNetworkError reports whether err is one of the transient
// network conditions spec.md §7 names as retryable: connection reset,
// connection refused, timeout, broken pipe, or DNS resolution failure.
func IsTransientNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errors.Is(opErr.Err, syscall.ECONNRESET) ||
			errors.Is(opErr.Err, syscall.ECONNREFUSED) ||
			errors.Is(opErr.Err, syscall.EPIPE) ||
			errors.Is(opErr.Err, os.ErrDeadlineExceeded) {
			return true
		}
	}

	// Fall back to substring matching for errors that don't unwrap to a
	// syscall.Errno on every platform (e.g. "socket hang up" style
	// messages surfaced by some HTTP transports).
	msg := strings.ToLower(err.Error())
	for _, substr := range []string{"connection reset", "connection refused", "timeout", "broken pipe", "socket hang up", "no such host"} {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}
