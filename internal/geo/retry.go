// README: Transient-error classification for maps provider calls.
package geo

import (
	"errors"
	"strings"
)

// Provider statuses that will not change on a retry.
var permanentStatuses = []string{
	"ZERO_RESULTS",
	"NOT_FOUND",
	"REQUEST_DENIED",
	"INVALID_REQUEST",
	"MAX_WAYPOINTS_EXCEEDED",
	"MAX_ROUTE_LENGTH_EXCEEDED",
}

// retryable reports whether err looks transient: network failures,
// OVER_QUERY_LIMIT, UNKNOWN_ERROR and 5xx responses.
func retryable(err error) bool {
	if errors.Is(err, ErrNoResults) || errors.Is(err, ErrNoRoute) {
		return false
	}
	msg := err.Error()
	for _, s := range permanentStatuses {
		if strings.Contains(msg, s) {
			return false
		}
	}
	return true
}
