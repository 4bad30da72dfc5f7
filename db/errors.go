package db

import (
	"strings"

	"github.com/teranos/doxa/errors"
)

// ErrDatabaseClosed reports an operation attempted on a closed
// database, usually during shutdown when the connection closes before
// every goroutine has drained.
var ErrDatabaseClosed = errors.New("database is closed")

// IsDatabaseClosed matches both a wrapped ErrDatabaseClosed and the raw
// driver message. The sql driver returns its own error values that
// cannot be wrapped at the source, so the string check stays.
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDatabaseClosed) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "database is closed") ||
		strings.Contains(msg, "sql: database is closed")
}
