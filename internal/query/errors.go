package query

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// ValidationError reports input rejected before any engine contact.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// QueryError reports a query the engine rejected or failed: syntax error,
// permission error, or timeout. Code carries the server exception code when
// one was reported.
type QueryError struct {
	Code    int32
	Message string
	Timeout bool
	Err     error
}

func (e *QueryError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("query failed (code %d): %s", e.Code, e.Message)
	}
	return "query failed: " + e.Message
}

func (e *QueryError) Unwrap() error { return e.Err }

// ClickHouse exception codes that indicate the query ran out of time.
const (
	chCodeTimeoutExceeded = 159
	chCodeTooSlow         = 160
	chCodeSocketTimeout   = 209
)

func newQueryError(err error) *QueryError {
	qe := &QueryError{Message: err.Error(), Err: err}

	var ex *clickhouse.Exception
	if errors.As(err, &ex) {
		qe.Code = ex.Code
		qe.Message = ex.Message
		switch ex.Code {
		case chCodeTimeoutExceeded, chCodeTooSlow, chCodeSocketTimeout:
			qe.Timeout = true
		}
	}

	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, os.ErrDeadlineExceeded) ||
		(errors.As(err, &ne) && ne.Timeout()) {
		qe.Timeout = true
	}
	return qe
}
