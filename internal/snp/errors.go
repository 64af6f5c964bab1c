package snp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// FailureClass categorizes a fetch failure for retry and backoff decisions.
type FailureClass string

// Failure classes. NotFound is terminal: the identifier is recorded as
// completed with an empty record and never retried.
const (
	FailureNone              FailureClass = ""
	FailureRateLimited       FailureClass = "rate_limited"
	FailureServerUnavailable FailureClass = "server_unavailable"
	FailureNetwork           FailureClass = "network"
	FailureNotFound          FailureClass = "not_found"
	FailureOther             FailureClass = "other"
)

// FetchError is returned by Fetcher implementations for classifiable failures.
type FetchError struct {
	RSID       string
	StatusCode int
	Class      FailureClass
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: %s (status %d)", e.RSID, e.Class, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.RSID, e.Class, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.RSID, e.Class)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ClassifyStatus maps an HTTP status code to a failure class.
func ClassifyStatus(code int) FailureClass {
	switch {
	case code == http.StatusNotFound:
		return FailureNotFound
	case code == http.StatusTooManyRequests:
		return FailureRateLimited
	case code == http.StatusBadGateway, code == http.StatusServiceUnavailable, code == http.StatusGatewayTimeout:
		return FailureServerUnavailable
	case code >= 200 && code < 300:
		return FailureNone
	default:
		return FailureOther
	}
}

// Classify maps an arbitrary fetch error to a failure class. A *FetchError
// keeps its own class; timeouts and connection errors become Network.
func Classify(err error) FailureClass {
	if err == nil {
		return FailureNone
	}
	var fe *FetchError
	if errors.As(err, &fe) && fe.Class != FailureNone {
		return fe.Class
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return FailureNetwork
	}
	return FailureOther
}
