package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/WalterDeAlmeidaLira/TechChallenge/parser"
)

// TransportError indicates a network-level failure: DNS, connection, or
// timeout. Request timeouts are treated identically to any other transport
// failure.
type TransportError struct {
	Err error
}

func (e TransportError) Error() string {
	return fmt.Errorf("transport: %w", e.Err).Error()
}

func (e TransportError) Unwrap() error {
	return e.Err
}

// HTTPStatusError indicates the server answered with a non-2xx status.
type HTTPStatusError struct {
	StatusCode int
	Err        error
}

func (e HTTPStatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("http status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("http status %d", e.StatusCode)
}

func (e HTTPStatusError) Unwrap() error {
	return e.Err
}

// classify maps a raw collector error and status code onto the error
// taxonomy used for reporting and metrics labels.
func classify(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if statusCode >= http.StatusMultipleChoices {
		return HTTPStatusError{StatusCode: statusCode, Err: err}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return TransportError{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return TransportError{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return TransportError{Err: err}
	}

	return err
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var transport TransportError
	if errors.As(err, &transport) {
		return "transport"
	}
	var status HTTPStatusError
	if errors.As(err, &status) {
		return "http_status"
	}
	var parse parser.ParseError
	if errors.As(err, &parse) {
		return "parse"
	}
	return "other"
}
