package model

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInsufficientData means a window is too short for the requested computation.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrTransient marks network-class failures that a run may retry.
	ErrTransient = errors.New("transient failure")
	// ErrLockContended means the store could not take its write lock in time.
	ErrLockContended = errors.New("store lock contended")
)

// Transient wraps err so that errors.Is(err, ErrTransient) holds.
func Transient(err error) error {
	return fmt.Errorf("%w: %v", ErrTransient, err)
}

// StatusError describes a non-2xx HTTP response. 5xx and 429 are transient.
func StatusError(service string, code int, body []byte) error {
	if len(body) > 256 {
		body = body[:256]
	}
	err := fmt.Errorf("%s API error: status %d, body: %s", service, code, string(body))
	if code >= 500 || code == http.StatusTooManyRequests {
		return Transient(err)
	}
	return err
}
