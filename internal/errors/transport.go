package errors

import (
	"context"
	"errors"
	"net"
	"net/url"
)

// MapTransportError maps client-side HTTP transport failures to AppError
// instances. It handles:
// - Context timeouts/cancellations → Timeout/Canceled
// - net.Error timeouts → Timeout
// - Connection and DNS failures → Network
//
// If the error is already an AppError it is returned unchanged, so adapter
// code can pre-classify (e.g. RefreshInvalid) before falling through here.
func MapTransportError(err error) error {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &AppError{
			Code:    ErrCodeTimeout,
			Message: "Request timed out. Please try again.",
			Cause:   err,
		}
	}
	if errors.Is(err, context.Canceled) {
		return &AppError{
			Code:    ErrCodeCanceled,
			Message: "Request was canceled.",
			Cause:   err,
		}
	}

	// url.Error wraps most http.Client failures; unwrap before the net checks
	// so a timeout buried in a URL error is still classified as a timeout.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return &AppError{
				Code:    ErrCodeTimeout,
				Message: "Request timed out. Please try again.",
				Cause:   err,
			}
		}
		return &AppError{
			Code:    ErrCodeNetwork,
			Message: "Network request failed. Please try again.",
			Cause:   err,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return &AppError{
				Code:    ErrCodeTimeout,
				Message: "Request timed out. Please try again.",
				Cause:   err,
			}
		}
		return &AppError{
			Code:    ErrCodeNetwork,
			Message: "Network request failed. Please try again.",
			Cause:   err,
		}
	}

	return err
}
