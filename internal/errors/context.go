package errors

import (
	"context"
	"errors"
)

// MapContextError maps context cancellation and deadline failures to AppError instances.
// The original error is kept as the cause so errors.Is(err, context.Canceled) still holds.
// Errors unrelated to the context are returned unchanged.
func MapContextError(err error) error {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) && (appErr.Code == ErrCodeTimeout || appErr.Code == ErrCodeCanceled) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &AppError{
			Code:    ErrCodeTimeout,
			Message: "request timed out",
			Cause:   err,
		}
	}
	if errors.Is(err, context.Canceled) {
		return &AppError{
			Code:    ErrCodeCanceled,
			Message: "request was canceled",
			Cause:   err,
		}
	}
	return err
}
