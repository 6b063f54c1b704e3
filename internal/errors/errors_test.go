package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "error without cause",
			err: &AppError{
				Code:    ErrCodeValidation,
				Message: "email is required",
			},
			want: "email is required",
		},
		{
			name: "error with cause",
			err: &AppError{
				Code:    ErrCodeInternal,
				Message: "failed to process",
				Cause:   errors.New("underlying error"),
			},
			want: "failed to process: underlying error",
		},
		{
			name: "error with status and body",
			err: &AppError{
				Code:    ErrCodeHTTPStatus,
				Message: "POST /auth/login/",
				Status:  http.StatusBadRequest,
				Body:    []byte(`{"error":"bad"}` + "\n"),
			},
			want: `POST /auth/login/ (status 400): {"error":"bad"}`,
		},
		{
			name: "error with status only",
			err: &AppError{
				Code:    ErrCodeHTTPStatus,
				Message: "GET /projects/",
				Status:  http.StatusBadGateway,
			},
			want: "GET /projects/ (status 502)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("AppError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := &AppError{
		Code:    ErrCodeInternal,
		Message: "wrapped error",
		Cause:   cause,
	}

	if unwrapped := err.Unwrap(); !errors.Is(unwrapped, cause) {
		t.Errorf("AppError.Unwrap() = %v, want %v", unwrapped, cause)
	}
}

func TestFromStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorCode
	}{
		{http.StatusUnauthorized, ErrCodeUnauthorized},
		{http.StatusNotFound, ErrCodeNotFound},
		{http.StatusBadRequest, ErrCodeHTTPStatus},
		{http.StatusForbidden, ErrCodeHTTPStatus},
		{http.StatusInternalServerError, ErrCodeHTTPStatus},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := FromStatus(http.MethodGet, "/x/", tt.status, []byte("body"))
			if err.Code != tt.want {
				t.Errorf("FromStatus(%d).Code = %v, want %v", tt.status, err.Code, tt.want)
			}
			if err.Status != tt.status {
				t.Errorf("FromStatus(%d).Status = %d", tt.status, err.Status)
			}
			if string(err.Body) != "body" {
				t.Errorf("FromStatus(%d).Body = %q", tt.status, err.Body)
			}
		})
	}
}

func TestTransport(t *testing.T) {
	if Transport(nil, http.MethodGet, "/") != nil {
		t.Fatal("Transport(nil) should return nil")
	}
	cause := errors.New("connection refused")
	err := Transport(cause, http.MethodGet, "/users/me/")
	if !IsTransport(err) {
		t.Errorf("expected transport code, got %v", err.Code)
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to be preserved")
	}
}

func TestSessionInvalidated(t *testing.T) {
	cause := errors.New("refresh rejected")
	err := SessionInvalidated(cause)
	if !IsSessionInvalidated(err) {
		t.Errorf("expected session_invalidated code, got %v", err.Code)
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to be preserved")
	}
}

func TestValidationField(t *testing.T) {
	err := ValidationField("email", "email is required")
	if err.Code != ErrCodeValidation {
		t.Errorf("ValidationField().Code = %v, want %v", err.Code, ErrCodeValidation)
	}
	if GetField(err) != "email" {
		t.Errorf("GetField() = %v, want email", GetField(err))
	}
	if !IsValidation(err) {
		t.Error("IsValidation() = false, want true")
	}
}

func TestWrap_NilError(t *testing.T) {
	if err := Wrap(nil, ErrCodeInternal, "wrapped"); err != nil {
		t.Errorf("Wrap(nil) = %v, want nil", err)
	}
	if err := Decode(nil, "body"); err != nil {
		t.Errorf("Decode(nil) = %v, want nil", err)
	}
}

func TestWrapf(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrapf(cause, ErrCodeInternal, "persist %s", "access_token")
	if err.Message != "persist access_token" {
		t.Errorf("Wrapf().Message = %q", err.Message)
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to be preserved")
	}
}

func TestGetStatusAndBody_ThroughWrapping(t *testing.T) {
	inner := FromStatus(http.MethodPost, "/auth/refresh/", http.StatusUnauthorized, []byte(`{"error":"expired"}`))
	outer := fmt.Errorf("login flow: %w", SessionInvalidated(inner))

	if GetCode(outer) != ErrCodeSessionInvalidated {
		t.Errorf("GetCode() = %v", GetCode(outer))
	}
	if GetStatus(outer) != 0 {
		t.Errorf("GetStatus() = %d, want 0 for the outer session error", GetStatus(outer))
	}
	if string(GetBody(outer)) != `{"error":"expired"}` {
		t.Errorf("GetBody() = %q", GetBody(outer))
	}
	if GetBody(errors.New("plain")) != nil {
		t.Error("GetBody(plain) should be nil")
	}
}

func TestGetCode_NonAppError(t *testing.T) {
	if GetCode(errors.New("plain")) != "" {
		t.Error("expected empty code for plain error")
	}
	if GetCode(nil) != "" {
		t.Error("expected empty code for nil")
	}
}

func TestMapContextError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode ErrorCode
	}{
		{name: "deadline exceeded", err: context.DeadlineExceeded, wantCode: ErrCodeTimeout},
		{name: "canceled", err: context.Canceled, wantCode: ErrCodeCanceled},
		{name: "wrapped canceled", err: fmt.Errorf("do: %w", context.Canceled), wantCode: ErrCodeCanceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapContextError(tt.err)
			if GetCode(err) != tt.wantCode {
				t.Errorf("MapContextError() code = %v, want %v", GetCode(err), tt.wantCode)
			}
			if !errors.Is(err, tt.err) {
				t.Error("expected original error to remain in the chain")
			}
		})
	}

	plain := errors.New("plain")
	if !errors.Is(MapContextError(plain), plain) || GetCode(MapContextError(plain)) != "" {
		t.Error("expected unrelated error to pass through unchanged")
	}
	if MapContextError(nil) != nil {
		t.Error("expected nil for nil")
	}
}
