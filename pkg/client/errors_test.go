package client

import (
	"errors"
	"testing"
)

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name       string
		errorClass ErrorClass
		expected   bool
	}{
		{
			name:       "client error should not retry",
			errorClass: ErrorClassClient,
			expected:   false,
		},
		{
			name:       "decode error should not retry",
			errorClass: ErrorClassDecode,
			expected:   false,
		},
		{
			name:       "server error should retry",
			errorClass: ErrorClassServer,
			expected:   true,
		},
		{
			name:       "rate limit should retry",
			errorClass: ErrorClassRateLimit,
			expected:   true,
		},
		{
			name:       "network error should retry",
			errorClass: ErrorClassNetwork,
			expected:   true,
		},
		{
			name:       "empty error class should not retry",
			errorClass: "",
			expected:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := shouldRetry(tt.errorClass)
			if result != tt.expected {
				t.Errorf("shouldRetry(%q) = %v, want %v", tt.errorClass, result, tt.expected)
			}
		})
	}
}

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name     string
		apiError *APIError
		expected string
	}{
		{
			name: "error with wrapped error",
			apiError: &APIError{
				ErrorClass: ErrorClassNetwork,
				Message:    "request failed",
				Err:        errors.New("connection refused"),
			},
			expected: "pixabay network error (status 0): request failed: connection refused",
		},
		{
			name: "error without wrapped error",
			apiError: &APIError{
				StatusCode: 400,
				ErrorClass: ErrorClassClient,
				Message:    "[ERROR 400] page is out of valid range.",
			},
			expected: "pixabay client error (status 400): [ERROR 400] page is out of valid range.",
		},
		{
			name: "rate limit error",
			apiError: &APIError{
				StatusCode: 429,
				ErrorClass: ErrorClassRateLimit,
				Message:    "429 Too Many Requests",
			},
			expected: "pixabay rate_limit error (status 429): 429 Too Many Requests",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.apiError.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAPIError_Unwrap(t *testing.T) {
	inner := errors.New("connection reset")
	err := &APIError{ErrorClass: ErrorClassNetwork, Err: inner}

	if !errors.Is(err, inner) {
		t.Error("errors.Is should find the wrapped error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Error("errors.As should match *APIError")
	}
}

func TestAPIError_UnwrapNil(t *testing.T) {
	err := &APIError{StatusCode: 404, ErrorClass: ErrorClassClient}
	if err.Unwrap() != nil {
		t.Error("Unwrap() should return nil when no error is wrapped")
	}
}
