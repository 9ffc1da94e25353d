package deviceconfig

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"
	"testing"
)

func TestClassifyNetworkError_Timeout(t *testing.T) {
	err := &url.Error{
		Op:  "Get",
		URL: "http://192.168.2.163/api/status",
		Err: &net.OpError{
			Op:  "dial",
			Net: "tcp",
			Err: &timeoutError{},
		},
	}

	devErr := ClassifyNetworkError(err, "192.168.2.163")

	if devErr == nil {
		t.Fatal("Expected DeviceError, got nil")
	}

	if devErr.Type != ErrTypeTimeout {
		t.Errorf("Expected error type %v, got %v", ErrTypeTimeout, devErr.Type)
	}

	if devErr.NetworkSubtype != NetworkErrorTimeout {
		t.Errorf("Expected network subtype %v, got %v", NetworkErrorTimeout, devErr.NetworkSubtype)
	}
}

func TestClassifyNetworkError_DeadlineExceeded(t *testing.T) {
	err := fmt.Errorf("request: %w", context.DeadlineExceeded)

	devErr := ClassifyNetworkError(err, "adapter.local")
	if devErr.Type != ErrTypeTimeout {
		t.Errorf("Type = %v, want %v", devErr.Type, ErrTypeTimeout)
	}
	if !IsTimeout(devErr) {
		t.Error("IsTimeout() = false, want true")
	}
	if !errors.Is(devErr, context.DeadlineExceeded) {
		t.Error("DeviceError should unwrap to context.DeadlineExceeded")
	}
}

func TestClassifyNetworkError_Canceled(t *testing.T) {
	devErr := ClassifyNetworkError(context.Canceled, "adapter.local")
	if devErr.Type != ErrTypeCanceled {
		t.Errorf("Type = %v, want %v", devErr.Type, ErrTypeCanceled)
	}
	if IsNetworkError(devErr) {
		t.Error("canceled requests should not count as network errors")
	}
}

func TestClassifyNetworkError_ConnectionRefused(t *testing.T) {
	err := &url.Error{
		Op:  "Get",
		URL: "http://192.168.2.163",
		Err: &net.OpError{
			Op:  "dial",
			Net: "tcp",
			Err: syscall.ECONNREFUSED,
		},
	}

	devErr := ClassifyNetworkError(err, "192.168.2.163")

	if devErr.Type != ErrTypeConnectionRefused {
		t.Errorf("Expected error type %v, got %v", ErrTypeConnectionRefused, devErr.Type)
	}
	if devErr.DeviceHost != "192.168.2.163" {
		t.Errorf("DeviceHost = %q, want 192.168.2.163", devErr.DeviceHost)
	}
	if !IsNetworkError(devErr) {
		t.Error("connection refused should be a network error")
	}
}

func TestClassifyNetworkError_DNS(t *testing.T) {
	err := &url.Error{
		Op:  "Get",
		URL: "http://canbridge.invalid",
		Err: &net.DNSError{
			Err:  "no such host",
			Name: "canbridge.invalid",
		},
	}

	devErr := ClassifyNetworkError(err, "canbridge.invalid")

	if devErr.Type != ErrTypeDNS {
		t.Errorf("Expected error type %v, got %v", ErrTypeDNS, devErr.Type)
	}
	if !strings.Contains(devErr.Message, "canbridge.invalid") {
		t.Errorf("Message %q should name the host", devErr.Message)
	}
}

func TestClassifyNetworkError_HostUnreachable(t *testing.T) {
	err := &net.OpError{
		Op:  "dial",
		Net: "tcp",
		Err: syscall.EHOSTUNREACH,
	}

	devErr := ClassifyNetworkError(err, "10.0.0.5")

	if devErr.Type != ErrTypeNetwork {
		t.Errorf("Expected error type %v, got %v", ErrTypeNetwork, devErr.Type)
	}
	if devErr.NetworkSubtype != NetworkErrorHostUnreachable {
		t.Errorf("Expected subtype %v, got %v", NetworkErrorHostUnreachable, devErr.NetworkSubtype)
	}
}

func TestClassifyNetworkError_Nil(t *testing.T) {
	if got := ClassifyNetworkError(nil, "x"); got != nil {
		t.Errorf("ClassifyNetworkError(nil) = %v, want nil", got)
	}
}

func TestErrorPredicates(t *testing.T) {
	wrapped := fmt.Errorf("fetch: %w", NewHTTPError(404, "not found"))

	if !IsHTTPError(wrapped) {
		t.Error("IsHTTPError() should see through wrapping")
	}
	if IsParseError(wrapped) {
		t.Error("IsParseError() = true for HTTP error")
	}
	if !IsParseError(NewParseError("bad", errors.New("eof"))) {
		t.Error("IsParseError() = false for parse error")
	}
	if !IsValidationError(NewValidationError("bad bitrate")) {
		t.Error("IsValidationError() = false for validation error")
	}
	if IsNetworkError(errors.New("plain")) {
		t.Error("IsNetworkError() = true for plain error")
	}
}

func TestGetShortErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "timeout",
			err:  &DeviceError{Type: ErrTypeTimeout},
			want: "Adapter not responding (timeout)",
		},
		{
			name: "connection refused",
			err:  &DeviceError{Type: ErrTypeConnectionRefused},
			want: "Adapter refused connection",
		},
		{
			name: "host unreachable",
			err:  &DeviceError{Type: ErrTypeNetwork, NetworkSubtype: NetworkErrorHostUnreachable},
			want: "Adapter unreachable - check network connection",
		},
		{
			name: "http",
			err:  NewHTTPError(503, "busy"),
			want: "Adapter error (HTTP 503)",
		},
		{
			name: "plain error",
			err:  errors.New("something else"),
			want: "something else",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetShortErrorMessage(tt.err); got != tt.want {
				t.Errorf("GetShortErrorMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetTroubleshootingHint(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		contain string
	}{
		{"timeout", &DeviceError{Type: ErrTypeTimeout}, "--timeout-ms"},
		{"dns", &DeviceError{Type: ErrTypeDNS}, "canbridge-cfg scan"},
		{"unreachable", &DeviceError{Type: ErrTypeNetwork, NetworkSubtype: NetworkErrorHostUnreachable, DeviceHost: "10.1.1.1"}, "ping 10.1.1.1"},
		{"server error", NewHTTPError(500, "boom"), "power-cycling"},
		{"not found", NewHTTPError(404, "nope"), "--api-prefix"},
		{"parse", NewParseError("x", nil), "JSON API"},
		{"unknown", errors.New("x"), "unexpected error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hint := GetTroubleshootingHint(tt.err)
			if !strings.Contains(hint, tt.contain) {
				t.Errorf("GetTroubleshootingHint() = %q, should contain %q", hint, tt.contain)
			}
		})
	}
}

func TestErrorTypeString(t *testing.T) {
	tests := []struct {
		et   ErrorType
		want string
	}{
		{ErrTypeNetwork, "Network Error"},
		{ErrTypeHTTP, "HTTP Error"},
		{ErrTypeParse, "Parse Error"},
		{ErrTypeValidation, "Validation Error"},
		{ErrTypeTimeout, "Timeout"},
		{ErrTypeConnectionRefused, "Connection Refused"},
		{ErrTypeDNS, "DNS Error"},
		{ErrTypeCanceled, "Canceled"},
		{ErrorType(99), "ErrorType(99)"},
	}

	for _, tt := range tests {
		if got := tt.et.String(); got != tt.want {
			t.Errorf("ErrorType(%d).String() = %q, want %q", tt.et, got, tt.want)
		}
	}
}

func TestDeviceError_Error(t *testing.T) {
	e := &DeviceError{Type: ErrTypeParse, Message: "bad body", Err: errors.New("eof")}
	if got := e.Error(); got != "Parse Error: bad body (caused by: eof)" {
		t.Errorf("Error() = %q", got)
	}
	e = &DeviceError{Type: ErrTypeHTTP, Message: "gone"}
	if got := e.Error(); got != "HTTP Error: gone" {
		t.Errorf("Error() = %q", got)
	}
}

// timeoutError is a mock error that implements timeout behavior
type timeoutError struct{}

func (e *timeoutError) Error() string   { return "i/o timeout" }
func (e *timeoutError) Timeout() bool   { return true }
func (e *timeoutError) Temporary() bool { return true }
