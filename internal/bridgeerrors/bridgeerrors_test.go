package bridgeerrors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestBridgeError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      BridgeError
		contains []string
	}{
		{
			name:     "message only",
			err:      BridgeError{Message: "something broke"},
			contains: []string{"something broke"},
		},
		{
			name: "all fields",
			err: BridgeError{
				Message: "sync failed",
				Reason:  "timeout",
				Hint:    "check network",
				Try:     "ping plc",
				Err:     fmt.Errorf("dial tcp: timeout"),
			},
			contains: []string{"sync failed", "Reason: timeout", "Hint: check network", "Try: ping plc", "Details: dial tcp: timeout"},
		},
		{
			name: "no reason",
			err: BridgeError{
				Message: "failed",
				Hint:    "hint here",
			},
			contains: []string{"failed", "Hint: hint here"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("Error() = %q, want to contain %q", msg, s)
				}
			}
		})
	}
}

func TestBridgeError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("root cause")
	err := BridgeError{Message: "wrapper", Err: inner}

	if !errors.Is(err, inner) {
		t.Error("Unwrap should return the inner error")
	}

	var nilErr BridgeError
	if nilErr.Unwrap() != nil {
		t.Error("Unwrap on nil Err should return nil")
	}
}

func TestNewUnknownTagError(t *testing.T) {
	err := NewUnknownTagError("global_value")
	if !strings.Contains(err.Error(), "global_value") {
		t.Errorf("message should name the tag, got %q", err.Error())
	}
	if err.TagName != "global_value" {
		t.Errorf("TagName = %q, want global_value", err.TagName)
	}
}

func TestNewPlcIoError(t *testing.T) {
	t.Run("timeout", func(t *testing.T) {
		err := NewPlcIoError("line1_plc", "global_value", fmt.Errorf("i/o timeout"))
		if !strings.Contains(err.Reason, "timeout") {
			t.Errorf("reason should mention timeout, got %q", err.Reason)
		}
		if !errors.Is(err, err.Err) {
			t.Error("Unwrap should reach the inner error")
		}
	})

	t.Run("connection refused", func(t *testing.T) {
		err := NewPlcIoError("line1_plc", "global_value", fmt.Errorf("connection refused"))
		if !strings.Contains(err.Reason, "refused") {
			t.Errorf("reason should mention refused, got %q", err.Reason)
		}
	})

	t.Run("generic", func(t *testing.T) {
		err := NewPlcIoError("line1_plc", "global_value", fmt.Errorf("something"))
		if err.Reason != "PLC communication failed" {
			t.Errorf("unexpected reason: %q", err.Reason)
		}
	})
}

func TestNewPlcConnectError(t *testing.T) {
	err := NewPlcConnectError("line1_plc", fmt.Errorf("no route to host"))
	if !strings.Contains(err.Error(), "line1_plc") {
		t.Errorf("message should name the PLC, got %q", err.Error())
	}
	if !strings.Contains(err.Reason, "route") {
		t.Errorf("reason should mention routing, got %q", err.Reason)
	}
	if !strings.Contains(err.Hint, "retry") {
		t.Errorf("hint should mention retry, got %q", err.Hint)
	}
}

func TestNewServerWorkerCrashError(t *testing.T) {
	err := NewServerWorkerCrashError(fmt.Errorf("shared map invalid"))
	if !strings.Contains(err.Reason, "validity check") {
		t.Errorf("reason should mention the validity check, got %q", err.Reason)
	}
}

func TestNewCloudPublishError(t *testing.T) {
	err := NewCloudPublishError("tag_values", fmt.Errorf("503"))
	if !strings.Contains(err.Error(), "tag_values") {
		t.Errorf("message should name the channel, got %q", err.Error())
	}
}

func TestNewConfigError(t *testing.T) {
	err := NewConfigError("bridge.yaml", fmt.Errorf("invalid yaml"))
	if !strings.Contains(err.Message, "bridge.yaml") {
		t.Errorf("message should contain config path, got %q", err.Message)
	}
	if err.Reason != "invalid yaml" {
		t.Errorf("reason should be inner error message, got %q", err.Reason)
	}
	if !strings.Contains(err.Try, "validate-config") {
		t.Errorf("try should reference validate-config, got %q", err.Try)
	}
}
