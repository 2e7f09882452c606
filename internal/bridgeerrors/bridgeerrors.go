// Package bridgeerrors defines the error kinds the bridge raises at each
// boundary and the user-friendly wrapping used to report them.
package bridgeerrors

import (
	"fmt"
	"strings"
)

// BridgeError gives an error user-friendly context: what failed, why, and
// what to do about it, while preserving the underlying cause via Unwrap.
type BridgeError struct {
	Message string
	Reason  string
	Hint    string
	Try     string
	Err     error
}

func (e BridgeError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Message)
	if e.Reason != "" {
		buf.WriteString("\n  Reason: " + e.Reason)
	}
	if e.Hint != "" {
		buf.WriteString("\n  Hint: " + e.Hint)
	}
	if e.Try != "" {
		buf.WriteString("\n  Try: " + e.Try)
	}
	if e.Err != nil {
		buf.WriteString("\n  Details: " + e.Err.Error())
	}
	return buf.String()
}

func (e BridgeError) Unwrap() error {
	return e.Err
}

// UnknownTagError reports a write to a name the registry has never seen.
// Non-fatal: reported to the caller, the rest of the batch still applies.
type UnknownTagError struct {
	BridgeError
	TagName string
}

func NewUnknownTagError(tagName string) *UnknownTagError {
	return &UnknownTagError{
		TagName: tagName,
		BridgeError: BridgeError{
			Message: fmt.Sprintf("unknown tag %q", tagName),
			Reason:  "tag was not present in the most recent set_all()",
			Hint:    "the cloud side and the registry have drifted out of sync",
		},
	}
}

// PlcIoError reports a failed read or write against a PLC. Non-fatal: the
// mapping is skipped for this tick, the tick continues.
type PlcIoError struct {
	BridgeError
	PlcName string
	TagName string
}

func NewPlcIoError(plcName, tagName string, err error) *PlcIoError {
	return &PlcIoError{
		PlcName: plcName,
		TagName: tagName,
		BridgeError: BridgeError{
			Message: fmt.Sprintf("PLC I/O failed: %s on %s", tagName, plcName),
			Reason:  extractIoReason(err),
			Err:     err,
		},
	}
}

// PlcConnectError reports a failed connection attempt. Non-fatal: the sync
// task retries after a 1s backoff and continues indefinitely.
type PlcConnectError struct {
	BridgeError
	PlcName string
}

func NewPlcConnectError(plcName string, err error) *PlcConnectError {
	return &PlcConnectError{
		PlcName: plcName,
		BridgeError: BridgeError{
			Message: fmt.Sprintf("failed to connect to PLC %q", plcName),
			Reason:  extractIoReason(err),
			Hint:    "will retry in 1s",
			Err:     err,
		},
	}
}

// ServerWorkerCrashError reports that the ENIP server worker's shared state
// failed its validity check. Triggers a supervisor restart.
type ServerWorkerCrashError struct {
	BridgeError
}

func NewServerWorkerCrashError(err error) *ServerWorkerCrashError {
	return &ServerWorkerCrashError{
		BridgeError: BridgeError{
			Message: "ENIP server worker crashed",
			Reason:  "shared tag state failed its validity check",
			Hint:    "supervisor will relaunch the worker with the current registry snapshot",
			Err:     err,
		},
	}
}

// CloudPublishError reports a failed publish to the cloud bus. Non-fatal:
// logged, the write-forwarder sleeps 1s and continues.
type CloudPublishError struct {
	BridgeError
	Channel string
}

func NewCloudPublishError(channel string, err error) *CloudPublishError {
	return &CloudPublishError{
		Channel: channel,
		BridgeError: BridgeError{
			Message: fmt.Sprintf("failed to publish to channel %q", channel),
			Hint:    "will retry in 1s",
			Err:     err,
		},
	}
}

// ConfigError reports a configuration validation failure. Fatal: rejected
// at startup.
type ConfigError struct {
	BridgeError
	Path string
}

func NewConfigError(path string, err error) *ConfigError {
	return &ConfigError{
		Path: path,
		BridgeError: BridgeError{
			Message: fmt.Sprintf("configuration error in %s", path),
			Reason:  errString(err),
			Hint:    "run enipbridge export-config for a config file with every default filled in",
			Try:     fmt.Sprintf("enipbridge validate-config %s", path),
			Err:     err,
		},
	}
}

func extractIoReason(err error) string {
	if err == nil {
		return ""
	}
	errStr := err.Error()

	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return "connection timeout - PLC may be offline or unreachable"
	}
	if strings.Contains(errStr, "connection refused") {
		return "connection refused - PLC may not be listening on this port"
	}
	if strings.Contains(errStr, "no route to host") {
		return "no route to host - network routing issue or PLC unreachable"
	}
	if strings.Contains(errStr, "connection reset") {
		return "connection reset - PLC closed the connection unexpectedly"
	}
	if strings.Contains(errStr, "status 0x") {
		return "PLC returned a CIP error status code"
	}
	return "PLC communication failed"
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
