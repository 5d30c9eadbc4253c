package nobo

import (
	"errors"
	"fmt"
)

// Domain errors for the Nobø bridge package.
var (
	// ErrInvalidData is matched by every *DataError returned from the codecs.
	ErrInvalidData = errors.New("nobo: invalid data")

	// ErrNotConnected is returned when an operation requires a connection
	// but the client is not connected to the hub.
	ErrNotConnected = errors.New("nobo: not connected to hub")

	// ErrConnectionFailed is returned when the connection to the hub fails.
	ErrConnectionFailed = errors.New("nobo: connection to hub failed")

	// ErrHandshakeFailed is returned when the hub rejects or does not
	// answer the HELLO/HANDSHAKE exchange.
	ErrHandshakeFailed = errors.New("nobo: handshake failed")

	// ErrHubError is returned when the hub answers with an E00 line.
	ErrHubError = errors.New("nobo: hub reported error")

	// ErrUnknownPrefix is returned when a line has a prefix no handler knows.
	ErrUnknownPrefix = errors.New("nobo: unknown line prefix")

	// ErrNotFound is returned when a referenced entity is not registered.
	ErrNotFound = errors.New("nobo: entity not found")

	// ErrDiscoveryFailed is returned when no hub broadcast was received.
	ErrDiscoveryFailed = errors.New("nobo: hub discovery failed")

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = errors.New("nobo: operation timed out")

	// ErrInvalidCommand is returned for an unknown bridge command.
	ErrInvalidCommand = errors.New("nobo: invalid command")

	// ErrInvalidParameter is returned when a command parameter is missing
	// or has the wrong type.
	ErrInvalidParameter = errors.New("nobo: invalid parameter")
)

// DataError describes a line that could not be decoded.
//
// It carries the complete line and, when known, the offending token so the
// dispatch layer can log exactly what the hub sent.
type DataError struct {
	Line   string
	Token  string
	Reason string
}

// Error implements the error interface.
func (e *DataError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("%s: %s in %q", ErrInvalidData, e.Reason, e.Line)
	}
	return fmt.Sprintf("%s: %s (token %q) in %q", ErrInvalidData, e.Reason, e.Token, e.Line)
}

// Unwrap lets errors.Is(err, ErrInvalidData) match.
func (e *DataError) Unwrap() error {
	return ErrInvalidData
}

func dataError(line, token, format string, args ...any) *DataError {
	return &DataError{Line: line, Token: token, Reason: fmt.Sprintf(format, args...)}
}
