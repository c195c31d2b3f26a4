package provider

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/gorilla/websocket"
)

var (
	// Definitive closures
	ErrLoggedOut = errors.New("session logged out")
	ErrForbidden = errors.New("session forbidden")

	// Provider reported closures
	ErrConnectionClosed    = errors.New("connection closed")
	ErrConnectionLost      = errors.New("connection lost")
	ErrConnectionReplaced  = errors.New("connection replaced")
	ErrMultideviceMismatch = errors.New("multidevice mismatch")
	ErrBadSession          = errors.New("bad session")
	ErrRestartRequired     = errors.New("restart required")
	ErrServiceUnavailable  = errors.New("service unavailable")

	// Transport failures
	ErrTLSHandshake      = errors.New("gateway tls handshake failed")
	ErrGatewayHandshake  = errors.New("gateway handshake rejected")
	ErrGatewayConnect    = errors.New("gateway connection failed")
	ErrConnectionRefused = errors.New("gateway connection refused")
	ErrHostUnreachable   = errors.New("gateway host unreachable")
	ErrTimeout           = errors.New("gateway connection timeout")
	ErrEOF               = errors.New("gateway connection closed unexpectedly")
	ErrBrokenPipe        = errors.New("gateway broken pipe")

	ErrCredentialLoad = errors.New("unable to load credentials")
)

const (
	CodeLoggedOut           = 401
	CodeForbidden           = 403
	CodeConnectionLost      = 408
	CodeMultideviceMismatch = 411
	CodeConnectionClosed    = 428
	CodeConnectionReplaced  = 440
	CodeBadSession          = 500
	CodeServiceUnavailable  = 503
	CodeRestartRequired     = 515

	CodeConnectionReset   = 104 // ECONNRESET
	CodeConnectionRefused = 111 // ECONNREFUSED
	CodeHostUnreachable   = 113 // EHOSTUNREACH
	CodeTLSHandshake      = 495
	CodeEOF               = 499
	CodeGatewayConnect    = 520
	CodeBrokenPipe        = 532

	// the gateway maps provider reason codes onto websocket close codes
	// starting at this offset
	closeCodeOffset = 4000
)

const (
	CategoryLogout    = "logout"
	CategoryTransient = "transient"
)

type DisconnectError struct {
	Code     int
	Kind     error
	Cause    error
	Category string
}

func (e *DisconnectError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%v (code=%d)", e.Kind, e.Code)
	}
	return fmt.Sprintf("%v (code=%d): %v", e.Kind, e.Code, e.Cause)
}

func (e *DisconnectError) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return e.Kind
}

// Is lets errors.Is match on the sentinel Kind (e.g. ErrLoggedOut)
func (e *DisconnectError) Is(target error) bool {
	return target == e.Kind
}

// IsLoggedOut reports whether the closure ends the session for good
func (e *DisconnectError) IsLoggedOut() bool {
	return e.Category == CategoryLogout
}

func newDisconnectError(code int, category string, kind error, cause error) *DisconnectError {
	return &DisconnectError{
		Code:     code,
		Kind:     kind,
		Cause:    cause,
		Category: category,
	}
}

func NewCredentialLoadError(cause error) *DisconnectError {
	return newDisconnectError(CodeBadSession, CategoryTransient, ErrCredentialLoad, cause)
}

// ClassifyReasonCode maps a provider reason code.  Only a logout or a
// forbidden session ends the session, everything else is retried.
func ClassifyReasonCode(code int, reason string) *DisconnectError {
	var cause error
	if reason != "" {
		cause = errors.New(reason)
	}

	switch code {
	case CodeLoggedOut:
		return newDisconnectError(code, CategoryLogout, ErrLoggedOut, cause)
	case CodeForbidden:
		return newDisconnectError(code, CategoryLogout, ErrForbidden, cause)
	case CodeConnectionLost:
		return newDisconnectError(code, CategoryTransient, ErrConnectionLost, cause)
	case CodeMultideviceMismatch:
		return newDisconnectError(code, CategoryTransient, ErrMultideviceMismatch, cause)
	case CodeConnectionClosed:
		return newDisconnectError(code, CategoryTransient, ErrConnectionClosed, cause)
	case CodeConnectionReplaced:
		return newDisconnectError(code, CategoryTransient, ErrConnectionReplaced, cause)
	case CodeBadSession:
		return newDisconnectError(code, CategoryTransient, ErrBadSession, cause)
	case CodeServiceUnavailable:
		return newDisconnectError(code, CategoryTransient, ErrServiceUnavailable, cause)
	case CodeRestartRequired:
		return newDisconnectError(code, CategoryTransient, ErrRestartRequired, cause)
	}

	if cause == nil {
		cause = fmt.Errorf("reason code %d", code)
	}
	return newDisconnectError(code, CategoryTransient, ErrConnectionClosed, cause)
}

// ClassifyDialError classifies a failure to open the gateway connection.  A
// rejected handshake is always transient.
func ClassifyDialError(err error, resp *http.Response) *DisconnectError {
	var de *DisconnectError
	if errors.As(err, &de) {
		return de
	}

	if errors.Is(err, websocket.ErrBadHandshake) {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		return newDisconnectError(CodeGatewayConnect, CategoryTransient, ErrGatewayHandshake, fmt.Errorf("http status %d: %w", status, err))
	}

	var tlsHeaderErr *tls.RecordHeaderError
	var unknownAuthErr x509.UnknownAuthorityError
	var certInvalidErr x509.CertificateInvalidError
	var hostErr x509.HostnameError
	if errors.As(err, &tlsHeaderErr) || errors.As(err, &unknownAuthErr) || errors.As(err, &certInvalidErr) || errors.As(err, &hostErr) {
		return newDisconnectError(CodeTLSHandshake, CategoryTransient, ErrTLSHandshake, err)
	}

	return classifyTransportError(err)
}

// ClassifyReadError classifies a failure on an open gateway connection
func ClassifyReadError(err error) *DisconnectError {
	if err == nil {
		return newDisconnectError(CodeConnectionLost, CategoryTransient, ErrConnectionLost, errors.New("connection lost"))
	}

	var de *DisconnectError
	if errors.As(err, &de) {
		return de
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		if closeErr.Code >= closeCodeOffset {
			return ClassifyReasonCode(closeErr.Code-closeCodeOffset, closeErr.Text)
		}
		switch closeErr.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway:
			return newDisconnectError(CodeConnectionClosed, CategoryTransient, ErrConnectionClosed, err)
		case websocket.CloseTryAgainLater:
			return newDisconnectError(CodeServiceUnavailable, CategoryTransient, ErrServiceUnavailable, err)
		}
		return newDisconnectError(CodeConnectionLost, CategoryTransient, ErrConnectionLost, err)
	}

	return classifyTransportError(err)
}

func classifyTransportError(err error) *DisconnectError {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return newDisconnectError(CodeConnectionLost, CategoryTransient, ErrTimeout, err)
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return newDisconnectError(CodeConnectionRefused, CategoryTransient, ErrConnectionRefused, err)
	case errors.Is(err, syscall.ECONNRESET):
		return newDisconnectError(CodeConnectionReset, CategoryTransient, ErrConnectionLost, err)
	case errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH):
		return newDisconnectError(CodeHostUnreachable, CategoryTransient, ErrHostUnreachable, err)
	case errors.Is(err, syscall.EPIPE):
		return newDisconnectError(CodeBrokenPipe, CategoryTransient, ErrBrokenPipe, err)
	case errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF):
		return newDisconnectError(CodeEOF, CategoryTransient, ErrEOF, err)
	}

	// Catch textual hints when errors aren't typed
	lowerMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lowerMsg, "connection refused"):
		return newDisconnectError(CodeConnectionRefused, CategoryTransient, ErrConnectionRefused, err)
	case strings.Contains(lowerMsg, "connection reset"):
		return newDisconnectError(CodeConnectionReset, CategoryTransient, ErrConnectionLost, err)
	case strings.Contains(lowerMsg, "host unreachable"):
		return newDisconnectError(CodeHostUnreachable, CategoryTransient, ErrHostUnreachable, err)
	case strings.Contains(lowerMsg, "timeout"):
		return newDisconnectError(CodeConnectionLost, CategoryTransient, ErrTimeout, err)
	case strings.Contains(lowerMsg, "broken pipe"):
		return newDisconnectError(CodeBrokenPipe, CategoryTransient, ErrBrokenPipe, err)
	case strings.Contains(lowerMsg, "eof"):
		return newDisconnectError(CodeEOF, CategoryTransient, ErrEOF, err)
	}

	return newDisconnectError(CodeGatewayConnect, CategoryTransient, ErrGatewayConnect, err)
}
