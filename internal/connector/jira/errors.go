package jira

import (
	"errors"
	"fmt"

	connhttp "github.com/scrumlens/sync-core/internal/connector/http"
	"github.com/scrumlens/sync-core/internal/model"
)

const (
	CodeInvalidConfig = "E_INVALID_CONFIG"
	CodeUnauthorized  = "E_UNAUTHORIZED"
	CodeForbidden     = "E_FORBIDDEN"
	CodeUnreachable   = "E_ENDPOINT_UNREACHABLE"
	CodeUnknown       = "E_UNKNOWN"
)

// Error wraps tracker call failures with a classification code. The
// remote status code is preserved when one was received.
type Error struct {
	Code       string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *Error) Unwrap() error     { return e.Err }
func (e *Error) CodeValue() string { return e.Code }

// IsCode reports whether err carries the given classification code.
func IsCode(err error, code string) bool {
	var te *Error
	return errors.As(err, &te) && te.Code == code
}

// classify maps transport failures onto the tracker error taxonomy.
// 401 guidance depends on the auth mode: expired browser cookies need
// different operator action than a mistyped API token.
func classify(err error, mode model.AuthMode) error {
	if err == nil {
		return nil
	}

	var httpErr *connhttp.HTTPError
	if !errors.As(err, &httpErr) {
		return &Error{Code: CodeUnreachable, Err: fmt.Errorf("tracker unreachable: %w", err)}
	}

	switch httpErr.StatusCode {
	case 401:
		var guidance string
		switch mode {
		case model.AuthCookie:
			guidance = "session cookies have likely expired; copy fresh cookies from a signed-in browser session"
		case model.AuthOAuth:
			guidance = "the delegated authorization is no longer valid; reconnect the account"
		default:
			guidance = "check the configured email and API token"
		}
		return &Error{
			Code:       CodeUnauthorized,
			StatusCode: httpErr.StatusCode,
			Err:        fmt.Errorf("authentication failed: %s", guidance),
		}
	case 403:
		return &Error{
			Code:       CodeForbidden,
			StatusCode: httpErr.StatusCode,
			Err:        errors.New("access denied: the authenticated account lacks permission for this project"),
		}
	default:
		return &Error{Code: CodeUnknown, StatusCode: httpErr.StatusCode, Err: httpErr}
	}
}
