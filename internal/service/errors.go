package service

import "errors"

type Kind string

const (
	KindValidation     Kind = "validation"
	KindAuthentication Kind = "authentication"
	KindConflict       Kind = "conflict"
	KindExternal       Kind = "external"
)

// Error is the only error type AuthService returns. Message is safe to show
// to callers; Err keeps the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind. A target without a message
// matches the whole kind, so errors.Is(err, ErrValidation) works for every
// validation error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

var (
	ErrValidation      = &Error{Kind: KindValidation}
	ErrAuthentication  = &Error{Kind: KindAuthentication}
	ErrConflict        = &Error{Kind: KindConflict}
	ErrExternalService = &Error{Kind: KindExternal}
)

var (
	ErrInvalidInput         = &Error{Kind: KindValidation, Message: "invalid input"}
	ErrInvalidToken         = &Error{Kind: KindValidation, Message: "invalid or expired token"}
	ErrPasswordMismatch     = &Error{Kind: KindValidation, Message: "current password is incorrect"}
	ErrNotVerified          = &Error{Kind: KindValidation, Message: "account must be verified first"}
	ErrLastLoginMethod      = &Error{Kind: KindValidation, Message: "cannot remove the last login method"}
	ErrUnknownProvider      = &Error{Kind: KindValidation, Message: "unknown identity provider"}
	ErrTwoFactorNotEnrolled = &Error{Kind: KindValidation, Message: "two-factor enrollment not started"}
	ErrIncompleteIdentity   = &Error{Kind: KindValidation, Message: "identity provider returned insufficient information"}
	ErrUserNotFound         = &Error{Kind: KindValidation, Message: "user not found"}
	ErrTwoFactorEnabled     = &Error{Kind: KindValidation, Message: "two-factor authentication is already enabled"}
	ErrTOTPUnavailable      = &Error{Kind: KindValidation, Message: "authenticator app two-factor is not configured"}
	ErrTwoFactorNotEnabled  = &Error{Kind: KindValidation, Message: "two-factor authentication is not enabled"}

	ErrInvalidCredentials   = &Error{Kind: KindAuthentication, Message: "invalid email or password"}
	ErrInvalidTwoFactorCode = &Error{Kind: KindAuthentication, Message: "invalid or expired two-factor code"}
	ErrAccountInactive      = &Error{Kind: KindAuthentication, Message: "account is not active or verified"}
	ErrInvalidSession       = &Error{Kind: KindAuthentication, Message: "invalid or expired refresh token"}

	ErrAlreadyRegistered = &Error{Kind: KindConflict, Message: "already registered"}
	ErrIdentityLinked    = &Error{Kind: KindConflict, Message: "identity already linked to another account"}
	ErrUnverifiedLink    = &Error{Kind: KindConflict, Message: "an account with this email exists; sign in and link the provider from there"}

	ErrOAuthExchange = &Error{Kind: KindExternal, Message: "identity provider exchange failed"}
)

func externalError(err error) error {
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	return &Error{Kind: KindExternal, Message: "service temporarily unavailable", Err: err}
}
