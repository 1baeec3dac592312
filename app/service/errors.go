package service

import "errors"

// Error kinds. Every error returned by the account service unwraps to at most one of these.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrExpired    = errors.New("expired")
	ErrInvalid    = errors.New("invalid")
	ErrConflict   = errors.New("conflict")
	ErrUnverified = errors.New("unverified")
	ErrUpstream   = errors.New("upstream failure")
)

var (
	ErrUserExists         = classify(ErrConflict, "user with this email already exists")
	ErrUsernameTaken      = classify(ErrConflict, "user with this username already exists")
	ErrDuplicateAccount   = classify(ErrConflict, "user with this email or username already exists")
	ErrUserNotFound       = classify(ErrNotFound, "no account with this email exists")
	ErrInvalidCredentials = classify(ErrInvalid, "no active account found with the given credentials")
	ErrEmailNotVerified   = classify(ErrUnverified, "email not verified")
	ErrInvalidCode        = classify(ErrInvalid, "invalid verification code")
	ErrCodeExpired        = classify(ErrExpired, "verification code has expired")
	ErrCodeConflict       = classify(ErrConflict, "another verification code is being issued, try again")
	ErrInvalidToken       = classify(ErrInvalid, "token is invalid or expired")
	ErrTokenExpired       = classify(ErrExpired, "token has expired")
	ErrPasswordMismatch   = classify(ErrValidation, "passwords do not match")
	ErrWeakPassword       = classify(ErrValidation, "password does not meet policy requirements")
	ErrMissingEmail       = classify(ErrInvalid, "identity provider did not supply an email")
)

var kinds = []error{
	ErrValidation,
	ErrNotFound,
	ErrExpired,
	ErrInvalid,
	ErrConflict,
	ErrUnverified,
	ErrUpstream,
}

type classifiedError struct {
	kind error
	msg  string
}

func classify(kind error, msg string) error {
	return &classifiedError{kind: kind, msg: msg}
}

func (e *classifiedError) Error() string {
	return e.msg
}

func (e *classifiedError) Unwrap() error {
	return e.kind
}

// Kind returns the error kind err belongs to, or nil when err is unclassified.
func Kind(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
