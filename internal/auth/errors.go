package auth

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("resource conflict")

	// ErrInvalidCredentials covers unknown email, inactive account, and wrong
	// password alike so login does not leak which one failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is distinct from ErrInvalidToken so a client can decide
	// whether a refresh attempt is worthwhile.
	ErrExpiredToken = errors.New("token expired")
	ErrUserDisabled = errors.New("user disabled")
	ErrForbidden    = errors.New("forbidden")

	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)
