package extraction

import (
	"errors"
	"net/http"
)

// Classified gateway failures. Downstream layers map these to user-facing
// messages without inspecting transport details.
var (
	ErrUnauthorized = errors.New("ai gateway: unauthorized")
	ErrRateLimited  = errors.New("ai gateway: rate limited")
	ErrServer       = errors.New("ai gateway: server error")
	ErrBadRequest   = errors.New("ai gateway: malformed request")
	ErrNoContent    = errors.New("ai gateway: no content in response")
)

// classifyStatus maps an HTTP status code to a sentinel error, or nil for
// success codes.
func classifyStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrUnauthorized
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	case code >= 500:
		return ErrServer
	default:
		return ErrBadRequest
	}
}
