// internal/websocket/errors.go
package websocket

import "errors"

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNoProfile    = errors.New("user has no business or customer profile")
	ErrHubClosed    = errors.New("websocket hub is closed")
)
