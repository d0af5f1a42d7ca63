// Package peer adapts the order service's synchronous ports to the store and payment services,
// either in-process or over HTTP.
package peer

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	"github.com/Zhima-Mochi/minishop-checkout/internal/pkg/httpx"
)

// errorBody is the error envelope every service writes.
type errorBody struct {
	Error string `json:"error"`
}

// peerError turns a rejected peer answer into the matching application error.
// Anything else is returned unchanged and treated as a transport failure by the caller.
func peerError(err error) error {
	var se *httpx.StatusError
	if !errors.As(err, &se) || se.Code < 400 || se.Code > 499 {
		return err
	}
	var body errorBody
	msg := strings.TrimSpace(se.Body)
	if json.Unmarshal([]byte(se.Body), &body) == nil && body.Error != "" {
		msg = body.Error
	}
	switch se.Code {
	case 404:
		return application.NewNotFound(msg, err)
	case 403:
		return application.NewForbidden(msg)
	default:
		return application.NewValidation(msg, err)
	}
}
