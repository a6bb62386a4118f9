package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Error is a normalized API failure: one human-readable message, preferring
// the server-supplied detail over the raw transport status. Display layers
// never see transport internals.
type Error struct {
	StatusCode int
	Detail     string
}

func (e *Error) Error() string {
	return e.Detail
}

func newError(resp *http.Response) *Error {
	detail := fmt.Sprintf("request failed with status %d", resp.StatusCode)

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err == nil && len(body) > 0 {
		var payload struct {
			Detail  json.RawMessage `json:"detail"`
			Message string          `json:"message"`
		}
		if json.Unmarshal(body, &payload) == nil {
			switch {
			case len(payload.Detail) > 0:
				var s string
				if json.Unmarshal(payload.Detail, &s) == nil && s != "" {
					detail = s
				} else {
					// Validation errors arrive as structured detail.
					detail = string(payload.Detail)
				}
			case payload.Message != "":
				detail = payload.Message
			}
		}
	}

	return &Error{StatusCode: resp.StatusCode, Detail: detail}
}
