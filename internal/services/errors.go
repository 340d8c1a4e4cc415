package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/studio/internal/shared"
)

// UnknownError is shown when a failure carries no message at all.
const UnknownError = "未知错误"

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("status %d", e.StatusCode)
	}
	return e.Message
}

// Unwrap makes every [APIError] match [shared.ErrAPIRequest].
func (e *APIError) Unwrap() error { return shared.ErrAPIRequest }

// newAPIError builds an [APIError] from a failed response body.
func newAPIError(status int, body []byte) *APIError {
	return &APIError{StatusCode: status, Message: ExtractErrorMessage(body)}
}

// ExtractErrorMessage pulls a human-readable message out of an error body.
//
// A JSON object with "error" and "detail" yields "error：detail", then either one alone;
// anything else yields the trimmed body text, which may be empty.
func ExtractErrorMessage(body []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err == nil {
		errMsg, detail := stringify(payload["error"]), stringify(payload["detail"])
		switch {
		case errMsg != "" && detail != "":
			return errMsg + "：" + detail
		case errMsg != "":
			return errMsg
		case detail != "":
			return detail
		}
	}
	return strings.TrimSpace(string(body))
}

// Describe turns err into the text shown to the user, using fallback when nothing better exists.
func Describe(err error, fallback string) string {
	if err == nil {
		return ""
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return fallback
	}

	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if !t {
			return ""
		}
	case float64:
		if t == 0 {
			return ""
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
