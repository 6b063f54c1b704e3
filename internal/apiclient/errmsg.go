package apiclient

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	apperrors "github.com/todoproduction/todo-client/internal/errors"
)

// SessionExpiredMessage is shown when a call ended the session.
const SessionExpiredMessage = "Your session has expired. Please log in again."

// messageExpressions are tried in order against an error body.
var messageExpressions = []string{
	"error",
	"detail",
	"message",
	"non_field_errors[0]",
}

// UserMessage returns text suitable for showing next to a form: the API's own
// error message when the body carries one, the validation message for input
// rejected locally, and fallback otherwise.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case apperrors.ErrCodeValidation:
			return appErr.Message
		case apperrors.ErrCodeSessionInvalidated:
			return SessionExpiredMessage
		}
	}

	if msg := MessageFromBody(apperrors.GetBody(err)); msg != "" {
		return msg
	}
	return fallback
}

// MessageFromBody extracts a display message from a JSON error body.
// Returns "" when the body is not JSON or has no recognizable message.
func MessageFromBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return ""
	}

	for _, expr := range messageExpressions {
		v, err := jmespath.Search(expr, data)
		if err != nil {
			continue
		}
		if s := asMessage(v); s != "" {
			return s
		}
	}
	return firstFieldError(data)
}

// firstFieldError handles serializer errors shaped as {"field": ["msg", ...]}.
// Fields are visited in name order so the result is stable.
func firstFieldError(data any) string {
	obj, ok := data.(map[string]any)
	if !ok {
		return ""
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v, err := jmespath.Search("[0]", obj[k])
		if err != nil {
			continue
		}
		if s := asMessage(v); s != "" {
			return k + ": " + s
		}
	}
	return ""
}

func asMessage(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}
