package telegram

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/WelcomerTeam/Sticker-Daemon/stickerjson"
)

var ErrFileTooLarge = errors.New("file exceeds download limit")

// RestError contains the error structure that is returned by the Bot API.
type RestError struct {
	Message      *ErrorMessage
	ResponseBody []byte
	StatusCode   int
}

// ErrorMessage is the failure envelope, {"ok":false,"error_code":400,"description":"..."}.
type ErrorMessage struct {
	Description string `json:"description"`
	ErrorCode   int32  `json:"error_code"`
}

func NewRestError(resp *http.Response, body []byte) *RestError {
	var errorMessage ErrorMessage

	_ = stickerjson.Unmarshal(body, &errorMessage)

	return &RestError{
		StatusCode:   resp.StatusCode,
		ResponseBody: body,
		Message:      &errorMessage,
	}
}

func (r *RestError) Error() string {
	if r.Message != nil && r.Message.Description != "" {
		return fmt.Sprintf("telegram api error %d: %s", r.StatusCode, r.Message.Description)
	}

	return fmt.Sprintf("telegram api error %d: %s", r.StatusCode, string(r.ResponseBody))
}
