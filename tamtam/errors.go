package tamtam

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/WelcomerTeam/Sticker-Daemon/stickerjson"
)

// FileNotProcessedMarker is present in the error message when an attachment
// was uploaded but the server has not finished processing it yet.
const FileNotProcessedMarker = "file.not.processed"

var ErrMissingUploadURL = errors.New("upload endpoint returned no url")

// APIError is returned for any non-200 response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	ResponseBody []byte `json:"-"`
	StatusCode   int    `json:"-"`
}

func NewAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode:   statusCode,
		ResponseBody: body,
	}

	_ = stickerjson.Unmarshal(body, apiErr)

	return apiErr
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("tamtam api error %d: %s: %s", e.StatusCode, e.Code, e.Message)
	}

	return fmt.Sprintf("tamtam api error %d: %s", e.StatusCode, string(e.ResponseBody))
}

// IsFileNotProcessed reports if the attachment has not been processed yet and
// the same request should be repeated later.
func (e *APIError) IsFileNotProcessed() bool {
	return e.StatusCode == http.StatusBadRequest && strings.Contains(e.Message, FileNotProcessedMarker)
}

// IsFileNotProcessed reports if err is an APIError signalling a pending attachment.
func IsFileNotProcessed(err error) bool {
	var apiErr *APIError

	return errors.As(err, &apiErr) && apiErr.IsFileNotProcessed()
}
