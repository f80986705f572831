package tamtam

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/WelcomerTeam/Sticker-Daemon/stickerjson"
)

// UploadFieldName is the multipart field the upload server reads the file from.
const UploadFieldName = "data"

// SendMessage sends a message to a user. A response other than 200 is
// returned as *APIError, use IsFileNotProcessed to detect pending attachments.
func (s *Session) SendMessage(ctx context.Context, userID int64, body NewMessageBody, options SendOptions) error {
	query := url.Values{
		"user_id":              {strconv.FormatInt(userID, 10)},
		"disable_link_preview": {strconv.FormatBool(options.DisableLinkPreview)},
	}

	return s.FetchJJ(ctx, http.MethodPost, "/messages", query, body, nil)
}

// GetUploadURL returns a one-time URL to upload a file of the given type to.
func (s *Session) GetUploadURL(ctx context.Context, uploadType UploadType) (*UploadEndpoint, error) {
	var endpoint UploadEndpoint

	err := s.FetchJJ(ctx, http.MethodPost, "/uploads", url.Values{"type": {string(uploadType)}}, nil, &endpoint)
	if err != nil {
		return nil, err
	}

	if endpoint.URL == "" {
		return nil, ErrMissingUploadURL
	}

	return &endpoint, nil
}

// UploadFile sends the contents of reader as a multipart body to an upload URL
// returned by GetUploadURL.
func (s *Session) UploadFile(ctx context.Context, uploadURL string, fileName string, reader io.Reader) (*UploadedInfo, error) {
	var buf bytes.Buffer

	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile(UploadFieldName, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err = io.Copy(part, reader); err != nil {
		return nil, fmt.Errorf("failed to copy file: %w", err)
	}

	if err = writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	resp, err := s.Fetch(ctx, http.MethodPost, uploadURL, writer.FormDataContentType(), &buf)
	if err != nil {
		return nil, err
	}

	var info UploadedInfo

	if err = stickerjson.Unmarshal(resp, &info); err != nil {
		return nil, fmt.Errorf("failed to unmarshal upload response: %w", err)
	}

	return &info, nil
}
