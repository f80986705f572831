package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/WelcomerTeam/Sticker-Daemon/stickerjson"
)

const (
	EndpointTelegram = "https://api.telegram.org"
	UserAgent        = "StickerDaemon (github.com/WelcomerTeam/Sticker-Daemon)"

	// Downloads larger than this are refused. Bot API files are capped at 20MB.
	MaxDownloadSize = 20 << 20
)

// Session contains the context for the Bot API rest interface.
type Session struct {
	HTTP      *http.Client
	Endpoint  *url.URL
	Token     string
	UserAgent string
}

// NewSession creates a session against the given Bot API endpoint. An empty
// endpoint uses the public Telegram API.
func NewSession(endpoint string, token string, timeout time.Duration) (*Session, error) {
	if endpoint == "" {
		endpoint = EndpointTelegram
	}

	parsed, err := url.Parse(strings.TrimRight(endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse endpoint: %w", err)
	}

	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	return &Session{
		HTTP:      &http.Client{Timeout: timeout},
		Endpoint:  parsed,
		Token:     token,
		UserAgent: UserAgent,
	}, nil
}

func (s *Session) methodURL(method string, query url.Values) string {
	u := *s.Endpoint
	u.Path += "/bot" + s.Token + "/" + method
	u.RawQuery = query.Encode()

	return u.String()
}

func (s *Session) fileURL(filePath string) string {
	u := *s.Endpoint
	u.Path += "/file/bot" + s.Token + "/" + strings.TrimLeft(filePath, "/")

	return u.String()
}

// Fetch performs a GET request and returns the body. Any non-200 response is
// returned as a *RestError.
func (s *Session) Fetch(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create new request: %w", err)
	}

	req.Header.Set("User-Agent", s.UserAgent)

	resp, err := s.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to do request: %w", redact(err, s.Token))
	}

	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxDownloadSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	if len(body) > MaxDownloadSize {
		return nil, ErrFileTooLarge
	}

	if resp.StatusCode != http.StatusOK {
		return body, NewRestError(resp, body)
	}

	return body, nil
}

// FetchResult calls a Bot API method and decodes the result field of the
// response envelope into response.
func (s *Session) FetchResult(ctx context.Context, method string, query url.Values, response interface{}) error {
	body, err := s.Fetch(ctx, s.methodURL(method, query))
	if err != nil {
		return err
	}

	var envelope apiResponse

	if err = stickerjson.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !envelope.OK {
		return &RestError{
			StatusCode:   http.StatusOK,
			ResponseBody: body,
			Message:      &ErrorMessage{ErrorCode: envelope.ErrorCode, Description: envelope.Description},
		}
	}

	if response != nil {
		if err = stickerjson.Unmarshal(envelope.Result, response); err != nil {
			return fmt.Errorf("failed to unmarshal result: %w", err)
		}
	}

	return nil
}

// redact strips the bot token from transport errors, url.Error includes the
// full request URL.
func redact(err error, token string) error {
	if token == "" {
		return err
	}

	return redactedError{err: err, message: strings.ReplaceAll(err.Error(), token, "<token>")}
}

type redactedError struct {
	err     error
	message string
}

func (r redactedError) Error() string { return r.message }
func (r redactedError) Unwrap() error { return r.err }
