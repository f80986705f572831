package tamtam

import (
	"bytes"
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
	EndpointTamTam = "https://botapi.tamtam.chat"
	UserAgent      = "StickerDaemon (github.com/WelcomerTeam/Sticker-Daemon)"
)

// Session contains the context for the TamTam bot rest interface.
type Session struct {
	HTTP      *http.Client
	Endpoint  *url.URL
	Token     string
	UserAgent string

	Debug bool
}

// NewSession creates a session against the given endpoint. An empty endpoint
// uses the public TamTam bot API.
func NewSession(endpoint string, token string, timeout time.Duration) (*Session, error) {
	if endpoint == "" {
		endpoint = EndpointTamTam
	}

	parsed, err := url.Parse(strings.TrimRight(endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse endpoint: %w", err)
	}

	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Session{
		HTTP:      &http.Client{Timeout: timeout},
		Endpoint:  parsed,
		Token:     token,
		UserAgent: UserAgent,
	}, nil
}

func (s *Session) endpointURL(path string, query url.Values) string {
	if query == nil {
		query = url.Values{}
	}

	query.Set("access_token", s.Token)

	u := *s.Endpoint
	u.Path += path
	u.RawQuery = query.Encode()

	return u.String()
}

// Fetch constructs a request against an absolute URL. Responses other than
// 200 are returned as *APIError along with the raw body.
func (s *Session) Fetch(ctx context.Context, method, endpoint, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create new request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	req.Header.Set("User-Agent", s.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to do request: %w", redact(err, s.Token))
	}

	defer resp.Body.Close()

	response, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	if s.Debug {
		println(method, req.URL.Path, resp.StatusCode, contentType, string(response))
	}

	if resp.StatusCode != http.StatusOK {
		return response, NewAPIError(resp.StatusCode, response)
	}

	return response, nil
}

// FetchJJ sends payload as JSON and decodes the JSON response.
func (s *Session) FetchJJ(ctx context.Context, method, path string, query url.Values, payload interface{}, response interface{}) error {
	var body io.Reader

	if payload != nil {
		data, err := stickerjson.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}

		body = bytes.NewReader(data)
	}

	resp, err := s.Fetch(ctx, method, s.endpointURL(path, query), "application/json", body)
	if err != nil {
		return err
	}

	if response != nil && len(resp) > 0 {
		if err = stickerjson.Unmarshal(resp, response); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}

func redact(err error, token string) error {
	if token == "" {
		return err
	}

	return redactedError{err: err, message: strings.ReplaceAll(err.Error(), url.QueryEscape(token), "<token>")}
}

type redactedError struct {
	err     error
	message string
}

func (r redactedError) Error() string { return r.message }
func (r redactedError) Unwrap() error { return r.err }
