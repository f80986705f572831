package tamtam

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// GetMe returns information about the bot the token belongs to.
func (s *Session) GetMe(ctx context.Context) (*BotInfo, error) {
	var info BotInfo

	if err := s.FetchJJ(ctx, http.MethodGet, "/me", nil, nil, &info); err != nil {
		return nil, err
	}

	return &info, nil
}

// Subscribe registers a webhook URL that updates of the given types are sent to.
func (s *Session) Subscribe(ctx context.Context, webhookURL string, updateTypes []UpdateType) error {
	var result SimpleQueryResult

	err := s.FetchJJ(ctx, http.MethodPost, "/subscriptions", nil, SubscriptionRequest{
		URL:         webhookURL,
		UpdateTypes: updateTypes,
	}, &result)
	if err != nil {
		return err
	}

	if !result.Success {
		return errors.New("subscribe failed: " + result.Message)
	}

	return nil
}

// GetUpdates long polls for updates. A nil marker starts from the oldest
// unconfirmed update.
func (s *Session) GetUpdates(ctx context.Context, marker *int64, timeout time.Duration, limit int, updateTypes []UpdateType) (*UpdateList, error) {
	query := url.Values{
		"timeout": {strconv.Itoa(int(timeout.Seconds()))},
		"limit":   {strconv.Itoa(limit)},
	}

	if marker != nil {
		query.Set("marker", strconv.FormatInt(*marker, 10))
	}

	if len(updateTypes) > 0 {
		types := make([]string, len(updateTypes))
		for i, updateType := range updateTypes {
			types[i] = string(updateType)
		}

		query.Set("types", strings.Join(types, ","))
	}

	var list UpdateList

	if err := s.FetchJJ(ctx, http.MethodGet, "/updates", query, nil, &list); err != nil {
		return nil, err
	}

	return &list, nil
}
