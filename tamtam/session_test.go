package tamtam_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/WelcomerTeam/Sticker-Daemon/stickerjson"
	"github.com/WelcomerTeam/Sticker-Daemon/tamtam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "tt-token"

func newTestSession(t *testing.T, handler http.HandlerFunc) (*tamtam.Session, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	session, err := tamtam.NewSession(server.URL, testToken, time.Second)
	require.NoError(t, err)

	return session, server
}

func TestSendMessage(t *testing.T) {
	var received tamtam.NewMessageBody

	session, _ := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, testToken, r.URL.Query().Get("access_token"))
		assert.Equal(t, "42", r.URL.Query().Get("user_id"))
		assert.Equal(t, "true", r.URL.Query().Get("disable_link_preview"))

		require.NoError(t, stickerjson.UnmarshalReader(r.Body, &received))
		_, _ = w.Write([]byte(`{"message":{}}`))
	})

	err := session.SendMessage(context.Background(), 42, tamtam.NewMessageBody{
		Text:        "hello",
		Format:      tamtam.TextFormatMarkdown,
		Attachments: []tamtam.AttachmentRequest{tamtam.NewFileAttachment("tok")},
	}, tamtam.SendOptions{DisableLinkPreview: true})
	require.NoError(t, err)

	assert.Equal(t, "hello", received.Text)
	assert.Equal(t, tamtam.TextFormatMarkdown, received.Format)
	require.Len(t, received.Attachments, 1)
	assert.Equal(t, tamtam.AttachmentTypeFile, received.Attachments[0].Type)
	assert.Equal(t, "tok", received.Attachments[0].Payload.Token)
}

func TestSendMessageFileNotProcessed(t *testing.T) {
	session, _ := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"attachment.not.ready","message":"Key: errors.process.attachment.file.not.processed"}`))
	})

	err := session.SendMessage(context.Background(), 1, tamtam.NewMessageBody{Text: "x"}, tamtam.SendOptions{})
	require.Error(t, err)
	assert.True(t, tamtam.IsFileNotProcessed(err))

	var apiErr *tamtam.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "attachment.not.ready", apiErr.Code)
}

func TestSendMessageOtherError(t *testing.T) {
	session, _ := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"code":"chat.denied","message":"chat.denied"}`))
	})

	err := session.SendMessage(context.Background(), 1, tamtam.NewMessageBody{Text: "x"}, tamtam.SendOptions{})
	require.Error(t, err)
	assert.False(t, tamtam.IsFileNotProcessed(err))
}

func TestUpload(t *testing.T) {
	var server *httptest.Server

	session, server := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/uploads":
			assert.Equal(t, "file", r.URL.Query().Get("type"))
			_, _ = w.Write([]byte(`{"url":"` + server.URL + `/upload-target?id=1"}`))
		case "/upload-target":
			file, header, err := r.FormFile(tamtam.UploadFieldName)
			require.NoError(t, err)

			data, err := io.ReadAll(file)
			require.NoError(t, err)

			assert.Equal(t, "pack_0.zip", header.Filename)
			assert.Equal(t, "zipdata", string(data))

			_, _ = w.Write([]byte(`{"fileId":77,"token":"upload-token"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	endpoint, err := session.GetUploadURL(context.Background(), tamtam.UploadTypeFile)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(endpoint.URL, "/upload-target?id=1"))

	info, err := session.UploadFile(context.Background(), endpoint.URL, "pack_0.zip", strings.NewReader("zipdata"))
	require.NoError(t, err)
	assert.Equal(t, int64(77), info.FileID)
	assert.Equal(t, "upload-token", info.Token)
}

func TestGetUploadURLMissing(t *testing.T) {
	session, _ := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := session.GetUploadURL(context.Background(), tamtam.UploadTypeFile)
	assert.ErrorIs(t, err, tamtam.ErrMissingUploadURL)
}

func TestGetUpdates(t *testing.T) {
	session, _ := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/updates", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("marker"))
		assert.Equal(t, "bot_started,message_created", r.URL.Query().Get("types"))

		_, _ = w.Write([]byte(`{"updates":[{"update_type":"bot_started","chat_id":1,"user":{"user_id":2,"name":"n"}}],"marker":6}`))
	})

	marker := int64(5)

	list, err := session.GetUpdates(context.Background(), &marker, time.Second, 10,
		[]tamtam.UpdateType{tamtam.UpdateTypeBotStarted, tamtam.UpdateTypeMessageCreated})
	require.NoError(t, err)
	require.NotNil(t, list.Marker)
	assert.Equal(t, int64(6), *list.Marker)
	require.Len(t, list.Updates, 1)

	var update tamtam.Update
	require.NoError(t, stickerjson.Unmarshal(list.Updates[0], &update))
	assert.Equal(t, tamtam.UpdateTypeBotStarted, update.UpdateType)
	assert.Equal(t, int64(2), update.User.UserID)
}

func TestSubscribe(t *testing.T) {
	session, _ := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		var request tamtam.SubscriptionRequest
		require.NoError(t, stickerjson.UnmarshalReader(r.Body, &request))
		assert.Equal(t, "https://example.com/hook", request.URL)

		_, _ = w.Write([]byte(`{"success":true}`))
	})

	require.NoError(t, session.Subscribe(context.Background(), "https://example.com/hook", nil))
}
