package internal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/WelcomerTeam/Sticker-Daemon/tamtam"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDeliveryManager(messenger Messenger) (*DeliveryManager, *recordingSleep) {
	dm := NewDeliveryManager(zerolog.Nop(), messenger, DeliveryConfiguration{
		MaxAttempts:    DefaultMaxAttempts,
		BaseDelay:      DefaultBaseDelay,
		DelayIncrement: DefaultDelayIncrement,
	})

	rs := &recordingSleep{}
	dm.sleep = rs.sleep

	return dm, rs
}

func writeTestArchives(t *testing.T, count int) []string {
	t.Helper()

	dir := t.TempDir()
	paths := make([]string, count)

	for i := range paths {
		paths[i] = filepath.Join(dir, ArchiveName("foo", i))
		require.NoError(t, os.WriteFile(paths[i], []byte("zip"), PermissionWrite))
	}

	return paths
}

func TestDeliverSingleArchive(t *testing.T) {
	messenger := &fakeMessenger{}
	dm, rs := newTestDeliveryManager(messenger)

	archives := writeTestArchives(t, 1)

	report := dm.Deliver(context.Background(), 42, archives)
	require.NoError(t, report.Err)

	assert.Equal(t, DeliveryOutcomeDelivered, report.Outcome)
	assert.Equal(t, 1, report.Archives)
	assert.Equal(t, 1, report.Uploaded)
	assert.Equal(t, 1, report.Sent)
	assert.Empty(t, rs.delays)

	assert.Equal(t, []string{"foo_0.zip"}, messenger.uploaded())

	sent := messenger.messages()
	require.Len(t, sent, 1)
	assert.EqualValues(t, 42, sent[0].UserID)
	assert.Equal(t, MessageSuccess, sent[0].Body.Text)
	require.Len(t, sent[0].Body.Attachments, 1)
	assert.Equal(t, tamtam.AttachmentTypeFile, sent[0].Body.Attachments[0].Type)
	assert.Equal(t, "token-1", sent[0].Body.Attachments[0].Payload.Token)

	assert.NoFileExists(t, archives[0])
}

func TestDeliverManyArchivesForewarns(t *testing.T) {
	messenger := &fakeMessenger{}
	dm, _ := newTestDeliveryManager(messenger)

	archives := writeTestArchives(t, 3)

	report := dm.Deliver(context.Background(), 7, archives)
	require.NoError(t, report.Err)
	assert.Equal(t, DeliveryOutcomeDelivered, report.Outcome)
	assert.Equal(t, 3, report.Uploaded)
	assert.Equal(t, 5, report.Sent)

	sent := messenger.messages()
	require.Len(t, sent, 5)

	assert.Equal(t, MessageSuccess, sent[0].Body.Text)
	assert.Empty(t, sent[0].Body.Attachments)
	assert.Equal(t, MessageManyStickers, sent[1].Body.Text)
	assert.Empty(t, sent[1].Body.Attachments)

	for i, message := range sent[2:] {
		require.Len(t, message.Body.Attachments, 1)
		assert.Equal(t, "token-"+string(rune('1'+i)), message.Body.Attachments[0].Payload.Token)
	}

	for _, archive := range archives {
		assert.NoFileExists(t, archive)
	}
}

func TestSendRetriesUntilProcessed(t *testing.T) {
	rejections := 2

	messenger := &fakeMessenger{sendFunc: func(body tamtam.NewMessageBody) error {
		if len(body.Attachments) > 0 && rejections > 0 {
			rejections--

			return fileNotProcessedError()
		}

		return nil
	}}
	dm, rs := newTestDeliveryManager(messenger)

	report := dm.Deliver(context.Background(), 1, writeTestArchives(t, 1))
	require.NoError(t, report.Err)
	assert.Equal(t, DeliveryOutcomeDelivered, report.Outcome)

	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rs.delays)

	sent := messenger.messages()
	require.Len(t, sent, 3)

	// The same payload is resent.
	for _, message := range sent {
		assert.Equal(t, sent[0].Body, message.Body)
	}
}

func TestSendGivesUpWithOneNotice(t *testing.T) {
	messenger := &fakeMessenger{sendFunc: func(body tamtam.NewMessageBody) error {
		if len(body.Attachments) > 0 {
			return fileNotProcessedError()
		}

		return nil
	}}
	dm, rs := newTestDeliveryManager(messenger)

	report := dm.Deliver(context.Background(), 1, writeTestArchives(t, 1))
	assert.Equal(t, DeliveryOutcomeGivenUp, report.Outcome)
	assert.True(t, tamtam.IsFileNotProcessed(report.Err))
	assert.Equal(t, 0, report.Sent)

	require.Len(t, rs.delays, DefaultMaxAttempts-1)

	for i := 1; i < len(rs.delays); i++ {
		assert.Greater(t, rs.delays[i], rs.delays[i-1])
	}

	sent := messenger.messages()
	require.Len(t, sent, DefaultMaxAttempts+1)

	notices := 0

	for _, message := range sent {
		if message.Body.Text == MessageRetryExhausted {
			notices++

			assert.Empty(t, message.Body.Attachments)
		}
	}

	assert.Equal(t, 1, notices)
	assert.Equal(t, MessageRetryExhausted, sent[len(sent)-1].Body.Text)
}

func TestSendDoesNotRetryOtherErrors(t *testing.T) {
	messenger := &fakeMessenger{sendFunc: func(tamtam.NewMessageBody) error {
		return tamtam.NewAPIError(400, []byte(`{"code":"proto.payload","message":"text: size must be between 0 and 4000"}`))
	}}
	dm, rs := newTestDeliveryManager(messenger)

	result := dm.Send(context.Background(), 1, tamtam.NewMessageBody{Text: "hello"})
	assert.Equal(t, SendStateFailed, result.State)
	assert.Equal(t, 1, result.Attempts)
	assert.Error(t, result.Err)
	assert.Empty(t, rs.delays)
	assert.Len(t, messenger.messages(), 1)
}

func TestSendNotProcessedOnOtherStatusIsNotRetried(t *testing.T) {
	messenger := &fakeMessenger{sendFunc: func(tamtam.NewMessageBody) error {
		return tamtam.NewAPIError(500, []byte(`{"code":"internal","message":"file.not.processed"}`))
	}}
	dm, _ := newTestDeliveryManager(messenger)

	result := dm.Send(context.Background(), 1, tamtam.NewMessageBody{Text: "hello"})
	assert.Equal(t, SendStateFailed, result.State)
	assert.Equal(t, 1, result.Attempts)
}

func TestSendStopsWhenCancelled(t *testing.T) {
	messenger := &fakeMessenger{sendFunc: func(tamtam.NewMessageBody) error {
		return fileNotProcessedError()
	}}
	dm, _ := newTestDeliveryManager(messenger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := dm.Send(ctx, 1, tamtam.NewMessageBody{Text: "hello"})
	assert.Equal(t, SendStateFailed, result.State)
	assert.ErrorIs(t, result.Err, context.Canceled)
	assert.Equal(t, 1, result.Attempts)
}

func TestDeliverUploadFailureRemovesArchives(t *testing.T) {
	messenger := &fakeMessenger{uploadErr: errors.New("upload refused")}
	dm, _ := newTestDeliveryManager(messenger)

	archives := writeTestArchives(t, 2)

	report := dm.Deliver(context.Background(), 1, archives)
	assert.Equal(t, DeliveryOutcomeUploadFailed, report.Outcome)
	assert.Error(t, report.Err)
	assert.Equal(t, 0, report.Uploaded)
	assert.Empty(t, messenger.messages())

	for _, archive := range archives {
		assert.NoFileExists(t, archive)
	}
}

func TestDeliverWithoutArchives(t *testing.T) {
	dm, _ := newTestDeliveryManager(&fakeMessenger{})

	report := dm.Deliver(context.Background(), 1, nil)
	assert.Equal(t, DeliveryOutcomeFailed, report.Outcome)
	assert.ErrorIs(t, report.Err, ErrNoArchives)
}

func TestRetryDelay(t *testing.T) {
	dm, _ := newTestDeliveryManager(&fakeMessenger{})

	assert.Equal(t, time.Second, dm.RetryDelay(1))
	assert.Equal(t, 2*time.Second, dm.RetryDelay(2))
	assert.Equal(t, 4*time.Second, dm.RetryDelay(4))
	assert.Equal(t, time.Second, dm.RetryDelay(0))
}

func TestSendStateString(t *testing.T) {
	assert.Equal(t, "delivered", SendStateDelivered.String())
	assert.Equal(t, "given_up", SendStateGivenUp.String())
	assert.Equal(t, "unknown", SendState(200).String())
}

func TestDeliverManyArchivesStopsAfterGivingUp(t *testing.T) {
	messenger := &fakeMessenger{sendFunc: func(body tamtam.NewMessageBody) error {
		if len(body.Attachments) > 0 {
			return fileNotProcessedError()
		}

		return nil
	}}
	dm, rs := newTestDeliveryManager(messenger)

	archives := writeTestArchives(t, 3)

	report := dm.Deliver(context.Background(), 1, archives)
	assert.Equal(t, DeliveryOutcomeGivenUp, report.Outcome)
	assert.True(t, tamtam.IsFileNotProcessed(report.Err))
	assert.Equal(t, 3, report.Uploaded)
	assert.Equal(t, 2, report.Sent)
	assert.Len(t, rs.delays, DefaultMaxAttempts-1)

	sent := messenger.messages()

	// Success text, forewarning, every attempt of the first archive, one notice.
	require.Len(t, sent, 2+DefaultMaxAttempts+1)

	notices := 0

	for _, message := range sent {
		if message.Body.Text == MessageRetryExhausted {
			notices++
		}

		if len(message.Body.Attachments) > 0 {
			assert.Equal(t, "token-1", message.Body.Attachments[0].Payload.Token)
		}
	}

	assert.Equal(t, 1, notices)
	assert.Equal(t, MessageRetryExhausted, sent[len(sent)-1].Body.Text)

	for _, archive := range archives {
		assert.NoFileExists(t, archive)
	}
}

func TestDeliverManyArchivesStopsAfterFailure(t *testing.T) {
	messenger := &fakeMessenger{sendFunc: func(body tamtam.NewMessageBody) error {
		if len(body.Attachments) > 0 {
			return tamtam.NewAPIError(403, []byte(`{"code":"chat.denied","message":"chat.denied"}`))
		}

		return nil
	}}
	dm, _ := newTestDeliveryManager(messenger)

	report := dm.Deliver(context.Background(), 1, writeTestArchives(t, 3))
	assert.Equal(t, DeliveryOutcomeFailed, report.Outcome)
	assert.Error(t, report.Err)

	sent := messenger.messages()
	require.Len(t, sent, 3)
	assert.Len(t, sent[2].Body.Attachments, 1)
}
