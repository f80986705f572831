package internal

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/WelcomerTeam/Sticker-Daemon/tamtam"
	"github.com/rs/zerolog"
	"golang.org/x/xerrors"
)

// Messenger is the part of the destination platform API used for delivery.
// *tamtam.Session implements it.
type Messenger interface {
	GetUploadURL(ctx context.Context, uploadType tamtam.UploadType) (*tamtam.UploadEndpoint, error)
	UploadFile(ctx context.Context, uploadURL string, fileName string, reader io.Reader) (*tamtam.UploadedInfo, error)
	SendMessage(ctx context.Context, userID int64, body tamtam.NewMessageBody, options tamtam.SendOptions) error
}

// SendState is the state of a single message being sent.
type SendState uint8

const (
	SendStateSending SendState = iota
	SendStateDelivered
	SendStateRetrying
	SendStateGivenUp
	SendStateFailed
)

func (s SendState) String() string {
	switch s {
	case SendStateSending:
		return "sending"
	case SendStateDelivered:
		return "delivered"
	case SendStateRetrying:
		return "retrying"
	case SendStateGivenUp:
		return "given_up"
	case SendStateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SendResult is the final state of a message after Send returns.
type SendResult struct {
	Err      error
	State    SendState
	Attempts int
	Waited   time.Duration
}

// DeliveryOutcome summarises a whole delivery.
type DeliveryOutcome string

const (
	DeliveryOutcomeDelivered    DeliveryOutcome = "delivered"
	DeliveryOutcomeGivenUp      DeliveryOutcome = "given_up"
	DeliveryOutcomeFailed       DeliveryOutcome = "failed"
	DeliveryOutcomeUploadFailed DeliveryOutcome = "upload_failed"
)

// DeliveryReport is returned by Deliver.
type DeliveryReport struct {
	Err      error           `json:"-"`
	Outcome  DeliveryOutcome `json:"outcome"`
	Archives int             `json:"archives"`
	Uploaded int             `json:"uploaded"`
	Sent     int             `json:"sent"`
}

// DeliveryManager uploads archives and sends them to users, resending
// messages while the destination is still processing their attachments.
type DeliveryManager struct {
	Logger zerolog.Logger

	messenger Messenger

	// sleep waits between resends. Returns early with the context error.
	sleep func(ctx context.Context, d time.Duration) error

	Options DeliveryConfiguration
}

func NewDeliveryManager(logger zerolog.Logger, messenger Messenger, options DeliveryConfiguration) *DeliveryManager {
	if options.MaxAttempts < 1 {
		options.MaxAttempts = DefaultMaxAttempts
	}

	return &DeliveryManager{
		Logger:    logger.With().Str("component", "delivery").Logger(),
		messenger: messenger,
		sleep:     sleepContext,
		Options:   options,
	}
}

// RetryDelay returns how long to wait after the attempt'th rejection.
func (dm *DeliveryManager) RetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	return dm.Options.BaseDelay + time.Duration(attempt-1)*dm.Options.DelayIncrement
}

// Send sends body to a user. Rejections because an attachment is not
// processed yet are retried with a linearly increasing delay. Once
// MaxAttempts is reached the user is told the upload failed. Any other
// error is logged and not retried.
func (dm *DeliveryManager) Send(ctx context.Context, userID int64, body tamtam.NewMessageBody) (result SendResult) {
	result.State = SendStateSending

	for {
		result.Attempts++

		dm.Logger.Info().
			Int64("user_id", userID).
			Str("text", body.Text).
			Int("attachments", len(body.Attachments)).
			Int("attempt", result.Attempts).
			Msg("Sending message")

		err := dm.messenger.SendMessage(ctx, userID, body, tamtam.SendOptions{DisableLinkPreview: true})
		if err == nil {
			result.State = SendStateDelivered

			return result
		}

		if !tamtam.IsFileNotProcessed(err) {
			dm.Logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to send message")

			result.State = SendStateFailed
			result.Err = err

			return result
		}

		if result.Attempts >= dm.Options.MaxAttempts {
			dm.Logger.Warn().
				Int64("user_id", userID).
				Int("attempts", result.Attempts).
				Dur("waited", result.Waited).
				Msg("Attachment was not processed in time, giving up")

			result.State = SendStateGivenUp
			result.Err = err

			dm.notify(ctx, userID, MessageRetryExhausted)

			return result
		}

		result.State = SendStateRetrying
		delay := dm.RetryDelay(result.Attempts)

		dm.Logger.Debug().
			Int64("user_id", userID).
			Dur("delay", delay).
			Msg("Attachment is not processed yet, retrying")

		stickerDeliveryRetries.Inc()

		if err = dm.sleep(ctx, delay); err != nil {
			result.State = SendStateFailed
			result.Err = err

			return result
		}

		result.Waited += delay
	}
}

// Notify sends a plain status message to a user.
func (dm *DeliveryManager) Notify(ctx context.Context, userID int64, text string, format tamtam.TextFormat) SendResult {
	return dm.Send(ctx, userID, tamtam.NewMessageBody{Text: text, Format: format})
}

// notify sends text once without retrying.
func (dm *DeliveryManager) notify(ctx context.Context, userID int64, text string) {
	err := dm.messenger.SendMessage(ctx, userID, tamtam.NewMessageBody{Text: text}, tamtam.SendOptions{DisableLinkPreview: true})
	if err != nil {
		dm.Logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to send notice")
	}
}

// Upload uploads the file at path and returns its attachment token.
func (dm *DeliveryManager) Upload(ctx context.Context, path string) (*tamtam.UploadedInfo, error) {
	endpoint, err := dm.messenger.GetUploadURL(ctx, tamtam.UploadTypeFile)
	if err != nil {
		return nil, xerrors.Errorf("failed to get upload url: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, xerrors.Errorf("failed to open archive: %w", err)
	}
	defer file.Close()

	info, err := dm.messenger.UploadFile(ctx, endpoint.URL, filepath.Base(path), file)
	if err != nil {
		return nil, xerrors.Errorf("failed to upload archive: %w", err)
	}

	if info.Token == "" {
		return nil, xerrors.Errorf("upload of %s returned no token", filepath.Base(path))
	}

	return info, nil
}

// Deliver uploads every archive and sends them to the user. A single archive
// is attached to the success message. Several archives are announced and
// then sent one message each, stopping at the first one that is not
// delivered. Local archives are removed once uploaded and none are left
// behind when Deliver returns.
func (dm *DeliveryManager) Deliver(ctx context.Context, userID int64, archives []string) (report DeliveryReport) {
	report.Archives = len(archives)

	defer removeArchives(archives)

	defer func() {
		stickerDeliveries.WithLabelValues(string(report.Outcome)).Inc()
	}()

	if len(archives) == 0 {
		report.Outcome = DeliveryOutcomeFailed
		report.Err = ErrNoArchives

		return report
	}

	attachments := make([]tamtam.AttachmentRequest, 0, len(archives))

	for _, path := range archives {
		info, err := dm.Upload(ctx, path)
		if err != nil {
			dm.Logger.Error().Err(err).Str("archive", path).Msg("Failed to upload archive")

			report.Outcome = DeliveryOutcomeUploadFailed
			report.Err = err

			return report
		}

		if err = os.Remove(path); err != nil {
			dm.Logger.Warn().Err(err).Str("archive", path).Msg("Failed to remove uploaded archive")
		}

		report.Uploaded++

		attachments = append(attachments, tamtam.NewFileAttachment(info.Token))
	}

	var results []SendResult

	if len(attachments) == 1 {
		results = append(results, dm.Send(ctx, userID, tamtam.NewMessageBody{
			Text:        MessageSuccess,
			Attachments: attachments,
		}))
	} else {
		results = append(results,
			dm.Notify(ctx, userID, MessageSuccess, ""),
			dm.Notify(ctx, userID, MessageManyStickers, ""),
		)

		// At most one failure notice per delivery.
		for _, attachment := range attachments {
			result := dm.Send(ctx, userID, tamtam.NewMessageBody{
				Attachments: []tamtam.AttachmentRequest{attachment},
			})

			results = append(results, result)

			if result.State != SendStateDelivered {
				break
			}
		}
	}

	report.Outcome = DeliveryOutcomeDelivered

	for _, result := range results {
		switch result.State {
		case SendStateDelivered:
			report.Sent++
		case SendStateGivenUp:
			if report.Outcome == DeliveryOutcomeDelivered {
				report.Outcome = DeliveryOutcomeGivenUp
				report.Err = result.Err
			}
		default:
			report.Outcome = DeliveryOutcomeFailed
			report.Err = result.Err
		}
	}

	return report
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
