package internal

import (
	"context"

	"github.com/WelcomerTeam/Sticker-Daemon/stickerjson"
	"github.com/WelcomerTeam/Sticker-Daemon/tamtam"
	gotils_strconv "github.com/savsgio/gotils/strconv"
)

// dispatchUpdate handles an update on its own goroutine. raw is copied as
// request bodies are reused once the handler returns.
func (d *Daemon) dispatchUpdate(raw []byte) {
	payload := make([]byte, len(raw))
	copy(payload, raw)

	d.wg.Add(1)
	d.UpdatesInflight.Inc()

	go func() {
		defer d.wg.Done()
		defer d.UpdatesInflight.Dec()

		d.HandleUpdate(d.ctx, payload)
	}()
}

// HandleUpdate handles a single update from the destination platform.
// Malformed updates are logged and ignored.
func (d *Daemon) HandleUpdate(ctx context.Context, raw []byte) {
	var update tamtam.Update

	if err := stickerjson.Unmarshal(raw, &update); err != nil {
		stickerUpdates.WithLabelValues("malformed").Inc()
		d.Logger.Error().Err(err).Str("payload", gotils_strconv.B2S(raw)).Msg("Failed to decode update")

		return
	}

	if update.UpdateType == "" {
		stickerUpdates.WithLabelValues("malformed").Inc()
		d.Logger.Error().Str("payload", gotils_strconv.B2S(raw)).Msg("Received update without type")

		return
	}

	stickerUpdates.WithLabelValues(string(update.UpdateType)).Inc()

	d.Logger.Debug().Str("type", string(update.UpdateType)).Msg("Received update")

	switch update.UpdateType {
	case tamtam.UpdateTypeBotStarted:
		d.onBotStarted(ctx, &update, raw)
	case tamtam.UpdateTypeMessageCreated:
		d.onMessageCreated(ctx, &update, raw)
	default:
		d.Logger.Debug().Str("type", string(update.UpdateType)).Msg("Ignoring unknown update type")
	}
}

func (d *Daemon) onBotStarted(ctx context.Context, update *tamtam.Update, raw []byte) {
	if update.User == nil || update.User.UserID == 0 {
		d.Logger.Error().Str("payload", gotils_strconv.B2S(raw)).Msg("Received bot_started without user")

		return
	}

	if d.isDuplicate(ctx, createDedupeBotStartedKey(update.User.UserID, update.Timestamp)) {
		return
	}

	d.Delivery.Notify(ctx, update.User.UserID, MessageWelcome, "")
}

func (d *Daemon) onMessageCreated(ctx context.Context, update *tamtam.Update, raw []byte) {
	message := update.Message
	if message == nil || message.Sender == nil || message.Sender.UserID == 0 || message.Body == nil {
		d.Logger.Error().Str("payload", gotils_strconv.B2S(raw)).Msg("Received bad message_created update")

		return
	}

	if message.Sender.IsBot {
		return
	}

	if message.Body.MID != "" && d.isDuplicate(ctx, createDedupeMessageKey(message.Body.MID)) {
		return
	}

	d.Migrator.Migrate(ctx, message.Sender.UserID, message.Body.Text)
}

// isDuplicate returns true if key has been handled recently. Dedupe
// failures are logged and the update is handled.
func (d *Daemon) isDuplicate(ctx context.Context, key string) bool {
	if d.Dedupe == nil {
		return false
	}

	duplicate, err := d.Dedupe.CheckAndAdd(ctx, key)
	if err != nil {
		d.Logger.Warn().Err(err).Str("key", key).Msg("Failed to check dedupe")

		return false
	}

	if duplicate {
		d.Logger.Debug().Str("key", key).Msg("Ignoring duplicate update")
	}

	return duplicate
}
