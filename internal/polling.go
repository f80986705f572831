package internal

import (
	"time"
)

const pollErrorBackoff = 5 * time.Second

// pollUpdates long polls the destination platform for updates until the
// daemon is closed.
func (d *Daemon) pollUpdates() {
	defer d.wg.Done()

	d.Logger.Info().Msg("Polling for updates")

	var marker *int64

	for d.ctx.Err() == nil {
		list, err := d.TamTam.GetUpdates(d.ctx, marker, d.Configuration.TamTam.PollTimeout, d.Configuration.TamTam.PollLimit, handledUpdateTypes)
		if err != nil {
			if d.ctx.Err() != nil {
				return
			}

			d.Logger.Warn().Err(err).Msg("Failed to poll updates")

			_ = sleepContext(d.ctx, pollErrorBackoff)

			continue
		}

		for _, raw := range list.Updates {
			d.dispatchUpdate(raw)
		}

		if list.Marker != nil {
			marker = list.Marker
		}
	}
}
