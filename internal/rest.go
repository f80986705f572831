package internal

import (
	"time"

	"github.com/WelcomerTeam/Sticker-Daemon/pkg/accumulator"
	"github.com/WelcomerTeam/Sticker-Daemon/pkg/methodrouter"
	"github.com/WelcomerTeam/Sticker-Daemon/stickerjson"
	gotils_strconv "github.com/savsgio/gotils/strconv"
	"github.com/valyala/fasthttp"
)

// RestResponse is the response when returning rest requests.
type RestResponse struct {
	Response interface{} `json:"response,omitempty"`
	Error    string      `json:"error,omitempty"`
	Ok       bool        `json:"ok"`
}

// StatusResponse is returned by /api/status.
type StatusResponse struct {
	StartTime       time.Time               `json:"start_time"`
	Version         string                  `json:"version"`
	Uptime          string                  `json:"uptime"`
	Jobs            []JobStatus             `json:"jobs"`
	Throughput      accumulator.SampleGroup `json:"throughput"`
	UpdatesInflight int32                   `json:"updates_inflight"`
	Polling         bool                    `json:"polling"`
}

// JobStatus is a migration in progress as shown by /api/status.
type JobStatus struct {
	StartedAt time.Time `json:"started_at"`
	ID        string    `json:"id"`
	Pack      string    `json:"pack"`
	Stage     string    `json:"stage"`
	UserID    int64     `json:"user_id"`
}

// NewRestRouter registers the webhook and status routes.
func (d *Daemon) NewRestRouter() fasthttp.RequestHandler {
	mr := methodrouter.NewMethodRouter()

	mr.HandleFunc(d.Configuration.HTTP.WebhookPath, d.WebhookHandler, fasthttp.MethodPost)
	mr.HandleFunc("/api/status", d.StatusHandler)
	mr.HandleFunc("/healthz", d.HealthHandler, fasthttp.MethodGet, fasthttp.MethodHead)

	return mr.Handler
}

// HandleRequest handles any incoming HTTP requests.
func (d *Daemon) HandleRequest(ctx *fasthttp.RequestCtx) {
	start := time.Now()

	defer func() {
		d.Logger.Debug().Msgf("%s %s %s %d %s",
			ctx.RemoteAddr(),
			gotils_strconv.B2S(ctx.Method()),
			gotils_strconv.B2S(ctx.Path()),
			ctx.Response.StatusCode(),
			time.Since(start).Round(time.Microsecond).String())
	}()

	d.RouterHandler(ctx)
}

// WebhookHandler accepts an update and handles it in the background. The
// platform is always answered with 200 so malformed updates are not redelivered.
func (d *Daemon) WebhookHandler(ctx *fasthttp.RequestCtx) {
	body := ctx.PostBody()

	if len(body) == 0 {
		d.Logger.Error().Msg("Received webhook without body")
	} else {
		d.dispatchUpdate(body)
	}

	writeJSON(ctx, fasthttp.StatusOK, RestResponse{Ok: true})
}

// StatusHandler returns the migrations in progress and recent throughput.
func (d *Daemon) StatusHandler(ctx *fasthttp.RequestCtx) {
	jobs := d.Migrator.Jobs.Values()

	status := StatusResponse{
		Version:         VERSION,
		StartTime:       d.StartTime,
		Uptime:          time.Since(d.StartTime).Round(time.Second).String(),
		Jobs:            make([]JobStatus, 0, len(jobs)),
		Throughput:      d.Throughput.GetLastSamples(throughputSamples),
		UpdatesInflight: d.UpdatesInflight.Load(),
		Polling:         d.Configuration.TamTam.Polling,
	}

	for _, job := range jobs {
		status.Jobs = append(status.Jobs, JobStatus{
			ID:        job.ID,
			Pack:      job.Pack,
			Stage:     job.Stage.Load(),
			UserID:    job.UserID,
			StartedAt: job.StartedAt,
		})
	}

	writeJSON(ctx, fasthttp.StatusOK, RestResponse{Ok: true, Response: status})
}

// HealthHandler reports the daemon is running.
func (d *Daemon) HealthHandler(ctx *fasthttp.RequestCtx) {
	if d.ctx.Err() != nil {
		writeJSON(ctx, fasthttp.StatusServiceUnavailable, RestResponse{Ok: false, Error: "closing"})

		return
	}

	writeJSON(ctx, fasthttp.StatusOK, RestResponse{Ok: true})
}

func writeJSON(ctx *fasthttp.RequestCtx, statusCode int, response RestResponse) {
	ctx.SetContentType("application/json;charset=UTF-8")
	ctx.SetStatusCode(statusCode)

	if err := stickerjson.MarshalToWriter(ctx, response); err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
	}
}
