package lights

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"aidotbridge/aidot"
)

// StateSink receives every status update a poller observes.
type StateSink func(light *Light, status aidot.Status)

// Poller runs the status loop for one light: wait for the next pushed
// status, hand it to the sink, re-login when the session expires, and back
// off on anything else. It only stops when the context is cancelled.
type Poller struct {
	light      *Light
	retryDelay time.Duration
	sink       StateSink
	logger     zerolog.Logger

	onFailure func() // optional metrics hook
}

func NewPoller(light *Light, retryDelay time.Duration, sink StateSink, logger zerolog.Logger) *Poller {
	return &Poller{
		light:      light,
		retryDelay: retryDelay,
		sink:       sink,
		logger:     logger.With().Str("device", light.ID()).Logger(),
	}
}

// OnFailure installs a hook invoked once per failed poll iteration.
func (p *Poller) OnFailure(hook func()) { p.onFailure = hook }

func (p *Poller) Run(ctx context.Context) {
	client := p.light.Client()

	if err := client.Login(ctx); err != nil && ctx.Err() == nil {
		p.logger.Error().Err(err).Msg("initial login failed")
	}

	for {
		if ctx.Err() != nil {
			return
		}

		status, err := client.ReadStatus(ctx)
		switch {
		case err == nil:
			if p.sink != nil {
				p.sink(p.light, status)
			}

		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return

		case errors.Is(err, aidot.ErrNotLoggedIn):
			// Session expired: re-authenticate and keep polling. A failed
			// login is just another failed iteration, never a stop.
			if lerr := client.Login(ctx); lerr != nil {
				p.fail()
				p.logger.Error().Err(lerr).Msg("re-login failed")
				if !sleepCtx(ctx, p.retryDelay) {
					return
				}
			} else {
				p.logger.Debug().Msg("re-logged in after expired session")
			}

		default:
			p.fail()
			p.logger.Error().Err(err).Msg("status read failed")
			if !sleepCtx(ctx, p.retryDelay) {
				return
			}
		}
	}
}

func (p *Poller) fail() {
	if p.onFailure != nil {
		p.onFailure()
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
