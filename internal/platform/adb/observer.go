package adb

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mj1618/uibridge/internal/model"
)

const defaultPollInterval = 500 * time.Millisecond

// Observer reports layout changes by diffing successive dumps.
type Observer struct {
	screen  *Screen
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewObserver polls screen at most once per interval.
func NewObserver(screen *Screen, interval time.Duration, logger *zap.Logger) *Observer {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Observer{
		screen:  screen,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		logger:  logger,
	}
}

// Observe calls fn after every dump that differs from the one before it,
// until ctx is done.
func (o *Observer) Observe(ctx context.Context, fn func(reason string)) error {
	for {
		if err := o.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		changes, err := o.screen.Refresh(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			o.logger.Debug("layout poll failed", zap.Error(err))
			continue
		}
		if len(changes) > 0 {
			fn(summarize(changes))
		}
	}
}

func summarize(changes []model.UIChange) string {
	var added, removed, changed int
	for _, c := range changes {
		switch c.Type {
		case model.ChangeAdded:
			added++
		case model.ChangeRemoved:
			removed++
		default:
			changed++
		}
	}
	return fmt.Sprintf("layout: %d added, %d removed, %d changed", added, removed, changed)
}
