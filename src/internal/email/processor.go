package email

import (
	"context"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Processor drains the notice queue on a fixed interval. The serve command
// runs one and stops it during graceful shutdown.
type Processor struct {
	notices *NoticeService
	cfg     *viper.Viper
	logger  *zap.Logger
	stop    chan struct{}
	stopped chan struct{}
}

func NewProcessor(notices *NoticeService, cfg *viper.Viper, logger *zap.Logger) *Processor {
	return &Processor{
		notices: notices,
		cfg:     cfg,
		logger:  logger,
		stop:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
}

// Start blocks, draining the queue until the context is canceled or Stop is
// called. Run it in its own goroutine.
func (p *Processor) Start(ctx context.Context) {
	defer close(p.stopped)

	if !p.cfg.GetBool("email.enabled") {
		p.logger.Info("email processing disabled")
		return
	}

	interval := p.cfg.GetDuration("email.process_interval")
	if interval <= 0 {
		interval = 30 * time.Second
	}
	p.logger.Info("email processor started", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case <-ticker.C:
			sent, err := p.notices.ProcessPending(ctx)
			if err != nil {
				p.logger.Error("failed to process notice queue", zap.Error(err))
				continue
			}
			if sent > 0 {
				p.logger.Info("notices sent", zap.Int("count", sent))
			}
		}
	}
}

// Stop halts the processor and waits briefly for it to wind down.
func (p *Processor) Stop() {
	select {
	case p.stop <- struct{}{}:
	default:
	}

	select {
	case <-p.stopped:
	case <-time.After(5 * time.Second):
		p.logger.Warn("email processor stop timeout")
	}
}
