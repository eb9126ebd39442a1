package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper periodically retires expired tokens, lapsed sessions and expired
// blocks so lazy checks on the read path stay cheap.
type Sweeper struct {
	tokens   TokenSweeper
	blocks   BlockSweeper
	interval time.Duration
	log      *zap.Logger
}

type TokenSweeper interface {
	SweepExpired() (sessions, tokens int64, err error)
}

type BlockSweeper interface {
	SweepExpired() (int64, error)
}

func NewSweeper(tokens TokenSweeper, blocks BlockSweeper, interval time.Duration, log *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{tokens: tokens, blocks: blocks, interval: interval, log: log}
}

// Run blocks until ctx is cancelled, sweeping once per interval.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.sweep()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopped")
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Sweeper) sweep() {
	sessions, tokens, err := s.tokens.SweepExpired()
	if err != nil {
		s.log.Error("token sweep failed", zap.Error(err))
	} else if sessions > 0 || tokens > 0 {
		s.log.Info("token sweep",
			zap.Int64("sessions_expired", sessions),
			zap.Int64("tokens_deactivated", tokens))
	}
	blocks, err := s.blocks.SweepExpired()
	if err != nil {
		s.log.Error("block sweep failed", zap.Error(err))
	} else if blocks > 0 {
		s.log.Info("block sweep", zap.Int64("blocks_expired", blocks))
	}
}
