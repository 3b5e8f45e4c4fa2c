// Package jobs runs periodic maintenance work such as service ranking.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type RankingStore interface {
	UpdateAllServiceRankings(ctx context.Context) (int32, error)
}

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

type Scheduler struct {
	sched   *cron.Cron
	store   RankingStore
	logger  *zap.Logger
	timeout time.Duration
}

func NewScheduler(store RankingStore, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		sched:   cron.New(cron.WithLocation(time.UTC), cron.WithParser(cronParser)),
		store:   store,
		logger:  logger,
		timeout: 5 * time.Minute,
	}
}

// Start schedules the ranking refresh on spec (e.g. "@hourly") and starts
// the cron loop.
func (s *Scheduler) Start(spec string) error {
	if _, err := s.sched.AddFunc(spec, s.RefreshRankings); err != nil {
		return err
	}
	s.sched.Start()
	return nil
}

// Stop waits for a running job to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.sched.Stop().Done():
	case <-ctx.Done():
	}
}

// RefreshRankings recomputes services.ranking_score.
func (s *Scheduler) RefreshRankings() {
	defer func() {
		if err := recover(); err != nil {
			s.logger.Error("ranking job panic", zap.Any("panic", err))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	n, err := s.store.UpdateAllServiceRankings(ctx)
	if err != nil {
		s.logger.Error("update service rankings", zap.Error(err))
		return
	}
	s.logger.Info("service rankings updated",
		zap.Int32("services", n),
		zap.Duration("took", time.Since(start)),
	)
}
