package jobs_test

import (
	"context"
	"errors"
	"testing"

	"github.com/eventmarket/api/internal/jobs"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeRankingStore struct {
	calls int
	n     int32
	err   error
}

func (f *fakeRankingStore) UpdateAllServiceRankings(context.Context) (int32, error) {
	f.calls++
	return f.n, f.err
}

func TestRefreshRankingsLogsCount(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	store := &fakeRankingStore{n: 12}

	jobs.NewScheduler(store, zap.New(core)).RefreshRankings()

	assert.Equal(t, 1, store.calls)
	entries := logs.FilterMessage("service rankings updated").All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, int32(12), entries[0].ContextMap()["services"])
	}
}

func TestRefreshRankingsLogsError(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	store := &fakeRankingStore{err: errors.New("db down")}

	jobs.NewScheduler(store, zap.New(core)).RefreshRankings()

	assert.Equal(t, 1, logs.FilterMessage("update service rankings").Len())
}

func TestStartRejectsBadSpec(t *testing.T) {
	s := jobs.NewScheduler(&fakeRankingStore{}, nil)
	assert.Error(t, s.Start("not a cron spec"))

	good := jobs.NewScheduler(&fakeRankingStore{}, nil)
	assert.NoError(t, good.Start("@hourly"))
	good.Stop(context.Background())
}
