package ingest_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/grant-matcher/internal/domain"
	"github.com/jonesrussell/grant-matcher/internal/ingest"
	"github.com/jonesrussell/grant-matcher/internal/logger"
)

type fakeRunLog struct {
	started  int
	finished []*domain.ScrapeLog
}

func (f *fakeRunLog) Start(_ context.Context, _ domain.Source, _ time.Time) (int64, error) {
	f.started++
	return int64(f.started), nil
}

func (f *fakeRunLog) Finish(_ context.Context, log *domain.ScrapeLog) error {
	f.finished = append(f.finished, log)
	return nil
}

func TestServiceRun_RecordsSuccessfulBatch(t *testing.T) {
	t.Parallel()

	runs := &fakeRunLog{}
	engine := ingest.New(newFakeStore(), nil, logger.NewNop())
	svc := ingest.NewService(engine, runs, logger.NewNop())

	outcome, run, err := svc.Run(context.Background(), domain.SourceUKRI,
		[]domain.Record{sampleRecord()})
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.Created)
	assert.Equal(t, int64(1), run.ID)
	assert.Equal(t, domain.ScrapeSuccess, run.Status)
	assert.Equal(t, 1, run.GrantsFound)
	assert.Equal(t, 1, run.GrantsCreated)
	assert.NotNil(t, run.CompletedAt)
	require.Len(t, runs.finished, 1)
}

func TestServiceRun_RecordsFailedBatch(t *testing.T) {
	t.Parallel()

	runs := &fakeRunLog{}
	engine := ingest.New(newFakeStore(), nil, logger.NewNop())
	svc := ingest.NewService(engine, runs, logger.NewNop())

	bad := sampleRecord()
	bad.Title = ""

	_, run, err := svc.Run(context.Background(), domain.SourceUKRI,
		[]domain.Record{bad})
	require.Error(t, err)

	assert.Equal(t, domain.ScrapeError, run.Status)
	assert.NotEmpty(t, run.ErrorMessage)
	require.Len(t, runs.finished, 1)
	assert.Equal(t, domain.ScrapeError, runs.finished[0].Status)
}

// cancelledStore refuses to open a transaction once its context is done,
// the way a real database driver would.
type cancelledStore struct {
	*fakeStore
}

func (s *cancelledStore) WithinTx(ctx context.Context, fn func(tx ingest.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.fakeStore.WithinTx(ctx, fn)
}

func TestServiceRun_RecordsCancelledBatch(t *testing.T) {
	t.Parallel()

	runs := &fakeRunLog{}
	engine := ingest.New(&cancelledStore{newFakeStore()}, nil, logger.NewNop())
	svc := ingest.NewService(engine, runs, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, run, err := svc.Run(ctx, domain.SourceUKRI,
		[]domain.Record{sampleRecord()})
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, domain.ScrapeCancelled, run.Status)
	assert.NotEmpty(t, run.ErrorMessage)
	require.Len(t, runs.finished, 1)
	assert.Equal(t, domain.ScrapeCancelled, runs.finished[0].Status)
}

func TestServiceRun_NilRunLog(t *testing.T) {
	t.Parallel()

	engine := ingest.New(newFakeStore(), nil, logger.NewNop())
	svc := ingest.NewService(engine, nil, logger.NewNop())

	outcome, run, err := svc.Run(context.Background(), domain.SourceUKRI,
		[]domain.Record{sampleRecord()})
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.Created)
	assert.Zero(t, run.ID)
}
