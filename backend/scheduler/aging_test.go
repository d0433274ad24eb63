package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/imoveplus/crm/backend/scheduler"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	log "gopkg.in/inconshreveable/log15.v2"
)

type execRecorder struct {
	mutex sync.Mutex
	sqls  []string
	err   error
}

func (r *execRecorder) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not supported")
}

func (r *execRecorder) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

func (r *execRecorder) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.sqls = append(r.sqls, sql)
	if r.err != nil {
		return pgconn.CommandTag{}, r.err
	}
	return pgconn.NewCommandTag("UPDATE 3"), nil
}

func (r *execRecorder) count() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.sqls)
}

func discardLogger() log.Logger {
	logger := log.New()
	logger.SetHandler(log.DiscardHandler())
	return logger
}

func TestAgingRunOnce(t *testing.T) {
	db := &execRecorder{}
	aging := scheduler.NewAging(db, "", discardLogger())

	n, err := aging.RunOnce(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	require.Len(t, db.sqls, 1)
	assert.Contains(t, db.sqls[0], "days_in_stage=days_in_stage+1")
}

func TestAgingRunOnceError(t *testing.T) {
	db := &execRecorder{err: errors.New("connection refused")}
	aging := scheduler.NewAging(db, "", discardLogger())

	_, err := aging.RunOnce(context.Background())
	require.Error(t, err)
}

func TestAgingRunsOnSchedule(t *testing.T) {
	db := &execRecorder{}
	aging := scheduler.NewAging(db, "@every 1s", discardLogger())
	require.NoError(t, aging.Start())
	defer aging.Stop()

	assert.False(t, aging.NextRun().IsZero())
	require.Eventually(t, func() bool { return db.count() > 0 }, 5*time.Second, 50*time.Millisecond)
}

func TestAgingRejectsBadSpec(t *testing.T) {
	aging := scheduler.NewAging(&execRecorder{}, "every tuesday", discardLogger())
	require.Error(t, aging.Start())
}
