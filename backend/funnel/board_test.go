package funnel_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/imoveplus/crm/backend/funnel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	log "gopkg.in/inconshreveable/log15.v2"
)

func discardLogger() log.Logger {
	logger := log.New()
	logger.SetHandler(log.DiscardHandler())
	return logger
}

// gatedRemote holds every Patch until release is closed.
type gatedRemote struct {
	*funnel.MemoryRemote
	release chan struct{}
}

func (r *gatedRemote) Patch(ctx context.Context, id string, stage funnel.Stage) (*funnel.Item, error) {
	<-r.release
	return r.MemoryRemote.Patch(ctx, id, stage)
}

func loadedBoard(t *testing.T, remote funnel.Remote) *funnel.Board {
	board := funnel.NewBoard(remote, discardLogger())
	require.Equal(t, funnel.StateLoading, board.State())
	board.Load(context.Background())
	return board
}

func TestBoardLoadOrdersByLastContactDescending(t *testing.T) {
	older := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(48 * time.Hour)
	remote := funnel.NewMemoryRemote(
		funnel.Item{ID: "never", Stage: funnel.StageNew},
		funnel.Item{ID: "older", Stage: funnel.StageNew, LastContact: &older},
		funnel.Item{ID: "newer", Stage: funnel.StageNew, LastContact: &newer},
	)

	board := loadedBoard(t, remote)
	assert.Equal(t, funnel.StateReady, board.State())

	items := board.Items()
	require.Len(t, items, 3)
	assert.Equal(t, "newer", items[0].ID)
	assert.Equal(t, "older", items[1].ID)
	assert.Equal(t, "never", items[2].ID)
}

func TestBoardLoadFailureLeavesEmptyBoard(t *testing.T) {
	remote := funnel.NewMemoryRemote(sampleItems()...)
	remote.ListErr = errors.New("connection refused")

	board := loadedBoard(t, remote)
	assert.Equal(t, funnel.StateError, board.State())
	assert.Empty(t, board.Items())
}

func TestBoardLoadNothing(t *testing.T) {
	board := loadedBoard(t, funnel.NewMemoryRemote())
	assert.Equal(t, funnel.StateEmpty, board.State())
}

func TestBoardCompleteDragMovesItem(t *testing.T) {
	remote := funnel.NewMemoryRemote(sampleItems()...)
	board := loadedBoard(t, remote)

	board.BeginDrag("3")
	dragged, ok := board.Dragging()
	require.True(t, ok)
	assert.Equal(t, "Carla", dragged.LeadName)

	p := board.CompleteDrag(context.Background(), "3", "2")
	require.NotNil(t, p)
	require.NoError(t, p.Wait())

	_, ok = board.Dragging()
	assert.False(t, ok)

	column := board.Column(funnel.StageQualifying)
	require.Len(t, column, 2)
	moved := column[1]
	assert.Equal(t, "3", moved.ID)
	assert.Equal(t, 0, moved.DaysInStage)

	stored, ok := remote.Get("3")
	require.True(t, ok)
	assert.Equal(t, funnel.StageQualifying, stored.Stage)
}

func TestBoardCompleteDragIsVisibleBeforePatchResolves(t *testing.T) {
	remote := &gatedRemote{MemoryRemote: funnel.NewMemoryRemote(sampleItems()...), release: make(chan struct{})}
	board := loadedBoard(t, remote)

	p := board.CompleteDrag(context.Background(), "1", "4")
	require.NotNil(t, p)

	select {
	case <-p.Done():
		t.Fatal("patch resolved before it was released")
	default:
	}

	lost := board.Column(funnel.StageLost)
	require.Len(t, lost, 2)
	assert.Equal(t, "1", lost[0].ID)
	assert.Equal(t, 0, lost[0].DaysInStage)

	close(remote.release)
	require.NoError(t, p.Wait())
	assert.Len(t, board.Column(funnel.StageLost), 2)
}

func TestBoardCompleteDragNoOps(t *testing.T) {
	tests := []struct {
		descr     string
		draggedID string
		overID    string
	}{
		{"unknown dragged item", "missing", "2"},
		{"dropped over untracked element", "1", "column-closed"},
		{"dropped over item in same column", "1", "3"},
		{"dropped over itself", "1", "1"},
	}

	for _, tt := range tests {
		board := loadedBoard(t, funnel.NewMemoryRemote(sampleItems()...))
		before := board.Items()

		p := board.CompleteDrag(context.Background(), tt.draggedID, tt.overID)
		assert.Nil(t, p, tt.descr)
		assert.Equal(t, before, board.Items(), tt.descr)
	}
}

func TestBoardRollsBackOnPatchFailure(t *testing.T) {
	remote := funnel.NewMemoryRemote(sampleItems()...)
	remote.PatchErr = errors.New("backend unavailable")
	board := loadedBoard(t, remote)
	before := board.Items()

	var reverted string
	board.OnRevert = func(itemID string, stage funnel.Stage, err error) {
		reverted = itemID
	}

	p := board.CompleteDrag(context.Background(), "2", "4")
	require.NotNil(t, p)
	assert.EqualError(t, p.Wait(), "backend unavailable")

	assert.Equal(t, before, board.Items())
	assert.Equal(t, "2", reverted)
}

func TestBoardMove(t *testing.T) {
	board := loadedBoard(t, funnel.NewMemoryRemote(sampleItems()...))

	p := board.Move(context.Background(), "4", funnel.StageClosed)
	require.NotNil(t, p)
	require.NoError(t, p.Wait())
	assert.Equal(t, funnel.StageClosed, p.Stage)

	summary := board.Summary()
	assert.Equal(t, 1, summary[4].Count)
	assert.Equal(t, 0, summary[5].Count)

	assert.Nil(t, board.Move(context.Background(), "4", funnel.StageClosed))
}

func TestBoardDrop(t *testing.T) {
	board := loadedBoard(t, funnel.NewMemoryRemote(sampleItems()...))
	layout := []funnel.Target{
		{ID: "1", Rect: funnel.Rect{Left: 0, Top: 0, Width: 100, Height: 40}},
		{ID: "2", Rect: funnel.Rect{Left: 120, Top: 0, Width: 100, Height: 40}},
	}

	p := board.Drop(context.Background(), "1", funnel.Rect{Left: 115, Top: 4, Width: 100, Height: 40}, layout, funnel.ClosestCorners)
	require.NotNil(t, p)
	require.NoError(t, p.Wait())
	assert.Len(t, board.Column(funnel.StageQualifying), 2)

	nowhere := funnel.DropResolverFunc(func(funnel.Rect, []funnel.Target) (string, bool) { return "", false })
	assert.Nil(t, board.Drop(context.Background(), "2", funnel.Rect{}, layout, nowhere))
}
