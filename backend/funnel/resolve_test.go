package funnel_test

import (
	"testing"

	"github.com/imoveplus/crm/backend/funnel"
	"github.com/stretchr/testify/assert"
)

func TestClosestCorners(t *testing.T) {
	layout := []funnel.Target{
		{ID: "a", Rect: funnel.Rect{Left: 0, Top: 0, Width: 100, Height: 40}},
		{ID: "b", Rect: funnel.Rect{Left: 0, Top: 50, Width: 100, Height: 40}},
		{ID: "c", Rect: funnel.Rect{Left: 120, Top: 0, Width: 100, Height: 40}},
	}

	id, ok := funnel.ClosestCorners.ResolveDropTarget(funnel.Rect{Left: 5, Top: 55, Width: 100, Height: 40}, layout)
	assert.True(t, ok)
	assert.Equal(t, "b", id)

	id, ok = funnel.ClosestCorners.ResolveDropTarget(funnel.Rect{Left: 118, Top: 2, Width: 100, Height: 40}, layout)
	assert.True(t, ok)
	assert.Equal(t, "c", id)
}

func TestClosestCornersTieGoesToFirstTarget(t *testing.T) {
	layout := []funnel.Target{
		{ID: "first", Rect: funnel.Rect{Left: 0, Top: 0, Width: 10, Height: 10}},
		{ID: "second", Rect: funnel.Rect{Left: 0, Top: 0, Width: 10, Height: 10}},
	}

	id, ok := funnel.ClosestCorners.ResolveDropTarget(funnel.Rect{Left: 3, Top: 3, Width: 10, Height: 10}, layout)
	assert.True(t, ok)
	assert.Equal(t, "first", id)
}

func TestClosestCornersEmptyLayout(t *testing.T) {
	_, ok := funnel.ClosestCorners.ResolveDropTarget(funnel.Rect{Width: 10, Height: 10}, nil)
	assert.False(t, ok)
}
