package funnel

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrItemNotFound = errors.New("funnel item not found")

// MemoryRemote is a Remote backed by a map. PatchErr, when set, is returned by every Patch without applying it.
type MemoryRemote struct {
	mutex    sync.Mutex
	items    map[string]Item
	order    []string
	PatchErr error
	ListErr  error
	Now      func() time.Time
}

func NewMemoryRemote(items ...Item) *MemoryRemote {
	r := &MemoryRemote{items: make(map[string]Item), Now: time.Now}
	for _, item := range items {
		r.Put(item)
	}
	return r
}

func (r *MemoryRemote) Put(item Item) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, ok := r.items[item.ID]; !ok {
		r.order = append(r.order, item.ID)
	}
	r.items[item.ID] = item.clone()
}

func (r *MemoryRemote) Get(id string) (Item, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	item, ok := r.items[id]
	return item.clone(), ok
}

func (r *MemoryRemote) List(ctx context.Context) ([]Item, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.ListErr != nil {
		return nil, r.ListErr
	}

	items := make([]Item, 0, len(r.order))
	for _, id := range r.order {
		items = append(items, r.items[id].clone())
	}
	return items, nil
}

func (r *MemoryRemote) Patch(ctx context.Context, id string, stage Stage) (*Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.PatchErr != nil {
		return nil, r.PatchErr
	}

	item, ok := r.items[id]
	if !ok {
		return nil, ErrItemNotFound
	}
	now := r.Now()
	item.Stage = stage
	item.DaysInStage = 0
	item.LastContact = &now
	r.items[id] = item

	item = item.clone()
	return &item, nil
}
