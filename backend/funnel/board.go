package funnel

import (
	"context"
	"sort"
	"sync"

	log "gopkg.in/inconshreveable/log15.v2"
)

// Remote is the persistence collaborator of a Board.
type Remote interface {
	List(ctx context.Context) ([]Item, error)
	Patch(ctx context.Context, id string, stage Stage) (*Item, error)
}

type State int

const (
	StateLoading State = iota
	StateReady
	StateEmpty
	StateError
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateEmpty:
		return "empty"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Board holds the in-memory view of the funnel. Stage changes are visible immediately and are rolled back if the
// remote patch fails. Patches are not cancelled or versioned: a patch that fails after a later change to the same
// item restores its own snapshot over that change.
type Board struct {
	remote Remote
	logger log.Logger

	// OnRevert, if set, is called after a failed patch has been rolled back.
	OnRevert func(itemID string, stage Stage, err error)

	mutex    sync.Mutex
	items    []Item
	state    State
	dragging string
}

func NewBoard(remote Remote, logger log.Logger) *Board {
	return &Board{remote: remote, logger: logger, state: StateLoading}
}

// Load replaces the board contents with the remote items, most recent contact first. On failure the board is left
// empty in StateError.
func (b *Board) Load(ctx context.Context) []Item {
	b.mutex.Lock()
	b.state = StateLoading
	b.mutex.Unlock()

	items, err := b.remote.List(ctx)
	if err != nil {
		b.logger.Error("Failed to load funnel items", "error", err)
		items = nil
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, c := items[i].LastContact, items[j].LastContact
		if a == nil || c == nil {
			return a != nil && c == nil
		}
		return a.After(*c)
	})

	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.items = items
	switch {
	case err != nil:
		b.state = StateError
	case len(items) == 0:
		b.state = StateEmpty
	default:
		b.state = StateReady
	}

	return cloneItems(b.items)
}

func (b *Board) State() State {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.state
}

// Items returns a copy of the current collection.
func (b *Board) Items() []Item {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return cloneItems(b.items)
}

// Column returns the items currently in stage.
func (b *Board) Column(stage Stage) []Item {
	return GroupByStage(b.Items(), stage)
}

func (b *Board) Summary() []StageSummary {
	return Summarize(b.Items())
}

// BeginDrag records the item being dragged. It only drives overlay rendering.
func (b *Board) BeginDrag(id string) {
	b.mutex.Lock()
	b.dragging = id
	b.mutex.Unlock()
}

// Dragging returns the item currently being dragged.
func (b *Board) Dragging() (Item, bool) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.dragging == "" {
		return Item{}, false
	}
	i, ok := findItem(b.items, b.dragging)
	if !ok {
		return Item{}, false
	}
	return b.items[i].clone(), true
}

// CompleteDrag ends a drag of draggedID released over the item overID. The destination is the stage whose column
// holds overID. It returns nil when nothing changes: the dragged item is unknown, overID is not a tracked item, or the
// destination is the item's current stage.
func (b *Board) CompleteDrag(ctx context.Context, draggedID, overID string) *Pending {
	b.mutex.Lock()
	b.dragging = ""
	if _, ok := findItem(b.items, draggedID); !ok {
		b.mutex.Unlock()
		return nil
	}
	target, ok := StageContaining(b.items, overID)
	b.mutex.Unlock()
	if !ok {
		return nil
	}

	return b.Move(ctx, draggedID, target)
}

// Drop resolves the drop target of a release with resolver and completes the drag.
func (b *Board) Drop(ctx context.Context, draggedID string, pointer Rect, layout []Target, resolver DropResolver) *Pending {
	overID, ok := resolver.ResolveDropTarget(pointer, layout)
	if !ok {
		b.BeginDrag("")
		return nil
	}
	return b.CompleteDrag(ctx, draggedID, overID)
}

// Move applies the stage change of id optimistically and patches the remote in the background.
func (b *Board) Move(ctx context.Context, id string, target Stage) *Pending {
	b.mutex.Lock()
	next, snapshot, ok := ApplyOptimistic(b.items, id, target)
	if !ok {
		b.mutex.Unlock()
		return nil
	}
	b.items = next
	b.mutex.Unlock()

	p := &Pending{ItemID: id, Stage: target, done: make(chan struct{})}
	go func() {
		defer close(p.done)

		_, err := b.remote.Patch(ctx, id, target)

		b.mutex.Lock()
		b.items = CommitOrRevert(snapshot, b.items, err)
		b.mutex.Unlock()

		if err != nil {
			p.err = err
			b.logger.Error("Failed to update funnel item", "id", id, "stage", target, "error", err)
			if b.OnRevert != nil {
				b.OnRevert(id, target, err)
			}
		}
	}()

	return p
}

// Pending is a stage change whose remote patch may still be in flight.
type Pending struct {
	ItemID string
	Stage  Stage

	done chan struct{}
	err  error
}

// Done is closed once the patch has been committed or reverted.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the patch resolves and returns its error. A non-nil error means the change was rolled back.
func (p *Pending) Wait() error {
	<-p.done
	return p.err
}
