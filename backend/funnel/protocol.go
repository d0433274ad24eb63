package funnel

// Snapshot is the full item collection captured immediately before an optimistic update.
type Snapshot struct {
	items []Item
}

// Items returns a copy of the captured collection.
func (s Snapshot) Items() []Item {
	return cloneItems(s.items)
}

// ApplyOptimistic returns items with the item id moved to target and its days in stage reset. The returned snapshot
// holds the collection as it was before the change. ok is false and items are returned unchanged when id is absent
// or already in target.
func ApplyOptimistic(items []Item, id string, target Stage) (next []Item, snapshot Snapshot, ok bool) {
	i, found := findItem(items, id)
	if !found || items[i].Stage == target {
		return items, Snapshot{}, false
	}

	snapshot = Snapshot{items: cloneItems(items)}
	next = cloneItems(items)
	next[i].Stage = target
	next[i].DaysInStage = 0

	return next, snapshot, true
}

// CommitOrRevert resolves an optimistic update. When the remote update succeeded the current collection stands;
// otherwise the snapshot replaces it in full.
func CommitOrRevert(snapshot Snapshot, current []Item, remoteErr error) []Item {
	if remoteErr == nil {
		return current
	}
	return snapshot.Items()
}

// GroupByStage returns the items in stage, preserving their order.
func GroupByStage(items []Item, stage Stage) []Item {
	group := make([]Item, 0)
	for _, item := range items {
		if item.Stage == stage {
			group = append(group, item)
		}
	}
	return group
}

// StageContaining returns the stage whose column currently holds the item id.
func StageContaining(items []Item, id string) (Stage, bool) {
	for _, stage := range Stages {
		for _, item := range GroupByStage(items, stage) {
			if item.ID == id {
				return stage, true
			}
		}
	}
	return "", false
}

type StageSummary struct {
	Stage      Stage   `json:"stage"`
	Count      int     `json:"count"`
	TotalValue float64 `json:"totalValue"`
}

// Summarize returns the item count and value total of every stage in column order.
func Summarize(items []Item) []StageSummary {
	summaries := make([]StageSummary, len(Stages))
	for i, stage := range Stages {
		summaries[i].Stage = stage
		for _, item := range GroupByStage(items, stage) {
			summaries[i].Count++
			if item.Value != nil {
				summaries[i].TotalValue += *item.Value
			}
		}
	}
	return summaries
}
