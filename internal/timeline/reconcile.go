package timeline

import (
	"fmt"
	"slices"

	"github.com/matheus3301/chatline/internal/domain"
	"go.uber.org/zap"
)

// Engine converges a Timeline onto freshly fetched snapshots of the store,
// reporting each structural step to its Observer.
//
// Passes never interleave: a Reconcile issued from inside an observer
// callback is queued and runs once the current pass has completed.
type Engine struct {
	tl     *Timeline
	sep    *Separator
	obs    Observer
	logger *zap.Logger

	running bool
	queue   []pass
}

type pass struct {
	ids     []domain.MessageID
	changed domain.MessageID
}

// NewEngine creates an engine driving tl and sep.
func NewEngine(tl *Timeline, sep *Separator, obs Observer, logger *zap.Logger) *Engine {
	if obs == nil {
		obs = nopObserver{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{tl: tl, sep: sep, obs: obs, logger: logger}
}

// SetObserver replaces the observer. Nil detaches it.
func (e *Engine) SetObserver(obs Observer) {
	if obs == nil {
		obs = nopObserver{}
	}
	e.obs = obs
}

// Load rebuilds the timeline from ids (oldest first) and reports a reset.
func (e *Engine) Load(ids []domain.MessageID) {
	e.rebuild(newestFirst(ids))
}

// Reconcile converges the timeline onto ids (oldest first).
//
// changed names the message whose attributes changed; its row and the row
// after it are reported through OnRowChanged. Zero means the trigger could not
// name a single message and every row is reported instead.
//
// A snapshot with duplicate ids or reordered survivors is not applied
// incrementally: the timeline is rebuilt, OnReset is reported, and an error
// wrapping ErrInconsistentOrdering is returned.
func (e *Engine) Reconcile(ids []domain.MessageID, changed domain.MessageID) error {
	p := pass{ids: slices.Clone(ids), changed: changed}
	if e.running {
		e.queue = append(e.queue, p)
		return nil
	}
	e.running = true
	defer func() { e.running = false }()

	err := e.run(p)
	for len(e.queue) > 0 {
		next := e.queue[0]
		e.queue = e.queue[1:]
		if perr := e.run(next); perr != nil && err == nil {
			err = perr
		}
	}
	return err
}

func (e *Engine) run(p pass) error {
	// The cached detail may point at a row that is about to move.
	e.tl.Invalidate()

	messages := newestFirst(p.ids)
	old := e.tl.rows
	if err := checkUnique(messages); err != nil {
		e.fallback(messages, err)
		return err
	}
	target := e.withSeparator(messages)
	if err := checkOrder(old, target); err != nil {
		e.fallback(messages, err)
		return err
	}

	// Unconsumed rows of old keep their relative order behind the converged
	// prefix, and every one of them sitting in front of a survivor is stale.
	// The survivor's current row is therefore its target row plus the number
	// of stale rows that preceded it in old.
	inTarget := make(map[Entry]struct{}, len(target))
	for _, t := range target {
		inTarget[t] = struct{}{}
	}
	oldPos := make(map[Entry]int, len(old))
	staleBefore := make([]int, len(old))
	stale := 0
	for i, o := range old {
		oldPos[o] = i
		staleBefore[i] = stale
		if _, ok := inTarget[o]; !ok {
			stale++
		}
	}

	for i, t := range target {
		pos, ok := oldPos[t]
		if !ok {
			e.tl.insert(i, t)
			e.obs.OnInsert(i, t)
			continue
		}
		if j := i + staleBefore[pos]; j != i {
			e.tl.move(j, i)
			e.obs.OnMove(j, i)
		}
	}

	if stale > 0 {
		e.tl.remove(len(target), stale)
		e.obs.OnRemove(len(target), stale)
	}

	e.notifyChanged(p.changed)
	return nil
}

// withSeparator returns messages as rows, with the separator placed after
// its anchor when it is still alive.
func (e *Engine) withSeparator(messages []domain.MessageID) []Entry {
	rows := make([]Entry, 0, len(messages)+1)
	for _, id := range messages {
		rows = append(rows, MessageEntry(id))
	}
	if e.sep == nil {
		return rows
	}
	if at, ok := e.sep.Place(messages); ok {
		rows = slices.Insert(rows, at, SeparatorEntry())
	}
	return rows
}

func (e *Engine) notifyChanged(changed domain.MessageID) {
	if changed == 0 {
		for row := range e.tl.Len() {
			e.obs.OnRowChanged(row)
		}
		return
	}
	row := e.tl.IndexOf(changed)
	if row < 0 {
		return
	}
	e.obs.OnRowChanged(row)
	if row+1 < e.tl.Len() {
		e.obs.OnRowChanged(row + 1)
	}
}

func (e *Engine) fallback(messages []domain.MessageID, err error) {
	e.logger.Warn("timeline snapshot rejected, rebuilding",
		zap.Error(err),
		zap.Int("rows", e.tl.Len()),
		zap.Int("snapshot", len(messages)))
	e.rebuild(messages)
}

// rebuild replaces every row, keeping the first occurrence of duplicated ids.
func (e *Engine) rebuild(messages []domain.MessageID) {
	seen := make(map[domain.MessageID]struct{}, len(messages))
	unique := make([]domain.MessageID, 0, len(messages))
	for _, id := range messages {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	e.tl.reset(e.withSeparator(unique))
	e.obs.OnReset()
}

func newestFirst(ids []domain.MessageID) []domain.MessageID {
	out := slices.Clone(ids)
	slices.Reverse(out)
	return out
}

func checkUnique(ids []domain.MessageID) error {
	seen := make(map[domain.MessageID]int, len(ids))
	for i, id := range ids {
		if first, dup := seen[id]; dup {
			return fmt.Errorf("%w: message %d at rows %d and %d", ErrInconsistentOrdering, id, first, i)
		}
		seen[id] = i
	}
	return nil
}

// checkOrder verifies that rows present in both old and target appear in the
// same relative order, i.e. that target is reachable by forward moves only.
func checkOrder(old, target []Entry) error {
	inOld := make(map[Entry]struct{}, len(old))
	for _, o := range old {
		inOld[o] = struct{}{}
	}
	inTarget := make(map[Entry]struct{}, len(target))
	for _, t := range target {
		inTarget[t] = struct{}{}
	}

	j := 0
	for _, o := range old {
		if _, ok := inTarget[o]; !ok {
			continue
		}
		for j < len(target) {
			if _, ok := inOld[target[j]]; ok {
				break
			}
			j++
		}
		if j == len(target) || target[j] != o {
			return fmt.Errorf("%w: %s moved backward", ErrInconsistentOrdering, o)
		}
		j++
	}
	return nil
}
