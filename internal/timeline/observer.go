package timeline

// Observer receives every structural change applied to a Timeline, in the
// order the changes were applied. Indices refer to the timeline state right
// before the operation.
type Observer interface {
	// OnInsert reports that e now sits at row at.
	OnInsert(at int, e Entry)
	// OnRemove reports that rows [from, from+count) are gone.
	OnRemove(from, count int)
	// OnMove reports that the row at from was taken out and reinserted at to.
	OnMove(from, to int)
	// OnRowChanged reports that the row's attributes changed, not its position.
	OnRowChanged(row int)
	// OnReset reports that the whole timeline was rebuilt.
	OnReset()
}

type nopObserver struct{}

func (nopObserver) OnInsert(int, Entry) {}
func (nopObserver) OnRemove(int, int)   {}
func (nopObserver) OnMove(int, int)     {}
func (nopObserver) OnRowChanged(int)    {}
func (nopObserver) OnReset()            {}

// OpKind names a recorded operation.
type OpKind string

const (
	OpInsert  OpKind = "insert"
	OpRemove  OpKind = "remove"
	OpMove    OpKind = "move"
	OpChanged OpKind = "changed"
	OpReset   OpKind = "reset"
)

// Op is one recorded observer call. For inserts A is the row and Entry the
// inserted entry; for removes A is the first row and B the count; for moves
// A is from and B is to; for row changes A is the row.
type Op struct {
	Kind  OpKind
	A, B  int
	Entry Entry
}

// Recorder is an Observer that keeps every call it receives.
type Recorder struct {
	Ops []Op
}

func (r *Recorder) OnInsert(at int, e Entry) {
	r.Ops = append(r.Ops, Op{Kind: OpInsert, A: at, Entry: e})
}

func (r *Recorder) OnRemove(from, count int) {
	r.Ops = append(r.Ops, Op{Kind: OpRemove, A: from, B: count})
}

func (r *Recorder) OnMove(from, to int) {
	r.Ops = append(r.Ops, Op{Kind: OpMove, A: from, B: to})
}

func (r *Recorder) OnRowChanged(row int) {
	r.Ops = append(r.Ops, Op{Kind: OpChanged, A: row})
}

func (r *Recorder) OnReset() {
	r.Ops = append(r.Ops, Op{Kind: OpReset})
}

// Structural returns the recorded inserts, removes, moves and resets.
func (r *Recorder) Structural() []Op {
	var out []Op
	for _, op := range r.Ops {
		if op.Kind != OpChanged {
			out = append(out, op)
		}
	}
	return out
}

// Changed returns the rows reported through OnRowChanged.
func (r *Recorder) Changed() []int {
	var rows []int
	for _, op := range r.Ops {
		if op.Kind == OpChanged {
			rows = append(rows, op.A)
		}
	}
	return rows
}

// Clear drops everything recorded so far.
func (r *Recorder) Clear() {
	r.Ops = nil
}
