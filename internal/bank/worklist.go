package bank

// Worklist is a FIFO queue of banks waiting to default during one trial.
// The same bank may be queued more than once; consumers skip banks that
// have already defaulted.
type Worklist struct {
	items  []*Bank
	head   int
	pushed int
}

// NewWorklist creates an empty worklist.
func NewWorklist() *Worklist {
	return &Worklist{}
}

// Push appends a bank to the tail.
func (w *Worklist) Push(b *Bank) {
	w.items = append(w.items, b)
	w.pushed++
}

// Pop removes and returns the head, or false when the queue is drained.
func (w *Worklist) Pop() (*Bank, bool) {
	if w.head >= len(w.items) {
		return nil, false
	}
	b := w.items[w.head]
	w.items[w.head] = nil
	w.head++
	return b, true
}

// Len returns the number of banks still queued.
func (w *Worklist) Len() int {
	return len(w.items) - w.head
}

// Pushed returns how many enqueues happened since the last reset,
// duplicates included.
func (w *Worklist) Pushed() int {
	return w.pushed
}

// Reset empties the worklist so it can serve a new trial.
func (w *Worklist) Reset() {
	for i := range w.items {
		w.items[i] = nil
	}
	w.items = w.items[:0]
	w.head = 0
	w.pushed = 0
}
