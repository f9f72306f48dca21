package index

import (
	"sync"

	"github.com/Aman-CERP/searchkit/internal/backend"
)

// DeltaBuffer captures writes made while a rebuild populates the next
// generation. Each document id keeps only its last operation, and drained
// operations come out in the order their last capture was recorded.
//
// Capture may be called concurrently with Drain; a write captured after a
// drain took its snapshot shows up in the next drain.
type DeltaBuffer struct {
	mu    sync.Mutex
	log   []*backend.BulkOp
	index map[string]int
}

// NewDeltaBuffer returns an empty buffer.
func NewDeltaBuffer() *DeltaBuffer {
	return &DeltaBuffer{index: map[string]int{}}
}

// Capture records op, superseding any earlier operation on the same id.
func (b *DeltaBuffer) Capture(op backend.BulkOp) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i, ok := b.index[op.ID]; ok {
		b.log[i] = nil
	}
	b.index[op.ID] = len(b.log)
	b.log = append(b.log, &op)
}

// Drain swaps in an empty log and returns the captured operations.
func (b *DeltaBuffer) Drain() []backend.BulkOp {
	b.mu.Lock()
	log := b.log
	b.log = nil
	b.index = map[string]int{}
	b.mu.Unlock()

	out := make([]backend.BulkOp, 0, len(log))
	for _, op := range log {
		if op != nil {
			out = append(out, *op)
		}
	}
	return out
}

// Len returns the number of distinct documents waiting to be drained.
func (b *DeltaBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.index)
}
