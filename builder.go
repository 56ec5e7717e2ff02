package groupdata

import (
	"fmt"

	grouperrors "github.com/tamirms/groupdata/errors"
	"github.com/tamirms/groupdata/internal/tally"
	"golang.org/x/exp/constraints"
)

// phase tracks the builder's position in the build protocol.
type phase uint8

const (
	phaseCreated phase = iota
	phaseBudget
	phaseStorage
)

// Builder assembles a group representation into caller-owned offset and
// data arrays. V is the value payload type; I is the index type used for
// offsets and counts, and must be wide enough to hold the final total
// element count (InitStorage reports overflow, see ErrIndexOverflow).
//
// A Builder is transient: it is scoped to one build (or one incremental
// extension) of the target arrays and owns no durable state. The arrays
// outlive it and are accessed through the pointers passed to NewBuilder,
// since InitStorage resizes them.
//
// Method-level concurrency: AddBudget and Push may be called concurrently
// from different workers, each worker confined to its own worker index.
// Everything else is single-threaded. See the package documentation for the
// full protocol.
type Builder[V any, I constraints.Unsigned] struct {
	offsets *[]I
	data    *[]V
	cfg     *config

	// Per-worker counting buffers. Cells hold counts during the budget
	// phase and write cursors after InitStorage rewrites them in place.
	workers []tally.Buf[I]

	// Size of each worker's exclusive key slice in partitioned mode
	// (the last worker's slice absorbs the remainder). Zero in shared mode.
	displacement uint64

	phase phase

	// Exclusive end of each cursor's reserved region, same shape as
	// workers. Populated by InitStorage only when checks are armed.
	regionEnds [][]I
}

// NewBuilder binds a builder to externally owned offset and data arrays.
// The arrays may be non-empty to support incremental extension together
// with WithBaseOffset.
func NewBuilder[V any, I constraints.Unsigned](offsets *[]I, data *[]V, opts ...Option) (*Builder[V, I], error) {
	if offsets == nil || data == nil {
		return nil, grouperrors.ErrNilStorage
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return &Builder[V, I]{offsets: offsets, data: data, cfg: cfg}, nil
}

// InitBudget allocates one counting buffer per worker, sized by maxKey.
//
// In shared mode maxKey is the size of the key domain and every buffer
// spans the full range above the base offset. In partitioned mode maxKey is
// the batch size and is divided into one contiguous slice per worker. The
// sizing is a hint: buffers grow on demand if a key beyond the hinted size
// is budgeted (in shared mode maxKey may therefore be an underestimate).
//
// Must be called exactly once, before any AddBudget call.
func (b *Builder[V, I]) InitBudget(maxKey uint64, workers int) error {
	if b.phase != phaseCreated {
		return fmt.Errorf("InitBudget: %w", grouperrors.ErrPhase)
	}
	if workers < 1 {
		return fmt.Errorf("InitBudget: %w", grouperrors.ErrNoWorkers)
	}

	b.workers = make([]tally.Buf[I], workers)
	if b.cfg.mode == ModePartitioned {
		b.displacement = maxKey / uint64(workers)
		for w := 0; w < workers-1; w++ {
			b.workers[w] = tally.New[I](b.displacement)
		}
		// The last slice absorbs the division remainder.
		b.workers[workers-1] = tally.New[I](maxKey - uint64(workers-1)*b.displacement)
	} else {
		full := maxKey - min(b.cfg.base, maxKey)
		for w := range b.workers {
			b.workers[w] = tally.New[I](full)
		}
	}

	b.phase = phaseBudget
	return nil
}

// AddBudget records that worker will later push one value for key.
//
// Safe to call concurrently from different workers: each worker touches
// only its own buffer, so there is no cross-worker memory contention. Must
// only be called between InitBudget and InitStorage; this is unchecked
// unless WithChecks is armed.
func (b *Builder[V, I]) AddBudget(key uint64, worker int) {
	b.AddBudgetN(key, worker, 1)
}

// AddBudgetN records a budget of n values for (key, worker) at once.
func (b *Builder[V, I]) AddBudgetN(key uint64, worker int, n I) {
	var local uint64
	if b.cfg.checks {
		b.assertPhase(phaseBudget, "AddBudget")
		local = b.checkedLocalIndex(key, worker)
	} else {
		local = b.localIndex(key, worker)
	}
	b.workers[worker].Add(local, n)
}

// Push writes value into the data array slot reserved for (key, worker) and
// advances that worker's private cursor for the key.
//
// Safe to call concurrently from different workers: each (key, worker)
// pair's write region is disjoint from every other pair's, so no locking or
// atomics are needed. The number of Push calls for a (key, worker) pair
// must exactly match its budget; a mismatch advances the cursor into
// storage reserved for a different key or worker and silently corrupts it
// (unchecked unless WithChecks is armed).
func (b *Builder[V, I]) Push(key uint64, value V, worker int) {
	var local uint64
	if b.cfg.checks {
		b.assertPhase(phaseStorage, "Push")
		local = b.checkedLocalIndex(key, worker)
		if cur := b.workers[worker][local]; cur >= b.regionEnds[worker][local] {
			panic(fmt.Errorf("groupdata: Push(key=%d, worker=%d) past reserved region end %d: %w",
				key, worker, b.regionEnds[worker][local], grouperrors.ErrBudgetMismatch))
		}
	} else {
		local = b.localIndex(key, worker)
	}
	cursor := &b.workers[worker][local]
	(*b.data)[*cursor] = value
	*cursor++
}

// localIndex translates a global key into the given worker's buffer index.
// Push must use the exact same translation as AddBudget so a pair's budget
// cell and cursor cell are one and the same.
func (b *Builder[V, I]) localIndex(key uint64, worker int) uint64 {
	if b.cfg.mode == ModePartitioned {
		return key - b.cfg.base - uint64(worker)*b.displacement
	}
	return key - b.cfg.base
}

// checkedLocalIndex is localIndex with the WithChecks assertions: the
// subtraction chain must not underflow, and in partitioned mode a non-last
// worker must stay inside its fixed slice (the last worker's slice, like
// every shared-mode buffer, may legally grow).
func (b *Builder[V, I]) checkedLocalIndex(key uint64, worker int) uint64 {
	if worker < 0 || worker >= len(b.workers) {
		panic(fmt.Errorf("groupdata: worker %d outside [0, %d): %w",
			worker, len(b.workers), grouperrors.ErrKeyOutOfRange))
	}
	if b.cfg.mode == ModePartitioned {
		start := b.cfg.base + uint64(worker)*b.displacement
		if key < start {
			panic(fmt.Errorf("groupdata: key %d below worker %d's slice start %d: %w",
				key, worker, start, grouperrors.ErrKeyOutOfRange))
		}
		local := key - start
		if worker < len(b.workers)-1 && local >= b.displacement {
			panic(fmt.Errorf("groupdata: key %d beyond worker %d's slice of %d keys: %w",
				key, worker, b.displacement, grouperrors.ErrKeyOutOfRange))
		}
		return local
	}
	if key < b.cfg.base {
		panic(fmt.Errorf("groupdata: key %d below base offset %d: %w",
			key, b.cfg.base, grouperrors.ErrKeyOutOfRange))
	}
	return key - b.cfg.base
}

func (b *Builder[V, I]) assertPhase(want phase, method string) {
	if b.phase != want {
		panic(fmt.Errorf("groupdata: %s: %w", method, grouperrors.ErrPhase))
	}
}
