package groupdata

import (
	"fmt"

	grouperrors "github.com/tamirms/groupdata/errors"
)

// InitStorage merges the per-worker budgets into the global offset array,
// resizes the data array to the final total, and rewrites every budget cell
// in place into the write cursor Push will advance.
//
// This is the single-threaded barrier step: it must run after every worker
// has finished its AddBudget calls and before any Push call. The caller
// enforces the barrier; the builder performs no synchronization of its own.
//
// Pre-existing array entries below the base offset are preserved verbatim.
// Returns ErrIndexOverflow if the total element count does not fit in I; the
// arrays are then in an unspecified state and must be discarded.
func (b *Builder[V, I]) InitStorage() error {
	if b.phase != phaseBudget {
		return fmt.Errorf("InitStorage: %w", grouperrors.ErrPhase)
	}

	var total uint64
	var err error
	if b.cfg.mode == ModePartitioned {
		total, err = b.mergePartitioned()
	} else {
		total, err = b.mergeShared()
	}
	if err != nil {
		return err
	}

	// Resized once; Push only ever writes the previously-unused suffix.
	var zero V
	*b.data = resize(*b.data, total, zero)

	if b.cfg.checks {
		b.snapshotRegions(total)
	}
	b.phase = phaseStorage
	return nil
}

// mergePartitioned scans the workers in worker order, each buffer in key
// order, carrying one running total across all of them. Every cell's count
// is replaced by the running total at the time of visiting it — the start
// offset for that (key, worker), which is the whole key's start since the
// worker owns the key exclusively. The offset array entry for each key is
// the running total after its cell.
func (b *Builder[V, I]) mergePartitioned() (uint64, error) {
	offsets := *b.offsets
	base := b.cfg.base

	var expected uint64
	for _, buf := range b.workers {
		expected += uint64(len(buf))
	}

	var fill I
	if len(offsets) > 0 {
		fill = offsets[len(offsets)-1]
	}
	offsets = resize(offsets, expected+base+1, fill)

	maxSpan := uint64(^I(0)) - uint64(fill)
	var count uint64
	next := base + 1
	for w := range b.workers {
		buf := b.workers[w]
		for i := range buf {
			c := uint64(buf[i])
			buf[i] = fill + I(count) // count becomes cursor
			count += c
			if count > maxSpan {
				return 0, fmt.Errorf("InitStorage: %w", grouperrors.ErrIndexOverflow)
			}
			if next < uint64(len(offsets)) {
				offsets[next] = fill + I(count)
				next++
			}
		}
	}

	*b.offsets = offsets
	return uint64(fill) + count, nil
}

// mergeShared scans keys in increasing order and, within each key, workers
// in ascending order. Each cell's count is replaced by the running total at
// the time of visiting it: the cumulative offset inside the key's final
// group reserved for the workers visited so far. After all workers of a key
// are visited the running total is the key's end offset, written into the
// offset array. This visit order is what makes a shared-mode group hold its
// values in ascending worker order.
func (b *Builder[V, I]) mergeShared() (uint64, error) {
	offsets := *b.offsets
	base := b.cfg.base

	var fill I
	if len(offsets) > 0 {
		fill = offsets[len(offsets)-1]
	}
	for _, buf := range b.workers {
		if need := uint64(len(buf)) + base + 1; uint64(len(offsets)) < need {
			offsets = resize(offsets, need, fill)
		}
	}

	maxSpan := uint64(^I(0)) - uint64(fill)
	var count uint64
	for i := base; i+1 < uint64(len(offsets)); i++ {
		for w := range b.workers {
			buf := b.workers[w]
			if i-base < uint64(len(buf)) {
				c := uint64(buf[i-base])
				buf[i-base] = fill + I(count) // count becomes cursor
				count += c
				if count > maxSpan {
					return 0, fmt.Errorf("InitStorage: %w", grouperrors.ErrIndexOverflow)
				}
			}
		}
		offsets[i+1] = fill + I(count)
	}

	*b.offsets = offsets
	return uint64(fill) + count, nil
}

// snapshotRegions records, for every cursor cell, the exclusive end of its
// reserved region: the start of the next cell in merge scan order, or the
// final total for the last cell. Push and Verify use the snapshot to detect
// budget mismatches when checks are armed.
func (b *Builder[V, I]) snapshotRegions(total uint64) {
	b.regionEnds = make([][]I, len(b.workers))
	for w := range b.workers {
		b.regionEnds[w] = make([]I, len(b.workers[w]))
	}

	prevW, prevI := -1, uint64(0)
	visit := func(w int, i uint64) {
		if prevW >= 0 {
			b.regionEnds[prevW][prevI] = b.workers[w][i]
		}
		prevW, prevI = w, i
	}

	if b.cfg.mode == ModePartitioned {
		for w := range b.workers {
			for i := range b.workers[w] {
				visit(w, uint64(i))
			}
		}
	} else {
		var width uint64
		for _, buf := range b.workers {
			width = max(width, uint64(len(buf)))
		}
		for i := uint64(0); i < width; i++ {
			for w := range b.workers {
				if i < uint64(len(b.workers[w])) {
					visit(w, i)
				}
			}
		}
	}
	if prevW >= 0 {
		b.regionEnds[prevW][prevI] = I(total)
	}
}

// Verify checks the invariants of a completed build: the offset array is
// monotonically non-decreasing and its last entry equals the data array
// length. With WithChecks armed it additionally confirms every cursor
// advanced to exactly the end of its reserved region, which catches Push
// counts that fell short of or exceeded the recorded budgets.
func (b *Builder[V, I]) Verify() error {
	if b.phase != phaseStorage {
		return fmt.Errorf("Verify: %w", grouperrors.ErrPhase)
	}

	offsets := *b.offsets
	for i := 1; i < len(offsets); i++ {
		if offsets[i] < offsets[i-1] {
			return fmt.Errorf("Verify: offsets[%d]=%d < offsets[%d]=%d: %w",
				i, offsets[i], i-1, offsets[i-1], grouperrors.ErrOffsetsCorrupted)
		}
	}
	if len(offsets) > 0 {
		if last := uint64(offsets[len(offsets)-1]); last != uint64(len(*b.data)) {
			return fmt.Errorf("Verify: last offset %d != data length %d: %w",
				last, len(*b.data), grouperrors.ErrOffsetsCorrupted)
		}
	}

	if b.regionEnds != nil {
		for w := range b.workers {
			for i := range b.workers[w] {
				if got, want := b.workers[w][i], b.regionEnds[w][i]; got != want {
					return fmt.Errorf("Verify: worker %d cell %d: cursor %d, region end %d: %w",
						w, i, got, want, grouperrors.ErrBudgetMismatch)
				}
			}
		}
	}
	return nil
}

// resize grows or truncates s to n elements, filling any newly exposed
// cells with fill. Growth allocates at most once.
func resize[T any](s []T, n uint64, fill T) []T {
	if uint64(len(s)) >= n {
		return s[:n]
	}
	if uint64(cap(s)) < n {
		grown := make([]T, len(s), n)
		copy(grown, s)
		s = grown
	}
	for uint64(len(s)) < n {
		s = append(s, fill)
	}
	return s
}
