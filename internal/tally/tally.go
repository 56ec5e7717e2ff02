// Package tally provides the growable per-worker counting buffers that back
// a group build.
//
// Each cell of a Buf is indexed by a worker-relative key and changes meaning
// across the build protocol: during budget accumulation it holds a count of
// pending values, and after the storage merge rewrites it in place it holds
// the write cursor for those values. A Buf is owned by exactly one worker;
// growth happens only on the owning worker, so no synchronization is needed.
package tally

import "golang.org/x/exp/constraints"

// Buf is a single worker's counting buffer.
type Buf[I constraints.Unsigned] []I

// New returns a zero-filled buffer sized to the given hint. The hint is not
// a hard limit: Add grows the buffer on demand.
func New[I constraints.Unsigned](hint uint64) Buf[I] {
	return make(Buf[I], hint)
}

// Add increments the cell at idx by n, growing the buffer first if idx is
// beyond its current length.
func (b *Buf[I]) Add(idx uint64, n I) {
	b.Reserve(idx)
	(*b)[idx] += n
}

// Reserve grows the buffer so the cell at idx is addressable, zero-filling
// any new cells. A no-op when idx is already in range.
func (b *Buf[I]) Reserve(idx uint64) {
	need := idx + 1
	if uint64(len(*b)) >= need {
		return
	}
	if uint64(cap(*b)) >= need {
		// Cells between len and cap were zeroed at allocation and are never
		// written before being exposed, so reslicing keeps them zero.
		*b = (*b)[:need]
		return
	}
	newCap := uint64(cap(*b)) * 2
	if newCap < need {
		newCap = need
	}
	grown := make(Buf[I], need, newCap)
	copy(grown, *b)
	*b = grown
}
