package groupdata

import (
	"encoding/binary"
	"hash/fnv"
	randv2 "math/rand/v2"
	"testing"
)

// Named seeds for deterministic reproduction.
const (
	testSeed1 = 0x517CC1B727220A95
	testSeed2 = 0x2545F4914F6CDD1D
)

// newTestRNG derives a deterministic RNG from the test name so each test
// gets an independent, reproducible stream.
func newTestRNG(t testing.TB) *randv2.Rand {
	t.Helper()
	h := fnv.New128a()
	h.Write([]byte(t.Name()))
	sum := h.Sum(nil)
	s1 := binary.LittleEndian.Uint64(sum[:8])
	s2 := binary.LittleEndian.Uint64(sum[8:])
	return randv2.New(randv2.NewPCG(testSeed1^s1, testSeed2^s2))
}

// randomRecords generates count records per worker with keys in [0, numKeys)
// and values that encode (worker, sequence) so ordering bugs are visible.
func randomRecords(rng *randv2.Rand, workers, count int, numKeys uint64) SliceSource[uint64] {
	src := make(SliceSource[uint64], workers)
	for w := range src {
		src[w] = make([]Record[uint64], count)
		for i := range src[w] {
			src[w][i] = Record[uint64]{
				Key:   rng.Uint64N(numKeys),
				Value: uint64(w)<<32 | uint64(i),
			}
		}
	}
	return src
}

// expectedGroups computes the reference offsets and data for per-worker
// record lists: for each key, contributing workers in ascending order, each
// worker's values in record order. This matches both shared-mode ordering
// and partitioned-mode ordering (where only the owning worker contributes).
func expectedGroups(perWorker SliceSource[uint64], numKeys uint64) ([]uint32, []uint64) {
	groups := make([][]uint64, numKeys)
	for _, recs := range perWorker {
		for _, rec := range recs {
			groups[rec.Key] = append(groups[rec.Key], rec.Value)
		}
	}
	offsets := make([]uint32, numKeys+1)
	var data []uint64
	for k, group := range groups {
		data = append(data, group...)
		offsets[k+1] = offsets[k] + uint32(len(group))
	}
	return offsets, data
}

// buildSerial runs the four-phase protocol sequentially: worker loops stand
// in for the parallel passes, with the barriers implicit between them.
func buildSerial(t *testing.T, b *Builder[uint64, uint32], maxKey uint64, src SliceSource[uint64]) {
	t.Helper()
	if err := b.InitBudget(maxKey, len(src)); err != nil {
		t.Fatalf("InitBudget: %v", err)
	}
	for w := range src {
		for _, rec := range src[w] {
			b.AddBudget(rec.Key, w)
		}
	}
	if err := b.InitStorage(); err != nil {
		t.Fatalf("InitStorage: %v", err)
	}
	for w := range src {
		for _, rec := range src[w] {
			b.Push(rec.Key, rec.Value, w)
		}
	}
	if err := b.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}
