package groupdata

import (
	"context"
	"fmt"
	randv2 "math/rand/v2"
	"testing"
)

func benchmarkSource(mode Mode, workers, perWorker int, numKeys uint64) SliceSource[uint64] {
	rng := randv2.New(randv2.NewPCG(0x9E3779B9, uint64(workers)))
	displacement := numKeys / uint64(workers)
	src := make(SliceSource[uint64], workers)
	for w := range src {
		src[w] = make([]Record[uint64], perWorker)
		for i := range src[w] {
			var key uint64
			if mode == ModePartitioned {
				key = uint64(w)*displacement + rng.Uint64N(displacement)
			} else {
				key = rng.Uint64N(numKeys)
			}
			src[w][i] = Record[uint64]{Key: key, Value: rng.Uint64()}
		}
	}
	return src
}

func benchmarkBuild(b *testing.B, mode Mode, workers int) {
	const (
		numKeys   = 1 << 12
		perWorker = 1 << 16
	)
	src := benchmarkSource(mode, workers, perWorker, numKeys)

	b.ReportAllocs()
	b.SetBytes(int64(workers * perWorker * 8))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var offsets []uint32
		var data []uint64
		builder, err := NewBuilder(&offsets, &data, WithMode(mode))
		if err != nil {
			b.Fatal(err)
		}
		if err := Feed(context.Background(), builder, numKeys, workers, src); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkBuild(b *testing.B) {
	for _, mode := range []Mode{ModeShared, ModePartitioned} {
		for _, workers := range []int{1, 2, 4, 8} {
			b.Run(fmt.Sprintf("%s/workers=%d", mode, workers), func(b *testing.B) {
				benchmarkBuild(b, mode, workers)
			})
		}
	}
}

func BenchmarkAddBudget(b *testing.B) {
	var offsets []uint32
	var data []uint64
	builder, err := NewBuilder(&offsets, &data)
	if err != nil {
		b.Fatal(err)
	}
	const numKeys = 1 << 12
	if err := builder.InitBudget(numKeys, 1); err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		builder.AddBudget(uint64(i)&(numKeys-1), 0)
	}
}
