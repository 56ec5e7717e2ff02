// Bench is a benchmarking tool for measuring group build throughput and
// memory usage across worker counts and key-space modes.
//
// Usage:
//
//	go run ./cmd/bench -records 10000000 -keys 1000000 -workers 8 -mode shared
//
// Flags:
//
//	-records   Total number of (key, value) records (default: 10,000,000)
//	-keys      Size of the key space (default: 1,000,000)
//	-workers   Number of parallel workers (default: 1)
//	-mode      Key-space mode: shared or partitioned (default: shared)
//	-hash      Record generator hash: murmur3 or xxh3 (default: murmur3)
//	-checks    Arm hot-path assertions (default: false)
//	-verify    Verify group contents after the build (default: true)
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"os"
	"runtime"
	"syscall"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/spaolacci/murmur3"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"github.com/tamirms/groupdata"
	"github.com/tamirms/groupdata/internal/bits"
)

// getMaxRSS returns the maximum resident set size in bytes.
// Uses getrusage(RUSAGE_SELF) which tracks peak RSS since process start.
func getMaxRSS() uint64 {
	var rusage syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &rusage); err != nil {
		return 0
	}
	// On macOS, MaxRss is in bytes. On Linux, it's in kilobytes.
	maxRSS := uint64(rusage.Maxrss)
	if runtime.GOOS == "linux" {
		maxRSS *= 1024
	}
	return maxRSS
}

// hashSource generates each worker's records on the fly from a hash of the
// (worker, sequence) pair, so both Scan passes replay the identical stream
// without storing it.
type hashSource struct {
	workers      int
	perWorker    int
	keySpace     uint64
	displacement uint64 // 0 in shared mode; worker slice size otherwise
	hash         func(worker, seq uint64) uint64
}

func (s *hashSource) record(worker int, i int) (uint64, uint64) {
	h := s.hash(uint64(worker), uint64(i))
	var key uint64
	if s.displacement > 0 {
		span := s.displacement
		if worker == s.workers-1 {
			// The last slice absorbs the division remainder.
			span = s.keySpace - uint64(worker)*s.displacement
		}
		key = uint64(worker)*s.displacement + bits.FastRange64(h, span)
	} else {
		key = bits.FastRange64(h, s.keySpace)
	}
	return key, h
}

func (s *hashSource) Scan(_ context.Context, worker int, fn func(key uint64, value uint64) error) error {
	for i := 0; i < s.perWorker; i++ {
		key, value := s.record(worker, i)
		if err := fn(key, value); err != nil {
			return err
		}
	}
	return nil
}

func murmurRecord(worker, seq uint64) uint64 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], worker)
	binary.LittleEndian.PutUint64(buf[8:], seq)
	h, _ := murmur3.Sum128(buf[:])
	return h
}

func xxh3Record(worker, seq uint64) uint64 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], worker)
	binary.LittleEndian.PutUint64(buf[8:], seq)
	return xxh3.Hash(buf[:])
}

func main() {
	recordsFlag := flag.Int("records", 10_000_000, "total number of records")
	keysFlag := flag.Uint64("keys", 1_000_000, "size of the key space")
	workersFlag := flag.Int("workers", 1, "number of parallel workers")
	modeFlag := flag.String("mode", "shared", "key-space mode: shared or partitioned")
	hashFlag := flag.String("hash", "murmur3", "record generator hash: murmur3 or xxh3")
	checksFlag := flag.Bool("checks", false, "arm hot-path assertions")
	verifyFlag := flag.Bool("verify", true, "verify group contents after the build")
	flag.Parse()

	workers := *workersFlag
	keySpace := *keysFlag
	perWorker := *recordsFlag / workers

	var mode groupdata.Mode
	switch *modeFlag {
	case "shared":
		mode = groupdata.ModeShared
	case "partitioned":
		mode = groupdata.ModePartitioned
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q\n", *modeFlag)
		os.Exit(1)
	}

	src := &hashSource{workers: workers, perWorker: perWorker, keySpace: keySpace}
	if mode == groupdata.ModePartitioned {
		src.displacement = keySpace / uint64(workers)
	}
	switch *hashFlag {
	case "murmur3":
		src.hash = murmurRecord
	case "xxh3":
		src.hash = xxh3Record
	default:
		fmt.Fprintf(os.Stderr, "unknown hash %q\n", *hashFlag)
		os.Exit(1)
	}

	opts := []groupdata.Option{groupdata.WithMode(mode)}
	if *checksFlag {
		opts = append(opts, groupdata.WithChecks())
	}

	var offsets []uint64
	var data []uint64
	builder, err := groupdata.NewBuilder(&offsets, &data, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "NewBuilder: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Building groups: %d records, %d keys, %d workers, %s mode, %s generator\n",
		perWorker*workers, keySpace, workers, mode, *hashFlag)

	ctx := context.Background()
	total := time.Now()

	// The four phases are run by hand rather than through groupdata.Feed so
	// each phase can be timed separately.
	budgetStart := time.Now()
	if err := builder.InitBudget(keySpace, workers); err != nil {
		fmt.Fprintf(os.Stderr, "InitBudget: %v\n", err)
		os.Exit(1)
	}
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			return src.Scan(gctx, w, func(key, _ uint64) error {
				builder.AddBudget(key, w)
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "budget pass: %v\n", err)
		os.Exit(1)
	}
	budgetDuration := time.Since(budgetStart)

	mergeStart := time.Now()
	if err := builder.InitStorage(); err != nil {
		fmt.Fprintf(os.Stderr, "InitStorage: %v\n", err)
		os.Exit(1)
	}
	mergeDuration := time.Since(mergeStart)

	pushStart := time.Now()
	g, gctx = errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			return src.Scan(gctx, w, func(key, value uint64) error {
				builder.Push(key, value, w)
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "placement pass: %v\n", err)
		os.Exit(1)
	}
	pushDuration := time.Since(pushStart)
	totalDuration := time.Since(total)

	if err := builder.Verify(); err != nil {
		fmt.Fprintf(os.Stderr, "Verify: %v\n", err)
		os.Exit(1)
	}

	records := float64(perWorker * workers)
	fmt.Printf("  budget pass:  %v (%.1f M records/s)\n", budgetDuration, records/budgetDuration.Seconds()/1e6)
	fmt.Printf("  merge:        %v\n", mergeDuration)
	fmt.Printf("  placement:    %v (%.1f M records/s)\n", pushDuration, records/pushDuration.Seconds()/1e6)
	fmt.Printf("  total:        %v\n", totalDuration)
	fmt.Printf("  peak RSS:     %.1f MB\n", float64(getMaxRSS())/(1<<20))
	fmt.Printf("  checksum:     %#x\n", checksum(offsets, data))

	if *verifyFlag {
		if err := verifyGroups(src, workers, offsets, data); err != nil {
			fmt.Fprintf(os.Stderr, "verification FAILED: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("  verification: OK")
	}
}

// checksum folds the offset and data arrays into a single xxHash64 digest,
// comparable across runs with the same flags.
func checksum(offsets, data []uint64) uint64 {
	d := xxhash.New()
	var buf [8]byte
	for _, v := range offsets {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = d.Write(buf[:])
	}
	for _, v := range data {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}

// verifyGroups replays the source and checks that every key's group holds
// exactly the values generated for it, using an XOR accumulator per key so
// verification stays O(records) with one word per key.
func verifyGroups(src *hashSource, workers int, offsets, data []uint64) error {
	want := make([]uint64, len(offsets)-1)
	counts := make([]uint64, len(offsets)-1)
	for w := 0; w < workers; w++ {
		err := src.Scan(context.Background(), w, func(key, value uint64) error {
			want[key] ^= value
			counts[key]++
			return nil
		})
		if err != nil {
			return err
		}
	}
	for k := range want {
		lo, hi := offsets[k], offsets[k+1]
		if hi-lo != counts[k] {
			return fmt.Errorf("key %d: group size %d, want %d", k, hi-lo, counts[k])
		}
		var got uint64
		for _, v := range data[lo:hi] {
			got ^= v
		}
		if got != want[k] {
			return fmt.Errorf("key %d: group content mismatch", k)
		}
	}
	return nil
}
