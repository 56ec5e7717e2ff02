// Package groupdata converts an unordered stream of (key, value) records,
// produced concurrently by several workers, into a compressed group
// representation: a prefix-sum offset array delimiting one contiguous run per
// key, and a flat data array holding the values in group order, so that
// data[offsets[k]:offsets[k+1]] contains exactly the values recorded for key
// k. This is the layout underlying CSR/CSC sparse matrices.
//
// The build is a strict four-phase protocol that makes exactly two linear
// passes over the input, with no sorting and no per-element locking:
//
//	var offsets []uint32
//	var data []Entry
//	b, err := groupdata.NewBuilder(&offsets, &data)
//	if err != nil { ... }
//
//	if err := b.InitBudget(maxKey, workers); err != nil { ... }
//
//	// Pass 1, parallel: each worker tallies how many values it will
//	// contribute per key. Workers never share buffers, so no locking.
//	b.AddBudget(key, worker)
//
//	// Barrier: all AddBudget calls must have completed.
//	if err := b.InitStorage(); err != nil { ... }
//
//	// Pass 2, parallel: each worker places its values into the slots its
//	// budget reserved. Write regions are disjoint by construction.
//	b.Push(key, value, worker)
//
//	// Barrier, then optionally:
//	if err := b.Verify(); err != nil { ... }
//
// The Feed function runs this protocol over a Source, supplying the worker
// pool and the two barriers itself.
//
// # Modes
//
// Two modes divide the key space among workers. In shared mode (the
// default) every worker may contribute to every key; within a key's group,
// values appear in ascending worker order, each worker's values in push
// order. In partitioned mode the key space is statically sliced into one
// contiguous range per worker and a key is touched only by its owning
// worker; use groupdata.WithPartitioned.
//
// # Caller contract
//
// The hot-path methods AddBudget and Push do not validate their arguments:
// the number of Push calls for each (key, worker) pair must exactly match
// the budget recorded for it, and a worker must stay inside its own key
// slice in partitioned mode. Violations silently corrupt neighboring
// groups. WithChecks arms assertions on these paths for use in tests and
// debugging.
//
// # Package structure
//
//   - Public API: builder.go (NewBuilder, InitBudget, AddBudget, Push),
//     storage.go (InitStorage, Verify), parallel.go (Feed, Source)
//   - Configuration: options.go (Option, With* functions)
//   - Counting buffers: internal/tally
package groupdata
