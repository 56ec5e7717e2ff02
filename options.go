package groupdata

// Mode selects how the key space is divided among workers.
type Mode uint8

const (
	// ModeShared lets every worker contribute to every key. Each worker
	// keeps a full-width counting buffer and the merge sums contributions
	// across workers per key.
	ModeShared Mode = iota

	// ModePartitioned statically slices the key space into contiguous,
	// nearly-equal ranges, one per worker. A key is owned by exactly one
	// worker, so the merge needs no cross-worker summation. In this mode
	// InitBudget's maxKey is the batch size: the count of keys this build
	// covers, already relative to the base offset.
	ModePartitioned
)

func (m Mode) String() string {
	switch m {
	case ModeShared:
		return "shared"
	case ModePartitioned:
		return "partitioned"
	default:
		return "unknown"
	}
}

// Option is a functional option for configuring a Builder.
type Option func(*config)

type config struct {
	mode   Mode
	base   uint64
	checks bool
}

func defaultConfig() *config {
	return &config{mode: ModeShared}
}

// WithMode selects the key-space mode. Default is ModeShared.
func WithMode(m Mode) Option {
	return func(c *config) {
		c.mode = m
	}
}

// WithPartitioned is shorthand for WithMode(ModePartitioned).
func WithPartitioned() Option {
	return WithMode(ModePartitioned)
}

// WithBaseOffset marks the first key index this build is responsible for,
// enabling incremental extension of previously built arrays: entries below
// the base offset are never touched, and new entries extend the offset
// array contiguously. Default is 0 (fresh build).
func WithBaseOffset(base uint64) Option {
	return func(c *config) {
		c.base = base
	}
}

// WithChecks arms assertions on the hot-path methods (AddBudget, Push):
// phase order, key range, and cursor overrun violations panic with a
// descriptive error instead of silently corrupting neighboring groups. It
// also makes Verify compare every cursor against its reserved region.
// Intended for tests and debugging; the assertions cost a branch and a
// bounds computation per call.
func WithChecks() Option {
	return func(c *config) {
		c.checks = true
	}
}
