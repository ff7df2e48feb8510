package enrichment

// DefaultCheckpointInterval is the number of successful matches between
// periodic catalog writes.
const DefaultCheckpointInterval = 50

// checkpointer counts successes since the last periodic write. It is separate
// from the per-record progress counter, which only feeds logs.
type checkpointer struct {
	every   int
	pending int
}

func newCheckpointer(every int) *checkpointer {
	if every <= 0 {
		every = DefaultCheckpointInterval
	}
	return &checkpointer{every: every}
}

// success records one match and reports whether a checkpoint is due. The
// counter resets when it is.
func (c *checkpointer) success() bool {
	c.pending++
	if c.pending%c.every == 0 {
		c.pending = 0
		return true
	}
	return false
}
