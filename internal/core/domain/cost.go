package domain

import "time"

// Cost is the timing of one statement executed inside a context.
type Cost struct {
	Statement string
	Start     time.Time
	End       time.Time
}

// Reset zeroes c so it can go back to its pool.
func (c *Cost) Reset() {
	*c = Cost{}
}

// Finished reports whether the statement's end has been stamped.
func (c *Cost) Finished() bool {
	return !c.End.IsZero()
}

// Elapsed is End-Start, or zero while the statement has not finished.
func (c *Cost) Elapsed() time.Duration {
	if !c.Finished() {
		return 0
	}
	return c.End.Sub(c.Start)
}

func (c *Cost) StartMicros() int64 { return c.Start.UnixMicro() }
func (c *Cost) EndMicros() int64   { return c.End.UnixMicro() }
