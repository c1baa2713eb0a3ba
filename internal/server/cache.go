package server

import (
	"time"

	"github.com/mj1618/uibridge/internal/dispatch"
)

// snapshotCache decides whether the dispatcher's current snapshot is
// recent enough to answer a read without capturing the screen again.
// The caller must hold the server mutex.
type snapshotCache struct {
	ttl   time.Duration
	now   func() time.Time
	valid bool
}

func newSnapshotCache(ttl time.Duration, now func() time.Time) *snapshotCache {
	return &snapshotCache{ttl: ttl, now: now}
}

// fresh reports whether snap may be reused. A ttl of 0 disables reuse.
func (c *snapshotCache) fresh(snap *dispatch.Snapshot) bool {
	if c.ttl <= 0 || !c.valid || snap == nil {
		return false
	}
	return c.now().Sub(snap.TakenAt) < c.ttl
}

func (c *snapshotCache) store() { c.valid = true }

// invalidate forgets the snapshot after anything that may have changed
// the screen.
func (c *snapshotCache) invalidate() { c.valid = false }
