package coalesce

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Dedup collapses concurrent calls for the same fingerprint into a single
// upstream call, fanning the result out to every waiter. It is a thin,
// context-aware wrapper over singleflight.Group.
type Dedup struct {
	group singleflight.Group
}

// NewDedup creates an empty Dedup.
func NewDedup() *Dedup {
	return &Dedup{}
}

// Do runs fn for key if no call for key is already in flight, otherwise it
// waits for the in-flight call and reuses its result. shared reports
// whether the result was shared with at least one other caller.
func (d *Dedup) Do(ctx context.Context, key string, fn func(ctx context.Context) (string, error)) (text string, shared bool, err error) {
	v, shared, err := d.group.Do(key, func() (any, error) {
		return fn(ctx)
	})
	if v == nil {
		return "", shared, err
	}
	return v.(string), shared, err
}

// Forget removes key from the in-flight set so the next Do call for it
// starts a fresh call rather than joining a stale one.
func (d *Dedup) Forget(key string) {
	d.group.Forget(key)
}
