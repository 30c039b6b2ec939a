package cache

import (
	"context"
	"time"
)

// AcquireInstance loads key and instantiates a new, independent resource.
// Instances are never deduplicated: every call gets its own InstanceID and
// an entry with a refcount of 1. Nothing is tracked on failure.
func (c *cache[V]) AcquireInstance(ctx context.Context, key string, load Loader[V], inst Instantiator[V]) (InstanceID, V, error) {
	var zero V
	if c.closed.Load() {
		return "", zero, ErrClosed
	}
	if load == nil {
		return "", zero, ErrNilLoader
	}

	start := time.Now()
	base, err := callLoader(ctx, key, load)
	c.loads.Add(1)
	c.opt.Metrics.Load(err == nil, time.Since(start))
	if err != nil {
		c.loadErrors.Add(1)
		err = &LoadError{Key: key, Kind: ErrFetchFailed, Err: err}
		c.log.Warn("instance load failed", Fields{"key": key, "err": err})
		return "", zero, err
	}

	v := base
	if inst != nil {
		v, err = callInstantiator(ctx, base, inst)
		if err != nil {
			err = &LoadError{Key: key, Kind: ErrInstantiateFailed, Err: err}
			c.log.Warn("instantiate failed", Fields{"key": key, "err": err})
			// the instantiator did not take ownership of base
			c.releaseValue(key, false, base, ReleaseAbandoned)
			return "", zero, err
		}
	}

	id := makeInstanceID(key, c.seq.Add(1))
	if !c.getShard(string(id)).insertInstance(newInstance(id, v)) {
		// closed while loading: the instance never becomes visible
		c.releaseValue(string(id), true, v, ReleaseAbandoned)
		return "", zero, ErrClosed
	}
	c.opt.Metrics.Size(int(c.entries.Add(1)))
	c.log.Debug("instance created", Fields{"id": string(id)})
	return id, v, nil
}

func callInstantiator[V any](ctx context.Context, base V, inst Instantiator[V]) (v V, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return inst(ctx, base)
}
