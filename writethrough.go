package cache

import "context"

// writeOne propagates a single-key write per I2: invoked before the
// atomic compute, synchronously unless write-back is configured.
func (a *adapter[K, V]) writeOne(ctx context.Context, key K, value V) error {
	if !a.cfg.writeThrough {
		return nil
	}
	if a.cfg.writeBack {
		a.writeBack.Write(key, value)
		return nil
	}
	if err := a.cfg.writer.Write(ctx, key, value); err != nil {
		return &WriterError[K]{Key: key, Cause: err}
	}
	return nil
}

// deleteOne propagates a single-key delete per I2.
func (a *adapter[K, V]) deleteOne(ctx context.Context, key K) error {
	if !a.cfg.writeThrough {
		return nil
	}
	if a.cfg.writeBack {
		a.writeBack.Delete(key)
		return nil
	}
	if err := a.cfg.writer.Delete(ctx, key); err != nil {
		return &WriterError[K]{Key: key, Cause: err}
	}
	return nil
}

// writeBatch propagates a batch write using the writer's batch hook when
// available, falling back to per-key calls. Returns the keys that failed.
func (a *adapter[K, V]) writeBatch(ctx context.Context, entries map[K]V) ([]K, error) {
	if !a.cfg.writeThrough {
		return nil, nil
	}
	if a.cfg.writeBack {
		for k, v := range entries {
			a.writeBack.Write(k, v)
		}
		return nil, nil
	}
	if bw, ok := a.cfg.writer.(BatchWriter[K, V]); ok {
		failed, err := bw.WriteAll(ctx, entries)
		if err != nil {
			return failed, &WriterError[K]{FailedKeys: failed, Cause: err}
		}
		return failed, nil
	}
	var failed []K
	var firstErr error
	for k, v := range entries {
		if err := a.cfg.writer.Write(ctx, k, v); err != nil {
			failed = append(failed, k)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr != nil {
		return failed, &WriterError[K]{FailedKeys: failed, Cause: firstErr}
	}
	return nil, nil
}

// deleteBatch propagates a batch delete, mirroring writeBatch.
func (a *adapter[K, V]) deleteBatch(ctx context.Context, keys []K) ([]K, error) {
	if !a.cfg.writeThrough {
		return nil, nil
	}
	if a.cfg.writeBack {
		for _, k := range keys {
			a.writeBack.Delete(k)
		}
		return nil, nil
	}
	if bw, ok := a.cfg.writer.(BatchWriter[K, V]); ok {
		failed, err := bw.DeleteAll(ctx, keys)
		if err != nil {
			return failed, &WriterError[K]{FailedKeys: failed, Cause: err}
		}
		return failed, nil
	}
	var failed []K
	var firstErr error
	for _, k := range keys {
		if err := a.cfg.writer.Delete(ctx, k); err != nil {
			failed = append(failed, k)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr != nil {
		return failed, &WriterError[K]{FailedKeys: failed, Cause: firstErr}
	}
	return nil, nil
}
