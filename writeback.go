package cache

import (
	"context"
	"log/slog"
	"sync"
)

// writeBackWorker asynchronously drains writer calls through a single
// background goroutine, grounded on the teacher's buffered-channel
// write-back policy: writes are best-effort and dropped under sustained
// overload rather than applying backpressure to the caller.
type writeBackWorker[K comparable, V any] struct {
	writer Writer[K, V]
	logger *slog.Logger

	ch chan writeBackReq[K, V]
	wg sync.WaitGroup
}

type writeBackReq[K comparable, V any] struct {
	del   bool
	key   K
	value V
}

func newWriteBackWorker[K comparable, V any](writer Writer[K, V], logger *slog.Logger) *writeBackWorker[K, V] {
	w := &writeBackWorker[K, V]{
		writer: writer,
		logger: logger,
		ch:     make(chan writeBackReq[K, V], 1024),
	}
	w.wg.Add(1)
	go w.run()
	return w
}

func (w *writeBackWorker[K, V]) run() {
	defer w.wg.Done()
	for req := range w.ch {
		ctx := context.Background()
		var err error
		if req.del {
			err = w.writer.Delete(ctx, req.key)
		} else {
			err = w.writer.Write(ctx, req.key, req.value)
		}
		if err != nil {
			w.logger.Error("cache: write-back failed, dropping", "key", req.key, "delete", req.del, "err", err)
		}
	}
}

func (w *writeBackWorker[K, V]) Write(key K, value V) {
	select {
	case w.ch <- writeBackReq[K, V]{key: key, value: value}:
	default:
		w.logger.Warn("cache: write-back queue full, dropping write", "key", key)
	}
}

func (w *writeBackWorker[K, V]) Delete(key K) {
	select {
	case w.ch <- writeBackReq[K, V]{del: true, key: key}:
	default:
		w.logger.Warn("cache: write-back queue full, dropping delete", "key", key)
	}
}

func (w *writeBackWorker[K, V]) Close() {
	close(w.ch)
	w.wg.Wait()
}
