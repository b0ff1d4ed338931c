// cdrom_readahead.go - background sector prefetch feeding the data FIFO

package main

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// sectorReadAhead keeps one decoded sector queued up behind the drive's
// current read position so readNextSector can usually hand the data FIFO a
// sector that already finished its disk I/O instead of blocking the
// scheduler goroutine on a syscall. It is pure latency hiding: cancelling
// or losing the prefetch never changes what data the drive reports, only
// whether readNextSector has to fall back to a synchronous read.
type sectorReadAhead struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	g      *errgroup.Group

	ready chan [2352]byte
}

func newSectorReadAhead() *sectorReadAhead {
	return &sectorReadAhead{ready: make(chan [2352]byte, 1)}
}

// Stop cancels any in-flight prefetch and waits for the worker goroutine to
// exit. Safe to call when no prefetch is running.
func (r *sectorReadAhead) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	g := r.g
	r.cancel = nil
	r.g = nil
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if g != nil {
		_ = g.Wait()
	}
	for {
		select {
		case <-r.ready:
			continue
		default:
		}
		break
	}
}

// Prefetch kicks off a background read of the sector at relativeTime on
// trackNumber, if one isn't already queued or in flight. Errors are
// dropped silently: a failed prefetch just means the next readNextSector
// falls back to a synchronous ReadSector call.
func (r *sectorReadAhead) Prefetch(disc *CdBinFiles, trackNumber uint8, relativeTime CdTime) {
	if disc == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil || len(r.ready) > 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)
	r.cancel = cancel
	r.g = g
	g.Go(func() error {
		var buf [2352]byte
		if err := disc.ReadSector(trackNumber, relativeTime, buf[:]); err != nil {
			return err
		}
		select {
		case r.ready <- buf:
		case <-ctx.Done():
		}
		return nil
	})
}

// TakeReady returns a sector the background worker already finished
// reading, if any is queued, clearing the in-flight marker so the next
// Prefetch call can start.
func (r *sectorReadAhead) TakeReady() ([2352]byte, bool) {
	select {
	case buf := <-r.ready:
		r.mu.Lock()
		r.cancel = nil
		r.g = nil
		r.mu.Unlock()
		return buf, true
	default:
		return [2352]byte{}, false
	}
}
