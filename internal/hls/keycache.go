package hls

import (
	"context"
	"errors"
	"sync"
)

// keyCache caches decryption keys for the duration of one assembly job.
// Keys repeat across segments, so each distinct key URI is fetched once;
// concurrent requests for the same URI wait on the in-flight fetch.
//
// A genuine fetch failure (bad status, transport error) is cached, so
// segments sharing a key share its failure. A failure caused by the
// fetching task's own context deadline or cancellation is NOT cached:
// one task timing out mid-fetch must not poison the key for its
// siblings, which retry the fetch under their own deadlines.
type keyCache struct {
	fetcher *Fetcher

	mutex   sync.Mutex
	entries map[string]*keyEntry
}

type keyEntry struct {
	ready chan struct{}
	key   []byte
	err   error
}

func newKeyCache(fetcher *Fetcher) *keyCache {
	return &keyCache{
		fetcher: fetcher,
		entries: make(map[string]*keyEntry),
	}
}

// Get returns the key bytes for uri, fetching them on first use.
func (kc *keyCache) Get(ctx context.Context, uri string) ([]byte, error) {
	for {
		kc.mutex.Lock()
		entry, ok := kc.entries[uri]
		if !ok {
			entry = &keyEntry{ready: make(chan struct{})}
			kc.entries[uri] = entry
			kc.mutex.Unlock()

			entry.key, entry.err = kc.fetcher.Fetch(ctx, uri)
			if isContextError(entry.err) {
				// This outcome is tied to our caller's deadline,
				// not to the key itself. Drop the entry so the
				// next caller fetches fresh.
				kc.mutex.Lock()
				delete(kc.entries, uri)
				kc.mutex.Unlock()
			}
			close(entry.ready)
			return entry.key, entry.err
		}
		kc.mutex.Unlock()

		select {
		case <-entry.ready:
			if isContextError(entry.err) {
				// The fetcher's deadline expired; the entry is
				// gone from the map. Try again ourselves.
				continue
			}
			return entry.key, entry.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
