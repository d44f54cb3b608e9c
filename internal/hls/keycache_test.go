package hls

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyCache_FetchesOnce(t *testing.T) {
	var fetches int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fetches, 1)
		fmt.Fprint(w, "0123456789abcdef")
	}))
	defer server.Close()

	cache := newKeyCache(NewFetcher(nil, nil, ""))

	var wg sync.WaitGroup
	results := make([][]byte, 20)
	errs := make([]error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cache.Get(context.Background(), server.URL+"/key")
		}(i)
	}
	wg.Wait()

	for i := 0; i < 20; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "0123456789abcdef", string(results[i]))
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&fetches))
}

func TestKeyCache_DistinctURIs(t *testing.T) {
	var fetches int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fetches, 1)
		fmt.Fprint(w, r.URL.Path)
	}))
	defer server.Close()

	cache := newKeyCache(NewFetcher(nil, nil, ""))

	k1, err := cache.Get(context.Background(), server.URL+"/k1")
	require.NoError(t, err)
	k2, err := cache.Get(context.Background(), server.URL+"/k2")
	require.NoError(t, err)

	assert.Equal(t, "/k1", string(k1))
	assert.Equal(t, "/k2", string(k2))
	assert.Equal(t, int32(2), atomic.LoadInt32(&fetches))
}

func TestKeyCache_TimeoutNotCachedForSiblings(t *testing.T) {
	// The first request is slower than its caller's deadline; later
	// requests answer immediately.
	var fetches int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&fetches, 1) == 1 {
			select {
			case <-time.After(500 * time.Millisecond):
			case <-r.Context().Done():
				return
			}
		}
		fmt.Fprint(w, "0123456789abcdef")
	}))
	defer server.Close()

	cache := newKeyCache(NewFetcher(nil, nil, ""))
	uri := server.URL + "/key"

	shortCtx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := cache.Get(shortCtx, uri)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// A sibling task with its own, healthy deadline must not inherit
	// the first task's timeout.
	key, err := cache.Get(context.Background(), uri)
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef", string(key))
	assert.Equal(t, int32(2), atomic.LoadInt32(&fetches))

	// The successful outcome is cached as usual.
	again, err := cache.Get(context.Background(), uri)
	require.NoError(t, err)
	assert.Equal(t, key, again)
	assert.Equal(t, int32(2), atomic.LoadInt32(&fetches))
}

func TestKeyCache_WaiterRetriesAfterFetcherTimeout(t *testing.T) {
	var fetches int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&fetches, 1) == 1 {
			<-r.Context().Done()
			return
		}
		fmt.Fprint(w, "0123456789abcdef")
	}))
	defer server.Close()

	cache := newKeyCache(NewFetcher(nil, nil, ""))
	uri := server.URL + "/key"

	// First caller starts the fetch and times out; a concurrent waiter
	// with a generous deadline must end up with the key, not with the
	// first caller's error.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		shortCtx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()
		_, _ = cache.Get(shortCtx, uri)
	}()

	time.Sleep(10 * time.Millisecond) // let the first caller win the fetch
	key, err := cache.Get(context.Background(), uri)
	wg.Wait()

	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef", string(key))
}

func TestKeyCache_ErrorShared(t *testing.T) {
	var fetches int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fetches, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	cache := newKeyCache(NewFetcher(nil, nil, ""))

	_, err1 := cache.Get(context.Background(), server.URL+"/key")
	_, err2 := cache.Get(context.Background(), server.URL+"/key")

	assert.Error(t, err1)
	assert.Error(t, err2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fetches), "a failed fetch is cached too")
}
