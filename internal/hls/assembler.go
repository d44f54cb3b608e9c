package hls

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"trackdl/internal/logger"
	"trackdl/internal/models"
)

// Assembler defaults, overridable per instance via options.
const (
	DefaultConcurrency    = 10
	DefaultSegmentTimeout = 100 * time.Second
)

// gate is a counting admission limiter bounding simultaneously in-flight
// segment tasks. It is the only state shared between tasks.
type gate struct {
	ch chan struct{}
}

func newGate(capacity int) *gate {
	return &gate{ch: make(chan struct{}, capacity)}
}

// acquire blocks until a permit is available or ctx is done.
func (g *gate) acquire(ctx context.Context) error {
	select {
	case g.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *gate) release() {
	<-g.ch
}

// Assembler downloads all segments of a playlist concurrently, decrypts the
// encrypted ones, and reassembles the plaintext payloads in exact playlist
// order regardless of completion order.
type Assembler struct {
	fetcher     *Fetcher
	logger      logger.Logger
	concurrency int
	timeout     time.Duration
	strict      bool
	onSegment   func(result models.SegmentResult, err error)
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithConcurrency bounds the number of simultaneously in-flight segment
// tasks. A segment's key fetch runs inside its task and consumes the same
// permit.
func WithConcurrency(n int) Option {
	return func(a *Assembler) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithSegmentTimeout bounds one segment's fetch, key fetch and decryption
// as a single unit of work.
func WithSegmentTimeout(d time.Duration) Option {
	return func(a *Assembler) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithStrictMode makes any segment failure fail the whole job instead of
// leaving a gap in the output.
func WithStrictMode(strict bool) Option {
	return func(a *Assembler) {
		a.strict = strict
	}
}

// WithSegmentCallback registers a function invoked once per segment when
// its task reaches a terminal state. Called from task goroutines; the
// callback must be safe for concurrent use.
func WithSegmentCallback(fn func(result models.SegmentResult, err error)) Option {
	return func(a *Assembler) {
		a.onSegment = fn
	}
}

// NewAssembler creates an assembler using the given fetcher.
func NewAssembler(fetcher *Fetcher, log logger.Logger, opts ...Option) *Assembler {
	if log == nil {
		log = logger.Nop()
	}
	a := &Assembler{
		fetcher:     fetcher,
		logger:      log,
		concurrency: DefaultConcurrency,
		timeout:     DefaultSegmentTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble fetches every descriptor's segment, decrypting where a key URI
// is present, and returns the concatenation of all plaintext payloads in
// index order. Segment URIs are resolved against baseURL.
//
// A segment failure never aborts sibling tasks. In the default tolerant
// mode a failed segment contributes empty bytes and is logged and counted;
// in strict mode Assemble returns an error after all tasks finish.
// Cancelling ctx fails the job in either mode.
func (a *Assembler) Assemble(ctx context.Context, descriptors []models.SegmentDescriptor, baseURL string) ([]byte, error) {
	if len(descriptors) == 0 {
		return []byte{}, nil
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL %s: %w", baseURL, err)
	}

	// One slot per descriptor. Each task owns exactly the slot at its
	// index, so slot writes need no lock; the WaitGroup is the barrier
	// that makes them visible before any read.
	results := make([][]byte, len(descriptors))
	errs := make([]error, len(descriptors))

	keys := newKeyCache(a.fetcher)
	admission := newGate(a.concurrency)
	var wg sync.WaitGroup

	for _, desc := range descriptors {
		wg.Add(1)
		go func(desc models.SegmentDescriptor) {
			defer wg.Done()

			data, err := a.runTask(ctx, base, desc, keys, admission)
			if err != nil {
				errs[desc.Index] = err
				a.logger.Warnf("Segment %d failed: %v", desc.Index, err)
			} else {
				results[desc.Index] = data
			}

			if a.onSegment != nil {
				a.onSegment(models.SegmentResult{Index: desc.Index, Bytes: data}, err)
			}
		}(desc)
	}

	wg.Wait()

	// A cancelled job is not a job with tolerable gaps: without this,
	// an interrupt would return partial bytes with a nil error.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("assembly interrupted: %w", err)
	}

	failed := 0
	firstErr := -1
	for i, err := range errs {
		if err != nil {
			failed++
			if firstErr < 0 {
				firstErr = i
			}
		}
	}
	if failed > 0 {
		if a.strict {
			return nil, fmt.Errorf("%d of %d segments failed, first at index %d: %w",
				failed, len(descriptors), firstErr, errs[firstErr])
		}
		a.logger.Warnf("Assembled with %d gap(s) out of %d segments", failed, len(descriptors))
	}

	var buf bytes.Buffer
	for _, chunk := range results {
		buf.Write(chunk)
	}
	return buf.Bytes(), nil
}

// runTask is the whole unit of work for one segment: admission, fetch,
// key fetch and decryption. The admission permit is held for all of it.
func (a *Assembler) runTask(ctx context.Context, base *url.URL, desc models.SegmentDescriptor, keys *keyCache, admission *gate) ([]byte, error) {
	if err := admission.acquire(ctx); err != nil {
		return nil, err
	}
	defer admission.release()

	// The per-segment deadline starts after admission: waiting for a
	// permit must not eat into the segment's own time budget.
	taskCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	segmentURL, err := resolveURL(base, desc.URI)
	if err != nil {
		return nil, err
	}

	raw, err := a.fetcher.Fetch(taskCtx, segmentURL)
	if err != nil {
		return nil, err
	}

	if !desc.Encrypted() {
		return raw, nil
	}

	keyURL, err := resolveURL(base, desc.KeyURI)
	if err != nil {
		return nil, err
	}
	key, err := keys.Get(taskCtx, keyURL)
	if err != nil {
		return nil, fmt.Errorf("key fetch: %w", err)
	}

	plaintext, err := DecryptSegment(raw, key)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}
