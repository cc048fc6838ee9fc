package cart

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/norun9/gomarketplace/cartservice/cartstore"
)

var (
	// ErrNotStarted is returned by mutations on a store that was never started.
	ErrNotStarted = errors.New("cart: store not started")
	// ErrClosed is returned by mutations once the store has stopped.
	ErrClosed = errors.New("cart: store closed")
)

const defaultPersistTimeout = 5 * time.Second

// Option configures a Store.
type Option func(*Store)

// WithKey sets the storage key the snapshot is written under.
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithLogger sets the logger; nil keeps logrus.StandardLogger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// WithErrorHandler registers fn to receive every load and save failure. fn is
// called from the store's own goroutines and must not call back into the
// store's mutating methods.
func WithErrorHandler(fn func(error)) Option {
	return func(s *Store) { s.onError = fn }
}

// WithPersistTimeout bounds each storage read and write.
func WithPersistTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.persistTimeout = d
		}
	}
}

// WithMeterProvider records store metrics with mp instead of the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Store) { s.meterProvider = mp }
}

// WithTracerProvider traces snapshot writes with tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Store) {
		if tp != nil {
			s.tracer = tp.Tracer("cartservice")
		}
	}
}

type command struct {
	op    string
	apply func([]Product) []Product
	done  chan struct{}
}

// Store owns the cart state. Mutations are applied one at a time by a single
// goroutine against the latest committed state; snapshots are written to
// storage by a second goroutine, one write at a time, always encoding the
// newest state.
type Store struct {
	storage        cartstore.IStorage
	key            string
	log            logrus.FieldLogger
	onError        func(error)
	persistTimeout time.Duration
	meterProvider  metric.MeterProvider
	metrics        storeMetrics
	tracer         trace.Tracer

	cmds   chan command
	dirty  chan struct{}
	quit   chan struct{}
	loaded chan struct{}
	// done is closed when the command loop exits, writerStopped when the
	// persistence loop exits.
	done          chan struct{}
	writerStopped chan struct{}

	started   atomic.Bool
	startOnce sync.Once
	closeOnce sync.Once
	group     *errgroup.Group

	mu        sync.RWMutex
	products  []Product
	version   uint64
	attempted uint64
	lastErr   error
	flushed   chan struct{}

	subMu      sync.Mutex
	subs       map[uint64]chan []Product
	nextSub    uint64
	subsClosed bool
}

// NewStore returns a stopped store over storage. Call Start before use.
func NewStore(storage cartstore.IStorage, opts ...Option) *Store {
	s := &Store{
		storage:        storage,
		key:            cartstore.DefaultKey,
		log:            logrus.StandardLogger(),
		persistTimeout: defaultPersistTimeout,
		tracer:         otel.Tracer("cartservice"),
		products:       []Product{},
		cmds:           make(chan command),
		dirty:          make(chan struct{}, 1),
		quit:           make(chan struct{}),
		loaded:         make(chan struct{}),
		done:           make(chan struct{}),
		writerStopped:  make(chan struct{}),
		flushed:        make(chan struct{}),
		subs:           make(map[uint64]chan []Product),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithFields(logrus.Fields{"component": "cart.Store", "key": s.key})
	s.metrics = newStoreMetrics(s.meterProvider)
	return s
}

// Start restores the cart from storage and begins accepting mutations.
// Mutations submitted while the snapshot is loading are applied after it.
// Cancelling ctx stops the store like Close does.
func (s *Store) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		g, gctx := errgroup.WithContext(ctx)
		s.group = g
		g.Go(func() error { return s.run(gctx) })
		g.Go(func() error { return s.writeLoop(gctx) })
		s.started.Store(true)
	})
}

// Loaded is closed once the stored snapshot has been read, whether or not
// one was found.
func (s *Store) Loaded() <-chan struct{} {
	return s.loaded
}

// Products returns a copy of the committed cart.
func (s *Store) Products() []Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.products)
}

// AddToCart raises the quantity of the line-item with in.ID, or appends it
// with quantity 1. A non-finite price cannot be encoded, so every snapshot
// write fails until that line-item leaves the cart.
func (s *Store) AddToCart(ctx context.Context, in ProductInput) error {
	return s.submit(ctx, "add", func(p []Product) []Product { return AddToCart(p, in) })
}

// Increment raises the quantity of id by one. An unknown id is ignored.
func (s *Store) Increment(ctx context.Context, id string) error {
	return s.submit(ctx, "increment", func(p []Product) []Product { return Increment(p, id) })
}

// Decrement lowers the quantity of id by one and drops the line-item at zero.
// An unknown id is ignored.
func (s *Store) Decrement(ctx context.Context, id string) error {
	return s.submit(ctx, "decrement", func(p []Product) []Product { return Decrement(p, id) })
}

// submit hands fn to the command loop and returns once the result is
// committed and published. It does not wait for the storage write.
func (s *Store) submit(ctx context.Context, op string, fn func([]Product) []Product) error {
	if !s.started.Load() {
		return ErrNotStarted
	}
	cmd := command{op: op, apply: fn, done: make(chan struct{})}
	select {
	case s.cmds <- cmd:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-cmd.done
	return nil
}

// Flush waits until the state committed before the call has been written,
// or a write of it has failed, and returns that write's error.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.RLock()
	target := s.version
	s.mu.RUnlock()

	for {
		s.mu.RLock()
		attempted, err, flushed := s.attempted, s.lastErr, s.flushed
		s.mu.RUnlock()
		if attempted >= target {
			return err
		}

		select {
		case <-flushed:
		case <-s.writerStopped:
			s.mu.RLock()
			attempted, err = s.attempted, s.lastErr
			s.mu.RUnlock()
			if attempted >= target {
				return err
			}
			return ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Subscribe returns a channel that receives the current cart and then every
// newly published one. A slow reader only sees the newest snapshot. The
// channel is closed by cancel or by Close.
func (s *Store) Subscribe() (<-chan []Product, func()) {
	ch := make(chan []Product, 1)

	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.subsClosed {
		close(ch)
		return ch, func() {}
	}
	ch <- s.Products()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	cancel := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Close stops accepting mutations, writes any pending snapshot and waits for
// the store's goroutines. It returns the error of the last write attempt.
func (s *Store) Close(ctx context.Context) error {
	if !s.started.Load() {
		return nil
	}
	s.closeOnce.Do(func() { close(s.quit) })

	waited := make(chan error, 1)
	go func() { waited <- s.group.Wait() }()
	select {
	case err := <-waited:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	s.subMu.Lock()
	if !s.subsClosed {
		s.subsClosed = true
		for id, ch := range s.subs {
			delete(s.subs, id)
			close(ch)
		}
	}
	s.subMu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

func (s *Store) run(ctx context.Context) error {
	defer close(s.done)

	s.hydrate(ctx)
	close(s.loaded)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.quit:
			return nil
		case cmd := <-s.cmds:
			s.apply(ctx, cmd)
		}
	}
}

func (s *Store) hydrate(ctx context.Context) {
	loadCtx, cancel := context.WithTimeout(ctx, s.persistTimeout)
	defer cancel()

	payload, ok, err := s.storage.GetItem(loadCtx, s.key)
	if err != nil {
		s.report(errors.Wrap(err, "load cart snapshot"))
		return
	}
	if !ok {
		s.log.Debug("no stored cart, starting empty")
		return
	}
	products, err := DecodeSnapshot(payload)
	if err != nil {
		s.report(errors.Wrap(err, "load cart snapshot"))
		return
	}

	s.mu.Lock()
	s.products = products
	s.mu.Unlock()
	s.publish(products)
	s.log.WithField("items", len(products)).Info("cart restored from storage")
}

func (s *Store) apply(ctx context.Context, cmd command) {
	s.mu.Lock()
	next := cmd.apply(s.products)
	s.products = next
	s.version++
	s.mu.Unlock()

	s.metrics.recordOperation(ctx, cmd.op)
	s.publish(next)
	s.markDirty()
	close(cmd.done)
}

func (s *Store) markDirty() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

func (s *Store) publish(products []Product) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		snapshot := clone(products)
		select {
		case ch <- snapshot:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
			}
		}
	}
}

func (s *Store) writeLoop(ctx context.Context) error {
	defer close(s.writerStopped)
	for {
		select {
		case <-s.dirty:
			s.persist(ctx)
		case <-s.done:
			select {
			case <-s.dirty:
				s.persist(ctx)
			default:
			}
			return nil
		}
	}
}

func (s *Store) persist(ctx context.Context) {
	s.mu.RLock()
	products, version := s.products, s.version
	s.mu.RUnlock()

	// The write must outlive a cancelled Start context so the last state
	// still reaches storage on shutdown.
	ctx, span := s.tracer.Start(context.WithoutCancel(ctx), "cart.persist")
	defer span.End()
	span.SetAttributes(
		attribute.String("app.cart.key", s.key),
		attribute.Int("app.cart.items", len(products)),
		attribute.Int64("app.cart.version", int64(version)),
	)

	start := time.Now()
	payload, err := EncodeSnapshot(products)
	if err == nil {
		writeCtx, cancel := context.WithTimeout(ctx, s.persistTimeout)
		err = s.storage.SetItem(writeCtx, s.key, payload)
		cancel()
		if err != nil {
			err = errors.Wrap(err, "save cart snapshot")
		}
	}
	s.metrics.recordPersist(ctx, start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.report(err)
	}

	s.mu.Lock()
	s.attempted = version
	s.lastErr = err
	close(s.flushed)
	s.flushed = make(chan struct{})
	s.mu.Unlock()
}

func (s *Store) report(err error) {
	s.log.WithError(err).Error("cart persistence failed")
	if s.onError != nil {
		s.onError(err)
	}
}
