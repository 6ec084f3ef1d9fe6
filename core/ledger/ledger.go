// Package ledger executes custody and instrument operations atomically.
//
// Each operation locks its asset, runs the engines over a journal of the
// committed store and either commits every write in one batch or discards
// the journal. Events raised during the operation reach the configured
// emitter only after the batch is written.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	coreerrors "github.com/onda-protocol/onda-program-library-sub000/core/errors"
	"github.com/onda-protocol/onda-program-library-sub000/core/events"
	"github.com/onda-protocol/onda-program-library-sub000/core/state"
	"github.com/onda-protocol/onda-program-library-sub000/crypto"
	"github.com/onda-protocol/onda-program-library-sub000/native/assets"
	nativecommon "github.com/onda-protocol/onda-program-library-sub000/native/common"
	"github.com/onda-protocol/onda-program-library-sub000/native/custody"
	"github.com/onda-protocol/onda-program-library-sub000/native/loan"
	"github.com/onda-protocol/onda-program-library-sub000/native/option"
	"github.com/onda-protocol/onda-program-library-sub000/native/rental"
	"github.com/onda-protocol/onda-program-library-sub000/observability"
	"github.com/onda-protocol/onda-program-library-sub000/storage"
)

var errNilDatabase = errors.New("ledger: database required")

// Option customises a Ledger.
type Option func(*Ledger)

// WithClock replaces the wall clock. The clock is read once per operation.
func WithClock(now func() int64) Option {
	return func(l *Ledger) {
		if now != nil {
			l.nowFn = now
		}
	}
}

// WithEmitter sets the destination for committed events.
func WithEmitter(emitter events.Emitter) Option {
	return func(l *Ledger) {
		if emitter != nil {
			l.emitter = emitter
		}
	}
}

// WithPauses installs the module pause view shared by every engine.
func WithPauses(p nativecommon.PauseView) Option {
	return func(l *Ledger) { l.pauses = p }
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithMetrics overrides the metrics registry. A nil registry disables
// operation metrics.
func WithMetrics(m *observability.LedgerMetrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

// Ledger is the public operation surface over one storage.Database.
type Ledger struct {
	db      storage.Database
	locks   *assetLocks
	commit  sync.Mutex
	emitter events.Emitter
	pauses  nativecommon.PauseView
	nowFn   func() int64
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *observability.LedgerMetrics
}

// New opens a ledger over db, stamping the state version on an empty store.
func New(db storage.Database, opts ...Option) (*Ledger, error) {
	if db == nil {
		return nil, errNilDatabase
	}
	if err := state.EnsureStateVersion(db, false); err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}
	l := &Ledger{
		db:      db,
		locks:   newAssetLocks(),
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
		logger:  slog.Default(),
		tracer:  otel.Tracer("core/ledger"),
		metrics: observability.Ledger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Now returns the ledger clock.
func (l *Ledger) Now() int64 { return l.nowFn() }

// session wires one operation's engines over a shared state manager.
type session struct {
	now      int64
	sink     events.Emitter
	state    *state.Manager
	custody  *custody.Engine
	registry *assets.Engine
	loans    *loan.Engine
	options  *option.Engine
	rentals  *rental.Engine
}

func (l *Ledger) newSession(kv state.KV, sink events.Emitter) *session {
	now := l.nowFn()
	clock := func() int64 { return now }
	mgr := state.NewManager(kv)

	custodyEngine := custody.NewEngine()
	custodyEngine.SetState(mgr)
	custodyEngine.SetEmitter(sink)
	custodyEngine.SetPauses(l.pauses)

	registry := assets.NewEngine()
	registry.SetState(mgr)
	registry.SetEmitter(sink)
	registry.SetPauses(l.pauses)

	rentals := rental.NewEngine()
	rentals.SetState(mgr)
	rentals.SetCustody(custodyEngine)
	rentals.SetRoyalties(registry)
	rentals.SetEmitter(sink)
	rentals.SetPauses(l.pauses)
	rentals.SetNowFunc(clock)

	loans := loan.NewEngine()
	loans.SetState(mgr)
	loans.SetCustody(custodyEngine)
	loans.SetRoyalties(registry)
	loans.SetRentalSettler(rentals)
	loans.SetEmitter(sink)
	loans.SetPauses(l.pauses)
	loans.SetNowFunc(clock)

	options := option.NewEngine()
	options.SetState(mgr)
	options.SetCustody(custodyEngine)
	options.SetRoyalties(registry)
	options.SetRentalSettler(rentals)
	options.SetEmitter(sink)
	options.SetPauses(l.pauses)
	options.SetNowFunc(clock)

	return &session{
		now:      now,
		sink:     sink,
		state:    mgr,
		custody:  custodyEngine,
		registry: registry,
		loans:    loans,
		options:  options,
		rentals:  rentals,
	}
}

// apply runs fn as one atomic operation on asset. A zero asset skips the
// asset lock; such operations touch balances only.
func (l *Ledger) apply(ctx context.Context, op string, asset crypto.AssetID, fn func(*session) error) error {
	return l.execute(ctx, op, asset, true, fn)
}

// view runs fn against committed state and discards whatever it wrote.
func (l *Ledger) view(ctx context.Context, op string, asset crypto.AssetID, fn func(*session) error) error {
	return l.execute(ctx, op, asset, false, fn)
}

func (l *Ledger) execute(ctx context.Context, op string, asset crypto.AssetID, commit bool, fn func(*session) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	started := time.Now()
	ctx, span := l.tracer.Start(ctx, "ledger."+op, trace.WithAttributes(
		attribute.String("ledger.asset", asset.String()),
		attribute.Bool("ledger.mutating", commit),
	))
	defer span.End()

	written, err := l.run(ctx, op, asset, commit, fn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if commit {
			l.logger.WarnContext(ctx, "ledger operation rejected",
				slog.String("operation", op),
				slog.String("asset", asset.String()),
				slog.String("kind", coreerrors.Kind(err)),
				slog.Any("error", err))
		}
	} else if commit {
		span.SetAttributes(attribute.Int("ledger.writes", written))
		l.logger.DebugContext(ctx, "ledger operation committed",
			slog.String("operation", op),
			slog.String("asset", asset.String()),
			slog.Int("writes", written))
	}
	if commit {
		l.metrics.Observe(op, time.Since(started), err)
	}
	return err
}

func (l *Ledger) run(ctx context.Context, op string, asset crypto.AssetID, commit bool, fn func(*session) error) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if !asset.IsZero() {
		waitStart := time.Now()
		unlock, err := l.locks.acquire(ctx, asset)
		if err != nil {
			return 0, err
		}
		defer unlock()
		if commit {
			l.metrics.ObserveLockWait(op, time.Since(waitStart))
		}
	}
	if commit {
		defer l.metrics.Enter()()
	}

	journal := storage.NewJournal(l.db)
	buffer := new(events.Buffer)
	s := l.newSession(journal, buffer)
	if err := fn(s); err != nil {
		journal.Discard()
		return 0, err
	}
	if !commit {
		journal.Discard()
		return 0, nil
	}

	l.commit.Lock()
	if err := s.state.Finalize(); err != nil {
		l.commit.Unlock()
		journal.Discard()
		return 0, err
	}
	batch := journal.Batch()
	if err := l.db.Write(batch); err != nil {
		l.commit.Unlock()
		journal.Discard()
		return 0, fmt.Errorf("ledger: commit %s: %w", op, err)
	}
	l.commit.Unlock()
	l.metrics.ObserveCommit(batch.Len())

	buffer.Flush(l.emitter)
	return batch.Len(), nil
}
