package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"token_swap/internal/domain"
	"token_swap/internal/event"

	"github.com/shopspring/decimal"
)

var (
	// ErrHalted is returned to submitters once the sequencer has stopped.
	ErrHalted = errors.New("sequencer halted")
)

// Ledger is the mutating surface the sequencer drives.
type Ledger interface {
	Swap(ctx context.Context, fromAsset domain.AssetID, fromAmount decimal.Decimal, toAsset domain.AssetID) (decimal.Decimal, error)
	AddLiquidity(ctx context.Context, asset domain.AssetID, amount decimal.Decimal) (decimal.Decimal, error)
	RemoveLiquidity(ctx context.Context, asset domain.AssetID, amount decimal.Decimal) (decimal.Decimal, error)
	SetExchangeRate(ctx context.Context, from, to domain.AssetID, rate decimal.Decimal) error
	SetState(ctx context.Context, state domain.OperationalState) error
	State() domain.OperationalState
	Rates() ([]domain.ExchangeRate, error)
}

// Journal is the write-ahead log of commands.
type Journal interface {
	Append(ctx context.Context, entry event.JournalEntry) error
	Complete(ctx context.Context, seq uint64, outcome, errorCode string) error
	LastSeq(ctx context.Context) (uint64, error)
	Entries(ctx context.Context, afterSeq uint64, limit int) ([]event.JournalEntry, error)
}

// Observer receives the outcome of every processed command.
type Observer interface {
	ObserveCommand(op string, err error, elapsed time.Duration)
}

// Result is the reply to a submitted command. Amount is the swap payout or
// the new liquidity share; it is zero for owner commands.
type Result struct {
	Seq    uint64
	Amount decimal.Decimal
	Err    error
}

// Config wires a Sequencer.
type Config struct {
	Ledger    Ledger
	Journal   Journal // optional
	Observer  Observer
	InboxSize int
	DumpPath  string
	Logger    *slog.Logger
	Now       func() time.Time
}

type submission struct {
	ctx   context.Context
	ev    event.Event
	reply chan Result
}

// Sequencer is the core single-threaded command processor. Every mutation of
// the ledger passes through its inbox in submission order.
type Sequencer struct {
	inbox    chan submission
	ledger   Ledger
	journal  Journal
	observer Observer
	dumpPath string
	logger   *slog.Logger
	now      func() time.Time

	nextSeq atomic.Uint64
	done    chan struct{}
	once    sync.Once

	// last command seen by the loop, for post-mortem dumps
	current event.Event
}

// NewSequencer creates a new sequencer. Sequence numbers continue from the
// journal's last entry.
func NewSequencer(ctx context.Context, cfg Config) (*Sequencer, error) {
	if cfg.Ledger == nil {
		return nil, errors.New("engine: ledger not configured")
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = 1024
	}
	if cfg.DumpPath == "" {
		cfg.DumpPath = "panic_dump.json"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &Sequencer{
		inbox:    make(chan submission, cfg.InboxSize),
		ledger:   cfg.Ledger,
		journal:  cfg.Journal,
		observer: cfg.Observer,
		dumpPath: cfg.DumpPath,
		logger:   cfg.Logger.With("module", "sequencer"),
		now:      cfg.Now,
		done:     make(chan struct{}),
	}
	var last uint64
	if s.journal != nil {
		var err error
		if last, err = s.journal.LastSeq(ctx); err != nil {
			return nil, fmt.Errorf("engine: read journal: %w", err)
		}
	}
	s.nextSeq.Store(last + 1)
	return s, nil
}

// Submit hands ev to the sequencer and waits for its result. Once accepted
// into the inbox a command is always processed, even if ctx ends first.
func (s *Sequencer) Submit(ctx context.Context, ev event.Event) (Result, error) {
	sub := submission{ctx: context.WithoutCancel(ctx), ev: ev, reply: make(chan Result, 1)}

	select {
	case <-s.done:
		return Result{}, ErrHalted
	default:
	}
	select {
	case s.inbox <- sub:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-s.done:
		return Result{}, ErrHalted
	}

	select {
	case res := <-sub.reply:
		return res, nil
	case <-s.done:
		// The loop may have replied just before stopping.
		select {
		case res := <-sub.reply:
			return res, nil
		default:
			return Result{}, ErrHalted
		}
	}
}

// Run starts the main command loop. This MUST be run in a single goroutine.
// On ctx cancellation it drains commands already queued and returns nil; a
// panic while processing dumps state and halts with an error.
func (s *Sequencer) Run(ctx context.Context) (err error) {
	s.logger.Info("Sequencer started", slog.Uint64("next_seq", s.nextSeq.Load()))

	defer s.stop()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("CRITICAL_PANIC_DETECTED", slog.Any("panic", r))
			s.DumpState(s.dumpPath)
			err = fmt.Errorf("HALTED: %v", r)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Sequencer stopping...")
			s.drain()
			return nil
		case sub := <-s.inbox:
			sub.reply <- s.process(sub.ctx, sub.ev)
		}
	}
}

// Done is closed when the loop has exited.
func (s *Sequencer) Done() <-chan struct{} {
	return s.done
}

// NextSeq is the sequence number the next command will receive.
func (s *Sequencer) NextSeq() uint64 {
	return s.nextSeq.Load()
}

func (s *Sequencer) stop() {
	s.once.Do(func() { close(s.done) })
}

func (s *Sequencer) drain() {
	for {
		select {
		case sub := <-s.inbox:
			sub.reply <- s.process(sub.ctx, sub.ev)
		default:
			return
		}
	}
}

func (s *Sequencer) process(ctx context.Context, ev event.Event) Result {
	start := s.now()
	s.current = ev

	// 1. Sequence assignment
	seq := s.nextSeq.Load()
	ev.SetSeq(seq)
	if ev.GetTs() == 0 {
		ev.SetTs(start.UnixMicro())
	}

	// 2. WAL-first: Persistence
	if s.journal != nil {
		entry, err := event.NewJournalEntry(ev)
		if err != nil {
			// Nothing was written, so the sequence number is reused.
			return Result{Err: fmt.Errorf("encode %s: %w", ev.GetType(), err)}
		}
		if err := s.journal.Append(ctx, entry); err != nil {
			panic(fmt.Sprintf("PERSISTENCE_FAILURE: %v", err))
		}
	}
	s.nextSeq.Store(seq + 1)

	// 3. Logic Dispatch
	amount, err := s.dispatch(domain.WithCaller(ctx, ev.GetCaller()), ev)

	// 4. Outcome
	outcome := event.OutcomeOK
	if err != nil {
		outcome = event.OutcomeRejected
	}
	if s.journal != nil {
		if jerr := s.journal.Complete(ctx, seq, outcome, domain.ErrorCode(err)); jerr != nil {
			panic(fmt.Sprintf("PERSISTENCE_FAILURE: %v", jerr))
		}
	}
	if s.observer != nil {
		s.observer.ObserveCommand(string(ev.GetType()), err, s.now().Sub(start))
	}
	s.current = nil
	return Result{Seq: seq, Amount: amount, Err: err}
}

func (s *Sequencer) dispatch(ctx context.Context, ev event.Event) (decimal.Decimal, error) {
	switch e := ev.(type) {
	case *event.SwapCommand:
		return s.ledger.Swap(ctx, e.FromAsset, e.FromAmount, e.ToAsset)
	case *event.AddLiquidityCommand:
		return s.ledger.AddLiquidity(ctx, e.Asset, e.Amount)
	case *event.RemoveLiquidityCommand:
		return s.ledger.RemoveLiquidity(ctx, e.Asset, e.Amount)
	case *event.SetExchangeRateCommand:
		return decimal.Zero, s.ledger.SetExchangeRate(ctx, e.From, e.To, e.Rate)
	case *event.SetStateCommand:
		return decimal.Zero, s.ledger.SetState(ctx, e.State)
	default:
		s.logger.Warn("Unknown command type", slog.Any("type", ev.GetType()))
		return decimal.Zero, fmt.Errorf("%w: %T", domain.ErrUnknownCommand, ev)
	}
}

// DumpState writes the sequencer and ledger state to a file (for post-mortem).
func (s *Sequencer) DumpState(filename string) {
	s.logger.Info("Dumping internal state...", slog.String("file", filename))

	rates, err := s.ledger.Rates()
	if err != nil {
		s.logger.Error("Failed to read rates for dump", slog.Any("error", err))
	}
	data := struct {
		NextSeq uint64                  `json:"next_seq"`
		State   domain.OperationalState `json:"state"`
		Rates   []domain.ExchangeRate   `json:"rates"`
		Current event.Event             `json:"current,omitempty"`
	}{
		NextSeq: s.nextSeq.Load(),
		State:   s.ledger.State(),
		Rates:   rates,
		Current: s.current,
	}

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		s.logger.Error("Failed to marshal state", slog.Any("error", err))
		return
	}

	err = os.WriteFile(filename, b, 0644)
	if err != nil {
		s.logger.Error("Failed to write state dump", slog.Any("error", err))
	}
}
