package job

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/target/mmk-moderation/internal/domain/model"
)

// ErrWaiterRequired indicates a notifier cannot be constructed without a waiter.
var ErrWaiterRequired = errors.New("notifier waiter is required")

// Waiter blocks until a job of the given kind may be available.
type Waiter interface {
	WaitForNotification(ctx context.Context, kind model.Kind) error
}

// Notifier fans queue wake-ups out to in-process subscribers.
type Notifier interface {
	Subscribe(kind model.Kind) (func(), <-chan struct{})
	StopAll()
}

// NotifierOptions configure DefaultNotifier.
type NotifierOptions struct {
	Waiter     Waiter
	WaitWindow time.Duration
	Backoff    time.Duration
	Logger     *slog.Logger
}

// DefaultNotifier runs one listen loop per kind while that kind has subscribers.
type DefaultNotifier struct {
	waiter     Waiter
	waitWindow time.Duration
	backoff    time.Duration
	logger     *slog.Logger

	mu   sync.Mutex
	hubs map[model.Kind]*hub
}

type hub struct {
	cancel context.CancelFunc
	subs   map[chan struct{}]struct{}
}

// NewNotifier constructs a DefaultNotifier.
func NewNotifier(opts NotifierOptions) (*DefaultNotifier, error) {
	if opts.Waiter == nil {
		return nil, ErrWaiterRequired
	}
	n := &DefaultNotifier{
		waiter:     opts.Waiter,
		waitWindow: opts.WaitWindow,
		backoff:    opts.Backoff,
		logger:     opts.Logger,
		hubs:       make(map[model.Kind]*hub),
	}
	if n.waitWindow <= 0 {
		n.waitWindow = time.Minute
	}
	if n.backoff <= 0 {
		n.backoff = 250 * time.Millisecond
	}
	if n.logger == nil {
		n.logger = slog.Default()
	}
	n.logger = n.logger.With("component", "job_notifier")
	return n, nil
}

// Subscribe registers a buffered wake-up channel for kind. The returned func unsubscribes and closes it.
func (n *DefaultNotifier) Subscribe(kind model.Kind) (func(), <-chan struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()

	h, ok := n.hubs[kind]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		h = &hub{cancel: cancel, subs: make(map[chan struct{}]struct{})}
		n.hubs[kind] = h
		go n.listenLoop(ctx, kind)
	}

	ch := make(chan struct{}, 1)
	h.subs[ch] = struct{}{}

	var once sync.Once
	unsub := func() {
		once.Do(func() { n.unsubscribe(kind, ch) })
	}
	return unsub, ch
}

func (n *DefaultNotifier) unsubscribe(kind model.Kind, ch chan struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()

	h, ok := n.hubs[kind]
	if !ok {
		return
	}
	if _, ok := h.subs[ch]; !ok {
		return
	}
	delete(h.subs, ch)
	drainAndClose(ch)
	if len(h.subs) == 0 {
		h.cancel()
		delete(n.hubs, kind)
	}
}

// StopAll cancels every listen loop and closes every subscriber channel.
func (n *DefaultNotifier) StopAll() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for kind, h := range n.hubs {
		h.cancel()
		for ch := range h.subs {
			drainAndClose(ch)
		}
		delete(n.hubs, kind)
	}
}

func (n *DefaultNotifier) listenLoop(ctx context.Context, kind model.Kind) {
	for ctx.Err() == nil {
		waitCtx, cancel := context.WithTimeout(ctx, n.waitWindow)
		err := n.waiter.WaitForNotification(waitCtx, kind)
		cancel()

		// Wake subscribers even on error so they fall back to polling.
		n.broadcast(kind)

		if err == nil || ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			continue
		}
		n.logger.DebugContext(ctx, "job notification wait failed", "kind", kind, "error", err)

		timer := time.NewTimer(n.backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (n *DefaultNotifier) broadcast(kind model.Kind) {
	n.mu.Lock()
	defer n.mu.Unlock()

	h, ok := n.hubs[kind]
	if !ok {
		return
	}
	for ch := range h.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// drainAndClose empties the buffer so receivers observe the close immediately.
func drainAndClose(ch chan struct{}) {
	for {
		select {
		case <-ch:
		default:
			close(ch)
			return
		}
	}
}

var _ Notifier = (*DefaultNotifier)(nil)
