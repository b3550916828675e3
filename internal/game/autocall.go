package game

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
)

// Auto-call rejections
var (
	ErrAutoCallOn  = errors.New("auto-call is already on")
	ErrAutoCallOff = errors.New("auto-call is not running")
)

// errRoundOver stops the ticker after a winning call.
var errRoundOver = errors.New("round over")

// AutoCaller calls the next number on a fixed interval until the round ends,
// the pool is exhausted, or an admin turns it off. The clock is injected so
// tests can drive ticks explicitly.
type AutoCaller struct {
	engine   *Engine
	admin    PlayerID
	interval time.Duration
	clock    quartz.Clock
	logger   *log.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewAutoCaller creates a stopped auto-caller acting as the given admin.
func NewAutoCaller(logger *log.Logger, engine *Engine, admin PlayerID, interval time.Duration, clock quartz.Clock) *AutoCaller {
	return &AutoCaller{
		engine:   engine,
		admin:    admin,
		interval: interval,
		clock:    clock,
		logger:   logger.WithPrefix("autocall"),
	}
}

// Start begins calling on the interval. Rejected if already running.
func (a *AutoCaller) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return ErrAutoCallOn
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	a.running = true
	a.cancel = cancel
	a.done = done

	a.logger.Info("Auto-call started", "interval", a.interval)
	go func() {
		waiter := a.clock.TickerFunc(runCtx, a.interval, func() error {
			return a.tick(runCtx)
		}, "autocall")
		_ = waiter.Wait()

		a.mu.Lock()
		a.running = false
		a.cancel = nil
		a.mu.Unlock()
		close(done)
	}()
	return nil
}

// tick draws one number. Any terminal condition stops the ticker.
func (a *AutoCaller) tick(ctx context.Context) error {
	result, err := a.engine.CallNext(ctx, a.admin)
	switch {
	case err == nil:
		if len(result.Winners) > 0 {
			a.logger.Info("Auto-call stopping, round won", "number", result.Number)
			return errRoundOver
		}
		return nil
	case errors.Is(err, ErrGameInactive), errors.Is(err, ErrNoNumbersLeft):
		a.logger.Info("Auto-call stopping", "reason", err)
		return err
	default:
		a.logger.Warn("Auto-call stopping on unexpected error", "error", err)
		return err
	}
}

// Stop turns auto-calling off and waits for the loop to exit. Rejected if
// not running.
func (a *AutoCaller) Stop() error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return ErrAutoCallOff
	}
	cancel := a.cancel
	done := a.done
	a.mu.Unlock()

	cancel()
	<-done
	a.logger.Info("Auto-call stopped")
	return nil
}

// Running reports whether the auto-caller is active.
func (a *AutoCaller) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}
