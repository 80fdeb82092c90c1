package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"medrunner-portal/internal/event"
	"medrunner-portal/internal/model"
	"medrunner-portal/pkg/apierror"
)

const (
	DefaultReconnectDelay    = 5 * time.Second
	DefaultReconnectAttempts = 4
)

// TokenFunc returns a currently valid access token.
type TokenFunc func(ctx context.Context) (string, error)

// Handler receives the arguments of one invocation frame.
type Handler func(args []json.RawMessage)

type Options struct {
	ReconnectDelay time.Duration
	MaxAttempts    int
	// Epoch reports the session reset count. A connection opened under an
	// older epoch is replaced on Start and closed by Watch.
	Epoch func() uint64
}

// Coordinator owns the single realtime connection of the process.
type Coordinator struct {
	dialer Dialer
	token  TokenFunc
	bus    event.Bus
	opts   Options

	// lifecycle serializes Start, Stop and Rebind.
	lifecycle sync.Mutex

	mu             sync.RWMutex
	state          model.ConnectionState
	conn           Conn
	cancel         context.CancelFunc
	done           chan struct{}
	epoch          uint64
	handlers       map[string]Handler
	onReconnecting []func(error)
	onReconnected  []func()
	onClosed       []func(error)
}

func New(dialer Dialer, token TokenFunc, bus event.Bus, opts Options) *Coordinator {
	if opts.ReconnectDelay < 0 {
		opts.ReconnectDelay = 0
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultReconnectAttempts
	}
	if opts.Epoch == nil {
		opts.Epoch = func() uint64 { return 0 }
	}

	return &Coordinator{
		dialer:   dialer,
		token:    token,
		bus:      bus,
		opts:     opts,
		state:    model.ConnectionNotStarted,
		handlers: make(map[string]Handler),
	}
}

func (c *Coordinator) State() model.ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// On registers the handler for target. Handlers run on the read goroutine in
// delivery order and must not call Stop or Rebind synchronously.
func (c *Coordinator) On(target string, handler Handler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.handlers[target]; exists {
		return fmt.Errorf("%s: %w", target, model.ErrHandlerRegistered)
	}
	c.handlers[target] = handler
	return nil
}

func (c *Coordinator) OnReconnecting(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onReconnecting = append(c.onReconnecting, fn)
}

func (c *Coordinator) OnReconnected(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onReconnected = append(c.onReconnected, fn)
}

// OnClosed is called when automatic reconnection gives up.
func (c *Coordinator) OnClosed(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClosed = append(c.onClosed, fn)
}

// Start opens the connection with a valid access token. Starting a running
// coordinator is a no-op unless its connection predates the last session
// reset, in which case that connection is replaced.
func (c *Coordinator) Start(ctx context.Context) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	return c.startLocked(ctx)
}

// Stop closes the connection and waits for the read loop to exit. It is safe
// to call when not started.
func (c *Coordinator) Stop() {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	c.stopLocked()
}

// Rebind tears the connection down and opens a fresh one so the server
// recomputes its subscriptions.
func (c *Coordinator) Rebind(ctx context.Context) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	slog.Info("realtime rebind")
	c.stopLocked()
	return c.startLocked(ctx)
}

// Watch stops the connection whenever the session is reset. A connection
// opened after the reset it hears about is left alone. The returned function
// ends the watch.
func (c *Coordinator) Watch(bus event.Bus) func() {
	resets, unsubscribe := bus.Subscribe(event.TypeSessionReset)
	go func() {
		for e := range resets {
			reset, ok := e.Payload.(model.SessionReset)
			if !ok {
				c.Stop()
				continue
			}
			c.stopBefore(reset.Epoch)
		}
	}()
	return unsubscribe
}

// stopBefore stops a connection opened under an epoch older than epoch.
func (c *Coordinator) stopBefore(epoch uint64) {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.RLock()
	stale := c.cancel != nil && c.epoch < epoch
	c.mu.RUnlock()
	if stale {
		c.stopLocked()
	}
}

// Subscribe streams connection state transitions.
func (c *Coordinator) Subscribe() (<-chan event.Event, func()) {
	return c.bus.Subscribe(event.TypeConnectionState)
}

func (c *Coordinator) startLocked(ctx context.Context) error {
	epoch := c.opts.Epoch()

	c.mu.RLock()
	running := c.cancel != nil
	stale := running && c.epoch < epoch
	c.mu.RUnlock()
	if running && !stale {
		return nil
	}
	if stale {
		slog.Info("realtime connection predates session reset; replacing it")
		c.stopLocked()
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return fmt.Errorf("start realtime: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	c.mu.Lock()
	c.conn = conn
	c.cancel = cancel
	c.done = done
	c.epoch = epoch
	c.mu.Unlock()

	c.setState(model.ConnectionHealthy)
	go c.run(runCtx, conn, done)
	return nil
}

func (c *Coordinator) stopLocked() {
	c.mu.Lock()
	cancel, conn, done := c.cancel, c.conn, c.done
	c.cancel, c.conn, c.done = nil, nil, nil
	c.mu.Unlock()

	if cancel == nil {
		c.setState(model.ConnectionNotStarted)
		return
	}

	cancel()
	if conn != nil {
		_ = conn.Close()
	}
	<-done

	c.setState(model.ConnectionNotStarted)
	slog.Info("realtime stopped")
}

func (c *Coordinator) dial(ctx context.Context) (Conn, error) {
	accessToken, err := c.token(ctx)
	if err != nil {
		return nil, err
	}
	return c.dialer.Dial(ctx, accessToken)
}

func (c *Coordinator) run(ctx context.Context, conn Conn, done chan struct{}) {
	defer close(done)

	for {
		readErr := c.readLoop(conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}

		slog.Warn("realtime connection lost", "error", readErr)
		c.setState(model.ConnectionReconnecting)
		for _, fn := range c.reconnectingCallbacks() {
			fn(readErr)
		}

		next, err := c.reconnect(ctx)
		if ctx.Err() != nil {
			if next != nil {
				_ = next.Close()
			}
			return
		}
		if err != nil {
			c.giveUp(err)
			return
		}

		c.mu.Lock()
		if ctx.Err() != nil {
			c.mu.Unlock()
			_ = next.Close()
			return
		}
		c.conn = next
		c.mu.Unlock()

		conn = next
		c.setState(model.ConnectionHealthy)
		slog.Info("realtime reconnected")
		for _, fn := range c.reconnectedCallbacks() {
			fn()
		}
	}
}

// reconnect retries with a fixed delay before every attempt.
func (c *Coordinator) reconnect(ctx context.Context) (Conn, error) {
	limiter := rate.NewLimiter(rate.Every(c.opts.ReconnectDelay), 1)
	limiter.Allow()

	var lastErr error
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}

		conn, err := c.dial(ctx)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		slog.Debug("realtime reconnect attempt failed", "attempt", attempt, "error", err)

		if apierror.IsKind(err, apierror.KindUnauthenticated) {
			break
		}
	}

	return nil, fmt.Errorf("%w: %w", model.ErrReconnectGaveUp, lastErr)
}

func (c *Coordinator) giveUp(err error) {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.cancel, c.conn, c.done = nil, nil, nil
	callbacks := append([]func(error){}, c.onClosed...)
	c.mu.Unlock()

	c.setState(model.ConnectionDisconnected)
	slog.Error("realtime disconnected", "error", err)
	for _, fn := range callbacks {
		fn(err)
	}
}

func (c *Coordinator) readLoop(conn Conn) error {
	for {
		frame, err := conn.ReadFrame()
		if err != nil {
			return err
		}

		switch frame.Type {
		case model.FrameInvocation:
			c.dispatch(frame)
		case model.FrameClose:
			if frame.Error != "" {
				return fmt.Errorf("%w: %s", model.ErrConnectionClosed, frame.Error)
			}
			return model.ErrConnectionClosed
		}
	}
}

func (c *Coordinator) dispatch(frame model.Frame) {
	c.mu.RLock()
	handler, ok := c.handlers[frame.Target]
	c.mu.RUnlock()

	if !ok {
		slog.Debug("no handler for realtime event", "target", frame.Target)
		return
	}
	handler(frame.Arguments)
}

func (c *Coordinator) reconnectingCallbacks() []func(error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]func(error){}, c.onReconnecting...)
}

func (c *Coordinator) reconnectedCallbacks() []func() {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]func(){}, c.onReconnected...)
}

func (c *Coordinator) setState(state model.ConnectionState) {
	c.mu.Lock()
	if c.state == state {
		c.mu.Unlock()
		return
	}
	c.state = state
	c.mu.Unlock()

	slog.Debug("realtime state", "state", state.String())
	if c.bus != nil {
		c.bus.Publish(event.New(event.TypeConnectionState, state))
	}
}
