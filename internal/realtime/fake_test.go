package realtime

import (
	"context"
	"errors"
	"sync"

	"medrunner-portal/internal/model"
)

var errNetworkLost = errors.New("network lost")

type fakeConn struct {
	frames    chan model.Frame
	closeOnce sync.Once
	closed    chan struct{}
	failWith  chan error
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames:   make(chan model.Frame, 16),
		closed:   make(chan struct{}),
		failWith: make(chan error, 1),
	}
}

func (c *fakeConn) ReadFrame() (model.Frame, error) {
	select {
	case frame := <-c.frames:
		return frame, nil
	case err := <-c.failWith:
		return model.Frame{}, err
	case <-c.closed:
		return model.Frame{}, model.ErrConnectionClosed
	}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// fakeDialer hands out connections in order. A nil error slot dials
// successfully.
type fakeDialer struct {
	mu     sync.Mutex
	errs   []error
	conns  []*fakeConn
	tokens []string
}

func (d *fakeDialer) Dial(_ context.Context, accessToken string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.tokens = append(d.tokens, accessToken)
	if len(d.errs) > 0 {
		err := d.errs[0]
		d.errs = d.errs[1:]
		if err != nil {
			return nil, err
		}
	}

	conn := newFakeConn()
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) failNext(errs ...error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errs = append(d.errs, errs...)
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.tokens)
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.conns) {
		return nil
	}
	return d.conns[i]
}

func staticToken(token string) TokenFunc {
	return func(context.Context) (string, error) { return token, nil }
}
