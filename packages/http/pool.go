package http

import (
	"context"
	"net"
	"sync"
)

// connPool bounds concurrent connections. Acquire blocks when every slot is
// taken; released slots are handed to waiters in arrival order, otherwise
// they go on a stack so the most recently released slot is reused first.
type connPool struct {
	mu      sync.Mutex
	size    int
	free    []int
	waiters []chan int
}

func newConnPool(size int) *connPool {
	p := &connPool{size: size, free: make([]int, 0, size)}
	for i := size - 1; i >= 0; i-- {
		p.free = append(p.free, i)
	}
	return p
}

func (p *connPool) Acquire(ctx context.Context) (int, error) {
	p.mu.Lock()
	if n := len(p.free); n > 0 {
		slot := p.free[n-1]
		p.free = p.free[:n-1]
		p.mu.Unlock()
		return slot, nil
	}
	ch := make(chan int, 1)
	p.waiters = append(p.waiters, ch)
	p.mu.Unlock()

	select {
	case slot := <-ch:
		return slot, nil
	case <-ctx.Done():
		p.mu.Lock()
		for i, w := range p.waiters {
			if w == ch {
				p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
				p.mu.Unlock()
				return -1, ctx.Err()
			}
		}
		p.mu.Unlock()
		// a slot was handed over concurrently
		p.Release(<-ch)
		return -1, ctx.Err()
	}
}

func (p *connPool) Release(slot int) {
	p.mu.Lock()
	if len(p.waiters) > 0 {
		w := p.waiters[0]
		p.waiters = p.waiters[1:]
		p.mu.Unlock()
		w <- slot
		return
	}
	p.free = append(p.free, slot)
	p.mu.Unlock()
}

// InUse returns the number of slots currently held.
func (p *connPool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size - len(p.free)
}

type pooledConn struct {
	net.Conn
	once    sync.Once
	release func()
}

func (c *pooledConn) Close() error {
	err := c.Conn.Close()
	c.once.Do(c.release)
	return err
}

type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// dial wraps a dialer so every connection holds a pool slot until closed.
func (p *connPool) dial(next dialFunc) dialFunc {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		slot, err := p.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		conn, err := next(ctx, network, addr)
		if err != nil {
			p.Release(slot)
			return nil, err
		}
		return &pooledConn{Conn: conn, release: func() { p.Release(slot) }}, nil
	}
}
