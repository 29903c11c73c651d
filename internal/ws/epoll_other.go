//go:build !linux

package ws

import (
	"net"
	"sync"
)

// pollBatchSize bounds the ready-channel buffer, mirroring the Linux poller's
// wait batch.
const pollBatchSize = 256

// Poller is the non-Linux fallback: a goroutine per connection blocks on a
// one-byte read and reports readiness over a channel. It exists so the relay
// can be developed and tested on macOS/Windows; production runs on Linux with
// the real epoll implementation.
type Poller struct {
	mu    sync.RWMutex
	conns map[net.Conn]struct{}
	ready chan net.Conn
	done  chan struct{}
}

// NewPoller creates the goroutine-based fallback poller.
func NewPoller() (*Poller, error) {
	return &Poller{
		conns: make(map[net.Conn]struct{}),
		ready: make(chan net.Conn, pollBatchSize),
		done:  make(chan struct{}),
	}, nil
}

// Add registers the connection and starts its monitor goroutine.
func (p *Poller) Add(conn net.Conn) error {
	p.mu.Lock()
	p.conns[conn] = struct{}{}
	p.mu.Unlock()

	go p.monitor(conn)
	return nil
}

// monitor blocks on a one-byte read to detect pending data. The consumed byte
// is lost, which the fallback read path tolerates; the Linux poller consumes
// nothing. A read error still signals readiness once so the server's read
// path observes the closure.
func (p *Poller) monitor(conn net.Conn) {
	buf := make([]byte, 1)
	for {
		_, err := conn.Read(buf)
		if err != nil {
			select {
			case p.ready <- conn:
			case <-p.done:
			}
			return
		}

		select {
		case p.ready <- conn:
		case <-p.done:
			return
		}
	}
}

// Remove unregisters the connection. Its monitor goroutine exits on the next
// read error after the caller closes the connection.
func (p *Poller) Remove(conn net.Conn) error {
	p.mu.Lock()
	delete(p.conns, conn)
	p.mu.Unlock()
	return nil
}

// Wait blocks until at least one connection is ready, then drains whatever
// else is already queued without blocking.
func (p *Poller) Wait() ([]net.Conn, error) {
	first, ok := <-p.ready
	if !ok {
		return nil, net.ErrClosed
	}

	ready := []net.Conn{first}
	for {
		select {
		case conn := <-p.ready:
			ready = append(ready, conn)
		default:
			return ready, nil
		}
	}
}

// Close stops all monitor goroutines.
func (p *Poller) Close() error {
	close(p.done)
	p.mu.Lock()
	p.conns = nil
	p.mu.Unlock()
	return nil
}

// socketFD has no meaning without epoll; connections are tracked by value.
func socketFD(conn net.Conn) int {
	return -1
}
