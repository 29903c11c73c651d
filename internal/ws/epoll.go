//go:build linux

package ws

import (
	"net"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// pollBatchSize caps how many ready descriptors one Wait call returns. Larger
// batches amortize the syscall; the worker pool bounds concurrency downstream.
const pollBatchSize = 256

// Poller multiplexes read readiness over all WebSocket connections using
// Linux epoll. One kernel interest list replaces a read goroutine per
// connection, which is what lets a single relay instance hold tens of
// thousands of mostly-idle sockets.
type Poller struct {
	epfd  int // epoll file descriptor
	mu    sync.RWMutex
	conns map[int]net.Conn // registered fd -> net.Conn

	events []unix.EpollEvent // reusable buffer for EpollWait
}

// NewPoller creates an epoll instance via epoll_create1.
func NewPoller() (*Poller, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, err
	}
	return &Poller{
		epfd:   epfd,
		conns:  make(map[int]net.Conn),
		events: make([]unix.EpollEvent, pollBatchSize),
	}, nil
}

// Add puts the connection's descriptor on the epoll interest list. EPOLLRDHUP
// is requested alongside EPOLLIN so half-closed peers surface as readiness and
// get cleaned up by the read path instead of lingering until heartbeat.
func (p *Poller) Add(conn net.Conn) error {
	fd := socketFD(conn)
	err := unix.EpollCtl(p.epfd, syscall.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLRDHUP | unix.EPOLLHUP,
		Fd:     int32(fd),
	})
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.conns[fd] = conn
	p.mu.Unlock()
	return nil
}

// Remove takes the connection's descriptor off the interest list and drops it
// from the fd map.
func (p *Poller) Remove(conn net.Conn) error {
	fd := socketFD(conn)
	err := unix.EpollCtl(p.epfd, syscall.EPOLL_CTL_DEL, fd, nil)

	p.mu.Lock()
	delete(p.conns, fd)
	p.mu.Unlock()
	return err
}

// Wait blocks until at least one registered connection is readable and
// returns the corresponding net.Conns. Descriptors removed between the epoll
// wakeup and the map lookup are skipped.
func (p *Poller) Wait() ([]net.Conn, error) {
	n, err := unix.EpollWait(p.epfd, p.events, -1)
	if err != nil {
		return nil, err
	}

	p.mu.RLock()
	ready := make([]net.Conn, 0, n)
	for i := 0; i < n; i++ {
		if conn, ok := p.conns[int(p.events[i].Fd)]; ok {
			ready = append(ready, conn)
		}
	}
	p.mu.RUnlock()
	return ready, nil
}

// Close releases the epoll descriptor.
func (p *Poller) Close() error {
	p.mu.Lock()
	p.conns = nil
	p.mu.Unlock()
	return unix.Close(p.epfd)
}

// socketFD extracts the file descriptor from a net.Conn via SyscallConn.
// Unlike File(), this does not dup the descriptor, so the fd registered with
// epoll stays the one the kernel reports readiness for.
func socketFD(conn net.Conn) int {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return -1
	}

	raw, err := sc.SyscallConn()
	if err != nil {
		return -1
	}

	fd := -1
	_ = raw.Control(func(sfd uintptr) {
		fd = int(sfd)
	})
	return fd
}
