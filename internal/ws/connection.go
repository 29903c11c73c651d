package ws

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// outboundQueueSize is the per-connection buffer for relay fan-out. When the
// queue is full, new deliveries are dropped: a missed real-time event is
// acceptable, a blocked relay is not.
const outboundQueueSize = 256

// Connection represents a single WebSocket client connection. Outbound relay
// traffic goes through a bounded queue drained by a dedicated writer
// goroutine, so publishers never block on a slow client.
type Connection struct {
	id        string   // connection ID (UUID)
	Conn      net.Conn // underlying TCP connection
	Fd        int      // file descriptor for epoll lookups
	CreatedAt time.Time

	lastPing     int64         // last client activity, unix nanos, atomic
	writeTimeout time.Duration // per-frame write deadline, 0 disables

	mu     sync.Mutex
	userID string // asserted by the client's first identity-bearing join

	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once

	writeMu    sync.Mutex // serializes frames on the wire
	processing int32      // atomic flag: 0 = idle, 1 = being read by handleConn
}

func newConnection(id string, conn net.Conn, fd int, writeTimeout time.Duration) *Connection {
	now := time.Now()
	return &Connection{
		id:           id,
		Conn:         conn,
		Fd:           fd,
		CreatedAt:    now,
		lastPing:     now.UnixNano(),
		writeTimeout: writeTimeout,
		out:          make(chan []byte, outboundQueueSize),
		done:         make(chan struct{}),
	}
}

// ID returns the connection's identifier.
func (c *Connection) ID() string { return c.id }

// touch records client activity. Safe to call from any goroutine; the
// heartbeat sweep reads it concurrently via LastActive.
func (c *Connection) touch() {
	atomic.StoreInt64(&c.lastPing, time.Now().UnixNano())
}

// LastActive returns the time of the most recent activity observed from the
// client (any frame, including ping).
func (c *Connection) LastActive() time.Time {
	return time.Unix(0, atomic.LoadInt64(&c.lastPing))
}

// SetUserID records the user identity asserted on this connection. The first
// assertion wins; later joins with a different id do not rebind it.
func (c *Connection) SetUserID(userID string) {
	c.mu.Lock()
	if c.userID == "" {
		c.userID = userID
	}
	c.mu.Unlock()
}

// UserID returns the user identity asserted on this connection, or "" if the
// client has not issued an identity-bearing join yet.
func (c *Connection) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// Enqueue hands an outbound frame to the writer goroutine without blocking.
// It returns false if the frame was dropped because the queue is full or the
// connection is closed.
func (c *Connection) Enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.out <- data:
		return true
	default:
		return false
	}
}

// writeLoop drains the outbound queue onto the wire. A failed or timed-out
// write marks the connection dead: the loop closes it and exits, and frames
// still queued are discarded, consistent with at-most-once delivery.
func (c *Connection) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.out:
			if err := c.WriteMessage(data); err != nil {
				c.Close()
				return
			}
		}
	}
}

// WriteMessage sends a WebSocket text frame to this connection. The write
// mutex ensures that concurrent goroutines do not interleave frame bytes, and
// the write deadline bounds how long a stalled peer can hold that mutex.
func (c *Connection) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
		defer c.Conn.SetWriteDeadline(time.Time{})
	}
	return wsutil.WriteServerMessage(c.Conn, ws.OpText, data)
}

// WritePing sends a WebSocket protocol-level ping frame (opcode 0x9) on the
// connection, serialized with other outbound frames and bounded by the same
// write deadline.
func (c *Connection) WritePing() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
		defer c.Conn.SetWriteDeadline(time.Time{})
	}
	return ws.WriteFrame(c.Conn, ws.NewPingFrame(nil))
}

// Close stops the writer goroutine and closes the underlying network
// connection. Safe to call more than once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.Conn.Close()
	})
	return err
}

// ConnectionManager is a thread-safe registry that maps connection IDs and
// file descriptors to their respective Connection objects. It supports O(1)
// lookups by both ID and fd.
type ConnectionManager struct {
	mu   sync.RWMutex
	byID map[string]*Connection
	byFd map[int]*Connection
}

// NewConnectionManager creates an empty ConnectionManager ready for use.
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		byID: make(map[string]*Connection),
		byFd: make(map[int]*Connection),
	}
}

// Add registers a new connection in both the ID and fd lookup maps.
func (cm *ConnectionManager) Add(conn *Connection) {
	cm.mu.Lock()
	cm.byID[conn.id] = conn
	cm.byFd[conn.Fd] = conn
	cm.mu.Unlock()
}

// Remove removes a connection by ID, closes the underlying network
// connection, and removes it from both lookup maps. Returns true if the
// connection was found and removed, false if it was already gone.
func (cm *ConnectionManager) Remove(id string) bool {
	cm.mu.Lock()
	conn, ok := cm.byID[id]
	if ok {
		delete(cm.byID, id)
		delete(cm.byFd, conn.Fd)
	}
	cm.mu.Unlock()

	if ok {
		conn.Close()
	}
	return ok
}

// Get returns the connection for the given ID, or nil if not found.
func (cm *ConnectionManager) Get(id string) *Connection {
	cm.mu.RLock()
	conn := cm.byID[id]
	cm.mu.RUnlock()
	return conn
}

// GetByFd returns the connection for the given file descriptor, or nil if
// not found.
func (cm *ConnectionManager) GetByFd(fd int) *Connection {
	cm.mu.RLock()
	conn := cm.byFd[fd]
	cm.mu.RUnlock()
	return conn
}

// GetByConn returns the connection for the given net.Conn by extracting
// its file descriptor. Returns nil if not found.
func (cm *ConnectionManager) GetByConn(c net.Conn) *Connection {
	fd := socketFD(c)
	return cm.GetByFd(fd)
}

// Count returns the current number of active connections.
func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	n := len(cm.byID)
	cm.mu.RUnlock()
	return n
}

// All returns a snapshot of all current connections. The returned slice is
// safe to iterate without holding the lock.
func (cm *ConnectionManager) All() []*Connection {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.byID))
	for _, conn := range cm.byID {
		conns = append(conns, conn)
	}
	cm.mu.RUnlock()
	return conns
}
