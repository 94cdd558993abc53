package pool

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oarkflow/smpp-engine/pkg/smpp"
)

// Connection wraps one bound smpp.Client with last-use bookkeeping
// (LastUsed). The pool itself does not evict idle connections and does
// not read PoolConfig.IdleTimeout.
type Connection struct {
	client   *smpp.Client
	lastUsed time.Time
	mu       sync.Mutex
}

// NewConnection wraps an already-connected client for pooling.
func NewConnection(client *smpp.Client) *Connection {
	return &Connection{client: client, lastUsed: time.Now()}
}

// Client returns the underlying SMPP client, marking it as just used.
func (c *Connection) Client() *smpp.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastUsed = time.Now()
	return c.client
}

// LastUsed returns when the connection was last borrowed.
func (c *Connection) LastUsed() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUsed
}

// Close forcibly tears down the underlying session.
func (c *Connection) Close() error {
	return c.client.Close()
}

// IsConnected reports whether the underlying session is still bound.
func (c *Connection) IsConnected() bool {
	return c.client.State().IsBound()
}

// PoolConfig defines the configuration for a connection pool.
type PoolConfig struct {
	MaxConnections int
	IdleTimeout    time.Duration
	ConnectTimeout time.Duration
}

// DefaultPoolConfig returns a default pool configuration.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConnections: 10,
		IdleTimeout:    5 * time.Minute,
		ConnectTimeout: 30 * time.Second,
	}
}

// ConnectionFactory builds and binds a fresh smpp.Client.
type ConnectionFactory func(ctx context.Context) (*smpp.Client, error)

// ConnectionPool bounds the number of concurrently open bound clients
// an embedder holds against one SMSC, grounded on the teacher's
// semaphore-backed pool.
type ConnectionPool struct {
	config    PoolConfig
	factory   ConnectionFactory
	semaphore chan struct{}
	mu        sync.Mutex
	closed    bool
}

// NewConnectionPool constructs a pool drawing new clients from
// factory, capped at config.MaxConnections concurrent checkouts.
func NewConnectionPool(config PoolConfig, factory ConnectionFactory) *ConnectionPool {
	if config.MaxConnections <= 0 {
		config.MaxConnections = 1
	}
	return &ConnectionPool{
		config:    config,
		factory:   factory,
		semaphore: make(chan struct{}, config.MaxConnections),
	}
}

// Get checks out a connection, blocking until a slot is free or ctx is
// cancelled.
func (p *ConnectionPool) Get(ctx context.Context) (*PooledClient, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, errors.New("pool is closed")
	}
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	select {
	case p.semaphore <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	client, err := p.factory(ctx)
	if err != nil {
		<-p.semaphore
		return nil, err
	}

	return &PooledClient{conn: NewConnection(client), pool: p}, nil
}

// put releases a checked-out connection, closing it since bound
// SMPP sessions are not safely reusable across callers.
func (p *ConnectionPool) put(conn *Connection) {
	conn.Close()
	<-p.semaphore
}

// Close closes the pool, refusing further Get calls.
func (p *ConnectionPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.semaphore)
	return nil
}

// Stats reports current pool occupancy.
func (p *ConnectionPool) Stats() PoolStats {
	return PoolStats{
		ActiveConnections: len(p.semaphore),
		IdleConnections:   cap(p.semaphore) - len(p.semaphore),
		TotalConnections:  cap(p.semaphore),
	}
}

// PoolStats represents pool statistics.
type PoolStats struct {
	ActiveConnections int
	IdleConnections   int
	TotalConnections  int
}

// PooledClient wraps a checked-out *smpp.Client, returning its slot to
// the pool on Close.
type PooledClient struct {
	conn *Connection
	pool *ConnectionPool
}

// Client returns the underlying SMPP client.
func (pc *PooledClient) Client() *smpp.Client {
	return pc.conn.Client()
}

// Close releases the connection back to the pool.
func (pc *PooledClient) Close() error {
	err := pc.conn.Client().Close()
	if pc.pool != nil {
		pc.pool.put(pc.conn)
	}
	return err
}
