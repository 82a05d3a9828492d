package fieldbus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nvqhuy/homewatt/internal/adapter"
	"github.com/nvqhuy/homewatt/internal/topology"
)

// Reconnect backoff bounds.
const (
	reconnectInitialDelay = 1 * time.Second
	reconnectMaxDelay     = 30 * time.Second
)

// Config holds fieldbus client settings.
type Config struct {
	// Host is the Modbus TCP gateway address.
	Host string

	// Port is the gateway port, conventionally 502.
	Port int

	// TransactionTimeout bounds a single request/response exchange.
	TransactionTimeout time.Duration

	// Logger receives connection lifecycle and error events.
	// Defaults to a discard-free stderr logger when nil.
	Logger *slog.Logger
}

// Client is a Modbus TCP master for the room controller boards.
//
// One transaction is in flight at a time; concurrent callers serialize
// on an internal mutex. A lost connection triggers a background
// reconnect loop with exponential backoff, and operations fail with
// adapter.ErrDisconnected until it succeeds.
type Client struct {
	cfg    Config
	logger *slog.Logger
	refs   []topology.DeviceRef

	txMu sync.Mutex
	conn net.Conn
	txID uint16

	stateMu   sync.RWMutex
	connected bool
	closed    bool

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup

	// Stats counters, updated atomically.
	transactions atomic.Uint64
	txErrors     atomic.Uint64
	reconnects   atomic.Uint64
}

// Stats is a snapshot of client counters.
type Stats struct {
	Transactions uint64
	Errors       uint64
	Reconnects   uint64
}

// New creates a fieldbus client for the given device population.
// Call Connect before issuing transactions.
func New(cfg Config, refs []topology.DeviceRef) *Client {
	if cfg.TransactionTimeout <= 0 {
		cfg.TransactionTimeout = 2 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Client{
		cfg:    cfg,
		logger: logger,
		refs:   refs,
		done:   make(chan struct{}),
	}
}

// Connect dials the gateway. On failure the caller decides whether to
// fall back to another backend; no background reconnect is started
// until a first connection has succeeded.
func (c *Client) Connect(ctx context.Context) error {
	c.stateMu.Lock()
	if c.closed {
		c.stateMu.Unlock()
		return adapter.ErrNotConnected
	}
	c.stateMu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}

	c.txMu.Lock()
	c.conn = conn
	c.txMu.Unlock()

	c.setConnected(true)
	c.logger.Info("fieldbus connected", "addr", c.addr())
	return nil
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.addr())
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", adapter.ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: dial %s: %w", adapter.ErrDisconnected, c.addr(), err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetNoDelay(true)
		tc.SetKeepAlive(true)
		tc.SetKeepAlivePeriod(30 * time.Second)
	}
	return conn, nil
}

func (c *Client) addr() string {
	return net.JoinHostPort(c.cfg.Host, fmt.Sprintf("%d", c.cfg.Port))
}

// ReadState reads one coil via FC1.
func (c *Client) ReadState(ctx context.Context, ref topology.DeviceRef) (bool, error) {
	resp, err := c.transact(ctx, request{
		slave: ref.SlaveAddr,
		pdu:   readCoilsPDU(ref.Register, 1),
	})
	if err != nil {
		return false, err
	}
	coils, err := parseReadCoils(resp, 1)
	if err != nil {
		return false, fmt.Errorf("%w: %w", adapter.ErrRejected, err)
	}
	return coils[0], nil
}

// WriteState commands one coil via FC5 and verifies the echo.
func (c *Client) WriteState(ctx context.Context, ref topology.DeviceRef, on bool) error {
	resp, err := c.transact(ctx, request{
		slave: ref.SlaveAddr,
		pdu:   writeSingleCoilPDU(ref.Register, on),
	})
	if err != nil {
		return err
	}
	if err := verifyWriteSingleCoil(resp, ref.Register, on); err != nil {
		return fmt.Errorf("%w: %w", adapter.ErrRejected, err)
	}
	return nil
}

// PollAll reads every device with one FC1 transaction per slave board.
// A slave that fails mid-poll does not abort the pass; its devices are
// skipped and the first error is returned alongside the partial result.
func (c *Client) PollAll(ctx context.Context) ([]adapter.Event, error) {
	bySlave := make(map[uint8][]topology.DeviceRef)
	for _, ref := range c.refs {
		bySlave[ref.SlaveAddr] = append(bySlave[ref.SlaveAddr], ref)
	}
	slaves := make([]uint8, 0, len(bySlave))
	for slave := range bySlave {
		slaves = append(slaves, slave)
	}
	sort.Slice(slaves, func(i, j int) bool { return slaves[i] < slaves[j] })

	var events []adapter.Event
	var firstErr error

	for _, slave := range slaves {
		refs := bySlave[slave]
		count := uint16(0)
		for _, ref := range refs {
			if ref.Register+1 > count {
				count = ref.Register + 1
			}
		}

		resp, err := c.transact(ctx, request{
			slave: slave,
			pdu:   readCoilsPDU(0, count),
		})
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		coils, err := parseReadCoils(resp, int(count))
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("%w: %w", adapter.ErrRejected, err)
			}
			continue
		}

		at := time.Now()
		for _, ref := range refs {
			events = append(events, adapter.Event{
				Ref:    ref,
				On:     coils[ref.Register],
				Origin: adapter.OriginFieldbus,
				At:     at,
			})
		}
	}

	return events, firstErr
}

// transact sends one request and reads its response under the
// transaction mutex, bounded by the context deadline and the
// configured transaction timeout.
func (c *Client) transact(ctx context.Context, req request) (response, error) {
	c.txMu.Lock()
	defer c.txMu.Unlock()

	if c.conn == nil || !c.IsConnected() {
		return response{}, adapter.ErrDisconnected
	}

	c.transactions.Add(1)

	deadline := time.Now().Add(c.cfg.TransactionTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return response{}, c.failTransaction(fmt.Errorf("%w: %w", adapter.ErrDisconnected, err))
	}

	c.txID++
	txID := c.txID

	if _, err := c.conn.Write(encodeADU(txID, req)); err != nil {
		return response{}, c.failTransaction(wrapIOErr(err))
	}

	header := make([]byte, mbapHeaderSize)
	if _, err := io.ReadFull(c.conn, header); err != nil {
		return response{}, c.failTransaction(wrapIOErr(err))
	}
	gotTx, remaining, err := parseMBAP(header)
	if err != nil {
		return response{}, c.failTransaction(err)
	}
	if gotTx != txID {
		return response{}, c.failTransaction(fmt.Errorf("%w: got %d want %d", errTxMismatch, gotTx, txID))
	}

	pdu := make([]byte, remaining)
	if _, err := io.ReadFull(c.conn, pdu); err != nil {
		return response{}, c.failTransaction(wrapIOErr(err))
	}

	unit := header[6]
	resp, err := parsePDU(unit, pdu)
	if err != nil {
		c.txErrors.Add(1)
		if errors.Is(err, errException) {
			return response{}, fmt.Errorf("%w: %w", adapter.ErrRejected, err)
		}
		return response{}, err
	}
	return resp, nil
}

// wrapIOErr maps a socket error to the shared adapter sentinels.
func wrapIOErr(err error) error {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return fmt.Errorf("%w: %w", adapter.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", adapter.ErrDisconnected, err)
}

// failTransaction records a failed exchange, tears the socket down,
// and kicks off the background reconnect loop. Called with txMu held.
func (c *Client) failTransaction(err error) error {
	c.txErrors.Add(1)

	// A timeout leaves the stream desynchronized: a late response for
	// the abandoned transaction would be read as the reply to the next
	// one. Drop the connection either way.
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	wasConnected := c.IsConnected()
	c.setConnected(false)

	if wasConnected {
		c.logger.Warn("fieldbus connection lost", "error", err)
		c.wg.Add(1)
		go c.reconnectLoop()
	}
	return err
}

// reconnectLoop redials with exponential backoff until it succeeds or
// the client is closed.
func (c *Client) reconnectLoop() {
	defer c.wg.Done()

	delay := reconnectInitialDelay
	for {
		select {
		case <-c.done:
			return
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.TransactionTimeout)
		conn, err := c.dial(ctx)
		cancel()
		if err != nil {
			c.logger.Debug("fieldbus reconnect failed", "error", err, "retry_in", delay)
			delay *= 2
			if delay > reconnectMaxDelay {
				delay = reconnectMaxDelay
			}
			continue
		}

		c.txMu.Lock()
		c.conn = conn
		c.txMu.Unlock()
		c.setConnected(true)
		c.reconnects.Add(1)
		c.logger.Info("fieldbus reconnected", "addr", c.addr())
		return
	}
}

// Connected reports whether the gateway is currently reachable.
func (c *Client) Connected() bool {
	return c.IsConnected()
}

// IsConnected reports the connection flag without touching the socket.
func (c *Client) IsConnected() bool {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.connected
}

func (c *Client) setConnected(v bool) {
	c.stateMu.Lock()
	c.connected = v
	c.stateMu.Unlock()
}

// Stats returns a snapshot of transaction counters.
func (c *Client) Stats() Stats {
	return Stats{
		Transactions: c.transactions.Load(),
		Errors:       c.txErrors.Load(),
		Reconnects:   c.reconnects.Load(),
	}
}

// Close shuts the connection down and stops any reconnect attempt.
// Safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.stateMu.Lock()
		c.closed = true
		c.connected = false
		c.stateMu.Unlock()

		close(c.done)

		c.txMu.Lock()
		if c.conn != nil {
			c.conn.Close()
			c.conn = nil
		}
		c.txMu.Unlock()

		c.wg.Wait()
		c.logger.Info("fieldbus client closed")
	})
	return nil
}
