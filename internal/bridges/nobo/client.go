package nobo

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// closeOnce wraps a channel with sync.Once to prevent double-close panics.
type closeOnce struct {
	ch   chan struct{}
	once sync.Once
}

func newCloseOnce() *closeOnce {
	return &closeOnce{ch: make(chan struct{})}
}

func (c *closeOnce) Close() {
	c.once.Do(func() { close(c.ch) })
}

func (c *closeOnce) Done() <-chan struct{} {
	return c.ch
}

// Default timeouts and intervals for hub communication.
const (
	// defaultConnectTimeout bounds dial plus handshake.
	defaultConnectTimeout = 10 * time.Second

	// defaultReadTimeout is how long the hub may stay silent. Keepalives
	// are echoed, so silence past this means the connection is dead.
	defaultReadTimeout = 45 * time.Second

	// defaultWriteTimeout is the timeout for write operations.
	defaultWriteTimeout = 5 * time.Second

	// defaultKeepAliveInterval must stay below the hub's 30 s idle limit.
	defaultKeepAliveInterval = 14 * time.Second

	// defaultReconnectInterval is the initial delay between reconnection attempts.
	defaultReconnectInterval = 5 * time.Second

	// maxReconnectInterval is the maximum delay between reconnection attempts.
	maxReconnectInterval = 2 * time.Minute

	// lineTerminator ends every line in both directions.
	lineTerminator = '\r'

	// callbackQueueSize must hold a full G00 dump of a large installation.
	callbackQueueSize = 512
)

// ClientConfig holds hub connection configuration.
type ClientConfig struct {
	// Address is the hub host, optionally with port. Port defaults to 27779.
	Address string

	// Serial is the full 12 digit hub serial sent in HELLO.
	Serial SerialNumber

	// ConnectTimeout bounds dial and handshake. Default: 10 seconds.
	ConnectTimeout time.Duration

	// ReadTimeout is the longest allowed silence. Default: 45 seconds.
	ReadTimeout time.Duration

	// KeepAliveInterval is how often KEEPALIVE is sent. Default: 14 seconds.
	KeepAliveInterval time.Duration

	// ReconnectInterval is the initial reconnect delay. Default: 5 seconds.
	ReconnectInterval time.Duration
}

// ClientStats holds operational statistics.
type ClientStats struct {
	LinesTx         uint64
	LinesRx         uint64
	LinesDropped    uint64 // Lines dropped due to full callback queue
	ErrorsTotal     uint64
	ReconnectsTotal uint64 // Successful reconnections
	LastActivity    time.Time
	Connected       bool
	Reconnecting    bool // True if currently attempting to reconnect
}

// Connector interface for testability.
// This allows mocking the hub client in tests.
type Connector interface {
	Send(ctx context.Context, line string) error
	SetOnLine(callback func(string))
	IsConnected() bool
	Stats() ClientStats
	Close() error
}

// Ensure Client implements Connector.
var _ Connector = (*Client)(nil)

// Client is a TCP connection to a Nobø Ecohub.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Line callbacks run on a single worker goroutine, in arrival order.
//
// Auto-Reconnection:
//   - When the connection is lost, the client automatically attempts to reconnect.
//   - Uses exponential backoff starting at ReconnectInterval up to maxReconnectInterval (2min).
//   - After every (re)connect the full state is requested with G00.
//   - Reconnection stops only when Close() is called.
type Client struct {
	cfg     ClientConfig
	address string

	// Connection state
	connMu    sync.RWMutex
	conn      net.Conn
	reader    *bufio.Reader
	connected bool

	// writeMu serialises deadline plus write, so one writer's deadline
	// cannot cut another's write short.
	writeMu sync.Mutex

	// Reconnection state
	reconnecting   atomic.Bool
	reconnectCount atomic.Int32

	// Line handler callback
	onLine     func(string)
	callbackMu sync.RWMutex

	callbackQueue chan string

	// Shutdown coordination
	done *closeOnce
	wg   sync.WaitGroup

	// Logger (optional)
	logger   Logger
	loggerMu sync.RWMutex

	// Statistics
	linesTx         atomic.Uint64
	linesRx         atomic.Uint64
	linesDropped    atomic.Uint64
	errorsTotal     atomic.Uint64
	reconnectsTotal atomic.Uint64
	lastActivity    atomic.Int64 // Unix timestamp
}

// Connect dials the hub, performs the HELLO/HANDSHAKE exchange and asks
// for the full state with G00.
//
// Lines received before SetOnLine is called are queued, so the G00 reply
// is not lost when the callback is installed right after Connect.
//
// Parameters:
//   - ctx: Context for cancellation (used for initial connection)
//   - cfg: Connection configuration
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: ErrConnectionFailed or ErrHandshakeFailed
func Connect(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.KeepAliveInterval == 0 {
		cfg.KeepAliveInterval = defaultKeepAliveInterval
	}
	if cfg.ReconnectInterval == 0 {
		cfg.ReconnectInterval = defaultReconnectInterval
	}
	if !cfg.Serial.IsWellFormed() {
		return nil, fmt.Errorf("%w: serial %q is not 12 digits", ErrConnectionFailed, cfg.Serial)
	}

	address, err := hubAddress(cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	c := &Client{
		cfg:           cfg,
		address:       address,
		done:          newCloseOnce(),
		callbackQueue: make(chan string, callbackQueueSize),
	}

	conn, err := c.dial(connectCtx)
	if err != nil {
		return nil, err
	}
	if err := c.establishConnection(connectCtx, conn); err != nil {
		return nil, err
	}

	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()
	c.lastActivity.Store(time.Now().Unix())

	c.wg.Add(3) //nolint:mnd // receive loop, keepalive loop, callback worker
	go c.callbackWorker()
	go c.receiveLoop()
	go c.keepAliveLoop()

	return c, nil
}

// hubAddress appends the default port when addr has none.
func hubAddress(addr string) (string, error) {
	if addr == "" {
		return "", errors.New("hub address is empty")
	}
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr, nil
	}
	return net.JoinHostPort(addr, strconv.Itoa(DefaultPort)), nil
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", c.address)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrConnectionFailed, c.address, err)
	}
	return conn, nil
}

// establishConnection runs the handshake on conn, installs it and sends G00.
func (c *Client) establishConnection(ctx context.Context, conn net.Conn) error {
	reader := bufio.NewReader(conn)
	if err := c.handshake(ctx, conn, reader); err != nil {
		conn.Close()
		return err
	}

	c.connMu.Lock()
	c.conn = conn
	c.reader = reader
	c.connMu.Unlock()

	if err := c.writeLine(ctx, conn, PrefixGetAll); err != nil {
		conn.Close()
		c.connMu.Lock()
		c.conn, c.reader = nil, nil
		c.connMu.Unlock()
		return fmt.Errorf("%w: requesting state: %w", ErrConnectionFailed, err)
	}
	return nil
}

// handshake performs:
//
//	→ HELLO <version> <serial> <yyyyMMddHHmmss>   ← HELLO <version>
//	→ HANDSHAKE                                    ← HANDSHAKE
//
// A REJECT line from the hub (wrong serial, unsupported version) fails
// the handshake.
func (c *Client) handshake(ctx context.Context, conn net.Conn, reader *bufio.Reader) error {
	hello := strings.Join([]string{
		PrefixHello, ProtocolVersion, c.cfg.Serial.String(), time.Now().Format(helloTimeLayout),
	}, fieldSeparator)

	steps := []struct{ send, expect string }{
		{send: hello, expect: PrefixHello},
		{send: PrefixHandshake, expect: PrefixHandshake},
	}
	for _, step := range steps {
		if err := c.writeLine(ctx, conn, step.send); err != nil {
			return fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
		}

		deadline := time.Now().Add(c.cfg.ConnectTimeout)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		if err := conn.SetReadDeadline(deadline); err != nil {
			return fmt.Errorf("%w: set read deadline: %w", ErrHandshakeFailed, err)
		}

		reply, err := readLine(reader)
		if err != nil {
			return fmt.Errorf("%w: waiting for %s: %w", ErrHandshakeFailed, step.expect, err)
		}
		if LinePrefix(reply) != step.expect {
			return fmt.Errorf("%w: hub answered %q to %s", ErrHandshakeFailed, reply, step.expect)
		}
	}
	return nil
}

// readLine reads one \r terminated line, tolerating \n framing as well.
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString(lineTerminator)
	if err != nil {
		return "", err
	}
	return strings.Trim(line, "\r\n"), nil
}

// writeLine writes one line followed by the terminator.
func (c *Client) writeLine(ctx context.Context, conn net.Conn, line string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline := time.Now().Add(defaultWriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if _, err := conn.Write([]byte(line + string(lineTerminator))); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// receiveLoop reads lines from the hub until Close.
// On connection loss, it attempts reconnection with exponential backoff.
func (c *Client) receiveLoop() {
	defer c.wg.Done()

	for {
		if c.isClosed() {
			return
		}

		line, err := c.readNext()
		if err != nil {
			if c.isClosed() {
				return
			}
			c.logError("read failed", err)
			c.errorsTotal.Add(1)
			c.handleDisconnect()
			if !c.reconnect() {
				return
			}
			continue
		}
		if line == "" {
			continue
		}
		c.handleLine(line)
	}
}

// readNext reads the next line from the current connection.
func (c *Client) readNext() (string, error) {
	c.connMu.RLock()
	conn, reader := c.conn, c.reader
	c.connMu.RUnlock()

	if conn == nil {
		return "", ErrNotConnected
	}
	if err := conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout)); err != nil {
		return "", fmt.Errorf("set deadline: %w", err)
	}
	return readLine(reader)
}

// handleLine queues a received line for the callback worker.
func (c *Client) handleLine(line string) {
	c.linesRx.Add(1)
	c.lastActivity.Store(time.Now().Unix())

	select {
	case c.callbackQueue <- line:
	default:
		c.logError("callback queue full, dropping line", fmt.Errorf("prefix %s", LinePrefix(line)))
		c.linesDropped.Add(1)
		c.errorsTotal.Add(1)
	}
}

// callbackWorker delivers queued lines to the callback in order.
func (c *Client) callbackWorker() {
	defer c.wg.Done()

	for {
		select {
		case <-c.done.Done():
			c.drainCallbackQueue()
			return
		case line := <-c.callbackQueue:
			c.deliver(line)
		}
	}
}

func (c *Client) deliver(line string) {
	// Wait for a callback instead of dropping lines that arrive first.
	for {
		c.callbackMu.RLock()
		callback := c.onLine
		c.callbackMu.RUnlock()

		if callback != nil {
			c.invoke(callback, line)
			return
		}
		select {
		case <-c.done.Done():
			return
		case <-time.After(10 * time.Millisecond): //nolint:mnd // callback poll
		}
	}
}

func (c *Client) invoke(callback func(string), line string) {
	defer func() {
		if r := recover(); r != nil {
			c.logError("line callback panic", fmt.Errorf("%v", r))
		}
	}()
	callback(line)
}

// keepAliveLoop sends KEEPALIVE so the hub does not drop the session.
func (c *Client) keepAliveLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done.Done():
			return
		case <-ticker.C:
			if !c.IsConnected() {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), defaultWriteTimeout)
			if err := c.Send(ctx, PrefixKeepAlive); err != nil {
				c.logError("keepalive failed", err)
			}
			cancel()
		}
	}
}

// handleDisconnect marks the connection lost.
func (c *Client) handleDisconnect() {
	c.connMu.Lock()
	wasConnected := c.connected
	c.connected = false
	c.connMu.Unlock()

	if wasConnected {
		c.logInfo("connection lost, will attempt reconnection")
	}
}

// reconnect re-establishes the connection with exponential backoff.
// Returns true if reconnection succeeded, false if shutdown was signalled.
func (c *Client) reconnect() bool {
	if !c.reconnecting.CompareAndSwap(false, true) {
		return c.waitForReconnection()
	}
	defer c.reconnecting.Store(false)

	backoff := c.cfg.ReconnectInterval

	for {
		if c.isClosed() {
			return false
		}

		attempt := c.reconnectCount.Add(1)
		c.logInfo("attempting reconnection", "attempt", attempt, "backoff", backoff.String())

		c.closeOldConnection()

		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ConnectTimeout)
		conn, err := c.dial(ctx)
		if err == nil {
			err = c.establishConnection(ctx, conn)
		}
		cancel()

		if err != nil {
			backoff = c.handleReconnectFailure(err, backoff)
			if backoff == 0 {
				return false
			}
			continue
		}

		c.finalizeReconnection()
		return true
	}
}

// waitForReconnection waits for another goroutine to complete reconnection.
func (c *Client) waitForReconnection() bool {
	for c.reconnecting.Load() && !c.isClosed() {
		time.Sleep(100 * time.Millisecond) //nolint:mnd // reconnect poll
	}
	return !c.isClosed() && c.IsConnected()
}

// closeOldConnection closes the existing connection if any.
func (c *Client) closeOldConnection() {
	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn, c.reader = nil, nil
	}
	c.connMu.Unlock()
}

// handleReconnectFailure waits out the backoff.
// Returns the new backoff duration, or 0 if shutdown was signalled.
func (c *Client) handleReconnectFailure(err error, backoff time.Duration) time.Duration {
	c.logError("reconnect failed", err)
	c.errorsTotal.Add(1)

	select {
	case <-c.done.Done():
		return 0
	case <-time.After(backoff):
	}

	next := time.Duration(float64(backoff) * 1.5) //nolint:mnd // backoff factor
	if next > maxReconnectInterval {
		next = maxReconnectInterval
	}
	return next
}

// finalizeReconnection marks the connection as established and updates stats.
func (c *Client) finalizeReconnection() {
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	c.reconnectCount.Store(0)
	c.reconnectsTotal.Add(1)
	c.lastActivity.Store(time.Now().Unix())

	c.logInfo("reconnection successful", "total_reconnects", c.reconnectsTotal.Load())
}

// drainCallbackQueue discards queued lines during shutdown.
func (c *Client) drainCallbackQueue() {
	for {
		select {
		case <-c.callbackQueue:
		default:
			return
		}
	}
}

func (c *Client) isClosed() bool {
	select {
	case <-c.done.Done():
		return true
	default:
		return false
	}
}

// Close stops all goroutines and closes the connection.
// Safe to call multiple times.
func (c *Client) Close() error {
	c.done.Close()

	c.connMu.Lock()
	c.connected = false
	if c.conn != nil {
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()

	// A reconnect racing with Close may have installed a new connection.
	c.closeOldConnection()

	c.logInfo("connection closed")
	return nil
}

// Send writes one command line to the hub.
//
// Parameters:
//   - ctx: Context for cancellation and write deadline
//   - line: Complete line without terminator, e.g. "U00 1 Stue 1 22 16 1 -1"
//
// Returns:
//   - error: ErrNotConnected, or the write error
func (c *Client) Send(ctx context.Context, line string) error {
	c.connMu.RLock()
	conn, connected := c.conn, c.connected
	c.connMu.RUnlock()

	if !connected || conn == nil {
		return ErrNotConnected
	}

	if err := c.writeLine(ctx, conn, line); err != nil {
		c.errorsTotal.Add(1)
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c.linesTx.Add(1)
	c.lastActivity.Store(time.Now().Unix())
	return nil
}

// SetOnLine sets the callback for received lines.
// Panics in the callback are recovered and logged.
func (c *Client) SetOnLine(callback func(string)) {
	c.callbackMu.Lock()
	c.onLine = callback
	c.callbackMu.Unlock()
}

// SetLogger sets the logger for this client.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// IsConnected returns true if the hub session is up.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected
}

// Stats returns current operational statistics.
func (c *Client) Stats() ClientStats {
	return ClientStats{
		LinesTx:         c.linesTx.Load(),
		LinesRx:         c.linesRx.Load(),
		LinesDropped:    c.linesDropped.Load(),
		ErrorsTotal:     c.errorsTotal.Load(),
		ReconnectsTotal: c.reconnectsTotal.Load(),
		LastActivity:    time.Unix(c.lastActivity.Load(), 0),
		Connected:       c.IsConnected(),
		Reconnecting:    c.reconnecting.Load(),
	}
}

// HealthCheck reports ErrNotConnected while the session is down.
func (c *Client) HealthCheck(_ context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// logInfo logs an info message if logger is set.
func (c *Client) logInfo(msg string, keysAndValues ...any) {
	c.loggerMu.RLock()
	logger := c.logger
	c.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (c *Client) logError(msg string, err error) {
	c.loggerMu.RLock()
	logger := c.logger
	c.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
