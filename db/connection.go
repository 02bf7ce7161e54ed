package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cesardraw2/zeppelin/cfg"
	"github.com/cesardraw2/zeppelin/telemetry"
	"github.com/rs/zerolog/log"
)

// Style is the connection policy of a manager.
type Style int

const (
	// StyleShared keeps one session open across calls
	StyleShared Style = iota
	// StylePerCall opens and closes a connection around every call
	StylePerCall
)

func (s Style) String() string {
	if s == StylePerCall {
		return cfg.ConnectionsPerCall
	}
	return cfg.ConnectionsShared
}

// ParseStyle accepts the `connections` profile values.
func ParseStyle(s string) (Style, error) {
	norm, err := cfg.NormalizeConnections(s)
	if err != nil {
		return StyleShared, err
	}
	if norm == cfg.ConnectionsPerCall {
		return StylePerCall, nil
	}
	return StyleShared, nil
}

// ConnectionConfig is everything needed to open a connection.
type ConnectionConfig struct {
	URL      string
	User     string
	Password string
	Database string
	Driver   string
	MaxRows  int
	Style    Style
}

// ConfigFromProfile converts a configured interpreter profile.
func ConfigFromProfile(ic cfg.InterpreterConfiguration) (ConnectionConfig, error) {
	style, err := ParseStyle(ic.Connections)
	if err != nil {
		return ConnectionConfig{}, err
	}
	return ConnectionConfig{
		URL:      ic.URL,
		User:     ic.User,
		Password: ic.Password,
		Database: ic.Database,
		Driver:   ic.Driver,
		MaxRows:  ic.MaxResult,
		Style:    style,
	}, nil
}

// ManagedConnection is one pinned database session.
type ManagedConnection struct {
	id       uint64
	db       *sql.DB
	conn     *sql.Conn
	openedAt time.Time
	closed   atomic.Bool

	mu      sync.Mutex
	lastErr error
}

// Conn returns the pinned session. Statements run on it share session
// state (temp tables, SET options, open transactions).
func (c *ManagedConnection) Conn() *sql.Conn {
	return c.conn
}

func (c *ManagedConnection) ID() uint64 {
	return c.id
}

func (c *ManagedConnection) OpenedAt() time.Time {
	return c.openedAt
}

func (c *ManagedConnection) IsOpen() bool {
	return !c.closed.Load()
}

// LastError returns the last health check or close failure.
func (c *ManagedConnection) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *ManagedConnection) setErr(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

func (c *ManagedConnection) healthy(ctx context.Context) bool {
	if c.closed.Load() {
		return false
	}
	if err := c.conn.PingContext(ctx); err != nil {
		c.setErr(err)
		return false
	}
	return true
}

// close is best-effort: failures are recorded and logged, never returned.
func (c *ManagedConnection) close() {
	if c.closed.Swap(true) {
		return
	}
	telemetry.ConnectionsOpen.Dec()

	err := errors.Join(c.conn.Close(), c.db.Close())
	if err != nil {
		c.setErr(err)
		telemetry.ConnectionCloseErrorsTotal.Inc()
		log.Warn().Err(err).Uint64("conn_id", c.id).Msg("Failed to close connection")
		return
	}
	log.Debug().Uint64("conn_id", c.id).Dur("age", time.Since(c.openedAt)).Msg("Connection closed")
}

// Manager owns the connection lifecycle for one interpreter.
type Manager struct {
	config  ConnectionConfig
	dialect Dialect

	mu     sync.Mutex
	shared *ManagedConnection

	errMu   sync.Mutex
	lastErr error

	nextID atomic.Uint64
	opens  atomic.Int64
}

// NewManager creates a manager. No connection is opened until Acquire.
func NewManager(config ConnectionConfig) *Manager {
	return &Manager{
		config:  config,
		dialect: DialectFor(config.Driver),
	}
}

func (m *Manager) Style() Style {
	return m.config.Style
}

func (m *Manager) Config() ConnectionConfig {
	return m.config
}

func (m *Manager) Dialect() Dialect {
	return m.dialect
}

// Opens returns the number of successful handshakes so far.
func (m *Manager) Opens() int64 {
	return m.opens.Load()
}

// LastError returns the most recent open failure, nil once an open succeeds.
func (m *Manager) LastError() error {
	m.errMu.Lock()
	defer m.errMu.Unlock()
	return m.lastErr
}

// Connected reports whether a shared session is currently held.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shared != nil && m.shared.IsOpen()
}

// Acquire returns a usable connection. Shared style hands back the held
// session after a ping, reopening it if the ping fails. PerCall style
// always opens a fresh one.
func (m *Manager) Acquire(ctx context.Context) (*ManagedConnection, error) {
	if m.config.Style == StylePerCall {
		return m.open(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shared != nil {
		if m.shared.healthy(ctx) {
			return m.shared, nil
		}
		log.Warn().
			Err(m.shared.LastError()).
			Uint64("conn_id", m.shared.ID()).
			Msg("Shared connection is broken, reopening")
		m.shared.close()
		m.shared = nil
	}

	conn, err := m.open(ctx)
	if err != nil {
		return nil, err
	}
	m.shared = conn
	return conn, nil
}

// Release gives a connection back. Shared connections stay open unless
// force is set; PerCall connections are always closed.
func (m *Manager) Release(conn *ManagedConnection, force bool) {
	if conn == nil {
		return
	}
	if m.config.Style == StyleShared && !force {
		return
	}

	m.mu.Lock()
	if m.shared == conn {
		m.shared = nil
	}
	m.mu.Unlock()

	conn.close()
}

// Shutdown closes the shared session, if any.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	conn := m.shared
	m.shared = nil
	m.mu.Unlock()

	if conn != nil {
		conn.close()
	}
}

func (m *Manager) open(ctx context.Context) (*ManagedConnection, error) {
	driver := m.config.Driver
	if !slices.Contains(sql.Drivers(), driver) {
		return nil, m.fail(&ConnectionError{Driver: driver, Op: "resolve", Err: fmt.Errorf("driver %q is not registered", driver)})
	}

	dsn, err := m.dialect.BuildDSN(m.config)
	if err != nil {
		return nil, m.fail(&ConnectionError{Driver: driver, Op: "dsn", Err: err})
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, m.fail(&ConnectionError{Driver: driver, Op: "open", Err: err})
	}
	sqlDB.SetMaxOpenConns(1)

	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		sqlDB.Close()
		return nil, m.fail(&ConnectionError{Driver: driver, Op: "connect", Err: err})
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		sqlDB.Close()
		return nil, m.fail(&ConnectionError{Driver: driver, Op: "ping", Err: err})
	}

	mc := &ManagedConnection{
		id:       m.nextID.Add(1),
		db:       sqlDB,
		conn:     conn,
		openedAt: time.Now(),
	}
	m.opens.Add(1)
	m.setErr(nil)

	telemetry.ConnectionOpensTotal.With(m.config.Style.String(), "success").Inc()
	telemetry.ConnectionsOpen.Inc()
	log.Debug().
		Str("driver", driver).
		Str("style", m.config.Style.String()).
		Uint64("conn_id", mc.id).
		Msg("Connection opened")
	return mc, nil
}

func (m *Manager) fail(err *ConnectionError) error {
	m.setErr(err)
	telemetry.ConnectionOpensTotal.With(m.config.Style.String(), "failed").Inc()
	log.Error().Err(err.Err).Str("driver", err.Driver).Str("op", err.Op).Msg("Failed to open connection")
	return err
}

func (m *Manager) setErr(err error) {
	m.errMu.Lock()
	m.lastErr = err
	m.errMu.Unlock()
}
