// Package database adapts database/sql connections to the query core's
// connection contract: rows come back as ordered column maps, writes
// report affected counts, and each connection carries the grammar,
// processor, cache manager and paginator environment its builders use.
package database

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/genesysflow/go-fluentsql/cache"
	"github.com/genesysflow/go-fluentsql/contracts"
	"github.com/genesysflow/go-fluentsql/env"
	"github.com/genesysflow/go-fluentsql/log"
	"github.com/genesysflow/go-fluentsql/pagination"
	"github.com/genesysflow/go-fluentsql/query"
)

// Config represents database configuration.
type Config struct {
	// Default connection name.
	Default string `yaml:"default" json:"default"`

	// Connections defines all database connections.
	Connections map[string]ConnectionConfig `yaml:"connections" json:"connections"`
}

// ConnectionConfig represents a single database connection configuration.
type ConnectionConfig struct {
	// Driver is the database driver (mysql, pgsql, sqlite).
	Driver string `yaml:"driver" json:"driver" validate:"required,oneof=mysql pgsql postgres postgresql sqlite sqlite3"`

	// Host is the database host.
	Host string `yaml:"host" json:"host"`

	// Port is the database port.
	Port int `yaml:"port" json:"port" validate:"gte=0,lte=65535"`

	// Database is the database name, or the file path for SQLite.
	Database string `yaml:"database" json:"database" validate:"required"`

	// Username for authentication.
	Username string `yaml:"username" json:"username"`

	// Password for authentication.
	Password string `yaml:"password" json:"password"`

	// SSLMode for PostgreSQL connections.
	SSLMode string `yaml:"sslmode" json:"sslmode"`

	// MaxOpenConns sets the maximum open connections.
	MaxOpenConns int `yaml:"max_open_conns" json:"max_open_conns"`

	// MaxIdleConns sets the maximum idle connections.
	MaxIdleConns int `yaml:"max_idle_conns" json:"max_idle_conns"`

	// ConnMaxLifetime is the maximum connection lifetime.
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`

	// ConnMaxIdleTime is the maximum idle time for connections.
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`
}

// ConfigFromEnv builds a single-connection configuration from the
// environment: DB_CONNECTION, DB_HOST, DB_PORT, DB_DATABASE, DB_USERNAME,
// DB_PASSWORD and DB_SSLMODE. Call env.Load first to read a .env file.
func ConfigFromEnv() Config {
	name := env.Get("DB_CONNECTION", "sqlite")
	return Config{
		Default: name,
		Connections: map[string]ConnectionConfig{
			name: {
				Driver:   name,
				Host:     env.Get("DB_HOST", "127.0.0.1"),
				Port:     env.GetInt("DB_PORT"),
				Database: env.Get("DB_DATABASE"),
				Username: env.Get("DB_USERNAME"),
				Password: env.Get("DB_PASSWORD"),
				SSLMode:  env.Get("DB_SSLMODE"),
			},
		},
	}
}

// Manager handles named connections. Connections dial lazily on first
// use and are reused afterwards.
type Manager struct {
	config      Config
	connections map[string]*Connection
	cacheStores *cache.Manager
	paginator   contracts.PaginatorEnv
	logger      contracts.Logger
	validate    *validator.Validate
	mu          sync.RWMutex
}

// NewManager creates a new database manager.
func NewManager(config Config) *Manager {
	return &Manager{
		config:      config,
		connections: make(map[string]*Connection),
		cacheStores: cache.NewManager(),
		paginator:   pagination.NewEnv(1),
		logger:      log.New(),
		validate:    validator.New(),
	}
}

// SetLogger replaces the logger on the manager and every open
// connection.
func (m *Manager) SetLogger(logger contracts.Logger) {
	m.mu.Lock()
	m.logger = logger
	for _, conn := range m.connections {
		conn.logger = logger
	}
	m.mu.Unlock()
}

// SetPaginator replaces the paginator environment on the manager and
// every open connection, typically per request.
func (m *Manager) SetPaginator(env contracts.PaginatorEnv) {
	m.mu.Lock()
	m.paginator = env
	for _, conn := range m.connections {
		conn.paginator = env
	}
	m.mu.Unlock()
}

// CacheStores returns the cache manager whose default store connections
// memoize through.
func (m *Manager) CacheStores() *cache.Manager {
	return m.cacheStores
}

// Connection returns a connection by name, or the default one. A
// misconfigured or unreachable connection comes back in an error state
// that every operation on it reports.
func (m *Manager) Connection(name ...string) *Connection {
	connName := m.config.Default
	if len(name) > 0 && name[0] != "" {
		connName = name[0]
	}

	m.mu.RLock()
	if conn, ok := m.connections[connName]; ok {
		m.mu.RUnlock()
		return conn
	}
	m.mu.RUnlock()

	conn, err := m.makeConnection(connName)
	if err != nil {
		driver := m.config.Connections[connName].Driver
		return &Connection{
			name:      connName,
			driver:    driver,
			grammar:   query.NewGrammar(driver),
			processor: query.NewProcessor(),
			err:       err,
		}
	}

	m.mu.Lock()
	m.connections[connName] = conn
	m.mu.Unlock()

	return conn
}

// Table starts a builder for the given table on the default connection.
func (m *Manager) Table(table string) *query.Builder {
	return m.Connection().Table(table)
}

func (m *Manager) makeConnection(name string) (*Connection, error) {
	config, ok := m.config.Connections[name]
	if !ok {
		return nil, fmt.Errorf("database connection [%s] not configured", name)
	}
	if err := m.validate.Struct(config); err != nil {
		return nil, fmt.Errorf("database connection [%s] misconfigured: %w", name, err)
	}

	db, err := sql.Open(mapDriver(config.Driver), buildDSN(config))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}
	if config.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(config.ConnMaxIdleTime)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store, err := m.cacheStores.Store()
	if err != nil {
		store = nil
	}

	return NewConnection(name, config.Driver, db, store, m.paginator, m.logger), nil
}

// Disconnect closes and drops the given connection.
func (m *Manager) Disconnect(name ...string) error {
	connName := m.config.Default
	if len(name) > 0 && name[0] != "" {
		connName = name[0]
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if conn, ok := m.connections[connName]; ok {
		if err := conn.Close(); err != nil {
			return err
		}
		delete(m.connections, connName)
	}
	return nil
}

// Close closes all connections.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var lastErr error
	for name, conn := range m.connections {
		if err := conn.Close(); err != nil {
			lastErr = err
		}
		delete(m.connections, name)
	}
	return lastErr
}

// buildDSN builds a connection string from configuration.
func buildDSN(config ConnectionConfig) string {
	switch config.Driver {
	case "pgsql", "postgres", "postgresql":
		sslMode := config.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		port := config.Port
		if port == 0 {
			port = 5432
		}
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			config.Host, port, config.Username, config.Password, config.Database, sslMode,
		)

	case "mysql":
		port := config.Port
		if port == 0 {
			port = 3306
		}
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			config.Username, config.Password, config.Host, port, config.Database,
		)

	case "sqlite", "sqlite3":
		return config.Database

	default:
		return ""
	}
}

// mapDriver maps configured driver names to registered sql drivers.
func mapDriver(driver string) string {
	switch driver {
	case "pgsql", "postgres", "postgresql":
		return "postgres"
	case "sqlite", "sqlite3":
		return "sqlite3"
	default:
		return driver
	}
}
