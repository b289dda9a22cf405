// Package server exposes the introspection engine over HTTP.
package server

import (
	"context"
	"sync"
	"time"

	"schemap/internal/cache"
	"schemap/internal/catalog"
	"schemap/internal/config"
	"schemap/internal/database"
	"schemap/internal/database/mysql"
	"schemap/internal/database/postgres"
	"schemap/internal/errs"
	"schemap/internal/infer"
	"schemap/internal/logger"
	"schemap/internal/query"
)

// ConnectionInfo is the public description of one configured connection.
type ConnectionInfo struct {
	Name   string `json:"name"`
	Driver string `json:"driver"`
	Schema string `json:"schema,omitempty"`
}

// Service is what the HTTP handlers need from the engine. Hub is the real
// implementation; tests substitute their own.
type Service interface {
	// Connections lists the configured connections.
	Connections() []ConnectionInfo

	// Snapshot returns the schema and graph for the named connection,
	// introspecting on a cache miss. force bypasses the cache entirely.
	Snapshot(ctx context.Context, name string, force bool) (*cache.Snapshot, error)

	// Query runs a validated read-only data query on the named connection.
	Query(ctx context.Context, name string, req *query.Request) ([]map[string]any, error)
}

// Hub owns one engine per configured connection, opening database pools
// lazily on first use and sharing one snapshot cache across all of them.
type Hub struct {
	cfg   *config.Config
	store *cache.Store
	log   *logger.Logger

	mu    sync.Mutex
	conns map[string]*engine
}

// engine bundles everything needed to serve one connection.
type engine struct {
	db        database.DB
	assembler *catalog.Assembler
	exec      *query.Executor
}

// NewHub creates a Hub. archive may be nil.
func NewHub(cfg *config.Config, archive cache.Archive, log *logger.Logger) *Hub {
	return &Hub{
		cfg:   cfg,
		store: cache.NewStore(cfg.Cache.TTL.Std(), archive, log),
		log:   log,
		conns: make(map[string]*engine),
	}
}

// Close releases every opened database pool.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for name, e := range h.conns {
		e.db.Close()
		delete(h.conns, name)
	}
}

// Connections lists the configured connections.
func (h *Hub) Connections() []ConnectionInfo {
	infos := make([]ConnectionInfo, len(h.cfg.Connections))
	for i, c := range h.cfg.Connections {
		infos[i] = ConnectionInfo{Name: c.Name, Driver: c.Driver, Schema: c.Schema}
	}
	return infos
}

// Snapshot returns the cached schema and graph for name, running a full
// introspection pass when the cache is cold or stale. force invalidates
// first so the pass always runs.
func (h *Hub) Snapshot(ctx context.Context, name string, force bool) (*cache.Snapshot, error) {
	e, err := h.engine(ctx, name)
	if err != nil {
		return nil, err
	}

	if force {
		h.store.Invalidate(name)
	}

	return h.store.GetOrFill(ctx, name, func(ctx context.Context) (*cache.Snapshot, error) {
		schema, err := e.assembler.Assemble(ctx)
		if err != nil {
			return nil, err
		}
		return &cache.Snapshot{
			Schema:    schema,
			Graph:     infer.Build(schema, h.log),
			CreatedAt: time.Now(),
		}, nil
	})
}

// Query validates req against the connection's snapshot and executes it.
func (h *Hub) Query(ctx context.Context, name string, req *query.Request) ([]map[string]any, error) {
	e, err := h.engine(ctx, name)
	if err != nil {
		return nil, err
	}

	snap, err := h.Snapshot(ctx, name, false)
	if err != nil {
		return nil, err
	}
	return e.exec.Run(ctx, snap.Schema, req)
}

// engine returns the opened engine for name, dialing the database on first
// use.
func (h *Hub) engine(ctx context.Context, name string) (*engine, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if e, ok := h.conns[name]; ok {
		return e, nil
	}

	conn := h.cfg.Connection(name)
	if conn == nil {
		return nil, errs.New(errs.ErrKindNotFound, "unknown connection: "+name)
	}

	e, err := h.dial(ctx, conn)
	if err != nil {
		return nil, err
	}
	h.conns[name] = e

	h.log.InfoWith("connection opened", map[string]any{
		"connection": name,
		"driver":     conn.Driver,
	})
	return e, nil
}

func (h *Hub) dial(ctx context.Context, conn *config.Connection) (*engine, error) {
	dbCfg := conn.DatabaseConfig()

	switch database.Driver(conn.Driver) {
	case database.DriverPostgres:
		db, err := postgres.New(ctx, dbCfg)
		if err != nil {
			return nil, err
		}
		return &engine{
			db: db,
			assembler: catalog.NewAssembler(
				catalog.NewPostgres(db, conn.Schema, h.log),
				catalog.NewPgDeepDependencies(db, conn.Schema, h.log),
				h.log),
			exec: query.NewExecutor(db, conn.MaxRows, h.log),
		}, nil

	case database.DriverMySQL:
		db, err := mysql.New(ctx, dbCfg)
		if err != nil {
			return nil, err
		}
		return &engine{
			db: db,
			assembler: catalog.NewAssembler(
				catalog.NewMySQL(db, h.log),
				catalog.NoDeepDependencies{},
				h.log),
			exec: query.NewExecutor(db, conn.MaxRows, h.log),
		}, nil
	}

	return nil, errs.New(errs.ErrKindInvalidInput, "unsupported driver: "+conn.Driver)
}

// Dialect reports the placeholder dialect of the named connection without
// dialing it. Used by exports, which only need quoting rules.
func (h *Hub) Dialect(name string) database.Dialect {
	conn := h.cfg.Connection(name)
	if conn != nil && database.Driver(conn.Driver) == database.DriverMySQL {
		return database.DialectMySQL
	}
	return database.DialectPostgres
}
