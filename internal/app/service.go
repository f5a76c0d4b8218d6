package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/joacominatel/sqlgate/internal/admission"
	"github.com/joacominatel/sqlgate/internal/config"
	"github.com/joacominatel/sqlgate/internal/database"
	"golang.org/x/sync/errgroup"
)

// Metadata is the catalog snapshot returned by Service.Metadata.
type Metadata struct {
	Tables  []string                     `json:"tables"`
	Columns map[string][]database.Column `json:"columns"`
}

// HealthStatus is returned by Service.Health.
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Options configures a Service.
type Options struct {
	// Schema is the catalog schema introspected by Metadata.
	Schema string
	// Strategy is config.StrategyPerTable or config.StrategyBatched.
	Strategy string
	// Concurrency bounds in-flight per-table column queries.
	Concurrency int
	// Exec is passed to the driver for every admitted query.
	Exec database.ExecOptions
	// Gate admits queries. Nil uses the denylist.
	Gate *admission.Gate
}

// OptionsFromConfig maps configuration onto service options.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	mode, err := admission.ParseMode(cfg.Query.Admission)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Schema:      cfg.Metadata.Schema,
		Strategy:    cfg.Metadata.Strategy,
		Concurrency: cfg.Metadata.Concurrency,
		Exec: database.ExecOptions{
			Timeout:  cfg.Query.Timeout,
			ReadOnly: cfg.Query.ReadOnly,
			MaxRows:  cfg.Query.MaxRows,
		},
		Gate: admission.New(mode),
	}, nil
}

// Service exposes the gateway operations over a database driver.
// It keeps no per-request state and is safe for concurrent use.
type Service struct {
	driver database.Driver
	opts   Options
	now    func() time.Time
}

// NewService creates a new application service.
func NewService(driver database.Driver, opts Options) *Service {
	if opts.Schema == "" {
		opts.Schema = "public"
	}
	if opts.Strategy == "" {
		opts.Strategy = config.StrategyPerTable
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Gate == nil {
		opts.Gate = admission.New(admission.ModeDenylist)
	}
	return &Service{driver: driver, opts: opts, now: time.Now}
}

// Connect establishes the database connection pool.
func (s *Service) Connect(ctx context.Context, dsn string, pool database.PoolOptions) error {
	if err := s.driver.Connect(ctx, dsn, pool); err != nil {
		return &ErrConnection{Cause: err}
	}
	return nil
}

// Disconnect closes the database connection pool.
func (s *Service) Disconnect() error {
	return s.driver.Close()
}

// DatabaseName returns the current database name.
func (s *Service) DatabaseName() string {
	return s.driver.DatabaseName()
}

// Health reports liveness. It never touches the database.
func (s *Service) Health() HealthStatus {
	return HealthStatus{Status: "healthy", Timestamp: s.now().UTC()}
}

// Ready pings the database.
func (s *Service) Ready(ctx context.Context) error {
	if err := s.driver.Ping(ctx); err != nil {
		return &ErrConnection{Cause: err}
	}
	return nil
}

// Metadata lists the tables of the configured schema and the columns of each
// table. Any catalog failure fails the whole call; partial results are never
// returned.
func (s *Service) Metadata(ctx context.Context) (*Metadata, error) {
	tables, err := s.driver.ListTables(ctx, s.opts.Schema)
	if err != nil {
		return nil, internalError(err)
	}
	if tables == nil {
		tables = []string{}
	}

	var columns map[string][]database.Column
	if s.opts.Strategy == config.StrategyBatched {
		columns, err = s.batchedColumns(ctx, tables)
	} else {
		columns, err = s.perTableColumns(ctx, tables)
	}
	if err != nil {
		return nil, internalError(err)
	}

	return &Metadata{Tables: tables, Columns: columns}, nil
}

func (s *Service) perTableColumns(ctx context.Context, tables []string) (map[string][]database.Column, error) {
	results := make([][]database.Column, len(tables))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i, table := range tables {
		g.Go(func() error {
			cols, err := s.driver.GetColumns(gctx, s.opts.Schema, table)
			if err != nil {
				return fmt.Errorf("columns of %s: %w", table, err)
			}
			results[i] = cols
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	columns := make(map[string][]database.Column, len(tables))
	for i, table := range tables {
		columns[table] = nonNil(results[i])
	}
	return columns, nil
}

func (s *Service) batchedColumns(ctx context.Context, tables []string) (map[string][]database.Column, error) {
	all, err := s.driver.GetSchemaColumns(ctx, s.opts.Schema)
	if err != nil {
		return nil, err
	}

	// Tables come from the table query so a table dropped or created
	// between the two queries is reported consistently with the list.
	columns := make(map[string][]database.Column, len(tables))
	for _, table := range tables {
		columns[table] = nonNil(all[table])
	}
	return columns, nil
}

func nonNil(cols []database.Column) []database.Column {
	if cols == nil {
		return []database.Column{}
	}
	return cols
}

// Execute admits and runs a client query.
func (s *Service) Execute(ctx context.Context, query string) (*database.QueryResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, BadRequest(MsgQueryRequired)
	}

	if err := s.opts.Gate.Check(query); err != nil {
		return nil, forbidden(err)
	}

	result, err := s.driver.ExecuteQuery(ctx, query, s.opts.Exec)
	if err != nil {
		return nil, queryError(err)
	}
	return result, nil
}
