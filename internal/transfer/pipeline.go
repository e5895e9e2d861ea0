// Package transfer moves a dataset from its source database into a dataset
// container: export the definition query to a staging file, load the file
// into a freshly created table, and remove the file again.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/leapstack-labs/datarade/pkg/adapter"
	"github.com/leapstack-labs/datarade/pkg/core"
)

// StagedSuffix is appended to the target table name for the table a swap
// loads into.
const StagedSuffix = "__datarade_new"

// ConnectFunc opens a connected adapter for cfg.
type ConnectFunc func(ctx context.Context, cfg core.AdapterConfig) (core.Adapter, error)

// Config configures a Pipeline.
type Config struct {
	// StagingDir holds the transient export files. Defaults to the OS temp dir.
	StagingDir  string
	Credentials Credentials
	// Connect defaults to the adapter registry.
	Connect ConnectFunc
	Logger  *slog.Logger
}

// Pipeline refreshes datasets into containers.
type Pipeline struct {
	stagingDir  string
	credentials Credentials
	connect     ConnectFunc
	locks       *keyedLock
	logger      *slog.Logger
}

// Result describes one completed refresh.
type Result struct {
	Table       core.TableRef
	FullName    string
	Exported    int64
	Rows        int64
	StagingPath string
	Swapped     bool
	StartedAt   time.Time
	Export      time.Duration
	Load        time.Duration
	Duration    time.Duration
}

// New creates a pipeline.
func New(cfg Config) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	p := &Pipeline{
		stagingDir:  cfg.StagingDir,
		credentials: cfg.Credentials,
		connect:     cfg.Connect,
		locks:       newKeyedLock(),
		logger:      logger,
	}
	if p.stagingDir == "" {
		p.stagingDir = os.TempDir()
	}
	if p.credentials == nil {
		p.credentials = StaticCredentials{}
	}
	if p.connect == nil {
		p.connect = p.connectRegistered
	}
	return p
}

func (p *Pipeline) connectRegistered(ctx context.Context, cfg core.AdapterConfig) (core.Adapter, error) {
	a, err := adapter.NewAdapter(cfg, p.logger)
	if err != nil {
		return nil, err
	}
	if err := a.Connect(ctx, cfg); err != nil {
		return nil, err
	}
	return a, nil
}

// StagingPath returns the staging file used for a fully qualified table name.
func (p *Pipeline) StagingPath(fullName string) string {
	return filepath.Join(p.stagingDir, stagingFileName(fullName))
}

func stagingFileName(fullName string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, fullName)
	return name + ".dat"
}

// Refresh replaces table in container c with the current result of the
// dataset's definition query. An empty table uses the dataset name.
// Refreshes of the same fully qualified table run one at a time.
func (p *Pipeline) Refresh(ctx context.Context, ds *core.Dataset, c *core.DatasetContainer, table string) (*Result, error) {
	src := ds.Database()
	if src == nil {
		return nil, &core.ValidationError{Source: ds.Name(), Field: "database", Message: "dataset has no source database"}
	}
	if table == "" {
		table = ds.Name()
	}
	ref := c.Table(table)
	res := &Result{
		Table:       ref,
		FullName:    ref.String(),
		StagingPath: p.StagingPath(ref.String()),
	}

	unlock, err := p.locks.Lock(ctx, res.FullName)
	if err != nil {
		return nil, fmt.Errorf("waiting for %s: %w", res.FullName, err)
	}
	defer unlock()

	res.StartedAt = time.Now()
	logger := p.logger.With("dataset", ds.Name(), "container", c.ID(), "table", res.FullName)
	logger.Info("starting refresh")

	username := ""
	if u := ds.User(); u != nil {
		username = u.Username
	}
	srcCfg := src.AdapterConfig(username, p.credentials.SourcePassword(ds.User()))
	dstCfg := c.Connection(p.credentials.ContainerPassword(c))

	target, err := p.connect(ctx, dstCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to container %s: %w", c.ID(), err)
	}
	defer func() { _ = target.Close() }()

	source := target
	if !sameEndpoint(srcCfg, dstCfg) {
		source, err = p.connect(ctx, srcCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to source of %s: %w", ds.Name(), err)
		}
		defer func() { _ = source.Close() }()
	}

	fields := ds.Fields()
	if err := adapter.CheckFields(target, fields); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(p.stagingDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer p.removeStaging(logger, res.StagingPath)

	start := time.Now()
	res.Exported, err = source.ExportCSV(ctx, ds.Definition(), res.StagingPath)
	if err != nil {
		return nil, fmt.Errorf("failed to export %s: %w", ds.Name(), err)
	}
	res.Export = time.Since(start)
	logger.Debug("exported", "rows", res.Exported, "path", res.StagingPath, "elapsed", res.Export)

	start = time.Now()
	if swapper, ok := target.(core.TableSwapper); ok {
		res.Swapped = true
		res.Rows, err = p.loadAndSwap(ctx, target, swapper, ref, ds, res.StagingPath, res.Exported)
	} else {
		res.Rows, err = p.replace(ctx, target, ref, ds, res.StagingPath, res.Exported)
	}
	if err != nil {
		return nil, err
	}
	res.Load = time.Since(start)
	res.Duration = time.Since(res.StartedAt)

	logger.Info("refresh completed", "rows", res.Rows, "swapped", res.Swapped, "elapsed", res.Duration)
	return res, nil
}

// loadAndSwap loads into a staged table and swaps it in, leaving the current
// table untouched until the staged row count matches the export.
func (p *Pipeline) loadAndSwap(ctx context.Context, a core.Adapter, s core.TableSwapper, ref core.TableRef, ds *core.Dataset, path string, exported int64) (rows int64, err error) {
	staged := ref.WithName(ref.Name + StagedSuffix)

	if err := a.Exec(ctx, adapter.DropTableSQL(a, staged)); err != nil {
		return 0, fmt.Errorf("failed to drop %s: %w", staged, err)
	}
	if err := p.create(ctx, a, staged, ds); err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			if dropErr := a.Exec(context.WithoutCancel(ctx), adapter.DropTableSQL(a, staged)); dropErr != nil {
				err = errors.Join(err, fmt.Errorf("failed to drop %s: %w", staged, dropErr))
			}
		}
	}()

	if _, err := a.ImportCSV(ctx, staged, ds.ColumnNames(), path); err != nil {
		return 0, fmt.Errorf("failed to load %s: %w", staged, err)
	}
	rows, err = verifyRows(ctx, a, staged, exported)
	if err != nil {
		return 0, err
	}
	if err := s.SwapTable(ctx, staged, ref); err != nil {
		return 0, fmt.Errorf("failed to swap %s into %s: %w", staged, ref, err)
	}
	return rows, nil
}

// replace drops and recreates the table, then loads it.
func (p *Pipeline) replace(ctx context.Context, a core.Adapter, ref core.TableRef, ds *core.Dataset, path string, exported int64) (int64, error) {
	if err := a.Exec(ctx, adapter.DropTableSQL(a, ref)); err != nil {
		return 0, fmt.Errorf("failed to drop %s: %w", ref, err)
	}
	if err := p.create(ctx, a, ref, ds); err != nil {
		return 0, err
	}
	if _, err := a.ImportCSV(ctx, ref, ds.ColumnNames(), path); err != nil {
		return 0, fmt.Errorf("failed to load %s: %w", ref, err)
	}
	return verifyRows(ctx, a, ref, exported)
}

// verifyRows counts the rows in ref and fails unless every exported row
// arrived.
func verifyRows(ctx context.Context, a core.Adapter, ref core.TableRef, exported int64) (int64, error) {
	rows, err := adapter.CountRows(ctx, a, ref)
	if err != nil {
		return 0, fmt.Errorf("failed to count rows in %s: %w", ref, err)
	}
	if rows != exported {
		return rows, &RowCountError{Table: ref.String(), Exported: exported, Loaded: rows}
	}
	return rows, nil
}

// RowCountError reports a load that did not receive every exported row.
type RowCountError struct {
	Table    string
	Exported int64
	Loaded   int64
}

func (e *RowCountError) Error() string {
	return fmt.Sprintf("loaded %d of %d exported rows into %s", e.Loaded, e.Exported, e.Table)
}

func (p *Pipeline) create(ctx context.Context, a core.Adapter, ref core.TableRef, ds *core.Dataset) error {
	stmt, err := adapter.CreateTableSQL(a, ref, ds.Fields())
	if err != nil {
		return err
	}
	if err := a.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create %s: %w", ref, err)
	}
	return nil
}

func (p *Pipeline) removeStaging(logger *slog.Logger, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("failed to remove staging file", "path", path, "error", err.Error())
	}
}

// sameEndpoint reports whether two configurations reach the same database
// with the same login, so one connection can serve both sides.
func sameEndpoint(a, b core.AdapterConfig) bool {
	return a.Type == b.Type &&
		a.Path == b.Path &&
		a.Host == b.Host &&
		a.Port == b.Port &&
		a.Database == b.Database &&
		a.Username == b.Username
}
