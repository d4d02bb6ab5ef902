package archive

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go/compress"

	"tmengine/internal/config"
	"tmengine/internal/logging"
	"tmengine/internal/preflight"
	"tmengine/internal/store"
	"tmengine/internal/tmerr"
)

const (
	UnitsFile = "units.parquet"
	TermsFile = "terms.parquet"
)

// Source supplies the rows a refresh writes.
type Source interface {
	UnitsByProject(ctx context.Context, projectID string, limit int) ([]*store.TranslationUnit, error)
	TermsByProject(ctx context.Context, projectID string) ([]*store.Term, error)
}

// Sink mirrors archive files to remote storage.
type Sink interface {
	Upload(ctx context.Context, key, path string) error
}

// Archive writes and reads the per-project Parquet files.
type Archive struct {
	dir    string
	codec  compress.Codec
	source Source
	sink   Sink
	prefix string
	logger *slog.Logger
}

// New prepares the archive directory and checks that it is usable. sink may
// be nil.
func New(cfg *config.Config, source Source, sink Sink, logger *slog.Logger) (*Archive, error) {
	if cfg == nil {
		return nil, tmerr.Wrap(tmerr.ErrConfiguration, "archive", "open", "config is required", nil)
	}
	codec, err := codecFor(cfg.Archive.Compression)
	if err != nil {
		return nil, err
	}
	dir := strings.TrimSpace(cfg.Paths.ArchiveDir)
	if dir == "" {
		return nil, tmerr.Wrap(tmerr.ErrConfiguration, "archive", "open", "paths.archive_dir is empty", nil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}
	if check := preflight.CheckDirectoryAccess("Archive directory", dir); !check.Passed {
		return nil, tmerr.Wrap(tmerr.ErrConfiguration, "archive", "open", check.Detail, nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Archive{
		dir:    dir,
		codec:  codec,
		source: source,
		sink:   sink,
		prefix: cfg.Archive.S3Prefix,
		logger: logging.NewComponentLogger(logger, "archive"),
	}, nil
}

func validProject(project string) error {
	project = strings.TrimSpace(project)
	if project == "" || project == "." || project == ".." || strings.ContainsAny(project, `/\`) {
		return tmerr.Invalid("project_id", "%q is not a valid archive project", project)
	}
	return nil
}

func (a *Archive) projectDir(project string) string {
	return filepath.Join(a.dir, project)
}

// Path returns the location of one of a project's archive files.
func (a *Archive) Path(project, file string) string {
	return filepath.Join(a.projectDir(project), file)
}

// RefreshResult counts the rows written by Refresh.
type RefreshResult struct {
	Units    int           `json:"units"`
	Terms    int           `json:"terms"`
	Duration time.Duration `json:"duration"`
}

// Refresh regenerates both of the project's files from the store.
func (a *Archive) Refresh(ctx context.Context, project string) (RefreshResult, error) {
	started := time.Now()
	var result RefreshResult
	if err := validProject(project); err != nil {
		return result, err
	}
	if a.source == nil {
		return result, tmerr.Wrap(tmerr.ErrConfiguration, "archive", "refresh", "no source configured", nil)
	}
	units, err := a.source.UnitsByProject(ctx, project, 0)
	if err != nil {
		return result, err
	}
	terms, err := a.source.TermsByProject(ctx, project)
	if err != nil {
		return result, err
	}
	if err := os.MkdirAll(a.projectDir(project), 0o755); err != nil {
		return result, fmt.Errorf("create project archive directory: %w", err)
	}

	err = a.withLock(ctx, project, func() error {
		unitRows := make([]UnitRow, 0, len(units))
		for _, u := range units {
			unitRows = append(unitRows, unitRow(u))
		}
		if err := writeRows(ctx, a.Path(project, UnitsFile), unitRows, a.codec); err != nil {
			return err
		}
		termRows := make([]TermRow, 0, len(terms))
		for _, t := range terms {
			termRows = append(termRows, termRow(t))
		}
		return writeRows(ctx, a.Path(project, TermsFile), termRows, a.codec)
	})
	if err != nil {
		return result, err
	}
	result = RefreshResult{Units: len(units), Terms: len(terms), Duration: time.Since(started)}
	a.upload(ctx, project, UnitsFile, TermsFile)

	a.logger.Info("archive refreshed",
		logging.Project(project),
		logging.Int("units", result.Units),
		logging.Int("terms", result.Terms),
		logging.Duration("duration", result.Duration),
	)
	return result, nil
}

// AppendUnits adds units to the project's units file. Units already in the
// file are replaced by id.
func (a *Archive) AppendUnits(ctx context.Context, project string, units []*store.TranslationUnit) (int, error) {
	if err := validProject(project); err != nil {
		return 0, err
	}
	if len(units) == 0 {
		return 0, nil
	}
	if err := os.MkdirAll(a.projectDir(project), 0o755); err != nil {
		return 0, fmt.Errorf("create project archive directory: %w", err)
	}
	var total int
	err := a.withLock(ctx, project, func() error {
		path := a.Path(project, UnitsFile)
		existing, err := readRows[UnitRow](path)
		if err != nil {
			return err
		}
		incoming := make(map[string]struct{}, len(units))
		for _, u := range units {
			incoming[u.ID] = struct{}{}
		}
		rows := slices.DeleteFunc(existing, func(r UnitRow) bool {
			_, ok := incoming[r.ID]
			return ok
		})
		for _, u := range units {
			rows = append(rows, unitRow(u))
		}
		total = len(rows)
		return writeRows(ctx, path, rows, a.codec)
	})
	if err != nil {
		return 0, err
	}
	a.upload(ctx, project, UnitsFile)
	a.logger.Debug("archive units appended",
		logging.Project(project),
		logging.Int("appended", len(units)),
		logging.Int("total", total),
	)
	return len(units), nil
}

// upload mirrors files to the sink. Failures are logged, not returned; the
// local file is the archive of record.
func (a *Archive) upload(ctx context.Context, project string, files ...string) {
	if a.sink == nil {
		return
	}
	for _, file := range files {
		key := strings.TrimPrefix(strings.Join([]string{a.prefix, project, file}, "/"), "/")
		if err := a.sink.Upload(ctx, key, a.Path(project, file)); err != nil {
			logging.WarnWithContext(a.logger, "archive upload failed", "archive_upload",
				logging.Project(project),
				logging.String("key", key),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check archive.s3_* settings and credentials"),
				logging.String(logging.FieldImpact, "remote copy stays stale until the next archive write"),
			)
		}
	}
}

// ReadUnits loads the project's archived units.
func (a *Archive) ReadUnits(ctx context.Context, project string) ([]*store.TranslationUnit, error) {
	if err := validProject(project); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, tmerr.FromContext("archive", "read units", err)
	}
	rows, err := readRows[UnitRow](a.Path(project, UnitsFile))
	if err != nil {
		return nil, err
	}
	out := make([]*store.TranslationUnit, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ToUnit())
	}
	return out, nil
}

// ReadTerms loads the project's archived terms.
func (a *Archive) ReadTerms(ctx context.Context, project string) ([]*store.Term, error) {
	if err := validProject(project); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, tmerr.FromContext("archive", "read terms", err)
	}
	rows, err := readRows[TermRow](a.Path(project, TermsFile))
	if err != nil {
		return nil, err
	}
	out := make([]*store.Term, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ToTerm())
	}
	return out, nil
}

// PairCount is the number of archived units for one language pair.
type PairCount struct {
	Pair  store.LanguagePair `json:"pair"`
	Units int                `json:"units"`
}

// Stats summarizes a project's archive.
type Stats struct {
	ProjectID         string      `json:"project_id"`
	Units             int         `json:"units"`
	Terms             int         `json:"terms"`
	DoNotTranslate    int         `json:"do_not_translate"`
	LanguagePairs     []PairCount `json:"language_pairs"`
	AverageConfidence float64     `json:"average_confidence"`
	Bytes             int64       `json:"bytes"`
}

// Stats scans the project's archive files.
func (a *Archive) Stats(ctx context.Context, project string) (Stats, error) {
	stats := Stats{ProjectID: project}
	units, err := a.ReadUnits(ctx, project)
	if err != nil {
		return stats, err
	}
	terms, err := a.ReadTerms(ctx, project)
	if err != nil {
		return stats, err
	}

	pairs := make(map[store.LanguagePair]int)
	var total float64
	for _, u := range units {
		pairs[u.Pair()]++
		total += u.ConfidenceScore
	}
	stats.Units = len(units)
	if stats.Units > 0 {
		stats.AverageConfidence = total / float64(stats.Units)
	}
	for pair, n := range pairs {
		stats.LanguagePairs = append(stats.LanguagePairs, PairCount{Pair: pair, Units: n})
	}
	slices.SortFunc(stats.LanguagePairs, func(x, y PairCount) int {
		if c := cmp.Compare(y.Units, x.Units); c != 0 {
			return c
		}
		return cmp.Compare(x.Pair.String(), y.Pair.String())
	})
	stats.Terms = len(terms)
	for _, t := range terms {
		if t.DoNotTranslate {
			stats.DoNotTranslate++
		}
	}
	for _, file := range []string{UnitsFile, TermsFile} {
		if info, err := os.Stat(a.Path(project, file)); err == nil {
			stats.Bytes += info.Size()
		}
	}
	return stats, nil
}
