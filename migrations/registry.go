package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	trellolink "github.com/goliatone/go-trellolink"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	schemaRoot  = "data/sql/migrations"
	sourceLabel = "go-trellolink"
)

type FilesystemSpec struct {
	Dialect string
	Path    string
	FS      fs.FS
}

type Registration struct {
	SourceLabel       string
	ValidationTargets []string
	Filesystems       []FilesystemSpec
}

type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

type Option func(*Registration)

// WithValidationTargets limits registration to the named dialects.
func WithValidationTargets(targets ...string) Option {
	return func(r *Registration) {
		if normalized := normalizeDialects(targets); len(normalized) > 0 {
			r.ValidationTargets = normalized
		}
	}
}

// Filesystems returns the embedded schema trees. Postgres files live at the
// root and sqlite files under sqlite/. Each tree must hold an *.up.sql file.
func Filesystems() ([]FilesystemSpec, error) {
	root, err := fs.Sub(trellolink.GetMigrationsFS(), schemaRoot)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve %s: %w", schemaRoot, err)
	}
	sqliteFS, err := fs.Sub(root, "sqlite")
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve sqlite schema: %w", err)
	}

	specs := []FilesystemSpec{
		{Dialect: DialectPostgres, Path: schemaRoot, FS: root},
		{Dialect: DialectSQLite, Path: schemaRoot + "/sqlite", FS: sqliteFS},
	}
	for _, spec := range specs {
		matches, err := fs.Glob(spec.FS, "*.up.sql")
		if err != nil {
			return nil, fmt.Errorf("migrations: glob %s: %w", spec.Path, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("migrations: %s schema %q has no *.up.sql files", spec.Dialect, spec.Path)
		}
	}
	return specs, nil
}

// ForDialect returns the schema tree for a single dialect.
func ForDialect(dialect string) (fs.FS, error) {
	specs, err := Filesystems()
	if err != nil {
		return nil, err
	}
	dialect = strings.ToLower(strings.TrimSpace(dialect))
	for _, spec := range specs {
		if spec.Dialect == dialect {
			return spec.FS, nil
		}
	}
	return nil, fmt.Errorf("migrations: unsupported dialect %q", dialect)
}

// Register hands each targeted schema tree to registerFn. Every target must
// name a known dialect.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (Registration, error) {
	reg := Registration{
		SourceLabel:       sourceLabel,
		ValidationTargets: []string{DialectPostgres, DialectSQLite},
	}
	if registerFn == nil {
		return reg, fmt.Errorf("migrations: register function is required")
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&reg)
		}
	}

	specs, err := Filesystems()
	if err != nil {
		return reg, err
	}
	reg.Filesystems = specs

	for _, target := range reg.ValidationTargets {
		index := slices.IndexFunc(specs, func(spec FilesystemSpec) bool { return spec.Dialect == target })
		if index < 0 {
			return reg, fmt.Errorf("migrations: unsupported dialect %q", target)
		}
		spec := specs[index]
		if err := registerFn(ctx, spec.Dialect, reg.SourceLabel, spec.FS); err != nil {
			return reg, fmt.Errorf("migrations: register %s (%s): %w", spec.Dialect, spec.Path, err)
		}
	}
	return reg, nil
}

func normalizeDialects(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		if value != "" && !slices.Contains(out, value) {
			out = append(out, value)
		}
	}
	return out
}
