package postgresql

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/nifty-lil-tricks/testharness/internal/sqlcheck"
)

// MigrationStrategy names how migrations are applied.
type MigrationStrategy string

const (
	StrategySQL MigrationStrategy = "SQL"
)

// OrderBy controls the order in which discovered migration files are applied.
type OrderBy string

const (
	FilenameAsc  OrderBy = "FILENAME_ASC"
	FilenameDesc OrderBy = "FILENAME_DESC"
)

const defaultMigrationFiles = "**/*.sql"

// ErrNoMigrationFiles is returned when discovery finds nothing to apply.
var ErrNoMigrationFiles = errors.New("No SQL files found")

// MigrationConfig selects the migration files to apply.
type MigrationConfig struct {
	// Strategy defaults to StrategySQL.
	Strategy MigrationStrategy
	// Root is the directory searched for files. Defaults to the working directory.
	Root string
	// Files is a glob relative to Root. "**" matches any number of directories.
	Files string
	// FilesFunc, when set, replaces discovery. Its result is applied as returned.
	FilesFunc func() ([]string, error)
	// OrderBy sorts discovered files by full path. Defaults to FilenameAsc.
	OrderBy OrderBy
	// Validate parses every file with the PostgreSQL parser before anything
	// is applied.
	Validate bool
}

// MigrationResult describes one applied file.
type MigrationResult struct {
	Name    string           `json:"name"`
	Message string           `json:"message"`
	Details MigrationDetails `json:"details"`
}

type MigrationDetails struct {
	Query string `json:"query"`
}

// MigrationOutput lists the applied files in application order.
type MigrationOutput struct {
	Migrations []MigrationResult `json:"migrations"`
}

// SQLMigrationStrategy applies plain SQL files, one batch per file. No
// history is kept: every run applies every file.
type SQLMigrationStrategy struct {
	Config MigrationConfig
	Server *Server
}

// Run applies the configured files. Failures are returned as *MigrationError
// carrying the results of the files applied before the failure.
func (s SQLMigrationStrategy) Run(ctx context.Context) (MigrationOutput, error) {
	log := zap.S().Named("postgresql.migrate")
	var out MigrationOutput

	files, err := s.Config.ListFiles()
	if err != nil {
		return out, &MigrationError{Err: err}
	}

	if s.Config.Validate {
		if err := sqlcheck.Files(files); err != nil {
			return out, &MigrationError{Err: err}
		}
	}

	client, err := s.Server.Connect(ctx)
	if err != nil {
		return out, &MigrationError{Err: err}
	}
	defer func() { _ = client.Close() }()

	for _, file := range files {
		name := filepath.Base(file)
		query, err := os.ReadFile(file)
		if err != nil {
			log.Debugw("failed to read migration", "file", file, "error", err)
			return out, &MigrationError{Applied: out.Migrations, File: file, Err: err}
		}
		if _, err := client.DB.ExecContext(ctx, string(query)); err != nil {
			log.Debugw("failed to apply migration", "file", file, "error", err)
			return out, &MigrationError{Applied: out.Migrations, File: file, Err: err}
		}

		log.Debugw("applied migration", "file", file)
		out.Migrations = append(out.Migrations, MigrationResult{
			Name:    name,
			Message: "Applied migration: " + name,
			Details: MigrationDetails{Query: string(query)},
		})
	}

	return out, nil
}

// ListFiles returns the files a run would apply, in application order.
func (c MigrationConfig) ListFiles() ([]string, error) {
	var files []string
	if c.FilesFunc != nil {
		var err error
		if files, err = c.FilesFunc(); err != nil {
			return nil, err
		}
	} else {
		var err error
		if files, err = discover(c.Root, c.Files); err != nil {
			return nil, err
		}
		if c.OrderBy == FilenameDesc {
			sort.Sort(sort.Reverse(sort.StringSlice(files)))
		} else {
			sort.Strings(files)
		}
	}

	if len(files) == 0 {
		return nil, ErrNoMigrationFiles
	}
	return files, nil
}

// discover returns the files under root matching pattern.
func discover(root, pattern string) ([]string, error) {
	if root == "" {
		var err error
		if root, err = os.Getwd(); err != nil {
			return nil, fmt.Errorf("failed to resolve working directory: %w", err)
		}
	}
	if pattern == "" {
		pattern = defaultMigrationFiles
	}

	matches, err := doublestar.Glob(os.DirFS(root), filepath.ToSlash(pattern), doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("invalid migration file pattern %q: %w", pattern, err)
	}

	files := make([]string, 0, len(matches))
	for _, m := range matches {
		files = append(files, filepath.Join(root, filepath.FromSlash(m)))
	}
	return files, nil
}
