package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nifty-lil-tricks/testharness/config"
	"github.com/nifty-lil-tricks/testharness/internal/sqlcheck"
)

func init() {
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check [file-or-directory...]",
	Short: "Check migration files for SQL syntax errors",
	Long: `Parse migration files with the PostgreSQL parser without connecting to a
database. With no arguments the files selected by the [migrate] section of
testharness.toml are checked.`,
	Example: `  # Check the configured migrations
  testharness check

  # Check a directory and a single file
  testharness check db/migrations extra/001_fixup.sql`,
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	files, err := checkFiles(args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	err = sqlcheck.Files(files)

	var checkErr *sqlcheck.Error
	if errors.As(err, &checkErr) {
		for _, issue := range checkErr.Issues {
			printWarning(out, "%s", issue)
		}
		return fmt.Errorf("%d of %d migration files have errors", countFiles(checkErr.Issues), len(files))
	}
	if err != nil {
		return err
	}

	printSuccess(out, "%d migration files are valid", len(files))
	return nil
}

func checkFiles(args []string) ([]string, error) {
	if len(args) == 0 {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		return cfg.PostgresDefaults().Migrate.ListFiles()
	}

	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to access %s: %w", arg, err)
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		cfg, err := config.LoadFrom(arg)
		if err != nil {
			return nil, err
		}
		migrate := cfg.PostgresDefaults().Migrate
		migrate.Root = filepath.Clean(arg)
		found, err := migrate.ListFiles()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", arg, err)
		}
		files = append(files, found...)
	}
	return files, nil
}

func countFiles(issues []sqlcheck.Issue) int {
	seen := map[string]bool{}
	for _, issue := range issues {
		seen[issue.File] = true
	}
	return len(seen)
}
