// Package sqlcheck validates migration files with the PostgreSQL parser
// before they are sent to a server.
package sqlcheck

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// Issue is a single problem found in a SQL file.
type Issue struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Severity string `json:"severity"` // "error" or "warning"
	Message  string `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s:%d: %s: %s", i.File, i.Line, strings.ToUpper(i.Severity), i.Message)
}

// Error is returned when one or more files fail validation.
type Error struct {
	Issues []Issue
}

func (e *Error) Error() string {
	if len(e.Issues) == 1 {
		return "invalid SQL in " + e.Issues[0].String()
	}
	lines := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		lines = append(lines, issue.String())
	}
	return fmt.Sprintf("invalid SQL (%d issues):\n%s", len(e.Issues), strings.Join(lines, "\n"))
}

// Files validates every file and returns an *Error listing all issues found.
func Files(paths []string) error {
	var issues []Issue
	for _, path := range paths {
		issues = append(issues, File(path)...)
	}
	if len(issues) > 0 {
		return &Error{Issues: issues}
	}
	return nil
}

// File validates a single SQL file.
func File(path string) []Issue {
	content, err := os.ReadFile(path)
	if err != nil {
		return []Issue{{
			File:     path,
			Line:     1,
			Severity: "error",
			Message:  fmt.Sprintf("failed to read file: %v", err),
		}}
	}
	return Source(path, string(content))
}

// Source validates SQL text, reporting issues against the given file name.
// When the whole text fails to parse it is split into statements so that
// every broken statement is reported with its own line number.
func Source(file, sql string) []Issue {
	if issues := typoCheck(file, sql); len(issues) > 0 {
		return issues
	}

	if _, err := pg_query.Parse(sql); err == nil {
		return nil
	}

	var issues []Issue
	for _, stmt := range splitStatements(sql) {
		if isBlank(stmt.sql) {
			continue
		}
		if _, err := pg_query.Parse(stmt.sql); err != nil {
			issues = append(issues, Issue{
				File:     file,
				Line:     stmt.startLine,
				Severity: "error",
				Message:  err.Error(),
			})
		}
	}
	return issues
}

var timestampzPattern = regexp.MustCompile(`(?i)\bTIMESTAMPZ\b`)

// typoCheck catches mistakes the parser accepts as user-defined type names.
func typoCheck(file, sql string) []Issue {
	loc := timestampzPattern.FindStringIndex(sql)
	if loc == nil {
		return nil
	}
	return []Issue{{
		File:     file,
		Line:     lineAt(sql, loc[0]),
		Severity: "error",
		Message:  "unknown data type 'TIMESTAMPZ', did you mean 'TIMESTAMPTZ'?",
	}}
}

func lineAt(content string, offset int) int {
	return strings.Count(content[:offset], "\n") + 1
}

// isBlank reports whether a statement holds only whitespace and line comments.
func isBlank(stmt string) bool {
	for _, line := range strings.Split(strings.TrimSpace(stmt), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == ";" || strings.HasPrefix(line, "--") {
			continue
		}
		return false
	}
	return true
}

type statement struct {
	sql       string
	startLine int
}

// splitStatements splits SQL on semicolons outside quotes and comments,
// keeping the line each statement starts on.
func splitStatements(sql string) []statement {
	var statements []statement
	var current strings.Builder
	line := 1
	startLine := 1
	started := false

	inSingleQuote := false
	inDoubleQuote := false
	inLineComment := false
	inBlockComment := false

	runes := []rune(sql)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]

		if ch == '\n' {
			line++
			inLineComment = false
		}

		if !inSingleQuote && !inDoubleQuote {
			if !inBlockComment && i+1 < len(runes) && ch == '-' && runes[i+1] == '-' {
				inLineComment = true
			}
			if !inLineComment && i+1 < len(runes) && ch == '/' && runes[i+1] == '*' {
				inBlockComment = true
			}
			if inBlockComment && i+1 < len(runes) && ch == '*' && runes[i+1] == '/' {
				inBlockComment = false
				current.WriteRune(ch)
				i++
				current.WriteRune(runes[i])
				continue
			}
		}

		if !inLineComment && !inBlockComment {
			if ch == '\'' && !inDoubleQuote {
				inSingleQuote = !inSingleQuote
			}
			if ch == '"' && !inSingleQuote {
				inDoubleQuote = !inDoubleQuote
			}
		}

		if ch == ';' && !inSingleQuote && !inDoubleQuote && !inLineComment && !inBlockComment {
			current.WriteRune(ch)
			statements = append(statements, statement{sql: current.String(), startLine: startLine})
			current.Reset()
			started = false
			continue
		}

		if !started && !inLineComment && !inBlockComment && !isSpace(ch) {
			startLine = line
			started = true
		}

		current.WriteRune(ch)
	}

	if strings.TrimSpace(current.String()) != "" {
		statements = append(statements, statement{sql: current.String(), startLine: startLine})
	}

	return statements
}

func isSpace(ch rune) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}
