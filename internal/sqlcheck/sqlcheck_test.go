package sqlcheck

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSource_Valid(t *testing.T) {
	sql := `-- users
CREATE TABLE "User" (
  id SERIAL PRIMARY KEY,
  email TEXT NOT NULL,
  name TEXT
);
INSERT INTO "User" (email, name) VALUES ('a;b@example.com', 'semi;colon');`

	assert.Empty(t, Source("001_users.sql", sql))
}

func TestSource_LineNumbers(t *testing.T) {
	tests := []struct {
		name         string
		sql          string
		expectedLine int
		expectedMsg  string
	}{
		{
			name: "syntax error after blank lines",
			sql: `-- Comment
CREATE TABLE projects (
  id TEXT PRIMARY KEY
);

-- Another comment
CREATE ha TABLE todos (
  id TEXT PRIMARY KEY
);`,
			expectedLine: 7,
			expectedMsg:  `syntax error at or near "ha"`,
		},
		{
			name: "syntax error on first statement",
			sql: `CREATE ha TABLE users (
  id TEXT PRIMARY KEY
);`,
			expectedLine: 1,
			expectedMsg:  `syntax error at or near "ha"`,
		},
		{
			name:         "timestampz typo",
			sql:          "CREATE TABLE events (\n  at TIMESTAMPZ\n);",
			expectedLine: 2,
			expectedMsg:  "TIMESTAMPTZ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues := Source("test.sql", tt.sql)
			require.NotEmpty(t, issues)
			assert.Equal(t, tt.expectedLine, issues[0].Line)
			assert.Contains(t, issues[0].Message, tt.expectedMsg)
			assert.Equal(t, "test.sql", issues[0].File)
		})
	}
}

func TestSource_ReportsEveryBrokenStatement(t *testing.T) {
	sql := `CREATE ha TABLE a (id INT);
CREATE TABLE b (id INT);
CREATE oops TABLE c (id INT);`

	issues := Source("multi.sql", sql)
	require.Len(t, issues, 2)
	assert.Equal(t, 1, issues[0].Line)
	assert.Equal(t, 3, issues[1].Line)
}

func TestSplitStatements(t *testing.T) {
	sql := `SELECT 'a;b';
/* block; comment */
SELECT "weird;name" FROM t; -- trailing; comment
SELECT 3`

	statements := splitStatements(sql)
	require.Len(t, statements, 3)
	assert.Equal(t, 1, statements[0].startLine)
	assert.Equal(t, 3, statements[1].startLine)
	assert.Contains(t, statements[1].sql, "block; comment")
	assert.Contains(t, statements[1].sql, `"weird;name"`)
	assert.Equal(t, 4, statements[2].startLine)
	assert.False(t, isBlank(statements[2].sql))
}

func TestFiles(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "001_good.sql")
	bad := filepath.Join(dir, "002_bad.sql")
	require.NoError(t, os.WriteFile(good, []byte("CREATE TABLE a (id INT);"), 0o644))
	require.NoError(t, os.WriteFile(bad, []byte("CREATE ha TABLE b (id INT);"), 0o644))

	require.NoError(t, Files([]string{good}))

	err := Files([]string{good, bad})
	require.Error(t, err)

	var checkErr *Error
	require.ErrorAs(t, err, &checkErr)
	require.Len(t, checkErr.Issues, 1)
	assert.Equal(t, bad, checkErr.Issues[0].File)
	assert.Contains(t, err.Error(), "002_bad.sql:1")
}

func TestFile_Missing(t *testing.T) {
	issues := File(filepath.Join(t.TempDir(), "nope.sql"))
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0].Message, "failed to read file")
}
