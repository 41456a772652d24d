package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nifty-lil-tricks/testharness/internal/command/commandtest"
	"github.com/nifty-lil-tricks/testharness/internal/testdb"
)

// sqliteDialer ignores the connection and opens the SQLite file at path.
func sqliteDialer(path string) Dialer {
	return func(context.Context, Connection, func(Warning)) (*sql.DB, error) {
		return testdb.OpenSQLite(path)
	}
}

// sqliteServer returns a server backed by a fresh SQLite database.
func sqliteServer(t *testing.T) *Server {
	t.Helper()
	s := NewServer("sqlite", Connection{ServerName: "sqlite", Hostname: "localhost", Port: 5432, Database: "test"})
	s.dial = sqliteDialer(testdb.SQLitePath(t))
	return s
}

func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	undo := zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(undo)
	return logs
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func inspectJSON(hostIP, hostPort string) string {
	return fmt.Sprintf(`[{"Id":"abc123","NetworkSettings":{"Ports":{"5432/tcp":[{"HostIp":%q,"HostPort":%q}]}}}]`, hostIP, hostPort)
}

// healthyRunner scripts a container that starts, inspects and reports ready.
func healthyRunner() *commandtest.Runner {
	return commandtest.NewRunner().
		On("run", commandtest.Stdout("abc123\n")).
		On("inspect", commandtest.Stdout(inspectJSON("0.0.0.0", "1234")))
}
