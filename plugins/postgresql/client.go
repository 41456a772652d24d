package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
)

// Warning is a notice raised by the server while statements ran.
type Warning struct {
	Severity string `json:"severity"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

// Dialer opens a database handle for a connection. onNotice, when non-nil,
// receives every notice the server sends on that handle.
type Dialer func(ctx context.Context, conn Connection, onNotice func(Warning)) (*sql.DB, error)

// DialPQ is the default Dialer, backed by github.com/lib/pq.
func DialPQ(_ context.Context, conn Connection, onNotice func(Warning)) (*sql.DB, error) {
	connector, err := pq.NewConnector(conn.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}
	if onNotice == nil {
		return sql.OpenDB(connector), nil
	}
	withNotices := pq.ConnectorWithNoticeHandler(connector, func(notice *pq.Error) {
		onNotice(Warning{
			Severity: notice.Severity,
			Code:     string(notice.Code),
			Message:  notice.Message,
		})
	})
	return sql.OpenDB(withNotices), nil
}

// Client is a database handle that collects server notices.
type Client struct {
	DB *sql.DB

	mu       sync.Mutex
	warnings []Warning
}

// Connect opens a client for conn and verifies it with a ping.
func Connect(ctx context.Context, dial Dialer, conn Connection) (*Client, error) {
	if dial == nil {
		dial = DialPQ
	}
	c := &Client{}
	db, err := dial(ctx, conn, c.addWarning)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	c.DB = db
	return c, nil
}

func (c *Client) addWarning(w Warning) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.warnings = append(c.warnings, w)
}

// Warnings returns the notices received so far.
func (c *Client) Warnings() []Warning {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Warning(nil), c.warnings...)
}

// Count returns the number of rows in table.
func (c *Client) Count(ctx context.Context, table string) (int64, error) {
	query, args, err := sq.Select("count(*)").From(pq.QuoteIdentifier(table)).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count query: %w", err)
	}
	var n int64
	if err := c.DB.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows in %s: %w", table, err)
	}
	return n, nil
}

// Close closes the underlying handle.
func (c *Client) Close() error {
	if c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
