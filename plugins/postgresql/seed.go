package postgresql

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Row maps column names to values.
type Row map[string]any

// TableSeed is the rows to insert into one table.
type TableSeed struct {
	Table string
	Rows  []Row
}

// SeedConfig lists tables to seed, in insertion order.
type SeedConfig []TableSeed

// SeedResult describes the insert issued for one table.
type SeedResult struct {
	Table         string   `json:"table"`
	Query         string   `json:"query"`
	Args          []string `json:"args"`
	InsertedCount int64    `json:"insertedCount"`
}

// SeedOutput holds one result per seeded table plus any notices the server
// raised during the run.
type SeedOutput struct {
	Results  []SeedResult `json:"results"`
	Warnings []Warning    `json:"warnings"`
}

// SeedStrategy inserts rows with one multi-row INSERT per table.
type SeedStrategy struct {
	Config SeedConfig
	Server *Server
}

func (s SeedStrategy) Run(ctx context.Context) (SeedOutput, error) {
	log := zap.S().Named("postgresql.seed")
	var out SeedOutput

	statements := make([]insertStatement, 0, len(s.Config))
	for _, seed := range s.Config {
		stmt, err := buildInsert(seed)
		if err != nil {
			return out, err
		}
		statements = append(statements, stmt)
	}

	client, err := s.Server.Connect(ctx)
	if err != nil {
		return out, fmt.Errorf("unable to seed database: %w", err)
	}
	defer func() { _ = client.Close() }()

	for _, stmt := range statements {
		res, err := client.DB.ExecContext(ctx, stmt.query, stmt.args...)
		if err != nil {
			out.Warnings = client.Warnings()
			return out, fmt.Errorf("unable to seed table %s: %w", stmt.table, err)
		}
		inserted, err := res.RowsAffected()
		if err != nil {
			return out, fmt.Errorf("unable to seed table %s: %w", stmt.table, err)
		}
		log.Debugw("seeded table", "table", stmt.table, "rows", inserted)
		out.Results = append(out.Results, SeedResult{
			Table:         stmt.table,
			Query:         stmt.query,
			Args:          stringArgs(stmt.args),
			InsertedCount: inserted,
		})
	}

	out.Warnings = client.Warnings()
	return out, nil
}

type insertStatement struct {
	table string
	query string
	args  []any
}

// buildInsert renders `INSERT INTO "t" (a,b) VALUES ($1,$2), ($3,$4);` for a
// table. Columns are the sorted keys of the first row and every row must
// carry exactly those keys.
func buildInsert(seed TableSeed) (insertStatement, error) {
	if len(seed.Rows) == 0 {
		return insertStatement{}, fmt.Errorf("unable to seed table %s: no rows", seed.Table)
	}

	columns := make([]string, 0, len(seed.Rows[0]))
	for col := range seed.Rows[0] {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	args := make([]any, 0, len(seed.Rows)*len(columns))
	tuples := make([]string, 0, len(seed.Rows))
	for i, row := range seed.Rows {
		if !sameKeys(row, columns) {
			return insertStatement{}, fmt.Errorf("unable to seed table %s: row %d does not have columns %s", seed.Table, i, strings.Join(columns, ","))
		}
		placeholders := make([]string, len(columns))
		for j, col := range columns {
			args = append(args, row[col])
			placeholders[j] = "$" + strconv.Itoa(len(args))
		}
		tuples = append(tuples, "("+strings.Join(placeholders, ",")+")")
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s;",
		pq.QuoteIdentifier(seed.Table),
		strings.Join(columns, ","),
		strings.Join(tuples, ", "),
	)
	return insertStatement{table: seed.Table, query: query, args: args}, nil
}

func sameKeys(row Row, columns []string) bool {
	if len(row) != len(columns) {
		return false
	}
	for _, col := range columns {
		if _, ok := row[col]; !ok {
			return false
		}
	}
	return true
}

func stringArgs(args []any) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = fmt.Sprint(a)
	}
	return out
}
