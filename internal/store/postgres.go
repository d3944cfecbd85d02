package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/lib/pq"
)

// Ensure PostgresUpserter implements Upserter
var _ Upserter = (*PostgresUpserter)(nil)

// oddsColumns is the insert column order; values are bound in the same order.
var oddsColumns = []string{
	"event_id", "event_name", "raw_start_time", "display_name", "league",
	"sport_id", "bookmaker_id", "bookmaker_name", "market_type", "selection",
	"odds", "match_key", "updated_at",
}

// conflictColumns is the natural key of the odds table.
var conflictColumns = []string{"event_id", "bookmaker_id", "market_type", "selection"}

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// PostgresUpserter persists odds records into a single PostgreSQL table.
type PostgresUpserter struct {
	db    *sql.DB
	table string
}

// NewPostgresUpserter opens the database, pings it, and ensures the schema.
func NewPostgresUpserter(ctx context.Context, dsn, table string) (*PostgresUpserter, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	u := &PostgresUpserter{db: db, table: table}
	if err := u.initSchema(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	slog.Info("postgres_store_ready", "table", table)
	return u, nil
}

func (u *PostgresUpserter) initSchema(ctx context.Context) error {
	table := pq.QuoteIdentifier(u.table)
	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %[1]s (
		id BIGSERIAL PRIMARY KEY,
		event_id VARCHAR(100) NOT NULL,
		event_name VARCHAR(500) NOT NULL,
		raw_start_time VARCHAR(100),
		display_name VARCHAR(500) NOT NULL,
		league VARCHAR(200) NOT NULL,
		sport_id INTEGER NOT NULL,
		bookmaker_id INTEGER NOT NULL,
		bookmaker_name VARCHAR(100) NOT NULL,
		market_type VARCHAR(100) NOT NULL,
		selection VARCHAR(100) NOT NULL,
		odds DECIMAL(10, 4) NOT NULL,
		match_key VARCHAR(500),
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE(event_id, bookmaker_id, market_type, selection)
	);

	CREATE INDEX IF NOT EXISTS %[2]s ON %[1]s(match_key);
	`, table, pq.QuoteIdentifier("idx_"+u.table+"_match_key"))

	_, err := u.db.ExecContext(ctx, query)
	return err
}

// UpsertOdds writes the batch in one statement. Rows sharing a conflict key
// are overwritten.
func (u *PostgresUpserter) UpsertOdds(ctx context.Context, records []OddsRecord) error {
	if len(records) == 0 {
		return nil
	}

	query, args := buildUpsert(u.table, DedupeLatest(records))
	if _, err := u.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert into %s failed: %w", u.table, err)
	}
	return nil
}

// Close closes the database connection.
func (u *PostgresUpserter) Close() error {
	return u.db.Close()
}

// buildUpsert renders a multi-row INSERT ... ON CONFLICT DO UPDATE statement.
func buildUpsert(table string, records []OddsRecord) (string, []interface{}) {
	var b strings.Builder
	args := make([]interface{}, 0, len(records)*len(oddsColumns))

	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", pq.QuoteIdentifier(table), strings.Join(oddsColumns, ", "))

	for i, r := range records {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j := range oddsColumns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", i*len(oddsColumns)+j+1)
		}
		b.WriteByte(')')

		args = append(args,
			r.EventID, r.EventName, nullable(r.RawStartTime), r.DisplayName, r.League,
			r.SportID, r.BookmakerID, r.BookmakerName, r.MarketType, r.Selection,
			r.Odds, nullable(r.MatchKey), r.UpdatedAt.UTC(),
		)
	}

	fmt.Fprintf(&b, " ON CONFLICT (%s) DO UPDATE SET ", strings.Join(conflictColumns, ", "))

	updates := make([]string, 0, len(oddsColumns))
	for _, col := range oddsColumns {
		if isConflictColumn(col) {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}
	b.WriteString(strings.Join(updates, ", "))

	return b.String(), args
}

func isConflictColumn(col string) bool {
	for _, c := range conflictColumns {
		if c == col {
			return true
		}
	}
	return false
}
