// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"fii-alerts/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string, logger zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Subscribers table, owned by the account subsystem
	CREATE TABLE IF NOT EXISTS subscribers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT NOT NULL,
		phone_verified INTEGER NOT NULL DEFAULT 0,
		prefs_fnet INTEGER NOT NULL DEFAULT 0,
		prefs_price INTEGER NOT NULL DEFAULT 0,
		prefs_dividend INTEGER NOT NULL DEFAULT 0,
		prefs_btc INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Listed funds
	CREATE TABLE IF NOT EXISTS funds (
		ticker TEXT PRIMARY KEY,
		name TEXT NOT NULL
	);

	-- Watchlist association between subscribers and funds
	CREATE TABLE IF NOT EXISTS fund_follows (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		subscriber_id TEXT NOT NULL,
		ticker TEXT NOT NULL,
		notifications_enabled INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(subscriber_id, ticker),
		FOREIGN KEY (subscriber_id) REFERENCES subscribers(id) ON DELETE CASCADE
	);

	-- Alert ledger: one row per (recipient, event) delivery
	CREATE TABLE IF NOT EXISTS sent_alerts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		subscriber_id TEXT NOT NULL,
		dedup_key TEXT NOT NULL,
		category TEXT NOT NULL,
		sent_at DATETIME NOT NULL,
		metadata TEXT,
		UNIQUE(subscriber_id, dedup_key),
		FOREIGN KEY (subscriber_id) REFERENCES subscribers(id) ON DELETE CASCADE
	);

	-- Dividend cache populated by the dividend poll job
	CREATE TABLE IF NOT EXISTS fii_dividends (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ticker TEXT NOT NULL,
		payment_date DATETIME NOT NULL,
		rate REAL NOT NULL,
		related_to TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(ticker, payment_date, related_to)
	);

	CREATE INDEX IF NOT EXISTS idx_follows_ticker ON fund_follows(ticker);
	CREATE INDEX IF NOT EXISTS idx_follows_subscriber ON fund_follows(subscriber_id);
	CREATE INDEX IF NOT EXISTS idx_sent_alerts_sent_at ON sent_alerts(sent_at);
	CREATE INDEX IF NOT EXISTS idx_sent_alerts_category ON sent_alerts(category);
	CREATE INDEX IF NOT EXISTS idx_dividends_ticker ON fii_dividends(ticker);
	CREATE INDEX IF NOT EXISTS idx_dividends_payment ON fii_dividends(payment_date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Alert Ledger Methods
// ============================================================================

// HasBeenSent reports whether a ledger entry exists for the given recipient
// and dedup key. Storage errors fail open: a transient database problem must
// never permanently starve a subscriber, a duplicate send is the accepted
// tradeoff.
func (s *SQLiteStore) HasBeenSent(ctx context.Context, subscriberID, dedupKey string) bool {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM sent_alerts
		WHERE subscriber_id = ? AND dedup_key = ?
	`, subscriberID, dedupKey).Scan(&n)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("subscriber", subscriberID).
			Str("dedup_key", dedupKey).
			Msg("ledger read failed, treating as not sent")
		return false
	}
	return n > 0
}

// RecordSent inserts a ledger entry, refreshing the timestamp if the same
// (recipient, dedup key) row already exists. Returns false on storage error;
// the caller must not treat that as fatal to the run.
func (s *SQLiteStore) RecordSent(ctx context.Context, entry models.LedgerEntry) bool {
	sentAt := entry.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sent_alerts (subscriber_id, dedup_key, category, sent_at, metadata)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(subscriber_id, dedup_key) DO UPDATE SET sent_at = excluded.sent_at
	`, entry.SubscriberID, entry.DedupKey, string(entry.Category), sentAt, entry.Metadata)
	if err != nil {
		s.logger.Error().Err(err).
			Str("subscriber", entry.SubscriberID).
			Str("dedup_key", entry.DedupKey).
			Msg("ledger write failed, notification may be resent next cycle")
		return false
	}
	return true
}

// PurgeOlderThan deletes ledger entries older than the retention horizon.
func (s *SQLiteStore) PurgeOlderThan(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM sent_alerts WHERE sent_at < ?
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge ledger: %w", err)
	}
	return res.RowsAffected()
}

// LedgerStats summarizes the ledger.
func (s *SQLiteStore) LedgerStats(ctx context.Context) (LedgerStats, error) {
	stats := LedgerStats{ByCategory: make(map[models.AlertCategory]int64)}

	// MIN/MAX strip the column's declared DATETIME type, so the driver hands
	// the aggregates back as raw strings. Scan and parse them explicitly.
	var oldest, newest sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1), COUNT(DISTINCT subscriber_id), MIN(sent_at), MAX(sent_at)
		FROM sent_alerts
	`).Scan(&stats.TotalEntries, &stats.DistinctUsers, &oldest, &newest)
	if err != nil {
		return stats, fmt.Errorf("failed to query ledger stats: %w", err)
	}
	if oldest.Valid {
		if stats.OldestEntry, err = parseStoredTime(oldest.String); err != nil {
			return stats, fmt.Errorf("failed to parse oldest ledger timestamp: %w", err)
		}
	}
	if newest.Valid {
		if stats.NewestEntry, err = parseStoredTime(newest.String); err != nil {
			return stats, fmt.Errorf("failed to parse newest ledger timestamp: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT category, COUNT(1) FROM sent_alerts GROUP BY category
	`)
	if err != nil {
		return stats, fmt.Errorf("failed to query category counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var cat string
		var n int64
		if err := rows.Scan(&cat, &n); err != nil {
			return stats, fmt.Errorf("failed to scan category count: %w", err)
		}
		stats.ByCategory[models.AlertCategory(cat)] = n
	}
	return stats, rows.Err()
}

// sqliteTimeLayouts are the formats go-sqlite3 uses when binding a time.Time,
// in the order it tries them itself.
var sqliteTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func parseStoredTime(s string) (time.Time, error) {
	for _, layout := range sqliteTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// ============================================================================
// Subscriber & Follow Methods
// ============================================================================

const subscriberColumns = `
	id, name, phone, phone_verified,
	prefs_fnet, prefs_price, prefs_dividend, prefs_btc, created_at
`

func scanSubscriber(rows *sql.Rows) (models.Subscriber, error) {
	var sub models.Subscriber
	err := rows.Scan(
		&sub.ID, &sub.Name, &sub.Phone, &sub.PhoneVerified,
		&sub.Prefs.Fnet, &sub.Prefs.Price, &sub.Prefs.Dividend, &sub.Prefs.Bitcoin,
		&sub.CreatedAt,
	)
	return sub, err
}

// SubscribersWithCategory returns subscribers with the given category toggle
// on. Contact verification is filtered here too so the resolver never sees
// an unverified phone.
func (s *SQLiteStore) SubscribersWithCategory(ctx context.Context, category models.AlertCategory) ([]models.Subscriber, error) {
	var column string
	switch category {
	case models.CategoryFnet:
		column = "prefs_fnet"
	case models.CategoryPrice:
		column = "prefs_price"
	case models.CategoryDividend:
		column = "prefs_dividend"
	case models.CategoryBitcoin:
		column = "prefs_btc"
	default:
		return nil, fmt.Errorf("unknown alert category: %s", category)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM subscribers
		WHERE %s = 1 AND phone_verified = 1
		ORDER BY created_at ASC
	`, subscriberColumns, column))
	if err != nil {
		return nil, fmt.Errorf("failed to query subscribers: %w", err)
	}
	defer rows.Close()

	var subs []models.Subscriber
	for rows.Next() {
		sub, err := scanSubscriber(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscriber: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// ListSubscribers returns all subscribers.
func (s *SQLiteStore) ListSubscribers(ctx context.Context) ([]models.Subscriber, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM subscribers ORDER BY created_at ASC
	`, subscriberColumns))
	if err != nil {
		return nil, fmt.Errorf("failed to query subscribers: %w", err)
	}
	defer rows.Close()

	var subs []models.Subscriber
	for rows.Next() {
		sub, err := scanSubscriber(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscriber: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// FollowedTickers returns the funds a subscriber follows.
func (s *SQLiteStore) FollowedTickers(ctx context.Context, subscriberID string) ([]models.FundFollow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT subscriber_id, ticker, notifications_enabled
		FROM fund_follows
		WHERE subscriber_id = ?
		ORDER BY ticker ASC
	`, subscriberID)
	if err != nil {
		return nil, fmt.Errorf("failed to query follows: %w", err)
	}
	defer rows.Close()

	var follows []models.FundFollow
	for rows.Next() {
		var f models.FundFollow
		if err := rows.Scan(&f.SubscriberID, &f.Ticker, &f.NotificationsEnabled); err != nil {
			return nil, fmt.Errorf("failed to scan follow: %w", err)
		}
		follows = append(follows, f)
	}
	return follows, rows.Err()
}

// AllFollowedTickers returns the distinct tickers followed by any
// subscriber with notifications enabled, the universe the price poller
// quotes.
func (s *SQLiteStore) AllFollowedTickers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT ticker FROM fund_follows
		WHERE notifications_enabled = 1
		ORDER BY ticker ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query followed tickers: %w", err)
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan ticker: %w", err)
		}
		tickers = append(tickers, t)
	}
	return tickers, rows.Err()
}

// SaveFund inserts or updates a listed fund.
func (s *SQLiteStore) SaveFund(ctx context.Context, fund models.Fund) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO funds (ticker, name) VALUES (?, ?)
		ON CONFLICT(ticker) DO UPDATE SET name = excluded.name
	`, fund.Ticker, fund.Name)
	if err != nil {
		return fmt.Errorf("failed to save fund: %w", err)
	}
	return nil
}

// ============================================================================
// Dividend Cache Methods
// ============================================================================

// SaveDividends persists a batch of dividend records, ignoring duplicates.
func (s *SQLiteStore) SaveDividends(ctx context.Context, dividends []models.Dividend) error {
	if len(dividends) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO fii_dividends (ticker, payment_date, rate, related_to)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, d := range dividends {
		if _, err := stmt.ExecContext(ctx, d.Ticker, d.PaymentDate, d.Rate, d.RelatedTo); err != nil {
			return fmt.Errorf("failed to insert dividend: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetDividends returns cached dividends for a ticker paid at or after since.
func (s *SQLiteStore) GetDividends(ctx context.Context, ticker string, since time.Time) ([]models.Dividend, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ticker, payment_date, rate, related_to
		FROM fii_dividends
		WHERE ticker = ? AND payment_date >= ?
		ORDER BY payment_date ASC
	`, ticker, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query dividends: %w", err)
	}
	defer rows.Close()

	var dividends []models.Dividend
	for rows.Next() {
		var d models.Dividend
		if err := rows.Scan(&d.Ticker, &d.PaymentDate, &d.Rate, &d.RelatedTo); err != nil {
			return nil, fmt.Errorf("failed to scan dividend: %w", err)
		}
		dividends = append(dividends, d)
	}
	return dividends, rows.Err()
}

// ============================================================================
// Test Seeding Helpers
// ============================================================================

// SeedSubscriber inserts a subscriber row directly. The account subsystem
// owns these rows in production; this exists for tests and local setup.
func (s *SQLiteStore) SeedSubscriber(ctx context.Context, sub models.Subscriber) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO subscribers
		(id, name, phone, phone_verified, prefs_fnet, prefs_price, prefs_dividend, prefs_btc)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, sub.ID, sub.Name, sub.Phone, sub.PhoneVerified,
		sub.Prefs.Fnet, sub.Prefs.Price, sub.Prefs.Dividend, sub.Prefs.Bitcoin)
	return err
}

// SeedFollow inserts a follow row directly, for tests and local setup.
func (s *SQLiteStore) SeedFollow(ctx context.Context, follow models.FundFollow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO fund_follows (subscriber_id, ticker, notifications_enabled)
		VALUES (?, ?, ?)
	`, follow.SubscriberID, follow.Ticker, follow.NotificationsEnabled)
	return err
}
