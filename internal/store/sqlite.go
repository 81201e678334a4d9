package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

type WatchlistItem struct {
	Symbol      string `json:"symbol" yaml:"symbol"`
	CompanyName string `json:"company_name" yaml:"company_name"`
	Position    int    `json:"position" yaml:"-"`
	CreatedAt   string `json:"created_at,omitempty" yaml:"-"`
}

type MarketSnapshot struct {
	TS        int64   `json:"ts"`
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	ChangePct float64 `json:"change_pct"`
	Volume    float64 `json:"volume"`
	Raw       string  `json:"raw"`
	CreatedAt string  `json:"created_at"`
}

func Open(path string) (*Store, error) {
	if path == "" {
		path = "data/stocksage.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=3000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS watchlist (
			symbol TEXT PRIMARY KEY,
			company_name TEXT,
			position INTEGER NOT NULL DEFAULT 0,
			created_at TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS market_snapshot (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			symbol TEXT,
			price REAL,
			change_pct REAL,
			volume REAL,
			raw TEXT,
			created_at TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_market_snapshot_ts ON market_snapshot(ts);`,
		`CREATE INDEX IF NOT EXISTS idx_market_snapshot_symbol ON market_snapshot(symbol);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// SeedWatchlist inserts items only when the watchlist is empty, so edits made
// through the API survive restarts.
func (s *Store) SeedWatchlist(items []WatchlistItem) error {
	if s == nil || s.db == nil {
		return nil
	}
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM watchlist`).Scan(&count); err != nil {
		return fmt.Errorf("count watchlist: %w", err)
	}
	if count > 0 {
		return nil
	}
	for i, item := range items {
		item.Position = i
		if err := s.UpsertWatchlistItem(item); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) UpsertWatchlistItem(item WatchlistItem) error {
	if s == nil || s.db == nil {
		return nil
	}
	item.Symbol = NormalizeSymbol(item.Symbol)
	if item.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if item.CreatedAt == "" {
		item.CreatedAt = time.Now().Format(time.RFC3339)
	}
	_, err := s.db.Exec(
		`INSERT INTO watchlist (symbol, company_name, position, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(symbol) DO UPDATE SET company_name=excluded.company_name, position=excluded.position`,
		item.Symbol, item.CompanyName, item.Position, item.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert watchlist: %w", err)
	}
	return nil
}

// DeleteWatchlistItem returns sql.ErrNoRows when the symbol is not listed.
func (s *Store) DeleteWatchlistItem(symbol string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store not initialized")
	}
	res, err := s.db.Exec(`DELETE FROM watchlist WHERE symbol = ?`, NormalizeSymbol(symbol))
	if err != nil {
		return fmt.Errorf("delete watchlist: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) ListWatchlist() ([]WatchlistItem, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store not initialized")
	}
	rows, err := s.db.Query(`SELECT symbol, company_name, position, created_at FROM watchlist ORDER BY position ASC, symbol ASC`)
	if err != nil {
		return nil, fmt.Errorf("query watchlist: %w", err)
	}
	defer rows.Close()

	out := []WatchlistItem{}
	for rows.Next() {
		var item WatchlistItem
		if err := rows.Scan(&item.Symbol, &item.CompanyName, &item.Position, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan watchlist: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows watchlist: %w", err)
	}
	return out, nil
}

// WatchlistSymbols is ListWatchlist reduced to symbols; errors yield nil.
func (s *Store) WatchlistSymbols() []string {
	items, err := s.ListWatchlist()
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Symbol)
	}
	return out
}

func (s *Store) InsertMarketSnapshot(ms MarketSnapshot) error {
	if s == nil || s.db == nil {
		return nil
	}
	if ms.CreatedAt == "" {
		ms.CreatedAt = time.Now().Format(time.RFC3339)
	}
	_, err := s.db.Exec(
		`INSERT INTO market_snapshot (ts, symbol, price, change_pct, volume, raw, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ms.TS, NormalizeSymbol(ms.Symbol), ms.Price, ms.ChangePct, ms.Volume, ms.Raw, ms.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert market snapshot: %w", err)
	}
	return nil
}

func (s *Store) QueryMarketSnapshots(symbol string, limit int, offset int) ([]MarketSnapshot, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store not initialized")
	}
	if limit <= 0 {
		limit = 200
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ts, symbol, price, change_pct, volume, raw, created_at
		FROM market_snapshot WHERE symbol = ?
		ORDER BY ts DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := s.db.Query(query, NormalizeSymbol(symbol), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query market snapshot: %w", err)
	}
	defer rows.Close()
	out := []MarketSnapshot{}
	for rows.Next() {
		var ms MarketSnapshot
		if err := rows.Scan(&ms.TS, &ms.Symbol, &ms.Price, &ms.ChangePct, &ms.Volume, &ms.Raw, &ms.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan market snapshot: %w", err)
		}
		out = append(out, ms)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows market snapshot: %w", err)
	}
	return out, nil
}

// NormalizeSymbol upper-cases exchange tickers and lower-cases sh/sz
// A-share codes, matching what the quote providers return.
func NormalizeSymbol(symbol string) string {
	s := strings.TrimSpace(symbol)
	lower := strings.ToLower(s)
	if (strings.HasPrefix(lower, "sh") || strings.HasPrefix(lower, "sz")) && len(lower) == 8 && isDigits(lower[2:]) {
		return lower
	}
	return strings.ToUpper(s)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
