package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/aluiziolira/go-crawl-books/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS books (
	url TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	scraped_at DATETIME NOT NULL,
	title TEXT,
	price REAL,
	amount_in_stock INTEGER,
	rating INTEGER,
	category TEXT,
	description TEXT,
	upc TEXT
);

CREATE INDEX IF NOT EXISTS idx_books_run ON books(run_id);
CREATE INDEX IF NOT EXISTS idx_books_upc ON books(upc);
`

const sqliteUpsert = `
INSERT INTO books (url, run_id, scraped_at, title, price, amount_in_stock, rating, category, description, upc)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(url) DO UPDATE SET
	run_id = excluded.run_id,
	scraped_at = excluded.scraped_at,
	title = excluded.title,
	price = excluded.price,
	amount_in_stock = excluded.amount_in_stock,
	rating = excluded.rating,
	category = excluded.category,
	description = excluded.description,
	upc = excluded.upc
`

// SQLiteWriter stores records in a SQLite table keyed by page URL. A
// re-crawl of the same page replaces the earlier row.
type SQLiteWriter struct {
	db    *sql.DB
	runID string
}

// NewSQLiteWriter opens or creates the database at path.
func NewSQLiteWriter(path, runID string) (*SQLiteWriter, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create sqlite schema: %w", err)
	}

	return &SQLiteWriter{db: db, runID: runID}, nil
}

// Write upserts books in a single transaction.
func (sw *SQLiteWriter) Write(books []*models.Book) error {
	ctx := context.Background()

	tx, err := sw.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sqlite transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, sqliteUpsert)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare sqlite upsert: %w", err)
	}
	defer stmt.Close()

	for _, book := range books {
		scrapedAt := book.ScrapedAt
		if scrapedAt.IsZero() {
			scrapedAt = time.Now()
		}
		_, err := stmt.ExecContext(ctx,
			book.URL,
			sw.runID,
			scrapedAt.UTC().Format(time.RFC3339),
			nullable(book.Title),
			nullable(book.Price),
			nullable(book.AmountInStock),
			nullable(book.Rating),
			nullable(book.Category),
			nullable(book.Description),
			nullable(book.UPC),
		)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert book %q: %w", book.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sqlite transaction: %w", err)
	}
	return nil
}

// Count returns the number of rows written by this run.
func (sw *SQLiteWriter) Count() (int, error) {
	var n int
	err := sw.db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM books WHERE run_id = ?", sw.runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count sqlite rows: %w", err)
	}
	return n, nil
}

// Close closes the database connection.
func (sw *SQLiteWriter) Close() error {
	return sw.db.Close()
}

// Validate ensures this run stored at least one row.
func (sw *SQLiteWriter) Validate() error {
	n, err := sw.Count()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("sqlite table has no rows for run %s", sw.runID)
	}
	return nil
}

func nullable[T any](v *T) any {
	if v == nil {
		return nil
	}
	return *v
}
