// Package db wraps the embedded DuckDB database that backs the bot's player
// records. Table creation is owned by the packages that use the tables.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver registration
)

// Client is a DuckDB client storing its database file and parquet exports in
// a given directory.
type Client struct {
	DB  *sql.DB
	dir string
}

// NewClient creates a DuckDB client using the specified directory, creating
// the directory if needed. The database file lives at <dir>/oaf.db.
func NewClient(dir string) (*Client, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		info, err = os.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to stat directory after creation: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	dbPath := filepath.Join(dir, "oaf.db")
	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}

	return &Client{
		DB:  db,
		dir: dir,
	}, nil
}

// Start ensures that the database connection is available by pinging it.
func (c *Client) Start(ctx context.Context) error {
	if err := c.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}
	return nil
}

// Stop closes the DuckDB connection.
func (c *Client) Stop() error {
	return c.DB.Close()
}

// Conn returns the underlying database connection for running queries directly.
func (c *Client) Conn() *sql.DB {
	return c.DB
}

// WriteParquet executes the provided query and writes the results to a
// Parquet file in the client's directory, used for periodic backups of the
// player tables.
func (c *Client) WriteParquet(ctx context.Context, query, filename string) error {
	outPath := filepath.Join(c.dir, filename)
	sqlQuery := fmt.Sprintf("COPY (%s) TO '%s' (FORMAT 'parquet')", query, outPath)
	_, err := c.DB.ExecContext(ctx, sqlQuery)
	if err != nil {
		return fmt.Errorf("failed to write parquet file: %w", err)
	}
	return nil
}
