// Package players maintains the bot's player-identity records: which Discord
// user owns which Kingdom of Loathing character, plus each character's last
// submitted greenbox (profile snapshot) payload.
package players

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/horrible-little-slime/oaf/db"
)

// ErrNotFound is returned when no record matches a lookup.
var ErrNotFound = errors.New("player not found")

// Player links a Discord user to a game character.
type Player struct {
	DiscordID string
	KolID     string
	KolName   string
	ClaimedAt time.Time
}

// Store is the DuckDB-backed player store.
type Store struct {
	dbClient *db.Client
}

// NewStore creates the store and its tables if they don't exist.
func NewStore(dbClient *db.Client) (*Store, error) {
	store := &Store{dbClient: dbClient}
	if err := store.createTables(); err != nil {
		slog.Error("failed to create player tables", "error", err)
		return nil, fmt.Errorf("failed to create player tables: %w", err)
	}
	return store, nil
}

func (s *Store) createTables() error {
	createPlayersSQL := `
	CREATE TABLE IF NOT EXISTS players (
		discord_id TEXT PRIMARY KEY,
		kol_id TEXT NOT NULL,
		kol_name TEXT NOT NULL,
		claimed_at TIMESTAMP NOT NULL
	)
	`
	if _, err := s.dbClient.Conn().Exec(createPlayersSQL); err != nil {
		return fmt.Errorf("failed to create players table: %w", err)
	}

	createGreenboxSQL := `
	CREATE TABLE IF NOT EXISTS greenboxes (
		kol_id TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)
	`
	if _, err := s.dbClient.Conn().Exec(createGreenboxSQL); err != nil {
		return fmt.Errorf("failed to create greenboxes table: %w", err)
	}

	slog.Info("player tables created or already exist")
	return nil
}

// Claim records that a Discord user owns the given character, replacing any
// previous claim by the same user.
func (s *Store) Claim(discordID, kolID, kolName string) error {
	deleteSQL := `DELETE FROM players WHERE discord_id = ?`
	if _, err := s.dbClient.Conn().Exec(deleteSQL, discordID); err != nil {
		return fmt.Errorf("failed to clear previous claim: %w", err)
	}

	insertSQL := `INSERT INTO players (discord_id, kol_id, kol_name, claimed_at) VALUES (?, ?, ?, ?)`
	if _, err := s.dbClient.Conn().Exec(insertSQL, discordID, kolID, kolName, time.Now()); err != nil {
		return fmt.Errorf("failed to insert claim: %w", err)
	}

	slog.Info("player claim recorded", "discord_id", discordID, "kol_name", kolName, "kol_id", kolID)
	return nil
}

// ByDiscordID looks up the character claimed by a Discord user.
func (s *Store) ByDiscordID(discordID string) (Player, error) {
	query := `SELECT discord_id, kol_id, kol_name, claimed_at FROM players WHERE discord_id = ?`
	return s.scanOne(query, discordID)
}

// ByKolName looks up a claim by character name, case-insensitively.
func (s *Store) ByKolName(kolName string) (Player, error) {
	query := `SELECT discord_id, kol_id, kol_name, claimed_at FROM players WHERE lower(kol_name) = lower(?)`
	return s.scanOne(query, kolName)
}

func (s *Store) scanOne(query string, arg any) (Player, error) {
	var player Player
	row := s.dbClient.Conn().QueryRow(query, arg)
	err := row.Scan(&player.DiscordID, &player.KolID, &player.KolName, &player.ClaimedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Player{}, ErrNotFound
	}
	if err != nil {
		return Player{}, fmt.Errorf("failed to scan player: %w", err)
	}
	return player, nil
}

// SaveGreenbox stores or replaces a character's greenbox payload.
func (s *Store) SaveGreenbox(kolID, data string) error {
	deleteSQL := `DELETE FROM greenboxes WHERE kol_id = ?`
	if _, err := s.dbClient.Conn().Exec(deleteSQL, kolID); err != nil {
		return fmt.Errorf("failed to clear previous greenbox: %w", err)
	}

	insertSQL := `INSERT INTO greenboxes (kol_id, data, updated_at) VALUES (?, ?, ?)`
	if _, err := s.dbClient.Conn().Exec(insertSQL, kolID, data, time.Now()); err != nil {
		return fmt.Errorf("failed to insert greenbox: %w", err)
	}
	return nil
}

// Greenbox returns a character's stored greenbox payload and when it was
// last updated.
func (s *Store) Greenbox(kolID string) (string, time.Time, error) {
	query := `SELECT data, updated_at FROM greenboxes WHERE kol_id = ?`
	var data string
	var updatedAt time.Time
	err := s.dbClient.Conn().QueryRow(query, kolID).Scan(&data, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", time.Time{}, ErrNotFound
	}
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to scan greenbox: %w", err)
	}
	return data, updatedAt, nil
}

// Backup exports the player tables to parquet files next to the database.
func (s *Store) Backup(ctx context.Context) error {
	if err := s.dbClient.WriteParquet(ctx, "SELECT * FROM players", "players.parquet"); err != nil {
		return err
	}
	return s.dbClient.WriteParquet(ctx, "SELECT * FROM greenboxes", "greenboxes.parquet")
}
