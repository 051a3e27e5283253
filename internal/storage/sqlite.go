// internal/storage/sqlite.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"macro-pipeline/internal/models"
)

// ErrAlreadyLogged means a commit carried the fingerprint of a meal that was
// already written; the retry is rejected instead of duplicated.
var ErrAlreadyLogged = errors.New("meal already logged")

type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer; a single pooled connection also keeps
	// :memory: databases coherent across queries.
	db.SetMaxOpenConns(1)

	storage := &SQLiteStorage{db: db}
	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS meal_logs (
        id TEXT PRIMARY KEY,
        user_id TEXT NOT NULL,
        session_id TEXT NOT NULL,
        meal_slot TEXT NOT NULL,
        eaten_at TEXT NOT NULL,
        kcal REAL NOT NULL,
        protein_g REAL NOT NULL,
        carbs_g REAL NOT NULL,
        fat_g REAL NOT NULL,
        fiber_g REAL NOT NULL,
        fingerprint TEXT NOT NULL UNIQUE,
        created_at TEXT NOT NULL
    );

    CREATE TABLE IF NOT EXISTS meal_log_items (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        meal_log_id TEXT NOT NULL,
        position INTEGER NOT NULL,
        name TEXT NOT NULL,
        qty REAL NOT NULL,
        unit TEXT NOT NULL,
        grams REAL NOT NULL,
        basis TEXT NOT NULL,
        kcal REAL NOT NULL,
        protein_g REAL NOT NULL,
        carbs_g REAL NOT NULL,
        fat_g REAL NOT NULL,
        fiber_g REAL NOT NULL,
        FOREIGN KEY (meal_log_id) REFERENCES meal_logs(id) ON DELETE CASCADE
    );

    CREATE TABLE IF NOT EXISTS food_cache (
        name TEXT PRIMARY KEY,
        kcal_per_100g REAL NOT NULL,
        protein_per_100g REAL NOT NULL,
        carbs_per_100g REAL NOT NULL,
        fat_per_100g REAL NOT NULL,
        fiber_per_100g REAL NOT NULL,
        basis TEXT NOT NULL,
        confidence REAL NOT NULL,
        updated_at TEXT NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_meal_logs_user_eaten ON meal_logs(user_id, eaten_at);
    CREATE INDEX IF NOT EXISTS idx_meal_log_items_log ON meal_log_items(meal_log_id);
    `

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// SaveMealLog writes the meal and its position-ordered items in one
// transaction. A duplicate fingerprint fails with ErrAlreadyLogged.
func (s *SQLiteStorage) SaveMealLog(ctx context.Context, log *models.MealLog) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	logQuery := `
        INSERT INTO meal_logs (id, user_id, session_id, meal_slot, eaten_at,
            kcal, protein_g, carbs_g, fat_g, fiber_g, fingerprint, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err = tx.ExecContext(ctx, logQuery,
		log.ID, log.UserID, log.SessionID, log.MealSlot,
		log.EatenAt.UTC().Format(time.RFC3339),
		log.Totals.Kcal, log.Totals.ProteinG, log.Totals.CarbsG,
		log.Totals.FatG, log.Totals.FiberG,
		log.Fingerprint,
		log.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: meal_logs.fingerprint") {
			return ErrAlreadyLogged
		}
		return fmt.Errorf("failed to insert meal log: %w", err)
	}

	itemQuery := `
        INSERT INTO meal_log_items (meal_log_id, position, name, qty, unit, grams, basis,
            kcal, protein_g, carbs_g, fat_g, fiber_g)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	for _, item := range log.Items {
		_, err = tx.ExecContext(ctx, itemQuery,
			log.ID, item.Position, item.Name, item.Quantity, item.Unit,
			item.Grams, string(item.Basis),
			item.Macros.Kcal, item.Macros.ProteinG, item.Macros.CarbsG,
			item.Macros.FatG, item.Macros.FiberG)
		if err != nil {
			return fmt.Errorf("failed to insert meal item: %w", err)
		}
	}

	return tx.Commit()
}

// GetMealLogs returns a user's meal logs, newest first, optionally bounded
// by YYYY-MM-DD dates.
func (s *SQLiteStorage) GetMealLogs(ctx context.Context, userID, startDate, endDate string, limit int) ([]*models.MealLog, error) {
	query := `
        SELECT id, user_id, session_id, meal_slot, eaten_at,
               kcal, protein_g, carbs_g, fat_g, fiber_g, fingerprint, created_at
        FROM meal_logs
        WHERE user_id = ?
    `
	args := []interface{}{userID}

	if startDate != "" {
		query += " AND DATE(eaten_at) >= ?"
		args = append(args, startDate)
	}
	if endDate != "" {
		query += " AND DATE(eaten_at) <= ?"
		args = append(args, endDate)
	}

	query += " ORDER BY eaten_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query meal logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.MealLog
	for rows.Next() {
		log := &models.MealLog{}
		var eatenAtStr, createdAtStr string

		err := rows.Scan(
			&log.ID, &log.UserID, &log.SessionID, &log.MealSlot, &eatenAtStr,
			&log.Totals.Kcal, &log.Totals.ProteinG, &log.Totals.CarbsG,
			&log.Totals.FatG, &log.Totals.FiberG, &log.Fingerprint, &createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meal log: %w", err)
		}

		if log.EatenAt, err = time.Parse(time.RFC3339, eatenAtStr); err != nil {
			return nil, fmt.Errorf("failed to parse eaten_at: %w", err)
		}
		if log.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}

		if err := s.loadItemsForMealLog(ctx, log); err != nil {
			return nil, fmt.Errorf("failed to load items for meal log %s: %w", log.ID, err)
		}

		logs = append(logs, log)
	}

	return logs, rows.Err()
}

func (s *SQLiteStorage) loadItemsForMealLog(ctx context.Context, log *models.MealLog) error {
	query := `
        SELECT position, name, qty, unit, grams, basis,
               kcal, protein_g, carbs_g, fat_g, fiber_g
        FROM meal_log_items
        WHERE meal_log_id = ?
        ORDER BY position
    `

	rows, err := s.db.QueryContext(ctx, query, log.ID)
	if err != nil {
		return fmt.Errorf("failed to query meal items: %w", err)
	}
	defer rows.Close()

	var items []models.MealLogItem
	for rows.Next() {
		item := models.MealLogItem{}
		var basisStr string

		err := rows.Scan(
			&item.Position, &item.Name, &item.Quantity, &item.Unit,
			&item.Grams, &basisStr,
			&item.Macros.Kcal, &item.Macros.ProteinG, &item.Macros.CarbsG,
			&item.Macros.FatG, &item.Macros.FiberG)
		if err != nil {
			return fmt.Errorf("failed to scan meal item: %w", err)
		}

		item.Basis = models.Basis(basisStr)
		items = append(items, item)
	}

	log.Items = items
	return rows.Err()
}

// GetFoodRecord returns the cached per-100g entry for a food name, or nil
// when the cache has no answer. Serves as the lookup client's second tier.
func (s *SQLiteStorage) GetFoodRecord(ctx context.Context, name string) (*models.FoodRecord, error) {
	query := `
        SELECT name, kcal_per_100g, protein_per_100g, carbs_per_100g,
               fat_per_100g, fiber_per_100g, basis, confidence
        FROM food_cache
        WHERE name = ?
    `

	record := &models.FoodRecord{}
	var basisStr string
	err := s.db.QueryRowContext(ctx, query, normalizeFoodName(name)).Scan(
		&record.Name, &record.Per100g.Kcal, &record.Per100g.ProteinG,
		&record.Per100g.CarbsG, &record.Per100g.FatG, &record.Per100g.FiberG,
		&basisStr, &record.Confidence)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query food cache: %w", err)
	}

	record.Basis = models.Basis(basisStr)
	return record, nil
}

// PutFoodRecord upserts a per-100g cache entry.
func (s *SQLiteStorage) PutFoodRecord(ctx context.Context, record models.FoodRecord) error {
	query := `
        INSERT INTO food_cache (name, kcal_per_100g, protein_per_100g, carbs_per_100g,
            fat_per_100g, fiber_per_100g, basis, confidence, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(name) DO UPDATE SET
            kcal_per_100g=excluded.kcal_per_100g,
            protein_per_100g=excluded.protein_per_100g,
            carbs_per_100g=excluded.carbs_per_100g,
            fat_per_100g=excluded.fat_per_100g,
            fiber_per_100g=excluded.fiber_per_100g,
            basis=excluded.basis,
            confidence=excluded.confidence,
            updated_at=excluded.updated_at
    `
	_, err := s.db.ExecContext(ctx, query,
		normalizeFoodName(record.Name),
		record.Per100g.Kcal, record.Per100g.ProteinG, record.Per100g.CarbsG,
		record.Per100g.FatG, record.Per100g.FiberG,
		string(record.Basis), record.Confidence,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to upsert food record: %w", err)
	}
	return nil
}

func normalizeFoodName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
