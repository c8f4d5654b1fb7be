package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

const (
	// DriverCGO is the mattn/go-sqlite3 driver.
	DriverCGO = "sqlite3"
	// DriverPure is the modernc.org/sqlite driver, no cgo required.
	DriverPure = "sqlite"

	dbFileName = "assessments.db"
)

// DB wraps the connection pool together with the prepared hot-path statements.
type DB struct {
	*sql.DB
	driver   string
	pool     *ConnectionPool
	prepared map[string]*sql.Stmt
	mutex    sync.RWMutex
}

// ConnectionPool records the pool limits applied to the handle
type ConnectionPool struct {
	db           *sql.DB
	maxOpenConns int
	maxIdleConns int
	maxLifetime  time.Duration
}

// NewConnectionPool applies the limits to db
func NewConnectionPool(db *sql.DB, maxOpen, maxIdle int, maxLifetime time.Duration) *ConnectionPool {
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)

	return &ConnectionPool{
		db:           db,
		maxOpenConns: maxOpen,
		maxIdleConns: maxIdle,
		maxLifetime:  maxLifetime,
	}
}

// GetStats returns connection pool statistics
func (cp *ConnectionPool) GetStats() map[string]interface{} {
	stats := cp.db.Stats()

	return map[string]interface{}{
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"max_open_connections": cp.maxOpenConns,
		"max_idle_connections": cp.maxIdleConns,
		"max_lifetime_seconds": cp.maxLifetime.Seconds(),
		"wait_count":           stats.WaitCount,
		"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
	}
}

// dsn builds the connection string. The two drivers spell pragmas
// differently. Transactions take the write lock up front so concurrent
// submissions queue on busy_timeout instead of failing on lock upgrade.
func dsn(driver, path string) (string, error) {
	switch driver {
	case DriverCGO:
		return fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL&_txlock=immediate", path), nil
	case DriverPure:
		return fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_txlock=immediate", path), nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Open creates dataDir if needed, opens the database file inside it and
// brings the schema up to date.
func Open(driver, dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	connStr, err := dsn(driver, filepath.Join(dataDir, dbFileName))
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pool := NewConnectionPool(db, 10, 5, 5*time.Minute)

	database := &DB{
		DB:       db,
		driver:   driver,
		pool:     pool,
		prepared: make(map[string]*sql.Stmt),
	}

	if err := database.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := database.initPreparedStatements(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize prepared statements: %w", err)
	}

	slog.Info("Database initialized",
		"driver", driver,
		"path", filepath.Join(dataDir, dbFileName),
		"max_open_conns", pool.maxOpenConns,
		"max_idle_conns", pool.maxIdleConns)

	return database, nil
}

// migrate creates the necessary tables
func (db *DB) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS psychologists (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS patients (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			psychologist_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			age INTEGER,
			email TEXT,
			phone TEXT,
			notes TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY (psychologist_id) REFERENCES psychologists(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS assessment_links (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			patient_id INTEGER NOT NULL,
			token TEXT NOT NULL UNIQUE,
			expires_at TEXT,
			expiry_days INTEGER NOT NULL DEFAULT 30,
			completed_at TEXT,
			email_sent_at TEXT,
			last_accessed_at TEXT,
			access_count INTEGER NOT NULL DEFAULT 0,
			ip_address TEXT,
			created_at TEXT NOT NULL,
			FOREIGN KEY (patient_id) REFERENCES patients(id) ON DELETE CASCADE
		)`,

		// One answer set per link.
		`CREATE TABLE IF NOT EXISTS assessment_responses (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			link_id INTEGER NOT NULL UNIQUE,
			patient_id INTEGER NOT NULL,
			answers TEXT NOT NULL,
			completed_at TEXT NOT NULL,
			created_at TEXT NOT NULL,
			FOREIGN KEY (link_id) REFERENCES assessment_links(id) ON DELETE CASCADE,
			FOREIGN KEY (patient_id) REFERENCES patients(id) ON DELETE CASCADE
		)`,

		// One narrative per answer set, never updated.
		`CREATE TABLE IF NOT EXISTS assessments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			response_id INTEGER NOT NULL UNIQUE,
			patient_id INTEGER NOT NULL,
			intellectual_score INTEGER NOT NULL,
			emotional_score INTEGER NOT NULL,
			imaginative_score INTEGER NOT NULL,
			sensory_score INTEGER NOT NULL,
			motor_score INTEGER NOT NULL,
			clinical_analysis TEXT NOT NULL,
			diagnosis TEXT NOT NULL,
			recommendations TEXT NOT NULL,
			confidence_level TEXT NOT NULL,
			giftedness_type TEXT NOT NULL,
			marker_version TEXT NOT NULL,
			structured BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TEXT NOT NULL,
			FOREIGN KEY (response_id) REFERENCES assessment_responses(id) ON DELETE CASCADE,
			FOREIGN KEY (patient_id) REFERENCES patients(id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_patients_psychologist ON patients(psychologist_id)`,
		`CREATE INDEX IF NOT EXISTS idx_links_patient ON assessment_links(patient_id)`,
		`CREATE INDEX IF NOT EXISTS idx_responses_patient ON assessment_responses(patient_id)`,
		`CREATE INDEX IF NOT EXISTS idx_assessments_patient ON assessments(patient_id)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	return nil
}

// Statements on the submission path. Other queries are issued directly.
const (
	stmtLinkByToken    = "get_link_by_token"
	stmtRecordAccess   = "record_link_access"
	stmtConsumeLink    = "consume_link"
	stmtInsertResponse = "insert_response"
	stmtInsertAnalysis = "insert_assessment"
)

func (db *DB) initPreparedStatements() error {
	statements := map[string]string{
		stmtLinkByToken: `SELECT ` + linkColumns + ` FROM assessment_links WHERE token = ?`,

		stmtRecordAccess: `UPDATE assessment_links
			SET last_accessed_at = ?, access_count = access_count + 1,
				ip_address = COALESCE(NULLIF(?, ''), ip_address)
			WHERE id = ?`,

		stmtConsumeLink: `UPDATE assessment_links SET completed_at = ?
			WHERE id = ? AND completed_at IS NULL`,

		stmtInsertResponse: `INSERT INTO assessment_responses (link_id, patient_id, answers, completed_at, created_at)
			VALUES (?, ?, ?, ?, ?)`,

		stmtInsertAnalysis: `INSERT INTO assessments (
			response_id, patient_id,
			intellectual_score, emotional_score, imaginative_score, sensory_score, motor_score,
			clinical_analysis, diagnosis, recommendations, confidence_level, giftedness_type,
			marker_version, structured, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	}

	db.mutex.Lock()
	defer db.mutex.Unlock()

	for name, query := range statements {
		stmt, err := db.Prepare(query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement %s: %w", name, err)
		}
		db.prepared[name] = stmt

		slog.Debug("Prepared statement initialized", "name", name)
	}

	return nil
}

// GetPreparedStatement retrieves a prepared statement
func (db *DB) GetPreparedStatement(name string) (*sql.Stmt, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	stmt, exists := db.prepared[name]
	if !exists {
		return nil, fmt.Errorf("prepared statement %s not found", name)
	}

	return stmt, nil
}

// Driver returns the name of the SQL driver in use.
func (db *DB) Driver() string { return db.driver }

// GetPoolStats returns database connection pool statistics
func (db *DB) GetPoolStats() map[string]interface{} {
	return db.pool.GetStats()
}

// HealthCheck runs a trivial query within ctx.
func (db *DB) HealthCheck(ctx context.Context) error {
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Close closes the prepared statements and then the database
func (db *DB) Close() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	for name, stmt := range db.prepared {
		if err := stmt.Close(); err != nil {
			slog.Warn("Failed to close prepared statement", "name", name, "error", err)
		}
	}
	db.prepared = make(map[string]*sql.Stmt)

	return db.DB.Close()
}
