package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"stash-go/internal/database/migrations"
	"stash-go/internal/stash"
)

// SQLiteDatabase implements the stash.Database interface using SQLite.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

// NewSQLiteDatabase creates a new SQLite database connection.
// path can be a file path or ":memory:" for in-memory database.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	return &SQLiteDatabase{
		db:   db,
		path: path,
	}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{
		db:   db,
		path: "",
	}
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// This is exported for use in tools and tests that need a properly configured SQLite connection.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable foreign key constraints (SQLite default is OFF for backward compatibility)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Wait for locks held by concurrent requests instead of failing with SQLITE_BUSY.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// User operations

const userColumns = "id, username, password_hash, created_at"

func scanUser(row rowScanner) (*stash.User, error) {
	var u stash.User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *SQLiteDatabase) CreateUser(username, passwordHash string) (*stash.User, error) {
	res, err := s.db.ExecContext(context.Background(),
		"INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)",
		username, passwordHash, time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("inserting user %q: %w", username, stash.ErrDuplicateUsername)
		}
		return nil, fmt.Errorf("inserting user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading user id: %w", err)
	}
	return s.FindUserByID(id)
}

func (s *SQLiteDatabase) FindUserByUsername(username string) (*stash.User, error) {
	row := s.db.QueryRowContext(context.Background(),
		"SELECT "+userColumns+" FROM users WHERE username = ?", username)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding user by username: %w", err)
	}
	return user, nil
}

func (s *SQLiteDatabase) FindUserByID(id int64) (*stash.User, error) {
	row := s.db.QueryRowContext(context.Background(),
		"SELECT "+userColumns+" FROM users WHERE id = ?", id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding user by id: %w", err)
	}
	return user, nil
}

func (s *SQLiteDatabase) CountUsers() (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

// Folder operations

const folderColumns = "id, user_id, name, created_at"

func scanFolder(row rowScanner) (*stash.Folder, error) {
	var f stash.Folder
	if err := row.Scan(&f.ID, &f.UserID, &f.Name, &f.CreatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *SQLiteDatabase) CreateFolder(userID int64, name string) (*stash.Folder, error) {
	res, err := s.db.ExecContext(context.Background(),
		"INSERT INTO folders (user_id, name, created_at) VALUES (?, ?, ?)",
		userID, name, time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("inserting folder %q: %w", name, stash.ErrDuplicateFolder)
		}
		return nil, fmt.Errorf("inserting folder: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading folder id: %w", err)
	}
	return s.FindFolderByID(id)
}

func (s *SQLiteDatabase) FindFolderByID(id int64) (*stash.Folder, error) {
	row := s.db.QueryRowContext(context.Background(),
		"SELECT "+folderColumns+" FROM folders WHERE id = ?", id)
	folder, err := scanFolder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding folder by id: %w", err)
	}
	return folder, nil
}

func (s *SQLiteDatabase) FindFolderByName(userID int64, name string) (*stash.Folder, error) {
	row := s.db.QueryRowContext(context.Background(),
		"SELECT "+folderColumns+" FROM folders WHERE user_id = ? AND name = ?", userID, name)
	folder, err := scanFolder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding folder by name: %w", err)
	}
	return folder, nil
}

func (s *SQLiteDatabase) ListFolders(userID int64) ([]*stash.Folder, error) {
	rows, err := s.db.QueryContext(context.Background(),
		"SELECT "+folderColumns+" FROM folders WHERE user_id = ? ORDER BY name", userID)
	if err != nil {
		return nil, fmt.Errorf("listing folders: %w", err)
	}
	defer rows.Close()

	result := []*stash.Folder{}
	for rows.Next() {
		folder, err := scanFolder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning folder: %w", err)
		}
		result = append(result, folder)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing folders: %w", err)
	}
	return result, nil
}

// DeleteFolderAndFiles removes the folder's file records and then the folder record
// in a single transaction.
func (s *SQLiteDatabase) DeleteFolderAndFiles(folder *stash.Folder) (int64, error) {
	ctx := context.Background()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM files WHERE user_id = ? AND folder = ?", folder.UserID, folder.Name)
	if err != nil {
		return 0, fmt.Errorf("deleting files in folder %q: %w", folder.Name, err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted files: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM folders WHERE id = ?", folder.ID); err != nil {
		return 0, fmt.Errorf("deleting folder: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	return removed, nil
}

// File operations

const fileColumns = "id, user_id, folder, filename, size, created_at"

func scanFile(row rowScanner) (*stash.File, error) {
	var f stash.File
	var folder sql.NullString
	if err := row.Scan(&f.ID, &f.UserID, &folder, &f.Filename, &f.Size, &f.CreatedAt); err != nil {
		return nil, err
	}
	f.Folder = folder.String
	return &f, nil
}

// folderParam maps the root bucket to NULL.
func folderParam(folder string) sql.NullString {
	return sql.NullString{String: folder, Valid: folder != ""}
}

func (s *SQLiteDatabase) CreateFile(file *stash.File) (*stash.File, error) {
	createdAt := file.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	res, err := s.db.ExecContext(context.Background(),
		"INSERT INTO files (user_id, folder, filename, size, created_at) VALUES (?, ?, ?, ?, ?)",
		file.UserID, folderParam(file.Folder), file.Filename, file.Size, createdAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("inserting file %q: %w", file.Filename, stash.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("inserting file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading file id: %w", err)
	}
	return s.FindFileByID(id)
}

func (s *SQLiteDatabase) FindFileByID(id int64) (*stash.File, error) {
	row := s.db.QueryRowContext(context.Background(),
		"SELECT "+fileColumns+" FROM files WHERE id = ?", id)
	file, err := scanFile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding file by id: %w", err)
	}
	return file, nil
}

func (s *SQLiteDatabase) FindFileByLocation(userID int64, folder, filename string) (*stash.File, error) {
	row := s.db.QueryRowContext(context.Background(),
		"SELECT "+fileColumns+" FROM files WHERE user_id = ? AND COALESCE(folder, '') = ? AND filename = ?",
		userID, folder, filename)
	file, err := scanFile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding file by location: %w", err)
	}
	return file, nil
}

func (s *SQLiteDatabase) ListFiles(userID int64, folder string) ([]*stash.File, error) {
	query := "SELECT " + fileColumns + " FROM files WHERE user_id = ? AND folder = ? ORDER BY filename"
	args := []any{userID, folder}
	if folder == "" {
		query = "SELECT " + fileColumns + " FROM files WHERE user_id = ? AND folder IS NULL ORDER BY filename"
		args = []any{userID}
	}

	rows, err := s.db.QueryContext(context.Background(), query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	defer rows.Close()

	result := []*stash.File{}
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning file: %w", err)
		}
		result = append(result, file)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	return result, nil
}

func (s *SQLiteDatabase) DeleteFile(file *stash.File) error {
	if _, err := s.db.ExecContext(context.Background(), "DELETE FROM files WHERE id = ?", file.ID); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

// Operation tracking

const operationColumns = "id, started_at, finished_at, operation, parameters, status"

func scanOperation(row rowScanner) (*stash.Operation, error) {
	var op stash.Operation
	if err := row.Scan(&op.ID, &op.StartedAt, &op.FinishedAt, &op.Operation, &op.Parameters, &op.Status); err != nil {
		return nil, err
	}
	return &op, nil
}

func (s *SQLiteDatabase) CreateOperation(operation, parameters string) (*stash.Operation, error) {
	res, err := s.db.ExecContext(context.Background(),
		"INSERT INTO operations (started_at, operation, parameters) VALUES (?, ?, ?)",
		time.Now().UTC(), operation, parameters)
	if err != nil {
		return nil, fmt.Errorf("creating operation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading operation id: %w", err)
	}
	row := s.db.QueryRowContext(context.Background(),
		"SELECT "+operationColumns+" FROM operations WHERE id = ?", id)
	op, err := scanOperation(row)
	if err != nil {
		return nil, fmt.Errorf("reading operation: %w", err)
	}
	return op, nil
}

func (s *SQLiteDatabase) FinishOperation(id int64, status string) error {
	_, err := s.db.ExecContext(context.Background(),
		"UPDATE operations SET finished_at = ?, status = ? WHERE id = ?",
		time.Now().UTC(), status, id)
	if err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) ListOperations(limit int) ([]*stash.Operation, error) {
	rows, err := s.db.QueryContext(context.Background(),
		"SELECT "+operationColumns+" FROM operations ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	result := []*stash.Operation{}
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning operation: %w", err)
		}
		result = append(result, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return result, nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// Migrate applies any pending migrations.
func (s *SQLiteDatabase) Migrate() error {
	return migrations.MigrateUp(s.db)
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// MigrationStatus reports the applied and latest schema versions.
func (s *SQLiteDatabase) MigrationStatus() (migrations.Status, error) {
	return migrations.GetStatus(s.db)
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	_, err := s.db.Exec("VACUUM INTO ?", destPath)
	if err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteDatabase implements stash.Database interface
var _ stash.Database = (*SQLiteDatabase)(nil)
