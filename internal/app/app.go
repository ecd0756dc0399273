package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"stash-go/internal/auth"
	"stash-go/internal/config"
	"stash-go/internal/database"
	"stash-go/internal/encryption"
	"stash-go/internal/fs"
	"stash-go/internal/stash"
	"stash-go/internal/storage"
)

// Options tune how NewStashApp builds its dependencies.
type Options struct {
	// Operation names the command being run (e.g. "UploadFile", "Serve").
	Operation string

	// Passphrase is called to unlock the private key when encryption at rest is
	// enabled. When nil the store can encrypt new objects but not read them.
	Passphrase func() (string, error)

	// Stderr receives a copy of every log line. Nil logs to the file only.
	Stderr io.Writer

	// LogLevel is the minimum level written. The zero value is INFO.
	LogLevel slog.Level
}

// StashApp is the application layer between the CLI or HTTP adapter and StashService.
// It constructs all dependencies from config, exposes high-level operations that
// accept raw arguments, and manages the DB lifecycle on Close.
type StashApp struct {
	cfg       *config.Config
	db        *database.SQLiteDatabase
	store     stash.ObjectStore
	encryptor stash.Encryptor
	fsmgr     *fs.OSFilesystemManager
	service   *stash.StashService
	tokens    *auth.TokenIssuer
	logger    *slog.Logger
	op        *AuditOperation
	logFile   *os.File
}

// NewStashApp creates a fully wired StashApp from the given config.
// The caller must call Close when done.
func NewStashApp(ctx context.Context, cfg *config.Config, opts Options) (*StashApp, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	ttl, err := cfg.Server.SessionDuration()
	if err != nil {
		return nil, err
	}
	tokens, err := auth.NewTokenIssuer(cfg.Server.SessionSecret, ttl, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("creating token issuer: %w", err)
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.InstanceID)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	store, enc, err := newObjectStore(ctx, cfg, opts.Passphrase)
	if err != nil {
		db.Close()
		return nil, err
	}

	opID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID, opts.Stderr, opts.LogLevel)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	policy := fs.NewExtensionPolicyFromConfig(cfg.Uploads)
	svc := stash.NewStashService(db, store, auth.NewBcryptHasher(0), policy, &slogAdapter{l: logger}, stash.RealClock{})

	return &StashApp{
		cfg:       cfg,
		db:        db,
		store:     store,
		encryptor: enc,
		fsmgr:     fs.NewOSFilesystemManager(),
		service:   svc,
		tokens:    tokens,
		logger:    logger,
		op:        NewAuditOperation(opts.Operation),
		logFile:   logFile,
	}, nil
}

// newObjectStore builds the configured store, wrapped for encryption at rest when enabled.
func newObjectStore(ctx context.Context, cfg *config.Config, passphrase func() (string, error)) (stash.ObjectStore, stash.Encryptor, error) {
	store, err := storage.NewStoreFromConfig(ctx, cfg.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("creating object store: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return nil, nil, fmt.Errorf("creating encryptor: %w", err)
	}
	if enc == nil {
		if err := store.ValidateSetup(); err != nil {
			return nil, nil, fmt.Errorf("validating object store: %w", err)
		}
		return store, nil, nil
	}

	if !enc.IsConfigured() {
		return nil, nil, fmt.Errorf("encryption keys not found (run 'stash keys init')")
	}

	var dec stash.DecryptionContext
	if passphrase != nil {
		p, err := passphrase()
		if err != nil {
			return nil, nil, fmt.Errorf("reading passphrase: %w", err)
		}
		dec, err = enc.Unlock(p)
		if err != nil {
			return nil, nil, fmt.Errorf("unlocking private key: %w", err)
		}
	}

	encrypted := storage.NewEncryptedStore(store, enc, dec)
	if err := encrypted.ValidateSetup(); err != nil {
		return nil, nil, fmt.Errorf("validating object store: %w", err)
	}
	return encrypted, enc, nil
}

// Config returns the configuration the app was built from.
func (a *StashApp) Config() *config.Config { return a.cfg }

// Service returns the wired StashService.
func (a *StashApp) Service() *stash.StashService { return a.service }

// Tokens returns the session token issuer.
func (a *StashApp) Tokens() *auth.TokenIssuer { return a.tokens }

// Logger returns the application logger.
func (a *StashApp) Logger() *slog.Logger { return a.logger }

// persistOperation saves the audit operation to the database, giving it an auto-increment ID.
// This should only be called for commands that mutate stored data.
func (a *StashApp) persistOperation(params map[string]string) error {
	if a.op.Persisted() {
		return nil
	}
	a.op.SetParameters(params)
	dbOp, err := a.db.CreateOperation(a.op.Operation, a.op.Parameters)
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = dbOp.ID
	return nil
}

// Bootstrap creates the configured admin account when no users exist yet.
func (a *StashApp) Bootstrap() (bool, error) {
	b := a.cfg.Bootstrap
	if b.AdminUsername == "" {
		return false, nil
	}
	return a.service.EnsureInitialUser(b.AdminUsername, b.AdminPassword)
}

// Register creates a new account.
func (a *StashApp) Register(username, password string) (*stash.User, error) {
	if err := a.persistOperation(map[string]string{"username": username}); err != nil {
		return nil, err
	}
	user, err := a.service.Register(username, password)
	return user, a.op.Observe(err)
}

// Login verifies credentials and issues a session token.
func (a *StashApp) Login(username, password string) (string, *auth.Session, error) {
	user, err := a.service.Authenticate(username, password)
	if err != nil {
		return "", nil, err
	}
	return a.tokens.Issue(user)
}

// Authorize verifies a session token and returns the user it belongs to.
func (a *StashApp) Authorize(token string) (*stash.User, error) {
	session, err := a.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	user, err := a.service.LookupUser(session.UserID)
	if err != nil {
		if errors.Is(err, stash.ErrNotFound) {
			return nil, auth.ErrInvalidToken
		}
		return nil, err
	}
	return user, nil
}

// CreateFolder creates a folder for user.
func (a *StashApp) CreateFolder(user *stash.User, name string) (*stash.Folder, error) {
	if err := a.persistOperation(map[string]string{"user": user.Username, "folder": name}); err != nil {
		return nil, err
	}
	folder, err := a.service.CreateFolder(user.ID, name)
	return folder, a.op.Observe(err)
}

// DeleteFolder deletes one of user's folders with everything in it.
func (a *StashApp) DeleteFolder(user *stash.User, folderID int64) error {
	if err := a.persistOperation(map[string]string{"user": user.Username, "folder_id": strconv.FormatInt(folderID, 10)}); err != nil {
		return err
	}
	return a.op.Observe(a.service.DeleteFolder(user.ID, folderID))
}

// UploadPath uploads a local file, or every regular file directly inside a local
// directory, into folder. Uploading stops at the first failure; files uploaded
// before it are returned along with the error.
func (a *StashApp) UploadPath(user *stash.User, folder, rawPath string) ([]*stash.File, error) {
	if err := a.persistOperation(map[string]string{"user": user.Username, "folder": folder, "path": rawPath}); err != nil {
		return nil, err
	}

	local, isDir, err := a.fsmgr.Resolve(rawPath)
	if err != nil {
		return nil, a.op.Observe(fmt.Errorf("resolving path: %w", err))
	}

	sources := []*fs.LocalFile{local}
	if isDir {
		sources, err = a.fsmgr.FindFiles(local.Path)
		if err != nil {
			return nil, a.op.Observe(err)
		}
	}

	var uploaded []*stash.File
	for _, src := range sources {
		file, err := a.uploadOne(user, folder, src)
		if err != nil {
			return uploaded, a.op.Observe(fmt.Errorf("uploading %s: %w", src.Path, err))
		}
		uploaded = append(uploaded, file)
	}
	return uploaded, nil
}

func (a *StashApp) uploadOne(user *stash.User, folder string, src *fs.LocalFile) (*stash.File, error) {
	rc, err := a.fsmgr.Open(src)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer rc.Close()
	return a.service.UploadFile(user.ID, folder, src.Name, rc, src.Size)
}

// Download writes one of user's files to outPath and returns the record and the
// path written. An empty outPath writes the stored filename into the current
// directory; an existing directory receives the stored filename inside it.
func (a *StashApp) Download(user *stash.User, fileID int64, outPath string, overwrite bool) (*stash.File, string, error) {
	file, rc, err := a.service.DownloadFile(user.ID, fileID)
	if err != nil {
		return nil, "", err
	}
	defer rc.Close()

	dest := outPath
	if dest == "" {
		dest = file.Filename
	} else if info, err := os.Stat(dest); err == nil && info.IsDir() {
		dest = filepath.Join(dest, file.Filename)
	}

	if _, err := a.fsmgr.WriteOutput(dest, rc, overwrite); err != nil {
		return nil, "", err
	}
	return file, dest, nil
}

// DeleteFile deletes one of user's files.
func (a *StashApp) DeleteFile(user *stash.User, fileID int64) error {
	if err := a.persistOperation(map[string]string{"user": user.Username, "file_id": strconv.FormatInt(fileID, 10)}); err != nil {
		return err
	}
	return a.op.Observe(a.service.DeleteFile(user.ID, fileID))
}

// Dashboard lists one bucket of user's files together with all folders.
func (a *StashApp) Dashboard(user *stash.User, folder string) (*stash.Dashboard, error) {
	return a.service.ListDashboard(user.ID, folder)
}

// GetHistory returns the most recent audit operations.
func (a *StashApp) GetHistory(limit int) ([]*stash.Operation, error) {
	return a.db.ListOperations(limit)
}

// BackupDatabase writes a consistent snapshot of the metadata database to destPath.
func (a *StashApp) BackupDatabase(destPath string) error {
	if _, err := os.Stat(destPath); err == nil {
		return fmt.Errorf("backup destination already exists: %s", destPath)
	}
	if err := a.db.BackupTo(destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	a.logger.Info("database backed up", "dest", destPath)
	return nil
}

// Close finalizes the operation record and closes all resources.
func (a *StashApp) Close() error {
	var firstErr error

	if a.op.Persisted() {
		if err := a.db.FinishOperation(a.op.ID, a.op.Status); err != nil {
			firstErr = fmt.Errorf("finishing operation: %w", err)
		}
	}

	if err := a.db.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
