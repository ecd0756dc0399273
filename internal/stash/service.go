package stash

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// StashService is the orchestration layer that enforces the consistency rules between
// the metadata database and the object store. Every operation takes the verified id of
// the calling user; session handling happens in the caller.
type StashService struct {
	database Database
	store    ObjectStore
	hasher   PasswordHasher
	policy   UploadPolicy
	logger   Logger
	clock    Clock

	// dummyHash is compared against when a login names an unknown user, so both
	// failure paths do the same amount of work.
	dummyOnce sync.Once
	dummyHash string
}

// NewStashService creates a new StashService with the provided dependencies.
// policy may be nil, in which case every extension and size is accepted.
func NewStashService(database Database, store ObjectStore, hasher PasswordHasher, policy UploadPolicy, logger Logger, clock Clock) *StashService {
	if logger == nil {
		logger = NewNopLogger()
	}
	if clock == nil {
		clock = RealClock{}
	}
	return &StashService{
		database: database,
		store:    store,
		hasher:   hasher,
		policy:   policy,
		logger:   logger,
		clock:    clock,
	}
}

// Register creates a new user. The username is trimmed and compared case-sensitively.
func (s *StashService) Register(username, password string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrEmptyName
	}

	existing, err := s.database.FindUserByUsername(username)
	if err != nil {
		return nil, fmt.Errorf("checking for existing user: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicateUsername
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user, err := s.database.CreateUser(username, hash)
	if err != nil {
		if errors.Is(err, ErrDuplicateUsername) {
			return nil, ErrDuplicateUsername
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.logger.Info("user registered", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// Authenticate verifies a username and password. Unknown users and wrong passwords
// both fail with ErrInvalidCredentials.
func (s *StashService) Authenticate(username, password string) (*User, error) {
	username = strings.TrimSpace(username)

	user, err := s.database.FindUserByUsername(username)
	if err != nil {
		return nil, fmt.Errorf("finding user: %w", err)
	}

	if user == nil {
		s.compareDummy(password)
		s.logger.Info("login failed", "username", username)
		return nil, ErrInvalidCredentials
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		s.logger.Info("login failed", "username", username)
		return nil, ErrInvalidCredentials
	}

	s.logger.Debug("login succeeded", "user_id", user.ID)
	return user, nil
}

// compareDummy runs a password comparison whose result is discarded.
func (s *StashService) compareDummy(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("stash-dummy-password")
	})
	if s.dummyHash != "" {
		_ = s.hasher.Compare(s.dummyHash, password)
	}
}

// LookupUser returns the user for a verified session identity.
func (s *StashService) LookupUser(userID int64) (*User, error) {
	user, err := s.database.FindUserByID(userID)
	if err != nil {
		return nil, fmt.Errorf("finding user: %w", err)
	}
	if user == nil {
		return nil, ErrNotFound
	}
	return user, nil
}

// EnsureInitialUser registers username when no users exist yet.
// Returns true if the user was created.
func (s *StashService) EnsureInitialUser(username, password string) (bool, error) {
	count, err := s.database.CountUsers()
	if err != nil {
		return false, fmt.Errorf("counting users: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	if _, err := s.Register(username, password); err != nil {
		return false, fmt.Errorf("creating initial user: %w", err)
	}
	s.logger.Warn("initial user created", "username", username)
	return true, nil
}
