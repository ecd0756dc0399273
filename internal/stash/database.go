package stash

// Database provides an interface for metadata storage operations.
// Lookups return (nil, nil) when the record does not exist.
// Implementations translate unique-constraint violations into ErrDuplicateUsername,
// ErrDuplicateFolder and ErrAlreadyExists.
type Database interface {
	// User operations

	// CreateUser inserts a new user. Returns ErrDuplicateUsername if the username is taken.
	CreateUser(username, passwordHash string) (*User, error)

	// FindUserByUsername returns the user with an exact (case-sensitive) username match.
	FindUserByUsername(username string) (*User, error)

	// FindUserByID returns the user with the given id.
	FindUserByID(id int64) (*User, error)

	// CountUsers returns the number of registered users.
	CountUsers() (int64, error)

	// Folder operations

	// CreateFolder inserts a folder. Returns ErrDuplicateFolder if the user already has one
	// with this name.
	CreateFolder(userID int64, name string) (*Folder, error)

	// FindFolderByID returns a folder regardless of its owner.
	FindFolderByID(id int64) (*Folder, error)

	// FindFolderByName returns the user's folder with the given name.
	FindFolderByName(userID int64, name string) (*Folder, error)

	// ListFolders returns all folders owned by the user.
	ListFolders(userID int64) ([]*Folder, error)

	// DeleteFolderAndFiles deletes every file record in the folder and then the folder
	// record itself, in one transaction. Returns the number of file records removed.
	DeleteFolderAndFiles(folder *Folder) (int64, error)

	// File operations

	// CreateFile inserts a file record. An empty folder stores NULL (the root bucket).
	// Returns ErrAlreadyExists if (user, folder, filename) is already catalogued.
	CreateFile(file *File) (*File, error)

	// FindFileByID returns a file regardless of its owner.
	FindFileByID(id int64) (*File, error)

	// FindFileByLocation returns the user's file with this folder and filename.
	FindFileByLocation(userID int64, folder, filename string) (*File, error)

	// ListFiles returns the user's files in exactly one bucket.
	ListFiles(userID int64, folder string) ([]*File, error)

	// DeleteFile deletes a file record.
	DeleteFile(file *File) error

	// Operation tracking

	// CreateOperation records the start of a mutating operation.
	CreateOperation(operation, parameters string) (*Operation, error)

	// FinishOperation marks an operation finished with the given status.
	FinishOperation(id int64, status string) error

	// ListOperations returns the most recent operations, newest first.
	ListOperations(limit int) ([]*Operation, error)

	// Close closes the database connection.
	Close() error
}
