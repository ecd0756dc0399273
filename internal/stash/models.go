package stash

import (
	"database/sql"
	"time"
)

// User is a registered account. Users are never modified or deleted after registration.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Folder is a named, flat, per-user container. Files reference folders by name.
type Folder struct {
	ID        int64
	UserID    int64
	Name      string
	CreatedAt time.Time
}

// File is a catalog record describing exactly one stored object.
// An empty Folder means the user's root bucket.
type File struct {
	ID        int64
	UserID    int64
	Folder    string
	Filename  string
	Size      int64
	CreatedAt time.Time
}

// InRoot reports whether the file lives in the user's root bucket.
func (f *File) InRoot() bool {
	return f.Folder == ""
}

// Operation is an audit record of a mutating CLI invocation.
type Operation struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Operation  string
	Parameters string
	Status     string
}

// Dashboard is the listing shown to a user: the files of one bucket plus all folders.
type Dashboard struct {
	Folder  string
	Files   []*File
	Folders []*Folder
}
