package stash

import (
	"errors"
	"fmt"
	"strings"
)

// CreateFolder creates a named folder for the user.
//
// The backing directory is created before the record is committed. If the commit
// fails the directory is left behind and only logged; it is harmless and will be
// reused if a folder with the same name is created later.
func (s *StashService) CreateFolder(userID int64, name string) (*Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}

	dirPath, err := ResolveFolder(userID, name)
	if err != nil {
		return nil, err
	}

	existing, err := s.database.FindFolderByName(userID, name)
	if err != nil {
		return nil, fmt.Errorf("checking for existing folder: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicateFolder
	}

	// Root files and folders share the user's directory.
	rootFile, err := s.database.FindFileByLocation(userID, "", name)
	if err != nil {
		return nil, fmt.Errorf("checking for file named %q: %w", name, err)
	}
	if rootFile != nil {
		return nil, fmt.Errorf("%s: file exists: %w", dirPath, ErrAlreadyExists)
	}

	if err := s.store.MakeDir(dirPath); err != nil {
		return nil, fmt.Errorf("creating folder directory: %w", err)
	}

	folder, err := s.database.CreateFolder(userID, name)
	if err != nil {
		if errors.Is(err, ErrDuplicateFolder) {
			return nil, ErrDuplicateFolder
		}
		s.logger.Warn("folder directory left without a record", "user_id", userID, "path", dirPath.String(), "error", err)
		return nil, fmt.Errorf("creating folder: %w", err)
	}

	s.logger.Info("folder created", "user_id", userID, "folder_id", folder.ID, "name", name)
	return folder, nil
}

// DeleteFolder removes a folder, its directory, and every file catalogued in it.
//
// The directory is removed first, then the file records and the folder record, so
// that an interruption leaves orphan metadata rather than objects nobody can see.
func (s *StashService) DeleteFolder(userID int64, folderID int64) error {
	folder, err := s.database.FindFolderByID(folderID)
	if err != nil {
		return fmt.Errorf("finding folder: %w", err)
	}
	if folder == nil {
		return ErrNotFound
	}
	if folder.UserID != userID {
		s.logger.Warn("folder delete denied", "user_id", userID, "folder_id", folderID)
		return ErrForbidden
	}

	dirPath, err := ResolveFolder(folder.UserID, folder.Name)
	if err != nil {
		return fmt.Errorf("resolving folder %d: %w", folder.ID, err)
	}

	if err := s.store.RemoveDir(dirPath); err != nil {
		return fmt.Errorf("removing folder directory: %w", err)
	}

	removed, err := s.database.DeleteFolderAndFiles(folder)
	if err != nil {
		return fmt.Errorf("deleting folder records: %w", err)
	}

	s.logger.Info("folder deleted", "user_id", userID, "folder_id", folder.ID, "name", folder.Name, "files", removed)
	return nil
}

// ListFolders returns the user's folders.
func (s *StashService) ListFolders(userID int64) ([]*Folder, error) {
	folders, err := s.database.ListFolders(userID)
	if err != nil {
		return nil, fmt.Errorf("listing folders: %w", err)
	}
	return folders, nil
}
