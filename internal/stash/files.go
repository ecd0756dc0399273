package stash

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// UploadFile stores the content read from r and catalogs it.
// filename is the name supplied by the client; it is sanitized to a safe base name.
// folder is empty for the root bucket, otherwise it must name an existing folder.
// size is the number of bytes in r, or -1 if unknown.
func (s *StashService) UploadFile(userID int64, folder, filename string, r io.Reader, size int64) (*File, error) {
	folder = strings.TrimSpace(folder)

	name := SanitizeFilename(filename)
	if name == "" {
		return nil, fmt.Errorf("%w: %q has no usable name", ErrInvalidName, filename)
	}

	var limited *limitReader
	if s.policy != nil {
		if !s.policy.AllowedExtension(name) {
			return nil, fmt.Errorf("%w: %s", ErrDisallowedExtension, name)
		}
		if limit := s.policy.MaxSize(); limit > 0 {
			if size > limit {
				return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrTooLarge, size, limit)
			}
			limited = &limitReader{r: r, limit: limit, remaining: limit}
			r = limited
		}
	}

	objPath, err := ResolveObject(userID, folder, name)
	if err != nil {
		return nil, err
	}

	if folder != "" {
		f, err := s.database.FindFolderByName(userID, folder)
		if err != nil {
			return nil, fmt.Errorf("finding folder: %w", err)
		}
		if f == nil {
			return nil, fmt.Errorf("folder %q: %w", folder, ErrNotFound)
		}
	} else {
		// Root files and folders share the user's directory.
		f, err := s.database.FindFolderByName(userID, name)
		if err != nil {
			return nil, fmt.Errorf("checking for folder named %q: %w", name, err)
		}
		if f != nil {
			return nil, fmt.Errorf("%s: folder exists: %w", objPath, ErrAlreadyExists)
		}
	}

	existing, err := s.database.FindFileByLocation(userID, folder, name)
	if err != nil {
		return nil, fmt.Errorf("checking for existing file: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%s: %w", objPath, ErrAlreadyExists)
	}

	counter := &countingReader{r: r}
	if err := s.store.Write(objPath, counter, size); err != nil {
		// Stores may wrap the reader's error in their own; report the limit on its own.
		if limited != nil && limited.exceeded() {
			return nil, fmt.Errorf("%w: upload exceeds limit of %d bytes", ErrTooLarge, limited.limit)
		}
		return nil, fmt.Errorf("writing object: %w", err)
	}

	file, err := s.database.CreateFile(&File{
		UserID:    userID,
		Folder:    folder,
		Filename:  name,
		Size:      counter.n,
		CreatedAt: s.clock.Now(),
	})
	if err != nil {
		// A concurrent upload of the same name won the insert and shares the object,
		// so the object must stay. Any other failure leaves an object nobody can list.
		if errors.Is(err, ErrAlreadyExists) {
			return nil, fmt.Errorf("%s: %w", objPath, ErrAlreadyExists)
		}
		if delErr := s.store.Delete(objPath); delErr != nil {
			s.logger.Error("orphan object after failed catalog insert", "path", objPath.String(), "error", delErr)
		}
		return nil, fmt.Errorf("recording file: %w", err)
	}

	s.logger.Info("file uploaded", "user_id", userID, "file_id", file.ID, "path", objPath.String(), "size", file.Size)
	return file, nil
}

// GetFile returns the user's file record. Files of other users fail with ErrForbidden.
func (s *StashService) GetFile(userID int64, fileID int64) (*File, error) {
	file, err := s.database.FindFileByID(fileID)
	if err != nil {
		return nil, fmt.Errorf("finding file: %w", err)
	}
	if file == nil {
		return nil, ErrNotFound
	}
	if file.UserID != userID {
		s.logger.Warn("file access denied", "user_id", userID, "file_id", fileID)
		return nil, ErrForbidden
	}
	return file, nil
}

// DownloadFile returns the file record and a reader for its content.
// The caller must close the reader. A catalogued file whose object is missing
// fails with ErrNotFound.
func (s *StashService) DownloadFile(userID int64, fileID int64) (*File, io.ReadCloser, error) {
	file, err := s.GetFile(userID, fileID)
	if err != nil {
		return nil, nil, err
	}

	objPath, err := ResolveObject(file.UserID, file.Folder, file.Filename)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving file %d: %w", file.ID, err)
	}

	rc, err := s.store.Open(objPath)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.Warn("catalogued object missing", "file_id", file.ID, "path", objPath.String())
		}
		return nil, nil, fmt.Errorf("opening object: %w", err)
	}

	s.logger.Debug("file downloaded", "user_id", userID, "file_id", file.ID)
	return file, rc, nil
}

// DeleteFile removes the file's object and then its record. A missing object is
// tolerated so that drifted records can still be cleaned up.
func (s *StashService) DeleteFile(userID int64, fileID int64) error {
	file, err := s.GetFile(userID, fileID)
	if err != nil {
		return err
	}

	objPath, err := ResolveObject(file.UserID, file.Folder, file.Filename)
	if err != nil {
		return fmt.Errorf("resolving file %d: %w", file.ID, err)
	}

	if err := s.store.Delete(objPath); err != nil {
		return fmt.Errorf("deleting object: %w", err)
	}

	if err := s.database.DeleteFile(file); err != nil {
		return fmt.Errorf("deleting file record: %w", err)
	}

	s.logger.Info("file deleted", "user_id", userID, "file_id", file.ID, "path", objPath.String())
	return nil
}

// ListFiles returns the user's files in one bucket. An empty folder selects the root bucket.
func (s *StashService) ListFiles(userID int64, folder string) ([]*File, error) {
	files, err := s.database.ListFiles(userID, strings.TrimSpace(folder))
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	return files, nil
}

// ListDashboard returns the files of one bucket together with all of the user's folders.
func (s *StashService) ListDashboard(userID int64, folder string) (*Dashboard, error) {
	folder = strings.TrimSpace(folder)

	files, err := s.ListFiles(userID, folder)
	if err != nil {
		return nil, err
	}
	folders, err := s.ListFolders(userID)
	if err != nil {
		return nil, err
	}

	return &Dashboard{Folder: folder, Files: files, Folders: folders}, nil
}

// countingReader records how many bytes were read through it.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// limitReader fails with ErrTooLarge once more than remaining bytes are read.
type limitReader struct {
	r         io.Reader
	limit     int64
	remaining int64
}

func (l *limitReader) exceeded() bool {
	return l.remaining < 0
}

func (l *limitReader) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return 0, ErrTooLarge
	}
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, ErrTooLarge
	}
	return n, err
}
