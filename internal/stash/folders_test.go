package stash_test

import (
	"errors"
	"testing"

	"stash-go/internal/stash"
)

func TestStashService_CreateFolder(t *testing.T) {
	t.Run("creates record and directory", func(t *testing.T) {
		env := newTestEnv(t, nil)
		alice := env.mustRegister(t, "alice")

		folder, err := env.svc.CreateFolder(alice.ID, "  reports ")
		if err != nil {
			t.Fatalf("CreateFolder() error = %v", err)
		}
		if folder.Name != "reports" || folder.UserID != alice.ID {
			t.Errorf("CreateFolder() = %+v", folder)
		}

		dirPath, _ := stash.ResolveFolder(alice.ID, "reports")
		if exists, _ := env.store.Exists(dirPath); !exists {
			t.Error("folder directory was not created")
		}
	})

	t.Run("rejects duplicate name", func(t *testing.T) {
		env := newTestEnv(t, nil)
		alice := env.mustRegister(t, "alice")

		if _, err := env.svc.CreateFolder(alice.ID, "reports"); err != nil {
			t.Fatalf("CreateFolder() error = %v", err)
		}
		if _, err := env.svc.CreateFolder(alice.ID, "reports"); !errors.Is(err, stash.ErrDuplicateFolder) {
			t.Errorf("second CreateFolder() error = %v, want ErrDuplicateFolder", err)
		}
	})

	t.Run("same name for different users", func(t *testing.T) {
		env := newTestEnv(t, nil)
		alice := env.mustRegister(t, "alice")
		bob := env.mustRegister(t, "bob")

		if _, err := env.svc.CreateFolder(alice.ID, "reports"); err != nil {
			t.Fatalf("CreateFolder(alice) error = %v", err)
		}
		if _, err := env.svc.CreateFolder(bob.ID, "reports"); err != nil {
			t.Errorf("CreateFolder(bob) error = %v", err)
		}
	})

	t.Run("name taken by a root file", func(t *testing.T) {
		env := newTestEnv(t, nil)
		alice := env.mustRegister(t, "alice")
		file := mustUpload(t, env, alice.ID, "", "reports", "numbers")

		if _, err := env.svc.CreateFolder(alice.ID, "reports"); !errors.Is(err, stash.ErrAlreadyExists) {
			t.Fatalf("CreateFolder() error = %v, want ErrAlreadyExists", err)
		}

		folders, err := env.svc.ListFolders(alice.ID)
		if err != nil {
			t.Fatal(err)
		}
		if len(folders) != 0 {
			t.Errorf("ListFolders() = %v, want empty", folders)
		}
		_, rc, err := env.svc.DownloadFile(alice.ID, file.ID)
		if err != nil {
			t.Fatalf("DownloadFile() error = %v", err)
		}
		if got := string(readAllClose(t, rc)); got != "numbers" {
			t.Errorf("root file content = %q, want %q", got, "numbers")
		}
	})

	t.Run("root upload over a folder name", func(t *testing.T) {
		env := newTestEnv(t, nil)
		alice := env.mustRegister(t, "alice")

		if _, err := env.svc.CreateFolder(alice.ID, "reports"); err != nil {
			t.Fatalf("CreateFolder() error = %v", err)
		}
		_, err := env.svc.UploadFile(alice.ID, "", "reports", bytesReader([]byte("numbers")), 7)
		if !errors.Is(err, stash.ErrAlreadyExists) {
			t.Fatalf("UploadFile() error = %v, want ErrAlreadyExists", err)
		}

		// The folder stays usable.
		mustUpload(t, env, alice.ID, "reports", "q1.pdf", "%PDF")
	})

	t.Run("rejects empty and unsafe names", func(t *testing.T) {
		env := newTestEnv(t, nil)
		alice := env.mustRegister(t, "alice")

		if _, err := env.svc.CreateFolder(alice.ID, "   "); !errors.Is(err, stash.ErrEmptyName) {
			t.Errorf("CreateFolder(blank) error = %v, want ErrEmptyName", err)
		}
		for _, name := range []string{"..", "../bob", "a/b", ".hidden"} {
			if _, err := env.svc.CreateFolder(alice.ID, name); !errors.Is(err, stash.ErrInvalidName) {
				t.Errorf("CreateFolder(%q) error = %v, want ErrInvalidName", name, err)
			}
		}
		if keys := env.store.Keys(); len(keys) != 0 {
			t.Errorf("store touched by rejected names: %v", keys)
		}

		folders, err := env.svc.ListFolders(alice.ID)
		if err != nil {
			t.Fatal(err)
		}
		if len(folders) != 0 {
			t.Errorf("ListFolders() = %v, want empty", folders)
		}
	})
}

func TestStashService_DeleteFolder(t *testing.T) {
	t.Run("removes files, directory and record", func(t *testing.T) {
		env := newTestEnv(t, nil)
		alice := env.mustRegister(t, "alice")

		reports, err := env.svc.CreateFolder(alice.ID, "reports")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := env.svc.CreateFolder(alice.ID, "photos"); err != nil {
			t.Fatal(err)
		}
		inFolder := mustUpload(t, env, alice.ID, "reports", "q1.pdf", "one")
		mustUpload(t, env, alice.ID, "reports", "q2.pdf", "two")
		kept := mustUpload(t, env, alice.ID, "photos", "cat.jpg", "meow")
		rootFile := mustUpload(t, env, alice.ID, "", "q1.pdf", "root")

		if err := env.svc.DeleteFolder(alice.ID, reports.ID); err != nil {
			t.Fatalf("DeleteFolder() error = %v", err)
		}

		files, err := env.svc.ListFiles(alice.ID, "reports")
		if err != nil {
			t.Fatal(err)
		}
		if len(files) != 0 {
			t.Errorf("ListFiles(reports) = %v, want empty", files)
		}
		if _, err := env.svc.GetFile(alice.ID, inFolder.ID); !errors.Is(err, stash.ErrNotFound) {
			t.Errorf("GetFile() of removed file error = %v, want ErrNotFound", err)
		}

		dirPath, _ := stash.ResolveFolder(alice.ID, "reports")
		if exists, _ := env.store.Exists(dirPath); exists {
			t.Error("folder directory still present")
		}

		for _, f := range []*stash.File{kept, rootFile} {
			_, rc, err := env.svc.DownloadFile(alice.ID, f.ID)
			if err != nil {
				t.Errorf("DownloadFile(%s/%s) error = %v", f.Folder, f.Filename, err)
				continue
			}
			rc.Close()
		}

		folders, err := env.svc.ListFolders(alice.ID)
		if err != nil {
			t.Fatal(err)
		}
		if len(folders) != 1 || folders[0].Name != "photos" {
			t.Errorf("ListFolders() = %v, want [photos]", folders)
		}
	})

	t.Run("name can be reused after delete", func(t *testing.T) {
		env := newTestEnv(t, nil)
		alice := env.mustRegister(t, "alice")

		folder, err := env.svc.CreateFolder(alice.ID, "reports")
		if err != nil {
			t.Fatal(err)
		}
		mustUpload(t, env, alice.ID, "reports", "q1.pdf", "one")
		if err := env.svc.DeleteFolder(alice.ID, folder.ID); err != nil {
			t.Fatal(err)
		}

		if _, err := env.svc.CreateFolder(alice.ID, "reports"); err != nil {
			t.Fatalf("CreateFolder() after delete error = %v", err)
		}
		mustUpload(t, env, alice.ID, "reports", "q1.pdf", "fresh")
	})

	t.Run("other user's folder is forbidden", func(t *testing.T) {
		env := newTestEnv(t, nil)
		alice := env.mustRegister(t, "alice")
		bob := env.mustRegister(t, "bob")

		folder, err := env.svc.CreateFolder(alice.ID, "reports")
		if err != nil {
			t.Fatal(err)
		}
		file := mustUpload(t, env, alice.ID, "reports", "q1.pdf", "one")

		if err := env.svc.DeleteFolder(bob.ID, folder.ID); !errors.Is(err, stash.ErrForbidden) {
			t.Errorf("DeleteFolder() error = %v, want ErrForbidden", err)
		}
		if _, err := env.svc.GetFile(alice.ID, file.ID); err != nil {
			t.Errorf("file removed by forbidden delete: %v", err)
		}
	})

	t.Run("unknown folder", func(t *testing.T) {
		env := newTestEnv(t, nil)
		alice := env.mustRegister(t, "alice")

		if err := env.svc.DeleteFolder(alice.ID, 999); !errors.Is(err, stash.ErrNotFound) {
			t.Errorf("DeleteFolder() error = %v, want ErrNotFound", err)
		}
	})
}
