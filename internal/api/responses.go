package api

import (
	"time"

	"stash-go/internal/stash"
)

type userResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

type folderResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type fileResponse struct {
	ID        int64     `json:"id"`
	Folder    *string   `json:"folder"` // null for the root bucket
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

type dashboardResponse struct {
	Folder  string           `json:"folder"`
	Files   []fileResponse   `json:"files"`
	Folders []folderResponse `json:"folders"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      userResponse `json:"user"`
}

func newUserResponse(u *stash.User) userResponse {
	return userResponse{ID: u.ID, Username: u.Username, CreatedAt: u.CreatedAt}
}

func newFolderResponse(f *stash.Folder) folderResponse {
	return folderResponse{ID: f.ID, Name: f.Name, CreatedAt: f.CreatedAt}
}

func newFileResponse(f *stash.File) fileResponse {
	resp := fileResponse{ID: f.ID, Filename: f.Filename, Size: f.Size, CreatedAt: f.CreatedAt}
	if !f.InRoot() {
		folder := f.Folder
		resp.Folder = &folder
	}
	return resp
}

func newDashboardResponse(d *stash.Dashboard) dashboardResponse {
	resp := dashboardResponse{
		Folder:  d.Folder,
		Files:   make([]fileResponse, 0, len(d.Files)),
		Folders: make([]folderResponse, 0, len(d.Folders)),
	}
	for _, f := range d.Files {
		resp.Files = append(resp.Files, newFileResponse(f))
	}
	for _, f := range d.Folders {
		resp.Folders = append(resp.Folders, newFolderResponse(f))
	}
	return resp
}
