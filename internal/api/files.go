package api

import (
	"errors"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"stash-go/internal/stash"
)

// multipartOverhead is the allowance for multipart framing on top of the file itself.
const multipartOverhead = 1 << 20

func (s *Server) uploadFile(c *gin.Context) {
	if s.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload+multipartOverhead)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			respondError(c, stash.ErrTooLarge)
			return
		}
		c.JSON(http.StatusBadRequest, errorResponse{Error: "multipart field 'file' is required"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()

	file, err := s.service.UploadFile(currentUser(c).ID, c.PostForm("folder"), fh.Filename, f, fh.Size)
	if err != nil {
		respondError(c, err)
		return
	}

	s.metrics.uploadedBytes.Add(float64(file.Size))
	c.JSON(http.StatusCreated, newFileResponse(file))
}

func (s *Server) downloadFile(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	file, rc, err := s.service.DownloadFile(currentUser(c).ID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(filepath.Ext(file.Filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	s.metrics.downloads.Inc()
	c.DataFromReader(http.StatusOK, file.Size, contentType, rc, map[string]string{
		"Content-Disposition":    mime.FormatMediaType("attachment", map[string]string{"filename": file.Filename}),
		"X-Content-Type-Options": "nosniff",
	})
}

func (s *Server) deleteFile(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.service.DeleteFile(currentUser(c).ID, id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
