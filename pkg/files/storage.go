package files

import (
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Storer persists an uploaded file and returns the path it can be served
// from later.
type Storer interface {
	Save(file multipart.File, header *multipart.FileHeader) (string, error)
}

type DiskStorage struct {
	dir string
}

func NewDiskStorage(dir string) (*DiskStorage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	return &DiskStorage{dir: dir}, nil
}

// Save names the file after the upload moment, keeping the original
// extension so the static file server picks the right content type.
func (s *DiskStorage) Save(file multipart.File, header *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(header.Filename))
	name := strconv.FormatInt(time.Now().UnixNano(), 10) + ext

	dst, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		return "", err
	}

	return filepath.ToSlash(filepath.Join(s.dir, name)), nil
}
