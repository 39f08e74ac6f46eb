package files

import (
	"bytes"
	"io/ioutil"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func uploadRequest(t *testing.T, field, filename, content string) (multipart.File, *multipart.FileHeader) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("unexpected error: %v", err.Error())
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("unexpected error: %v", err.Error())
	}
	mw.Close()

	r := httptest.NewRequest("POST", "/", body)
	r.Header.Set("Content-Type", mw.FormDataContentType())

	file, header, err := r.FormFile(field)
	if err != nil {
		t.Fatalf("unexpected error: %v", err.Error())
	}

	return file, header
}

func TestSaveKeepsExtension(t *testing.T) {
	dir, err := ioutil.TempDir("", "uploads")
	if err != nil {
		t.Fatalf("unexpected error: %v", err.Error())
	}
	defer os.RemoveAll(dir)

	storage, err := NewDiskStorage(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err.Error())
	}

	file, header := uploadRequest(t, "file", "cover.PNG", "fake image bytes")
	defer file.Close()

	path, err := storage.Save(file, header)
	if err != nil {
		t.Fatalf("unexpected error: %v", err.Error())
	}

	if !strings.HasSuffix(path, ".png") {
		t.Errorf("expected the original extension lowercased, but was %v", path)
	}

	saved, err := ioutil.ReadFile(filepath.FromSlash(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err.Error())
	}
	if string(saved) != "fake image bytes" {
		t.Errorf("saved content differs from the upload")
	}
}

func TestNewDiskStorageCreatesDir(t *testing.T) {
	base, err := ioutil.TempDir("", "uploads")
	if err != nil {
		t.Fatalf("unexpected error: %v", err.Error())
	}
	defer os.RemoveAll(base)

	nested := filepath.Join(base, "a", "b")
	if _, err := NewDiskStorage(nested); err != nil {
		t.Fatalf("unexpected error: %v", err.Error())
	}

	info, err := os.Stat(nested)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected the uploads dir to exist, stat: %v %v", info, err)
	}
}
