package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func multipartFile(t *testing.T, field, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File[field][0]
}

func TestUploadStoreSaveImage(t *testing.T) {
	store := NewUploadStore(t.TempDir(), "http://shop.test/")

	rel, err := store.SaveImage(multipartFile(t, "images", "brake.PNG", []byte("png")))
	require.NoError(t, err)
	assert.Regexp(t, `^uploads/products/[0-9a-f-]{36}\.png$`, rel)

	data, err := os.ReadFile(filepath.Join(store.Root, "products", filepath.Base(rel)))
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), data)

	_, err = store.SaveImage(multipartFile(t, "images", "notes.txt", []byte("x")))
	assert.ErrorContains(t, err, "unsupported image type")

	_, err = store.SaveImage(multipartFile(t, "images", "noext", []byte("x")))
	assert.Error(t, err)
}

func TestUploadStoreSaveQRCode(t *testing.T) {
	store := NewUploadStore(t.TempDir(), "http://shop.test/")
	assert.Equal(t, "http://shop.test/products/abc", store.ProductURL("abc"))

	rel, err := store.SaveQRCode("abc")
	require.NoError(t, err)
	assert.Equal(t, "uploads/qrcodes/abc.png", rel)

	info, err := os.Stat(filepath.Join(store.Root, "qrcodes", "abc.png"))
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestUploadStoreDeleteIsPathGuarded(t *testing.T) {
	root := t.TempDir()
	store := NewUploadStore(root, "")

	require.NoError(t, os.MkdirAll(filepath.Join(root, "products"), 0o755))
	target := filepath.Join(root, "products", "a.png")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))

	require.NoError(t, store.Delete("/uploads/products/a.png"))
	_, err := os.Stat(target)
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, store.Delete("uploads/products/a.png"))
	assert.NoError(t, store.Delete(""))
	assert.Error(t, store.Delete("config/.env"))
	assert.Error(t, store.Delete("uploads/../../etc/passwd"))
	assert.Error(t, store.Delete("uploads/"))
}
