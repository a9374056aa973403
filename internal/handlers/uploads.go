package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
)

const (
	uploadsPrefix = "uploads/"
	maxImageSize  = 5 << 20
	qrCodeSize    = 256
)

var allowedImageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
}

// UploadStore writes product media below Root. Stored paths are relative and
// start with "uploads/", matching the static route.
type UploadStore struct {
	Root          string
	StorefrontURL string
}

func NewUploadStore(root, storefrontURL string) *UploadStore {
	return &UploadStore{
		Root:          filepath.Clean(root),
		StorefrontURL: strings.TrimRight(storefrontURL, "/"),
	}
}

func (s *UploadStore) dir(sub string) (string, error) {
	dir := filepath.Join(s.Root, sub)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir %s: %w", dir, err)
	}
	return dir, nil
}

// SaveImage validates and stores a product image.
func (s *UploadStore) SaveImage(file *multipart.FileHeader) (string, error) {
	extension := strings.ToLower(filepath.Ext(file.Filename))
	if extension == "" {
		return "", fmt.Errorf("image file extension is required")
	}
	if _, ok := allowedImageExtensions[extension]; !ok {
		return "", fmt.Errorf("unsupported image type: %s", extension)
	}
	if file.Size > maxImageSize {
		return "", fmt.Errorf("image file too large (max 5MB)")
	}

	dir, err := s.dir("products")
	if err != nil {
		return "", err
	}

	filename := uuid.NewString() + extension
	out, err := os.Create(filepath.Join(dir, filename))
	if err != nil {
		return "", err
	}
	defer out.Close()

	in, err := file.Open()
	if err != nil {
		return "", err
	}
	defer in.Close()

	if _, err := io.Copy(out, in); err != nil {
		return "", err
	}

	return path.Join("uploads", "products", filename), nil
}

// ProductURL is the storefront page encoded in a product's QR code.
func (s *UploadStore) ProductURL(productID string) string {
	return s.StorefrontURL + "/products/" + productID
}

// SaveQRCode renders the product's storefront URL as a PNG.
func (s *UploadStore) SaveQRCode(productID string) (string, error) {
	dir, err := s.dir("qrcodes")
	if err != nil {
		return "", err
	}

	filename := productID + ".png"
	if err := qrcode.WriteFile(s.ProductURL(productID), qrcode.Medium, qrCodeSize, filepath.Join(dir, filename)); err != nil {
		return "", fmt.Errorf("generate qr code: %w", err)
	}
	return path.Join("uploads", "qrcodes", filename), nil
}

// Delete removes a stored upload. Paths outside Root are refused and missing
// files are ignored.
func (s *UploadStore) Delete(relPath string) error {
	trimmed := strings.TrimSpace(relPath)
	if trimmed == "" {
		return nil
	}

	cleanRel := strings.TrimPrefix(path.Clean("/"+strings.TrimPrefix(trimmed, "/")), "/")
	if !strings.HasPrefix(cleanRel, uploadsPrefix) {
		return fmt.Errorf("refusing to delete non-upload path: %s", relPath)
	}

	target := filepath.Clean(filepath.Join(s.Root, filepath.FromSlash(strings.TrimPrefix(cleanRel, uploadsPrefix))))
	if target == s.Root || !strings.HasPrefix(target, s.Root+string(os.PathSeparator)) {
		return fmt.Errorf("refusing to delete path outside upload root: %s", relPath)
	}

	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
