package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func multipartContext(t *testing.T, build func(w *multipart.Writer)) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	build(writer)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("PUT", "/api/products/1", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = req
	return c
}

func TestParseMultipartProductForm_PicksLastSaleEnabledValue(t *testing.T) {
	c := multipartContext(t, func(w *multipart.Writer) {
		_ = w.WriteField("saleEnabled", "false")
		_ = w.WriteField("saleEnabled", "true")
		_ = w.WriteField("salePrice", "99")
		_ = w.WriteField("compatibility", "Toyota Corolla, Honda Civic")
		_ = w.WriteField("compatibility", "Nissan Sunny")
		_ = w.WriteField("removeImages", "uploads/products/a.png")
	})

	form, err := parseMultipartProductForm(c, NewUploadStore(t.TempDir(), ""))
	require.NoError(t, err)

	require.NotNil(t, form.SaleEnabled)
	assert.True(t, *form.SaleEnabled)
	require.NotNil(t, form.SalePrice)
	assert.Equal(t, 99.0, *form.SalePrice)
	require.NotNil(t, form.Compatibility)
	assert.Equal(t, []string{"Toyota Corolla", "Honda Civic", "Nissan Sunny"}, *form.Compatibility)
	assert.Equal(t, []string{"uploads/products/a.png"}, form.RemoveImages)
	assert.Nil(t, form.Price)
	assert.Nil(t, form.Name)
}

func TestParseMultipartProductForm_SavesImages(t *testing.T) {
	c := multipartContext(t, func(w *multipart.Writer) {
		_ = w.WriteField("name", " Oil filter ")
		_ = w.WriteField("stock", "12")
		part, _ := w.CreateFormFile("images", "filter.jpg")
		_, _ = part.Write([]byte("jpg"))
	})

	form, err := parseMultipartProductForm(c, NewUploadStore(t.TempDir(), ""))
	require.NoError(t, err)
	assert.Equal(t, "Oil filter", trimmedPtr(form.Name))
	require.NotNil(t, form.Stock)
	assert.Equal(t, 12, *form.Stock)
	assert.Len(t, form.newImages, 1)
}

func TestParseMultipartProductForm_RejectsBadValues(t *testing.T) {
	c := multipartContext(t, func(w *multipart.Writer) {
		_ = w.WriteField("price", "cheap")
	})
	_, err := parseMultipartProductForm(c, NewUploadStore(t.TempDir(), ""))
	assert.ErrorContains(t, err, "price must be a number")

	c = multipartContext(t, func(w *multipart.Writer) {
		part, _ := w.CreateFormFile("images", "virus.exe")
		_, _ = part.Write([]byte("x"))
	})
	_, err = parseMultipartProductForm(c, NewUploadStore(t.TempDir(), ""))
	assert.ErrorContains(t, err, "unsupported image type")
}
