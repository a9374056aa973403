package handlers

import (
	"fmt"
	"strconv"
	"strings"

	"autoparts/internal/models"

	"github.com/gin-gonic/gin"
)

const maxProductImages = 8

// productForm is the create/update payload. Nil fields were not sent.
type productForm struct {
	ProductID     *string   `json:"productId"`
	Name          *string   `json:"name"`
	Brand         *string   `json:"brand"`
	CategoryID    *string   `json:"categoryId"`
	Compatibility *[]string `json:"compatibility"`
	Description   *string   `json:"description"`
	Price         *float64  `json:"price"`
	SaleEnabled   *bool     `json:"saleEnabled"`
	SalePrice     *float64  `json:"salePrice"`
	Stock         *int      `json:"stock"`
	IsActive      *bool     `json:"isActive"`
	RemoveImages  []string  `json:"removeImages"`

	newImages []string
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.GetHeader("Content-Type"), "multipart/form-data")
}

// lastPostForm returns the last value of a repeated form field.
func lastPostForm(c *gin.Context, key string) (string, bool) {
	values, ok := c.GetPostFormArray(key)
	if !ok || len(values) == 0 {
		return "", false
	}
	return strings.TrimSpace(values[len(values)-1]), true
}

func parseBoolValue(value string) (bool, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "on" {
		return true, nil
	}
	return strconv.ParseBool(value)
}

// parseMultipartProductForm reads form fields and stores every uploaded
// "images" file. Files already saved are removed when a later one fails.
func parseMultipartProductForm(c *gin.Context, store *UploadStore) (productForm, error) {
	if err := c.Request.ParseMultipartForm(32 << 20); err != nil {
		return productForm{}, fmt.Errorf("invalid multipart form: %w", err)
	}

	var form productForm

	for key, dest := range map[string]**string{
		"productId":   &form.ProductID,
		"name":        &form.Name,
		"brand":       &form.Brand,
		"categoryId":  &form.CategoryID,
		"description": &form.Description,
	} {
		if value, ok := lastPostForm(c, key); ok {
			v := value
			*dest = &v
		}
	}

	for key, dest := range map[string]**float64{
		"price":     &form.Price,
		"salePrice": &form.SalePrice,
	} {
		if value, ok := lastPostForm(c, key); ok && value != "" {
			parsed, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return productForm{}, fmt.Errorf("%s must be a number", key)
			}
			*dest = &parsed
		}
	}

	if value, ok := lastPostForm(c, "stock"); ok && value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return productForm{}, fmt.Errorf("stock must be an integer")
		}
		form.Stock = &parsed
	}

	for key, dest := range map[string]**bool{
		"saleEnabled": &form.SaleEnabled,
		"isActive":    &form.IsActive,
	} {
		if value, ok := lastPostForm(c, key); ok {
			parsed, err := parseBoolValue(value)
			if err != nil {
				return productForm{}, fmt.Errorf("%s must be a boolean", key)
			}
			*dest = &parsed
		}
	}

	if values, ok := c.GetPostFormArray("compatibility"); ok {
		list := models.SplitList(strings.Join(values, ","))
		compat := []string(list)
		form.Compatibility = &compat
	}

	if values, ok := c.GetPostFormArray("removeImages"); ok {
		form.RemoveImages = models.SplitList(strings.Join(values, ","))
	}

	files := c.Request.MultipartForm.File["images"]
	if len(files) > maxProductImages {
		return productForm{}, fmt.Errorf("at most %d images per request", maxProductImages)
	}
	for _, file := range files {
		saved, err := store.SaveImage(file)
		if err != nil {
			form.discardNewImages(store)
			return productForm{}, err
		}
		form.newImages = append(form.newImages, saved)
	}

	return form, nil
}

func (f *productForm) discardNewImages(store *UploadStore) {
	for _, img := range f.newImages {
		_ = store.Delete(img)
	}
	f.newImages = nil
}

func trimmedPtr(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}
