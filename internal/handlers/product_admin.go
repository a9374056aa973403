package handlers

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"autoparts/internal/cache"
	"autoparts/internal/logger"
	"autoparts/internal/models"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	errCategoryNotFound  = errors.New("category not found")
	errInvalidCategoryID = errors.New("invalid categoryId")
)

type StockUpdateRequest struct {
	Delta *int `json:"delta"`
	Stock *int `json:"stock" binding:"omitempty,gte=0"`
}

// resolveCategory checks that the hex id names an active category. An empty
// value clears the category.
func resolveCategory(ctx context.Context, db *mongo.Database, raw string) (*primitive.ObjectID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return nil, errInvalidCategoryID
	}
	count, err := db.Collection("categories").CountDocuments(ctx, bson.M{"_id": id, "isActive": true})
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, errCategoryNotFound
	}
	return &id, nil
}

// respondCategoryError reports a bad category reference as 400 and anything
// else as a server error.
func respondCategoryError(c *gin.Context, err error) {
	if errors.Is(err, errCategoryNotFound) || errors.Is(err, errInvalidCategoryID) {
		respondWithError(c, http.StatusBadRequest, catalogComponent, err.Error())
		return
	}
	respondInternal(c, catalogComponent, "db error", err)
}

// newProductFromForm validates a create form.
func newProductFromForm(form productForm, now time.Time) (models.Product, error) {
	product := models.Product{
		ProductID:   strings.ToUpper(trimmedPtr(form.ProductID)),
		Name:        trimmedPtr(form.Name),
		Brand:       trimmedPtr(form.Brand),
		Description: trimmedPtr(form.Description),
		Images:      append([]string{}, form.newImages...),
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if product.ProductID == "" {
		return models.Product{}, errors.New("productId is required")
	}
	if product.Name == "" {
		return models.Product{}, errors.New("name is required")
	}
	if form.Price == nil {
		return models.Product{}, errors.New("price is required")
	}
	if form.Compatibility != nil {
		product.Compatibility = models.StringList(*form.Compatibility)
	}
	if form.Stock != nil {
		if *form.Stock < 0 {
			return models.Product{}, errors.New("stock must be zero or greater")
		}
		product.Stock = *form.Stock
	}
	if form.IsActive != nil {
		product.IsActive = *form.IsActive
	}

	sale, err := resolveSale(saleState{}, saleInput{Price: form.Price, SaleEnabled: form.SaleEnabled, SalePrice: form.SalePrice})
	if err != nil {
		return models.Product{}, err
	}
	product.Price = sale.Price
	product.SaleEnabled = sale.SaleEnabled
	product.SalePrice = sale.SalePrice

	return product, nil
}

func CreateProduct(db *mongo.Database, store *UploadStore, catalogCache *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isMultipart(c) {
			respondWithError(c, http.StatusUnsupportedMediaType, catalogComponent, "multipart/form-data required")
			return
		}

		form, err := parseMultipartProductForm(c, store)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, catalogComponent, err.Error())
			return
		}

		product, err := newProductFromForm(form, time.Now())
		if err != nil {
			form.discardNewImages(store)
			respondWithError(c, http.StatusBadRequest, catalogComponent, err.Error())
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		product.CategoryID, err = resolveCategory(ctx, db, trimmedPtr(form.CategoryID))
		if err != nil {
			form.discardNewImages(store)
			respondCategoryError(c, err)
			return
		}

		products := db.Collection("products")
		res, err := products.InsertOne(ctx, product)
		if isDuplicateKey(err) {
			form.discardNewImages(store)
			respondWithError(c, http.StatusConflict, catalogComponent, "productId already exists")
			return
		}
		if err != nil {
			form.discardNewImages(store)
			respondInternal(c, catalogComponent, "db error", err)
			return
		}
		product.ID, _ = res.InsertedID.(primitive.ObjectID)

		log := logger.From(c, catalogComponent).WithField("productId", product.ProductID)

		if qr, err := store.SaveQRCode(product.ID.Hex()); err != nil {
			log.WithError(err).Warn("qr code not generated")
		} else if _, err := products.UpdateByID(ctx, product.ID, bson.M{"$set": bson.M{"qrCode": qr}}); err != nil {
			log.WithError(err).Warn("qr code path not stored")
		} else {
			product.QRCode = qr
		}

		invalidateCatalog(c, catalogCache)
		log.Info("product created")

		decorateProduct(&product)
		respond(c, http.StatusCreated, gin.H{"data": product})
	}
}

// productUpdateSet merges the form into the stored product. It returns the
// $set document and the image paths that are no longer referenced.
func productUpdateSet(existing models.Product, form productForm) (bson.M, []string, error) {
	set := bson.M{}

	if form.ProductID != nil {
		code := strings.ToUpper(trimmedPtr(form.ProductID))
		if code == "" {
			return nil, nil, errors.New("productId cannot be empty")
		}
		set["productId"] = code
	}
	if form.Name != nil {
		name := trimmedPtr(form.Name)
		if name == "" {
			return nil, nil, errors.New("name cannot be empty")
		}
		set["name"] = name
	}
	if form.Brand != nil {
		set["brand"] = trimmedPtr(form.Brand)
	}
	if form.Description != nil {
		set["description"] = trimmedPtr(form.Description)
	}
	if form.Compatibility != nil {
		set["compatibility"] = models.StringList(*form.Compatibility)
	}
	if form.Stock != nil {
		if *form.Stock < 0 {
			return nil, nil, errors.New("stock must be zero or greater")
		}
		set["stock"] = *form.Stock
	}
	if form.IsActive != nil {
		set["isActive"] = *form.IsActive
	}

	if form.Price != nil || form.SaleEnabled != nil || form.SalePrice != nil {
		sale, err := resolveSale(
			saleState{Price: existing.Price, SaleEnabled: existing.SaleEnabled, SalePrice: existing.SalePrice},
			saleInput{Price: form.Price, SaleEnabled: form.SaleEnabled, SalePrice: form.SalePrice},
		)
		if err != nil {
			return nil, nil, err
		}
		set["price"] = sale.Price
		set["saleEnabled"] = sale.SaleEnabled
		set["salePrice"] = sale.SalePrice
	}

	var removed []string
	if len(form.RemoveImages) > 0 || len(form.newImages) > 0 {
		images := make([]string, 0, len(existing.Images)+len(form.newImages))
		for _, img := range existing.Images {
			if slices.Contains(form.RemoveImages, img) {
				removed = append(removed, img)
				continue
			}
			images = append(images, img)
		}
		images = append(images, form.newImages...)
		if len(images) > maxProductImages {
			return nil, nil, errors.New("too many images")
		}
		set["images"] = images
	}

	return set, removed, nil
}

// UpdateProduct accepts multipart (with new images) or a JSON partial body.
func UpdateProduct(db *mongo.Database, store *UploadStore, catalogCache *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := objectIDParam(c, "id", catalogComponent)
		if !ok {
			return
		}

		var form productForm
		if isMultipart(c) {
			parsed, err := parseMultipartProductForm(c, store)
			if err != nil {
				respondWithError(c, http.StatusBadRequest, catalogComponent, err.Error())
				return
			}
			form = parsed
		} else if err := c.ShouldBindJSON(&form); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		products := db.Collection("products")
		filter := bson.M{"_id": id, "isDeleted": notDeleted}

		var existing models.Product
		err := products.FindOne(ctx, filter).Decode(&existing)
		if errors.Is(err, mongo.ErrNoDocuments) {
			form.discardNewImages(store)
			respondWithError(c, http.StatusNotFound, catalogComponent, "product not found")
			return
		}
		if err != nil {
			form.discardNewImages(store)
			respondInternal(c, catalogComponent, "db error", err)
			return
		}

		set, removed, err := productUpdateSet(existing, form)
		if err != nil {
			form.discardNewImages(store)
			respondWithError(c, http.StatusBadRequest, catalogComponent, err.Error())
			return
		}
		if form.CategoryID != nil {
			categoryID, err := resolveCategory(ctx, db, *form.CategoryID)
			if err != nil {
				form.discardNewImages(store)
				respondCategoryError(c, err)
				return
			}
			set["categoryId"] = categoryID
		}
		if len(set) == 0 {
			respondWithError(c, http.StatusBadRequest, catalogComponent, "no fields to update")
			return
		}
		set["updatedAt"] = time.Now()

		var updated models.Product
		err = products.FindOneAndUpdate(ctx, filter, bson.M{"$set": set},
			options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&updated)
		if isDuplicateKey(err) {
			form.discardNewImages(store)
			respondWithError(c, http.StatusConflict, catalogComponent, "productId already exists")
			return
		}
		if errors.Is(err, mongo.ErrNoDocuments) {
			form.discardNewImages(store)
			respondWithError(c, http.StatusNotFound, catalogComponent, "product not found")
			return
		}
		if err != nil {
			form.discardNewImages(store)
			respondInternal(c, catalogComponent, "db error", err)
			return
		}

		log := logger.From(c, catalogComponent).WithField("productId", updated.ProductID)
		for _, img := range removed {
			if err := store.Delete(img); err != nil {
				log.WithError(err).Warn("removed image not deleted")
			}
		}

		invalidateCatalog(c, catalogCache)
		decorateProduct(&updated)
		respond(c, http.StatusOK, gin.H{"data": updated})
	}
}

// UpdateProductStock applies either a relative delta or an absolute stock.
// A negative delta never takes stock below zero.
func UpdateProductStock(db *mongo.Database, catalogCache *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := objectIDParam(c, "id", catalogComponent)
		if !ok {
			return
		}

		var req StockUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		if (req.Delta == nil) == (req.Stock == nil) {
			respondWithError(c, http.StatusBadRequest, catalogComponent, "provide exactly one of delta or stock")
			return
		}

		filter := bson.M{"_id": id, "isDeleted": notDeleted}
		update := bson.M{"$currentDate": bson.M{"updatedAt": true}}
		if req.Delta != nil {
			if *req.Delta < 0 {
				filter["stock"] = bson.M{"$gte": -*req.Delta}
			}
			update["$inc"] = bson.M{"stock": *req.Delta}
		} else {
			update["$set"] = bson.M{"stock": *req.Stock}
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		var updated models.Product
		err := db.Collection("products").FindOneAndUpdate(ctx, filter, update,
			options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&updated)
		if errors.Is(err, mongo.ErrNoDocuments) {
			if req.Delta != nil && *req.Delta < 0 {
				respondWithError(c, http.StatusBadRequest, catalogComponent, "insufficient stock or product not found")
				return
			}
			respondWithError(c, http.StatusNotFound, catalogComponent, "product not found")
			return
		}
		if err != nil {
			respondInternal(c, catalogComponent, "db error", err)
			return
		}

		invalidateCatalog(c, catalogCache)
		decorateProduct(&updated)
		respond(c, http.StatusOK, gin.H{"data": updated})
	}
}

func RegenerateProductQRCode(db *mongo.Database, store *UploadStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := objectIDParam(c, "id", catalogComponent)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		products := db.Collection("products")
		count, err := products.CountDocuments(ctx, bson.M{"_id": id, "isDeleted": notDeleted})
		if err != nil {
			respondInternal(c, catalogComponent, "db error", err)
			return
		}
		if count == 0 {
			respondWithError(c, http.StatusNotFound, catalogComponent, "product not found")
			return
		}

		qr, err := store.SaveQRCode(id.Hex())
		if err != nil {
			respondInternal(c, catalogComponent, "qr code generation failed", err)
			return
		}
		if _, err := products.UpdateByID(ctx, id, bson.M{"$set": bson.M{"qrCode": qr, "updatedAt": time.Now()}}); err != nil {
			respondInternal(c, catalogComponent, "db error", err)
			return
		}

		respond(c, http.StatusOK, gin.H{"qrCode": qr, "url": store.ProductURL(id.Hex())})
	}
}

// DeleteProduct soft deletes the product and removes its files.
func DeleteProduct(db *mongo.Database, store *UploadStore, catalogCache *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := objectIDParam(c, "id", catalogComponent)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		var existing models.Product
		err := db.Collection("products").FindOneAndUpdate(ctx,
			bson.M{"_id": id, "isDeleted": notDeleted},
			bson.M{"$set": bson.M{
				"isDeleted": true,
				"deletedAt": time.Now(),
				"isActive":  false,
			}},
		).Decode(&existing)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, catalogComponent, "product not found")
			return
		}
		if err != nil {
			respondInternal(c, catalogComponent, "db error", err)
			return
		}

		log := logger.From(c, catalogComponent).WithField("productId", existing.ProductID)
		for _, file := range append(append([]string{}, existing.Images...), existing.QRCode) {
			if err := store.Delete(file); err != nil {
				log.WithError(err).Warn("upload not deleted")
			}
		}

		invalidateCatalog(c, catalogCache)
		log.Info("product deleted")
		respond(c, http.StatusOK, gin.H{"message": "product deleted"})
	}
}
