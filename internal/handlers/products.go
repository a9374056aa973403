package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"autoparts/internal/cache"
	"autoparts/internal/logger"
	"autoparts/internal/models"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const productCachePrefix = "products:"

var notDeleted = bson.M{"$ne": true}

type productListPayload struct {
	Data       []models.Product `json:"data"`
	Pagination map[string]any   `json:"pagination,omitempty"`
}

func (p productListPayload) body() gin.H {
	body := gin.H{"data": p.Data}
	if p.Pagination != nil {
		body["pagination"] = p.Pagination
	}
	return body
}

// productListFilter turns the shared listing query parameters into a Mongo
// filter.
func productListFilter(c *gin.Context, base bson.M) (bson.M, error) {
	filter := bson.M{}
	for k, v := range base {
		filter[k] = v
	}

	if search := strings.TrimSpace(c.Query("search")); search != "" {
		pattern := regexp.QuoteMeta(search)
		filter["$or"] = []bson.M{
			{"name": bson.M{"$regex": pattern, "$options": "i"}},
			{"brand": bson.M{"$regex": pattern, "$options": "i"}},
			{"productId": bson.M{"$regex": pattern, "$options": "i"}},
			{"compatibility": bson.M{"$regex": pattern, "$options": "i"}},
		}
	}

	if category := strings.TrimSpace(c.Query("category")); category != "" {
		categoryID, err := primitive.ObjectIDFromHex(category)
		if err != nil {
			return nil, errors.New("invalid category")
		}
		filter["categoryId"] = categoryID
	}

	priceRange := bson.M{}
	for param, op := range map[string]string{"minPrice": "$gte", "maxPrice": "$lte"} {
		raw := strings.TrimSpace(c.Query(param))
		if raw == "" {
			continue
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil || value < 0 {
			return nil, fmt.Errorf("invalid %s", param)
		}
		priceRange[op] = value
	}
	if len(priceRange) > 0 {
		filter["price"] = priceRange
	}

	if v := strings.TrimSpace(c.Query("inStock")); strings.EqualFold(v, "true") {
		filter["stock"] = bson.M{"$gt": 0}
	}

	return filter, nil
}

func productSort(value string) bson.D {
	switch value {
	case "price_asc":
		return bson.D{{Key: "price", Value: 1}, {Key: "_id", Value: 1}}
	case "price_desc":
		return bson.D{{Key: "price", Value: -1}, {Key: "_id", Value: 1}}
	case "name":
		return bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}
	default:
		return bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
	}
}

func findProducts(c *gin.Context, db *mongo.Database, filter bson.M, p pagination) (productListPayload, error) {
	ctx, cancel := requestContext(c)
	defer cancel()

	coll := db.Collection("products")
	opts := p.apply(options.Find().SetSort(productSort(c.Query("sort"))))

	products, err := findAll[models.Product](ctx, coll, filter, opts)
	if err != nil {
		return productListPayload{}, err
	}
	for i := range products {
		decorateProduct(&products[i])
	}

	payload := productListPayload{Data: products}
	if p.Enabled {
		total, err := coll.CountDocuments(ctx, filter)
		if err != nil {
			return productListPayload{}, err
		}
		payload.Pagination = p.meta(total)
	}
	return payload, nil
}

// GetProducts is the public catalog listing. Pagination applies only when
// page or limit is given. Results are cached per query string.
func GetProducts(db *mongo.Database, catalogCache *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.From(c, catalogComponent)

		p, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, catalogComponent, err.Error())
			return
		}

		filter, err := productListFilter(c, bson.M{"isActive": bson.M{"$ne": false}, "isDeleted": notDeleted})
		if err != nil {
			respondWithError(c, http.StatusBadRequest, catalogComponent, err.Error())
			return
		}

		cacheKey := productCachePrefix + c.Request.URL.Query().Encode()
		var payload productListPayload
		if catalogCache.GetJSON(c.Request.Context(), cacheKey, &payload) {
			c.Header("X-Cache", "HIT")
			respond(c, http.StatusOK, payload.body())
			return
		}

		payload, err = findProducts(c, db, filter, p)
		if err != nil {
			respondInternal(c, catalogComponent, "db error", err)
			return
		}

		if err := catalogCache.SetJSON(c.Request.Context(), cacheKey, payload); err != nil {
			log.WithError(err).Warn("catalog cache write failed")
		}

		respond(c, http.StatusOK, payload.body())
	}
}

// GetAllProducts lists every non-deleted product for the dashboard. It is
// always paginated.
func GetAllProducts(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, catalogComponent, err.Error())
			return
		}
		p.Enabled = true

		base := bson.M{"isDeleted": notDeleted}
		if v := strings.TrimSpace(c.Query("isActive")); v != "" {
			base["isActive"] = strings.EqualFold(v, "true")
		}

		filter, err := productListFilter(c, base)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, catalogComponent, err.Error())
			return
		}

		payload, err := findProducts(c, db, filter, p)
		if err != nil {
			respondInternal(c, catalogComponent, "db error", err)
			return
		}

		respond(c, http.StatusOK, payload.body())
	}
}

// GetProduct resolves either the document id or the productId SKU, so QR
// scans and storefront links both work.
func GetProduct(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.Param("id"))
		filter := bson.M{"isActive": bson.M{"$ne": false}, "isDeleted": notDeleted}
		if id, err := primitive.ObjectIDFromHex(key); err == nil {
			filter["_id"] = id
		} else {
			filter["productId"] = key
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		var product models.Product
		err := db.Collection("products").FindOne(ctx, filter).Decode(&product)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, catalogComponent, "product not found")
			return
		}
		if err != nil {
			respondInternal(c, catalogComponent, "db error", err)
			return
		}

		decorateProduct(&product)
		respond(c, http.StatusOK, gin.H{"data": product})
	}
}

// GetLowStockProducts lists products at or below ?threshold (default 5).
func GetLowStockProducts(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		threshold := 5
		if raw := strings.TrimSpace(c.Query("threshold")); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				respondWithError(c, http.StatusBadRequest, catalogComponent, "threshold must be a non-negative integer")
				return
			}
			threshold = parsed
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		products, err := findAll[models.Product](ctx, db.Collection("products"),
			bson.M{"isDeleted": notDeleted, "stock": bson.M{"$lte": threshold}},
			options.Find().SetSort(bson.D{{Key: "stock", Value: 1}, {Key: "name", Value: 1}}))
		if err != nil {
			respondInternal(c, catalogComponent, "db error", err)
			return
		}
		for i := range products {
			decorateProduct(&products[i])
		}

		respond(c, http.StatusOK, gin.H{"data": products, "threshold": threshold})
	}
}
