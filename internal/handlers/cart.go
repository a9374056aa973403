package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"autoparts/internal/middleware"
	"autoparts/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	cartComponent   = "CART"
	maxCartQuantity = 99
)

type cartItemRequest struct {
	ProductID string `json:"productId" binding:"required,objectid"`
	Quantity  int    `json:"quantity"`
}

type CartReplaceRequest struct {
	Items []cartItemRequest `json:"items" binding:"dive"`
}

type CartAddRequest struct {
	ProductID string `json:"productId" binding:"required,objectid"`
	Quantity  int    `json:"quantity" binding:"required,min=1,max=99"`
}

type CartQuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required,min=0,max=99"`
}

type cartLine struct {
	ProductID   primitive.ObjectID `json:"productId"`
	ProductCode string             `json:"productCode"`
	Name        string             `json:"name"`
	Image       string             `json:"image,omitempty"`
	UnitPrice   float64            `json:"unitPrice"`
	Quantity    int                `json:"quantity"`
	Stock       int                `json:"stock"`
	LineTotal   float64            `json:"lineTotal"`
}

// mergeCartItems folds duplicate products together, drops non-positive
// quantities and caps each line at maxCartQuantity. Order of first
// appearance is kept.
func mergeCartItems(items []cartItemRequest) ([]models.CartItem, error) {
	merged := make([]models.CartItem, 0, len(items))
	index := map[primitive.ObjectID]int{}

	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		id, err := primitive.ObjectIDFromHex(item.ProductID)
		if err != nil {
			return nil, errors.New("invalid productId")
		}
		if i, ok := index[id]; ok {
			merged[i].Quantity = min(merged[i].Quantity+item.Quantity, maxCartQuantity)
			continue
		}
		index[id] = len(merged)
		merged = append(merged, models.CartItem{ProductID: id, Quantity: min(item.Quantity, maxCartQuantity)})
	}
	return merged, nil
}

func currentUserID(c *gin.Context) (primitive.ObjectID, bool) {
	id, role, ok := middleware.CurrentAccount(c)
	if !ok || role != models.RoleUser {
		respondWithError(c, http.StatusUnauthorized, cartComponent, "unauthorized")
		return primitive.NilObjectID, false
	}
	return id, true
}

func loadUser(ctx context.Context, db *mongo.Database, id primitive.ObjectID) (models.User, error) {
	var user models.User
	err := db.Collection("users").FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	return user, err
}

// activeProducts loads the purchasable products among ids keyed by id.
func activeProducts(ctx context.Context, db *mongo.Database, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Product, error) {
	out := map[primitive.ObjectID]models.Product{}
	if len(ids) == 0 {
		return out, nil
	}
	products, err := findAll[models.Product](ctx, db.Collection("products"), bson.M{
		"_id":       bson.M{"$in": ids},
		"isActive":  bson.M{"$ne": false},
		"isDeleted": notDeleted,
	})
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

// buildCartLines joins cart items with current product data. Items whose
// product is gone are skipped.
func buildCartLines(items []models.CartItem, products map[primitive.ObjectID]models.Product) ([]cartLine, float64) {
	lines := make([]cartLine, 0, len(items))
	subtotal := decimal.Zero
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			continue
		}
		unit := effectiveProductPrice(product)
		line := cartLine{
			ProductID:   product.ID,
			ProductCode: product.ProductID,
			Name:        product.Name,
			UnitPrice:   unit,
			Quantity:    item.Quantity,
			Stock:       product.Stock,
			LineTotal:   lineTotal(unit, item.Quantity),
		}
		if len(product.Images) > 0 {
			line.Image = product.Images[0]
		}
		subtotal = subtotal.Add(decimal.NewFromFloat(line.LineTotal))
		lines = append(lines, line)
	}
	return lines, subtotal.Round(2).InexactFloat64()
}

func cartIDs(items []models.CartItem) []primitive.ObjectID {
	ids := make([]primitive.ObjectID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	return ids
}

func respondCart(c *gin.Context, ctx context.Context, db *mongo.Database, items []models.CartItem) {
	products, err := activeProducts(ctx, db, cartIDs(items))
	if err != nil {
		respondInternal(c, cartComponent, "db error", err)
		return
	}
	lines, subtotal := buildCartLines(items, products)
	respond(c, http.StatusOK, gin.H{"items": lines, "subtotal": subtotal, "count": len(lines)})
}

func saveCart(ctx context.Context, db *mongo.Database, userID primitive.ObjectID, items []models.CartItem) error {
	if items == nil {
		items = []models.CartItem{}
	}
	_, err := db.Collection("users").UpdateByID(ctx, userID, bson.M{"$set": bson.M{
		"cart":      items,
		"updatedAt": time.Now(),
	}})
	return err
}

func GetCart(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		user, err := loadUser(ctx, db, userID)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, cartComponent, "user not found")
			return
		}
		if err != nil {
			respondInternal(c, cartComponent, "db error", err)
			return
		}

		respondCart(c, ctx, db, user.Cart)
	}
}

// ReplaceCart stores the client's cart after merging it. Unknown or inactive
// products are dropped.
func ReplaceCart(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}

		var req CartReplaceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		items, err := mergeCartItems(req.Items)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, cartComponent, err.Error())
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		products, err := activeProducts(ctx, db, cartIDs(items))
		if err != nil {
			respondInternal(c, cartComponent, "db error", err)
			return
		}
		kept := make([]models.CartItem, 0, len(items))
		for _, item := range items {
			if _, ok := products[item.ProductID]; ok {
				kept = append(kept, item)
			}
		}

		if err := saveCart(ctx, db, userID, kept); err != nil {
			respondInternal(c, cartComponent, "db error", err)
			return
		}

		lines, subtotal := buildCartLines(kept, products)
		respond(c, http.StatusOK, gin.H{"items": lines, "subtotal": subtotal, "count": len(lines)})
	}
}

func AddCartItem(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}

		var req CartAddRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		productID, _ := primitive.ObjectIDFromHex(req.ProductID)

		ctx, cancel := requestContext(c)
		defer cancel()

		products, err := activeProducts(ctx, db, []primitive.ObjectID{productID})
		if err != nil {
			respondInternal(c, cartComponent, "db error", err)
			return
		}
		product, ok := products[productID]
		if !ok {
			respondWithError(c, http.StatusNotFound, cartComponent, "product not found")
			return
		}

		user, err := loadUser(ctx, db, userID)
		if err != nil {
			respondInternal(c, cartComponent, "db error", err)
			return
		}

		items := append([]models.CartItem{}, user.Cart...)
		quantity := req.Quantity
		found := false
		for i := range items {
			if items[i].ProductID == productID {
				items[i].Quantity += req.Quantity
				quantity = items[i].Quantity
				found = true
				break
			}
		}
		if !found {
			items = append(items, models.CartItem{ProductID: productID, Quantity: req.Quantity})
		}

		if quantity > maxCartQuantity {
			respondWithError(c, http.StatusBadRequest, cartComponent, "at most 99 units per product")
			return
		}
		if quantity > product.Stock {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"success":   false,
				"message":   "insufficient stock",
				"available": product.Stock,
				"requested": quantity,
			})
			return
		}

		if err := saveCart(ctx, db, userID, items); err != nil {
			respondInternal(c, cartComponent, "db error", err)
			return
		}

		respondCart(c, ctx, db, items)
	}
}

// SetCartItemQuantity sets a line's quantity; zero removes the line.
func SetCartItemQuantity(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		productID, ok := objectIDParam(c, "productId", cartComponent)
		if !ok {
			return
		}

		var req CartQuantityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		user, err := loadUser(ctx, db, userID)
		if err != nil {
			respondInternal(c, cartComponent, "db error", err)
			return
		}

		index := -1
		for i, item := range user.Cart {
			if item.ProductID == productID {
				index = i
				break
			}
		}
		if index == -1 {
			respondWithError(c, http.StatusNotFound, cartComponent, "item not in cart")
			return
		}

		items := append([]models.CartItem{}, user.Cart...)
		if *req.Quantity == 0 {
			items = append(items[:index], items[index+1:]...)
		} else {
			products, err := activeProducts(ctx, db, []primitive.ObjectID{productID})
			if err != nil {
				respondInternal(c, cartComponent, "db error", err)
				return
			}
			product, ok := products[productID]
			if !ok {
				respondWithError(c, http.StatusNotFound, cartComponent, "product not found")
				return
			}
			if *req.Quantity > product.Stock {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
					"success":   false,
					"message":   "insufficient stock",
					"available": product.Stock,
					"requested": *req.Quantity,
				})
				return
			}
			items[index].Quantity = *req.Quantity
		}

		if err := saveCart(ctx, db, userID, items); err != nil {
			respondInternal(c, cartComponent, "db error", err)
			return
		}

		respondCart(c, ctx, db, items)
	}
}

func RemoveCartItem(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		productID, ok := objectIDParam(c, "productId", cartComponent)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		res, err := db.Collection("users").UpdateByID(ctx, userID, bson.M{
			"$pull": bson.M{"cart": bson.M{"productId": productID}},
			"$set":  bson.M{"updatedAt": time.Now()},
		})
		if err != nil {
			respondInternal(c, cartComponent, "db error", err)
			return
		}
		if res.MatchedCount == 0 {
			respondWithError(c, http.StatusNotFound, cartComponent, "user not found")
			return
		}

		respond(c, http.StatusOK, gin.H{"message": "item removed"})
	}
}

func ClearCart(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		if err := saveCart(ctx, db, userID, nil); err != nil {
			respondInternal(c, cartComponent, "db error", err)
			return
		}

		respond(c, http.StatusOK, gin.H{"message": "cart cleared", "items": []cartLine{}, "subtotal": 0})
	}
}
