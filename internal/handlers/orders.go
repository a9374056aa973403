package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"autoparts/internal/cache"
	"autoparts/internal/logger"
	"autoparts/internal/mailer"
	"autoparts/internal/middleware"
	"autoparts/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const orderComponent = "ORDER"

var orderStaffRoles = []string{models.RoleAdmin, models.RoleSeller, models.RoleOnlineEmployee}

type orderAddressRequest struct {
	FullName    string `json:"fullName" binding:"required,max=120"`
	Phone       string `json:"phone" binding:"required,max=30"`
	Email       string `json:"email" binding:"omitempty,email"`
	AddressLine string `json:"addressLine" binding:"required,max=300"`
	City        string `json:"city" binding:"required,max=80"`
	PostalCode  string `json:"postalCode" binding:"required,max=20"`
}

func (r orderAddressRequest) details() models.ShippingDetails {
	return models.ShippingDetails{
		FullName:    strings.TrimSpace(r.FullName),
		Phone:       strings.TrimSpace(r.Phone),
		Email:       normalizeEmail(r.Email),
		AddressLine: strings.TrimSpace(r.AddressLine),
		City:        strings.TrimSpace(r.City),
		PostalCode:  strings.TrimSpace(r.PostalCode),
	}
}

type orderItemRequest struct {
	ProductID string `json:"productId" binding:"required,objectid"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

type CreateOrderRequest struct {
	Items         []orderItemRequest   `json:"items" binding:"omitempty,dive"`
	FromCart      bool                 `json:"fromCart"`
	Shipping      orderAddressRequest  `json:"shipping"`
	Billing       *orderAddressRequest `json:"billing"`
	PaymentMethod string               `json:"paymentMethod" binding:"required,oneof=cod card"`
	Note          string               `json:"note" binding:"omitempty,max=500"`
}

type OrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type outOfStockError struct {
	ProductID primitive.ObjectID
	Available int
	Requested int
}

func (e outOfStockError) Error() string {
	return "product out of stock"
}

type productNotFoundError struct {
	ProductID primitive.ObjectID
}

func (e productNotFoundError) Error() string {
	return "product not found"
}

var (
	errOrderNotCancellable = errors.New("only pending orders can be cancelled")
	errOrderClosed         = errors.New("cancelled orders cannot change status")
)

// mergeOrderItems sums duplicate products. Quantities are already validated,
// nothing is clamped or dropped.
func mergeOrderItems(items []orderItemRequest) ([]models.CartItem, error) {
	merged := make([]models.CartItem, 0, len(items))
	index := map[primitive.ObjectID]int{}

	for _, item := range items {
		if item.Quantity < 1 {
			return nil, errors.New("quantity must be at least 1")
		}
		id, err := primitive.ObjectIDFromHex(item.ProductID)
		if err != nil {
			return nil, errors.New("invalid productId")
		}
		if i, ok := index[id]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[id] = len(merged)
		merged = append(merged, models.CartItem{ProductID: id, Quantity: item.Quantity})
	}
	return merged, nil
}

// checkStatusChange keeps cancelled terminal so stock is returned once.
func checkStatusChange(from string) error {
	if from == models.OrderStatusCancelled {
		return errOrderClosed
	}
	return nil
}

func newOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("AP-%s-%s", now.Format("20060102"), suffix)
}

// snapshotItem freezes the product data an order line needs.
func snapshotItem(product models.Product, quantity int) models.OrderItem {
	unit := effectiveProductPrice(product)
	item := models.OrderItem{
		ProductID:   product.ID,
		ProductCode: product.ProductID,
		Name:        product.Name,
		UnitPrice:   unit,
		Quantity:    quantity,
		LineTotal:   lineTotal(unit, quantity),
	}
	if len(product.Images) > 0 {
		item.Image = product.Images[0]
	}
	return item
}

// reserveStock decrements stock for every line and returns the order
// snapshots. Called with a session context, any failure aborts the whole
// transaction.
func reserveStock(ctx context.Context, products *mongo.Collection, items []models.CartItem) ([]models.OrderItem, error) {
	snapshots := make([]models.OrderItem, 0, len(items))
	for _, item := range items {
		var product models.Product
		err := products.FindOne(ctx, bson.M{
			"_id":       item.ProductID,
			"isActive":  bson.M{"$ne": false},
			"isDeleted": notDeleted,
		}).Decode(&product)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, productNotFoundError{ProductID: item.ProductID}
		}
		if err != nil {
			return nil, err
		}

		if product.Stock < item.Quantity {
			return nil, outOfStockError{ProductID: item.ProductID, Available: product.Stock, Requested: item.Quantity}
		}

		res, err := products.UpdateOne(ctx,
			bson.M{"_id": item.ProductID, "stock": bson.M{"$gte": item.Quantity}},
			bson.M{"$inc": bson.M{"stock": -item.Quantity}},
		)
		if err != nil {
			return nil, err
		}
		if res.MatchedCount == 0 {
			return nil, outOfStockError{ProductID: item.ProductID, Available: product.Stock, Requested: item.Quantity}
		}

		snapshots = append(snapshots, snapshotItem(product, item.Quantity))
	}
	return snapshots, nil
}

func restoreStock(ctx context.Context, products *mongo.Collection, items []models.OrderItem) error {
	for _, item := range items {
		if _, err := products.UpdateByID(ctx, item.ProductID, bson.M{"$inc": bson.M{"stock": item.Quantity}}); err != nil {
			return err
		}
	}
	return nil
}

func orderConfirmationBody(order models.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\nThank you for your order %s.\n\n", order.Shipping.FullName, order.OrderNumber)
	for _, item := range order.Items {
		fmt.Fprintf(&b, "- %s (%s) x%d: %.2f\n", item.Name, item.ProductCode, item.Quantity, item.LineTotal)
	}
	fmt.Fprintf(&b, "\nSubtotal: %.2f\nShipping: %.2f\nTotal: %.2f\n", order.Subtotal, order.ShippingFee, order.Total)
	return b.String()
}

// CreateOrder checks out the given items, or the stored cart when fromCart
// is set. Stock reservation and the order insert share one transaction.
func CreateOrder(db *mongo.Database, catalogCache *cache.Cache, notifier mailer.Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}

		var req CreateOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		user, err := loadUser(ctx, db, userID)
		if err != nil {
			respondWithError(c, http.StatusUnauthorized, orderComponent, "user not found")
			return
		}

		var items []models.CartItem
		if req.FromCart {
			items = user.Cart
		} else {
			items, err = mergeOrderItems(req.Items)
			if err != nil {
				respondWithError(c, http.StatusBadRequest, orderComponent, err.Error())
				return
			}
		}
		if len(items) == 0 {
			respondWithError(c, http.StatusBadRequest, orderComponent, "at least one item is required")
			return
		}

		now := time.Now()
		order := models.Order{
			OrderNumber:   newOrderNumber(now),
			UserID:        userID,
			Shipping:      req.Shipping.details(),
			PaymentMethod: req.PaymentMethod,
			Status:        models.OrderStatusPending,
			StatusHistory: []models.StatusChange{{
				Status:    models.OrderStatusPending,
				ChangedBy: userID,
				Role:      models.RoleUser,
				ChangedAt: now,
			}},
			Note:      strings.TrimSpace(req.Note),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if order.Shipping.Email == "" {
			order.Shipping.Email = user.Email
		}
		order.Billing = order.Shipping
		if req.Billing != nil {
			order.Billing = req.Billing.details()
		}

		session, err := db.Client().StartSession()
		if err != nil {
			respondInternal(c, orderComponent, "db error", err)
			return
		}
		defer session.EndSession(ctx)

		_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
			snapshots, err := reserveStock(sessCtx, db.Collection("products"), items)
			if err != nil {
				return nil, err
			}
			order.Items = snapshots
			order.Subtotal, order.ShippingFee, order.Total = orderTotals(snapshots)

			res, err := db.Collection("orders").InsertOne(sessCtx, order)
			if err != nil {
				return nil, err
			}
			order.ID, _ = res.InsertedID.(primitive.ObjectID)

			if req.FromCart {
				if err := saveCart(sessCtx, db, userID, nil); err != nil {
					return nil, err
				}
			}
			return nil, nil
		})
		if err != nil {
			var stockErr outOfStockError
			if errors.As(err, &stockErr) {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
					"success":   false,
					"message":   "insufficient stock",
					"productId": stockErr.ProductID.Hex(),
					"available": stockErr.Available,
					"requested": stockErr.Requested,
				})
				return
			}
			var notFoundErr productNotFoundError
			if errors.As(err, &notFoundErr) {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
					"success":   false,
					"message":   "product not found",
					"productId": notFoundErr.ProductID.Hex(),
				})
				return
			}
			respondInternal(c, orderComponent, "order could not be created", err)
			return
		}

		invalidateCatalog(c, catalogCache)

		log := logger.From(c, orderComponent).WithField("orderNumber", order.OrderNumber)
		log.WithField("total", order.Total).Info("order created")

		mailer.SendAsync(notifier, log, order.Shipping.Email,
			"Order confirmation "+order.OrderNumber, orderConfirmationBody(order))

		respond(c, http.StatusCreated, gin.H{"data": order, "message": "order created"})
	}
}

func GetMyOrders(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		orders, err := findAll[models.Order](ctx, db.Collection("orders"), bson.M{"userId": userID},
			options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
		if err != nil {
			respondInternal(c, orderComponent, "db error", err)
			return
		}

		respond(c, http.StatusOK, gin.H{"data": orders})
	}
}

// ListOrders is the dashboard listing with an optional ?status filter.
func ListOrders(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, orderComponent, err.Error())
			return
		}
		p.Enabled = true

		filter := bson.M{}
		if status := strings.TrimSpace(c.Query("status")); status != "" {
			if !models.IsValidOrderStatus(status) {
				respondWithError(c, http.StatusBadRequest, orderComponent, "invalid status")
				return
			}
			filter["status"] = status
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		coll := db.Collection("orders")
		orders, err := findAll[models.Order](ctx, coll, filter,
			p.apply(options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})))
		if err != nil {
			respondInternal(c, orderComponent, "db error", err)
			return
		}
		total, err := coll.CountDocuments(ctx, filter)
		if err != nil {
			respondInternal(c, orderComponent, "db error", err)
			return
		}

		respond(c, http.StatusOK, gin.H{"data": orders, "pagination": p.meta(total)})
	}
}

// GetOrder is visible to the owning user and to order staff.
func GetOrder(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID, role, ok := middleware.CurrentAccount(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, orderComponent, "unauthorized")
			return
		}
		id, ok := objectIDParam(c, "id", orderComponent)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		var order models.Order
		err := db.Collection("orders").FindOne(ctx, bson.M{"_id": id}).Decode(&order)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, orderComponent, "order not found")
			return
		}
		if err != nil {
			respondInternal(c, orderComponent, "db error", err)
			return
		}

		if order.UserID != accountID && !slices.Contains(orderStaffRoles, role) {
			respondWithError(c, http.StatusNotFound, orderComponent, "order not found")
			return
		}

		respond(c, http.StatusOK, gin.H{"data": order})
	}
}

// applyStatusChange sets the new status and appends to the history. Moving
// an order into cancelled puts its stock back once, marked by stockRestored.
func applyStatusChange(ctx context.Context, db *mongo.Database, filter bson.M, change models.StatusChange) (models.Order, error) {
	orders := db.Collection("orders")

	var previous models.Order
	if err := orders.FindOne(ctx, filter).Decode(&previous); err != nil {
		return models.Order{}, err
	}
	if err := checkStatusChange(previous.Status); err != nil {
		return models.Order{}, err
	}

	restock := change.Status == models.OrderStatusCancelled && !previous.StockRestored
	set := bson.M{"status": change.Status, "updatedAt": change.ChangedAt}
	if restock {
		set["stockRestored"] = true
	}
	res, err := orders.UpdateOne(ctx,
		bson.M{"_id": previous.ID, "status": previous.Status},
		bson.M{"$set": set, "$push": bson.M{"statusHistory": change}},
	)
	if err != nil {
		return models.Order{}, err
	}
	if res.MatchedCount == 0 {
		return models.Order{}, mongo.ErrNoDocuments
	}

	if restock {
		if err := restoreStock(ctx, db.Collection("products"), previous.Items); err != nil {
			return models.Order{}, err
		}
	}

	updated := previous
	updated.Status = change.Status
	updated.StockRestored = previous.StockRestored || restock
	updated.UpdatedAt = change.ChangedAt
	updated.StatusHistory = append(updated.StatusHistory, change)
	return updated, nil
}

// transitionOrder runs applyStatusChange in one transaction.
func transitionOrder(ctx context.Context, db *mongo.Database, filter bson.M, change models.StatusChange) (models.Order, error) {
	session, err := db.Client().StartSession()
	if err != nil {
		return models.Order{}, err
	}
	defer session.EndSession(ctx)

	var updated models.Order
	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		order, err := applyStatusChange(sessCtx, db, filter, change)
		if err != nil {
			return nil, err
		}
		updated = order
		return nil, nil
	})
	return updated, err
}

func orderStatusBody(order models.Order) string {
	return fmt.Sprintf("Hello %s,\n\nYour order %s is now %s.\n", order.Shipping.FullName, order.OrderNumber, order.Status)
}

// UpdateOrderStatus accepts any allowed status while the order is not cancelled.
func UpdateOrderStatus(db *mongo.Database, catalogCache *cache.Cache, notifier mailer.Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID, role, _ := middleware.CurrentAccount(c)
		id, ok := objectIDParam(c, "id", orderComponent)
		if !ok {
			return
		}

		var req OrderStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		status := strings.ToLower(strings.TrimSpace(req.Status))
		if !models.IsValidOrderStatus(status) {
			respondWithError(c, http.StatusBadRequest, orderComponent, "invalid status")
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		updated, err := transitionOrder(ctx, db, bson.M{"_id": id}, models.StatusChange{
			Status:    status,
			ChangedBy: accountID,
			Role:      role,
			ChangedAt: time.Now(),
		})
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, orderComponent, "order not found")
			return
		}
		if errors.Is(err, errOrderClosed) {
			respondWithError(c, http.StatusConflict, orderComponent, err.Error())
			return
		}
		if err != nil {
			respondInternal(c, orderComponent, "db error", err)
			return
		}
		if status == models.OrderStatusCancelled {
			invalidateCatalog(c, catalogCache)
		}

		log := logger.From(c, orderComponent).WithFields(map[string]any{"orderNumber": updated.OrderNumber, "status": status})
		log.Info("order status changed")
		mailer.SendAsync(notifier, log, updated.Shipping.Email,
			"Order "+updated.OrderNumber+" update", orderStatusBody(updated))

		respond(c, http.StatusOK, gin.H{"data": updated})
	}
}

// CancelOrder lets the owner cancel while the order is still pending.
func CancelOrder(db *mongo.Database, catalogCache *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		id, ok := objectIDParam(c, "id", orderComponent)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		updated, err := transitionOrder(ctx, db,
			bson.M{"_id": id, "userId": userID, "status": models.OrderStatusPending},
			models.StatusChange{
				Status:    models.OrderStatusCancelled,
				ChangedBy: userID,
				Role:      models.RoleUser,
				ChangedAt: time.Now(),
			})
		if errors.Is(err, mongo.ErrNoDocuments) {
			count, countErr := db.Collection("orders").CountDocuments(ctx, bson.M{"_id": id, "userId": userID})
			if countErr == nil && count > 0 {
				respondWithError(c, http.StatusConflict, orderComponent, errOrderNotCancellable.Error())
				return
			}
			respondWithError(c, http.StatusNotFound, orderComponent, "order not found")
			return
		}
		if err != nil {
			respondInternal(c, orderComponent, "db error", err)
			return
		}

		invalidateCatalog(c, catalogCache)
		logger.From(c, orderComponent).WithField("orderNumber", updated.OrderNumber).Info("order cancelled by customer")
		respond(c, http.StatusOK, gin.H{"data": updated})
	}
}

func DeleteOrder(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := objectIDParam(c, "id", orderComponent)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		result, err := db.Collection("orders").DeleteOne(ctx, bson.M{"_id": id})
		if err != nil {
			respondInternal(c, orderComponent, "db error", err)
			return
		}
		if result.DeletedCount == 0 {
			respondWithError(c, http.StatusNotFound, orderComponent, "order not found")
			return
		}

		respond(c, http.StatusOK, gin.H{"message": "order deleted"})
	}
}
