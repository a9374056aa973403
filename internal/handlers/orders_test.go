package handlers

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"testing"
	"time"

	"autoparts/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func validOrderBody() map[string]any {
	return map[string]any{
		"fromCart":      true,
		"paymentMethod": "cod",
		"shipping": map[string]any{
			"fullName":    "Kasun Perera",
			"phone":       "0771234567",
			"addressLine": "12 Galle Road",
			"city":        "Colombo",
			"postalCode":  "00300",
		},
	}
}

func TestSnapshotItemFreezesSalePrice(t *testing.T) {
	product := models.Product{
		ID:          primitive.NewObjectID(),
		ProductID:   "SPK-4",
		Name:        "Spark plug",
		Price:       900,
		SaleEnabled: true,
		SalePrice:   750,
		Images:      []string{"uploads/products/a.png", "uploads/products/b.png"},
	}

	item := snapshotItem(product, 4)

	assert.Equal(t, "SPK-4", item.ProductCode)
	assert.Equal(t, 750.0, item.UnitPrice)
	assert.Equal(t, 3000.0, item.LineTotal)
	assert.Equal(t, "uploads/products/a.png", item.Image)
}

func TestNewOrderNumber(t *testing.T) {
	now := time.Date(2026, 10, 15, 9, 30, 0, 0, time.Local)
	first, second := newOrderNumber(now), newOrderNumber(now)

	assert.Regexp(t, regexp.MustCompile(`^AP-20261015-[0-9A-F]{6}$`), first)
	assert.NotEqual(t, first, second)
}

func TestOrderConfirmationBodyListsLines(t *testing.T) {
	order := models.Order{
		OrderNumber: "AP-20261015-ABC123",
		Shipping:    models.ShippingDetails{FullName: "Kasun"},
		Items:       []models.OrderItem{{Name: "Spark plug", ProductCode: "SPK-4", Quantity: 2, LineTotal: 1500}},
		Subtotal:    1500,
		ShippingFee: 350,
		Total:       1850,
	}

	body := orderConfirmationBody(order)

	assert.Contains(t, body, "AP-20261015-ABC123")
	assert.Contains(t, body, "- Spark plug (SPK-4) x2: 1500.00")
	assert.True(t, strings.HasSuffix(body, "Total: 1850.00\n"))
}

func TestCreateOrderValidatesBody(t *testing.T) {
	body := validOrderBody()
	delete(body, "paymentMethod")

	c, w := jsonContext(t, http.MethodPost, "/api/user-orders", body)
	signedInAs(c, primitive.NewObjectID(), models.RoleUser)

	CreateOrder(nil, nil, nil)(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation failed", responseBody(t, w)["message"])
}

func TestCreateOrderFromEmptyCart(t *testing.T) {
	mt := newMockDB(t)

	mt.Run("rejected before any stock change", func(mt *mtest.T) {
		userID := primitive.NewObjectID()
		mt.AddMockResponses(cursor("autoparts.users", bson.D{
			{Key: "_id", Value: userID},
			{Key: "email", Value: "kasun@example.com"},
			{Key: "cart", Value: bson.A{}},
		}))

		c, w := jsonContext(mt.T, http.MethodPost, "/api/user-orders", validOrderBody())
		signedInAs(c, userID, models.RoleUser)

		CreateOrder(mt.DB, nil, nil)(c)

		require.Equal(mt, http.StatusBadRequest, w.Code)
		assert.Equal(mt, "at least one item is required", responseBody(mt.T, w)["message"])
	})
}

func TestListOrdersRejectsUnknownStatus(t *testing.T) {
	c, w := jsonContext(t, http.MethodGet, "/api/user-orders?status=lost", nil)

	ListOrders(nil)(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetOrderVisibility(t *testing.T) {
	mt := newMockDB(t)
	ownerID, orderID := primitive.NewObjectID(), primitive.NewObjectID()
	orderDoc := bson.D{
		{Key: "_id", Value: orderID},
		{Key: "orderNumber", Value: "AP-20261015-0A1B2C"},
		{Key: "userId", Value: ownerID},
		{Key: "status", Value: models.OrderStatusPending},
	}

	cases := []struct {
		name   string
		caller primitive.ObjectID
		role   string
		want   int
	}{
		{"owner", ownerID, models.RoleUser, http.StatusOK},
		{"another customer", primitive.NewObjectID(), models.RoleUser, http.StatusNotFound},
		{"online employee", primitive.NewObjectID(), models.RoleOnlineEmployee, http.StatusOK},
	}

	for _, tc := range cases {
		mt.Run(tc.name, func(mt *mtest.T) {
			mt.AddMockResponses(cursor("autoparts.orders", orderDoc))

			c, w := jsonContext(mt.T, http.MethodGet, "/api/user-orders/"+orderID.Hex(), nil)
			withParam(c, "id", orderID.Hex())
			signedInAs(c, tc.caller, tc.role)

			GetOrder(mt.DB)(c)

			assert.Equal(mt, tc.want, w.Code)
		})
	}
}

func TestDeleteOrderNotFound(t *testing.T) {
	mt := newMockDB(t)

	mt.Run("nothing deleted", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))

		id := primitive.NewObjectID()
		c, w := jsonContext(mt.T, http.MethodDelete, "/api/user-orders/"+id.Hex(), nil)
		withParam(c, "id", id.Hex())

		DeleteOrder(mt.DB)(c)

		assert.Equal(mt, http.StatusNotFound, w.Code)
	})
}

func TestMergeOrderItemsSumsWithoutClamping(t *testing.T) {
	pad, disc := primitive.NewObjectID(), primitive.NewObjectID()

	items, err := mergeOrderItems([]orderItemRequest{
		{ProductID: pad.Hex(), Quantity: 150},
		{ProductID: disc.Hex(), Quantity: 2},
		{ProductID: pad.Hex(), Quantity: 5},
	})

	require.NoError(t, err)
	assert.Equal(t, []models.CartItem{
		{ProductID: pad, Quantity: 155},
		{ProductID: disc, Quantity: 2},
	}, items)
}

func TestCreateOrderRejectsNonPositiveQuantity(t *testing.T) {
	for _, quantity := range []int{0, -4} {
		body := validOrderBody()
		body["fromCart"] = false
		body["items"] = []map[string]any{{"productId": primitive.NewObjectID().Hex(), "quantity": quantity}}

		c, w := jsonContext(t, http.MethodPost, "/api/user-orders", body)
		signedInAs(c, primitive.NewObjectID(), models.RoleUser)

		CreateOrder(nil, nil, nil)(c)

		require.Equal(t, http.StatusBadRequest, w.Code, "quantity %d", quantity)
		assert.Equal(t, "validation failed", responseBody(t, w)["message"])
	}
}

func TestCheckStatusChange(t *testing.T) {
	for _, status := range models.OrderStatuses {
		err := checkStatusChange(status)
		if status == models.OrderStatusCancelled {
			assert.ErrorIs(t, err, errOrderClosed)
			continue
		}
		assert.NoError(t, err, status)
	}
}

func productDoc(id primitive.ObjectID, stock int32) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "productId", Value: "BRK-1"},
		{Key: "name", Value: "Brake pad set"},
		{Key: "price", Value: 2500.0},
		{Key: "stock", Value: stock},
		{Key: "isActive", Value: true},
	}
}

func TestReserveStock(t *testing.T) {
	mt := newMockDB(t)
	productID := primitive.NewObjectID()
	items := []models.CartItem{{ProductID: productID, Quantity: 3}}

	mt.Run("decrements by ordered quantity", func(mt *mtest.T) {
		mt.AddMockResponses(
			cursor("autoparts.products", productDoc(productID, 5)),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
		)

		snapshots, err := reserveStock(context.Background(), mt.DB.Collection("products"), items)

		require.NoError(mt, err)
		require.Len(mt, snapshots, 1)
		assert.Equal(mt, 3, snapshots[0].Quantity)
		assert.Equal(mt, 7500.0, snapshots[0].LineTotal)

		events := mt.GetAllStartedEvents()
		require.Len(mt, events, 2)
		update := events[1].Command
		assert.Equal(mt, int64(3), update.Lookup("updates", "0", "q", "stock", "$gte").AsInt64())
		assert.Equal(mt, int64(-3), update.Lookup("updates", "0", "u", "$inc", "stock").AsInt64())
	})

	mt.Run("short stock", func(mt *mtest.T) {
		mt.AddMockResponses(cursor("autoparts.products", productDoc(productID, 2)))

		_, err := reserveStock(context.Background(), mt.DB.Collection("products"), items)

		var stockErr outOfStockError
		require.ErrorAs(mt, err, &stockErr)
		assert.Equal(mt, outOfStockError{ProductID: productID, Available: 2, Requested: 3}, stockErr)
		assert.Len(mt, mt.GetAllStartedEvents(), 1)
	})

	mt.Run("stock taken by a concurrent checkout", func(mt *mtest.T) {
		mt.AddMockResponses(
			cursor("autoparts.products", productDoc(productID, 5)),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
		)

		_, err := reserveStock(context.Background(), mt.DB.Collection("products"), items)

		var stockErr outOfStockError
		require.ErrorAs(mt, err, &stockErr)
		assert.Equal(mt, 3, stockErr.Requested)
	})

	mt.Run("unknown product", func(mt *mtest.T) {
		mt.AddMockResponses(cursor("autoparts.products"))

		_, err := reserveStock(context.Background(), mt.DB.Collection("products"), items)

		var notFound productNotFoundError
		require.ErrorAs(mt, err, &notFound)
		assert.Equal(mt, productID, notFound.ProductID)
	})
}

func TestApplyStatusChange(t *testing.T) {
	mt := newMockDB(t)
	orderID, productID := primitive.NewObjectID(), primitive.NewObjectID()
	orderDoc := func(status string, restored bool) bson.D {
		return bson.D{
			{Key: "_id", Value: orderID},
			{Key: "orderNumber", Value: "AP-20261016-0A1B2C"},
			{Key: "status", Value: status},
			{Key: "stockRestored", Value: restored},
			{Key: "items", Value: bson.A{bson.D{
				{Key: "productId", Value: productID},
				{Key: "quantity", Value: int32(3)},
			}}},
		}
	}
	change := func(status string) models.StatusChange {
		return models.StatusChange{Status: status, Role: models.RoleAdmin, ChangedAt: time.Now()}
	}
	ok := func(n int32) bson.D {
		return mtest.CreateSuccessResponse(bson.E{Key: "n", Value: n}, bson.E{Key: "nModified", Value: n})
	}

	mt.Run("cancelling returns stock and marks the order", func(mt *mtest.T) {
		mt.AddMockResponses(cursor("autoparts.orders", orderDoc(models.OrderStatusPending, false)), ok(1), ok(1))

		updated, err := applyStatusChange(context.Background(), mt.DB, bson.M{"_id": orderID}, change(models.OrderStatusCancelled))

		require.NoError(mt, err)
		assert.Equal(mt, models.OrderStatusCancelled, updated.Status)
		assert.True(mt, updated.StockRestored)
		assert.Len(mt, updated.StatusHistory, 1)

		events := mt.GetAllStartedEvents()
		require.Len(mt, events, 3)
		orderUpdate := events[1].Command
		assert.Equal(mt, models.OrderStatusPending, orderUpdate.Lookup("updates", "0", "q", "status").StringValue())
		assert.True(mt, orderUpdate.Lookup("updates", "0", "u", "$set", "stockRestored").Boolean())
		stockUpdate := events[2].Command
		assert.Equal(mt, "products", stockUpdate.Lookup("update").StringValue())
		assert.Equal(mt, int64(3), stockUpdate.Lookup("updates", "0", "u", "$inc", "stock").AsInt64())
	})

	mt.Run("cancelled orders cannot be reopened", func(mt *mtest.T) {
		mt.AddMockResponses(cursor("autoparts.orders", orderDoc(models.OrderStatusCancelled, true)))

		_, err := applyStatusChange(context.Background(), mt.DB, bson.M{"_id": orderID}, change(models.OrderStatusPending))

		assert.ErrorIs(mt, err, errOrderClosed)
		assert.Len(mt, mt.GetAllStartedEvents(), 1)
	})

	mt.Run("stock already returned is not returned again", func(mt *mtest.T) {
		mt.AddMockResponses(cursor("autoparts.orders", orderDoc(models.OrderStatusConfirmed, true)), ok(1))

		updated, err := applyStatusChange(context.Background(), mt.DB, bson.M{"_id": orderID}, change(models.OrderStatusCancelled))

		require.NoError(mt, err)
		assert.True(mt, updated.StockRestored)
		assert.Len(mt, mt.GetAllStartedEvents(), 2)
	})

	mt.Run("status changed underneath", func(mt *mtest.T) {
		mt.AddMockResponses(cursor("autoparts.orders", orderDoc(models.OrderStatusPending, false)), ok(0))

		_, err := applyStatusChange(context.Background(), mt.DB, bson.M{"_id": orderID}, change(models.OrderStatusShipped))

		assert.ErrorIs(mt, err, mongo.ErrNoDocuments)
	})
}

func TestOrderStockChangesInvalidateCatalog(t *testing.T) {
	mt := newMockDB(t)
	userID, orderID, productID := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()
	pendingOrder := bson.D{
		{Key: "_id", Value: orderID},
		{Key: "orderNumber", Value: "AP-20261016-0A1B2C"},
		{Key: "userId", Value: userID},
		{Key: "status", Value: models.OrderStatusPending},
		{Key: "items", Value: bson.A{bson.D{
			{Key: "productId", Value: productID},
			{Key: "quantity", Value: int32(2)},
		}}},
	}
	written := func() bson.D {
		return mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1})
	}
	committed := mtest.CreateSuccessResponse()

	mt.Run("checkout", func(mt *mtest.T) {
		catalog, recorder := recordingCache(mt.T)
		mt.AddMockResponses(
			cursor("autoparts.users", bson.D{{Key: "_id", Value: userID}, {Key: "email", Value: "kasun@example.com"}}),
			cursor("autoparts.products", productDoc(productID, 5)),
			written(),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
			committed,
		)

		body := validOrderBody()
		body["fromCart"] = false
		body["items"] = []map[string]any{{"productId": productID.Hex(), "quantity": 2}}
		c, w := jsonContext(mt.T, http.MethodPost, "/api/user-orders", body)
		signedInAs(c, userID, models.RoleUser)

		CreateOrder(mt.DB, catalog, nil)(c)

		require.Equal(mt, http.StatusCreated, w.Code)
		data := responseBody(mt.T, w)["data"].(map[string]any)
		assert.Equal(mt, 5000.0, data["subtotal"])
		assert.Contains(mt, recorder.names, "scan")
	})

	mt.Run("staff cancellation", func(mt *mtest.T) {
		catalog, recorder := recordingCache(mt.T)
		mt.AddMockResponses(cursor("autoparts.orders", pendingOrder), written(), written(), committed)

		c, w := jsonContext(mt.T, http.MethodPatch, "/api/user-orders/"+orderID.Hex()+"/status", map[string]any{"status": "cancelled"})
		withParam(c, "id", orderID.Hex())
		signedInAs(c, primitive.NewObjectID(), models.RoleAdmin)

		UpdateOrderStatus(mt.DB, catalog, nil)(c)

		require.Equal(mt, http.StatusOK, w.Code)
		assert.Contains(mt, recorder.names, "scan")
	})

	mt.Run("shipping leaves the catalog alone", func(mt *mtest.T) {
		catalog, recorder := recordingCache(mt.T)
		mt.AddMockResponses(cursor("autoparts.orders", pendingOrder), written(), committed)

		c, w := jsonContext(mt.T, http.MethodPatch, "/api/user-orders/"+orderID.Hex()+"/status", map[string]any{"status": "shipped"})
		withParam(c, "id", orderID.Hex())
		signedInAs(c, primitive.NewObjectID(), models.RoleAdmin)

		UpdateOrderStatus(mt.DB, catalog, nil)(c)

		require.Equal(mt, http.StatusOK, w.Code)
		assert.Empty(mt, recorder.names)
	})

	mt.Run("customer cancellation", func(mt *mtest.T) {
		catalog, recorder := recordingCache(mt.T)
		mt.AddMockResponses(cursor("autoparts.orders", pendingOrder), written(), written(), committed)

		c, w := jsonContext(mt.T, http.MethodPatch, "/api/user-orders/"+orderID.Hex()+"/cancel", nil)
		withParam(c, "id", orderID.Hex())
		signedInAs(c, userID, models.RoleUser)

		CancelOrder(mt.DB, catalog)(c)

		require.Equal(mt, http.StatusOK, w.Code)
		assert.Contains(mt, recorder.names, "scan")
	})
}

func TestUpdateOrderStatusKeepsCancelledClosed(t *testing.T) {
	mt := newMockDB(t)

	mt.Run("reopening is a conflict", func(mt *mtest.T) {
		orderID := primitive.NewObjectID()
		mt.AddMockResponses(cursor("autoparts.orders", bson.D{
			{Key: "_id", Value: orderID},
			{Key: "status", Value: models.OrderStatusCancelled},
			{Key: "stockRestored", Value: true},
		}))

		c, w := jsonContext(mt.T, http.MethodPatch, "/api/user-orders/"+orderID.Hex()+"/status", map[string]any{"status": "pending"})
		withParam(c, "id", orderID.Hex())
		signedInAs(c, primitive.NewObjectID(), models.RoleSeller)

		UpdateOrderStatus(mt.DB, nil, nil)(c)

		require.Equal(mt, http.StatusConflict, w.Code)
		assert.Equal(mt, errOrderClosed.Error(), responseBody(mt.T, w)["message"])
	})
}
