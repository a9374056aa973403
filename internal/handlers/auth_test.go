package handlers

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"autoparts/internal/middleware"
	"autoparts/internal/models"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
	"golang.org/x/crypto/bcrypt"
)

var testTokens = TokenConfig{Secret: "test-secret", AccessTTL: 15 * time.Minute, RefreshTTL: 24 * time.Hour}

func registerBody() map[string]any {
	return map[string]any{
		"name":     gofakeit.Name(),
		"email":    strings.ToUpper(gofakeit.Email()),
		"password": gofakeit.Password(true, true, true, false, false, 12),
		"phone":    gofakeit.Phone(),
	}
}

func TestRegister(t *testing.T) {
	mt := newMockDB(t)

	mt.Run("issues tokens", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(), mtest.CreateSuccessResponse())

		body := registerBody()
		c, w := jsonContext(mt.T, http.MethodPost, "/api/auth/register", body)

		Register(mt.DB, testTokens)(c)

		require.Equal(mt, http.StatusCreated, w.Code)
		resp := responseBody(mt.T, w)
		assert.NotEmpty(mt, resp["refreshToken"])
		assert.Equal(mt, 900.0, resp["expiresIn"])

		account := resp["account"].(map[string]any)
		assert.Equal(mt, strings.ToLower(body["email"].(string)), account["email"])
		assert.Equal(mt, models.RoleUser, account["role"])

		claims, err := middleware.ParseAccessToken(testTokens.Secret, resp["accessToken"].(string))
		require.NoError(mt, err)
		assert.Equal(mt, models.RoleUser, claims.Role)
	})

	mt.Run("duplicate email", func(mt *mtest.T) {
		mt.AddMockResponses(duplicateKeyResponse())

		c, w := jsonContext(mt.T, http.MethodPost, "/api/auth/register", registerBody())

		Register(mt.DB, testTokens)(c)

		assert.Equal(mt, http.StatusConflict, w.Code)
	})
}

func TestLoginUnknownRole(t *testing.T) {
	c, w := jsonContext(t, http.MethodPost, "/api/auth/root/login", map[string]any{"email": "a@b.c", "password": "x"})
	withParam(c, "role", "root")

	Login(nil, testTokens)(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogin(t *testing.T) {
	mt := newMockDB(t)
	password := gofakeit.Password(true, true, true, false, false, 10)
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	sellerDoc := func(active bool) bson.D {
		return bson.D{
			{Key: "_id", Value: primitive.NewObjectID()},
			{Key: "name", Value: "Parts Hub"},
			{Key: "email", Value: "seller@example.com"},
			{Key: "passwordHash", Value: string(hash)},
			{Key: "isActive", Value: active},
		}
	}

	cases := []struct {
		name      string
		responses []bson.D
		password  string
		want      int
	}{
		{"valid", []bson.D{cursor("autoparts.sellers", sellerDoc(true)), mtest.CreateSuccessResponse()}, password, http.StatusOK},
		{"wrong password", []bson.D{cursor("autoparts.sellers", sellerDoc(true))}, password + "x", http.StatusUnauthorized},
		{"unknown email", []bson.D{cursor("autoparts.sellers")}, password, http.StatusUnauthorized},
		{"inactive", []bson.D{cursor("autoparts.sellers", sellerDoc(false))}, password, http.StatusForbidden},
	}

	for _, tc := range cases {
		mt.Run(tc.name, func(mt *mtest.T) {
			mt.AddMockResponses(tc.responses...)

			c, w := jsonContext(mt.T, http.MethodPost, "/api/auth/seller/login", map[string]any{
				"email": " Seller@Example.com ", "password": tc.password,
			})
			withParam(c, "role", models.RoleSeller)

			Login(mt.DB, testTokens)(c)

			require.Equal(mt, tc.want, w.Code)
			if tc.want == http.StatusOK {
				account := responseBody(mt.T, w)["account"].(map[string]any)
				assert.Equal(mt, models.RoleSeller, account["role"])
			}
		})
	}
}
