package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "test-secret"

type AuthGuardSuite struct {
	suite.Suite
	router    *gin.Engine
	accountID primitive.ObjectID
}

func (s *AuthGuardSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	s.accountID = primitive.NewObjectID()
	s.router = gin.New()
	s.router.GET("/admin", AuthGuard(testSecret, "admin"), func(c *gin.Context) {
		id, role, ok := CurrentAccount(c)
		c.JSON(http.StatusOK, gin.H{"id": id.Hex(), "role": role, "ok": ok, "email": c.GetString(ContextEmail)})
	})
	s.router.GET("/any", AuthGuard(testSecret), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
}

func (s *AuthGuardSuite) do(path, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *AuthGuardSuite) token(role string, ttl time.Duration) string {
	tok, err := IssueAccessToken(testSecret, s.accountID.Hex(), role, "staff@shop.test", ttl)
	s.Require().NoError(err)
	return tok
}

func (s *AuthGuardSuite) TestMissingToken() {
	w := s.do("/admin", "")
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Contains(w.Body.String(), "missing token")
}

func (s *AuthGuardSuite) TestMalformedHeader() {
	w := s.do("/admin", "Token abc")
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *AuthGuardSuite) TestWrongRoleForbidden() {
	w := s.do("/admin", "Bearer "+s.token("user", time.Hour))
	s.Equal(http.StatusForbidden, w.Code)
}

func (s *AuthGuardSuite) TestExpiredToken() {
	w := s.do("/admin", "Bearer "+s.token("admin", -time.Minute))
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Contains(w.Body.String(), "token expired")
}

func (s *AuthGuardSuite) TestValidTokenSetsIdentity() {
	w := s.do("/admin", "Bearer "+s.token("admin", time.Hour))
	s.Require().Equal(http.StatusOK, w.Code)

	var body map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	s.Equal(s.accountID.Hex(), body["id"])
	s.Equal("admin", body["role"])
	s.Equal(true, body["ok"])
	s.Equal("staff@shop.test", body["email"])
}

func (s *AuthGuardSuite) TestNoRolesAcceptsAnyValidToken() {
	w := s.do("/any", "bearer "+s.token("online_employee", time.Hour))
	s.Equal(http.StatusNoContent, w.Code)
}

func TestAuthGuardSuite(t *testing.T) {
	suite.Run(t, new(AuthGuardSuite))
}

func TestParseAccessTokenRejectsOtherAlgorithms(t *testing.T) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   primitive.NewObjectID().Hex(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: "admin",
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = ParseAccessToken(testSecret, raw)
	assert.Error(t, err)
}

func TestParseAccessTokenRejectsWrongSecret(t *testing.T) {
	raw, err := IssueAccessToken("other", primitive.NewObjectID().Hex(), "user", "u@test", time.Hour)
	require.NoError(t, err)

	_, err = ParseAccessToken(testSecret, raw)
	assert.Error(t, err)
}

func TestCurrentAccountWithoutGuard(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, _, ok := CurrentAccount(c)
	assert.False(t, ok)
}
