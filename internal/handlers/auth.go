package handlers

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"autoparts/internal/logger"
	"autoparts/internal/middleware"
	"autoparts/internal/models"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

const authComponent = "AUTH"

type TokenConfig struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,max=120"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=72"`
	Phone    string `json:"phone" binding:"omitempty,max=30"`
	Address  string `json:"address" binding:"omitempty,max=300"`
	City     string `json:"city" binding:"omitempty,max=80"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type issuedTokens struct {
	AccessToken    string
	RefreshToken   string
	RefreshTokenID primitive.ObjectID
	ExpiresIn      int64
}

func (t issuedTokens) payload(account models.Account) gin.H {
	return gin.H{
		"accessToken":  t.AccessToken,
		"refreshToken": t.RefreshToken,
		"expiresIn":    t.ExpiresIn,
		"account":      accountSummary(account),
	}
}

// Register creates a customer account and signs it in.
func Register(db *mongo.Database, tc TokenConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		name := strings.TrimSpace(req.Name)
		if name == "" {
			respondWithError(c, http.StatusBadRequest, authComponent, "name is required")
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			respondInternal(c, authComponent, "password hash failed", err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		now := time.Now()
		user := models.User{
			Account: models.Account{
				Name:         name,
				Email:        normalizeEmail(req.Email),
				Phone:        strings.TrimSpace(req.Phone),
				PasswordHash: string(hash),
				Role:         models.RoleUser,
				IsActive:     true,
				CreatedAt:    now,
				UpdatedAt:    now,
			},
			Address: strings.TrimSpace(req.Address),
			City:    strings.TrimSpace(req.City),
			Cart:    []models.CartItem{},
		}

		res, err := accountCollection(db, models.RoleUser).InsertOne(ctx, user)
		if isDuplicateKey(err) {
			respondWithError(c, http.StatusConflict, authComponent, "email already registered")
			return
		}
		if err != nil {
			respondInternal(c, authComponent, "db error", err)
			return
		}
		user.ID, _ = res.InsertedID.(primitive.ObjectID)

		tokens, err := issueTokens(c, db, tc, user.Account)
		if err != nil {
			respondInternal(c, authComponent, "token generation failed", err)
			return
		}

		logger.From(c, authComponent).WithField("accountId", user.ID.Hex()).Info("user registered")
		respond(c, http.StatusCreated, tokens.payload(user.Account))
	}
}

// Login authenticates any role against its own collection.
func Login(db *mongo.Database, tc TokenConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := strings.TrimSpace(c.Param("role"))
		if !models.IsValidRole(role) {
			respondWithError(c, http.StatusBadRequest, authComponent, "unknown role")
			return
		}

		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		log := logger.From(c, authComponent).WithField("role", role)

		account, err := findAccount(ctx, db, role, bson.M{"email": normalizeEmail(req.Email)})
		if errors.Is(err, mongo.ErrNoDocuments) {
			log.Info("login rejected: unknown email")
			respondWithError(c, http.StatusUnauthorized, authComponent, "invalid credentials")
			return
		}
		if err != nil {
			respondInternal(c, authComponent, "db error", err)
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
			log.WithField("accountId", account.ID.Hex()).Info("login rejected: bad password")
			respondWithError(c, http.StatusUnauthorized, authComponent, "invalid credentials")
			return
		}

		if !account.IsActive {
			respondWithError(c, http.StatusForbidden, authComponent, "account is inactive")
			return
		}

		tokens, err := issueTokens(c, db, tc, account)
		if err != nil {
			respondInternal(c, authComponent, "token generation failed", err)
			return
		}

		log.WithField("accountId", account.ID.Hex()).Info("login succeeded")
		respond(c, http.StatusOK, tokens.payload(account))
	}
}

// Refresh rotates a refresh token. The presented token is revoked and linked
// to its replacement.
func Refresh(db *mongo.Database, tc TokenConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RefreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		tokens := db.Collection("refresh_tokens")

		var stored models.RefreshToken
		err := tokens.FindOne(ctx, bson.M{
			"tokenHash": hashToken(strings.TrimSpace(req.RefreshToken)),
			"revoked":   false,
		}).Decode(&stored)
		if err != nil {
			respondWithError(c, http.StatusUnauthorized, authComponent, "invalid refresh token")
			return
		}

		if time.Now().After(stored.ExpiresAt) {
			_, _ = tokens.UpdateByID(ctx, stored.ID, bson.M{"$set": bson.M{"revoked": true}})
			respondWithError(c, http.StatusUnauthorized, authComponent, "refresh token expired")
			return
		}

		account, err := findAccountByID(ctx, db, stored.Role, stored.AccountID)
		if err != nil {
			respondWithError(c, http.StatusUnauthorized, authComponent, "account not found")
			return
		}
		if !account.IsActive {
			respondWithError(c, http.StatusForbidden, authComponent, "account is inactive")
			return
		}

		next, err := issueTokens(c, db, tc, account)
		if err != nil {
			respondInternal(c, authComponent, "token generation failed", err)
			return
		}

		if _, err := tokens.UpdateByID(ctx, stored.ID, bson.M{"$set": bson.M{
			"revoked":         true,
			"replacedByToken": next.RefreshTokenID,
		}}); err != nil {
			logger.From(c, authComponent).WithError(err).Warn("old refresh token not revoked")
		}

		respond(c, http.StatusOK, next.payload(account))
	}
}

func Logout(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RefreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		res, err := db.Collection("refresh_tokens").UpdateOne(ctx, bson.M{
			"tokenHash": hashToken(strings.TrimSpace(req.RefreshToken)),
			"revoked":   false,
		}, bson.M{"$set": bson.M{"revoked": true}})
		if err != nil {
			respondInternal(c, authComponent, "db error", err)
			return
		}
		if res.MatchedCount == 0 {
			respondWithError(c, http.StatusUnauthorized, authComponent, "invalid refresh token")
			return
		}

		respond(c, http.StatusOK, gin.H{"message": "logged out"})
	}
}

// Me returns the full profile of the signed-in account.
func Me(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID, role, ok := middleware.CurrentAccount(c)
		if !ok || !models.IsValidRole(role) {
			respondWithError(c, http.StatusUnauthorized, authComponent, "unauthorized")
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		doc := newAccountDocument(role)
		err := accountCollection(db, role).FindOne(ctx, bson.M{"_id": accountID}).Decode(doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, authComponent, "account not found")
			return
		}
		if err != nil {
			respondInternal(c, authComponent, "db error", err)
			return
		}

		respond(c, http.StatusOK, gin.H{"data": doc})
	}
}

func issueTokens(c *gin.Context, db *mongo.Database, tc TokenConfig, account models.Account) (issuedTokens, error) {
	accessToken, err := middleware.IssueAccessToken(tc.Secret, account.ID.Hex(), account.Role, account.Email, tc.AccessTTL)
	if err != nil {
		return issuedTokens{}, err
	}

	plain, err := generateRefreshString()
	if err != nil {
		return issuedTokens{}, err
	}

	now := time.Now()
	refresh := models.RefreshToken{
		AccountID: account.ID,
		Role:      account.Role,
		TokenHash: hashToken(plain),
		ExpiresAt: now.Add(tc.RefreshTTL),
		CreatedAt: now,
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := db.Collection("refresh_tokens").InsertOne(ctx, refresh)
	if err != nil {
		return issuedTokens{}, fmt.Errorf("store refresh token: %w", err)
	}
	refreshID, _ := res.InsertedID.(primitive.ObjectID)

	return issuedTokens{
		AccessToken:    accessToken,
		RefreshToken:   plain,
		RefreshTokenID: refreshID,
		ExpiresIn:      int64(tc.AccessTTL.Seconds()),
	}, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func generateRefreshString() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
