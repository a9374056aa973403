package handlers

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"autoparts/internal/logger"
	"autoparts/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"
)

const staffComponent = "STAFF"

// staffKinds maps the route segment to the account role it manages.
var staffKinds = map[string]string{
	"employees":        models.RoleEmployee,
	"sellers":          models.RoleSeller,
	"online-employees": models.RoleOnlineEmployee,
}

type StaffCreateRequest struct {
	Name         string  `json:"name" binding:"required,max=120"`
	Email        string  `json:"email" binding:"required,email"`
	Password     string  `json:"password" binding:"required,min=6,max=72"`
	Phone        string  `json:"phone" binding:"omitempty,max=30"`
	ShopName     string  `json:"shopName" binding:"omitempty,max=120"`
	EmployeeCode string  `json:"employeeCode" binding:"omitempty,max=40"`
	Position     string  `json:"position" binding:"omitempty,max=80"`
	DayRate      float64 `json:"dayRate" binding:"gte=0"`
	JoinedAt     string  `json:"joinedAt" binding:"omitempty,isodate"`
}

type StaffUpdateRequest struct {
	Name         *string  `json:"name" binding:"omitempty,max=120"`
	Email        *string  `json:"email" binding:"omitempty,email"`
	Password     *string  `json:"password" binding:"omitempty,min=6,max=72"`
	Phone        *string  `json:"phone" binding:"omitempty,max=30"`
	ShopName     *string  `json:"shopName" binding:"omitempty,max=120"`
	EmployeeCode *string  `json:"employeeCode" binding:"omitempty,max=40"`
	Position     *string  `json:"position" binding:"omitempty,max=80"`
	DayRate      *float64 `json:"dayRate" binding:"omitempty,gte=0"`
	JoinedAt     *string  `json:"joinedAt" binding:"omitempty,isodate"`
	IsActive     *bool    `json:"isActive"`
}

func staffRole(c *gin.Context) (string, bool) {
	role, ok := staffKinds[c.Param("kind")]
	if !ok {
		respondWithError(c, http.StatusNotFound, staffComponent, "unknown staff kind")
		return "", false
	}
	return role, true
}

func generateEmployeeCode() string {
	return "EMP-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// buildStaffDocument turns a create request into the model stored for role.
func buildStaffDocument(role string, req StaffCreateRequest, passwordHash string, now time.Time) (any, error) {
	account := models.Account{
		Name:         strings.TrimSpace(req.Name),
		Email:        normalizeEmail(req.Email),
		Phone:        strings.TrimSpace(req.Phone),
		PasswordHash: passwordHash,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if account.Name == "" {
		return nil, errors.New("name is required")
	}

	if role == models.RoleSeller {
		return models.Seller{Account: account, ShopName: strings.TrimSpace(req.ShopName)}, nil
	}

	joinedAt := now
	if req.JoinedAt != "" {
		parsed, err := time.Parse("2006-01-02", req.JoinedAt)
		if err != nil {
			return nil, errors.New("joinedAt must be YYYY-MM-DD")
		}
		joinedAt = parsed
	}

	code := strings.ToUpper(strings.TrimSpace(req.EmployeeCode))
	if code == "" {
		code = generateEmployeeCode()
	}

	return models.Employee{
		Account:      account,
		EmployeeCode: code,
		Position:     strings.TrimSpace(req.Position),
		DayRate:      req.DayRate,
		JoinedAt:     joinedAt,
	}, nil
}

func CreateStaff(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := staffRole(c)
		if !ok {
			return
		}

		var req StaffCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			respondInternal(c, staffComponent, "password hash failed", err)
			return
		}

		doc, err := buildStaffDocument(role, req, string(hash), time.Now())
		if err != nil {
			respondWithError(c, http.StatusBadRequest, staffComponent, err.Error())
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		res, err := accountCollection(db, role).InsertOne(ctx, doc)
		if isDuplicateKey(err) {
			respondWithError(c, http.StatusConflict, staffComponent, "email or employee code already exists")
			return
		}
		if err != nil {
			respondInternal(c, staffComponent, "db error", err)
			return
		}

		id, _ := res.InsertedID.(primitive.ObjectID)
		logger.From(c, staffComponent).WithFields(map[string]any{"role": role, "accountId": id.Hex()}).Info("staff account created")
		respond(c, http.StatusCreated, gin.H{"id": id.Hex(), "message": "account created"})
	}
}

func ListStaff(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := staffRole(c)
		if !ok {
			return
		}

		p, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, staffComponent, err.Error())
			return
		}

		filter := bson.M{}
		if search := strings.TrimSpace(c.Query("search")); search != "" {
			pattern := regexp.QuoteMeta(search)
			filter["$or"] = []bson.M{
				{"name": bson.M{"$regex": pattern, "$options": "i"}},
				{"email": bson.M{"$regex": pattern, "$options": "i"}},
				{"employeeCode": bson.M{"$regex": pattern, "$options": "i"}},
			}
		}
		if v := strings.TrimSpace(c.Query("isActive")); v != "" {
			filter["isActive"] = strings.EqualFold(v, "true")
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		coll := accountCollection(db, role)
		opts := p.apply(options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))

		var data any
		if role == models.RoleSeller {
			data, err = findAll[models.Seller](ctx, coll, filter, opts)
		} else {
			data, err = findAll[models.Employee](ctx, coll, filter, opts)
		}
		if err != nil {
			respondInternal(c, staffComponent, "db error", err)
			return
		}

		payload := gin.H{"data": data}
		if p.Enabled {
			total, err := coll.CountDocuments(ctx, filter)
			if err != nil {
				respondInternal(c, staffComponent, "db error", err)
				return
			}
			payload["pagination"] = p.meta(total)
		}
		respond(c, http.StatusOK, payload)
	}
}

func GetStaff(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := staffRole(c)
		if !ok {
			return
		}
		id, ok := objectIDParam(c, "id", staffComponent)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		doc := newAccountDocument(role)
		err := accountCollection(db, role).FindOne(ctx, bson.M{"_id": id}).Decode(doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, staffComponent, "account not found")
			return
		}
		if err != nil {
			respondInternal(c, staffComponent, "db error", err)
			return
		}

		respond(c, http.StatusOK, gin.H{"data": doc})
	}
}

// staffUpdateSet builds the $set document. Fields that do not apply to role
// are ignored.
func staffUpdateSet(role string, req StaffUpdateRequest) (bson.M, error) {
	set := bson.M{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, errors.New("name cannot be empty")
		}
		set["name"] = name
	}
	if req.Email != nil {
		set["email"] = normalizeEmail(*req.Email)
	}
	if req.Phone != nil {
		set["phone"] = strings.TrimSpace(*req.Phone)
	}
	if req.IsActive != nil {
		set["isActive"] = *req.IsActive
	}
	if req.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		set["passwordHash"] = string(hash)
	}

	if role == models.RoleSeller {
		if req.ShopName != nil {
			set["shopName"] = strings.TrimSpace(*req.ShopName)
		}
		return set, nil
	}

	if req.EmployeeCode != nil {
		code := strings.ToUpper(strings.TrimSpace(*req.EmployeeCode))
		if code == "" {
			return nil, errors.New("employeeCode cannot be empty")
		}
		set["employeeCode"] = code
	}
	if req.Position != nil {
		set["position"] = strings.TrimSpace(*req.Position)
	}
	if req.DayRate != nil {
		set["dayRate"] = *req.DayRate
	}
	if req.JoinedAt != nil {
		joinedAt, err := time.Parse("2006-01-02", *req.JoinedAt)
		if err != nil {
			return nil, errors.New("joinedAt must be YYYY-MM-DD")
		}
		set["joinedAt"] = joinedAt
	}
	return set, nil
}

func UpdateStaff(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := staffRole(c)
		if !ok {
			return
		}
		id, ok := objectIDParam(c, "id", staffComponent)
		if !ok {
			return
		}

		var req StaffUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		set, err := staffUpdateSet(role, req)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, staffComponent, err.Error())
			return
		}
		if len(set) == 0 {
			respondWithError(c, http.StatusBadRequest, staffComponent, "no fields to update")
			return
		}
		set["updatedAt"] = time.Now()

		ctx, cancel := requestContext(c)
		defer cancel()

		res, err := accountCollection(db, role).UpdateByID(ctx, id, bson.M{"$set": set})
		if isDuplicateKey(err) {
			respondWithError(c, http.StatusConflict, staffComponent, "email or employee code already exists")
			return
		}
		if err != nil {
			respondInternal(c, staffComponent, "db error", err)
			return
		}
		if res.MatchedCount == 0 {
			respondWithError(c, http.StatusNotFound, staffComponent, "account not found")
			return
		}

		respond(c, http.StatusOK, gin.H{"message": "account updated"})
	}
}

// DeactivateStaff keeps the document for payroll history and blocks login.
func DeactivateStaff(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := staffRole(c)
		if !ok {
			return
		}
		id, ok := objectIDParam(c, "id", staffComponent)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		res, err := accountCollection(db, role).UpdateByID(ctx, id, bson.M{"$set": bson.M{
			"isActive":  false,
			"updatedAt": time.Now(),
		}})
		if err != nil {
			respondInternal(c, staffComponent, "db error", err)
			return
		}
		if res.MatchedCount == 0 {
			respondWithError(c, http.StatusNotFound, staffComponent, "account not found")
			return
		}

		log := logger.From(c, staffComponent).WithFields(map[string]any{"role": role, "accountId": id.Hex()})
		if _, err := db.Collection("refresh_tokens").UpdateMany(ctx,
			bson.M{"accountId": id, "revoked": false},
			bson.M{"$set": bson.M{"revoked": true}},
		); err != nil {
			log.WithError(err).Warn("refresh tokens not revoked")
		}
		log.Info("account deactivated")

		respond(c, http.StatusOK, gin.H{"message": "account deactivated"})
	}
}
