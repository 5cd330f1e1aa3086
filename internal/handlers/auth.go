package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/emilythestrangee/campus-events/backend/internal/apperrors"
	"github.com/emilythestrangee/campus-events/backend/internal/auth"
	"github.com/emilythestrangee/campus-events/backend/internal/database"
	"github.com/emilythestrangee/campus-events/backend/internal/models"
)

type AuthHandler struct {
	db     *gorm.DB
	tokens *auth.Manager
}

func NewAuthHandler(db *gorm.DB, tokens *auth.Manager) *AuthHandler {
	return &AuthHandler{db: db, tokens: tokens}
}

// Register handles user registration
func (h *AuthHandler) Register(c *gin.Context) {
	var input models.RegisterRequest
	if err := bindJSON(c, &input); err != nil {
		respondError(c, err)
		return
	}

	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	db := h.db.WithContext(c.Request.Context())

	var existing int64
	if err := db.Model(&models.User{}).
		Where("username = ? OR email = ?", input.Username, input.Email).
		Count(&existing).Error; err != nil {
		respondError(c, apperrors.Internal("Failed to create user", err))
		return
	}
	if existing > 0 {
		respondError(c, apperrors.Conflict("Username or email already exists"))
		return
	}

	hashed, err := auth.HashPassword(input.Password)
	if err != nil {
		respondError(c, apperrors.Internal("Failed to hash password", err))
		return
	}

	user := models.User{
		Username:     input.Username,
		Email:        input.Email,
		Password:     hashed,
		Avatar:       input.Avatar,
		AuthProvider: "email",
	}
	if err := db.Create(&user).Error; err != nil {
		if database.IsUniqueViolation(err) {
			respondError(c, apperrors.Conflict("Username or email already exists"))
			return
		}
		respondError(c, apperrors.Internal("Failed to create user", err))
		return
	}

	h.respondWithToken(c, http.StatusCreated, user)
}

// Login handles user login
func (h *AuthHandler) Login(c *gin.Context) {
	var input models.LoginRequest
	if err := bindJSON(c, &input); err != nil {
		respondError(c, err)
		return
	}

	var user models.User
	err := h.db.WithContext(c.Request.Context()).
		Where("email = ? AND auth_provider = ?", strings.ToLower(strings.TrimSpace(input.Email)), "email").
		First(&user).Error
	if err != nil {
		respondError(c, apperrors.Unauthenticated("Invalid credentials"))
		return
	}

	if err := auth.CheckPassword(user.Password, input.Password); err != nil {
		respondError(c, apperrors.Unauthenticated("Invalid credentials"))
		return
	}

	h.respondWithToken(c, http.StatusOK, user)
}

// GetMe returns the current authenticated user
func (h *AuthHandler) GetMe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var user models.User
	if err := h.db.WithContext(c.Request.Context()).First(&user, userID).Error; err != nil {
		respondError(c, lookupError(err, "User not found", "Failed to load user"))
		return
	}

	respondOK(c, http.StatusOK, user.Account())
}

func (h *AuthHandler) respondWithToken(c *gin.Context, status int, user models.User) {
	token, err := h.tokens.Issue(user)
	if err != nil {
		respondError(c, apperrors.Internal("Failed to generate token", err))
		return
	}

	respondOK(c, status, models.AuthResponse{Token: token, User: user.Account()})
}
