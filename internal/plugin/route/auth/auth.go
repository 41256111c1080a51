// Package auth mounts the signup, signin, and current-user endpoints.
// Unlike the chat path, auth does not degrade when the user store is
// down; requests fail with 503 so clients can retry.
package auth

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/tourplanner/travel-service/internal/model"
	registrystore "github.com/tourplanner/travel-service/internal/registry/store"
	"github.com/tourplanner/travel-service/internal/security"
)

type signUpRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// MountRoutes mounts auth routes on the engine. Called after store
// initialization so the store is available.
func MountRoutes(r *gin.Engine, store registrystore.Datastore, issuer *security.TokenIssuer) {
	g := r.Group("/auth")

	g.POST("/signup", func(c *gin.Context) {
		signup(c, store)
	})
	g.POST("/signin", func(c *gin.Context) {
		signin(c, store, issuer)
	})
	g.GET("/me", security.AuthMiddleware(issuer), func(c *gin.Context) {
		me(c, store)
	})
}

func signup(c *gin.Context, store registrystore.Datastore) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if msg := validateSignUp(&req); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": msg})
		return
	}

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	user, err := store.CreateUser(c.Request.Context(), model.User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: hash,
	})
	if err != nil {
		var conflict *registrystore.ConflictError
		if errors.As(err, &conflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		log.Error("Signup failed", "err", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "user store unavailable"})
		return
	}

	log.Info("New user registered", "email", user.Email)
	c.JSON(http.StatusCreated, userResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	})
}

func validateSignUp(req *signUpRequest) string {
	if len(strings.TrimSpace(req.Name)) < 2 {
		return "name must be at least 2 characters long"
	}
	email := strings.TrimSpace(req.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return "invalid email address"
	}
	if len(req.Password) < 6 {
		return "password must be at least 6 characters long"
	}
	if req.Password != req.ConfirmPassword {
		return "passwords do not match"
	}
	return ""
}

func signin(c *gin.Context, store registrystore.Datastore, issuer *security.TokenIssuer) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := store.GetUserByEmail(c.Request.Context(), email)
	if err != nil {
		var notFound *registrystore.NotFoundError
		if errors.As(err, &notFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "incorrect email or password"})
			return
		}
		log.Error("Signin failed", "err", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "user store unavailable"})
		return
	}
	if !security.CheckPassword(user.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "incorrect email or password"})
		return
	}

	token, _, err := issuer.Issue(user.Email, user.Name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	log.Info("User signed in", "email", user.Email)
	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "bearer",
		"user": gin.H{
			"id":    user.ID,
			"name":  user.Name,
			"email": user.Email,
		},
	})
}

func me(c *gin.Context, store registrystore.Datastore) {
	email := c.GetString(security.ContextKeyUserEmail)
	user, err := store.GetUserByEmail(c.Request.Context(), email)
	if err != nil {
		var notFound *registrystore.NotFoundError
		if errors.As(err, &notFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "could not validate credentials"})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "user store unavailable"})
		return
	}
	c.JSON(http.StatusOK, userResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	})
}
