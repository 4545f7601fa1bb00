package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"fantasy-league/models"
	"fantasy-league/store"
)

type AuthInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

const (
	accessTokenTTL  = 24 * time.Hour
	refreshTokenTTL = 7 * 24 * time.Hour
	verifyTokenTTL  = 24 * time.Hour
)

func verifyKey(token string) string { return "verify:" + token }

func (h *Handler) Signup(c *gin.Context) {
	var input AuthInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.Store.UserByEmail(c.Request.Context(), input.Email); err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Email already exists"})
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		h.writeError(c, err)
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		h.writeError(c, err)
		return
	}

	user := models.User{
		Email:    input.Email,
		Password: string(hashedPassword),
	}
	if err := h.Store.CreateUser(c.Request.Context(), &user); err != nil {
		h.writeError(c, err)
		return
	}

	// Mail delivery is an external collaborator; the token is returned so
	// whatever sends email can pick it up.
	token, err := randomToken()
	if err != nil {
		h.writeError(c, err)
		return
	}
	if err := h.Rdb.Set(c.Request.Context(), verifyKey(token), user.ID, verifyTokenTTL).Err(); err != nil {
		h.writeError(c, err)
		return
	}

	h.Log.Info("user signed up", "user_id", user.ID)
	c.JSON(http.StatusCreated, gin.H{
		"message":            "User created successfully",
		"verification_token": token,
	})
}

func (h *Handler) Login(c *gin.Context) {
	var input AuthInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.Store.UserByEmail(c.Request.Context(), input.Email)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	accessToken, err := h.signToken(user.ID, accessTokenTTL)
	if err != nil {
		h.writeError(c, err)
		return
	}
	refreshToken, err := h.signToken(user.ID, refreshTokenTTL)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if err := h.Rdb.Set(c.Request.Context(), "refresh:"+refreshToken, user.ID, refreshTokenTTL).Err(); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
	})
}

type VerifyEmailInput struct {
	Token string `json:"token" binding:"required"`
}

func (h *Handler) VerifyEmail(c *gin.Context) {
	var input VerifyEmailInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	raw, err := h.Rdb.Get(c.Request.Context(), verifyKey(input.Token)).Result()
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Invalid or expired verification token"})
		return
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		h.writeError(c, fmt.Errorf("corrupt verification token value: %w", err))
		return
	}

	user, err := h.Store.UserByID(c.Request.Context(), uint(id))
	if err != nil {
		h.writeError(c, err)
		return
	}
	user.EmailVerified = true
	if err := h.Store.SaveUser(c.Request.Context(), user); err != nil {
		h.writeError(c, err)
		return
	}
	h.Rdb.Del(c.Request.Context(), verifyKey(input.Token))

	c.JSON(http.StatusOK, gin.H{"message": "Email verified"})
}

func (h *Handler) signToken(userID uint, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.JWTSecret))
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
