package main

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	r := setupTest(t)

	w := doJSON(t, r, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "secret123",
		"role":     "organizer",
	})
	require.Equal(t, http.StatusCreated, w.Code, "body: %s", w.Body.String())

	var resp struct {
		User User `json:"user"`
	}
	decodeBody(t, w, &resp)
	assert.Equal(t, "alice", resp.User.Username)
	assert.Equal(t, RoleOrganizer, resp.User.Role)
	assert.NotContains(t, w.Body.String(), "password")

	var stored User
	require.NoError(t, DB.Where("username = ?", "alice").First(&stored).Error)
	assert.NotEqual(t, "secret123", stored.Password, "password must be stored hashed")
}

func TestRegisterDefaultsToAttendee(t *testing.T) {
	r := setupTest(t)

	w := doJSON(t, r, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": "bob",
		"email":    "bob@example.com",
		"password": "secret123",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var stored User
	require.NoError(t, DB.Where("username = ?", "bob").First(&stored).Error)
	assert.Equal(t, RoleAttendee, stored.Role)
}

func TestRegisterDuplicateCreatesNoRow(t *testing.T) {
	r := setupTest(t)
	createUser(t, "alice", RoleOrganizer)

	cases := []gin.H{
		{"username": "alice", "email": "other@example.com", "password": "secret123"},
		{"username": "other", "email": "alice@example.com", "password": "secret123"},
	}
	for _, payload := range cases {
		w := doJSON(t, r, http.MethodPost, "/api/auth/register", "", payload)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}

	var count int64
	require.NoError(t, DB.Model(&User{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestRegisterValidation(t *testing.T) {
	r := setupTest(t)

	cases := []gin.H{
		{"email": "a@example.com", "password": "secret123"},                           // missing username
		{"username": "a", "password": "secret123"},                                    // missing email
		{"username": "a", "email": "not-an-email", "password": "secret123"},           // bad email
		{"username": "a", "email": "a@example.com", "password": "short"},              // short password
		{"username": "a", "email": "a@example.com", "password": "secret123", "role": "owner"}, // unknown role
	}
	for _, payload := range cases {
		w := doJSON(t, r, http.MethodPost, "/api/auth/register", "", payload)
		assert.Equal(t, http.StatusBadRequest, w.Code, "payload: %v", payload)
	}
}

func TestLogin(t *testing.T) {
	r := setupTest(t)

	w := doJSON(t, r, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "secret123",
		"role":     "organizer",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	// By username, by email and via the generic identifier field.
	for _, payload := range []gin.H{
		{"username": "alice", "password": "secret123"},
		{"email": "alice@example.com", "password": "secret123"},
		{"identifier": "alice", "password": "secret123"},
	} {
		w := doJSON(t, r, http.MethodPost, "/api/auth/login", "", payload)
		require.Equal(t, http.StatusOK, w.Code, "payload: %v", payload)

		var resp struct {
			Token string `json:"token"`
		}
		decodeBody(t, w, &resp)
		require.NotEmpty(t, resp.Token)

		token, err := jwt.Parse(resp.Token, func(*jwt.Token) (interface{}, error) {
			return jwtSecret(), nil
		})
		require.NoError(t, err)
		claims := token.Claims.(jwt.MapClaims)
		assert.Equal(t, "organizer", claims["role"])
		assert.Equal(t, "alice", claims["username"])
	}
}

func TestLoginFailures(t *testing.T) {
	r := setupTest(t)
	createUser(t, "alice", RoleOrganizer)

	w := doJSON(t, r, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": "alice", "password": "wrongpass",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": "nobody", "password": "secret123",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/auth/login", "", gin.H{
		"password": "secret123",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthMiddleware(t *testing.T) {
	r := setupTest(t)
	user, token := createUser(t, "alice", RoleOrganizer)

	// No token
	w := doJSON(t, r, http.MethodGet, "/api/events", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Garbage token
	w = doJSON(t, r, http.MethodGet, "/api/events", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Expired token
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"role":     user.Role,
		"exp":      time.Now().Add(-time.Minute).Unix(),
	})
	expiredString, err := expired.SignedString(jwtSecret())
	require.NoError(t, err)
	w = doJSON(t, r, http.MethodGet, "/api/events", expiredString, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Valid token
	w = doJSON(t, r, http.MethodGet, "/api/events", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
