package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groeigesprek/backend/internal/models"
	"github.com/groeigesprek/backend/pkg/apperr"
	"github.com/groeigesprek/backend/pkg/utils"
)

func TestJWTRoundTrip(t *testing.T) {
	svc := NewJWTService("secret", 1)
	id := uuid.New()
	token, err := svc.Generate(id, "admin@example.com", "admin")
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)
	assert.Equal(t, "admin", claims.Role)

	_, err = NewJWTService("other", 1).Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTRejectsExpiredAndNoneAlg(t *testing.T) {
	svc := NewJWTService("secret", 1)
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: uuid.New(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	raw, err := expired.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = svc.Validate(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: uuid.New()})
	raw, err = none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.Validate(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

type memStore struct {
	users map[string]*models.User
}

func newMemStore() *memStore { return &memStore{users: map[string]*models.User{}} }

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, apperr.NotFound("user not found")
}

func (m *memStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	if u, ok := m.users[strings.ToLower(email)]; ok {
		return u, nil
	}
	return nil, apperr.NotFound("user not found")
}

func (m *memStore) List(context.Context) ([]models.UserPublic, error) {
	list := []models.UserPublic{}
	for _, u := range m.users {
		list = append(list, u.ToPublic())
	}
	return list, nil
}

func (m *memStore) Create(_ context.Context, email, hash, name string, role models.Role) (*models.User, error) {
	key := strings.ToLower(email)
	if _, ok := m.users[key]; ok {
		return nil, apperr.New(apperr.ErrConflict, "email already in use")
	}
	u := &models.User{ID: uuid.New(), Email: key, Password: hash, FullName: name, Role: role, CreatedAt: time.Now()}
	m.users[key] = u
	return u, nil
}

func post(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandlerLoginAndCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := newMemStore()
	hash, err := utils.HashPassword("correct horse")
	require.NoError(t, err)
	_, err = store.Create(context.Background(), "Admin@Example.com", hash, "Admin", models.RoleAdmin)
	require.NoError(t, err)

	jwtSvc := NewJWTService("secret", 1)
	h := NewHandler(store, jwtSvc, nil)
	r := gin.New()
	r.POST("/auth/login", h.Login)
	r.POST("/admin/users", h.Create)

	w := post(r, "/auth/login", `{"email":"admin@example.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = post(r, "/auth/login", `{"email":"nobody@example.com","password":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = post(r, "/auth/login", `{"email":"admin@example.com","password":"correct horse"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data TokenResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, models.RoleAdmin, body.Data.User.Role)
	assert.NotContains(t, w.Body.String(), "password")
	_, err = jwtSvc.Validate(body.Data.Token)
	require.NoError(t, err)

	w = post(r, "/admin/users", `{"email":"ed@example.com","password":"longenough","full_name":"Ed"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, models.RoleEditor, store.users["ed@example.com"].Role)

	w = post(r, "/admin/users", `{"email":"ed@example.com","password":"longenough","full_name":"Ed"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = post(r, "/admin/users", `{"email":"x@example.com","password":"short","full_name":"X","role":"owner"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJWTRequiresIssuer(t *testing.T) {
	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: uuid.New(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	raw, err := foreign.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = NewJWTService("secret", 1).Validate(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
