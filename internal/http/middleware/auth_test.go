// README: JWT middleware tests.
package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"trego/internal/modules/user"
	"trego/internal/types"
)

type stubUserSource struct {
	users map[types.ID]*user.User
}

func (s *stubUserSource) Get(_ context.Context, id types.ID) (*user.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

func newAuthTestRouter(secret []byte, users UserSource) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Auth(secret, users))
	r.GET("/whoami", func(c *gin.Context) {
		actor := Actor(c)
		c.JSON(http.StatusOK, gin.H{"id": int64(actor.ID), "role": string(actor.Role)})
	})
	return r
}

func TestAuthTokenRoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	users := &stubUserSource{users: map[types.ID]*user.User{
		7: {ID: 7, Role: user.RoleDriver, Status: user.StatusActive},
	}}
	router := newAuthTestRouter(secret, users)

	token, err := GenerateToken(secret, 7, user.RoleDriver)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
	}
}

func TestAuthRejectsBadTokens(t *testing.T) {
	secret := []byte("test-secret")
	users := &stubUserSource{users: map[types.ID]*user.User{
		7: {ID: 7, Role: user.RoleDriver, Status: user.StatusActive},
	}}
	router := newAuthTestRouter(secret, users)

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"garbage token", "Bearer not.a.jwt"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", w.Code)
			}
		})
	}

	// Token signed with the wrong secret.
	token, err := GenerateToken([]byte("other-secret"), 7, user.RoleDriver)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong secret: status = %d, want 401", w.Code)
	}
}

func TestAuthRejectsUnknownUser(t *testing.T) {
	secret := []byte("test-secret")
	router := newAuthTestRouter(secret, &stubUserSource{users: map[types.ID]*user.User{}})

	token, err := GenerateToken(secret, 42, user.RoleRider)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}
