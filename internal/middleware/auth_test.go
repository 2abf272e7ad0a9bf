package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

type staticValidator map[string][2]string

func (v staticValidator) ValidateToken(token string) (string, string, error) {
	if claims, ok := v[token]; ok {
		return claims[0], claims[1], nil
	}
	return "", "", errors.New("invalid token")
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextUserID)+"/"+c.GetString(ContextRole))
	})
	r.GET("/", handlers...)
	return r
}

func TestJWTAuth(t *testing.T) {
	v := staticValidator{"good": {"u1", "teacher"}}
	r := newRouter(JWTAuth(v))

	tests := []struct {
		name   string
		header string
		query  string
		status int
		body   string
	}{
		{"bearer header", "Bearer good", "", http.StatusOK, "u1/teacher"},
		{"query token", "", "?token=good", http.StatusOK, "u1/teacher"},
		{"missing", "", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic good", "", http.StatusUnauthorized, ""},
		{"bad token", "Bearer bad", "", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			if tt.body != "" && w.Body.String() != tt.body {
				t.Fatalf("body = %q, want %q", w.Body.String(), tt.body)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	v := staticValidator{"t": {"u1", "teacher"}, "s": {"u2", "student"}}
	r := newRouter(JWTAuth(v), RequireRole("teacher"))

	for token, want := range map[string]int{"t": http.StatusOK, "s": http.StatusForbidden} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != want {
			t.Errorf("token %q: status = %d, want %d", token, w.Code, want)
		}
	}
}

func TestOptionalAuth(t *testing.T) {
	r := newRouter(OptionalAuth(staticValidator{"good": {"u1", "student"}}))

	for query, want := range map[string]string{"": "/", "?token=bad": "/", "?token=good": "u1/student"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/"+query, nil))
		if w.Code != http.StatusOK || w.Body.String() != want {
			t.Errorf("query %q: %d %q, want 200 %q", query, w.Code, w.Body.String(), want)
		}
	}
}
