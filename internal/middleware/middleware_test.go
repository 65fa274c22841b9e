package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/myfevent/backend/internal/auth"
	"github.com/myfevent/backend/internal/auth/authtest"
	"github.com/myfevent/backend/internal/models"
)

type resolverFunc func(ctx context.Context, eventID, userID uuid.UUID) (*models.EventMember, error)

func (f resolverFunc) EventMembership(ctx context.Context, eventID, userID uuid.UUID) (*models.EventMember, error) {
	return f(ctx, eventID, userID)
}

func TestJWT(t *testing.T) {
	gin.SetMode(gin.TestMode)
	verifier := auth.NewVerifier("mw-secret", "", 0)
	userID := uuid.New()
	token := authtest.Token(t, "mw-secret", userID, time.Hour)

	r := gin.New()
	r.GET("/me", JWT(verifier), func(c *gin.Context) {
		id, ok := UserID(c)
		require.True(t, ok)
		c.String(http.StatusOK, id.String())
	})

	cases := []struct {
		header string
		code   int
	}{
		{"", http.StatusUnauthorized},
		{"Token " + token, http.StatusUnauthorized},
		{"Bearer nope", http.StatusUnauthorized},
		{"Bearer " + token, http.StatusOK},
		{"bearer " + token, http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, tc.code, rec.Code, tc.header)
		if tc.code == http.StatusOK {
			assert.Equal(t, userID.String(), rec.Body.String())
		}
	}
}

func TestResolveEventRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	eventID, hoocID, strangerID, brokenID := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	resolver := resolverFunc(func(_ context.Context, e, u uuid.UUID) (*models.EventMember, error) {
		switch {
		case u == brokenID:
			return nil, errors.New("db down")
		case e == eventID && u == hoocID:
			return &models.EventMember{EventID: e, UserID: u, Role: models.RoleHoOC}, nil
		}
		return nil, nil
	})

	run := func(userID uuid.UUID, eventParam string) (int, string) {
		r := gin.New()
		r.GET("/events/:eventId", func(c *gin.Context) {
			c.Set(ContextUserID, userID)
			c.Next()
		}, ResolveEventRole(resolver, zap.NewNop()), func(c *gin.Context) {
			if m := EventMember(c); m != nil {
				c.String(http.StatusOK, string(m.Role))
				return
			}
			c.String(http.StatusOK, "none")
		})
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events/"+eventParam, nil))
		return rec.Code, rec.Body.String()
	}

	for _, tc := range []struct {
		user  uuid.UUID
		event string
		want  string
	}{
		{hoocID, eventID.String(), "HoOC"},
		{strangerID, eventID.String(), "none"},
		{hoocID, "not-a-uuid", "none"},
	} {
		code, body := run(tc.user, tc.event)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, tc.want, body)
	}

	code, body := run(brokenID, eventID.String())
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Contains(t, body, MsgRoleLookupFailed)
	assert.NotContains(t, body, "db down")
}

func TestOriginPolicy(t *testing.T) {
	assert.Equal(t, "*", NewOriginPolicy(nil).Allow("http://evil.test"))
	assert.Equal(t, "*", NewOriginPolicy([]string{"*"}).Allow("http://a.test"))

	p := NewOriginPolicy([]string{"http://localhost:5173"})
	assert.Equal(t, "http://localhost:5173", p.Allow("http://localhost:5173"))
	assert.Equal(t, "", p.Allow("http://evil.test"))
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS(NewOriginPolicy([]string{"http://localhost:5173"})))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}
