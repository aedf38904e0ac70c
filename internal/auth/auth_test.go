package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestVerifyAcceptsAllowedUser(t *testing.T) {
	t.Parallel()

	gate := NewGate("secret", "owner@example.com")
	token, err := gate.Issue(time.Hour)
	require.NoError(t, err)

	subject, err := gate.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", subject)
}

func TestVerifyRejects(t *testing.T) {
	t.Parallel()

	now := time.Now()
	stranger, err := IssueToken([]byte("secret"), "stranger", now, time.Hour)
	require.NoError(t, err)
	forged, err := IssueToken([]byte("other-secret"), "owner", now, time.Hour)
	require.NoError(t, err)
	expired, err := IssueToken([]byte("secret"), "owner", now.Add(-2*time.Hour), time.Hour)
	require.NoError(t, err)

	gate := NewGate("secret", "owner")
	for name, token := range map[string]string{
		"wrong subject": stranger,
		"wrong secret":  forged,
		"expired":       expired,
		"garbage":       "not-a-token",
	} {
		_, err := gate.Verify(token)
		assert.ErrorIs(t, err, ErrUnauthorized, name)
	}
}

func TestUnconfiguredGateRejectsEverything(t *testing.T) {
	t.Parallel()

	token, err := IssueToken([]byte("anything"), "owner", time.Now(), time.Hour)
	require.NoError(t, err)

	gate := NewGate("", "owner")
	assert.False(t, gate.Enabled())
	_, err = gate.Verify(token)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = gate.Issue(time.Hour)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	gate := NewGate("secret", "owner")
	token, err := gate.Issue(time.Hour)
	require.NoError(t, err)

	router := gin.New()
	router.POST("/guarded", gate.Middleware(), func(c *gin.Context) {
		c.String(http.StatusOK, Subject(c))
	})

	cases := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing", header: "", status: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic " + token, status: http.StatusUnauthorized},
		{name: "invalid", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "valid", header: "Bearer " + token, status: http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/guarded", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, "owner", rec.Body.String())
			}
		})
	}
}
