package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestAuthMiddlewareRejectsMalformedHeaders(t *testing.T) {
	router := gin.New()
	router.GET("/protected", AuthMiddleware, func(ctx *gin.Context) {
		ctx.Status(http.StatusOK)
	})

	headers := []string{
		"",
		"Token abc",
		"Bearer",
		"Bearer ",
		"Bearer not-a-token",
	}
	for _, header := range headers {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/protected", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		router.ServeHTTP(w, req)

		assert.Equalf(t, http.StatusUnauthorized, w.Code, "header %q", header)
	}
}
