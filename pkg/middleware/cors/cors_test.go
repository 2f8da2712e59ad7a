package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func serve(origins []string, method, origin string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(New(origins))
	r.GET("/wages", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(method, "/wages", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCORSAllowList(t *testing.T) {
	w := serve([]string{"https://office.example.com/"}, http.MethodGet, "https://office.example.com")
	assert.Equal(t, "https://office.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	w = serve([]string{"https://office.example.com"}, http.MethodGet, "https://evil.example.com")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORSWildcardAndPreflight(t *testing.T) {
	w := serve(nil, http.MethodGet, "https://anywhere.example.com")
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))

	w = serve(nil, http.MethodOptions, "https://anywhere.example.com")
	assert.Equal(t, http.StatusNoContent, w.Code)
}
