package swagger

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swaggo/swag"
)

func TestRegisteredDocIsValidJSON(t *testing.T) {
	raw, err := swag.ReadDoc()
	require.NoError(t, err)

	var doc struct {
		BasePath string                 `json:"basePath"`
		Paths    map[string]interface{} `json:"paths"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	assert.Equal(t, "/api/v1", doc.BasePath)
	for _, path := range []string{"/classes/{id}/schedule", "/classes/{id}/attendance/{lesson}", "/wages/{id}/payments", "/wages/export"} {
		assert.Contains(t, doc.Paths, path)
	}
}
