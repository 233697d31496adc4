package schemas

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFile_AssetManifest(t *testing.T) {
	err := ValidateFile(AssetManifest, filepath.Join("testdata", "asset-manifest.json"))
	assert.NoError(t, err)
}

func TestValidateFile_NotFound(t *testing.T) {
	err := ValidateFile(AssetManifest, filepath.Join("testdata", "nonexistent.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestValidateNamed_AssetManifest(t *testing.T) {
	tests := []struct {
		name      string
		document  string
		wantError bool
	}{
		{"files only", `{"files": {"main.js": "/static/js/main.abc.js"}}`, false},
		{"missing files", `{"entrypoints": ["static/js/main.abc.js"]}`, true},
		{"files wrong type", `{"files": ["main.js"]}`, true},
		{"empty url", `{"files": {"main.js": ""}}`, true},
		{"entrypoints wrong item type", `{"files": {}, "entrypoints": [1]}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNamed(AssetManifest, []byte(tt.document))
			if !tt.wantError {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.NotEmpty(t, validationErr.Errors)
		})
	}
}

func TestValidateNamed_ReviewsWebhook(t *testing.T) {
	valid := `{
		"action": "update_reviews",
		"business_name": "Santos Cleaning Solutions",
		"total_reviews": 1,
		"average_rating": 5,
		"reviews": [{"author_name": "Ana", "rating": 5, "text": "Spotless!"}]
	}`
	assert.NoError(t, ValidateNamed(ReviewsWebhook, []byte(valid)))

	badRating := `{"action": "update_reviews", "reviews": [{"author_name": "Ana", "rating": 9}]}`
	err := ValidateNamed(ReviewsWebhook, []byte(badRating))
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Error(), "rating")
}

func TestValidateNamed_UnknownSchema(t *testing.T) {
	err := ValidateNamed("nope", []byte(`{}`))
	var loadErr *SchemaLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Contains(t, err.Error(), "unknown schema")
}

func TestValidateNamed_MalformedDocument(t *testing.T) {
	// Document parse failures surface from the loader, not as field errors.
	err := ValidateNamed(AssetManifest, []byte("{ invalid json }"))
	var loadErr *SchemaLoadError
	assert.ErrorAs(t, err, &loadErr)
}

func TestValidateJSONString(t *testing.T) {
	schema := `{"type": "object", "required": ["name"], "properties": {"name": {"type": "string"}}}`

	assert.NoError(t, ValidateJSONString(schema, `{"name": "ok"}`))

	err := ValidateJSONString(schema, `{}`)
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "(root)", validationErr.Errors[0].Field)
}

func TestEmbeddedSchemasCompile(t *testing.T) {
	for name := range embedded {
		t.Run(name, func(t *testing.T) {
			data, err := os.ReadFile(name + ".schema.json")
			require.NoError(t, err)

			// An empty object fails the required checks but must not fail to load.
			err = ValidateJSONString(string(data), `{}`)
			var loadErr *SchemaLoadError
			assert.False(t, errors.As(err, &loadErr), "schema %s failed to compile: %v", name, err)
		})
	}
}
