package actions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xeipuuv/gojsonschema"
)

type sampleConfig struct {
	Title string `json:"title" validate:"required"`
	Body  string `json:"body"`
	Level string `json:"level" validate:"omitempty,oneof=low high"`
}

func TestDecodeConfig(t *testing.T) {
	aliases := map[string]string{"titulo": "title", "mensaje": "body"}

	var cfg sampleConfig
	require.NoError(t, DecodeConfig(map[string]any{"titulo": "Hola", "mensaje": "Mundo"}, aliases, &cfg))
	assert.Equal(t, sampleConfig{Title: "Hola", Body: "Mundo"}, cfg)

	cfg = sampleConfig{}
	require.NoError(t, DecodeConfig(map[string]any{"title": "A", "titulo": "B"}, aliases, &cfg))
	assert.Equal(t, "A", cfg.Title)

	cfg = sampleConfig{}
	assert.Error(t, DecodeConfig(map[string]any{"body": "x"}, aliases, &cfg))

	cfg = sampleConfig{}
	assert.Error(t, DecodeConfig(map[string]any{"title": "x", "level": "medium"}, aliases, &cfg))

	cfg = sampleConfig{}
	assert.Error(t, DecodeConfig(map[string]any{"title": 12}, aliases, &cfg))
}

func TestRenderAddress(t *testing.T) {
	data := map[string]any{"tenant": map[string]any{"id": "t-1", "blank": " "}}

	value, err := RenderAddress("target", " {{tenant.id}} ", data)
	require.NoError(t, err)
	assert.Equal(t, "t-1", value)

	_, err = RenderAddress("target", "{{tenant.email}}", data)
	assert.ErrorIs(t, err, ErrUnresolvedPlaceholder)

	_, err = RenderAddress("target", "{{tenant.blank}}", data)
	assert.Error(t, err)
}

func TestValidateVar(t *testing.T) {
	assert.NoError(t, ValidateVar("to", "ana@example.com", "required,email"))
	assert.Error(t, ValidateVar("to", "ana", "required,email"))
}

func TestObjectSchema_AcceptsAliases(t *testing.T) {
	schema := ObjectSchema(
		map[string]any{
			"title":  StringProperty("Title"),
			"titulo": StringProperty("Alias of title"),
			"level":  EnumProperty("Level", "low", "low", "high"),
		},
		RequireAny("title", "titulo"),
	)

	validate := func(document map[string]any) bool {
		result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(document))
		require.NoError(t, err)

		return result.Valid()
	}

	assert.True(t, validate(map[string]any{"title": "x"}))
	assert.True(t, validate(map[string]any{"titulo": "x"}))
	assert.False(t, validate(map[string]any{"body": "x"}))
	assert.False(t, validate(map[string]any{"title": "x", "level": "medium"}))
}
