package llm

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestConvertToGenaiSchema_Photo(t *testing.T) {
	schema, err := convertToGenaiSchema(PhotoSchema)
	require.NoError(t, err)

	assert.Equal(t, genai.TypeObject, schema.Type)
	assert.ElementsMatch(t, []string{"vibe_score", "matching_elements", "vibe_description", "standout_detail"}, schema.Required)
	assert.Equal(t, genai.TypeNumber, schema.Properties["vibe_score"].Type)
	require.NotNil(t, schema.Properties["matching_elements"].Items)
	assert.Equal(t, genai.TypeString, schema.Properties["matching_elements"].Items.Type)
}

func TestConvertToGenaiSchema_Events(t *testing.T) {
	schema, err := convertToGenaiSchema(EventsSchema)
	require.NoError(t, err)
	items := schema.Properties["events"].Items
	require.NotNil(t, items)
	assert.Len(t, items.Properties, 6)
}

func TestConvertToGenaiSchema_Invalid(t *testing.T) {
	_, err := convertToGenaiSchema(map[string]interface{}{"type": "tuple"})
	assert.Error(t, err)

	schema, err := convertToGenaiSchema(nil)
	assert.NoError(t, err)
	assert.Nil(t, schema)
}

func TestRetryHelpers(t *testing.T) {
	assert.True(t, IsRateLimitError(errors.New("Error 429, Status: RESOURCE_EXHAUSTED")))
	assert.False(t, IsRateLimitError(errors.New("400 bad request")))
	assert.False(t, IsRateLimitError(nil))

	delay := ExtractRetryDelay(errors.New("Please retry in 2.5s., Status: RESOURCE_EXHAUSTED"))
	assert.Equal(t, 2500*time.Millisecond, delay)

	cfg := NewInteractiveRetryConfig()
	assert.Equal(t, time.Second, cfg.CalculateBackoff(0, 0))
	assert.Equal(t, 4*time.Second, cfg.CalculateBackoff(2, 0))
	assert.Equal(t, cfg.MaxBackoff, cfg.CalculateBackoff(5, 0))
	assert.Equal(t, 5*time.Second, cfg.CalculateBackoff(1, 2500*time.Millisecond))
}
