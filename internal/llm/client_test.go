package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePersona(t *testing.T) {
	for _, name := range []string{"precise", "default", "creative"} {
		p, err := ParsePersona(name)
		require.NoError(t, err)
		assert.Equal(t, Persona(name), p)
	}

	_, err := ParsePersona("chaotic")
	assert.Error(t, err)
}

func TestPersonaTemperature(t *testing.T) {
	assert.InDelta(t, 0.2, PersonaPrecise.Temperature(), 0.001)
	assert.InDelta(t, 0.45, PersonaDefault.Temperature(), 0.001)
	assert.InDelta(t, 0.9, PersonaCreative.Temperature(), 0.001)
}

func TestProviderError(t *testing.T) {
	withCode := &ProviderError{Provider: "gemini", Message: "too many requests", Code: 429}
	assert.Equal(t, "gemini: 429 too many requests", withCode.Error())
	assert.True(t, IsRateLimited(withCode))

	withoutCode := &ProviderError{Provider: "gemini", Message: "boom"}
	assert.Equal(t, "gemini: boom", withoutCode.Error())
	assert.False(t, IsRateLimited(withoutCode))

	assert.False(t, IsRateLimited(nil))
}
