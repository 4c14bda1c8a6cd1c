package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListProvidersOrder(t *testing.T) {
	list := ListProviders()
	require.Len(t, list, 4)

	ids := make([]string, len(list))
	for i, d := range list {
		ids[i] = d.ID
		assert.NotEmpty(t, d.Models, "provider %s must list at least one model", d.ID)
		assert.NotEmpty(t, d.APIKeyPlaceholder)
		assert.NotEmpty(t, d.DocsURL)
	}
	assert.Equal(t, []string{"openai", "cohere", "anthropic", "mistral"}, ids)
}

func TestFindProvider(t *testing.T) {
	d, ok := FindProvider("mistral")
	require.True(t, ok)
	assert.Equal(t, "Mistral AI", d.Name)
	assert.Equal(t, "mistral-small", d.Models[0].ID)

	_, ok = FindProvider("gemini")
	assert.False(t, ok)
}

func TestDefaultModel(t *testing.T) {
	tests := []struct {
		provider string
		want     string
	}{
		{"openai", "gpt-3.5-turbo"},
		{"cohere", "command"},
		{"anthropic", "claude-3-opus"},
		{"mistral", "mistral-small"},
		{"unknown", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultModel(tt.provider))
		})
	}
}

func TestCatalogIsImmutable(t *testing.T) {
	list := ListProviders()
	list[0].Name = "changed"
	list[0].Models[0].ID = "changed"

	d, ok := FindProvider("openai")
	require.True(t, ok)
	assert.Equal(t, "OpenAI", d.Name)
	assert.Equal(t, "gpt-3.5-turbo", DefaultModel("openai"))

	d.Models[0].ID = "changed-again"
	assert.Equal(t, "gpt-3.5-turbo", DefaultModel("openai"))
}
