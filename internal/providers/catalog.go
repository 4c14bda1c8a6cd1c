package providers

// Model describes one selectable model of a provider
type Model struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Descriptor is a catalog entry. The first model is the provider's default.
type Descriptor struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Models            []Model `json:"models"`
	APIKeyPlaceholder string  `json:"apiKeyPlaceholder"`
	DocsURL           string  `json:"docsUrl"`
}

// catalog is fixed at build time; callers only ever receive copies.
var catalog = []Descriptor{
	{
		ID:   "openai",
		Name: "OpenAI",
		Models: []Model{
			{ID: "gpt-3.5-turbo", Name: "GPT-3.5 Turbo", Description: "Good balance of intelligence and speed"},
			{ID: "gpt-4", Name: "GPT-4", Description: "Most capable model, but slower and more expensive"},
			{ID: "gpt-4o", Name: "GPT-4o", Description: "Latest model with improved capabilities"},
		},
		APIKeyPlaceholder: "sk-...",
		DocsURL:           "https://platform.openai.com/api-keys",
	},
	{
		ID:   "cohere",
		Name: "Cohere",
		Models: []Model{
			{ID: "command", Name: "Command", Description: "General purpose model for various tasks"},
			{ID: "command-light", Name: "Command Light", Description: "Faster and more cost-effective version"},
			{ID: "command-r", Name: "Command R", Description: "Advanced reasoning capabilities"},
			{ID: "command-r-plus", Name: "Command R+", Description: "Most powerful model with enhanced reasoning"},
		},
		APIKeyPlaceholder: "Co-...",
		DocsURL:           "https://dashboard.cohere.com/api-keys",
	},
	{
		ID:   "anthropic",
		Name: "Anthropic",
		Models: []Model{
			{ID: "claude-3-opus", Name: "Claude 3 Opus", Description: "Most powerful model for complex tasks"},
			{ID: "claude-3-sonnet", Name: "Claude 3 Sonnet", Description: "Balanced performance and cost"},
			{ID: "claude-3-haiku", Name: "Claude 3 Haiku", Description: "Fast and cost-effective"},
		},
		APIKeyPlaceholder: "sk-ant-...",
		DocsURL:           "https://console.anthropic.com/settings/keys",
	},
	{
		ID:   "mistral",
		Name: "Mistral AI",
		Models: []Model{
			{ID: "mistral-small", Name: "Mistral Small", Description: "Efficient model for general tasks"},
			{ID: "mistral-medium", Name: "Mistral Medium", Description: "Balanced performance model"},
			{ID: "mistral-large", Name: "Mistral Large", Description: "Most capable Mistral model"},
		},
		APIKeyPlaceholder: "your-mistral-api-key",
		DocsURL:           "https://console.mistral.ai/api-keys/",
	},
}

// ListProviders returns every catalog entry in declaration order
func ListProviders() []Descriptor {
	out := make([]Descriptor, len(catalog))
	for i, d := range catalog {
		out[i] = d.clone()
	}
	return out
}

// FindProvider looks up a catalog entry by id
func FindProvider(id string) (Descriptor, bool) {
	for _, d := range catalog {
		if d.ID == id {
			return d.clone(), true
		}
	}
	return Descriptor{}, false
}

// DefaultModel returns the first model id of the provider, or "" for unknown ids
func DefaultModel(id string) string {
	d, ok := FindProvider(id)
	if !ok || len(d.Models) == 0 {
		return ""
	}
	return d.Models[0].ID
}

func (d Descriptor) clone() Descriptor {
	d.Models = append([]Model(nil), d.Models...)
	return d
}
