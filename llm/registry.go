package llm

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// ValidProviders returns the closed set of supported model providers, in the
// order they are reported in configuration errors.
func ValidProviders() []string {
	return []string{ProviderOpenAI, ProviderGemini}
}

// IsValidProvider checks a provider name against the closed provider set.
func IsValidProvider(name string) bool {
	for _, p := range ValidProviders() {
		if p == name {
			return true
		}
	}
	return false
}
