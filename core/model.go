package core

const DefaultModel = "asi1-mini"

type ModelConfig struct {
	Name        string  `json:"name"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

func DefaultModelConfig(name string) ModelConfig {
	if name == "" {
		name = DefaultModel
	}
	return ModelConfig{
		Name:        name,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

func (m ModelConfig) WithTemperature(t float64) ModelConfig {
	m.Temperature = t
	return m
}

func (m ModelConfig) WithMaxTokens(t int) ModelConfig {
	m.MaxTokens = t
	return m
}
