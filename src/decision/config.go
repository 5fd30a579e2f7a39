package decision

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	APIKey      string        `envconfig:"DEEPSEEK_API_KEY"`
	BaseURL     string        `envconfig:"DEEPSEEK_BASE_URL" default:"https://api.deepseek.com"`
	Model       string        `envconfig:"DEEPSEEK_MODEL" default:"deepseek-chat"`
	Temperature float64       `envconfig:"DEEPSEEK_TEMPERATURE" default:"0.1"`
	MaxTokens   int           `envconfig:"DEEPSEEK_MAX_TOKENS" default:"1500"`
	Timeout     time.Duration `envconfig:"DEEPSEEK_TIMEOUT" default:"60s"`
	PromptFile  string        `envconfig:"DEEPSEEK_PROMPT_FILE" default:"prompt.md"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
