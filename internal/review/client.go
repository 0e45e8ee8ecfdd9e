package review

import (
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

type ClientConfig struct {
	APIType    string // "azure" or "openai"
	BaseURL    string
	APIVersion string
	APIKey     string
	Deployment string // Azure deployment name; ignored for openai
}

// NewClient builds the completion client. Azure requests are routed to the configured
// deployment whatever model name the request carries.
func NewClient(cfg ClientConfig) *openai.Client {
	if strings.EqualFold(cfg.APIType, "azure") {
		c := openai.DefaultAzureConfig(cfg.APIKey, cfg.BaseURL)
		if cfg.APIVersion != "" {
			c.APIVersion = cfg.APIVersion
		}
		deployment := cfg.Deployment
		c.AzureModelMapperFunc = func(model string) string {
			if deployment != "" {
				return deployment
			}
			return model
		}
		return openai.NewClientWithConfig(c)
	}

	c := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		c.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return openai.NewClientWithConfig(c)
}
