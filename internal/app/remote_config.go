package app

import (
	"github.com/smartsupply/agent/internal/remote"
)

// ClientConfig converts RemoteConfig into remote client parameters.
func (c RemoteConfig) ClientConfig() remote.Config {
	return remote.Config{
		BaseURL:    c.BaseURL,
		Timeout:    c.Timeout,
		MaxRetries: c.MaxRetries,
		RetryDelay: c.RetryDelay,
		UserAgent:  "smartsupply-agent",
	}
}
