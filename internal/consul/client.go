// Package consul registers the social binaries with HashiCorp Consul and
// lets operators discover the running instances.
package consul

import (
	consulapi "github.com/hashicorp/consul/api"

	"socialgraph/internal/config"
)

// Client wraps the Consul API client
type Client struct {
	api *consulapi.Client
}

// NewClient creates a Consul client from the CONSUL_* settings, with ACL
// token authentication when a token is set.
func NewClient(cfg config.Consul) (*Client, error) {
	apiConfig := consulapi.DefaultConfig()
	apiConfig.Address = cfg.Addr

	if cfg.Token != "" {
		apiConfig.Token = cfg.Token
	}

	client, err := consulapi.NewClient(apiConfig)
	if err != nil {
		return nil, err
	}

	return &Client{api: client}, nil
}
