// internal/common/database/elasticsearch.go
package database

import (
	"context"
	"fmt"
	"time"

	"eduforge/internal/common/config"

	"github.com/elastic/go-elasticsearch/v8"
)

// esPingTimeout bounds the startup check so a dead cluster fails fast and
// the connection retry loop gets its turn.
const esPingTimeout = 5 * time.Second

// ElasticsearchClient wraps the official v8 client the retrieval node uses
// for curriculum snippet search.
type ElasticsearchClient struct {
	Client *elasticsearch.Client
}

func NewElasticsearch(cfg config.ElasticsearchConfig) (*ElasticsearchClient, error) {
	esCfg := elasticsearch.Config{
		Addresses: cfg.Addresses,
	}
	if cfg.Username != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}
	return &ElasticsearchClient{Client: client}, nil
}

// Ping checks the cluster answers at all, under its own short deadline.
// Startup uses it inside the connection retry loop.
func (c *ElasticsearchClient) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), esPingTimeout)
	defer cancel()

	res, err := c.Client.Ping(c.Client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping: %s", res.Status())
	}
	return nil
}

// Info asks the cluster for its metadata under the caller's deadline. The
// readiness endpoint treats a clean response as proof the search dependency
// is usable.
func (c *ElasticsearchClient) Info(ctx context.Context) error {
	res, err := c.Client.Info(c.Client.Info.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch info: %s", res.Status())
	}
	return nil
}
