package bootstrap

import (
	"context"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/sirupsen/logrus"

	"github.com/Melih7342/bookmanager/config"
	"github.com/Melih7342/bookmanager/internal/application"
	"github.com/Melih7342/bookmanager/internal/infrastructure/search"
	"github.com/Melih7342/bookmanager/pkg/helpers"
)

// Backends holds the optional integrations. Disabled ones stay nil.
type Backends struct {
	Publisher *helpers.RabbitPublisher
	ES        *elasticsearch.Client
	Index     *search.BookIndex
}

// Events returns the publisher as a port, or nil when RabbitMQ is off.
func (b *Backends) Events() application.ActivityPublisher {
	if b.Publisher == nil {
		return nil
	}
	return b.Publisher
}

// Indexer returns the search index as a port, or nil when Elasticsearch is off.
func (b *Backends) Indexer() application.BookIndexer {
	if b.Index == nil {
		return nil
	}
	return b.Index
}

func (b *Backends) Close() {
	b.Publisher.Close()
}

// OpenBackends connects RabbitMQ and Elasticsearch when enabled. A backend that cannot be
// reached is logged and left out; the API keeps working without it.
func OpenBackends(ctx context.Context, cfg *config.Config, logger *logrus.Logger) *Backends {
	b := &Backends{}

	if cfg.RabbitMQEnabled {
		pub, err := helpers.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQActivityQueue)
		if err != nil {
			helpers.LogError(logger, "rabbitmq unavailable, activity events disabled", err, nil)
		} else {
			b.Publisher = pub
			helpers.LogInfo(logger, "activity events enabled", logrus.Fields{"queue": cfg.RabbitMQActivityQueue})
		}
	}

	if cfg.ElasticsearchEnabled {
		if err := b.openSearch(ctx, cfg, logger); err != nil {
			helpers.LogError(logger, "elasticsearch unavailable, search scans the store", err, nil)
			b.ES, b.Index = nil, nil
		}
	}
	return b
}

func (b *Backends) openSearch(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	es, err := helpers.NewESClient(cfg.ESAddrs(), cfg.ElasticsearchUser, cfg.ElasticsearchPass)
	if err != nil {
		return fmt.Errorf("client: %w", err)
	}
	idx := search.NewBookIndex(es, cfg.ESBooksIndex, logger)
	if err := idx.EnsureIndex(ctx); err != nil {
		return fmt.Errorf("ensure index: %w", err)
	}
	b.ES, b.Index = es, idx
	helpers.LogInfo(logger, "search index ready", logrus.Fields{"index": cfg.ESBooksIndex})
	return nil
}
