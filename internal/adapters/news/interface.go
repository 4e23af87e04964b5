package news

import (
	"context"

	"github.com/selivandex/signal-engine/pkg/models"
)

// Provider fetches recent headlines per universe symbol.
type Provider interface {
	// FetchHeadlines returns recent headlines keyed by symbol. Symbols
	// with no coverage are simply absent from the map.
	FetchHeadlines(ctx context.Context) (map[string][]models.Headline, error)
}
