package interfaces

import (
	"context"

	"github.com/bobmcallan/snaptrail/internal/models"
)

// BrokerClient fetches raw holdings and funds payloads for an account.
// Implementations never write snapshot state.
type BrokerClient interface {
	FetchHoldings(ctx context.Context, account string) (models.RawFetchResult, error)
	FetchFunds(ctx context.Context, account string) (models.RawFetchResult, error)
}
