// Package inbox provides a broker client over exports dropped on disk
package inbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bobmcallan/snaptrail/internal/common"
	"github.com/bobmcallan/snaptrail/internal/interfaces"
	"github.com/bobmcallan/snaptrail/internal/models"
)

const (
	HoldingsFile = "holdings.json"
	FundsFile    = "funds.json"
)

// ErrExportNotFound is returned when no export exists for an account.
var ErrExportNotFound = errors.New("broker export not found")

// Client reads broker exports from <dir>/<account>/holdings.json and
// <dir>/<account>/funds.json. It never modifies the inbox.
type Client struct {
	dir    string
	logger *common.Logger
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates an inbox client rooted at dir.
func NewClient(dir string, opts ...ClientOption) *Client {
	c := &Client{
		dir:    dir,
		logger: common.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchHoldings returns the holdings export for account.
func (c *Client) FetchHoldings(ctx context.Context, account string) (models.RawFetchResult, error) {
	return c.read(ctx, account, HoldingsFile)
}

// FetchFunds returns the funds export for account.
func (c *Client) FetchFunds(ctx context.Context, account string) (models.RawFetchResult, error) {
	return c.read(ctx, account, FundsFile)
}

func (c *Client) read(ctx context.Context, account, name string) (models.RawFetchResult, error) {
	if err := ctx.Err(); err != nil {
		return models.RawFetchResult{}, err
	}
	if account == "" || strings.ContainsAny(account, `/\`) || account == "." || account == ".." {
		return models.RawFetchResult{}, fmt.Errorf("invalid account name %q", account)
	}

	path := filepath.Join(c.dir, account, name)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.RawFetchResult{}, fmt.Errorf("%w: %s", ErrExportNotFound, path)
		}
		return models.RawFetchResult{}, fmt.Errorf("failed to stat export: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return models.RawFetchResult{}, fmt.Errorf("failed to read export: %w", err)
	}

	c.logger.Debug().
		Str("account", account).
		Str("path", path).
		Int("bytes", len(data)).
		Msg("Broker export read")

	return models.RawFetchResult{
		Payload:   data,
		FetchedAt: info.ModTime(),
		Source:    "inbox:" + path,
	}, nil
}

var _ interfaces.BrokerClient = (*Client)(nil)
