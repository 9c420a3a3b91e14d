package dataspace

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
)

// TransferURL returns the binary transfer URL for an asset: the catalog's
// direct download URL when present, otherwise the zipper $value URL for the
// resolved locator.
func (c *Client) TransferURL(ctx context.Context, a *Asset) (string, error) {
	if a.DownloadURL != "" {
		return a.DownloadURL, nil
	}

	loc, err := c.ResolveLocator(ctx, a)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s/Products(%s)/$value", c.downloadURL, url.PathEscape(loc)), nil
}

// OpenDownload issues the binary fetch for an asset and returns the response
// with its body unread. Only the request/response cycle is retried; a body
// that fails mid-stream is the caller's to handle. The caller must close the
// body.
func (c *Client) OpenDownload(ctx context.Context, a *Asset) (*http.Response, error) {
	transferURL, err := c.TransferURL(ctx, a)
	if err != nil {
		return nil, err
	}

	c.logger.Info("opening transfer",
		slog.String("asset_id", a.ID),
		slog.String("name", a.DisplayName()),
	)

	return c.Do(ctx, http.MethodGet, transferURL)
}
