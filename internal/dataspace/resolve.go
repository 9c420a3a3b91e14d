package dataspace

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// safeSuffix is appended to product names for an exact catalog Name match;
// an equality filter is much faster on the catalog than startswith().
const safeSuffix = ".SAFE"

// productList is the OData collection envelope returned by the catalog.
type productList struct {
	Value []productRef `json:"value"`
}

type productRef struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
}

// ResolveLocator returns the backend locator for an asset. Resolution order:
// the locator cached on the asset, the persistent LocatorStore (if any), then
// one authenticated catalog lookup. Whatever is found is cached on the asset
// so repeated downloads of the same descriptor never resolve again.
func (c *Client) ResolveLocator(ctx context.Context, a *Asset) (string, error) {
	if loc := a.Locator(); loc != "" {
		return loc, nil
	}

	if c.locators != nil {
		loc, ok, err := c.locators.Locator(ctx, a.ID)
		if err != nil {
			c.logger.Warn("locator store lookup failed",
				slog.String("asset_id", a.ID),
				slog.String("error", err.Error()),
			)
		} else if ok {
			a.CacheLocator(loc)
			return a.Locator(), nil
		}
	}

	name := a.DisplayName()
	if !strings.HasSuffix(name, safeSuffix) {
		name += safeSuffix
	}

	query := url.Values{}
	query.Set("$filter", fmt.Sprintf("Name eq '%s'", escapeODataString(name)))

	resp, err := c.Do(ctx, http.MethodGet, c.catalogURL+"/Products?"+query.Encode())
	if err != nil {
		return "", fmt.Errorf("dataspace: resolving locator for %s: %w", a.ID, err)
	}
	defer resp.Body.Close()

	var list productList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return "", fmt.Errorf("dataspace: decoding catalog response for %s: %w", a.ID, err)
	}

	if len(list.Value) == 0 || list.Value[0].ID == "" {
		return "", fmt.Errorf("%w: %s (%s)", ErrNoLocator, a.ID, name)
	}

	a.CacheLocator(list.Value[0].ID)
	loc := a.Locator()

	c.logger.Debug("resolved locator",
		slog.String("asset_id", a.ID),
		slog.String("locator", loc),
	)

	if c.locators != nil {
		if err := c.locators.SaveLocator(ctx, a.ID, loc); err != nil {
			c.logger.Warn("failed to persist locator",
				slog.String("asset_id", a.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	return loc, nil
}

// ProductInfo fetches the raw catalog record for a locator.
func (c *Client) ProductInfo(ctx context.Context, locator string) (map[string]any, error) {
	resp, err := c.Do(ctx, http.MethodGet, fmt.Sprintf("%s/Products(%s)", c.catalogURL, url.PathEscape(locator)))
	if err != nil {
		return nil, fmt.Errorf("dataspace: fetching product info for %s: %w", locator, err)
	}
	defer resp.Body.Close()

	var info map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("dataspace: decoding product info for %s: %w", locator, err)
	}

	return info, nil
}

// escapeODataString doubles single quotes per OData string literal rules.
func escapeODataString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
