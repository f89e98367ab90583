package places

import (
	"context"
	"net/url"

	"go.uber.org/zap"

	"github.com/JakeFAU/leadscan/internal/lead"
	"github.com/JakeFAU/leadscan/internal/metrics"
)

const (
	detailsEndpoint = "/details/json"
	detailsFields   = "name,formatted_phone_number,website,url,formatted_address"
)

type detailsResponse struct {
	Status string        `json:"status"`
	Result detailsResult `json:"result"`
}

type detailsResult struct {
	Name                 string `json:"name"`
	FormattedPhoneNumber string `json:"formatted_phone_number"`
	Website              string `json:"website"`
	URL                  string `json:"url"`
	FormattedAddress     string `json:"formatted_address"`
}

// FetchDetails returns the canonical contact fields for placeID. Any failure
// yields an empty PlaceDetails, which callers treat as "no update".
func (c *Client) FetchDetails(ctx context.Context, placeID string) lead.PlaceDetails {
	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("fields", detailsFields)
	params.Set("key", c.cfg.APIKey)

	c.countCall(ctx, lead.CounterDetails)

	var resp detailsResponse
	if err := c.getJSON(ctx, detailsEndpoint, params, &resp); err != nil {
		metrics.ObservePlacesRequest("details", "transport_error")
		c.logger.Error("failed to fetch place details", zap.String("place_id", placeID), zap.Error(err))
		return lead.PlaceDetails{}
	}
	metrics.ObservePlacesRequest("details", resp.Status)
	if resp.Status != "OK" {
		c.logger.Warn("place details returned non-OK status",
			zap.String("place_id", placeID), zap.String("status", resp.Status))
	}

	return lead.PlaceDetails{
		Phone:   resp.Result.FormattedPhoneNumber,
		Website: resp.Result.Website,
		Address: resp.Result.FormattedAddress,
	}
}
