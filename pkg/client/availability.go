package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// AvailabilityClient talks to the calendar service that owns date-range
// conflict bookkeeping. The ledger never implements range logic itself.
type AvailabilityClient struct {
	httpClient *HttpClient
}

func NewAvailabilityClient(baseURL string) *AvailabilityClient {
	return &AvailabilityClient{
		httpClient: NewHttpClient(baseURL),
	}
}

func (c *AvailabilityClient) IsAvailable(ctx context.Context, listingID string, start, end time.Time) (bool, error) {
	q := url.Values{}
	q.Set("listing_id", listingID)
	q.Set("start_time", start.Format(time.RFC3339))
	q.Set("end_time", end.Format(time.RFC3339))

	resp, err := c.httpClient.GET(ctx, "/api/v1/availability?"+q.Encode())
	if err != nil {
		return false, err
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("availability check failed: %s", GetErrorMessage(resp))
	}

	var result struct {
		Data struct {
			Available bool `json:"available"`
		} `json:"data"`
	}
	if err := resp.DecodeJSON(&result); err != nil {
		return false, fmt.Errorf("failed to decode availability response: %w", err)
	}
	return result.Data.Available, nil
}

func (c *AvailabilityClient) Reserve(ctx context.Context, listingID, bookingID string, start, end time.Time) error {
	resp, err := c.httpClient.POST(ctx, "/api/v1/availability/reserve", map[string]string{
		"listing_id": listingID,
		"booking_id": bookingID,
		"start_time": start.Format(time.RFC3339),
		"end_time":   end.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("range reservation failed: %s", GetErrorMessage(resp))
	}
	return nil
}

func (c *AvailabilityClient) Release(ctx context.Context, listingID, bookingID string) error {
	resp, err := c.httpClient.POST(ctx, "/api/v1/availability/release", map[string]string{
		"listing_id": listingID,
		"booking_id": bookingID,
	})
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("range release failed: %s", GetErrorMessage(resp))
	}
	return nil
}
