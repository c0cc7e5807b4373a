package client

import (
	"context"
	"fmt"
	"net/http"
)

// PaymentsClient talks to the payment rail. Pulls and pushes are
// all-or-nothing on the rail side; the ledger treats any non-2xx response
// as a payment failure with no partial effect.
type PaymentsClient struct {
	httpClient *HttpClient
}

func NewPaymentsClient(baseURL string) *PaymentsClient {
	return &PaymentsClient{
		httpClient: NewHttpClient(baseURL),
	}
}

type transferRequest struct {
	Account      string `json:"account"`
	AmountMicros int64  `json:"amount_micros"`
	Reference    string `json:"reference"`
}

// Pull debits the account. The reference ties the transfer to a ledger
// operation so the rail can deduplicate retries.
func (c *PaymentsClient) Pull(ctx context.Context, account string, amountMicros int64, reference string) error {
	return c.transfer(ctx, "/api/v1/payments/pull", account, amountMicros, reference)
}

// Push credits the account.
func (c *PaymentsClient) Push(ctx context.Context, account string, amountMicros int64, reference string) error {
	return c.transfer(ctx, "/api/v1/payments/push", account, amountMicros, reference)
}

func (c *PaymentsClient) transfer(ctx context.Context, path, account string, amountMicros int64, reference string) error {
	resp, err := c.httpClient.POST(ctx, path, transferRequest{
		Account:      account,
		AmountMicros: amountMicros,
		Reference:    reference,
	})
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("transfer rejected: %s", GetErrorMessage(resp))
	}
	return nil
}
