// Package ledger posts charges to the corporate billing ledger. The ledger
// is an external collaborator: posting is best-effort and must never roll
// back or block the admission state transition that triggered it.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// Charge is one line posted against a corporate credit account.
type Charge struct {
	AccountRef      string  `json:"account_ref"`
	AdmissionNumber string  `json:"admission_number"`
	Amount          float64 `json:"amount"`
	Memo            string  `json:"memo"`
}

// Poster is the outbound posting contract.
type Poster interface {
	PostCharge(ctx context.Context, charge Charge) error
}

// Client posts charges over HTTP.
type Client struct {
	http   *resty.Client
	logger zerolog.Logger
}

func NewClient(baseURL string, logger zerolog.Logger) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(5 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond)

	return &Client{http: c, logger: logger}
}

func (c *Client) PostCharge(ctx context.Context, charge Charge) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(charge).
		Post("/charges")
	if err != nil {
		return fmt.Errorf("post charge: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("post charge: ledger returned %s", resp.Status())
	}

	c.logger.Debug().
		Str("account", charge.AccountRef).
		Str("admission", charge.AdmissionNumber).
		Float64("amount", charge.Amount).
		Msg("ledger charge posted")
	return nil
}

// Nop is the sink used when no ledger endpoint is configured.
type Nop struct{}

func (Nop) PostCharge(context.Context, Charge) error { return nil }
