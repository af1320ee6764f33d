// Package flex fetches and parses IBKR Flex Web Service statements.
//
// The Flex workflow is two-step: SendRequest registers the query and returns
// a reference code, then GetStatement is polled with that code until the
// report is generated.
package flex

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Cloud956/wheel-tracker/internal/domain"
)

// Statement is one parsed Flex report.
type Statement struct {
	AccountID string
	Trades    []domain.Trade
	Positions []domain.Position
}

// Client talks to the Flex Web Service.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	pollInterval time.Duration
	maxPolls     int
	log          zerolog.Logger
}

// NewClient creates a Flex client
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		pollInterval: 6 * time.Second,
		maxPolls:     10,
		log:          log.With().Str("client", "flex").Logger(),
	}
}

// FetchStatement runs the full SendRequest/GetStatement workflow and parses
// the resulting report.
func (c *Client) FetchStatement(ctx context.Context, token, queryID string) (*Statement, error) {
	refCode, err := c.sendRequest(ctx, token, queryID)
	if err != nil {
		return nil, fmt.Errorf("failed to request statement generation: %w", err)
	}

	c.log.Debug().Str("reference_code", refCode).Msg("Statement generation requested")

	body, err := c.pollStatement(ctx, token, refCode)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve statement: %w", err)
	}

	stmt, err := ParseStatement(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse statement: %w", err)
	}

	c.log.Info().
		Str("account", stmt.AccountID).
		Int("trades", len(stmt.Trades)).
		Int("positions", len(stmt.Positions)).
		Msg("Flex statement fetched")
	return stmt, nil
}

func (c *Client) sendRequest(ctx context.Context, token, queryID string) (string, error) {
	endpoint := fmt.Sprintf("%s/SendRequest?t=%s&q=%s&v=3",
		c.baseURL, url.QueryEscape(token), url.QueryEscape(queryID))

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return "", err
	}

	resp, err := parseSendResponse(body)
	if err != nil {
		return "", err
	}
	if resp.Status != "Success" {
		return "", fmt.Errorf("flex request rejected: %s (%s)", resp.ErrorMessage, resp.ErrorCode)
	}
	if resp.ReferenceCode == "" {
		return "", fmt.Errorf("flex response carried no reference code")
	}
	return resp.ReferenceCode, nil
}

// pollStatement retries GetStatement until the report is ready. IBKR answers
// with a FlexStatementResponse error document while generation is pending.
func (c *Client) pollStatement(ctx context.Context, token, refCode string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/GetStatement?t=%s&q=%s&v=3",
		c.baseURL, url.QueryEscape(token), url.QueryEscape(refCode))

	var lastErr error
	for attempt := 0; attempt < c.maxPolls; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.pollInterval):
			}
		}

		body, err := c.get(ctx, endpoint)
		if err != nil {
			lastErr = err
			continue
		}

		if pending, msg := isPending(body); pending {
			c.log.Debug().Int("attempt", attempt+1).Str("status", msg).Msg("Statement not ready yet")
			lastErr = fmt.Errorf("statement not ready: %s", msg)
			continue
		}
		return body, nil
	}
	return nil, fmt.Errorf("statement not ready after %d attempts: %w", c.maxPolls, lastErr)
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}
