/*

HTTP client for the price-oracle service. The service pairs a
time-weighted on-market price with an externally sourced reference price;
the client rejects rates whose reference leg is stale or deviates too far
from the TWAP leg, surfacing both cases as ErrOracleUnavailable.

*/

package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/clvm/internal/logger"
	"github.com/elys-network/clvm/internal/types"
)

var (
	ErrRequestFailed   = errors.New("oracle request failed")
	ErrInvalidResponse = errors.New("oracle response is invalid")
)

var oracleLogger = logger.GetForComponent("oracle_client")

const requestTimeout = 10 * time.Second

// priceResponse is the JSON payload of the oracle service.
type priceResponse struct {
	MarketID           string `json:"market_id"`
	TwapPrice          string `json:"twap_price"`
	ReferencePrice     string `json:"reference_price"`
	ReferenceUpdatedAt int64  `json:"reference_updated_at"` // unix seconds
}

// Client fetches exchange rates over HTTP with staleness and deviation
// checks applied client-side.
type Client struct {
	baseURL         string
	maxReferenceAge time.Duration
	maxDeviationBps uint32
	httpClient      *http.Client
	now             func() time.Time
}

// NewClient validates the endpoint configuration and returns a Client.
func NewClient(baseURL string, maxReferenceAge time.Duration, maxDeviationBps uint32) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("oracle base URL cannot be empty")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("oracle base URL is invalid: %w", err)
	}
	if maxReferenceAge <= 0 {
		return nil, errors.New("max reference age must be positive")
	}
	if maxDeviationBps == 0 || maxDeviationBps > types.BpsDenom {
		return nil, fmt.Errorf("max deviation must be in (0, %d], got %d", types.BpsDenom, maxDeviationBps)
	}

	return &Client{
		baseURL:         baseURL,
		maxReferenceAge: maxReferenceAge,
		maxDeviationBps: maxDeviationBps,
		httpClient:      &http.Client{Timeout: requestTimeout},
		now:             time.Now,
	}, nil
}

// ExchangeRate implements PriceOracle.
func (c *Client) ExchangeRate(ctx context.Context, marketID string) (sdkmath.LegacyDec, error) {
	if marketID == "" {
		return sdkmath.LegacyDec{}, errors.Join(types.ErrOracleUnavailable, errors.New("market ID is empty"))
	}

	endpoint := fmt.Sprintf("%s/price?market=%s", c.baseURL, url.QueryEscape(marketID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return sdkmath.LegacyDec{}, errors.Join(types.ErrOracleUnavailable, ErrRequestFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		oracleLogger.Error().Err(err).Str("endpoint", endpoint).Msg("Oracle request failed")
		return sdkmath.LegacyDec{}, errors.Join(types.ErrOracleUnavailable, ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return sdkmath.LegacyDec{}, errors.Join(types.ErrOracleUnavailable, ErrRequestFailed,
			fmt.Errorf("status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return sdkmath.LegacyDec{}, errors.Join(types.ErrOracleUnavailable, ErrInvalidResponse, err)
	}

	var payload priceResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return sdkmath.LegacyDec{}, errors.Join(types.ErrOracleUnavailable, ErrInvalidResponse, err)
	}

	return c.validateAndSelect(payload)
}

// validateAndSelect applies the staleness and deviation checks and returns
// the TWAP leg as the usable rate.
func (c *Client) validateAndSelect(payload priceResponse) (sdkmath.LegacyDec, error) {
	twap, err := sdkmath.LegacyNewDecFromStr(payload.TwapPrice)
	if err != nil {
		return sdkmath.LegacyDec{}, errors.Join(types.ErrOracleUnavailable, ErrInvalidResponse,
			fmt.Errorf("twap price %q: %w", payload.TwapPrice, err))
	}
	reference, err := sdkmath.LegacyNewDecFromStr(payload.ReferencePrice)
	if err != nil {
		return sdkmath.LegacyDec{}, errors.Join(types.ErrOracleUnavailable, ErrInvalidResponse,
			fmt.Errorf("reference price %q: %w", payload.ReferencePrice, err))
	}
	if !twap.IsPositive() || !reference.IsPositive() {
		return sdkmath.LegacyDec{}, errors.Join(types.ErrOracleUnavailable, ErrInvalidResponse,
			errors.New("prices must be positive"))
	}

	age := c.now().Sub(time.Unix(payload.ReferenceUpdatedAt, 0))
	if age > c.maxReferenceAge {
		return sdkmath.LegacyDec{}, errors.Join(types.ErrOracleUnavailable,
			fmt.Errorf("reference price is stale: age %s exceeds %s", age, c.maxReferenceAge))
	}

	// |twap - reference| / reference, against the configured bps ceiling.
	deviation := twap.Sub(reference).Abs().Quo(reference)
	ceiling := sdkmath.LegacyNewDec(int64(c.maxDeviationBps)).Quo(sdkmath.LegacyNewDec(int64(types.BpsDenom)))
	if deviation.GT(ceiling) {
		oracleLogger.Warn().
			Str("twap", twap.String()).
			Str("reference", reference.String()).
			Str("deviation", deviation.String()).
			Msg("Oracle legs disagree beyond tolerance")
		return sdkmath.LegacyDec{}, errors.Join(types.ErrOracleUnavailable,
			fmt.Errorf("price deviation %s exceeds tolerance", deviation))
	}

	return twap, nil
}
