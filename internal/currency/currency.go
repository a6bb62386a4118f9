// Package currency converts and formats prices for display. The catalog
// prices in USD; rates are fetched relative to USD from an exchange-rate
// endpoint, with a static fallback so the storefront keeps working offline.
package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Base is the currency all rates are relative to.
const Base = "USD"

// Supported lists the display currencies the storefront offers.
var Supported = []string{"USD", "VND"}

// fallbackVNDRate is used when no rates endpoint is configured or reachable.
const fallbackVNDRate = 25000

// Converter holds the current exchange rates.
type Converter struct {
	ratesURL   string
	httpClient *http.Client
	logger     *zap.Logger

	mu    sync.RWMutex
	rates map[string]float64
}

// NewConverter seeds the converter with fallback rates. Call FetchRates to
// replace them with live ones.
func NewConverter(ratesURL string, logger *zap.Logger) *Converter {
	return &Converter{
		ratesURL: ratesURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		logger: logger,
		rates: map[string]float64{
			Base:  1,
			"VND": fallbackVNDRate,
		},
	}
}

type ratesResponse struct {
	Result          string             `json:"result"`
	ConversionRates map[string]float64 `json:"conversion_rates"`
}

// FetchRates pulls live rates from the configured endpoint. On any failure
// the previous (or fallback) rates stay in place and the error is returned
// for logging only; conversion keeps working.
func (c *Converter) FetchRates(ctx context.Context) error {
	if c.ratesURL == "" {
		return fmt.Errorf("no rates endpoint configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ratesURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch rates: unexpected status %d", resp.StatusCode)
	}

	var body ratesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode rates: %w", err)
	}
	if body.Result != "success" || len(body.ConversionRates) == 0 {
		return fmt.Errorf("rates endpoint returned %q", body.Result)
	}

	rates := map[string]float64{Base: 1}
	for _, code := range Supported {
		if rate, ok := body.ConversionRates[code]; ok {
			rates[code] = rate
		}
	}

	c.mu.Lock()
	c.rates = rates
	c.mu.Unlock()
	c.logger.Info("exchange rates updated", zap.Int("currencies", len(rates)))
	return nil
}

// Convert turns a base-currency amount into the target currency.
func (c *Converter) Convert(amount float64, code string) (float64, error) {
	c.mu.RLock()
	rate, ok := c.rates[code]
	c.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("unsupported currency %q", code)
	}
	return amount * rate, nil
}

// Format renders an amount in the display conventions of the currency:
// two decimals for USD, none for VND.
func Format(value float64, code string) string {
	switch code {
	case "VND":
		p := message.NewPrinter(language.Vietnamese)
		return p.Sprintf("%v ₫", number.Decimal(value,
			number.MaxFractionDigits(0)))
	default:
		p := message.NewPrinter(language.AmericanEnglish)
		return p.Sprintf("$%v", number.Decimal(value,
			number.MinFractionDigits(2), number.MaxFractionDigits(2)))
	}
}
