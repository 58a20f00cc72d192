package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/Dan9191/cash-forecast/internal/models"
)

// ExchangeRateClient reads EUR-based quotes from exchangerate-api.com
type ExchangeRateClient struct {
	url    string
	client *http.Client
	log    *logrus.Logger
}

// NewExchangeRateClient creates a client for the /latest/EUR endpoint at url
func NewExchangeRateClient(url string, client *http.Client, log *logrus.Logger) *ExchangeRateClient {
	return &ExchangeRateClient{url: url, client: client, log: log}
}

// Name identifies the source
func (c *ExchangeRateClient) Name() string { return "exchangerate-api" }

// Fetch returns the latest USD and JPY rates
func (c *ExchangeRateClient) Fetch(ctx context.Context) (models.FXRates, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return models.FXRates{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return models.FXRates{}, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.FXRates{}, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var result struct {
		Base  string             `json:"base"`
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return models.FXRates{}, fmt.Errorf("failed to parse response: %w", err)
	}
	if result.Base != "" && result.Base != string(models.EUR) {
		return models.FXRates{}, fmt.Errorf("unexpected base currency %s", result.Base)
	}

	c.log.Debugf("exchangerate-api quotes: USD %v, JPY %v", result.Rates["USD"], result.Rates["JPY"])
	return fromQuotes(result.Rates["USD"], result.Rates["JPY"], c.Name())
}
