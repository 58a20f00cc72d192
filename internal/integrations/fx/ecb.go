package fx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/beevik/etree"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/cash-forecast/internal/models"
)

// ECBClient reads the European Central Bank daily reference rates
type ECBClient struct {
	url    string
	client *http.Client
	log    *logrus.Logger
}

// NewECBClient creates a client for the eurofxref daily feed at url
func NewECBClient(url string, client *http.Client, log *logrus.Logger) *ECBClient {
	return &ECBClient{url: url, client: client, log: log}
}

// Name identifies the source
func (c *ECBClient) Name() string { return "ecb" }

// Fetch returns the USD and JPY reference rates of the latest published day
func (c *ECBClient) Fetch(ctx context.Context) (models.FXRates, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return models.FXRates{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return models.FXRates{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.FXRates{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.FXRates{}, fmt.Errorf("failed to read response: %w", err)
	}

	quotes, err := parseECB(body)
	if err != nil {
		return models.FXRates{}, err
	}
	return fromQuotes(quotes["USD"], quotes["JPY"], c.Name())
}

// parseECB extracts currency -> units per EUR from the eurofxref envelope
func parseECB(body []byte) (map[string]float64, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}

	cubes := doc.FindElements("//Cube[@currency]")
	if len(cubes) == 0 {
		return nil, fmt.Errorf("no rate data found in XML")
	}

	quotes := make(map[string]float64, len(cubes))
	for _, cube := range cubes {
		rate, err := strconv.ParseFloat(cube.SelectAttrValue("rate", ""), 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s rate: %w", cube.SelectAttrValue("currency", "?"), err)
		}
		quotes[cube.SelectAttrValue("currency", "")] = rate
	}
	return quotes, nil
}
