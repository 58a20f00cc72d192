package fx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/cash-forecast/internal/models"
)

// CBRClient handles integration with the Central Bank of Russia daily quotes.
// EUR cross rates are derived through RUB.
type CBRClient struct {
	url    string
	client *http.Client
	log    *logrus.Logger
	now    func() time.Time
}

// NewCBRClient initializes a new CBR client
func NewCBRClient(url string, client *http.Client, log *logrus.Logger) *CBRClient {
	return &CBRClient{url: url, client: client, log: log, now: time.Now}
}

// Name identifies the source
func (c *CBRClient) Name() string { return "cbr" }

// buildSOAPRequest creates a SOAP request for the quotes of one day
func (c *CBRClient) buildSOAPRequest(day time.Time) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
		<soap12:Envelope xmlns:soap12="http://www.w3.org/2003/05/soap-envelope">
			<soap12:Body>
				<GetCursOnDate xmlns="http://web.cbr.ru/">
					<On_date>%s</On_date>
				</GetCursOnDate>
			</soap12:Body>
		</soap12:Envelope>`, day.Format("2006-01-02"))
}

// sendRequest sends SOAP request to CBR
func (c *CBRClient) sendRequest(ctx context.Context, soapRequest string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBufferString(soapRequest))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/soap+xml; charset=utf-8")
	req.Header.Set("SOAPAction", "http://web.cbr.ru/GetCursOnDate")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.log.Debugf("CBR XML response: %d bytes", len(body))
	return body, nil
}

// parseXMLResponse extracts RUB per one unit of each quoted currency
func parseXMLResponse(rawBody []byte) (map[string]float64, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(rawBody); err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}

	rows := doc.FindElements("//diffgram/ValuteData/ValuteCursOnDate")
	if len(rows) == 0 {
		return nil, fmt.Errorf("no quote data found in XML")
	}

	rub := make(map[string]float64, len(rows))
	for _, row := range rows {
		code := row.FindElement("./VchCode")
		curs := row.FindElement("./Vcurs")
		nom := row.FindElement("./Vnom")
		if code == nil || curs == nil || nom == nil {
			continue
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(curs.Text()), 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse rate: %w", err)
		}
		units, err := strconv.ParseFloat(strings.TrimSpace(nom.Text()), 64)
		if err != nil || units <= 0 {
			return nil, fmt.Errorf("failed to parse nominal %q", nom.Text())
		}
		rub[strings.TrimSpace(code.Text())] = value / units
	}
	return rub, nil
}

// Fetch retrieves today's quotes and crosses USD and JPY against EUR
func (c *CBRClient) Fetch(ctx context.Context) (models.FXRates, error) {
	body, err := c.sendRequest(ctx, c.buildSOAPRequest(c.now()))
	if err != nil {
		return models.FXRates{}, err
	}

	rub, err := parseXMLResponse(body)
	if err != nil {
		return models.FXRates{}, err
	}

	eur := rub["EUR"]
	if eur <= 0 {
		return models.FXRates{}, fmt.Errorf("EUR quote missing from CBR response")
	}
	usd, jpy := rub["USD"], rub["JPY"]
	if usd <= 0 || jpy <= 0 {
		return models.FXRates{}, fmt.Errorf("USD or JPY quote missing from CBR response")
	}

	c.log.Infof("Retrieved CBR quotes: EUR %.4f, USD %.4f, JPY %.6f RUB", eur, usd, jpy)
	return fromQuotes(eur/usd, eur/jpy, c.Name())
}
