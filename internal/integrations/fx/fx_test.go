package fx

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dan9191/cash-forecast/internal/models"
)

const ecbXML = `<?xml version="1.0" encoding="UTF-8"?>
<gesmes:Envelope xmlns:gesmes="http://www.gesmes.org/xml/2002-08-01" xmlns="http://www.ecb.int/vocabulary/2002-08-01/eurofxref">
	<gesmes:subject>Reference rates</gesmes:subject>
	<Cube>
		<Cube time="2024-01-02">
			<Cube currency="USD" rate="1.0956"/>
			<Cube currency="JPY" rate="155.52"/>
			<Cube currency="GBP" rate="0.86518"/>
		</Cube>
	</Cube>
</gesmes:Envelope>`

const cbrXML = `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope">
	<soap:Body>
		<GetCursOnDateResponse xmlns="http://web.cbr.ru/">
			<GetCursOnDateResult>
				<diffgr:diffgram xmlns:diffgr="urn:schemas-microsoft-com:xml-diffgram-v1">
					<ValuteData xmlns="">
						<ValuteCursOnDate><Vname>Euro</Vname><Vnom>1</Vnom><Vcurs>100.0000</Vcurs><Vcode>978</Vcode><VchCode>EUR</VchCode></ValuteCursOnDate>
						<ValuteCursOnDate><Vname>US Dollar</Vname><Vnom>1</Vnom><Vcurs>92.0000</Vcurs><Vcode>840</Vcode><VchCode>USD</VchCode></ValuteCursOnDate>
						<ValuteCursOnDate><Vname>Yen</Vname><Vnom>100</Vnom><Vcurs>65.0000</Vcurs><Vcode>392</Vcode><VchCode>JPY</VchCode></ValuteCursOnDate>
					</ValuteData>
				</diffgr:diffgram>
			</GetCursOnDateResult>
		</GetCursOnDateResponse>
	</soap:Body>
</soap:Envelope>`

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func serve(t *testing.T, status int, body string) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestExchangeRateClient_Fetch(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"base":"EUR","rates":{"EUR":1,"USD":1.25,"JPY":160}}`)

	rates, err := NewExchangeRateClient(srv.URL, srv.Client(), testLogger()).Fetch(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, 0.8, rates.USDToEUR, 1e-12)
	assert.InDelta(t, 0.00625, rates.JPYToEUR, 1e-12)
	assert.Equal(t, "exchangerate-api", rates.Source)
}

func TestExchangeRateClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		target error
	}{
		{"server error", http.StatusBadGateway, `{}`, nil},
		{"bad json", http.StatusOK, `{"rates":`, nil},
		{"missing jpy", http.StatusOK, `{"base":"EUR","rates":{"USD":1.1}}`, ErrRateOutOfRange},
		{"implausible quote", http.StatusOK, `{"base":"EUR","rates":{"USD":1.1,"JPY":5000}}`, ErrRateOutOfRange},
		{"wrong base", http.StatusOK, `{"base":"USD","rates":{"EUR":0.9,"JPY":150}}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serve(t, tt.status, tt.body)

			_, err := NewExchangeRateClient(srv.URL, srv.Client(), testLogger()).Fetch(context.Background())
			require.Error(t, err)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
		})
	}
}

func TestECBClient_Fetch(t *testing.T) {
	srv := serve(t, http.StatusOK, ecbXML)

	rates, err := NewECBClient(srv.URL, srv.Client(), testLogger()).Fetch(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, 1/1.0956, rates.USDToEUR, 1e-12)
	assert.InDelta(t, 1/155.52, rates.JPYToEUR, 1e-12)
	assert.Equal(t, "ecb", rates.Source)
}

func TestCBRClient_Fetch(t *testing.T) {
	var gotAction, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAction = r.Header.Get("SOAPAction")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		_, _ = w.Write([]byte(cbrXML))
	}))
	defer srv.Close()

	client := NewCBRClient(srv.URL, srv.Client(), testLogger())
	client.now = func() time.Time { return time.Date(2024, time.January, 9, 8, 0, 0, 0, time.UTC) }

	rates, err := client.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "http://web.cbr.ru/GetCursOnDate", gotAction)
	assert.Contains(t, gotBody, "<On_date>2024-01-09</On_date>")
	assert.InDelta(t, 0.92, rates.USDToEUR, 1e-12)
	assert.InDelta(t, 0.0065, rates.JPYToEUR, 1e-12)
	assert.Equal(t, "cbr", rates.Source)
}

func TestCBRClient_MissingEUR(t *testing.T) {
	body := strings.Replace(cbrXML, "<VchCode>EUR</VchCode>", "<VchCode>CHF</VchCode>", 1)
	srv := serve(t, http.StatusOK, body)

	_, err := NewCBRClient(srv.URL, srv.Client(), testLogger()).Fetch(context.Background())

	assert.ErrorContains(t, err, "EUR quote missing")
}

type stubSource struct {
	name  string
	rates models.FXRates
	err   error
	calls int
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(context.Context) (models.FXRates, error) {
	s.calls++
	if s.err != nil {
		return models.FXRates{}, s.err
	}
	return s.rates, nil
}

type recordingObserver struct {
	served []string
	failed []string
}

func (o *recordingObserver) ObserveRateSource(source string) { o.served = append(o.served, source) }
func (o *recordingObserver) IncrExternalError(service string) { o.failed = append(o.failed, service) }

func TestProvider_FirstSuccessWins(t *testing.T) {
	down := &stubSource{name: "primary", err: errors.New("timeout")}
	up := &stubSource{name: "secondary", rates: models.FXRates{USDToEUR: 0.9, JPYToEUR: 0.006, Source: "secondary"}}
	never := &stubSource{name: "tertiary", rates: models.FXRates{USDToEUR: 1, JPYToEUR: 1, Source: "tertiary"}}
	obs := &recordingObserver{}

	p := NewProvider(testLogger(), obs, RetryConfig{MaxRetries: 1, InitialBackoff: time.Millisecond}, down, up, never)
	rates := p.Rates(context.Background())

	assert.Equal(t, "secondary", rates.Source)
	assert.Equal(t, 2, down.calls)
	assert.Zero(t, never.calls)
	assert.Equal(t, []string{"primary"}, obs.failed)
	assert.Equal(t, []string{"secondary"}, obs.served)
}

func TestProvider_FallbackAndStale(t *testing.T) {
	src := &stubSource{name: "only", rates: models.FXRates{USDToEUR: 0.9, JPYToEUR: 0.006, Source: "only"}}
	p := NewProvider(testLogger(), nil, RetryConfig{}, src)

	assert.Equal(t, "only", p.Rates(context.Background()).Source)

	src.err = errors.New("down")
	stale := p.Rates(context.Background())
	assert.Equal(t, "only (stale)", stale.Source)
	assert.Equal(t, 0.9, stale.USDToEUR)

	empty := NewProvider(testLogger(), nil, RetryConfig{}, &stubSource{name: "dead", err: errors.New("down")})
	assert.Equal(t, models.FallbackRates(), empty.Rates(context.Background()))
}

func TestProvider_BreakerOpens(t *testing.T) {
	src := &stubSource{name: "flaky", err: errors.New("down")}
	p := NewProvider(testLogger(), nil, RetryConfig{}, src)

	for i := 0; i < 5; i++ {
		p.Rates(context.Background())
	}

	assert.Equal(t, 3, src.calls)
}
