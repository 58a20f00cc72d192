package fx

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/Dan9191/cash-forecast/internal/models"
)

// Observer records which source served the rates and which sources failed
type Observer interface {
	ObserveRateSource(source string)
	IncrExternalError(service string)
}

type noopObserver struct{}

func (noopObserver) ObserveRateSource(string) {}
func (noopObserver) IncrExternalError(string) {}

// Provider tries each live source in order, then the last good rates, then the fallback defaults
type Provider struct {
	sources  []Source
	breakers map[string]*gobreaker.CircuitBreaker
	retry    RetryConfig
	log      *logrus.Logger
	observer Observer

	mu       sync.Mutex
	lastGood *models.FXRates
}

// NewProvider creates a provider over sources, tried in the given order
func NewProvider(log *logrus.Logger, observer Observer, retry RetryConfig, sources ...Source) *Provider {
	if observer == nil {
		observer = noopObserver{}
	}
	breakers := make(map[string]*gobreaker.CircuitBreaker, len(sources))
	for _, s := range sources {
		breakers[s.Name()] = newCircuitBreaker("fx-" + s.Name())
	}
	return &Provider{
		sources:  sources,
		breakers: breakers,
		retry:    retry,
		log:      log,
		observer: observer,
	}
}

// Rates never fails: it reports the source used in the returned rates
func (p *Provider) Rates(ctx context.Context) models.FXRates {
	for _, src := range p.sources {
		rates, err := p.fetch(ctx, src)
		if err != nil {
			p.observer.IncrExternalError(src.Name())
			p.log.WithField("source", src.Name()).Warnf("Rate source failed: %v", err)
			continue
		}

		p.mu.Lock()
		p.lastGood = &rates
		p.mu.Unlock()

		p.observer.ObserveRateSource(rates.Source)
		p.log.WithFields(logrus.Fields{
			"source":     rates.Source,
			"usd_to_eur": rates.USDToEUR,
			"jpy_to_eur": rates.JPYToEUR,
		}).Info("Fetched FX rates")
		return rates
	}

	p.mu.Lock()
	stale := p.lastGood
	p.mu.Unlock()
	if stale != nil {
		rates := *stale
		rates.Source += " (stale)"
		p.observer.ObserveRateSource(rates.Source)
		p.log.Warnf("All rate sources failed, reusing rates from %s", stale.Source)
		return rates
	}

	rates := models.FallbackRates()
	p.observer.ObserveRateSource(rates.Source)
	p.log.Warn("All rate sources failed, using fallback rates")
	return rates
}

func (p *Provider) fetch(ctx context.Context, src Source) (models.FXRates, error) {
	result, err := p.breakers[src.Name()].Execute(func() (any, error) {
		var rates models.FXRates
		err := retryWithBackoff(ctx, p.retry, func() error {
			var fetchErr error
			rates, fetchErr = src.Fetch(ctx)
			return fetchErr
		})
		if err != nil {
			return nil, err
		}
		return rates, nil
	})
	if err != nil {
		return models.FXRates{}, err
	}
	return result.(models.FXRates), nil
}
