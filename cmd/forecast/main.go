package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Dan9191/cash-forecast/internal/config"
	"github.com/Dan9191/cash-forecast/internal/forecast"
	"github.com/Dan9191/cash-forecast/internal/integrations/fx"
	"github.com/Dan9191/cash-forecast/internal/loader"
	"github.com/Dan9191/cash-forecast/internal/metrics"
	"github.com/Dan9191/cash-forecast/internal/models"
	"github.com/Dan9191/cash-forecast/internal/report"
	"github.com/Dan9191/cash-forecast/internal/service"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetOutput(os.Stderr)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	dataDir := flag.String("data", cfg.DataDir, "directory with the bank and invoice extracts")
	startFlag := flag.String("start", "", "forecast start date YYYY-MM-DD (default today)")
	outDir := flag.String("out", cfg.OutputDir, "report output directory")
	withScenarios := flag.Bool("scenarios", false, "also run the optimistic and pessimistic scenarios")
	offline := flag.Bool("offline", false, "skip live rate sources and use the fallback rates")
	verifyPath := flag.String("verify", "", "check a ledger CSV against its signature and exit")
	flag.Parse()

	if *verifyPath != "" {
		if err := report.Verify(*verifyPath, cfg.ReportSigningKey); err != nil {
			logger.Fatalf("Verification failed: %v", err)
		}
		logger.Infof("Signature OK: %s", *verifyPath)
		return
	}

	start := models.Day(time.Now())
	if *startFlag != "" {
		if start, err = models.ParseDate(*startFlag); err != nil {
			logger.Fatalf("Invalid -start: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var sources []fx.Source
	if !*offline {
		client := &http.Client{Timeout: cfg.RateTimeout}
		sources = []fx.Source{
			fx.NewExchangeRateClient(cfg.ExchangeRateURL, client, logger),
			fx.NewECBClient(cfg.ECBURL, client, logger),
			fx.NewCBRClient(cfg.CBRURL, client, logger),
		}
	}
	m := metrics.NewMetrics()
	rates := fx.NewProvider(logger, m, fx.DefaultRetryConfig(), sources...)
	svc := service.NewService(nil, rates, loader.NewLoader(*dataDir, logger), m, logger, cfg)
	writer := report.NewWriter(*outDir, cfg.ReportSigningKey)

	results := make([]*models.ForecastResult, 0, 3)
	if *withScenarios {
		cmp, err := svc.CompareScenarios(ctx, start)
		if err != nil {
			logger.Fatalf("Scenario run failed: %v", err)
		}
		for _, row := range cmp.Comparison {
			results = append(results, cmp.Result(row.Scenario))
		}
		defer printComparison(os.Stdout, cmp.Comparison)
	} else {
		res, err := svc.Forecast(ctx, start)
		if err != nil {
			logger.Fatalf("Forecast failed: %v", err)
		}
		results = append(results, res)
	}

	for _, res := range results {
		// the base case keeps the top-level report directory
		if res.Scenario == forecast.ScenarioBase {
			res.Scenario = ""
		}
		paths, err := writer.Write(res)
		if err != nil {
			logger.Fatalf("Failed to write reports: %v", err)
		}
		for _, p := range paths {
			logger.Infof("Wrote %s", p)
		}
	}

	fmt.Fprint(os.Stdout, report.Summary(results[0]))
}

func printComparison(w io.Writer, rows []forecast.ScenarioComparison) {
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Scenario\tFinal EUR\tNet vs debt\tWorst day\tSafe\tWarning\tCritical\t")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%s\t%d\t%d\t%d\t\n",
			r.Scenario, r.FinalTotalEUR, r.FinalNetVsDebtEUR, r.WorstDay,
			r.TierCounts[models.RiskSafe], r.TierCounts[models.RiskWarning], r.TierCounts[models.RiskCritical])
	}
	tw.Flush()
}
