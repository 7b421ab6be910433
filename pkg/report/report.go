// Package report runs the end-to-end EoX report: read the inventory, look
// every serial number up, append the milestone dates and write the result.
package report

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/Sternrassler/eox-report/pkg/auth"
	"github.com/Sternrassler/eox-report/pkg/batch"
	"github.com/Sternrassler/eox-report/pkg/config"
	"github.com/Sternrassler/eox-report/pkg/eox"
	"github.com/Sternrassler/eox-report/pkg/logging"
	"github.com/Sternrassler/eox-report/pkg/metrics"
	"github.com/Sternrassler/eox-report/pkg/table"
	"github.com/google/uuid"
)

// Summary describes a completed run.
type Summary struct {
	RunID      string
	InputPath  string
	OutputPath string

	// Rows is the number of data rows written.
	Rows int
	// Serials is the number of distinct serial numbers in the input.
	Serials int

	Found    int
	NotFound int
	Failed   int
	Invalid  int

	Batches       int
	FailedBatches int
	// BatchErrors holds the cause of every failed batch.
	BatchErrors []*batch.BatchFetchError

	Duration time.Duration
}

// Run executes one report. Console output goes to out.
//
// Fatal failures are returned as *StageError. Failed batches are not fatal:
// their serials get empty milestone columns and are counted in Summary.Failed.
func Run(ctx context.Context, cfg *config.Config, out io.Writer) (*Summary, error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := logging.ForRun("report", runID)
	ui := newConsole(out)

	ui.banner("EoX Report by Serial")

	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Str("stage", string(StageConfig)).Msg("Invalid configuration")
		return nil, stageErr(StageConfig, err)
	}

	ui.step(1, "Read Serials from CSV File")
	tbl, err := table.Read(cfg.CSVFile)
	if err != nil {
		logger.Error().Err(err).Str("stage", string(StageRead)).Msg("Failed to read input")
		return nil, stageErr(StageRead, err)
	}
	serials, err := tbl.Column(cfg.SerialColumn)
	if err != nil {
		logger.Error().Err(err).Str("stage", string(StageRead)).Msg("Serial number column not found")
		return nil, stageErr(StageRead, err)
	}
	ui.ok("Read %d rows from %s", len(tbl.Rows), cfg.CSVFile)

	ui.step(2, "GET EoX Access Token")
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	authenticator := auth.New(auth.Credential{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
	}, cfg.TokenURL, httpClient)

	token, err := authenticator.Authenticate(ctx)
	if err != nil {
		logger.Error().Err(err).Str("stage", string(StageAuth)).Msg("Authentication failed")
		return nil, stageErr(StageAuth, err)
	}
	ui.ok("Obtained access token for EoX API")

	ui.step(3, "Process Serials")
	clientCfg := eox.DefaultConfig(cfg.APIURL)
	clientCfg.Timeout = cfg.HTTPTimeout
	client, err := eox.New(clientCfg)
	if err != nil {
		return nil, stageErr(StageFetch, err)
	}

	fetcher := batch.NewBatchFetcher(client, batch.Config{BatchSize: cfg.BatchSize})
	fetcher.OnProgress(ui.progress)

	distinct := batch.Distinct(serials)
	valid := 0
	for _, s := range distinct {
		if batch.ValidSerial(s) {
			valid++
		}
	}
	ui.batches(valid, (valid+cfg.BatchSize-1)/cfg.BatchSize)

	results := fetcher.Fetch(ctx, token, serials)
	if err := ctx.Err(); err != nil {
		// cancelled runs must not write a report that looks complete
		return nil, stageErr(StageFetch, err)
	}
	for _, ferr := range results.Errors {
		logger.Warn().
			Err(ferr.Err).
			Str("stage", string(StageFetch)).
			Int("batch", ferr.Batch).
			Strs("serial_numbers", ferr.Serials).
			Msg("Batch failed")
	}

	stats, err := table.Merge(tbl, cfg.SerialColumn, results)
	if err != nil {
		logger.Error().Err(err).Str("stage", string(StageMerge)).Msg("Merge failed")
		return nil, stageErr(StageMerge, err)
	}

	outputPath := table.OutputPath(cfg.CSVFile)
	if err := tbl.Write(outputPath); err != nil {
		logger.Error().Err(err).Str("stage", string(StageWrite)).Msg("Failed to write output")
		return nil, stageErr(StageWrite, err)
	}
	ui.ok("Successfully wrote EoX data to %s", outputPath)

	summary := &Summary{
		RunID:         runID,
		InputPath:     cfg.CSVFile,
		OutputPath:    outputPath,
		Rows:          stats.Rows,
		Serials:       results.Len(),
		Found:         results.Count(batch.StatusFound),
		NotFound:      results.Count(batch.StatusNotFound),
		Failed:        results.Count(batch.StatusFailed),
		Invalid:       results.Count(batch.StatusInvalid),
		Batches:       results.Batches,
		FailedBatches: len(results.Errors),
		BatchErrors:   results.Errors,
		Duration:      time.Since(start),
	}

	if summary.FailedBatches > 0 {
		ui.warn("%d of %d batches failed; their serials have empty milestone columns", summary.FailedBatches, summary.Batches)
	}
	ui.summary(summary)

	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile, nil); err != nil {
			logger.Warn().Err(err).Msg("Failed to write metrics textfile")
		}
	}

	logger.Info().
		Int("rows", summary.Rows).
		Int("serials", summary.Serials).
		Int("found", summary.Found).
		Int("not_found", summary.NotFound).
		Int("failed", summary.Failed).
		Int("invalid", summary.Invalid).
		Int("failed_batches", summary.FailedBatches).
		Dur("duration", summary.Duration).
		Str("output", outputPath).
		Msg("Report complete")

	return summary, nil
}
