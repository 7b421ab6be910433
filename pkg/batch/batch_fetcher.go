package batch

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/Sternrassler/eox-report/pkg/auth"
	"github.com/Sternrassler/eox-report/pkg/eox"
	"github.com/Sternrassler/eox-report/pkg/logging"
	"github.com/rs/zerolog"
)

// MaxBatchSize is the API limit on serials per request.
const MaxBatchSize = 20

// maxPages guards against a runaway LastIndex in a malformed response.
const maxPages = 100

var serialPattern = regexp.MustCompile(`^[A-Za-z0-9]{1,40}$`)

// Config holds batch fetcher configuration
type Config struct {
	// BatchSize is the number of serials per request (1..MaxBatchSize)
	BatchSize int
}

// DefaultConfig returns the configuration matching the EoX API limit
func DefaultConfig() Config {
	return Config{
		BatchSize: MaxBatchSize,
	}
}

// Lookuper is the interface the EoX client must implement for single-page lookups
type Lookuper interface {
	Lookup(ctx context.Context, token auth.Token, serials []string, page int) (*eox.Response, error)
}

// Progress is called after each batch completes. err is nil on success.
type Progress func(batch, batches int, serials []string, err error)

// BatchFetcher sends serial lookups batch by batch
type BatchFetcher struct {
	lookuper Lookuper
	config   Config
	progress Progress
	logger   zerolog.Logger
}

// NewBatchFetcher creates a new batch fetcher
func NewBatchFetcher(lookuper Lookuper, config Config) *BatchFetcher {
	if config.BatchSize <= 0 || config.BatchSize > MaxBatchSize {
		config.BatchSize = MaxBatchSize
	}

	return &BatchFetcher{
		lookuper: lookuper,
		config:   config,
		logger:   logging.NewLogger("batch-fetcher"),
	}
}

// OnProgress registers a callback invoked after every batch.
func (bf *BatchFetcher) OnProgress(fn Progress) {
	bf.progress = fn
}

// ValidSerial reports whether s looks like a serial number the API accepts:
// 1 to 40 ASCII letters or digits.
func ValidSerial(s string) bool {
	return serialPattern.MatchString(s)
}

// Distinct returns serials without duplicates, in first-seen order.
func Distinct(serials []string) []string {
	seen := make(map[string]bool, len(serials))
	out := make([]string, 0, len(serials))
	for _, s := range serials {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// Chunk splits serials into consecutive groups of at most size elements.
// The last group may be shorter. size < 1 is treated as 1.
func Chunk(serials []string, size int) [][]string {
	if size < 1 {
		size = 1
	}
	chunks := make([][]string, 0, (len(serials)+size-1)/size)
	for start := 0; start < len(serials); start += size {
		end := start + size
		if end > len(serials) {
			end = len(serials)
		}
		chunks = append(chunks, serials[start:end:end])
	}
	return chunks
}

// Fetch looks up every distinct serial and returns one Result for each.
// Failed batches do not stop the run; see Results.Errors.
func (bf *BatchFetcher) Fetch(ctx context.Context, token auth.Token, serials []string) *Results {
	start := time.Now()
	results := newResults()

	var valid []string
	for _, s := range Distinct(serials) {
		if !ValidSerial(s) {
			bf.logger.Warn().Str("serial", s).Msg("Skipping malformed serial number")
			results.set(Result{Serial: s, Status: StatusInvalid})
			continue
		}
		valid = append(valid, s)
		// placeholder keeps first-seen order; overwritten once the batch completes
		results.set(Result{Serial: s, Status: StatusNotFound})
	}

	chunks := Chunk(valid, bf.config.BatchSize)
	results.Batches = len(chunks)

	bf.logger.Info().
		Int("serials", len(valid)).
		Int("batches", len(chunks)).
		Int("batch_size", bf.config.BatchSize).
		Msg("Divided serial list into batches")

	for i, chunk := range chunks {
		batchNum := i + 1

		var (
			found map[string]eox.MilestoneRecord
			err   error
		)
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		} else {
			found, err = bf.fetchBatch(ctx, token, chunk)
		}

		if err != nil {
			ferr := &BatchFetchError{
				Batch:   batchNum,
				Batches: len(chunks),
				Serials: chunk,
				Err:     err,
			}
			results.Errors = append(results.Errors, ferr)
			BatchesTotal.WithLabelValues("failed").Inc()

			bf.logger.Warn().
				Err(err).
				Int("batch", batchNum).
				Int("batches", len(chunks)).
				Strs("serial_numbers", chunk).
				Msg("Batch failed, serials recorded as not found")

			for _, s := range chunk {
				results.set(Result{Serial: s, Status: StatusFailed, Batch: batchNum})
			}
		} else {
			BatchesTotal.WithLabelValues("ok").Inc()

			hits := 0
			for _, s := range chunk {
				if record, ok := found[s]; ok {
					results.set(Result{Serial: s, Status: StatusFound, Record: record, Batch: batchNum})
					hits++
				} else {
					results.set(Result{Serial: s, Status: StatusNotFound, Batch: batchNum})
				}
			}

			bf.logger.Info().
				Int("batch", batchNum).
				Int("batches", len(chunks)).
				Int("serials", len(chunk)).
				Int("found", hits).
				Msg("Processed batch")
		}

		if bf.progress != nil {
			bf.progress(batchNum, len(chunks), chunk, err)
		}
	}

	for _, res := range results.All() {
		SerialsTotal.WithLabelValues(res.Status.String()).Inc()
	}

	bf.logger.Info().
		Int("batches", len(chunks)).
		Int("failed_batches", len(results.Errors)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return results
}

// fetchBatch retrieves all result pages for one batch and returns the
// milestone records keyed by serial exactly as echoed by the service.
func (bf *BatchFetcher) fetchBatch(ctx context.Context, token auth.Token, serials []string) (map[string]eox.MilestoneRecord, error) {
	found := make(map[string]eox.MilestoneRecord)

	first, err := bf.lookuper.Lookup(ctx, token, serials, 1)
	if err != nil {
		return nil, fmt.Errorf("page 1: %w", err)
	}
	PagesTotal.Inc()
	collect(found, first)

	lastPage := first.LastPage()
	if lastPage > maxPages {
		return nil, fmt.Errorf("response claims %d pages, limit is %d", lastPage, maxPages)
	}

	for page := 2; page <= lastPage; page++ {
		resp, err := bf.lookuper.Lookup(ctx, token, serials, page)
		if err != nil {
			return nil, fmt.Errorf("page %d of %d: %w", page, lastPage, err)
		}
		PagesTotal.Inc()
		collect(found, resp)

		bf.logger.Debug().
			Int("page", page).
			Int("last_page", lastPage).
			Msg("Fetched additional result page")
	}

	return found, nil
}

// collect expands records into per-serial entries; the same record may
// cover several serials.
func collect(found map[string]eox.MilestoneRecord, resp *eox.Response) {
	for _, record := range resp.Records {
		if record.NotFound() {
			continue
		}
		milestones := record.Milestones()
		for _, s := range record.Serials() {
			found[s] = milestones
		}
	}
}
