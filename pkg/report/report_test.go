package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/eox-report/internal/testutil"
	"github.com/Sternrassler/eox-report/pkg/auth"
	"github.com/Sternrassler/eox-report/pkg/batch"
	"github.com/Sternrassler/eox-report/pkg/config"
	"github.com/Sternrassler/eox-report/pkg/table"
)

const (
	testClientID     = "client-id"
	testClientSecret = "client-secret"
)

func newTestConfig(t *testing.T, mock *testutil.MockEOX, csv string) *config.Config {
	t.Helper()

	path := filepath.Join(t.TempDir(), "input.csv")
	if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	return &config.Config{
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
		CSVFile:      path,
		SerialColumn: "Serial Number",
		TokenURL:     mock.TokenURL(),
		APIURL:       mock.EOXURL(),
		BatchSize:    batch.MaxBatchSize,
		HTTPTimeout:  5 * time.Second,
	}
}

func readOutput(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	return string(data)
}

func TestRun_Example(t *testing.T) {
	mock := testutil.NewMockEOX(testClientID, testClientSecret)
	defer mock.Close()
	mock.AddRecord(testutil.Dates{
		EndOfSale:                   "2019-10-30",
		EndOfSWMaintenance:          "2020-10-30",
		EndOfRoutineFailureAnalysis: "2020-10-30",
		EndOfSecurityVulSupport:     "2022-10-30",
		LastDateOfSupport:           "2024-10-31",
	}, "FOC1234X1YZ")

	cfg := newTestConfig(t, mock, "Serial Number,Hostname\nFOC1234X1YZ,sw1\nUNKNOWN999,sw2\n")
	var out bytes.Buffer

	summary, err := Run(context.Background(), cfg, &out)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := "Serial Number,Hostname,End Of Sale Date,End Of SW Maintenance Releases,End Of Routine Failure Analysis Date,End Of Security Vulnerability Support Date,Last Date Of Support\n" +
		"FOC1234X1YZ,sw1,10/30/2019,10/30/2020,10/30/2020,10/30/2022,10/31/2024\n" +
		"UNKNOWN999,sw2,,,,,\n"

	if summary.OutputPath != table.OutputPath(cfg.CSVFile) {
		t.Errorf("OutputPath = %q", summary.OutputPath)
	}
	if got := readOutput(t, summary.OutputPath); got != want {
		t.Errorf("output =\n%s\nwant\n%s", got, want)
	}

	if summary.Rows != 2 || summary.Serials != 2 || summary.Found != 1 || summary.NotFound != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if summary.Batches != 1 || summary.FailedBatches != 0 {
		t.Errorf("batches = %d, failed = %d", summary.Batches, summary.FailedBatches)
	}
	if summary.RunID == "" {
		t.Error("RunID should be set")
	}

	if mock.TokenRequests() != 1 {
		t.Errorf("token requests = %d, want 1", mock.TokenRequests())
	}
	for _, l := range mock.Lookups() {
		if l.Authorization != "Bearer "+mock.AccessToken() {
			t.Errorf("lookup Authorization = %q", l.Authorization)
		}
	}

	console := out.String()
	for _, s := range []string{"EoX Report by Serial", "batch 1 of 1", "Summary", summary.OutputPath} {
		if !strings.Contains(console, s) {
			t.Errorf("console output missing %q:\n%s", s, console)
		}
	}
}

func TestRun_BatchingAndPartialFailure(t *testing.T) {
	mock := testutil.NewMockEOX(testClientID, testClientSecret)
	defer mock.Close()

	var csv strings.Builder
	csv.WriteString("Serial Number\n")
	for i := 0; i < 45; i++ {
		serial := fmt.Sprintf("SN%04d", i)
		mock.AddRecord(testutil.Dates{LastDateOfSupport: "2030-01-31"}, serial)
		csv.WriteString(serial + "\n")
	}
	// the second batch covers SN0020..SN0039
	mock.FailOn("SN0025", http.StatusInternalServerError)

	cfg := newTestConfig(t, mock, csv.String())

	summary, err := Run(context.Background(), cfg, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("Run() error = %v, partial failures must not be fatal", err)
	}

	batches := mock.Batches()
	if len(batches) != 3 {
		t.Fatalf("sent %d batches, want ceil(45/20) = 3", len(batches))
	}
	for i, b := range batches {
		if len(b) > 20 {
			t.Errorf("batch %d has %d serials", i+1, len(b))
		}
	}

	if summary.Batches != 3 || summary.FailedBatches != 1 {
		t.Errorf("batches = %d, failed = %d", summary.Batches, summary.FailedBatches)
	}
	if summary.Found != 25 || summary.Failed != 20 {
		t.Errorf("found = %d, failed = %d, want 25 and 20", summary.Found, summary.Failed)
	}
	if len(summary.BatchErrors) != 1 || summary.BatchErrors[0].Batch != 2 {
		t.Errorf("BatchErrors = %v", summary.BatchErrors)
	}

	lines := strings.Split(strings.TrimSuffix(readOutput(t, summary.OutputPath), "\n"), "\n")
	if len(lines) != 46 {
		t.Fatalf("output has %d lines, want header + 45", len(lines))
	}
	if lines[1] != "SN0000,,,,,01/31/2030" {
		t.Errorf("row from batch 1 = %q", lines[1])
	}
	if lines[26] != "SN0025,,,,," {
		t.Errorf("row from failed batch = %q, want placeholders", lines[26])
	}
	if lines[45] != "SN0044,,,,,01/31/2030" {
		t.Errorf("row from batch 3 = %q", lines[45])
	}
}

func TestRun_DuplicateAndInvalidSerials(t *testing.T) {
	mock := testutil.NewMockEOX(testClientID, testClientSecret)
	defer mock.Close()
	mock.AddRecord(testutil.Dates{EndOfSale: "2019-10-30"}, "FOC1234X1YZ", "FOC1234X2YZ")

	cfg := newTestConfig(t, mock,
		"Serial Number,Site\nFOC1234X1YZ,a\nFOC1234X2YZ,b\nFOC1234X1YZ,c\nnot-a-serial,d\n,e\n")

	summary, err := Run(context.Background(), cfg, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	batches := mock.Batches()
	if len(batches) != 1 || len(batches[0]) != 2 {
		t.Fatalf("batches = %v, want one batch of the two valid distinct serials", batches)
	}
	if summary.Rows != 5 {
		t.Errorf("Rows = %d, want 5", summary.Rows)
	}
	if summary.Found != 2 || summary.Invalid != 2 {
		t.Errorf("found = %d, invalid = %d", summary.Found, summary.Invalid)
	}

	got := readOutput(t, summary.OutputPath)
	if !strings.Contains(got, "FOC1234X1YZ,c,10/30/2019,,,,\n") {
		t.Errorf("duplicate serial row not populated:\n%s", got)
	}
	if !strings.Contains(got, "not-a-serial,d,,,,,\n") {
		t.Errorf("invalid serial row should keep placeholders:\n%s", got)
	}
}

func TestRun_RaggedInputKeepsEveryRow(t *testing.T) {
	mock := testutil.NewMockEOX(testClientID, testClientSecret)
	defer mock.Close()
	mock.AddRecord(testutil.Dates{EndOfSale: "2019-10-30"}, "FOC1234X1YZ")

	cfg := newTestConfig(t, mock, "Serial Number,Hostname,Notes,\nFOC1234X1YZ,sw1\nUNKNOWN999,sw2,rack 4,x\n")

	summary, err := Run(context.Background(), cfg, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := "Serial Number,Hostname,Notes,Unnamed: 3,End Of Sale Date,End Of SW Maintenance Releases,End Of Routine Failure Analysis Date,End Of Security Vulnerability Support Date,Last Date Of Support\n" +
		"FOC1234X1YZ,sw1,,,10/30/2019,,,,\n" +
		"UNKNOWN999,sw2,rack 4,x,,,,,\n"
	if got := readOutput(t, summary.OutputPath); got != want {
		t.Errorf("output =\n%s\nwant\n%s", got, want)
	}
}

func TestRun_Idempotent(t *testing.T) {
	mock := testutil.NewMockEOX(testClientID, testClientSecret)
	defer mock.Close()
	mock.AddRecord(testutil.Dates{EndOfSale: "2019-10-30"}, "FOC1234X1YZ")

	cfg := newTestConfig(t, mock, "Serial Number\nFOC1234X1YZ\nUNKNOWN999\n")

	first, err := Run(context.Background(), cfg, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	firstOut := readOutput(t, first.OutputPath)

	second, err := Run(context.Background(), cfg, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	if readOutput(t, second.OutputPath) != firstOut {
		t.Error("second run produced different output")
	}
	if first.RunID == second.RunID {
		t.Error("each run should get its own RunID")
	}
}

func TestRun_FatalStages(t *testing.T) {
	tests := []struct {
		name       string
		csv        string
		modify     func(cfg *config.Config)
		wantStage  Stage
		wantTokens int
		check      func(t *testing.T, err error)
	}{
		{
			name:       "missing credentials",
			csv:        "Serial Number\nFOC1234X1YZ\n",
			modify:     func(cfg *config.Config) { cfg.ClientID = ""; cfg.ClientSecret = " " },
			wantStage:  StageConfig,
			wantTokens: 0,
			check: func(t *testing.T, err error) {
				if !config.IsConfigError(err) {
					t.Errorf("error = %v, want *config.ConfigError", err)
				}
			},
		},
		{
			name:       "missing serial column",
			csv:        "Hostname\nsw1\n",
			wantStage:  StageRead,
			wantTokens: 0,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, table.ErrMissingColumn) {
					t.Errorf("error = %v, want ErrMissingColumn", err)
				}
			},
		},
		{
			name:       "missing input file",
			csv:        "Serial Number\nFOC1234X1YZ\n",
			modify:     func(cfg *config.Config) { cfg.CSVFile += ".missing" },
			wantStage:  StageRead,
			wantTokens: 0,
			check: func(t *testing.T, err error) {
				var ioErr *table.IOError
				if !errors.As(err, &ioErr) {
					t.Errorf("error = %v, want *table.IOError", err)
				}
			},
		},
		{
			name:       "rejected credentials",
			csv:        "Serial Number\nFOC1234X1YZ\n",
			modify:     func(cfg *config.Config) { cfg.ClientSecret = "wrong" },
			wantStage:  StageAuth,
			wantTokens: 1,
			check: func(t *testing.T, err error) {
				var aerr *auth.AuthError
				if !errors.As(err, &aerr) || aerr.StatusCode != http.StatusUnauthorized {
					t.Errorf("error = %v, want *auth.AuthError with status 401", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockEOX(testClientID, testClientSecret)
			defer mock.Close()

			cfg := newTestConfig(t, mock, tt.csv)
			if tt.modify != nil {
				tt.modify(cfg)
			}

			summary, err := Run(context.Background(), cfg, &bytes.Buffer{})
			if err == nil {
				t.Fatal("Run() expected error")
			}
			if summary != nil {
				t.Error("Run() should not return a summary on fatal error")
			}

			var serr *StageError
			if !errors.As(err, &serr) {
				t.Fatalf("error = %v, want *StageError", err)
			}
			if serr.Stage != tt.wantStage {
				t.Errorf("Stage = %q, want %q", serr.Stage, tt.wantStage)
			}
			if !strings.HasPrefix(err.Error(), string(tt.wantStage)+" stage:") {
				t.Errorf("Error() = %q, want stage prefix", err.Error())
			}
			tt.check(t, err)

			if got := mock.TokenRequests(); got != tt.wantTokens {
				t.Errorf("token requests = %d, want %d", got, tt.wantTokens)
			}
			if len(mock.Lookups()) != 0 {
				t.Error("no lookups expected after a fatal error")
			}
			if _, statErr := os.Stat(table.OutputPath(cfg.CSVFile)); !os.IsNotExist(statErr) {
				t.Error("no output file expected after a fatal error")
			}
		})
	}
}

func TestRun_WriteFailure(t *testing.T) {
	mock := testutil.NewMockEOX(testClientID, testClientSecret)
	defer mock.Close()

	cfg := newTestConfig(t, mock, "Serial Number\nFOC1234X1YZ\n")
	// a directory at the output path makes the final rename fail
	if err := os.Mkdir(table.OutputPath(cfg.CSVFile), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(table.OutputPath(cfg.CSVFile), "keep"), nil, 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err := Run(context.Background(), cfg, &bytes.Buffer{})

	var serr *StageError
	if !errors.As(err, &serr) || serr.Stage != StageWrite {
		t.Fatalf("error = %v, want write stage error", err)
	}
	var ioErr *table.IOError
	if !errors.As(err, &ioErr) {
		t.Errorf("error = %v, want *table.IOError", err)
	}
}

func TestRun_Cancelled(t *testing.T) {
	mock := testutil.NewMockEOX(testClientID, testClientSecret)
	defer mock.Close()

	cfg := newTestConfig(t, mock, "Serial Number\nFOC1234X1YZ\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, cfg, &bytes.Buffer{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if _, statErr := os.Stat(table.OutputPath(cfg.CSVFile)); !os.IsNotExist(statErr) {
		t.Error("cancelled run must not write output")
	}
}

func TestRun_MetricsTextfile(t *testing.T) {
	mock := testutil.NewMockEOX(testClientID, testClientSecret)
	defer mock.Close()
	mock.AddRecord(testutil.Dates{EndOfSale: "2019-10-30"}, "FOC1234X1YZ")

	cfg := newTestConfig(t, mock, "Serial Number\nFOC1234X1YZ\n")
	cfg.MetricsFile = filepath.Join(t.TempDir(), "eox.prom")

	if _, err := Run(context.Background(), cfg, &bytes.Buffer{}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	data, err := os.ReadFile(cfg.MetricsFile)
	if err != nil {
		t.Fatalf("read metrics textfile: %v", err)
	}
	for _, name := range []string{"eox_requests_total", "eox_batches_total", "eox_serials_total"} {
		if !strings.Contains(string(data), name) {
			t.Errorf("metrics textfile missing %s", name)
		}
	}
}

func TestStageError(t *testing.T) {
	cause := errors.New("boom")
	err := stageErr(StageWrite, cause)

	if err.Error() != "write stage: boom" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("StageError should unwrap to the cause")
	}
}
