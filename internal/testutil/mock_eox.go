// Package testutil provides an in-process fake of the identity and EoX endpoints.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Endpoint paths served by MockEOX.
const (
	TokenPath = "/oauth2/default/v1/token"
	EOXPath   = "/supporttools/eox/rest/5/EOXBySerialNumber"
)

// Dates are the raw YYYY-MM-DD milestone values returned for a serial.
type Dates struct {
	EndOfSale                   string
	EndOfSWMaintenance          string
	EndOfRoutineFailureAnalysis string
	EndOfSecurityVulSupport     string
	LastDateOfSupport           string
}

// MockEOX is a configurable fake of the identity provider and the EoX API.
type MockEOX struct {
	server *httptest.Server

	mu           sync.Mutex
	clientID     string
	clientSecret string
	accessToken  string

	// groups of serials that share one EoX record, keyed by the first serial
	records map[string][]string
	dates   map[string]Dates

	failOn        map[string]int
	rateLimitLeft int
	pageSize      int

	tokenRequests int
	lookups       []Lookup
}

// Lookup records one EoX request received by the mock.
type Lookup struct {
	Page          int
	Serials       []string
	Authorization string
}

// NewMockEOX starts a mock accepting the given credentials.
func NewMockEOX(clientID, clientSecret string) *MockEOX {
	m := &MockEOX{
		clientID:     clientID,
		clientSecret: clientSecret,
		accessToken:  "test-access-token",
		records:      make(map[string][]string),
		dates:        make(map[string]Dates),
		failOn:       make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(TokenPath, m.handleToken)
	mux.HandleFunc(EOXPath+"/", m.handleEOX)
	m.server = httptest.NewServer(mux)

	return m
}

// URL returns the mock server root URL.
func (m *MockEOX) URL() string {
	return m.server.URL
}

// TokenURL returns the URL of the token endpoint.
func (m *MockEOX) TokenURL() string {
	return m.server.URL + TokenPath
}

// EOXURL returns the EOXBySerialNumber base URL.
func (m *MockEOX) EOXURL() string {
	return m.server.URL + EOXPath
}

// AccessToken returns the token handed out for valid credentials.
func (m *MockEOX) AccessToken() string {
	return m.accessToken
}

// Close shuts down the mock server.
func (m *MockEOX) Close() {
	m.server.Close()
}

// AddRecord registers one EoX record covering all given serials.
func (m *MockEOX) AddRecord(dates Dates, serials ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(serials) == 0 {
		return
	}
	m.records[serials[0]] = serials
	for _, s := range serials {
		m.dates[s] = dates
	}
}

// FailOn makes every lookup containing serial answer with status.
func (m *MockEOX) FailOn(serial string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOn[serial] = status
}

// RateLimit makes the next n lookups answer 429 with Retry-After: 0.
func (m *MockEOX) RateLimit(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rateLimitLeft = n
}

// SetPageSize splits lookup results into pages of n records (0 disables paging).
func (m *MockEOX) SetPageSize(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pageSize = n
}

// TokenRequests returns the number of token requests received.
func (m *MockEOX) TokenRequests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokenRequests
}

// Lookups returns a copy of all EoX requests received.
func (m *MockEOX) Lookups() []Lookup {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Lookup, len(m.lookups))
	copy(out, m.lookups)
	return out
}

// Batches returns the serial lists of all page-1 requests, i.e. one entry per batch.
func (m *MockEOX) Batches() [][]string {
	var batches [][]string
	for _, l := range m.Lookups() {
		if l.Page == 1 {
			batches = append(batches, l.Serials)
		}
	}
	return batches
}

func (m *MockEOX) handleToken(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.tokenRequests++
	m.mu.Unlock()

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if r.PostForm.Get("grant_type") != "client_credentials" {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"unsupported_grant_type","error_description":"grant type not supported"}`))
		return
	}
	if r.PostForm.Get("client_id") != m.clientID || r.PostForm.Get("client_secret") != m.clientSecret {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_client","error_description":"The client secret supplied for a confidential client is invalid."}`))
		return
	}

	fmt.Fprintf(w, `{"token_type":"Bearer","expires_in":3599,"access_token":%q,"scope":"customScope"}`, m.accessToken)
}

type mockDate struct {
	Value      string `json:"value"`
	DateFormat string `json:"dateFormat"`
}

type mockError struct {
	ErrorID          string `json:"ErrorID"`
	ErrorDescription string `json:"ErrorDescription"`
	ErrorDataType    string `json:"ErrorDataType"`
	ErrorDataValue   string `json:"ErrorDataValue"`
}

type mockRecord struct {
	EOLProductID                    string     `json:"EOLProductID"`
	EndOfSaleDate                   mockDate   `json:"EndOfSaleDate"`
	EndOfSWMaintenanceReleases      mockDate   `json:"EndOfSWMaintenanceReleases"`
	EndOfRoutineFailureAnalysisDate mockDate   `json:"EndOfRoutineFailureAnalysisDate"`
	EndOfSecurityVulSupportDate     mockDate   `json:"EndOfSecurityVulSupportDate"`
	LastDateOfSupport               mockDate   `json:"LastDateOfSupport"`
	EOXInputType                    string     `json:"EOXInputType"`
	EOXInputValue                   string     `json:"EOXInputValue"`
	EOXError                        *mockError `json:"EOXError,omitempty"`
}

func date(v string) mockDate {
	if v == "" {
		return mockDate{}
	}
	return mockDate{Value: v, DateFormat: "YYYY-MM-DD"}
}

func (m *MockEOX) handleEOX(w http.ResponseWriter, r *http.Request) {
	// path: {EOXPath}/{page}/{serial,serial,...}
	rest := strings.TrimPrefix(r.URL.Path, EOXPath+"/")
	pageStr, serialList, _ := strings.Cut(rest, "/")
	page, err := strconv.Atoi(pageStr)
	if err != nil || page < 1 {
		http.Error(w, `{"error":"invalid page index"}`, http.StatusBadRequest)
		return
	}
	serials := strings.Split(serialList, ",")

	m.mu.Lock()
	m.lookups = append(m.lookups, Lookup{
		Page:          page,
		Serials:       serials,
		Authorization: r.Header.Get("Authorization"),
	})

	if r.Header.Get("Authorization") != "Bearer "+m.accessToken {
		m.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"Not Authorized"}`))
		return
	}

	if m.rateLimitLeft > 0 {
		m.rateLimitLeft--
		m.mu.Unlock()
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"Developer Over Qps"}`))
		return
	}

	for _, s := range serials {
		if status, ok := m.failOn[s]; ok {
			m.mu.Unlock()
			w.WriteHeader(status)
			w.Write([]byte(`{"error":"simulated failure"}`))
			return
		}
	}

	records := m.buildRecords(serials)
	pageSize := m.pageSize
	m.mu.Unlock()

	lastIndex := 1
	pageRecords := records
	if pageSize > 0 && len(records) > 0 {
		lastIndex = (len(records) + pageSize - 1) / pageSize
		start := (page - 1) * pageSize
		end := start + pageSize
		if start > len(records) {
			start = len(records)
		}
		if end > len(records) {
			end = len(records)
		}
		pageRecords = records[start:end]
	}

	body := map[string]any{
		"PaginationResponseRecord": map[string]any{
			"PageIndex":    page,
			"LastIndex":    lastIndex,
			"TotalRecords": len(records),
			"PageRecords":  len(pageRecords),
			"Title":        "EOX Listing",
		},
		"EOXRecord": pageRecords,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}

// buildRecords answers a lookup: one record per known group (listing only the
// requested members) and one error record per unknown serial. Caller holds mu.
func (m *MockEOX) buildRecords(serials []string) []mockRecord {
	requested := make(map[string]bool, len(serials))
	for _, s := range serials {
		requested[s] = true
	}

	var records []mockRecord
	seenGroup := make(map[string]bool)

	for _, s := range serials {
		d, known := m.dates[s]
		if !known {
			records = append(records, mockRecord{
				EOXInputType:  "ShowEOXBySerialNumber",
				EOXInputValue: s,
				EOXError: &mockError{
					ErrorID:          "SSA_ERR_026",
					ErrorDescription: "EOX information does not exist for the following product ID(s): " + s,
					ErrorDataType:    "SERIAL_NUMBER",
					ErrorDataValue:   s,
				},
			})
			continue
		}

		group := m.groupOf(s)
		if seenGroup[group[0]] {
			continue
		}
		seenGroup[group[0]] = true

		var members []string
		for _, g := range group {
			if requested[g] {
				members = append(members, g)
			}
		}
		sort.Strings(members)

		records = append(records, mockRecord{
			EOLProductID:                    "PID-" + group[0],
			EndOfSaleDate:                   date(d.EndOfSale),
			EndOfSWMaintenanceReleases:      date(d.EndOfSWMaintenance),
			EndOfRoutineFailureAnalysisDate: date(d.EndOfRoutineFailureAnalysis),
			EndOfSecurityVulSupportDate:     date(d.EndOfSecurityVulSupport),
			LastDateOfSupport:               date(d.LastDateOfSupport),
			EOXInputType:                    "ShowEOXBySerialNumber",
			EOXInputValue:                   strings.Join(members, ","),
		})
	}

	return records
}

func (m *MockEOX) groupOf(serial string) []string {
	for _, group := range m.records {
		for _, s := range group {
			if s == serial {
				return group
			}
		}
	}
	return []string{serial}
}
