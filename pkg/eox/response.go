package eox

import (
	"strings"
)

// Response is the body of an EOXBySerialNumber call.
type Response struct {
	Pagination Pagination `json:"PaginationResponseRecord"`
	Records    []Record   `json:"EOXRecord"`
}

// Pagination describes which page of the result set a Response holds.
type Pagination struct {
	PageIndex    int    `json:"PageIndex"`
	LastIndex    int    `json:"LastIndex"`
	TotalRecords int    `json:"TotalRecords"`
	PageRecords  int    `json:"PageRecords"`
	Title        string `json:"Title"`
}

// Date is an EoX date field. Value is YYYY-MM-DD or blank.
type Date struct {
	Value      string `json:"value"`
	DateFormat string `json:"dateFormat"`
}

// RecordError is attached to records for inputs the service could not resolve.
type RecordError struct {
	ErrorID          string `json:"ErrorID"`
	ErrorDescription string `json:"ErrorDescription"`
	ErrorDataType    string `json:"ErrorDataType"`
	ErrorDataValue   string `json:"ErrorDataValue"`
}

// Record is one EoX entry. A single record may cover several of the
// requested serials, listed comma-separated in EOXInputValue.
type Record struct {
	EOLProductID                    string       `json:"EOLProductID"`
	ProductIDDescription            string       `json:"ProductIDDescription"`
	EndOfSaleDate                   Date         `json:"EndOfSaleDate"`
	EndOfSWMaintenanceReleases      Date         `json:"EndOfSWMaintenanceReleases"`
	EndOfRoutineFailureAnalysisDate Date         `json:"EndOfRoutineFailureAnalysisDate"`
	EndOfSecurityVulSupportDate     Date         `json:"EndOfSecurityVulSupportDate"`
	LastDateOfSupport               Date         `json:"LastDateOfSupport"`
	EOXInputType                    string       `json:"EOXInputType"`
	EOXInputValue                   string       `json:"EOXInputValue"`
	EOXError                        *RecordError `json:"EOXError,omitempty"`
}

// NotFound reports whether the record belongs to the "not found" section,
// i.e. the service returned an error instead of milestone data.
func (r Record) NotFound() bool {
	return r.EOXError != nil && r.EOXError.ErrorID != ""
}

// Serials returns the serial numbers this record applies to, exactly as the
// service echoed them.
func (r Record) Serials() []string {
	value := r.EOXInputValue
	if value == "" && r.EOXError != nil {
		value = r.EOXError.ErrorDataValue
	}

	var serials []string
	for _, s := range strings.Split(value, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			serials = append(serials, s)
		}
	}
	return serials
}

// Milestones converts the record's dates to a MilestoneRecord.
func (r Record) Milestones() MilestoneRecord {
	return MilestoneRecord{
		EndOfSale:                   FormatDate(r.EndOfSaleDate.Value),
		EndOfSWMaintenance:          FormatDate(r.EndOfSWMaintenanceReleases.Value),
		EndOfRoutineFailureAnalysis: FormatDate(r.EndOfRoutineFailureAnalysisDate.Value),
		EndOfSecurityVulSupport:     FormatDate(r.EndOfSecurityVulSupportDate.Value),
		LastDateOfSupport:           FormatDate(r.LastDateOfSupport.Value),
	}
}

// LastPage returns the index of the final result page, at least 1.
func (r *Response) LastPage() int {
	if r.Pagination.LastIndex < 1 {
		return 1
	}
	return r.Pagination.LastIndex
}
