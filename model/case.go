package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Case status constants. The vocabulary is driven by the surrounding
// application; this core only validates membership.
const (
	CaseStatusPending      = "pending"
	CaseStatusInCollection = "in_collection"
	CaseStatusFiled        = "filed"
	CaseStatusCompleted    = "completed"
	CaseStatusArchived     = "archived"
	CaseStatusRejected     = "rejected"
)

var caseStatuses = map[string]bool{
	CaseStatusPending:      true,
	CaseStatusInCollection: true,
	CaseStatusFiled:        true,
	CaseStatusCompleted:    true,
	CaseStatusArchived:     true,
	CaseStatusRejected:     true,
}

// ValidCaseStatus reports whether s is a known case status.
func ValidCaseStatus(s string) bool {
	return caseStatuses[s]
}

// Case represents a legal case owned by a tenant. CaseNumber is the
// human-readable identifier; once assigned it is never reused or mutated.
// An empty BenefitType means no benefit type has been set.
type Case struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	CaseNumber  string    `json:"case_number"`
	ClientName  string    `json:"client_name"`
	ClientCPF   string    `json:"client_cpf,omitempty"`
	BenefitType string    `json:"benefit_type,omitempty"`
	Status      string    `json:"status"`
	Description string    `json:"description,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	AssignedTo  string    `json:"assigned_to,omitempty"`
	CreatedBy   string    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MaxCaseSequence is the largest sequence number a single year can hold.
const MaxCaseSequence = 9999

// FormatCaseNumber renders a case number as CASE-<year>-<4-digit-seq>.
func FormatCaseNumber(year, seq int) string {
	return fmt.Sprintf("CASE-%d-%04d", year, seq)
}

// ParseCaseNumber extracts the year and sequence from a case number.
// Returns ok=false for anything that doesn't match CASE-<year>-<seq>.
func ParseCaseNumber(num string) (year, seq int, ok bool) {
	rest, found := strings.CutPrefix(num, "CASE-")
	if !found {
		return 0, 0, false
	}
	yearPart, seqPart, found := strings.Cut(rest, "-")
	if !found {
		return 0, 0, false
	}
	year, err := strconv.Atoi(yearPart)
	if err != nil {
		return 0, 0, false
	}
	seq, err = strconv.Atoi(seqPart)
	if err != nil || seq < 0 {
		return 0, 0, false
	}
	return year, seq, true
}
