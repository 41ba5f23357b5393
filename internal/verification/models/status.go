package models

import (
	"strings"

	dErrors "idvgate/pkg/domain-errors"
)

// FlowStatus is the phase of the verification flow the caller is requesting.
type FlowStatus string

const (
	FlowInitiated   FlowStatus = "INITIATED"
	FlowCompleted   FlowStatus = "COMPLETED"
	FlowReinitiated FlowStatus = "REINITIATED"
)

// ParseFlowStatus maps the caller-supplied status property onto a FlowStatus.
// Matching is case-insensitive. A missing status and an unrecognized one are
// distinct client errors so callers can tell "you forgot the property" from
// "you sent garbage".
func ParseFlowStatus(raw string) (FlowStatus, error) {
	if strings.TrimSpace(raw) == "" {
		return "", dErrors.New(dErrors.CodeValidation, "flow status not found in verification request")
	}
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(FlowInitiated):
		return FlowInitiated, nil
	case string(FlowCompleted):
		return FlowCompleted, nil
	case string(FlowReinitiated):
		return FlowReinitiated, nil
	default:
		return "", dErrors.Newf(dErrors.CodeValidation, "invalid flow status %q", raw)
	}
}

// RunStatus is the provider-side workflow run status.
type RunStatus string

const (
	RunStatusProcessing    RunStatus = "processing"
	RunStatusAwaitingInput RunStatus = "awaiting_input"
	RunStatusApproved      RunStatus = "approved"
	RunStatusDeclined      RunStatus = "declined"
	RunStatusReview        RunStatus = "review"
	RunStatusAbandoned     RunStatus = "abandoned"
	RunStatusError         RunStatus = "error"

	// RunStatusUnknown is never stored; it marks an absent or unparseable value.
	RunStatusUnknown RunStatus = ""
)

var runStatuses = map[RunStatus]struct{}{
	RunStatusProcessing:    {},
	RunStatusAwaitingInput: {},
	RunStatusApproved:      {},
	RunStatusDeclined:      {},
	RunStatusReview:        {},
	RunStatusAbandoned:     {},
	RunStatusError:         {},
}

// ParseRunStatus maps a provider status string onto a RunStatus.
// Matching is case-insensitive.
func ParseRunStatus(raw string) (RunStatus, error) {
	s := RunStatus(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := runStatuses[s]; !ok {
		return RunStatusUnknown, dErrors.Newf(dErrors.CodeValidation, "unrecognized run status %q", raw)
	}
	return s, nil
}

// Ending reports whether the run has reached a decision. Ending statuses are
// masked as processing on the synchronous completion path; the webhook path
// records them verbatim.
func (s RunStatus) Ending() bool {
	switch s {
	case RunStatusApproved, RunStatusDeclined, RunStatusReview:
		return true
	}
	return false
}

// ComparisonResult is the per-attribute outcome inside the provider's
// data-comparison breakdown.
type ComparisonResult string

const (
	ComparisonClear    ComparisonResult = "clear"
	ComparisonConsider ComparisonResult = "consider"
	ComparisonUnknown  ComparisonResult = "unknown"
)

// ParseComparisonResult folds a raw comparison value onto the known set.
// Anything unrecognized collapses to ComparisonUnknown; only "clear" ever
// verifies a claim, so unknown values are safe.
func ParseComparisonResult(raw string) ComparisonResult {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(ComparisonClear):
		return ComparisonClear
	case string(ComparisonConsider):
		return ComparisonConsider
	default:
		return ComparisonUnknown
	}
}
