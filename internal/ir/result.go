package ir

import "time"

// VersionedResult is one version of a report for an element or script.
// Version is opaque; recency is decided by Timestamp.
type VersionedResult struct {
	Version    string    `json:"version"`
	Timestamp  time.Time `json:"timestamp"`
	Result     *Report   `json:"result"`
	Valid      bool      `json:"valid"`
	AffectedBy []string  `json:"affected_by,omitempty"` // change event IDs

	// Fingerprint identifies the analyzer input the result was computed from.
	Fingerprint string `json:"fingerprint,omitempty"`
}

// Findings returns the findings of the wrapped report, or nil.
func (v *VersionedResult) Findings() []Finding {
	if v == nil || v.Result == nil {
		return nil
	}
	return v.Result.Findings
}

// ModifiedFinding pairs the before and after state of a finding whose
// identity is unchanged but whose content differs.
type ModifiedFinding struct {
	Before Finding `json:"before"`
	After  Finding `json:"after"`
}

// DiffSummary counts the differences between two versions.
type DiffSummary struct {
	TotalChanges    int `json:"total_changes"`
	CriticalChanges int `json:"critical_changes"`
	Improvements    int `json:"improvements"`
	Degradations    int `json:"degradations"`
}

// DiffReport compares two report versions.
type DiffReport struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Before    *VersionedResult  `json:"before"`
	After     *VersionedResult  `json:"after"`
	Changes   []ChangeEvent     `json:"changes,omitempty"`
	Added     []Finding         `json:"added"`
	Resolved  []Finding         `json:"resolved"`
	Unchanged []Finding         `json:"unchanged,omitempty"`
	Modified  []ModifiedFinding `json:"modified"`
	Summary   DiffSummary       `json:"summary"`
}
