package merge

import (
	"slices"

	"github.com/roach88/scriptdelta/internal/ir"
)

// recordVersion appends a version of element's report, trimming the oldest
// beyond maxVersions. Callers must hold m.mu.
func (m *Merger) recordVersion(element string, report *ir.Report, affectedBy []string) {
	h := append(m.history[element], ir.VersionedResult{
		Version:    m.ids.Generate(),
		Timestamp:  m.clock.Now(),
		Result:     report.Clone(),
		Valid:      true,
		AffectedBy: slices.Clone(affectedBy),
	})
	if len(h) > m.maxVersions {
		h = slices.Clone(h[len(h)-m.maxVersions:])
	}
	m.history[element] = h
}

// VersionHistory returns element's versions, oldest first.
func (m *Merger) VersionHistory(element string) []ir.VersionedResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.history[element])
}

// LatestVersion returns element's most recent version.
func (m *Merger) LatestVersion(element string) (ir.VersionedResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := m.history[element]
	if len(h) == 0 {
		return ir.VersionedResult{}, false
	}
	return h[len(h)-1], true
}

// InvalidateVersion marks one version of element invalid. It reports whether
// the version was found.
func (m *Merger) InvalidateVersion(element, version string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := m.history[element]
	for i := range h {
		if h[i].Version == version {
			h[i].Valid = false
			return true
		}
	}
	return false
}

// Rollback restores the latest valid version before element's current one,
// discarding every newer version. It reports false, leaving history intact,
// when no such version exists.
func (m *Merger) Rollback(element string) (ir.VersionedResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := m.history[element]
	for i := len(h) - 2; i >= 0; i-- {
		if h[i].Valid {
			m.history[element] = slices.Clone(h[:i+1])
			return h[i], true
		}
	}
	return ir.VersionedResult{}, false
}

// Elements returns every element with recorded history, sorted.
func (m *Merger) Elements() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.history))
	for id := range m.history {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Conflicts returns a copy of the conflict log, oldest first.
func (m *Merger) Conflicts() []Conflict {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.conflicts)
}

// ClearConflicts empties the conflict log.
func (m *Merger) ClearConflicts() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conflicts = nil
}
