package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/scriptdelta/internal/ir"
	"github.com/roach88/scriptdelta/internal/orchestrator"
)

// DefaultScriptID is used when a scenario does not name its script.
const DefaultScriptID = "script"

// Scenario defines a scripted edit session.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// ScriptID keys the session in the orchestrator and the store.
	// Defaults to DefaultScriptID.
	ScriptID string `yaml:"script_id,omitempty"`

	// Mode is the orchestrator performance mode. Defaults to balanced.
	Mode string `yaml:"mode,omitempty"`

	// Scripts holds inline script versions referenced by Step.Script.
	Scripts map[string]ir.Script `yaml:"scripts,omitempty"`

	// Steps are the successive versions, analyzed in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace and the persisted state.
	Assertions []Assertion `yaml:"assertions"`

	// dir resolves Step.File paths.
	dir string
}

// Step submits one script version.
type Step struct {
	// Script names an entry of Scenario.Scripts.
	Script string `yaml:"script,omitempty"`

	// File is a YAML script path relative to the scenario file.
	File string `yaml:"file,omitempty"`

	// Actor is recorded on the step's change events.
	Actor string `yaml:"actor,omitempty"`

	// Diff requests a diff report for the step.
	Diff bool `yaml:"diff,omitempty"`

	// Expect checks the step's result. Nil checks nothing.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause lists per-step expectations. Unset fields are not checked.
type ExpectClause struct {
	Strategy string `yaml:"strategy,omitempty"`
	CacheHit *bool  `yaml:"cache_hit,omitempty"`
	Level    string `yaml:"level,omitempty"`
	Changes  *int   `yaml:"changes,omitempty"`
	Findings *int   `yaml:"findings,omitempty"`
}

// Assertion validates the trace or the persisted state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Step selects the trace event (1-based; 0 means the last step).
	Step int `yaml:"step,omitempty"`

	// Strategies is the expected strategy sequence (strategy_sequence).
	Strategies []string `yaml:"strategies,omitempty"`

	// Kind, Scene, Line, Severity and Carried match a finding
	// (finding_present, finding_absent).
	Kind     string `yaml:"kind,omitempty"`
	Scene    string `yaml:"scene,omitempty"`
	Line     *int   `yaml:"line,omitempty"`
	Severity string `yaml:"severity,omitempty"`
	Carried  *bool  `yaml:"carried,omitempty"`

	// Elements must all be impacted (impact_contains).
	Elements []string `yaml:"elements,omitempty"`

	// Table is changes, reports or diffs (final_state).
	Table string `yaml:"table,omitempty"`

	// Count is the expected number (conflict_count, final_state).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertStrategySequence = "strategy_sequence"
	AssertFindingPresent   = "finding_present"
	AssertFindingAbsent    = "finding_absent"
	AssertImpactContains   = "impact_contains"
	AssertConflictCount    = "conflict_count"
	AssertFinalState       = "final_state"
)

// Store tables visible to final_state assertions.
const (
	TableChanges = "changes"
	TableReports = "reports"
	TableDiffs   = "diffs"
)

var stateTables = []string{TableChanges, TableReports, TableDiffs}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	scenario.dir = filepath.Dir(path)

	for i, step := range scenario.Steps {
		if step.File == "" {
			continue
		}
		if _, err := os.Stat(scenario.resolve(step.File)); err != nil {
			return nil, fmt.Errorf("invalid scenario: steps[%d]: script file not found: %s", i, step.File)
		}
	}
	return scenario, nil
}

// ParseScenario decodes and validates scenario YAML. File steps resolve
// against the working directory.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict fields catch typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func (s *Scenario) scriptID() string {
	if s.ScriptID == "" {
		return DefaultScriptID
	}
	return s.ScriptID
}

func (s *Scenario) resolve(path string) string {
	if filepath.IsAbs(path) || s.dir == "" {
		return path
	}
	return filepath.Join(s.dir, path)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Mode != "" {
		if _, err := orchestrator.ParseMode(s.Mode); err != nil {
			return err
		}
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		switch {
		case step.Script == "" && step.File == "":
			return fmt.Errorf("steps[%d]: script or file is required", i)
		case step.Script != "" && step.File != "":
			return fmt.Errorf("steps[%d]: script and file are mutually exclusive", i)
		case step.Script != "":
			if _, ok := s.Scripts[step.Script]; !ok {
				return fmt.Errorf("steps[%d]: unknown script %q", i, step.Script)
			}
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i], len(s.Steps)); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, steps int) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Step < 0 || a.Step > steps {
		return fmt.Errorf("assertions[%d]: step %d out of range 0..%d", index, a.Step, steps)
	}

	switch a.Type {
	case AssertStrategySequence:
		if len(a.Strategies) == 0 {
			return fmt.Errorf("assertions[%d]: strategies list is required for strategy_sequence", index)
		}
	case AssertFindingPresent, AssertFindingAbsent:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for %s", index, a.Type)
		}
		if !slices.Contains(ir.FindingKinds, ir.FindingKind(a.Kind)) {
			return fmt.Errorf("assertions[%d]: unknown finding kind %q", index, a.Kind)
		}
		if a.Severity != "" && ir.Severity(a.Severity).Rank() < 0 {
			return fmt.Errorf("assertions[%d]: unknown severity %q", index, a.Severity)
		}
	case AssertImpactContains:
		if len(a.Elements) == 0 {
			return fmt.Errorf("assertions[%d]: elements list is required for impact_contains", index)
		}
	case AssertConflictCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for conflict_count", index)
		}
	case AssertFinalState:
		if !slices.Contains(stateTables, a.Table) {
			return fmt.Errorf("assertions[%d]: table must be one of %v for final_state", index, stateTables)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// loadScriptFile decodes a YAML script strictly.
func loadScriptFile(path string) (*ir.Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	var script ir.Script
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&script); err != nil {
		return nil, fmt.Errorf("parse script %s: %w", path, err)
	}
	return &script, nil
}
