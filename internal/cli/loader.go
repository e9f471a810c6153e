package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/roach88/scriptdelta/internal/ir"
)

// LoadMode controls how errors are handled during script loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadError represents an error that occurred during script loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeReadFailed  = "E002" // File read error
	ErrCodeFormat      = "E003" // Unsupported file extension
	ErrCodeParseFailed = "E004" // JSON/YAML decode failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeStore       = "E007" // History database error

	// Script validation errors
	ErrCodeSceneID        = "E101" // Scene without ID
	ErrCodeDupScene       = "E102" // Duplicate scene ID
	ErrCodeCharacterID    = "E103" // Character without ID
	ErrCodeDupCharacter   = "E104" // Duplicate character ID
	ErrCodeDupDialogue    = "E105" // Duplicate dialogue ID within a scene
	ErrCodeNegativeLine   = "E106" // Negative line number
	ErrCodeAnalysis       = "E201" // Analysis failed
	ErrCodeFindingsAbove  = "E202" // Findings at or above --fail-on
	ErrCodeScenarioFailed = "E203" // Scenario expectations not met
)

// ScriptExtensions lists the accepted script file extensions.
var ScriptExtensions = []string{".yaml", ".yml", ".json", ".cue"}

// LoadScript reads a script document in YAML, JSON or CUE form and checks
// its structure. A script without an ID takes the file's base name.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all structural errors.
func LoadScript(path string, mode LoadMode) (*ir.Script, []error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("script not found: %s", path)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeReadFailed, Message: fmt.Sprintf("reading script: %v", err)}}
	}

	ext := strings.ToLower(filepath.Ext(path))
	var script ir.Script
	switch ext {
	case ".yaml", ".yml":
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&script); err != nil {
			return nil, []error{&LoadError{Code: ErrCodeParseFailed, Message: fmt.Sprintf("parsing YAML: %v", err)}}
		}
	case ".json":
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&script); err != nil {
			return nil, []error{&LoadError{Code: ErrCodeParseFailed, Message: fmt.Sprintf("parsing JSON: %v", err)}}
		}
	case ".cue":
		if loadErr := decodeCUE(path, data, &script); loadErr != nil {
			return nil, []error{loadErr}
		}
	default:
		return nil, []error{&LoadError{
			Code:    ErrCodeFormat,
			Message: fmt.Sprintf("unsupported script format %q: must be one of %v", ext, ScriptExtensions),
		}}
	}

	if script.ID == "" {
		script.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	errs := CheckScript(&script)
	if len(errs) > 0 && mode == LoadModeFailFast {
		errs = errs[:1]
	}
	return &script, errs
}

// decodeCUE evaluates a CUE document. The script is either the document
// itself or its top-level "script" field, which lets a file carry
// definitions next to the script.
func decodeCUE(path string, data []byte, script *ir.Script) *LoadError {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return cueLoadError(ErrCodeBuildFailed, "building CUE value", err)
	}

	if nested := value.LookupPath(cue.ParsePath("script")); nested.Exists() {
		value = nested
	}
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return cueLoadError(ErrCodeBuildFailed, "CUE value is not concrete", err)
	}
	if err := value.Decode(script); err != nil {
		return cueLoadError(ErrCodeParseFailed, "decoding CUE script", err)
	}
	return nil
}

// cueLoadError converts a CUE error to a LoadError with position info.
func cueLoadError(code, context string, err error) *LoadError {
	loadErr := &LoadError{Code: code, Message: fmt.Sprintf("%s: %v", context, err)}
	if positions := cueerrors.Positions(err); len(positions) > 0 {
		loadErr.Pos = positions[0]
	}
	return loadErr
}

// CheckScript reports structural problems that make a script unusable for
// change tracking: missing or duplicate identifiers and negative lines.
// Content problems are the analyzer's business, not the loader's.
func CheckScript(s *ir.Script) []error {
	var errs []error
	add := func(code, format string, args ...any) {
		errs = append(errs, &LoadError{Code: code, Message: fmt.Sprintf(format, args...)})
	}

	scenes := make(map[string]bool, len(s.Scenes))
	for i, sc := range s.Scenes {
		switch {
		case sc.ID == "":
			add(ErrCodeSceneID, "scenes[%d]: id is required", i)
		case scenes[sc.ID]:
			add(ErrCodeDupScene, "scenes[%d]: duplicate scene id %q", i, sc.ID)
		}
		scenes[sc.ID] = true

		dialogues := make(map[string]bool, len(sc.Dialogues))
		for j, d := range sc.Dialogues {
			if d.ID != "" && dialogues[d.ID] {
				add(ErrCodeDupDialogue, "scenes[%d].dialogues[%d]: duplicate dialogue id %q", i, j, d.ID)
			}
			dialogues[d.ID] = true
			if d.Line < 0 {
				add(ErrCodeNegativeLine, "scenes[%d].dialogues[%d]: negative line %d", i, j, d.Line)
			}
		}
	}

	characters := make(map[string]bool, len(s.Characters))
	for i, c := range s.Characters {
		switch {
		case c.ID == "":
			add(ErrCodeCharacterID, "characters[%d]: id is required", i)
		case characters[c.ID]:
			add(ErrCodeDupCharacter, "characters[%d]: duplicate character id %q", i, c.ID)
		}
		characters[c.ID] = true
	}
	return errs
}

// loadScriptOrExit loads a script fail-fast and maps failures to exit code 2.
func loadScriptOrExit(path string) (*ir.Script, error) {
	script, errs := LoadScript(path, LoadModeFailFast)
	if len(errs) > 0 {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("failed to load %s", path), errs[0])
	}
	return script, nil
}
