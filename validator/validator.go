package validator

import (
	"fmt"
	"strings"
)

// SafetyLevel classifies how risky a script looks to the lexical scanner.
type SafetyLevel string

const (
	LevelSafe     SafetyLevel = "safe"
	LevelModerate SafetyLevel = "moderate"
	LevelRisky    SafetyLevel = "risky"
)

// Config bounds the resource guards of the validator.
type Config struct {
	// MaxScriptLength is the maximum accepted script length in bytes.
	MaxScriptLength int `yaml:"max_script_length"`
	// MaxPipelineDepth is the maximum accepted number of pipe characters.
	MaxPipelineDepth int `yaml:"max_pipeline_depth"`
}

// DefaultConfig returns the default validation limits.
func DefaultConfig() Config {
	return Config{
		MaxScriptLength:  10000,
		MaxPipelineDepth: 20,
	}
}

// Result is the verdict for a single script.
//
// Invariants: Valid == (len(Errors) == 0); SanitizedScript is non-empty
// if and only if Valid; SafetyLevel is risky when any error is present,
// moderate when only warnings are present, safe otherwise.
type Result struct {
	Valid            bool        `json:"valid"`
	Errors           []string    `json:"errors"`
	Warnings         []string    `json:"warnings"`
	SafetyLevel      SafetyLevel `json:"safety_level"`
	SanitizedScript  string      `json:"sanitized_script,omitempty"`
	DetectedCommands []string    `json:"detected_commands,omitempty"`
}

// Validator checks scripts against the fixed blocklist and pattern sets.
// The zero value is not usable; construct with New.
type Validator struct {
	cfg Config
}

// New creates a Validator. Zero config fields fall back to defaults.
func New(cfg Config) *Validator {
	def := DefaultConfig()
	if cfg.MaxScriptLength <= 0 {
		cfg.MaxScriptLength = def.MaxScriptLength
	}
	if cfg.MaxPipelineDepth <= 0 {
		cfg.MaxPipelineDepth = def.MaxPipelineDepth
	}
	return &Validator{cfg: cfg}
}

var defaultValidator = New(DefaultConfig())

// Validate checks a script against the default limits.
func Validate(script string) Result {
	return defaultValidator.Validate(script)
}

// Validate decides whether the script may run. It is pure: no I/O, no
// mutation, deterministic for a given script and config.
//
// All violations after the length and emptiness guards are collected
// rather than short-circuited so callers see the full error set.
func (v *Validator) Validate(script string) Result {
	if len(script) > v.cfg.MaxScriptLength {
		return Result{
			Valid:       false,
			Errors:      []string{fmt.Sprintf("script length %d exceeds maximum %d", len(script), v.cfg.MaxScriptLength)},
			Warnings:    []string{},
			SafetyLevel: LevelRisky,
		}
	}

	trimmed := strings.TrimSpace(script)
	if trimmed == "" {
		return Result{
			Valid:       false,
			Errors:      []string{"script is empty"},
			Warnings:    []string{},
			SafetyLevel: LevelSafe,
		}
	}

	errs := []string{}
	warnings := []string{}

	commands := detectCommands(trimmed)
	flagged := make(map[string]bool)
	for _, cmd := range commands {
		lc := strings.ToLower(cmd)
		if _, blocked := blockedCommands[lc]; blocked && !flagged[lc] {
			flagged[lc] = true
			errs = append(errs, "blocked command: "+cmd)
		}
	}

	for _, p := range blockedPatterns {
		if p.re.MatchString(trimmed) {
			errs = append(errs, p.message)
		}
	}

	for _, p := range warningPatterns {
		if p.re.MatchString(trimmed) {
			warnings = append(warnings, p.message)
		}
	}

	if pipes := strings.Count(trimmed, "|"); pipes > v.cfg.MaxPipelineDepth {
		errs = append(errs, fmt.Sprintf("pipeline too deep: %d pipes exceeds maximum %d", pipes, v.cfg.MaxPipelineDepth))
	}

	result := Result{
		Valid:            len(errs) == 0,
		Errors:           errs,
		Warnings:         warnings,
		DetectedCommands: commands,
	}
	switch {
	case len(errs) > 0:
		result.SafetyLevel = LevelRisky
	case len(warnings) > 0:
		result.SafetyLevel = LevelModerate
	default:
		result.SafetyLevel = LevelSafe
	}
	if result.Valid {
		result.SanitizedScript = trimmed
	}
	return result
}

// detectCommands extracts the leading token of every statement and
// pipeline segment. Comment lines are skipped.
func detectCommands(script string) []string {
	var commands []string
	for _, line := range strings.Split(script, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, stmt := range strings.Split(line, ";") {
			for _, segment := range strings.Split(stmt, "|") {
				fields := strings.Fields(segment)
				if len(fields) == 0 {
					continue
				}
				commands = append(commands, fields[0])
			}
		}
	}
	return commands
}
