package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidRetention is wrapped by every RetentionConfig validation failure.
var ErrInvalidRetention = errors.New("invalid retention config")

// Verbosity controls how much of an interaction is persisted.
type Verbosity string

const (
	// VerbosityMinimal stores redacted text only and drops the system
	// prompt, context snapshot and reasoning.
	VerbosityMinimal Verbosity = "minimal"
	// VerbosityStandard redacts text classified confidential.
	VerbosityStandard Verbosity = "standard"
	// VerbosityDetailed stores text as given.
	VerbosityDetailed Verbosity = "detailed"
)

// Retention is the RetentionConfig value. It is copied by value; a swap
// replaces the whole struct.
type Retention struct {
	Enabled                   bool      `json:"enabled" yaml:"enabled"`
	Verbosity                 Verbosity `json:"verbosity" yaml:"verbosity"`
	RetentionDays             int       `json:"retention_days" yaml:"retention_days"`
	MaxRecords                int       `json:"max_records" yaml:"max_records"`
	MaxSizeMB                 int       `json:"max_size_mb" yaml:"max_size_mb"`
	IncludeSystemPrompts      bool      `json:"include_system_prompts" yaml:"include_system_prompts"`
	IncludeToolExecutions     bool      `json:"include_tool_executions" yaml:"include_tool_executions"`
	IncludePerformanceMetrics bool      `json:"include_performance_metrics" yaml:"include_performance_metrics"`
	AutoCleanup               bool      `json:"auto_cleanup" yaml:"auto_cleanup"`
	ExportFormat              string    `json:"export_format" yaml:"export_format"`
}

// DefaultRetention is the fallback used when no stored or file config is
// available or the stored one is corrupt.
func DefaultRetention() Retention {
	return Retention{
		Enabled:                   true,
		Verbosity:                 VerbosityStandard,
		RetentionDays:             30,
		MaxRecords:                10000,
		MaxSizeMB:                 100,
		IncludeSystemPrompts:      true,
		IncludeToolExecutions:     true,
		IncludePerformanceMetrics: true,
		AutoCleanup:               true,
		ExportFormat:              "json",
	}
}

// Validate checks value ranges. Zero RetentionDays, MaxRecords and MaxSizeMB
// mean "no limit".
func (r Retention) Validate() error {
	switch r.Verbosity {
	case VerbosityMinimal, VerbosityStandard, VerbosityDetailed:
	default:
		return fmt.Errorf("%w: verbosity %q", ErrInvalidRetention, r.Verbosity)
	}
	if r.RetentionDays < 0 {
		return fmt.Errorf("%w: retention_days must not be negative", ErrInvalidRetention)
	}
	if r.MaxRecords < 0 {
		return fmt.Errorf("%w: max_records must not be negative", ErrInvalidRetention)
	}
	if r.MaxSizeMB < 0 {
		return fmt.Errorf("%w: max_size_mb must not be negative", ErrInvalidRetention)
	}
	switch r.ExportFormat {
	case "json", "csv":
	default:
		return fmt.Errorf("%w: export_format %q", ErrInvalidRetention, r.ExportFormat)
	}
	return nil
}

// RetentionPatch is a partial update; nil fields are left unchanged.
type RetentionPatch struct {
	Enabled                   *bool      `json:"enabled,omitempty"`
	Verbosity                 *Verbosity `json:"verbosity,omitempty"`
	RetentionDays             *int       `json:"retention_days,omitempty"`
	MaxRecords                *int       `json:"max_records,omitempty"`
	MaxSizeMB                 *int       `json:"max_size_mb,omitempty"`
	IncludeSystemPrompts      *bool      `json:"include_system_prompts,omitempty"`
	IncludeToolExecutions     *bool      `json:"include_tool_executions,omitempty"`
	IncludePerformanceMetrics *bool      `json:"include_performance_metrics,omitempty"`
	AutoCleanup               *bool      `json:"auto_cleanup,omitempty"`
	ExportFormat              *string    `json:"export_format,omitempty"`
}

// Apply returns r with the non-nil fields of p applied, validated.
func (p RetentionPatch) Apply(r Retention) (Retention, error) {
	if p.Enabled != nil {
		r.Enabled = *p.Enabled
	}
	if p.Verbosity != nil {
		r.Verbosity = *p.Verbosity
	}
	if p.RetentionDays != nil {
		r.RetentionDays = *p.RetentionDays
	}
	if p.MaxRecords != nil {
		r.MaxRecords = *p.MaxRecords
	}
	if p.MaxSizeMB != nil {
		r.MaxSizeMB = *p.MaxSizeMB
	}
	if p.IncludeSystemPrompts != nil {
		r.IncludeSystemPrompts = *p.IncludeSystemPrompts
	}
	if p.IncludeToolExecutions != nil {
		r.IncludeToolExecutions = *p.IncludeToolExecutions
	}
	if p.IncludePerformanceMetrics != nil {
		r.IncludePerformanceMetrics = *p.IncludePerformanceMetrics
	}
	if p.AutoCleanup != nil {
		r.AutoCleanup = *p.AutoCleanup
	}
	if p.ExportFormat != nil {
		r.ExportFormat = *p.ExportFormat
	}
	if err := r.Validate(); err != nil {
		return Retention{}, err
	}
	return r, nil
}

// ParseRetention decodes YAML (or JSON) over the defaults, so omitted fields
// keep their default value.
func ParseRetention(data []byte) (Retention, error) {
	r := DefaultRetention()
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Retention{}, fmt.Errorf("%w: %v", ErrInvalidRetention, err)
	}
	if err := r.Validate(); err != nil {
		return Retention{}, err
	}
	return r, nil
}

// LoadRetentionFile reads and parses a retention override file.
func LoadRetentionFile(path string) (Retention, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Retention{}, fmt.Errorf("reading retention file: %w", err)
	}
	return ParseRetention(data)
}
