package config

import (
	"fmt"
	"strings"
)

// NormalizationResult captures the coercions and warnings from the
// normalization pass, surfaced once at startup.
type NormalizationResult struct{ Warnings []string }

// Normalize canonicalizes enumerated and bounded fields in place before
// defaults are applied. Unknown values are coerced with a warning instead of
// failing the run.
func Normalize(c *Config) *NormalizationResult {
	res := &NormalizationResult{}

	if f := strings.ToLower(strings.TrimSpace(c.Flavor)); f != c.Flavor {
		if c.Flavor != "" {
			res.warnChanged("flavor", c.Flavor, f)
		}
		c.Flavor = f
	}
	if c.Flavor != "" && c.Flavor != FlavorGenerate && c.Flavor != FlavorTreeGenerate {
		res.warnUnknown("flavor", c.Flavor, FlavorGenerate)
		c.Flavor = FlavorGenerate
	}

	normalizePolicy(&c.Policies.OnMetadataError, "policies.on_metadata_error", res)
	normalizePolicy(&c.Policies.OnProcessorError, "policies.on_processor_error", res)

	if c.Jobs < 0 {
		res.warnChanged("jobs", c.Jobs, 1)
		c.Jobs = 1
	}
	if c.GrammarEncoding == "" {
		res.Warnings = append(res.Warnings,
			"grammar_encoding is not set, using UTF-8; set it explicitly to pin the build")
	}
	return res
}

func normalizePolicy(value *string, field string, res *NormalizationResult) {
	v := strings.ToLower(strings.TrimSpace(*value))
	if v != *value && *value != "" {
		res.warnChanged(field, *value, v)
	}
	switch v {
	case "", "first", "last", "ignore":
		*value = v
	default:
		res.warnUnknown(field, v, "first")
		*value = "first"
	}
}

func (r *NormalizationResult) warnChanged(field string, from, to any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf("normalized %s from '%v' to '%v'", field, from, to))
}

func (r *NormalizationResult) warnUnknown(field, value, def string) {
	r.Warnings = append(r.Warnings, fmt.Sprintf("unknown %s '%s', defaulting to %s", field, value, def))
}
