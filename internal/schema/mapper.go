package schema

import (
	"regexp"
	"strings"

	"github.com/ternarybob/arbor"
)

// FieldName identifies an enumerated ticket field.
type FieldName string

const (
	FieldTypeName FieldName = "type"
	FieldStatus   FieldName = "status"
	FieldPriority FieldName = "priority"
)

// EnumField is the canonical vocabulary for one field plus a
// configurable alias table. The substring fallback below is the
// last-resort path and is always logged.
type EnumField struct {
	Canonical []string
	Aliases   map[string]string
	Default   string
}

// Mapper translates enumerated field values between the remote
// vocabulary and the local canonical one. It never fails: unknown
// values degrade to the per-field default.
type Mapper struct {
	fields map[FieldName]*EnumField
	logger arbor.ILogger
}

// NewMapper builds a mapper with the default vocabularies.
func NewMapper(logger arbor.ILogger) *Mapper {
	return &Mapper{
		logger: logger,
		fields: map[FieldName]*EnumField{
			FieldTypeName: {
				Canonical: []string{"task", "bug", "story", "epic", "subtask", "improvement"},
				Aliases: map[string]string{
					"defect":      "bug",
					"new-feature": "story",
					"feature":     "story",
					"sub-task":    "subtask",
					"enhancement": "improvement",
				},
				Default: "task",
			},
			FieldStatus: {
				Canonical: []string{"open", "in-progress", "in-review", "blocked", "done", "closed"},
				Aliases: map[string]string{
					"to-do":       "open",
					"todo":        "open",
					"backlog":     "open",
					"reopened":    "open",
					"in-development": "in-progress",
					"code-review": "in-review",
					"resolved":    "done",
				},
				Default: "open",
			},
			FieldPriority: {
				Canonical: []string{"critical", "high", "medium", "low", "trivial"},
				Aliases: map[string]string{
					"blocker": "critical",
					"highest": "critical",
					"major":   "high",
					"normal":  "medium",
					"minor":   "low",
					"lowest":  "trivial",
				},
				Default: "medium",
			},
		},
	}
}

// SetAliases replaces the alias table for one field, allowing the
// vocabulary to be tuned per installation.
func (m *Mapper) SetAliases(field FieldName, aliases map[string]string) {
	if f, ok := m.fields[field]; ok {
		f.Aliases = aliases
	}
}

var nonSlugRe = regexp.MustCompile(`[^a-z0-9-]+`)

// Slugify lowercases the value, collapses whitespace into single
// hyphens, and strips everything that is not alphanumeric.
func Slugify(value string) string {
	s := strings.ToLower(strings.TrimSpace(value))
	s = strings.Join(strings.Fields(s), "-")
	s = nonSlugRe.ReplaceAllString(s, "")
	s = strings.Trim(s, "-")
	return s
}

// NormalizeEnum maps a raw value onto the canonical vocabulary for the
// given field: exact match after slugifying, then the alias table, then
// a bidirectional substring match, then the per-field default. The
// fallback paths are deliberately lossy and logged.
func (m *Mapper) NormalizeEnum(value string, field FieldName) string {
	f, ok := m.fields[field]
	if !ok {
		return value
	}

	slug := Slugify(value)
	if slug == "" {
		return f.Default
	}

	for _, c := range f.Canonical {
		if slug == c {
			return c
		}
	}

	if alias, ok := f.Aliases[slug]; ok {
		return alias
	}

	// Last resort: bidirectional substring match, first hit wins.
	for _, c := range f.Canonical {
		if strings.Contains(c, slug) || strings.Contains(slug, c) {
			m.logger.Warn().
				Str("field", string(field)).
				Str("value", value).
				Str("matched", c).
				Msg("Enum value matched by substring fallback")
			return c
		}
	}

	m.logger.Warn().
		Str("field", string(field)).
		Str("value", value).
		Str("default", f.Default).
		Msg("Enum value not recognized, using default")
	return f.Default
}

// NormalizeType maps a remote issue type name onto the canonical set.
func (m *Mapper) NormalizeType(value string) string {
	return m.NormalizeEnum(value, FieldTypeName)
}

// NormalizeStatus maps a remote status name onto the canonical set.
func (m *Mapper) NormalizeStatus(value string) string {
	return m.NormalizeEnum(value, FieldStatus)
}

// NormalizePriority maps a remote priority name onto the canonical set.
func (m *Mapper) NormalizePriority(value string) string {
	return m.NormalizeEnum(value, FieldPriority)
}

// RemoteName renders a canonical slug as the remote display name:
// hyphens become spaces and each word is capitalized, so
// "in-progress" becomes "In Progress".
func RemoteName(slug string) string {
	words := strings.Split(slug, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
