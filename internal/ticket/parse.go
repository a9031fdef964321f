package ticket

import (
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"tract-sync/internal/common"
)

// frontmatter is the YAML header block of a ticket document.
type frontmatter struct {
	ID              string       `yaml:"id"`
	Title           string       `yaml:"title"`
	Type            string       `yaml:"type,omitempty"`
	Status          string       `yaml:"status,omitempty"`
	Priority        string       `yaml:"priority,omitempty"`
	Created         string       `yaml:"created,omitempty"`
	Updated         string       `yaml:"updated,omitempty"`
	Reporter        string       `yaml:"reporter,omitempty"`
	Assignee        string       `yaml:"assignee,omitempty"`
	Labels          []string     `yaml:"labels,omitempty"`
	Components      []string     `yaml:"components,omitempty"`
	FixVersion      string       `yaml:"fix_version,omitempty"`
	AffectedVersion string       `yaml:"affected_version,omitempty"`
	Resolution      string       `yaml:"resolution,omitempty"`
	Resolved        string       `yaml:"resolved,omitempty"`
	Parent          string       `yaml:"parent,omitempty"`
	Links           []Link       `yaml:"links,omitempty"`
	Time            TimeTracking `yaml:"time,omitempty"`
	Offline         bool         `yaml:"offline,omitempty"`
}

var (
	commentsHeadingRe = regexp.MustCompile(`(?m)^## Comments\s*$`)
	commentHeaderRe   = regexp.MustCompile(`(?m)^### (.+?) - (\S+)\s*$`)
)

// Parse reads a ticket document: a YAML frontmatter block delimited by
// --- lines, a free-text description, and an optional "## Comments"
// section of "### <author> - <timestamp>" blocks.
func Parse(raw []byte) (*Ticket, error) {
	fm, body, err := splitFrontmatter(string(raw))
	if err != nil {
		return nil, err
	}

	var meta frontmatter
	if err := yaml.Unmarshal([]byte(fm), &meta); err != nil {
		return nil, common.NewMalformedDocumentError("unparsable frontmatter").WithCause(err)
	}
	if meta.ID == "" {
		return nil, common.NewMalformedDocumentError("frontmatter missing required 'id' field")
	}

	desc, comments, err := splitComments(body)
	if err != nil {
		return nil, err
	}

	return &Ticket{
		ID:              meta.ID,
		Title:           meta.Title,
		Type:            meta.Type,
		Status:          meta.Status,
		Priority:        meta.Priority,
		Assignee:        meta.Assignee,
		Reporter:        meta.Reporter,
		Labels:          meta.Labels,
		Components:      meta.Components,
		FixVersion:      meta.FixVersion,
		AffectedVersion: meta.AffectedVersion,
		Resolution:      meta.Resolution,
		Resolved:        meta.Resolved,
		Parent:          meta.Parent,
		Links:           meta.Links,
		Time:            meta.Time,
		Created:         meta.Created,
		Updated:         meta.Updated,
		Offline:         meta.Offline,
		Description:     strings.TrimSpace(desc),
		Comments:        comments,
	}, nil
}

// splitFrontmatter separates the YAML header from the body.
func splitFrontmatter(content string) (string, string, error) {
	content = strings.TrimLeft(content, "\n\r")
	if !strings.HasPrefix(content, "---") {
		return "", "", common.NewMalformedDocumentError("no frontmatter block (must start with ---)")
	}

	rest := content[3:]
	rest = strings.TrimLeft(rest, "\n\r")
	idx := strings.Index(rest, "\n---")
	if idx < 0 {
		return "", "", common.NewMalformedDocumentError("no closing --- for frontmatter")
	}

	fm := rest[:idx]
	body := rest[idx+4:]
	body = strings.TrimLeft(body, "\n\r")

	return fm, body, nil
}

// splitComments separates the description from the "## Comments"
// section and parses the comment blocks.
func splitComments(body string) (string, []Comment, error) {
	loc := commentsHeadingRe.FindStringIndex(body)
	if loc == nil {
		return body, nil, nil
	}

	desc := body[:loc[0]]
	section := body[loc[1]:]

	comments, err := parseComments(section)
	if err != nil {
		return "", nil, err
	}
	return desc, comments, nil
}

// parseComments parses "### <author> - <timestamp>\n\n<body>" blocks.
// A comments section containing text that matches no block header is a
// grammar violation, not silently ignored content.
func parseComments(section string) ([]Comment, error) {
	matches := commentHeaderRe.FindAllStringSubmatchIndex(section, -1)
	if len(matches) == 0 {
		if strings.TrimSpace(section) != "" {
			return nil, common.NewMalformedDocumentError("comments section does not match comment-block grammar")
		}
		return nil, nil
	}

	// Text before the first header is also a grammar violation.
	if strings.TrimSpace(section[:matches[0][0]]) != "" {
		return nil, common.NewMalformedDocumentError("unexpected text before first comment block")
	}

	var comments []Comment
	for i, match := range matches {
		author := section[match[2]:match[3]]
		timestamp := section[match[4]:match[5]]

		var body string
		start := match[1]
		if i+1 < len(matches) {
			body = section[start:matches[i+1][0]]
		} else {
			body = section[start:]
		}

		comments = append(comments, Comment{
			Author:    strings.TrimSpace(author),
			Timestamp: timestamp,
			Body:      strings.TrimSpace(body),
		})
	}

	return comments, nil
}
