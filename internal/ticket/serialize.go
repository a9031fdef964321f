package ticket

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Serialize renders a ticket back into document form. The output
// round-trips through Parse without loss for all modeled fields.
func Serialize(t *Ticket) []byte {
	meta := frontmatter{
		ID:              t.ID,
		Title:           t.Title,
		Type:            t.Type,
		Status:          t.Status,
		Priority:        t.Priority,
		Created:         t.Created,
		Updated:         t.Updated,
		Reporter:        t.Reporter,
		Assignee:        t.Assignee,
		Labels:          t.Labels,
		Components:      t.Components,
		FixVersion:      t.FixVersion,
		AffectedVersion: t.AffectedVersion,
		Resolution:      t.Resolution,
		Resolved:        t.Resolved,
		Parent:          t.Parent,
		Links:           t.Links,
		Time:            t.Time,
		Offline:         t.Offline,
	}

	fm, err := yaml.Marshal(&meta)
	if err != nil {
		// Marshalling a plain struct of strings and slices cannot fail
		// at runtime; keep the signature simple.
		panic(fmt.Sprintf("marshal frontmatter: %v", err))
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(fm)
	b.WriteString("---\n\n")
	b.WriteString(strings.TrimSpace(t.Description))
	b.WriteString("\n")

	if len(t.Comments) > 0 {
		b.WriteString("\n## Comments\n\n")
		for _, c := range t.Comments {
			b.WriteString(fmt.Sprintf("### %s - %s\n\n%s\n\n", c.Author, c.Timestamp, strings.TrimSpace(c.Body)))
		}
	}

	return []byte(b.String())
}
