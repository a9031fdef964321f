package ticket

// Field names a ticket attribute in a ChangeSet.
type Field string

const (
	FieldTitle           Field = "title"
	FieldType            Field = "type"
	FieldStatus          Field = "status"
	FieldPriority        Field = "priority"
	FieldAssignee        Field = "assignee"
	FieldReporter        Field = "reporter"
	FieldLabels          Field = "labels"
	FieldComponents      Field = "components"
	FieldFixVersion      Field = "fix_version"
	FieldAffectedVersion Field = "affected_version"
	FieldResolution      Field = "resolution"
	FieldParent          Field = "parent"
	FieldDescription     Field = "description"
	FieldLinks           Field = "links"
	FieldTime            Field = "time"
	FieldNewComments     Field = "new_comments"
)

// ChangeSet is a sparse map of fields whose value differs between two
// ticket snapshots, keyed by field name, holding the new value. An
// empty ChangeSet is a valid no-op result.
type ChangeSet map[Field]any

// Empty reports whether nothing changed.
func (cs ChangeSet) Empty() bool {
	return len(cs) == 0
}

// Has reports whether the given field changed.
func (cs ChangeSet) Has(f Field) bool {
	_, ok := cs[f]
	return ok
}

// Fields returns the changed field names, for logging.
func (cs ChangeSet) Fields() []string {
	names := make([]string, 0, len(cs))
	for f := range cs {
		names = append(names, string(f))
	}
	return names
}

// NewComments returns the appended comments, if any.
func (cs ChangeSet) NewComments() []Comment {
	if v, ok := cs[FieldNewComments]; ok {
		return v.([]Comment)
	}
	return nil
}

// Diff computes the field-level change-set between two versions of a
// ticket. Scalar fields compare by equality, label/component sets
// ignore order, links compare deeply, and comments are detected as
// appends only: a comment present in new with no matching
// (author, timestamp, body) tuple in old. Edits or deletions of
// existing comments are invisible here.
func Diff(old, new *Ticket) ChangeSet {
	changes := ChangeSet{}

	scalar := func(f Field, o, n string) {
		if o != n {
			changes[f] = n
		}
	}

	scalar(FieldTitle, old.Title, new.Title)
	scalar(FieldType, old.Type, new.Type)
	scalar(FieldStatus, old.Status, new.Status)
	scalar(FieldPriority, old.Priority, new.Priority)
	scalar(FieldAssignee, old.Assignee, new.Assignee)
	scalar(FieldReporter, old.Reporter, new.Reporter)
	scalar(FieldFixVersion, old.FixVersion, new.FixVersion)
	scalar(FieldAffectedVersion, old.AffectedVersion, new.AffectedVersion)
	scalar(FieldResolution, old.Resolution, new.Resolution)
	scalar(FieldParent, old.Parent, new.Parent)
	scalar(FieldDescription, old.Description, new.Description)

	if !sameSet(old.Labels, new.Labels) {
		changes[FieldLabels] = new.Labels
	}
	if !sameSet(old.Components, new.Components) {
		changes[FieldComponents] = new.Components
	}
	if !sameLinks(old.Links, new.Links) {
		changes[FieldLinks] = new.Links
	}
	if old.Time != new.Time {
		changes[FieldTime] = new.Time
	}

	var appended []Comment
	for _, c := range new.Comments {
		if !old.HasComment(c) {
			appended = append(appended, c)
		}
	}
	if len(appended) > 0 {
		changes[FieldNewComments] = appended
	}

	return changes
}

// sameSet compares two string slices as multisets: order does not
// matter, multiplicity does.
func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, s := range a {
		seen[s]++
	}
	for _, s := range b {
		if seen[s] == 0 {
			return false
		}
		seen[s]--
	}
	return true
}

func sameLinks(a, b []Link) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
