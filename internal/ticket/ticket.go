package ticket

// Ticket is the local canonical representation of a unit of work,
// stored as one markdown document with YAML frontmatter.
type Ticket struct {
	ID              string
	Title           string
	Type            string
	Status          string
	Priority        string
	Assignee        string
	Reporter        string
	Labels          []string
	Components      []string
	FixVersion      string
	AffectedVersion string
	Resolution      string
	Resolved        string
	Parent          string
	Links           []Link
	Time            TimeTracking
	Created         string
	Updated         string
	Offline         bool
	Description     string
	Comments        []Comment
}

// Link is a directional, typed relation to another ticket.
type Link struct {
	Relation string `yaml:"relation"`
	TargetID string `yaml:"target"`
}

// TimeTracking holds the three time-tracking counters, in seconds.
// Zero means "not set".
type TimeTracking struct {
	EstimateSeconds  int `yaml:"estimate_seconds,omitempty"`
	LoggedSeconds    int `yaml:"logged_seconds,omitempty"`
	RemainingSeconds int `yaml:"remaining_seconds,omitempty"`
}

// IsZero lets the YAML encoder omit an unset time block entirely.
func (tt TimeTracking) IsZero() bool {
	return tt == TimeTracking{}
}

// Comment is one comment block. Comments have no stable local id;
// identity is the (Author, Timestamp, Body) tuple.
type Comment struct {
	Author    string
	Timestamp string
	Body      string
}

// Equal reports whether two comments are the same entry.
func (c Comment) Equal(o Comment) bool {
	return c.Author == o.Author && c.Timestamp == o.Timestamp && c.Body == o.Body
}

// HasComment reports whether the ticket already contains the given
// comment identity.
func (t *Ticket) HasComment(c Comment) bool {
	for _, existing := range t.Comments {
		if existing.Equal(c) {
			return true
		}
	}
	return false
}
