package jira

// Issue represents a remote record as returned by the REST API.
type Issue struct {
	ID     string `json:"id"`
	Key    string `json:"key"`
	Fields Fields `json:"fields"`
}

// Fields contains the issue fields the engine maps.
type Fields struct {
	Summary        string        `json:"summary"`
	Description    string        `json:"description,omitempty"`
	IssueType      Named         `json:"issuetype"`
	Status         Named         `json:"status"`
	Priority       *Named        `json:"priority,omitempty"`
	Assignee       *User         `json:"assignee,omitempty"`
	Reporter       *User         `json:"reporter,omitempty"`
	Labels         []string      `json:"labels,omitempty"`
	Components     []Named       `json:"components,omitempty"`
	FixVersions    []Named       `json:"fixVersions,omitempty"`
	Versions       []Named       `json:"versions,omitempty"`
	Resolution     *Named        `json:"resolution,omitempty"`
	ResolutionDate string        `json:"resolutiondate,omitempty"`
	Parent         *IssueRef     `json:"parent,omitempty"`
	TimeTracking   *TimeTracking `json:"timetracking,omitempty"`
	Comment        *Comments     `json:"comment,omitempty"`
	IssueLinks     []IssueLink   `json:"issuelinks,omitempty"`
	Created        string        `json:"created,omitempty"`
	Updated        string        `json:"updated,omitempty"`
}

// Named is the {"name": ...} shape the API uses for enumerations.
type Named struct {
	Name string `json:"name"`
}

// User represents a remote user.
type User struct {
	Name        string `json:"name,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// Ident returns the best available identity string for a user.
func (u *User) Ident() string {
	if u == nil {
		return ""
	}
	if u.Name != "" {
		return u.Name
	}
	return u.DisplayName
}

// IssueRef is a reference to another issue by key.
type IssueRef struct {
	ID  string `json:"id,omitempty"`
	Key string `json:"key"`
}

// TimeTracking carries the three remote time counters, in seconds.
type TimeTracking struct {
	OriginalEstimateSeconds  int `json:"originalEstimateSeconds,omitempty"`
	TimeSpentSeconds         int `json:"timeSpentSeconds,omitempty"`
	RemainingEstimateSeconds int `json:"remainingEstimateSeconds,omitempty"`
}

// Comments wraps the comments array.
type Comments struct {
	Comments []Comment `json:"comments"`
}

// Comment represents a single remote comment.
type Comment struct {
	ID      string `json:"id,omitempty"`
	Author  *User  `json:"author,omitempty"`
	Body    string `json:"body"`
	Created string `json:"created,omitempty"`
}

// LinkType names a remote link type together with its two directional
// phrasings.
type LinkType struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Inward  string `json:"inward,omitempty"`
	Outward string `json:"outward,omitempty"`
}

// IssueLink is one remote link; exactly one of InwardIssue or
// OutwardIssue is set, naming the other participant.
type IssueLink struct {
	ID           string    `json:"id,omitempty"`
	Type         LinkType  `json:"type"`
	InwardIssue  *IssueRef `json:"inwardIssue,omitempty"`
	OutwardIssue *IssueRef `json:"outwardIssue,omitempty"`
}

// CreateFields is the field block for issue creation.
type CreateFields struct {
	Project     ProjectRef `json:"project"`
	Summary     string     `json:"summary"`
	IssueType   Named      `json:"issuetype"`
	Priority    *Named     `json:"priority,omitempty"`
	Assignee    *User      `json:"assignee,omitempty"`
	Description string     `json:"description,omitempty"`
	Components  []Named    `json:"components,omitempty"`
	Labels      []string   `json:"labels,omitempty"`
}

// ProjectRef references a project by key.
type ProjectRef struct {
	Key string `json:"key"`
}

// CreatePayload is the body for POST /rest/api/2/issue.
type CreatePayload struct {
	Fields CreateFields `json:"fields"`
}

// createResponse is the creation response.
type createResponse struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

// TransitionInfo describes an available workflow transition.
type TransitionInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	To   Named  `json:"to"`
}

// transitionsResponse is the response from GET transitions.
type transitionsResponse struct {
	Transitions []TransitionInfo `json:"transitions"`
}

// transitionPayload is the body for POST transitions.
type transitionPayload struct {
	Transition struct {
		ID string `json:"id"`
	} `json:"transition"`
}

// linkPayload is the body for POST /rest/api/2/issueLink.
type linkPayload struct {
	Type         Named    `json:"type"`
	InwardIssue  IssueRef `json:"inwardIssue"`
	OutwardIssue IssueRef `json:"outwardIssue"`
}

// WorklogPayload is the body for POST worklog.
type WorklogPayload struct {
	TimeSpentSeconds int    `json:"timeSpentSeconds"`
	Comment          string `json:"comment,omitempty"`
	Started          string `json:"started,omitempty"`
}

// searchResponse is one page of search results.
type searchResponse struct {
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Total      int     `json:"total"`
	Issues     []Issue `json:"issues"`
}
