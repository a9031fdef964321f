package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tract-sync/internal/common"
	"tract-sync/internal/models"
)

// tractctl is a thin client for a running tract-sync service. All sync
// semantics live in the service; this binary only shapes requests.

var serverURL string

var rootCmd = &cobra.Command{
	Use:     "tractctl",
	Short:   "Client for the tract-sync ticket sync service",
	Long:    `Creates tickets, records worklogs, and inspects a running tract-sync service over its HTTP API.`,
	Version: common.GetVersion(),
}

var (
	createType        string
	createPriority    string
	createAssignee    string
	createDescription string
	createLabels      []string
	createComponents  []string
)

var createCmd = &cobra.Command{
	Use:   "create <project-key> <title>",
	Short: "Create a ticket, falling back to the offline queue when the remote is down",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := models.CreateRequest{
			Title:       args[1],
			Type:        createType,
			Priority:    createPriority,
			Assignee:    createAssignee,
			Description: createDescription,
			Labels:      createLabels,
			Components:  createComponents,
		}

		var result models.CreateResult
		if err := post("/create/"+strings.ToUpper(args[0]), req, &result); err != nil {
			return err
		}

		if result.State == models.StateOffline {
			fmt.Printf("Created offline as %s (queued for sync)\n", result.ID)
		} else {
			fmt.Printf("Created %s\n", result.ID)
		}
		return nil
	},
}

var (
	worklogAuthor  string
	worklogComment string
	worklogStarted string
)

var worklogCmd = &cobra.Command{
	Use:   "worklog <issue-key> <time>",
	Short: "Record a time-log entry, e.g. 'tractctl worklog PROJ-12 2h'",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		author := worklogAuthor
		if author == "" {
			author = os.Getenv("USER")
		}
		if author == "" {
			return fmt.Errorf("author required: pass --author or set USER")
		}

		req := models.WorklogRequest{
			Author:  author,
			Time:    args[1],
			Comment: worklogComment,
			Started: worklogStarted,
		}

		var entry models.WorklogEntry
		if err := post("/worklog/"+strings.ToUpper(args[0]), req, &entry); err != nil {
			return err
		}

		fmt.Printf("Logged %ds on %s for %s\n", entry.Seconds, entry.IssueID, entry.Author)
		return nil
	},
}

var worklogsCmd = &cobra.Command{
	Use:   "worklogs <issue-key>",
	Short: "List the time-log entries for an issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Issue    string                `json:"issue"`
			Worklogs []models.WorklogEntry `json:"worklogs"`
		}
		if err := get("/worklog/"+strings.ToUpper(args[0]), &resp); err != nil {
			return err
		}

		if len(resp.Worklogs) == 0 {
			fmt.Printf("No worklogs for %s\n", resp.Issue)
			return nil
		}
		for _, e := range resp.Worklogs {
			fmt.Printf("%s  %-12s %6ds  %s\n",
				e.StartedAt.Format(time.RFC3339), e.Author, e.Seconds, e.Comment)
		}
		return nil
	},
}

var (
	timesheetDate  string
	timesheetWeek  string
	timesheetMonth string
)

var timesheetCmd = &cobra.Command{
	Use:   "timesheet <author>",
	Short: "Report logged time for a user, filtered by --date, --week, or --month",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := url.Values{}
		if timesheetDate != "" {
			query.Set("date", timesheetDate)
		}
		if timesheetWeek != "" {
			query.Set("week", timesheetWeek)
		}
		if timesheetMonth != "" {
			query.Set("month", timesheetMonth)
		}

		path := "/timesheet/" + url.PathEscape(args[0])
		if len(query) > 0 {
			path += "?" + query.Encode()
		}

		var resp struct {
			Author       string                `json:"author"`
			Entries      []models.WorklogEntry `json:"entries"`
			TotalSeconds int                   `json:"total_seconds"`
			Total        string                `json:"total"`
		}
		if err := get(path, &resp); err != nil {
			return err
		}

		for _, e := range resp.Entries {
			fmt.Printf("%s  %-12s %6ds  %s\n",
				e.StartedAt.Format(time.RFC3339), e.IssueID, e.Seconds, e.Comment)
		}
		fmt.Printf("Total: %s (%d entries)\n", resp.Total, len(resp.Entries))
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile the offline creation queue now",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var result models.ReconcileResult
		if err := post("/sync/queue", nil, &result); err != nil {
			return err
		}
		fmt.Printf("Promoted %d, still queued %d\n", result.Promoted, result.StillQueued)
		return nil
	},
}

var backfillCmd = &cobra.Command{
	Use:   "backfill <jql>",
	Short: "Import every remote issue matching a JQL query into the local repo",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := map[string]string{"jql": args[0]}

		var result struct {
			Applied int `json:"applied"`
		}
		if err := post("/sync/backfill", req, &result); err != nil {
			return err
		}
		fmt.Printf("Imported %d issues\n", result.Applied)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show service status and queue depth",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var status struct {
			Running     bool    `json:"running"`
			Uptime      float64 `json:"uptime_seconds"`
			QueuedItems int     `json:"queued_items"`
			JiraURL     string  `json:"jira_url"`
			RepoPath    string  `json:"repo_path"`
		}
		if err := get("/status", &status); err != nil {
			return err
		}

		fmt.Printf("Running:  %v\n", status.Running)
		fmt.Printf("Uptime:   %s\n", (time.Duration(status.Uptime) * time.Second).String())
		fmt.Printf("Queued:   %d\n", status.QueuedItems)
		fmt.Printf("Jira:     %s\n", status.JiraURL)
		fmt.Printf("Repo:     %s\n", status.RepoPath)
		return nil
	},
}

func get(path string, out any) error {
	resp, err := http.Get(serverURL + path)
	if err != nil {
		return fmt.Errorf("contacting service: %w", err)
	}
	defer resp.Body.Close()
	return decode(resp, out)
}

func post(path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	resp, err := http.Post(serverURL+path, "application/json", reader)
	if err != nil {
		return fmt.Errorf("contacting service: %w", err)
	}
	defer resp.Body.Close()
	return decode(resp, out)
}

func decode(resp *http.Response, out any) error {
	if resp.StatusCode >= 400 {
		var errBody struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&errBody) == nil && errBody.Error != "" {
			return fmt.Errorf("service returned %d: %s", resp.StatusCode, errBody.Error)
		}
		return fmt.Errorf("service returned %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:3000", "tract-sync service URL")

	createCmd.Flags().StringVar(&createType, "type", "task", "ticket type")
	createCmd.Flags().StringVar(&createPriority, "priority", "", "ticket priority")
	createCmd.Flags().StringVar(&createAssignee, "assignee", "", "assignee username")
	createCmd.Flags().StringVar(&createDescription, "description", "", "ticket description")
	createCmd.Flags().StringSliceVar(&createLabels, "label", nil, "label (repeatable)")
	createCmd.Flags().StringSliceVar(&createComponents, "component", nil, "component (repeatable)")

	worklogCmd.Flags().StringVar(&worklogAuthor, "author", "", "worklog author (defaults to $USER)")
	worklogCmd.Flags().StringVar(&worklogComment, "comment", "", "worklog comment")
	worklogCmd.Flags().StringVar(&worklogStarted, "started", "", "start time, RFC3339 (defaults to now)")

	timesheetCmd.Flags().StringVar(&timesheetDate, "date", "", "filter by day, YYYY-MM-DD")
	timesheetCmd.Flags().StringVar(&timesheetWeek, "week", "", "filter by ISO week, e.g. 2026-W35")
	timesheetCmd.Flags().StringVar(&timesheetMonth, "month", "", "filter by month, YYYY-MM")

	rootCmd.AddCommand(createCmd, worklogCmd, worklogsCmd, timesheetCmd, syncCmd, backfillCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
