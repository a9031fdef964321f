package common

import (
	"fmt"
	"strings"

	"github.com/ternarybob/banner"
)

// PrintBanner displays the application startup banner
func PrintBanner(serviceName, environment, jiraURL, repoPath, logFile string) {
	version := GetVersion()
	build := GetBuild()

	b := banner.New().
		SetStyle(banner.StyleDouble).
		SetBorderColor(banner.ColorPurple).
		SetTextColor(banner.ColorWhite).
		SetBold(true).
		SetWidth(80)

	fmt.Printf("\n")

	b.PrintTopLine()
	b.PrintCenteredText(strings.ToUpper(strings.ReplaceAll(serviceName, "-", " ")))
	b.PrintCenteredText("Bidirectional Ticket Synchronization Service")
	b.PrintSeparatorLine()

	b.PrintKeyValue("Version", version, 15)
	b.PrintKeyValue("Build", build, 15)
	b.PrintKeyValue("Environment", environment, 15)
	b.PrintKeyValue("Jira", jiraURL, 15)
	b.PrintKeyValue("Repository", repoPath, 15)
	b.PrintBottomLine()

	fmt.Printf("\n")

	if logFile != "" {
		pattern := strings.Replace(logFile, ".log", ".{YYYY-MM-DDTHH-MM-SS}.log", 1)
		fmt.Printf("   Log File: %s\n", pattern)
	}
	fmt.Printf("\n")

	printEndpoints()
	fmt.Printf("\n")
}

func printEndpoints() {
	fmt.Printf("Endpoints:\n")
	fmt.Printf("   GET  /health               Health check\n")
	fmt.Printf("   GET  /status               Sync status and queue depth\n")
	fmt.Printf("   POST /webhook/jira         Jira webhook receiver\n")
	fmt.Printf("   POST /webhook/git          Git post-receive receiver\n")
	fmt.Printf("   POST /create/{project}     Create ticket (offline capable)\n")
	fmt.Printf("   POST /sync/queue           Reconcile offline queue\n")
	fmt.Printf("   POST /sync/backfill        Import issues matching a JQL query\n")
	fmt.Printf("   POST /worklog/{issue}      Append worklog entry\n")
	fmt.Printf("   GET  /worklog/{issue}      List worklog entries\n")
	fmt.Printf("   GET  /timesheet/{author}   Timesheet for author\n")
	fmt.Printf("   GET  /ws                   Sync event stream\n")
}
