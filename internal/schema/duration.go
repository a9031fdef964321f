package schema

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"tract-sync/internal/common"
)

// Work conventions: one workday is 8 hours, one workweek is 5 workdays.
const (
	secondsPerMinute = 60
	secondsPerHour   = 3600
	secondsPerDay    = 8 * secondsPerHour
	secondsPerWeek   = 5 * secondsPerDay
)

var durationRe = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*([mhdwMHDW]?)$`)

// ToSeconds parses a duration of the form "<number><unit>" with unit in
// m, h, d, w (default h). Unparsable input yields a NoSeconds error;
// callers must treat that as "do not update", never as zero.
func ToSeconds(s string) (int, error) {
	match := durationRe.FindStringSubmatch(strings.TrimSpace(s))
	if match == nil {
		return 0, common.NewNoSecondsError(fmt.Sprintf("invalid duration %q", s))
	}

	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, common.NewNoSecondsError(fmt.Sprintf("invalid duration %q", s)).WithCause(err)
	}

	unit := strings.ToLower(match[2])
	var multiplier int
	switch unit {
	case "m":
		multiplier = secondsPerMinute
	case "h", "":
		multiplier = secondsPerHour
	case "d":
		multiplier = secondsPerDay
	case "w":
		multiplier = secondsPerWeek
	}

	return int(math.Round(value * float64(multiplier))), nil
}

// FormatSeconds renders seconds in the same work conventions, largest
// unit first.
func FormatSeconds(seconds int) string {
	if seconds <= 0 {
		return "0m"
	}

	hours := seconds / secondsPerHour
	minutes := (seconds % secondsPerHour) / secondsPerMinute

	if hours >= 8 {
		days := hours / 8
		rem := hours % 8
		if rem > 0 {
			return fmt.Sprintf("%dd %dh", days, rem)
		}
		return fmt.Sprintf("%dd", days)
	}
	if hours > 0 {
		if minutes > 0 {
			return fmt.Sprintf("%dh %dm", hours, minutes)
		}
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dm", minutes)
}
