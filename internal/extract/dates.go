package extract

import (
	"fmt"

	"cloud.google.com/go/civil"

	"searchreporting/pkg/errors"
)

// DefaultClickRetentionDays is how far back click reports can be requested.
const DefaultClickRetentionDays = 90

// ValidateWindow rejects a window whose end precedes its start.
func ValidateWindow(from, to civil.Date) error {
	if to.Before(from) {
		return errors.ValidationError("date range", fmt.Sprintf("%s..%s", from, to), "end date is before start date").
			WithSeverity(errors.SeverityCritical)
	}
	return nil
}

// ClickReportDates narrows [from, to] to the days click reports are still
// available for, relative to today. A window lying entirely outside the
// retention period is an error.
func ClickReportDates(from, to, today civil.Date, retentionDays int) (civil.Date, civil.Date, error) {
	if retentionDays <= 0 {
		retentionDays = DefaultClickRetentionDays
	}

	if today.DaysSince(from) > retentionDays {
		if today.DaysSince(to) > retentionDays {
			return from, to, errors.New(errors.ErrCodeDateRangeExceeded,
				fmt.Sprintf("Click reports cannot be retrieved for more than %d days back", retentionDays)).
				WithSeverity(errors.SeverityCritical).
				WithContext("from", from.String()).
				WithContext("to", to.String()).
				WithSuggestions(fmt.Sprintf("Use a --to date on or after %s", today.AddDays(-retentionDays)))
		}
		from = today.AddDays(-retentionDays)
	}
	return from, to, nil
}

// DaysBetween lists every calendar day in [from, to].
func DaysBetween(from, to civil.Date) []civil.Date {
	var days []civil.Date
	for d := from; !d.After(to); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}
