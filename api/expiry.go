package api

import (
	"strings"
	"time"
)

// weeklyMonthCodes maps a month to its single-character weekly expiry code.
// Months January through September are zero-based digits, October through
// December use letters.
var weeklyMonthCodes = [13]string{
	1: "0", 2: "1", 3: "2", 4: "3", 5: "4", 6: "5",
	7: "6", 8: "7", 9: "8", 10: "O", 11: "N", 12: "D",
}

// nextTuesday returns day itself when it falls on a Tuesday, otherwise the
// next one.
func nextTuesday(day time.Time) time.Time {
	for day.Weekday() != time.Tuesday {
		day = day.AddDate(0, 0, 1)
	}
	return day
}

// lastTuesdayOfMonth returns the last Tuesday of day's month.
func lastTuesdayOfMonth(day time.Time) time.Time {
	firstOfNext := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location()).AddDate(0, 1, 0)
	last := firstOfNext.AddDate(0, 0, -1)
	for last.Weekday() != time.Tuesday {
		last = last.AddDate(0, 0, -1)
	}
	return last
}

// ExpiryCode returns the tradingsymbol expiry fragment for the contract
// expiring on the first Tuesday on or after day. The last Tuesday of a month
// is the monthly contract and encodes as YYMMM (e.g. 25NOV); every other
// Tuesday is weekly and encodes as YY, a month code, and the two-digit day
// (e.g. 25N11).
func ExpiryCode(day time.Time) string {
	expiry := nextTuesday(day)
	year := expiry.Format("06")
	if expiry.Equal(lastTuesdayOfMonth(expiry)) {
		return year + strings.ToUpper(expiry.Format("Jan"))
	}
	return year + weeklyMonthCodes[int(expiry.Month())] + expiry.Format("02")
}

// NearestStrike rounds spot to the closest multiple of step.
func NearestStrike(spot float64, step int) int {
	if step <= 0 {
		return int(spot)
	}
	s := float64(step)
	return int((spot+s/2)/s) * step
}
