package permit

import (
	"strconv"
	"strings"
	"time"
)

// ParseDate accepts an ISO "YYYY-MM-DD..." prefix or "MM/DD/YYYY" (one- or
// two-digit month and day, optional trailing time). Anything else, including
// impossible calendar dates, yields nil.
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if len(s) >= 10 && s[4] == '-' {
		t, err := time.Parse("2006-01-02", s[:10])
		if err != nil {
			return nil
		}
		return &t
	}

	parts := strings.Split(s, "/")
	if len(parts) != 3 || len(parts[2]) < 4 {
		return nil
	}
	month, err1 := strconv.Atoi(parts[0])
	day, err2 := strconv.Atoi(parts[1])
	year, err3 := strconv.Atoi(parts[2][:4])
	if err1 != nil || err2 != nil || err3 != nil {
		return nil
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return nil
	}
	return &t
}

// Quarter returns the calendar year, quarter (1-4) and "YYYY-Qn" label for a
// date.
func Quarter(d time.Time) (year, quarter int, label string) {
	year = d.Year()
	quarter = (int(d.Month())-1)/3 + 1
	return year, quarter, strconv.Itoa(year) + "-Q" + strconv.Itoa(quarter)
}
