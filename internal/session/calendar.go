package session

import "time"

// US equity exchange holiday calendar. Rules only, no lookup tables, so any
// year works: fixed-date holidays shift Sat->Fri / Sun->Mon when observed,
// floating holidays count weekdays, Good Friday derives from Easter.

// isMarketHoliday reports whether the exchange is closed on the given
// calendar date (weekends are handled separately).
func isMarketHoliday(d time.Time) bool {
	y, m, day := d.Date()

	switch m {
	case time.January:
		if day == observedDay(y, time.January, 1) {
			return true // New Year's Day
		}
		if day == nthWeekday(y, time.January, time.Monday, 3) {
			return true // Martin Luther King Jr. Day
		}
	case time.February:
		if day == nthWeekday(y, time.February, time.Monday, 3) {
			return true // Washington's Birthday
		}
	case time.May:
		if day == lastWeekday(y, time.May, time.Monday) {
			return true // Memorial Day
		}
	case time.June:
		if y >= 2022 && day == observedDay(y, time.June, 19) {
			return true // Juneteenth
		}
	case time.July:
		if day == observedDay(y, time.July, 4) {
			return true // Independence Day
		}
	case time.September:
		if day == nthWeekday(y, time.September, time.Monday, 1) {
			return true // Labor Day
		}
	case time.November:
		if day == nthWeekday(y, time.November, time.Thursday, 4) {
			return true // Thanksgiving
		}
	case time.December:
		if day == observedDay(y, time.December, 25) {
			return true // Christmas
		}
	}

	// Good Friday falls in March or April
	gf := goodFriday(y)
	return gf.Month() == m && gf.Day() == day
}

// observedDay returns the day-of-month a fixed holiday is observed on:
// Saturday holidays move to Friday, Sunday holidays to Monday.
func observedDay(year int, month time.Month, day int) int {
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	switch d.Weekday() {
	case time.Saturday:
		return day - 1
	case time.Sunday:
		return day + 1
	default:
		return day
	}
}

// nthWeekday returns the day-of-month of the nth given weekday.
func nthWeekday(year int, month time.Month, weekday time.Weekday, n int) int {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(weekday) - int(first.Weekday()) + 7) % 7
	return 1 + offset + (n-1)*7
}

// lastWeekday returns the day-of-month of the last given weekday.
func lastWeekday(year int, month time.Month, weekday time.Weekday) int {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC) // last day of month
	offset := (int(last.Weekday()) - int(weekday) + 7) % 7
	return last.Day() - offset
}

// goodFriday returns the date two days before Easter Sunday, using the
// anonymous Gregorian computus.
func goodFriday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1

	easter := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return easter.AddDate(0, 0, -2)
}
