package ledger

import "time"

// DayBounds returns the first and last millisecond of t's calendar day in
// loc: 00:00:00.000 and 23:59:59.999. A nil loc uses t's own location.
func DayBounds(t time.Time, loc *time.Location) (start, end time.Time) {
	if loc != nil {
		t = t.In(loc)
	}
	y, m, d := t.Date()
	start = time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	end = time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
	return start, end
}
