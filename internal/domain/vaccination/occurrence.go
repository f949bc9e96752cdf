package vaccination

import "github.com/golang-sql/civil"

// ResolveDate reduces an occurrence to a calendar date. Timestamps are
// truncated in their own offset. Text occurrences do not resolve.
func ResolveDate(o Occurrence) (civil.Date, bool) {
	switch o.kind {
	case OccurrenceDate:
		return o.date, true
	case OccurrenceDateTime:
		return civil.DateOf(o.instant), true
	default:
		return civil.Date{}, false
	}
}

// LatestDate returns the most recent resolvable occurrence date. Entries
// without a resolvable occurrence are skipped.
func LatestDate(imms []Immunization) (civil.Date, bool) {
	var latest civil.Date
	found := false
	for _, im := range imms {
		d, ok := ResolveDate(im.Occurrence)
		if !ok {
			continue
		}
		if !found || d.After(latest) {
			latest = d
			found = true
		}
	}
	return latest, found
}
