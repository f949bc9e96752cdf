package vaccination

import (
	"fmt"

	"github.com/golang-sql/civil"
)

// DaysSinceLatestDose returns the number of days between the most recent dose
// and today. It reports false when there are no immunizations.
//
// A non-empty set in which no occurrence resolves is rejected by Validate with
// ErrUndatedImmunizations; reaching it here panics.
func DaysSinceLatestDose(imms []Immunization, today civil.Date) (int, bool) {
	if len(imms) == 0 {
		return 0, false
	}
	latest, ok := LatestDate(imms)
	if !ok {
		panic(fmt.Errorf("%w: %d immunizations", ErrNoResolvableOccurrence, len(imms)))
	}
	return today.DaysSince(latest), true
}
