package vaccination

import "fmt"

// DefaultWaitingPeriodDays is how long after the final dose protection is
// considered established.
const DefaultWaitingPeriodDays = 14

const (
	msgComplete          = "Vaccination complete"
	msgSecondDoseMissing = "Vaccination incomplete, second dose missing"
	msgNoCompleted       = "Vaccination incomplete, no completed vaccinations found"
	msgUnknown           = "Vaccination status unknown"
)

// VerdictUnknown is reported when there is nothing to classify. Classify
// itself never returns it; callers use it for sessions without immunizations.
var VerdictUnknown = StatusVerdict{Color: ColorRed, Message: msgUnknown}

// ClassifyInput is everything the status decision depends on.
type ClassifyInput struct {
	Completed         int
	TwoDose           bool
	DaysSinceLatest   int
	WaitingPeriodDays int
}

// Classify turns completed-dose count, dose requirement and recency into a
// verdict. Entries whose requirement is unknown fall into the one-dose branch
// unless some completed dose is a two-dose product.
func Classify(in ClassifyInput) StatusVerdict {
	waiting := in.WaitingPeriodDays
	if waiting <= 0 {
		waiting = DefaultWaitingPeriodDays
	}

	switch {
	case in.TwoDose && in.Completed == 2:
		return completeVerdict(in.DaysSinceLatest, waiting)
	case in.TwoDose:
		return StatusVerdict{Color: ColorRed, Message: msgSecondDoseMissing}
	case in.Completed == 1:
		return completeVerdict(in.DaysSinceLatest, waiting)
	default:
		return StatusVerdict{Color: ColorRed, Message: msgNoCompleted}
	}
}

func completeVerdict(days, waiting int) StatusVerdict {
	if days < waiting {
		return StatusVerdict{Color: ColorYellow, Message: msgComplete + ", " + waitingMessage(waiting)}
	}
	return StatusVerdict{Color: ColorGreen, Message: msgComplete}
}

func waitingMessage(waiting int) string {
	if waiting == DefaultWaitingPeriodDays {
		return "less than two weeks since last dose"
	}
	return fmt.Sprintf("less than %d days since last dose", waiting)
}

// ClassifyImmunizations derives the classifier input from a validated
// immunization list. It reports false when the list is empty.
func ClassifyImmunizations(imms []Immunization, daysSinceLatest, waitingPeriodDays int) (StatusVerdict, bool) {
	if len(imms) == 0 {
		return StatusVerdict{}, false
	}
	in := ClassifyInput{DaysSinceLatest: daysSinceLatest, WaitingPeriodDays: waitingPeriodDays}
	for _, im := range imms {
		if !im.Completed() {
			continue
		}
		in.Completed++
		if RequiredDoses(im.VaccineCode) == DosesTwo {
			in.TwoDose = true
		}
	}
	return Classify(in), true
}
