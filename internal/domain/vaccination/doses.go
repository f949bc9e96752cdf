package vaccination

// DoseRequirement is how many administrations a product needs to count as a
// complete series.
type DoseRequirement int

const (
	DosesUnknown DoseRequirement = iota
	DosesOne
	DosesTwo
)

func (d DoseRequirement) String() string {
	switch d {
	case DosesOne:
		return "one"
	case DosesTwo:
		return "two"
	default:
		return "unknown"
	}
}

// Bool maps the requirement to true for two-dose, false for one-dose and nil
// when unknown.
func (d DoseRequirement) Bool() *bool {
	switch d {
	case DosesOne:
		v := false
		return &v
	case DosesTwo:
		v := true
		return &v
	default:
		return nil
	}
}

// twoDoseProducts are the mRNA products given as a two-dose primary series.
var twoDoseProducts = map[Coding]bool{
	{System: CVXSystem, Code: "207"}: true, // Moderna
	{System: CVXSystem, Code: "208"}: true, // Pfizer-BioNTech
}

// RequiredDoses infers the dose requirement from a vaccine code. Only a code
// with exactly one coding is classified; any other single coding is assumed
// to be a one-dose product.
func RequiredDoses(code VaccineCode) DoseRequirement {
	if len(code.Codings) != 1 {
		return DosesUnknown
	}
	if twoDoseProducts[code.Codings[0]] {
		return DosesTwo
	}
	return DosesOne
}
