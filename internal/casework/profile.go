// File: internal/casework/profile.go
package casework

import "fmt"

// FindingsLayout describes how the findings page is laid out for a variant.
type FindingsLayout int

const (
	// LayoutPerItem has one "Normal" selector per finding plus the fixed
	// TB evidence and TB suspicion selectors.
	LayoutPerItem FindingsLayout = iota
	// LayoutAggregate has a single "Normal" selector next to the "Findings" label.
	LayoutAggregate
)

func (l FindingsLayout) String() string {
	switch l {
	case LayoutPerItem:
		return "per-item"
	case LayoutAggregate:
		return "aggregate"
	default:
		return fmt.Sprintf("FindingsLayout(%d)", int(l))
	}
}

// Labels and markers shared by every variant of the 502 chest X-ray exam.
const (
	MarkerCaseSearch   = "Case search"
	MarkerSelect       = "Select:"
	MarkerCaseDetails  = "Pre exam: Health case details"
	MarkerReview       = "502 Chest X-Ray Examination: Review exam details"
	MarkerDeclaration  = "Examiner declaration"
	MarkerSubmitted    = "Success"
	MarkerSpecial      = "Special findings"
	ExamLink           = "502 Chest X-Ray Examination"
	DeclarationCheck   = "I declare that the chest X-ray examination report is a true and correct record of my findings."
	GradeA             = "A - No evidence of active TB, or changes consistent with old or inactive TB, or changes suggestive of other significant diseases identified."
	SpecialNone        = "None of the following are present"
	TBSuspicionText    = "7. Are there strong suspicions of active Tuberculosis (TB)?"
	TBSuspicionUnset   = "Not selected"
	TBSuspicionNo      = "No"
	TBEvidenceAbsent   = "Absent"
	FindingNormal      = "Normal"
	SearchByIdentifier = "Using Health Case Identifier"
)

// CountryProfile is the immutable description of one country's step sequence.
type CountryProfile struct {
	Country Country

	// FindingsLink is the text clicked to open the findings page.
	FindingsLink string
	// FindingsMarker appears once the findings page has loaded.
	FindingsMarker string
	Layout         FindingsLayout

	// SpecialFindings adds the "Special findings" page after findings entry.
	SpecialFindings bool

	// GateTerm is the wording of the pre-submission gate ("grading" or "declaration").
	GateTerm string
	// GateMarker appears once the gate page has loaded.
	GateMarker string
	// PrepareButton is clicked on the gate page when present and enabled.
	PrepareButton string

	// RequiresGrade selects the "A" grade on the declaration page.
	RequiresGrade bool
}

var (
	detailed = CountryProfile{
		FindingsLink:   "Detailed radiology findings",
		FindingsMarker: "Detailed question",
		Layout:         LayoutPerItem,
		GateTerm:       "grading",
		GateMarker:     "502 Chest X-Ray Examination: Grading & Examiner Declaration",
		PrepareButton:  "Prepare for grading",
		RequiresGrade:  true,
	}

	profiles = map[Country]CountryProfile{
		CountryAU: withCountry(detailed, CountryAU),
		CountryNZ: withCountry(detailed, CountryNZ),
		CountryCA: func() CountryProfile {
			p := withCountry(detailed, CountryCA)
			p.SpecialFindings = true
			return p
		}(),
		CountryUS: {
			Country:        CountryUS,
			FindingsLink:   "Findings",
			FindingsMarker: "502 Chest X-Ray Examination: Findings",
			Layout:         LayoutAggregate,
			GateTerm:       "declaration",
			GateMarker:     "502 Chest X-Ray Examination: Examiner Declaration",
			PrepareButton:  "Prepare for declaration",
		},
	}
)

func withCountry(p CountryProfile, c Country) CountryProfile {
	p.Country = c
	return p
}

// ProfileFor returns the profile for a country. The boolean is false for
// CountryUnknown or any country without a declared profile.
func ProfileFor(c Country) (CountryProfile, bool) {
	p, ok := profiles[c]
	return p, ok
}

// Profiles returns every declared profile in a stable order.
func Profiles() []CountryProfile {
	order := []Country{CountryAU, CountryNZ, CountryCA, CountryUS}
	out := make([]CountryProfile, 0, len(order))
	for _, c := range order {
		out = append(out, profiles[c])
	}
	return out
}
