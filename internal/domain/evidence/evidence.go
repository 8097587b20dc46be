// Package evidence manages the work artifacts a student submits during an
// active engagement and the independent reviews the employer and institution
// record against them. Each evidence record carries two verdict slots, one
// per party, and a derived status that is always a pure function of those
// slots and which parties exist on the application. The application
// lifecycle consults that derived status before allowing completion.
package evidence

import "time"

// Verdict is one party's review of a single evidence record.
type Verdict string

const (
	VerdictAccepted         Verdict = "ACCEPTED"
	VerdictRejected         Verdict = "REJECTED"
	VerdictRevisionRequired Verdict = "REVISION_REQUIRED"
	// VerdictReviewed marks the submission as seen without settling it.
	VerdictReviewed Verdict = "REVIEWED"
)

// Verdicts lists every value a reviewing party may record.
var Verdicts = []Verdict{VerdictAccepted, VerdictRejected, VerdictRevisionRequired, VerdictReviewed}

// ValidVerdict reports whether v is one of the recordable verdicts.
func ValidVerdict(v Verdict) bool {
	for _, known := range Verdicts {
		if v == known {
			return true
		}
	}
	return false
}

// Status is the authoritative state of an evidence record, derived from the
// two verdict slots by Aggregate and never set directly.
type Status string

const (
	StatusSubmitted        Status = "SUBMITTED"
	StatusReviewed         Status = "REVIEWED"
	StatusAccepted         Status = "ACCEPTED"
	StatusRejected         Status = "REJECTED"
	StatusRevisionRequired Status = "REVISION_REQUIRED"
)

// Settled reports whether s needs no further party action. Unsettled
// evidence blocks application completion.
func (s Status) Settled() bool {
	return s == StatusAccepted || s == StatusRejected
}

// Party names a reviewing side of an engagement.
type Party string

const (
	PartyEmployer    Party = "employer"
	PartyInstitution Party = "institution"
)

// Evidence is one submitted artifact and its review state.
type Evidence struct {
	ID                 string
	ApplicationID      string
	Title              string
	AttachmentURL      *string
	EmployerVerdict    *Verdict
	InstitutionVerdict *Verdict
	Status             Status
	SubmittedAt        time.Time
	UpdatedAt          time.Time
}

// Tally counts an application's evidence by settlement. The completion
// guard requires at least one accepted record and zero unsettled ones.
type Tally struct {
	Accepted int
	// Unsettled counts evidence still in SUBMITTED, REVIEWED, or
	// REVISION_REQUIRED.
	Unsettled int
}
