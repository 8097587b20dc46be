// Package seed loads YAML fixtures describing postings and engagements
// and drives them through the domain services. Seeded data takes the
// same locks, guards, and ledger recording as production traffic, so a
// seeded database is indistinguishable from one built by real requests.
package seed

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	"github.com/praktika-foundation/server/internal/domain/applications"
	"github.com/praktika-foundation/server/internal/domain/evidence"
	"github.com/praktika-foundation/server/internal/domain/opportunities"
)

// Fixture is the root of a seed file. Opportunities are keyed by a
// fixture-local name that applications reference; real IDs are minted
// at apply time, so the same file can be applied repeatedly.
type Fixture struct {
	Opportunities []OpportunityFixture `json:"opportunities"`
	Applications  []ApplicationFixture `json:"applications,omitempty"`
}

// OpportunityFixture describes one posting. Status names the state the
// posting should end in; empty means OPEN so applications can target it
// without ceremony.
type OpportunityFixture struct {
	Key           string `json:"key"`
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	EmployerID    string `json:"employer_id,omitempty"`
	InstitutionID string `json:"institution_id,omitempty"`
	Status        string `json:"status,omitempty"`
}

// ApplicationFixture describes one engagement. Status names the state
// it should end in; the seeder walks the canonical path to get there.
// Empty means APPLIED.
type ApplicationFixture struct {
	Opportunity       string            `json:"opportunity"`
	StudentID         string            `json:"student_id"`
	Status            string            `json:"status,omitempty"`
	Evidence          []EvidenceFixture `json:"evidence,omitempty"`
	Feedback          *FeedbackFixture  `json:"feedback,omitempty"`
	TerminationReason string            `json:"termination_reason,omitempty"`
}

// EvidenceFixture is one submitted artifact plus the verdicts each
// party records on it. Empty verdicts mean that party never reviews.
type EvidenceFixture struct {
	Title              string `json:"title"`
	AttachmentURL      string `json:"attachment_url,omitempty"`
	EmployerVerdict    string `json:"employer_verdict,omitempty"`
	InstitutionVerdict string `json:"institution_verdict,omitempty"`
}

// FeedbackFixture is the student's one-time rating on a finished
// engagement.
type FeedbackFixture struct {
	Rating   int    `json:"rating"`
	Comments string `json:"comments,omitempty"`
}

// Load reads and parses the fixture file at path.
func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return Parse(data)
}

// Parse decodes a fixture and validates it statically, so a bad file
// fails before the first row is written. It checks reference integrity
// and replays the completion rules the services will enforce: a target
// that needs certification needs an institution party, and a target
// past COMPLETED needs evidence that settles with at least one
// acceptance.
func Parse(data []byte) (*Fixture, error) {
	var fx Fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}

	byKey := make(map[string]OpportunityFixture, len(fx.Opportunities))
	for i := range fx.Opportunities {
		o := &fx.Opportunities[i]
		if o.Status == "" {
			o.Status = string(opportunities.StatusOpen)
		}
		if err := validateOpportunity(*o); err != nil {
			return nil, err
		}
		if _, dup := byKey[o.Key]; dup {
			return nil, fmt.Errorf("opportunity %q: duplicate key", o.Key)
		}
		byKey[o.Key] = *o
	}

	seen := make(map[string]struct{}, len(fx.Applications))
	for i := range fx.Applications {
		a := &fx.Applications[i]
		if a.Status == "" {
			a.Status = string(applications.StatusApplied)
		}
		o, ok := byKey[a.Opportunity]
		if !ok {
			return nil, fmt.Errorf("application for %q: unknown opportunity key", a.Opportunity)
		}
		if err := validateApplication(*a, o); err != nil {
			return nil, err
		}
		pair := a.Opportunity + "\x00" + a.StudentID
		if _, dup := seen[pair]; dup {
			return nil, fmt.Errorf("application for %q: student %s applies twice", a.Opportunity, a.StudentID)
		}
		seen[pair] = struct{}{}
	}

	return &fx, nil
}

func validateOpportunity(o OpportunityFixture) error {
	if o.Key == "" {
		return fmt.Errorf("opportunity %q: key is required", o.Title)
	}
	if o.Title == "" {
		return fmt.Errorf("opportunity %q: title is required", o.Key)
	}
	if o.EmployerID == "" && o.InstitutionID == "" {
		return fmt.Errorf("opportunity %q: at least one of employer_id and institution_id is required", o.Key)
	}
	switch opportunities.Status(o.Status) {
	case opportunities.StatusDraft, opportunities.StatusOpen, opportunities.StatusClosed:
	default:
		return fmt.Errorf("opportunity %q: unknown status %q", o.Key, o.Status)
	}
	return nil
}

func validateApplication(a ApplicationFixture, o OpportunityFixture) error {
	target := applications.Status(a.Status)
	if !knownApplicationStatus(target) {
		return fmt.Errorf("application for %q: unknown status %q", a.Opportunity, a.Status)
	}
	if a.StudentID == "" {
		return fmt.Errorf("application for %q: student_id is required", a.Opportunity)
	}
	if opportunities.Status(o.Status) == opportunities.StatusDraft {
		return fmt.Errorf("application for %q: posting never opens, nobody can apply", a.Opportunity)
	}

	if len(a.Evidence) > 0 && !reachesActive(target) {
		return fmt.Errorf("application for %q: evidence needs a target of ACTIVE or beyond, got %s", a.Opportunity, target)
	}
	for _, ev := range a.Evidence {
		if err := validateEvidence(ev, a.Opportunity, o); err != nil {
			return err
		}
	}

	if target == applications.StatusCertified && o.InstitutionID == "" {
		return fmt.Errorf("application for %q: certification needs an institution party on the posting", a.Opportunity)
	}
	if target == applications.StatusCompleted || target == applications.StatusCertified {
		if err := validateCompletion(a, o); err != nil {
			return err
		}
	}

	if a.Feedback != nil {
		if target != applications.StatusCompleted && target != applications.StatusCertified {
			return fmt.Errorf("application for %q: feedback needs a COMPLETED or CERTIFIED target, got %s", a.Opportunity, target)
		}
		if a.Feedback.Rating < 1 || a.Feedback.Rating > 5 {
			return fmt.Errorf("application for %q: feedback rating %d is out of range 1..5", a.Opportunity, a.Feedback.Rating)
		}
	}
	if a.TerminationReason != "" && target != applications.StatusTerminated {
		return fmt.Errorf("application for %q: termination_reason needs a TERMINATED target, got %s", a.Opportunity, target)
	}
	return nil
}

func validateEvidence(ev EvidenceFixture, key string, o OpportunityFixture) error {
	if ev.Title == "" {
		return fmt.Errorf("application for %q: evidence title is required", key)
	}
	for _, v := range []string{ev.EmployerVerdict, ev.InstitutionVerdict} {
		if v != "" && !evidence.ValidVerdict(evidence.Verdict(v)) {
			return fmt.Errorf("application for %q: unknown verdict %q on evidence %q", key, v, ev.Title)
		}
	}
	if ev.EmployerVerdict != "" && o.EmployerID == "" {
		return fmt.Errorf("application for %q: employer_verdict on evidence %q but the posting has no employer", key, ev.Title)
	}
	if ev.InstitutionVerdict != "" && o.InstitutionID == "" {
		return fmt.Errorf("application for %q: institution_verdict on evidence %q but the posting has no institution", key, ev.Title)
	}
	return nil
}

// validateCompletion replays the completion guard over the fixture's
// verdicts: every evidence record must settle and at least one must
// settle accepted, or the seeder would stall at ACTIVE.
func validateCompletion(a ApplicationFixture, o OpportunityFixture) error {
	if len(a.Evidence) == 0 {
		return fmt.Errorf("application for %q: a %s target needs at least one accepted evidence record", a.Opportunity, a.Status)
	}
	accepted := false
	for _, ev := range a.Evidence {
		status := evidence.Aggregate(
			verdictPtr(ev.EmployerVerdict),
			verdictPtr(ev.InstitutionVerdict),
			o.EmployerID != "",
			o.InstitutionID != "",
		)
		if !status.Settled() {
			return fmt.Errorf("application for %q: evidence %q settles as %s, which blocks completion", a.Opportunity, ev.Title, status)
		}
		if status == evidence.StatusAccepted {
			accepted = true
		}
	}
	if !accepted {
		return fmt.Errorf("application for %q: no evidence settles accepted, which blocks completion", a.Opportunity)
	}
	return nil
}

func verdictPtr(v string) *evidence.Verdict {
	if v == "" {
		return nil
	}
	verdict := evidence.Verdict(v)
	return &verdict
}

func knownApplicationStatus(s applications.Status) bool {
	switch s {
	case applications.StatusApplied, applications.StatusShortlisted,
		applications.StatusAccepted, applications.StatusActive,
		applications.StatusCompleted, applications.StatusCertified,
		applications.StatusRejected, applications.StatusTerminated:
		return true
	}
	return false
}

func reachesActive(s applications.Status) bool {
	switch s {
	case applications.StatusActive, applications.StatusCompleted, applications.StatusCertified:
		return true
	}
	return false
}
