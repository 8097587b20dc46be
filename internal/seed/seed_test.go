package seed

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praktika-foundation/server/internal/domain/applications"
)

const demoFixture = `
opportunities:
  - key: summer-lab
    title: Summer research assistant
    description: Twelve weeks in the materials lab.
    employer_id: emp-acme
    institution_id: inst-tu
  - key: archive-digitization
    title: Archive digitization internship
    institution_id: inst-tu
    status: CLOSED
applications:
  - opportunity: summer-lab
    student_id: stu-ana
    status: CERTIFIED
    evidence:
      - title: Midterm report
        attachment_url: https://files.example.org/midterm.pdf
        employer_verdict: ACCEPTED
        institution_verdict: ACCEPTED
      - title: Final presentation
        employer_verdict: ACCEPTED
        institution_verdict: ACCEPTED
    feedback:
      rating: 5
      comments: Learned more than in any course.
  - opportunity: summer-lab
    student_id: stu-bo
    status: REJECTED
  - opportunity: archive-digitization
    student_id: stu-ana
`

func TestParse(t *testing.T) {
	fx, err := Parse([]byte(demoFixture))
	require.NoError(t, err)

	require.Len(t, fx.Opportunities, 2)
	assert.Equal(t, "OPEN", fx.Opportunities[0].Status, "empty status defaults to OPEN")
	assert.Equal(t, "CLOSED", fx.Opportunities[1].Status)
	assert.Equal(t, "emp-acme", fx.Opportunities[0].EmployerID)

	require.Len(t, fx.Applications, 3)
	assert.Equal(t, "CERTIFIED", fx.Applications[0].Status)
	assert.Equal(t, "APPLIED", fx.Applications[2].Status, "empty status defaults to APPLIED")
	require.Len(t, fx.Applications[0].Evidence, 2)
	require.NotNil(t, fx.Applications[0].Feedback)
	assert.Equal(t, 5, fx.Applications[0].Feedback.Rating)
}

func TestParseRejectsInvalidFixtures(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "duplicate opportunity key",
			yaml: `
opportunities:
  - key: lab
    title: One
    employer_id: emp-1
  - key: lab
    title: Two
    employer_id: emp-1
`,
			wantErr: "duplicate key",
		},
		{
			name: "missing title",
			yaml: `
opportunities:
  - key: lab
    employer_id: emp-1
`,
			wantErr: "title is required",
		},
		{
			name: "no parties",
			yaml: `
opportunities:
  - key: lab
    title: Lab
`,
			wantErr: "at least one of employer_id and institution_id",
		},
		{
			name: "unknown opportunity status",
			yaml: `
opportunities:
  - key: lab
    title: Lab
    employer_id: emp-1
    status: ARCHIVED
`,
			wantErr: `unknown status "ARCHIVED"`,
		},
		{
			name: "unresolved opportunity reference",
			yaml: `
opportunities:
  - key: lab
    title: Lab
    employer_id: emp-1
applications:
  - opportunity: warehouse
    student_id: stu-1
`,
			wantErr: "unknown opportunity key",
		},
		{
			name: "application against a draft posting",
			yaml: `
opportunities:
  - key: lab
    title: Lab
    employer_id: emp-1
    status: DRAFT
applications:
  - opportunity: lab
    student_id: stu-1
`,
			wantErr: "posting never opens",
		},
		{
			name: "missing student",
			yaml: `
opportunities:
  - key: lab
    title: Lab
    employer_id: emp-1
applications:
  - opportunity: lab
`,
			wantErr: "student_id is required",
		},
		{
			name: "unknown application status",
			yaml: `
opportunities:
  - key: lab
    title: Lab
    employer_id: emp-1
applications:
  - opportunity: lab
    student_id: stu-1
    status: PAUSED
`,
			wantErr: `unknown status "PAUSED"`,
		},
		{
			name: "same student applies twice",
			yaml: `
opportunities:
  - key: lab
    title: Lab
    employer_id: emp-1
applications:
  - opportunity: lab
    student_id: stu-1
  - opportunity: lab
    student_id: stu-1
`,
			wantErr: "applies twice",
		},
		{
			name: "evidence before the engagement can be active",
			yaml: `
opportunities:
  - key: lab
    title: Lab
    employer_id: emp-1
applications:
  - opportunity: lab
    student_id: stu-1
    status: SHORTLISTED
    evidence:
      - title: Report
`,
			wantErr: "evidence needs a target of ACTIVE or beyond",
		},
		{
			name: "evidence without a title",
			yaml: `
opportunities:
  - key: lab
    title: Lab
    employer_id: emp-1
applications:
  - opportunity: lab
    student_id: stu-1
    status: ACTIVE
    evidence:
      - attachment_url: https://example.org/a.pdf
`,
			wantErr: "evidence title is required",
		},
		{
			name: "unknown verdict",
			yaml: `
opportunities:
  - key: lab
    title: Lab
    employer_id: emp-1
applications:
  - opportunity: lab
    student_id: stu-1
    status: ACTIVE
    evidence:
      - title: Report
        employer_verdict: MAYBE
`,
			wantErr: `unknown verdict "MAYBE"`,
		},
		{
			name: "employer verdict without an employer party",
			yaml: `
opportunities:
  - key: lab
    title: Lab
    institution_id: inst-1
applications:
  - opportunity: lab
    student_id: stu-1
    status: ACTIVE
    evidence:
      - title: Report
        employer_verdict: ACCEPTED
`,
			wantErr: "no employer",
		},
		{
			name: "certification without an institution party",
			yaml: `
opportunities:
  - key: lab
    title: Lab
    employer_id: emp-1
applications:
  - opportunity: lab
    student_id: stu-1
    status: CERTIFIED
    evidence:
      - title: Report
        employer_verdict: ACCEPTED
`,
			wantErr: "needs an institution party",
		},
		{
			name: "completion without evidence",
			yaml: `
opportunities:
  - key: lab
    title: Lab
    employer_id: emp-1
applications:
  - opportunity: lab
    student_id: stu-1
    status: COMPLETED
`,
			wantErr: "at least one accepted evidence record",
		},
		{
			name: "completion blocked by unsettled evidence",
			yaml: `
opportunities:
  - key: lab
    title: Lab
    employer_id: emp-1
    institution_id: inst-1
applications:
  - opportunity: lab
    student_id: stu-1
    status: COMPLETED
    evidence:
      - title: Report
        employer_verdict: ACCEPTED
        institution_verdict: REVIEWED
`,
			wantErr: "blocks completion",
		},
		{
			name: "completion with only rejected evidence",
			yaml: `
opportunities:
  - key: lab
    title: Lab
    employer_id: emp-1
applications:
  - opportunity: lab
    student_id: stu-1
    status: COMPLETED
    evidence:
      - title: Report
        employer_verdict: REJECTED
`,
			wantErr: "no evidence settles accepted",
		},
		{
			name: "feedback before completion",
			yaml: `
opportunities:
  - key: lab
    title: Lab
    employer_id: emp-1
applications:
  - opportunity: lab
    student_id: stu-1
    status: ACTIVE
    feedback:
      rating: 4
`,
			wantErr: "feedback needs a COMPLETED or CERTIFIED target",
		},
		{
			name: "feedback rating out of range",
			yaml: `
opportunities:
  - key: lab
    title: Lab
    employer_id: emp-1
applications:
  - opportunity: lab
    student_id: stu-1
    status: COMPLETED
    evidence:
      - title: Report
        employer_verdict: ACCEPTED
    feedback:
      rating: 6
`,
			wantErr: "out of range",
		},
		{
			name: "termination reason without a terminated target",
			yaml: `
opportunities:
  - key: lab
    title: Lab
    employer_id: emp-1
applications:
  - opportunity: lab
    student_id: stu-1
    termination_reason: withdrew
`,
			wantErr: "termination_reason needs a TERMINATED target",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("opportunities: [broken"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse fixture")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.yaml")
	require.NoError(t, os.WriteFile(path, []byte(demoFixture), 0o600))

	fx, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, fx.Opportunities, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestProgressionPath(t *testing.T) {
	tests := []struct {
		target applications.Status
		want   []applications.Status
	}{
		{applications.StatusApplied, nil},
		{applications.StatusRejected, []applications.Status{applications.StatusRejected}},
		{applications.StatusTerminated, []applications.Status{applications.StatusTerminated}},
		{applications.StatusShortlisted, []applications.Status{applications.StatusShortlisted}},
		{applications.StatusActive, []applications.Status{
			applications.StatusShortlisted, applications.StatusAccepted, applications.StatusActive,
		}},
		{applications.StatusCertified, []applications.Status{
			applications.StatusShortlisted, applications.StatusAccepted, applications.StatusActive,
			applications.StatusCompleted, applications.StatusCertified,
		}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, progressionPath(tt.target), "target %s", tt.target)
	}
}

func TestPartyActor(t *testing.T) {
	both := OpportunityFixture{EmployerID: "emp-1", InstitutionID: "inst-1"}
	assert.Equal(t, "emp-1", partyActor(both).ID, "employer acts when present")
	assert.Equal(t, "employer", partyActor(both).Role)

	instOnly := OpportunityFixture{InstitutionID: "inst-1"}
	assert.Equal(t, "inst-1", partyActor(instOnly).ID, "institution acts when there is no employer")
	assert.Equal(t, "institution", partyActor(instOnly).Role)
}
