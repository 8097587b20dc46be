package evidence

// Aggregate derives the authoritative status of an evidence record from its
// two verdict slots and which parties the application actually has. A nil
// verdict means the party has not reviewed. Precedence, evaluated in order:
//
//  1. Either party rejected: REJECTED. One objection blocks acceptance
//     regardless of the other slot.
//  2. Either party asked for revision: REVISION_REQUIRED.
//  3. Every required party accepted: ACCEPTED. A party the application does
//     not have is not required, so its empty slot does not block.
//  4. Any verdict recorded at all: REVIEWED.
//  5. Nothing recorded: SUBMITTED.
//
// The function is pure; callers persist the result as Evidence.Status every
// time either slot changes.
func Aggregate(employer, institution *Verdict, hasEmployer, hasInstitution bool) Status {
	if is(employer, VerdictRejected) || is(institution, VerdictRejected) {
		return StatusRejected
	}
	if is(employer, VerdictRevisionRequired) || is(institution, VerdictRevisionRequired) {
		return StatusRevisionRequired
	}

	employerOK := !hasEmployer || is(employer, VerdictAccepted)
	institutionOK := !hasInstitution || is(institution, VerdictAccepted)
	if employerOK && institutionOK {
		return StatusAccepted
	}

	if employer != nil || institution != nil {
		return StatusReviewed
	}
	return StatusSubmitted
}

func is(v *Verdict, want Verdict) bool {
	return v != nil && *v == want
}
