package academic

import "math"

// ComputeGPA aggregates graded credits into a grade point average rounded to
// two decimals. It returns nil when no credits are computable; an absent GPA
// is distinct from a GPA of 0.00. Entries with unknown letters are skipped.
func ComputeGPA(entries []GradedCredit) *float64 {
	var qualityPoints float64
	var creditTotal int

	for _, entry := range entries {
		point, ok := Points(entry.Grade)
		if !ok {
			continue
		}
		qualityPoints += point * float64(entry.CreditHours)
		creditTotal += entry.CreditHours
	}

	if creditTotal == 0 {
		return nil
	}

	gpa := roundHalfUp(qualityPoints / float64(creditTotal))
	return &gpa
}

// GradedCredit pairs a letter grade with the credit hours of its course.
type GradedCredit struct {
	Grade       string
	CreditHours int
}

// roundHalfUp rounds to two decimals with ties going up, matching
// conventional grade point reporting (3.625 reports as 3.63). GPA values are
// never negative so the floor form is sufficient.
func roundHalfUp(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}
