package academic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeGPAEmptyIsAbsent(t *testing.T) {
	assert.Nil(t, ComputeGPA(nil))
	assert.Nil(t, ComputeGPA([]GradedCredit{}))
}

func TestComputeGPAZeroCreditsIsAbsent(t *testing.T) {
	// Credits of zero and unmapped letters both contribute nothing; the
	// result is absent, not 0.00.
	assert.Nil(t, ComputeGPA([]GradedCredit{{Grade: "A", CreditHours: 0}}))
	assert.Nil(t, ComputeGPA([]GradedCredit{{Grade: "??", CreditHours: 3}}))
}

func TestComputeGPAWeightedByCredits(t *testing.T) {
	// (4.0*4 + 3.5*3) / 7 = 3.7857... -> 3.79
	gpa := ComputeGPA([]GradedCredit{
		{Grade: "A", CreditHours: 4},
		{Grade: "B+", CreditHours: 3},
	})
	require.NotNil(t, gpa)
	assert.Equal(t, 3.79, *gpa)
}

func TestComputeGPAOrderInvariant(t *testing.T) {
	forward := []GradedCredit{
		{Grade: "A+", CreditHours: 3},
		{Grade: "C-", CreditHours: 2},
		{Grade: "B", CreditHours: 4},
		{Grade: "F", CreditHours: 3},
	}
	reversed := []GradedCredit{forward[3], forward[2], forward[1], forward[0]}

	a := ComputeGPA(forward)
	b := ComputeGPA(reversed)
	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.Equal(t, *a, *b)
}

func TestComputeGPARoundsHalfUp(t *testing.T) {
	// A (4.0) over 1 credit and B+ (3.5) over 3 credits: 14.5/4 = 3.625,
	// which must round up to 3.63, not to even.
	gpa := ComputeGPA([]GradedCredit{
		{Grade: "A", CreditHours: 1},
		{Grade: "B+", CreditHours: 3},
	})
	require.NotNil(t, gpa)
	assert.Equal(t, 3.63, *gpa)
}

func TestComputeGPAAllFailing(t *testing.T) {
	gpa := ComputeGPA([]GradedCredit{{Grade: "F", CreditHours: 6}})
	require.NotNil(t, gpa)
	assert.Equal(t, 0.0, *gpa)
}
