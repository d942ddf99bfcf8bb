// Package academic holds the pure grading primitives: the mark-to-letter
// scale, the grade point table and GPA aggregation. Nothing here touches
// storage; workflows and the standing engine feed it projections.
package academic

// gradeBand assigns a letter to every mark at or above Lower; each band's
// interval is closed below by the next band's threshold.
type gradeBand struct {
	Lower  float64
	Letter string
}

// Bands are ordered most selective first; the first match wins. The final
// F band is the fallback for anything below 40.
var gradeBands = []gradeBand{
	{90, "A+"},
	{85, "A"},
	{80, "A-"},
	{75, "B+"},
	{70, "B"},
	{65, "B-"},
	{60, "C+"},
	{50, "C"},
	{45, "C-"},
	{40, "D"},
}

// gradePoints is the fixed letter-to-point table used for GPA and CGPA.
var gradePoints = map[string]float64{
	"A+": 4.0,
	"A":  4.0,
	"A-": 3.75,
	"B+": 3.5,
	"B":  3.0,
	"B-": 2.75,
	"C+": 2.5,
	"C":  2.0,
	"C-": 1.75,
	"D":  1.0,
	"F":  0.0,
}

// Letter converts a numeric mark in [0, 100] to its letter grade. Marks of
// 90 and above map to A+; anything below 40 maps to F.
func Letter(mark float64) string {
	for _, band := range gradeBands {
		if mark >= band.Lower {
			return band.Letter
		}
	}
	return "F"
}

// Points returns the grade-point value for a letter grade. Unknown letters
// report ok=false and contribute nothing to GPA.
func Points(letter string) (float64, bool) {
	p, ok := gradePoints[letter]
	return p, ok
}
