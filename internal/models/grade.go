package models

// GradeLevel is a named grade in the fixed school ladder.
type GradeLevel string

// gradeLadder fixes the total ordering used to forbid regression on
// re-enrollment. Index position is the grade's order.
var gradeLadder = []GradeLevel{
	"Nursery",
	"Kinder 1",
	"Kinder 2",
	"Grade 1",
	"Grade 2",
	"Grade 3",
	"Grade 4",
	"Grade 5",
	"Grade 6",
	"Grade 7",
	"Grade 8",
	"Grade 9",
	"Grade 10",
	"Grade 11",
	"Grade 12",
}

var gradeOrder = func() map[GradeLevel]int {
	m := make(map[GradeLevel]int, len(gradeLadder))
	for i, g := range gradeLadder {
		m[g] = i
	}
	return m
}()

// GradeLevels returns the ladder from lowest to highest.
func GradeLevels() []GradeLevel {
	out := make([]GradeLevel, len(gradeLadder))
	copy(out, gradeLadder)
	return out
}

// Valid reports whether the grade level is part of the ladder.
func (g GradeLevel) Valid() bool {
	_, ok := gradeOrder[g]
	return ok
}

// Order returns the grade's position in the ladder, -1 when unknown.
func (g GradeLevel) Order() int {
	if pos, ok := gradeOrder[g]; ok {
		return pos
	}
	return -1
}

// AtLeast reports whether g is equal to or higher than other.
func (g GradeLevel) AtLeast(other GradeLevel) bool {
	return g.Order() >= other.Order()
}
