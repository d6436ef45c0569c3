package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGradeLadderOrdering(t *testing.T) {
	ladder := GradeLevels()
	assert.Equal(t, GradeLevel("Nursery"), ladder[0])
	assert.Equal(t, GradeLevel("Grade 12"), ladder[len(ladder)-1])

	for i := 1; i < len(ladder); i++ {
		assert.True(t, ladder[i].AtLeast(ladder[i-1]), "%s should rank above %s", ladder[i], ladder[i-1])
		assert.False(t, ladder[i-1].AtLeast(ladder[i]))
	}
}

func TestGradeLevelAtLeastSelf(t *testing.T) {
	assert.True(t, GradeLevel("Grade 3").AtLeast("Grade 3"))
	assert.True(t, GradeLevel("Kinder 2").AtLeast("Kinder 1"))
	assert.False(t, GradeLevel("Grade 2").AtLeast("Grade 3"))
}

func TestGradeLevelUnknown(t *testing.T) {
	assert.False(t, GradeLevel("Grade 13").Valid())
	assert.Equal(t, -1, GradeLevel("Grade 13").Order())
}
