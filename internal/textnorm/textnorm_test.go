package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFold_Lowercases(t *testing.T) {
	assert.Equal(t, "30 rosii", Fold("30 ROSII"))
	assert.Equal(t, "alb", Fold("Alb"))
}

func TestFold_StripsDiacritics(t *testing.T) {
	assert.Equal(t, "rosu", Fold("Roșu"))
	assert.Equal(t, "rosii", Fold("roșii"))
	assert.Equal(t, "marimea", Fold("mărimea"))
	assert.Equal(t, "tinuta", Fold("ținută"))
	assert.Equal(t, "incaltaminte", Fold("încălțăminte"))
}

func TestFold_LegacyCedillaForms(t *testing.T) {
	// U+015F and U+0163 (cedilla) appear in older Romanian encodings
	// alongside the correct comma-below forms.
	assert.Equal(t, "s", Fold("ş"))
	assert.Equal(t, "t", Fold("ţ"))
}

func TestFold_Empty(t *testing.T) {
	assert.Equal(t, "", Fold(""))
}

func TestFold_PassesThroughASCII(t *testing.T) {
	assert.Equal(t, "10 m, 20 l si restul xl", Fold("10 M, 20 L si restul XL"))
}

func TestFold_Idempotent(t *testing.T) {
	inputs := []string{"Roșu", "mărimea XL", "Ţesătură", "plain ascii"}
	for _, in := range inputs {
		once := Fold(in)
		assert.Equal(t, once, Fold(once), "Fold should be idempotent for %q", in)
	}
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal("Roșu", "rosu"))
	assert.True(t, Equal("ALB", "alb"))
	assert.False(t, Equal("Alb", "Albastru"))
}
