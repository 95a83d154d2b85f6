package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuild_InterpolatesAllParameters(t *testing.T) {
	out := Build("Boutique de tissus, ouverte 9h-18h", "Chez Awa", "+221770000000")

	assert.True(t, strings.Contains(out, "Chez Awa"))
	assert.True(t, strings.Contains(out, "Boutique de tissus, ouverte 9h-18h"))
	assert.True(t, strings.Contains(out, "+221770000000"))
}

func TestBuild_Stable(t *testing.T) {
	a := Build("ctx", "co", "num")
	b := Build("ctx", "co", "num")
	assert.Equal(t, a, b)
}
