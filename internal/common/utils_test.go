package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitList(t *testing.T) {
	assert.Nil(t, SplitList(""))
	assert.Nil(t, SplitList(" , ,"))
	assert.Equal(t, []string{"UT", "CO"}, SplitList(" UT, ,CO "))
}

func TestTitleWords(t *testing.T) {
	cases := map[string]string{
		"john smith":      "John Smith",
		"mary ann o'hara": "Mary Ann O'hara",
		"élodie durand":   "Élodie Durand",
		"":                "",
		"a  b":            "A  B",
	}
	for in, want := range cases {
		assert.Equal(t, want, TitleWords(in), "input %q", in)
	}
}
