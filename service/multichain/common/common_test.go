package common

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cosmofolio/go-cosmofolio/service/persist"
)

func TestNormalizeTraits(t *testing.T) {
	a := assert.New(t)

	t.Run("maps trait_type and name onto one shape", func(t *testing.T) {
		got := NormalizeTraits([]RawTrait{
			{TraitType: "Background", Value: json.RawMessage(`"Nebula"`)},
			{Name: "Eyes", Value: json.RawMessage(`"Laser"`)},
		})
		a.Equal([]persist.Trait{
			{Name: "Background", Value: "Nebula"},
			{Name: "Eyes", Value: "Laser"},
		}, got)
	})

	t.Run("stringifies non-string values", func(t *testing.T) {
		got := NormalizeTraits([]RawTrait{
			{TraitType: "Generation", Value: json.RawMessage(`3`)},
		})
		a.Equal([]persist.Trait{{Name: "Generation", Value: "3"}}, got)
	})

	t.Run("drops nameless traits and empty input", func(t *testing.T) {
		a.Nil(NormalizeTraits(nil))
		a.Empty(NormalizeTraits([]RawTrait{{Value: json.RawMessage(`"orphan"`)}}))
	})
}
