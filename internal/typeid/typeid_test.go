package typeid

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCarriesPrefix(t *testing.T) {
	id := NewLayerID()
	assert.True(t, strings.HasPrefix(id, PrefixLayer+"_"))
	require.NoError(t, Validate(id, PrefixLayer))
}

func TestValidateRejectsWrongPrefix(t *testing.T) {
	err := Validate(NewVisualID(), PrefixAsset)
	assert.Error(t, err)
}

func TestValidateRejectsGarbage(t *testing.T) {
	assert.Error(t, Validate("not an id", PrefixVisual))
}
