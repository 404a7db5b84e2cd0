package rendercore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quadOBJ = `
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
f 1 2 3 4
`

func TestDecodeOBJTriangulatesAndDeduplicates(t *testing.T) {
	mesh, err := DecodeOBJ(strings.NewReader(quadOBJ), nil)
	require.NoError(t, err)

	// One quad becomes two triangles sharing vertices.
	assert.Len(t, mesh.Vertices, 4)
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, mesh.Indices)
}

func TestDecodeOBJRejectsEmptyGeometry(t *testing.T) {
	_, err := DecodeOBJ(strings.NewReader("v 0 0 0\n"), nil)
	assert.Error(t, err)
}
