package rendercore

import (
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/g3n/engine/loader/obj"
	"github.com/go-gl/mathgl/mgl32"
)

// Mesh is decoded geometry ready for upload: deduplicated vertices and a
// 32-bit index list.
type Mesh struct {
	Vertices []Vertex
	Indices  []uint32
}

// DecodeOBJ reads Wavefront OBJ geometry into a Mesh. Faces with more than
// three vertices are triangulated as a fan. Vertices are deduplicated by
// position index and colored white; renderers that want per-instance color
// pass it through push constants or the instance stream instead. matReader
// may be nil when no material file accompanies the mesh.
func DecodeOBJ(meshReader, matReader io.Reader) (*Mesh, error) {
	if matReader == nil {
		matReader = strings.NewReader("")
	}

	decoder, err := obj.DecodeReader(meshReader, matReader)
	if err != nil {
		return nil, errors.Wrap(err, "decoding obj")
	}

	mesh := &Mesh{}
	uniqueVertices := make(map[int]uint32)

	addVertex := func(face obj.Face, faceIndex int) {
		vertInd := face.Vertices[faceIndex]
		index, vertexExists := uniqueVertices[vertInd]

		if !vertexExists {
			vert := Vertex{
				Position: mgl32.Vec3{
					decoder.Vertices[vertInd*3],
					decoder.Vertices[vertInd*3+1],
					decoder.Vertices[vertInd*3+2],
				},
				Color: mgl32.Vec3{1, 1, 1},
			}

			index = uint32(len(mesh.Vertices))
			mesh.Vertices = append(mesh.Vertices, vert)
			uniqueVertices[vertInd] = index
		}

		mesh.Indices = append(mesh.Indices, index)
	}

	for _, decodedObj := range decoder.Objects {
		for _, face := range decodedObj.Faces {
			for i := 2; i < len(face.Vertices); i++ {
				addVertex(face, 0)
				addVertex(face, i-1)
				addVertex(face, i)
			}
		}
	}

	if len(mesh.Indices) == 0 {
		return nil, errors.New("obj contains no faces")
	}

	return mesh, nil
}

// LoadOBJFile opens path (and matPath when non-empty) and decodes it.
func LoadOBJFile(path, matPath string) (*Mesh, error) {
	meshFile, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening mesh %s", path)
	}
	defer meshFile.Close()

	var matReader io.Reader
	if matPath != "" {
		matFile, err := os.Open(matPath)
		if err != nil {
			return nil, errors.Wrapf(err, "opening material %s", matPath)
		}
		defer matFile.Close()
		matReader = matFile
	}

	return DecodeOBJ(meshFile, matReader)
}
