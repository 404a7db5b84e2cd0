package rendercore

import (
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/core/core1_0"
)

// Vertex is the mesh vertex consumed by the default layouts: position and
// color advance once per vertex. Applications with different vertex data can
// supply their own VertexLayout instead.
type Vertex struct {
	Position mgl32.Vec3
	Color    mgl32.Vec3
}

// InstanceStride is the byte size of one per-instance transform: a 4x4
// float32 matrix.
const InstanceStride = int(unsafe.Sizeof(mgl32.Mat4{}))

// VertexLayout is the complete vertex-input declaration for a pipeline,
// covering both per-vertex and per-instance bindings.
type VertexLayout struct {
	Bindings   []core1_0.VertexInputBindingDescription
	Attributes []core1_0.VertexInputAttributeDescription
}

// MeshVertexLayout describes binding 0: interleaved Vertex data at rate
// per-vertex, locations 0 (position) and 1 (color).
func MeshVertexLayout() VertexLayout {
	v := Vertex{}
	return VertexLayout{
		Bindings: []core1_0.VertexInputBindingDescription{
			{
				Binding:   0,
				Stride:    int(unsafe.Sizeof(v)),
				InputRate: core1_0.VertexInputRateVertex,
			},
		},
		Attributes: []core1_0.VertexInputAttributeDescription{
			{
				Binding:  0,
				Location: 0,
				Format:   core1_0.FormatR32G32B32SignedFloat,
				Offset:   int(unsafe.Offsetof(v.Position)),
			},
			{
				Binding:  0,
				Location: 1,
				Format:   core1_0.FormatR32G32B32SignedFloat,
				Offset:   int(unsafe.Offsetof(v.Color)),
			},
		},
	}
}

// WithInstanceMatrix appends a per-instance binding carrying a model matrix
// as four consecutive vec4 attributes starting at firstLocation. The binding
// advances once per instance, not once per vertex, which is what lets a
// single indexed draw repeat the mesh for every transform in the slot's
// instance buffer.
func (l VertexLayout) WithInstanceMatrix(binding, firstLocation int) VertexLayout {
	l.Bindings = append(l.Bindings, core1_0.VertexInputBindingDescription{
		Binding:   binding,
		Stride:    InstanceStride,
		InputRate: core1_0.VertexInputRateInstance,
	})

	columnSize := int(unsafe.Sizeof(mgl32.Vec4{}))
	for column := 0; column < 4; column++ {
		l.Attributes = append(l.Attributes, core1_0.VertexInputAttributeDescription{
			Binding:  binding,
			Location: uint32(firstLocation + column),
			Format:   core1_0.FormatR32G32B32A32SignedFloat,
			Offset:   column * columnSize,
		})
	}

	return l
}
