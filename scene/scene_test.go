package scene

import (
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func randomTransform(rng *rand.Rand) mgl32.Mat4 {
	translate := mgl32.Translate3D(
		rng.Float32()*10-5,
		rng.Float32()*10-5,
		rng.Float32()*10-5)
	rotate := mgl32.HomogRotate3D(
		rng.Float32()*6.28,
		mgl32.Vec3{rng.Float32(), rng.Float32(), rng.Float32()}.Add(mgl32.Vec3{0.01, 0, 0}).Normalize())
	scale := mgl32.Scale3D(
		0.5+rng.Float32(),
		0.5+rng.Float32(),
		0.5+rng.Float32())
	return translate.Mul4(rotate).Mul4(scale)
}

// naiveWorld recomputes a node's world transform by walking the parent
// chain, independent of UpdateNodeHierarchies' single-pass order.
func naiveWorld(nodes []Node, index uint32) mgl32.Mat4 {
	node := &nodes[index]
	if node.Parent == NoIndex {
		return node.LocalTransform
	}
	return naiveWorld(nodes, node.Parent).Mul4(node.LocalTransform)
}

func matricesClose(a, b mgl32.Mat4) bool {
	for i := range a {
		d := a[i] - b[i]
		if d < -1e-4 || d > 1e-4 {
			return false
		}
	}
	return true
}

func TestUpdateNodeHierarchiesRandomTrees(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		count := 1 + rng.Intn(20)
		s := &Scene{}
		for i := 0; i < count; i++ {
			node := NewNode("n")
			// Parents always precede children in the node array.
			if i > 0 && rng.Intn(4) != 0 {
				node.Parent = uint32(rng.Intn(i))
			}
			node.LocalTransform = randomTransform(rng)
			s.Nodes = append(s.Nodes, node)
		}

		s.UpdateNodeHierarchies()

		for i := range s.Nodes {
			want := naiveWorld(s.Nodes, uint32(i))
			if !matricesClose(s.Nodes[i].WorldTransform, want) {
				t.Fatalf("trial %d node %d: world transform mismatch\ngot  %v\nwant %v",
					trial, i, s.Nodes[i].WorldTransform, want)
			}
		}
	}
}

func TestUpdateNodeHierarchiesChildren(t *testing.T) {
	s := &Scene{}
	root := NewNode("root")
	childA := NewNode("a")
	childA.Parent = 0
	childB := NewNode("b")
	childB.Parent = 0
	grandchild := NewNode("c")
	grandchild.Parent = 1
	s.Nodes = []Node{root, childA, childB, grandchild}

	s.UpdateNodeHierarchies()

	if len(s.Nodes[0].Children) != 2 {
		t.Errorf("Expected root to have 2 children, got %d", len(s.Nodes[0].Children))
	}
	if len(s.Nodes[1].Children) != 1 || s.Nodes[1].Children[0] != 3 {
		t.Errorf("Expected node 1 to have child 3, got %v", s.Nodes[1].Children)
	}
}

func TestRootWorldEqualsLocal(t *testing.T) {
	s := &Scene{}
	node := NewNode("root")
	node.LocalTransform = mgl32.Translate3D(1, 2, 3)
	s.Nodes = []Node{node}

	s.UpdateNodeHierarchies()

	if !matricesClose(s.Nodes[0].WorldTransform, s.Nodes[0].LocalTransform) {
		t.Errorf("Root world transform should equal its local transform")
	}
}

func TestSceneQueries(t *testing.T) {
	s := &Scene{}
	if s.HasLight() || s.HasMedium() || s.HasTransparent() {
		t.Fatal("Empty scene should have no lights, media or transparency")
	}

	s.Lights = append(s.Lights, Light{Type: LightTypePoint, Intensity: 1})
	s.Materials = append(s.Materials,
		Material{Opacity: 1.0},
		Material{Opacity: 0.5, Medium: Medium{Type: MediumTypeScatter}})

	if !s.HasLight() {
		t.Error("Expected HasLight to be true")
	}
	if !s.HasMedium() {
		t.Error("Expected HasMedium to be true")
	}
	if !s.HasMediumWith(MediumTypeScatter) {
		t.Error("Expected a scatter medium")
	}
	if s.HasMediumWith(MediumTypeEmissive) {
		t.Error("Did not expect an emissive medium")
	}
	if !s.HasTransparent() {
		t.Error("Expected HasTransparent to be true")
	}
}

func TestTypeParsing(t *testing.T) {
	if _, err := LightTypeFromUint8(5); err == nil {
		t.Error("Expected an error for light type 5")
	}
	if _, err := MaterialTypeFromUint8(2); err == nil {
		t.Error("Expected an error for material type 2")
	}
	if _, err := MediumTypeFromUint8(4); err == nil {
		t.Error("Expected an error for medium type 4")
	}
	lt, err := LightTypeFromUint8(3)
	if err != nil || lt != LightTypeQuad {
		t.Errorf("Expected quad light type, got %v (%v)", lt, err)
	}
}
