package model

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

// chain builds n nodes where node i is the parent of node i+1.
func chain(n int, local Transform) []Node {
	nodes := make([]Node, n)
	for i := range nodes {
		nodes[i] = Node{ID: i, Parent: i - 1, Skin: -1, Local: local}
		if i+1 < n {
			nodes[i].Children = []int{i + 1}
		}
	}
	return nodes
}

func TestUpdateGlobalTransformsComposition(t *testing.T) {
	parentRot := mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 0, 1})
	childRot := mgl32.QuatRotate(mgl32.DegToRad(30), mgl32.Vec3{1, 0, 0})
	nodes := []Node{
		{ID: 0, Parent: -1, Children: []int{1}, Local: Transform{
			Translation: mgl32.Vec3{1, 2, 3},
			Rotation:    parentRot,
			Scale:       mgl32.Vec3{2, 3, 4},
		}},
		{ID: 1, Parent: 0, Local: Transform{
			Translation: mgl32.Vec3{1, 0, 0},
			Rotation:    childRot,
			Scale:       mgl32.Vec3{0.5, 2, 1},
		}},
	}

	UpdateGlobalTransforms(nodes)

	if nodes[0].Global != nodes[0].Local {
		t.Errorf("root global = %+v, want its local %+v", nodes[0].Global, nodes[0].Local)
	}
	child := nodes[1].Global
	if want := (mgl32.Vec3{2, 2, 3}); child.Translation != want {
		t.Errorf("child translation = %v, want %v (parent + local, unrotated)", child.Translation, want)
	}
	if want := parentRot.Mul(childRot); child.Rotation != want {
		t.Errorf("child rotation = %v, want %v", child.Rotation, want)
	}
	if want := (mgl32.Vec3{1, 6, 4}); child.Scale != want {
		t.Errorf("child scale = %v, want %v", child.Scale, want)
	}
}

func TestUpdateGlobalTransformsVisitsEveryNode(t *testing.T) {
	const depth = 5000
	local := Transform{Translation: mgl32.Vec3{1, 0, 0}, Rotation: mgl32.QuatIdent(), Scale: mgl32.Vec3{1, 1, 1}}
	nodes := chain(depth, local)
	// A second root with a fan of children.
	root := len(nodes)
	nodes = append(nodes, Node{ID: root, Parent: -1, Local: local})
	for i := 0; i < 10; i++ {
		id := len(nodes)
		nodes = append(nodes, Node{ID: id, Parent: root, Local: local})
		nodes[root].Children = append(nodes[root].Children, id)
	}
	if err := Validate(nodes); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	UpdateGlobalTransforms(nodes)

	for i := 0; i < depth; i++ {
		if got := nodes[i].Global.Translation.X(); got != float32(i+1) {
			t.Fatalf("chain node %d translation x = %v, want %d", i, got, i+1)
		}
	}
	for i := root + 1; i < len(nodes); i++ {
		if got := nodes[i].Global.Translation.X(); got != 2 {
			t.Errorf("fan node %d translation x = %v, want 2", i, got)
		}
	}
}

func TestUpdateGlobalTransformsIdempotent(t *testing.T) {
	local := Transform{
		Translation: mgl32.Vec3{0.1, 0.2, 0.3},
		Rotation:    mgl32.QuatRotate(0.7, mgl32.Vec3{0, 1, 0}),
		Scale:       mgl32.Vec3{1.1, 0.9, 1},
	}
	nodes := chain(64, local)

	UpdateGlobalTransforms(nodes)
	first := make([]Transform, len(nodes))
	for i := range nodes {
		first[i] = nodes[i].Global
	}
	UpdateGlobalTransforms(nodes)

	for i := range nodes {
		a, b := first[i], nodes[i].Global
		for k := 0; k < 3; k++ {
			if math.Float32bits(a.Translation[k]) != math.Float32bits(b.Translation[k]) ||
				math.Float32bits(a.Scale[k]) != math.Float32bits(b.Scale[k]) ||
				math.Float32bits(a.Rotation.V[k]) != math.Float32bits(b.Rotation.V[k]) {
				t.Fatalf("node %d changed on the second pass: %+v then %+v", i, a, b)
			}
		}
		if math.Float32bits(a.Rotation.W) != math.Float32bits(b.Rotation.W) {
			t.Fatalf("node %d rotation w changed on the second pass", i)
		}
	}
}

func TestGlobalMatrix(t *testing.T) {
	n := Node{Global: Transform{
		Translation: mgl32.Vec3{1, 2, 3},
		Rotation:    mgl32.QuatIdent(),
		Scale:       mgl32.Vec3{2, 2, 2},
	}}
	got := n.GlobalMatrix().Mul4x1(mgl32.Vec4{1, 1, 1, 1})
	if want := (mgl32.Vec4{3, 4, 5, 1}); !got.ApproxEqual(want) {
		t.Errorf("GlobalMatrix * (1,1,1,1) = %v, want %v", got, want)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		nodes []Node
	}{
		{
			name:  "parent out of range",
			nodes: []Node{{Parent: 3}},
		},
		{
			name:  "child out of range",
			nodes: []Node{{Parent: -1, Children: []int{5}}},
		},
		{
			name: "child with another parent",
			nodes: []Node{
				{Parent: -1, Children: []int{1}},
				{Parent: 2},
				{Parent: -1, Children: []int{1}},
			},
		},
		{
			name: "parent missing the child",
			nodes: []Node{
				{Parent: -1},
				{Parent: 0},
			},
		},
		{
			name: "cycle",
			nodes: []Node{
				{Parent: 1, Children: []int{1}},
				{Parent: 0, Children: []int{0}},
			},
		},
		{
			name:  "self parent",
			nodes: []Node{{Parent: 0, Children: []int{0}}},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.nodes)
			if !errors.Is(err, ErrInvalidHierarchy) {
				t.Fatalf("Validate = %v, want ErrInvalidHierarchy", err)
			}
		})
	}

	if err := Validate(chain(3, IdentityTransform())); err != nil {
		t.Errorf("Validate(valid chain) = %v", err)
	}
}
