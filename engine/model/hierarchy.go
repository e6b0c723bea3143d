package model

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// ErrInvalidHierarchy is returned by Validate for malformed node arenas.
var ErrInvalidHierarchy = errors.New("invalid node hierarchy")

// UpdateGlobalTransforms recomputes every node's Global transform from the Local transforms, walking
// depth-first from each root. Translations compose additively, rotations by quaternion product and
// scales componentwise. Each node is visited once.
//
// Parameters:
//   - nodes: the node arena, which must have passed Validate
func UpdateGlobalTransforms(nodes []Node) {
	for i := range nodes {
		if nodes[i].Parent != -1 {
			continue
		}
		nodes[i].Global = nodes[i].Local
		updateChildren(nodes, i)
	}
}

func updateChildren(nodes []Node, parent int) {
	p := nodes[parent].Global
	for _, c := range nodes[parent].Children {
		local := nodes[c].Local
		nodes[c].Global = Transform{
			Translation: p.Translation.Add(local.Translation),
			Rotation:    p.Rotation.Mul(local.Rotation),
			Scale: mgl32.Vec3{
				p.Scale[0] * local.Scale[0],
				p.Scale[1] * local.Scale[1],
				p.Scale[2] * local.Scale[2],
			},
		}
		updateChildren(nodes, c)
	}
}

// Validate checks that parent and child indices are in range and agree with each other, and that the
// arena forms a forest. Every node must be reachable from exactly one root.
//
// Parameters:
//   - nodes: the node arena
//
// Returns:
//   - error: an error wrapping ErrInvalidHierarchy describing the first problem found
func Validate(nodes []Node) error {
	n := len(nodes)
	for i, node := range nodes {
		if node.Parent < -1 || node.Parent >= n {
			return fmt.Errorf("%w: node %d has parent %d out of range", ErrInvalidHierarchy, i, node.Parent)
		}
		if node.Parent == i {
			return fmt.Errorf("%w: node %d is its own parent", ErrInvalidHierarchy, i)
		}
		for _, c := range node.Children {
			if c < 0 || c >= n {
				return fmt.Errorf("%w: node %d has child %d out of range", ErrInvalidHierarchy, i, c)
			}
			if nodes[c].Parent != i {
				return fmt.Errorf("%w: node %d lists child %d whose parent is %d", ErrInvalidHierarchy, i, c, nodes[c].Parent)
			}
		}
		if node.Parent != -1 && !contains(nodes[node.Parent].Children, i) {
			return fmt.Errorf("%w: node %d is missing from the children of its parent %d", ErrInvalidHierarchy, i, node.Parent)
		}
	}

	visited := make([]bool, n)
	var walk func(i int) error
	walk = func(i int) error {
		if visited[i] {
			return fmt.Errorf("%w: node %d is reachable twice", ErrInvalidHierarchy, i)
		}
		visited[i] = true
		for _, c := range nodes[i].Children {
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	for i := range nodes {
		if nodes[i].Parent == -1 {
			if err := walk(i); err != nil {
				return err
			}
		}
	}
	for i, seen := range visited {
		if !seen {
			return fmt.Errorf("%w: node %d is part of a cycle", ErrInvalidHierarchy, i)
		}
	}
	return nil
}

func contains(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
