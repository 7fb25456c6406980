package dtree

import (
	"reflect"
	"sort"
	"testing"
)

func pathsEqual(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func containsPath(paths [][]uint32, want []uint32) bool {
	for _, p := range paths {
		if pathsEqual(p, want) {
			return true
		}
	}
	return false
}

func TestBuildFromPathsSharedPrefix(t *testing.T) {
	input := [][]uint32{
		{44, 0, 0, 0, 0},
		{44, 0, 0, 1, 0},
	}
	tree := BuildFromPaths(input)

	resolved, err := tree.ResolvePaths()
	if err != nil {
		t.Fatalf("ResolvePaths: %v", err)
	}
	if len(resolved) != 2 {
		t.Fatalf("got %d branches want 2", len(resolved))
	}

	var got [][]uint32
	for _, p := range resolved {
		got = append(got, p)
	}
	for _, want := range input {
		if !containsPath(got, want) {
			t.Fatalf("missing expected path %v among %v", want, got)
		}
	}
}

func TestBuildFromPathsThreeWayDivergence(t *testing.T) {
	input := [][]uint32{
		{1, 2, 3},
		{1, 2, 4},
		{1, 2, 5},
	}
	tree := BuildFromPaths(input)

	resolved, err := tree.ResolvePaths()
	if err != nil {
		t.Fatalf("ResolvePaths: %v", err)
	}
	if len(resolved) != 3 {
		t.Fatalf("got %d branches want 3", len(resolved))
	}

	var got [][]uint32
	for _, p := range resolved {
		cp := append([]uint32{}, p...)
		got = append(got, cp)
	}
	sort.Slice(got, func(i, j int) bool { return got[i][2] < got[j][2] })
	for i, want := range input {
		if !pathsEqual(got[i], want) {
			t.Fatalf("path %d = %v want %v", i, got[i], want)
		}
	}
}

func TestBuildFromPathsSinglePath(t *testing.T) {
	input := [][]uint32{{7, 8, 9}}
	tree := BuildFromPaths(input)

	resolved, err := tree.ResolvePaths()
	if err != nil {
		t.Fatalf("ResolvePaths: %v", err)
	}
	if len(resolved) != 1 {
		t.Fatalf("got %d branches want 1", len(resolved))
	}
	path, ok := resolved[RootBranch]
	if !ok {
		t.Fatal("expected single path to stay on the root branch")
	}
	if !reflect.DeepEqual(path, input[0]) {
		t.Fatalf("path = %v want %v", path, input[0])
	}
}

func TestBuildFromPathsDisjointPaths(t *testing.T) {
	input := [][]uint32{
		{0, 0},
		{1, 1},
	}
	tree := BuildFromPaths(input)

	resolved, err := tree.ResolvePaths()
	if err != nil {
		t.Fatalf("ResolvePaths: %v", err)
	}
	if len(resolved) != 2 {
		t.Fatalf("got %d branches want 2", len(resolved))
	}
	var got [][]uint32
	for _, p := range resolved {
		got = append(got, p)
	}
	for _, want := range input {
		if !containsPath(got, want) {
			t.Fatalf("missing expected path %v", want)
		}
	}
}
