package shuffle

import (
	"math"
	"reflect"
	"sort"
	"testing"
)

// Reference orders computed independently with 32-bit wrapping arithmetic.
func TestPermutationReferenceVectors(t *testing.T) {
	tests := []struct {
		seed int64
		n    int
		want []int
	}{
		{0, 8, []int{0, 3, 1, 2, 7, 6, 4, 5}},
		{1, 8, []int{5, 1, 6, 0, 3, 7, 4, 2}},
		{123, 8, []int{4, 2, 1, 7, 5, 6, 0, 3}},
		{42, 8, []int{3, 6, 0, 2, 4, 5, 7, 1}},
		{-7, 8, []int{0, 6, 3, 5, 2, 1, 4, 7}},
		{123, 5, []int{1, 4, 3, 0, 2}},
		{42, 5, []int{3, 4, 2, 0, 1}},
	}
	for _, tt := range tests {
		got := Permutation(tt.n, tt.seed)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Permutation(%d, %d) = %v, want %v", tt.n, tt.seed, got, tt.want)
		}
	}
}

func TestGeneratorAdvancesAcrossPasses(t *testing.T) {
	g := NewGenerator(123)
	first := g.Permutation(4)
	second := g.Permutation(4)
	if !reflect.DeepEqual(first, []int{3, 2, 0, 1}) {
		t.Fatalf("first pass = %v", first)
	}
	if !reflect.DeepEqual(second, []int{3, 1, 2, 0}) {
		t.Fatalf("second pass = %v", second)
	}
}

func TestGeneratorFirstValues(t *testing.T) {
	g := NewGenerator(123)
	want := []float64{0.424310840666, 0.03520058468, 0.036416433752}
	for i, w := range want {
		got := g.Next()
		if math.Abs(got-w) > 1e-9 {
			t.Fatalf("value %d = %.12f, want %.12f", i, got, w)
		}
	}
}

func TestPermutationIsDeterministicAndComplete(t *testing.T) {
	for seed := int64(0); seed < 50; seed++ {
		a := Permutation(13, seed)
		b := Permutation(13, seed)
		if !reflect.DeepEqual(a, b) {
			t.Fatalf("seed %d not deterministic: %v vs %v", seed, a, b)
		}
		sorted := append([]int(nil), a...)
		sort.Ints(sorted)
		for i, v := range sorted {
			if v != i {
				t.Fatalf("seed %d produced invalid permutation %v", seed, a)
			}
		}
	}
}

func TestPermutationEdgeSizes(t *testing.T) {
	if got := Permutation(0, 5); len(got) != 0 {
		t.Fatalf("expected empty permutation, got %v", got)
	}
	if got := Permutation(1, 5); !reflect.DeepEqual(got, []int{0}) {
		t.Fatalf("expected [0], got %v", got)
	}
}

func TestApply(t *testing.T) {
	got := Apply([]string{"a", "b", "c"}, []int{2, 0, 1})
	if !reflect.DeepEqual(got, []string{"c", "a", "b"}) {
		t.Fatalf("Apply() = %v", got)
	}
}
