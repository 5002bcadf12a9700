package llm

import (
	"errors"
	"math"
	"testing"
)

func TestCosineIdentical(t *testing.T) {
	v := []float32{0.5, -1.25, 3.0, 0.75}

	score, err := Cosine(v, v)
	if err != nil {
		t.Fatalf("Cosine returned error: %v", err)
	}
	if math.Abs(score-1.0) > 1e-9 {
		t.Fatalf("expected similarity 1.0 for identical vectors, got %f", score)
	}
}

func TestCosineOrthogonal(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}

	score, err := Cosine(a, b)
	if err != nil {
		t.Fatalf("Cosine returned error: %v", err)
	}
	if math.Abs(score) > 1e-9 {
		t.Fatalf("expected similarity 0 for orthogonal vectors, got %f", score)
	}
}

func TestCosineOpposite(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{-1, -2, -3}

	score, err := Cosine(a, b)
	if err != nil {
		t.Fatalf("Cosine returned error: %v", err)
	}
	if math.Abs(score+1.0) > 1e-9 {
		t.Fatalf("expected similarity -1 for opposite vectors, got %f", score)
	}
}

func TestCosineDimensionMismatch(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{1, 2}

	if _, err := Cosine(a, b); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestCosineZeroVector(t *testing.T) {
	a := []float32{0, 0, 0}
	b := []float32{1, 2, 3}

	score, err := Cosine(a, b)
	if err != nil {
		t.Fatalf("Cosine returned error: %v", err)
	}
	if score != 0 {
		t.Fatalf("expected 0 for zero-norm vector, got %f", score)
	}
}
