package bench

import (
	"errors"
	"testing"
)

func TestNewBuildsRegisteredProblems(t *testing.T) {
	p, err := New("sphere", 5)
	if err != nil {
		t.Fatalf("New(sphere) failed: %v", err)
	}
	if p.Name() != "sphere" {
		t.Errorf("Name = %q, want sphere", p.Name())
	}
	if p.Dim() != 5 {
		t.Errorf("Dim = %d, want 5", p.Dim())
	}
	lower, upper := p.Bounds()
	if len(lower) != 5 || len(upper) != 5 {
		t.Fatalf("Bounds lengths = %d, %d, want 5", len(lower), len(upper))
	}
	for i := range lower {
		if lower[i] != -5.12 || upper[i] != 5.12 {
			t.Errorf("Bounds[%d] = [%f, %f], want [-5.12, 5.12]", i, lower[i], upper[i])
		}
	}
}

func TestNewDefaultsDimensionality(t *testing.T) {
	p, err := New("sphere", 0)
	if err != nil {
		t.Fatalf("New(sphere, 0) failed: %v", err)
	}
	if p.Dim() != 3 {
		t.Errorf("Default sphere dim = %d, want 3", p.Dim())
	}

	egg, err := New("eggholder", 0)
	if err != nil {
		t.Fatalf("New(eggholder, 0) failed: %v", err)
	}
	if egg.Dim() != 2 {
		t.Errorf("Eggholder dim = %d, want 2", egg.Dim())
	}
}

func TestNewRejectsBadDimensions(t *testing.T) {
	if _, err := New("eggholder", 3); err == nil {
		t.Error("Expected error for 3-dimensional eggholder")
	}
	if _, err := New("rosenbrock", 1); err == nil {
		t.Error("Expected error for 1-dimensional rosenbrock")
	}
}

func TestNewUnknownProblem(t *testing.T) {
	_, err := New("simplex", 2)
	if !errors.Is(err, ErrUnknownProblem) {
		t.Errorf("Expected ErrUnknownProblem, got %v", err)
	}
}

func TestNamesIncludesAllRegistered(t *testing.T) {
	names := Names()
	want := map[string]bool{
		"ackley":     false,
		"eggholder":  false,
		"rastrigin":  false,
		"rosenbrock": false,
		"sphere":     false,
	}
	for _, name := range names {
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("Names() is missing %q", name)
		}
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Errorf("Names() not sorted: %q before %q", names[i-1], names[i])
		}
	}
}
