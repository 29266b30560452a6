package graph

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/fieldmarshal/brigade/pkg/models"
)

func spec(id string, deps ...string) *models.AgentSpec {
	return &models.AgentSpec{ID: id, DependsOn: deps, Status: models.StatusPending}
}

func build(t *testing.T, specs ...*models.AgentSpec) *DependencyGraph {
	t.Helper()
	g := New()
	if err := g.Build(specs); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return g
}

func TestBuild_UnknownDependency(t *testing.T) {
	g := New()
	err := g.Build([]*models.AgentSpec{spec("a", "ghost")})
	if err == nil || !strings.Contains(err.Error(), "unknown agent ghost") {
		t.Errorf("Build() error = %v, want unknown agent error", err)
	}
}

func TestBuild_DuplicateID(t *testing.T) {
	g := New()
	err := g.Build([]*models.AgentSpec{spec("a"), spec("a")})
	if err == nil || !strings.Contains(err.Error(), "duplicate agent id") {
		t.Errorf("Build() error = %v, want duplicate id error", err)
	}
}

func TestBuild_CycleDetected(t *testing.T) {
	g := New()
	err := g.Build([]*models.AgentSpec{spec("a", "b"), spec("b", "c"), spec("c", "a")})
	if !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("Build() error = %v, want ErrCycleDetected", err)
	}
	// The cycle path is named in the error.
	if !strings.Contains(err.Error(), "->") {
		t.Errorf("Build() error %q does not name the cycle path", err)
	}
}

func TestFindCycle_Deterministic(t *testing.T) {
	specs := func() []*models.AgentSpec {
		return []*models.AgentSpec{spec("a", "b"), spec("b", "c"), spec("c", "a"), spec("d")}
	}

	g1 := New()
	g2 := New()
	if err := g1.Build(specs()); err == nil {
		t.Fatal("expected cycle error")
	}
	if err := g2.Build(specs()); err == nil {
		t.Fatal("expected cycle error")
	}

	c1, c2 := g1.FindCycle(), g2.FindCycle()
	if c1 == nil || !reflect.DeepEqual(c1, c2) {
		t.Errorf("FindCycle() not deterministic: %v vs %v", c1, c2)
	}
	if c1[0] != c1[len(c1)-1] {
		t.Errorf("FindCycle() = %v, first and last should match", c1)
	}
}

func TestFindCycle_AcyclicReturnsNil(t *testing.T) {
	g := build(t, spec("a"), spec("b", "a"), spec("c", "a", "b"))
	if cycle := g.FindCycle(); cycle != nil {
		t.Errorf("FindCycle() = %v, want nil", cycle)
	}
}

func TestWaves_Diamond(t *testing.T) {
	// a is the root, b and c fan out, d joins them.
	g := build(t, spec("a"), spec("b", "a"), spec("c", "a"), spec("d", "b", "c"))

	waves, err := g.Waves()
	if err != nil {
		t.Fatalf("Waves() error = %v", err)
	}
	want := [][]string{{"a"}, {"b", "c"}, {"d"}}
	if !reflect.DeepEqual(waves, want) {
		t.Errorf("Waves() = %v, want %v", waves, want)
	}
}

func TestWaves_IndependentSpecsShareWaveInOrder(t *testing.T) {
	g := build(t, spec("z"), spec("m"), spec("a"))

	waves, err := g.Waves()
	if err != nil {
		t.Fatalf("Waves() error = %v", err)
	}
	// Insertion order, not lexical order.
	want := [][]string{{"z", "m", "a"}}
	if !reflect.DeepEqual(waves, want) {
		t.Errorf("Waves() = %v, want %v", waves, want)
	}
}

func TestReadyAndMarkDone(t *testing.T) {
	g := build(t, spec("a"), spec("b", "a"), spec("c", "a"), spec("d", "b", "c"))

	if got := g.Ready(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("Ready() = %v, want [a]", got)
	}

	g.MarkDone("a")
	if got := g.Ready(); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Fatalf("Ready() after a = %v, want [b c]", got)
	}

	g.MarkDone("b")
	if got := g.Ready(); !reflect.DeepEqual(got, []string{"c"}) {
		t.Fatalf("Ready() after a,b = %v, want [c]", got)
	}

	g.MarkDone("c")
	g.MarkDone("d")
	if got := g.Ready(); got != nil {
		t.Fatalf("Ready() after all = %v, want nil", got)
	}
}

func TestDependents(t *testing.T) {
	g := build(t, spec("a"), spec("b", "a"), spec("c", "a"), spec("d", "b"))

	if got := g.Dependents("a"); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Errorf("Dependents(a) = %v, want [b c]", got)
	}
	if got := g.TransitiveDependents("a"); !reflect.DeepEqual(got, []string{"b", "c", "d"}) {
		t.Errorf("TransitiveDependents(a) = %v, want [b c d]", got)
	}
	if got := g.TransitiveDependents("d"); got != nil {
		t.Errorf("TransitiveDependents(d) = %v, want nil", got)
	}
}
