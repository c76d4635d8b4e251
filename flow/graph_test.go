package flow

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func noopNode() Node {
	return NodeFunc(func(context.Context, State) NodeResult {
		return NodeResult{}
	})
}

func TestGraphBuilder(t *testing.T) {
	t.Run("valid graph builds", func(t *testing.T) {
		g, err := NewGraph().
			Add("a", noopNode()).
			Add("b", noopNode()).
			SetEntry("a").
			Connect("a", "b").
			Connect("b", End).
			Build()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if g.Entry() != "a" {
			t.Errorf("entry = %q", g.Entry())
		}
		if got := g.Nodes(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
			t.Errorf("nodes = %v", got)
		}
	})

	t.Run("missing entry fails", func(t *testing.T) {
		_, err := NewGraph().Add("a", noopNode()).Build()
		if err == nil || !strings.Contains(err.Error(), "entry node not set") {
			t.Errorf("got %v", err)
		}
	})

	t.Run("edge to unknown node fails", func(t *testing.T) {
		_, err := NewGraph().
			Add("a", noopNode()).
			SetEntry("a").
			Connect("a", "ghost").
			Build()
		if err == nil || !strings.Contains(err.Error(), "unknown node") {
			t.Errorf("got %v", err)
		}
	})

	t.Run("edge and router on same node fails", func(t *testing.T) {
		_, err := NewGraph().
			Add("a", noopNode()).
			Add("b", noopNode()).
			SetEntry("a").
			Connect("a", "b").
			Route("a", func(State) string { return "b" }).
			Build()
		if err == nil || !strings.Contains(err.Error(), "both") {
			t.Errorf("got %v", err)
		}
	})

	t.Run("duplicate node fails", func(t *testing.T) {
		_, err := NewGraph().
			Add("a", noopNode()).
			Add("a", noopNode()).
			SetEntry("a").
			Build()
		if err == nil || !strings.Contains(err.Error(), "duplicate") {
			t.Errorf("got %v", err)
		}
	})

	t.Run("reserved name fails", func(t *testing.T) {
		_, err := NewGraph().Add(End, noopNode()).SetEntry(End).Build()
		if err == nil {
			t.Error("expected error for reserved node name")
		}
	})
}

func TestGraphVersion(t *testing.T) {
	build := func(entry string) *Graph {
		g, err := NewGraph().
			Add("a", noopNode()).
			Add("b", noopNode()).
			SetEntry(entry).
			Connect("a", "b").
			Connect("b", End).
			Build()
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		return g
	}

	t.Run("same topology same version", func(t *testing.T) {
		if build("a").Version() != build("a").Version() {
			t.Error("identical topologies hash differently")
		}
	})

	t.Run("different topology different version", func(t *testing.T) {
		other, err := NewGraph().
			Add("a", noopNode()).
			Add("b", noopNode()).
			SetEntry("a").
			Route("a", func(State) string { return "b" }).
			Connect("b", End).
			Build()
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		if build("a").Version() == other.Version() {
			t.Error("distinct topologies hash the same")
		}
	})
}

func TestGraphNext(t *testing.T) {
	g, err := NewGraph().
		Add("a", noopNode()).
		Add("b", noopNode()).
		Add("gate", noopNode()).
		SetEntry("a").
		Connect("a", "b").
		Connect("b", End).
		Route("gate", func(st State) string {
			if st.Intent == "bad" {
				return "nowhere"
			}
			if st.Intent == "done" {
				return End
			}
			return "b"
		}).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	t.Run("fixed edge", func(t *testing.T) {
		next, err := g.next("a", State{})
		if err != nil || next != "b" {
			t.Errorf("next = %q, %v", next, err)
		}
	})

	t.Run("router picks by state", func(t *testing.T) {
		next, err := g.next("gate", State{Intent: "x"})
		if err != nil || next != "b" {
			t.Errorf("next = %q, %v", next, err)
		}
	})

	t.Run("router may end", func(t *testing.T) {
		next, err := g.next("gate", State{Intent: "done"})
		if err != nil || next != End {
			t.Errorf("next = %q, %v", next, err)
		}
	})

	t.Run("unknown router target is ErrRouting", func(t *testing.T) {
		_, err := g.next("gate", State{Intent: "bad"})
		if !errors.Is(err, ErrRouting) {
			t.Errorf("got %v, want ErrRouting", err)
		}
	})

	t.Run("no successor is ErrRouting", func(t *testing.T) {
		_, err := g.next("orphan", State{})
		if !errors.Is(err, ErrRouting) {
			t.Errorf("got %v, want ErrRouting", err)
		}
	})
}
