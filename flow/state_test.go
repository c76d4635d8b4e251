package flow

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestMerge(t *testing.T) {
	t.Run("replaces scalar fields", func(t *testing.T) {
		st := State{Intent: "old", Confidence: 0.9}
		out, err := st.Merge(Update{
			KeyIntent:     "selection",
			KeyConfidence: 0.4,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.Intent != "selection" || out.Confidence != 0.4 {
			t.Errorf("got intent=%q confidence=%v", out.Intent, out.Confidence)
		}
	})

	t.Run("appends history", func(t *testing.T) {
		st := State{History: []string{"first"}}
		out, err := st.Merge(Update{KeyHistory: "second"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(out.History) != 2 || out.History[1] != "second" {
			t.Errorf("history = %v", out.History)
		}
	})

	t.Run("bounds history", func(t *testing.T) {
		st := State{}
		var err error
		for i := 0; i < maxHistory+5; i++ {
			st, err = st.Merge(Update{KeyHistory: "msg"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if len(st.History) != maxHistory {
			t.Errorf("history length = %d, want %d", len(st.History), maxHistory)
		}
	})

	t.Run("appends errors", func(t *testing.T) {
		st := State{Errors: []StateError{{Node: "a", Code: CodeDomainError}}}
		out, err := st.Merge(Update{
			KeyErrors: StateError{Node: "b", Code: CodeClassificationFallback},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(out.Errors) != 2 || out.Errors[1].Node != "b" {
			t.Errorf("errors = %+v", out.Errors)
		}
	})

	t.Run("unknown key fails with ErrSchema", func(t *testing.T) {
		_, err := State{}.Merge(Update{"bogus": 1})
		if !errors.Is(err, ErrSchema) {
			t.Errorf("got %v, want ErrSchema", err)
		}
	})

	t.Run("wrong type fails with ErrSchema", func(t *testing.T) {
		_, err := State{}.Merge(Update{KeyIntent: 42})
		if !errors.Is(err, ErrSchema) {
			t.Errorf("got %v, want ErrSchema", err)
		}
	})

	t.Run("failed merge leaves receiver untouched", func(t *testing.T) {
		st := State{Intent: "keep"}
		_, err := st.Merge(Update{KeyIntent: "new", "bogus": 1})
		if !errors.Is(err, ErrSchema) {
			t.Fatalf("got %v, want ErrSchema", err)
		}
		if st.Intent != "keep" {
			t.Errorf("receiver mutated: intent = %q", st.Intent)
		}
	})

	t.Run("merge does not alias receiver slices", func(t *testing.T) {
		st := State{NodeHistory: []string{"router"}}
		out, err := st.Merge(Update{KeyNodeHistory: "planning"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out.NodeHistory[0] = "mutated"
		if st.NodeHistory[0] != "router" {
			t.Error("merge aliased the receiver's node history")
		}
	})

	t.Run("approved tri-state", func(t *testing.T) {
		st := State{}
		if st.Approved != nil {
			t.Fatal("zero state should have nil approved")
		}
		out, err := st.Merge(Update{KeyApproved: false})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.Approved == nil || *out.Approved {
			t.Errorf("approved = %v, want explicit false", out.Approved)
		}
	})

	t.Run("pending action deep copies payload", func(t *testing.T) {
		st := State{PendingAction: &PendingAction{
			ID:      "a1",
			Payload: map[string]any{"message": "hi"},
		}}
		out, err := st.Merge(Update{KeyIntent: "x"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out.PendingAction.Payload["message"] = "changed"
		if st.PendingAction.Payload["message"] != "hi" {
			t.Error("merge aliased the pending action payload")
		}
	})
}

func TestDomainPayload(t *testing.T) {
	type plan struct {
		ID    string `json:"id"`
		Count int    `json:"count"`
	}

	raw, err := DomainPayload(plan{ID: "p1", Count: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	st, err := State{}.Merge(Update{
		KeyDomain: map[string]json.RawMessage{"active_plan": raw},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got plan
	ok, err := st.UnmarshalDomain("active_plan", &got)
	if err != nil || !ok {
		t.Fatalf("unmarshal: ok=%v err=%v", ok, err)
	}
	if got.ID != "p1" || got.Count != 3 {
		t.Errorf("got %+v", got)
	}

	if ok, _ := st.UnmarshalDomain("absent", &got); ok {
		t.Error("absent key reported present")
	}
}

func TestStatusTerminal(t *testing.T) {
	for _, tc := range []struct {
		status Status
		want   bool
	}{
		{StatusRunning, false},
		{StatusSuspended, false},
		{StatusCompleted, true},
		{StatusFailed, true},
	} {
		if got := tc.status.Terminal(); got != tc.want {
			t.Errorf("%s.Terminal() = %v, want %v", tc.status, got, tc.want)
		}
	}
}
