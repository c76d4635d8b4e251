package intent

import (
	"context"
	"testing"
)

func TestHeuristic(t *testing.T) {
	h := NewHeuristic()
	ctx := context.Background()

	t.Run("keyword classification", func(t *testing.T) {
		for _, tc := range []struct {
			message string
			want    string
		}{
			{"Select 20 drivers for tomorrow's deliveries", Selection},
			{"Notify all drivers the depot is closed", Communication},
			{"How many hours has driver 7 worked this week?", Compliance},
			{"Show me the current plan", PlanQuery},
			{"What's the weather like?", Unknown},
		} {
			res, err := h.Classify(ctx, tc.message, nil)
			if err != nil {
				t.Fatalf("classify %q: %v", tc.message, err)
			}
			if res.Intent != tc.want {
				t.Errorf("%q -> %s, want %s", tc.message, res.Intent, tc.want)
			}
		}
	})

	t.Run("communication outranks selection", func(t *testing.T) {
		res, _ := h.Classify(ctx, "notify the selected drivers", nil)
		if res.Intent != Communication {
			t.Errorf("got %s, want %s", res.Intent, Communication)
		}
	})

	t.Run("confidence never exceeds the degraded ceiling", func(t *testing.T) {
		res, _ := h.Classify(ctx, "Select 20 drivers", nil)
		if res.Confidence > DegradedConfidence {
			t.Errorf("confidence = %v, ceiling %v", res.Confidence, DegradedConfidence)
		}
	})

	t.Run("extracts driver counts", func(t *testing.T) {
		res, _ := h.Classify(ctx, "Select 20 drivers for tomorrow", nil)
		if got, _ := res.Params["count"].(int); got != 20 {
			t.Errorf("count = %v", res.Params["count"])
		}

		res, _ = h.Classify(ctx, "Select some drivers", nil)
		if _, present := res.Params["count"]; present {
			t.Errorf("unexpected count param: %v", res.Params)
		}
	})
}

func TestParseClassifyResponse(t *testing.T) {
	t.Run("strict json", func(t *testing.T) {
		res, err := parseClassifyResponse(`{"intent":"selection","confidence":0.92,"params":{"count":20}}`)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if res.Intent != Selection || res.Confidence != 0.92 {
			t.Errorf("got %+v", res)
		}
		if count, _ := res.Params["count"].(float64); count != 20 {
			t.Errorf("params = %v", res.Params)
		}
	})

	t.Run("json wrapped in prose", func(t *testing.T) {
		res, err := parseClassifyResponse("Sure! Here is the classification:\n" +
			`{"intent":"compliance","confidence":0.8}` + "\nLet me know if you need more.")
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if res.Intent != Compliance {
			t.Errorf("got %+v", res)
		}
	})

	t.Run("unknown intent rejected", func(t *testing.T) {
		if _, err := parseClassifyResponse(`{"intent":"make_coffee","confidence":0.9}`); err == nil {
			t.Error("expected error for fabricated intent")
		}
	})

	t.Run("out-of-range confidence rejected", func(t *testing.T) {
		if _, err := parseClassifyResponse(`{"intent":"selection","confidence":1.5}`); err == nil {
			t.Error("expected error for confidence > 1")
		}
	})

	t.Run("no json at all", func(t *testing.T) {
		if _, err := parseClassifyResponse("I am not sure what you mean."); err == nil {
			t.Error("expected error for missing JSON")
		}
	})
}

func TestMock(t *testing.T) {
	t.Run("returns responses in sequence then repeats", func(t *testing.T) {
		m := NewMock(
			Result{Intent: Selection, Confidence: 0.9},
			Result{Intent: Communication, Confidence: 0.8},
		)
		ctx := context.Background()

		first, _ := m.Classify(ctx, "one", nil)
		second, _ := m.Classify(ctx, "two", nil)
		third, _ := m.Classify(ctx, "three", nil)
		if first.Intent != Selection || second.Intent != Communication || third.Intent != Communication {
			t.Errorf("sequence = %s %s %s", first.Intent, second.Intent, third.Intent)
		}
		if m.Calls() != 3 {
			t.Errorf("calls = %d", m.Calls())
		}
		if msgs := m.Messages(); len(msgs) != 3 || msgs[0] != "one" {
			t.Errorf("messages = %v", msgs)
		}
	})
}
