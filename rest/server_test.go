package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fleetops/dispatchflow/dispatch"
	"github.com/fleetops/dispatchflow/dispatch/drivers"
	"github.com/fleetops/dispatchflow/dispatch/intent"
	"github.com/fleetops/dispatchflow/dispatch/notify"
	"github.com/fleetops/dispatchflow/flow"
	"github.com/fleetops/dispatchflow/flow/store"
)

func newTestServer(t *testing.T, classifier intent.Classifier) *httptest.Server {
	t.Helper()

	repo := drivers.NewMemRepository()
	for i := 0; i < 5; i++ {
		repo.Put(drivers.Driver{
			ID:           fmt.Sprintf("d%d", i),
			OrgID:        "org1",
			Rating:       4.0,
			Available:    true,
			LastAssigned: time.Now().Add(-24 * time.Hour),
		})
	}

	graph, err := dispatch.BuildGraph(dispatch.Deps{
		Classifier: classifier,
		Drivers:    repo,
		Gateway:    notify.NewMockGateway(),
	})
	if err != nil {
		t.Fatalf("build graph: %v", err)
	}

	registry := prometheus.NewRegistry()
	executor, err := flow.NewExecutor(graph, store.NewMemStore(), nil, flow.Options{
		Metrics: flow.NewMetrics(registry),
	})
	if err != nil {
		t.Fatalf("new executor: %v", err)
	}

	srv := httptest.NewServer(NewServer(0, executor, registry, nil).Handler)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

func TestHandleAdvance(t *testing.T) {
	t.Run("message runs to completion", func(t *testing.T) {
		srv := newTestServer(t, intent.NewMock(intent.Result{Intent: intent.Selection, Confidence: 0.9}))

		resp, _ := postJSON(t, srv.URL+"/sessions/s1/messages", MessageRequest{
			OrgID: "org1", UserID: "u1", Message: "Select 3 drivers",
		})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
	})

	t.Run("missing message is 400", func(t *testing.T) {
		srv := newTestServer(t, intent.NewMock(intent.Result{Intent: intent.Unknown}))
		resp, _ := postJSON(t, srv.URL+"/sessions/s1/messages", MessageRequest{OrgID: "org1"})
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d", resp.StatusCode)
		}
	})

	t.Run("terminal session is 410", func(t *testing.T) {
		srv := newTestServer(t, intent.NewMock(intent.Result{Intent: intent.Unknown}))

		if resp, _ := postJSON(t, srv.URL+"/sessions/s1/messages", MessageRequest{OrgID: "org1", Message: "hi"}); resp.StatusCode != http.StatusOK {
			t.Fatalf("first advance = %d", resp.StatusCode)
		}
		resp, _ := postJSON(t, srv.URL+"/sessions/s1/messages", MessageRequest{OrgID: "org1", Message: "again"})
		if resp.StatusCode != http.StatusGone {
			t.Errorf("status = %d", resp.StatusCode)
		}
	})

	t.Run("suspended session rejects messages with 409", func(t *testing.T) {
		srv := newTestServer(t, intent.NewMock(intent.Result{Intent: intent.Communication, Confidence: 0.9}))

		resp, body := postJSON(t, srv.URL+"/sessions/s1/messages", MessageRequest{OrgID: "org1", Message: "notify everyone"})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("advance = %d", resp.StatusCode)
		}
		var result flow.Result
		if err := json.Unmarshal(bodyBytes(body), &result); err != nil {
			t.Fatalf("decode result: %v", err)
		}
		if result.Status != flow.StatusSuspended {
			t.Fatalf("status = %s", result.Status)
		}

		resp, _ = postJSON(t, srv.URL+"/sessions/s1/messages", MessageRequest{OrgID: "org1", Message: "hurry"})
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("status = %d", resp.StatusCode)
		}
	})
}

func TestHandleResume(t *testing.T) {
	approved := true

	t.Run("approval completes the session", func(t *testing.T) {
		srv := newTestServer(t, intent.NewMock(intent.Result{Intent: intent.Communication, Confidence: 0.9}))
		postJSON(t, srv.URL+"/sessions/s1/messages", MessageRequest{OrgID: "org1", Message: "notify everyone"})

		resp, _ := postJSON(t, srv.URL+"/sessions/s1/approval", ApprovalRequest{Approved: &approved})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}

		// Second decision for the same gate.
		resp, _ = postJSON(t, srv.URL+"/sessions/s1/approval", ApprovalRequest{Approved: &approved})
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("second resume status = %d", resp.StatusCode)
		}
	})

	t.Run("unknown session is 404", func(t *testing.T) {
		srv := newTestServer(t, intent.NewMock(intent.Result{Intent: intent.Unknown}))
		resp, _ := postJSON(t, srv.URL+"/sessions/ghost/approval", ApprovalRequest{Approved: &approved})
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d", resp.StatusCode)
		}
	})

	t.Run("missing decision is 400", func(t *testing.T) {
		srv := newTestServer(t, intent.NewMock(intent.Result{Intent: intent.Unknown}))
		resp, _ := postJSON(t, srv.URL+"/sessions/s1/approval", ApprovalRequest{})
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d", resp.StatusCode)
		}
	})
}

func TestIntrospectionEndpoints(t *testing.T) {
	srv := newTestServer(t, intent.NewMock(intent.Result{Intent: intent.Unknown}))

	t.Run("graph", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/graph")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		var info flow.GraphInfo
		if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if info.Entry != dispatch.NodeRouter || len(info.Nodes) != 7 {
			t.Errorf("info = %+v", info)
		}
	})

	t.Run("healthz", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/healthz")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d", resp.StatusCode)
		}
	})

	t.Run("metrics", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/metrics")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d", resp.StatusCode)
		}
	})
}

func TestStatusFor(t *testing.T) {
	for _, tc := range []struct {
		err  error
		want int
	}{
		{flow.ErrAwaitingApproval, http.StatusConflict},
		{flow.ErrConflict, http.StatusConflict},
		{flow.ErrAlreadyResolved, http.StatusConflict},
		{flow.ErrNoSuchSession, http.StatusNotFound},
		{flow.ErrSessionTerminal, http.StatusGone},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	} {
		if got := statusFor(tc.err); got != tc.want {
			t.Errorf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

// bodyBytes re-marshals the decoded top-level object so a flow.Result
// can be unmarshaled from it.
func bodyBytes(decoded map[string]json.RawMessage) []byte {
	data, _ := json.Marshal(decoded)
	return data
}
