package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ardanlabs/blockgraph/app/services/grapher/handlers"
	"github.com/ardanlabs/blockgraph/business/core/graphview"
	"github.com/ardanlabs/blockgraph/business/web/errs"
	"github.com/ardanlabs/blockgraph/foundation/events"
	"github.com/ardanlabs/blockgraph/foundation/graph"
	"github.com/ardanlabs/blockgraph/foundation/graph/viewport"
	"github.com/ardanlabs/blockgraph/foundation/stream"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

type apiTest struct {
	t   *testing.T
	app http.Handler
	eng *graphview.Engine
}

func newAPITest(t *testing.T) *apiTest {
	log := zap.NewNop().Sugar()
	evts := events.New()

	eng, err := graphview.New(graphview.Config{
		Log:          log,
		Stream:       stream.New(4),
		Events:       evts,
		Canvas:       viewport.Size{Width: 800, Height: 600},
		TickInterval: time.Millisecond,
		FitDelay:     time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Should be able to construct an engine: %s", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go eng.Run(ctx)

	app := handlers.PublicMux(handlers.MuxConfig{
		Shutdown: make(chan os.Signal, 1),
		Log:      log,
		Engine:   eng,
		Evts:     evts,
	})

	return &apiTest{t: t, app: app, eng: eng}
}

func (at *apiTest) do(method string, path string, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	at.app.ServeHTTP(w, r)
	return w
}

func TestAPI(t *testing.T) {
	at := newAPITest(t)

	t.Log("Given the need to work with the graph API.")
	{
		t.Logf("\tTest 0:\tWhen nothing has been ingested.")
		{
			w := at.do(http.MethodGet, "/v1/fit?width=800&height=600", "")
			if w.Code != http.StatusNoContent {
				t.Fatalf("\t%s\tTest 0:\tShould receive a 204 for an empty fit, got %d.", failed, w.Code)
			}
			t.Logf("\t%s\tTest 0:\tShould receive a 204 for an empty fit.", success)

			w = at.do(http.MethodGet, "/v1/fit?width=abc", "")
			if w.Code != http.StatusBadRequest {
				t.Fatalf("\t%s\tTest 0:\tShould receive a 400 for a bad width, got %d.", failed, w.Code)
			}
			t.Logf("\t%s\tTest 0:\tShould receive a 400 for a bad width.", success)
		}

		t.Logf("\tTest 1:\tWhen submitting a batch.")
		{
			body := `{"type":"new_transactions","data":[{"hash":"h1","from":"A","to":"B","value":"5"}],"block":12}`
			w := at.do(http.MethodPost, "/v1/batches", body)
			if w.Code != http.StatusAccepted {
				t.Fatalf("\t%s\tTest 1:\tShould receive a 202, got %d: %s", failed, w.Code, w.Body)
			}
			t.Logf("\t%s\tTest 1:\tShould receive a 202.", success)

			deadline := time.Now().Add(5 * time.Second)
			for at.eng.Snapshot().Version != 1 {
				if time.Now().After(deadline) {
					t.Fatalf("\t%s\tTest 1:\tShould ingest the batch.", failed)
				}
				time.Sleep(5 * time.Millisecond)
			}

			w = at.do(http.MethodGet, "/v1/graph", "")
			var snap graph.Snapshot
			if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould decode the snapshot: %s", failed, err)
			}
			if len(snap.Nodes) != 2 || snap.ChainBlock != 12 {
				t.Fatalf("\t%s\tTest 1:\tShould report 2 nodes at chain block 12, got %d/%d.", failed, len(snap.Nodes), snap.ChainBlock)
			}
			t.Logf("\t%s\tTest 1:\tShould report the ingested graph.", success)

			w = at.do(http.MethodGet, "/v1/graph/nodes/B", "")
			if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"is_receiver":true`) {
				t.Fatalf("\t%s\tTest 1:\tShould return node B, got %d: %s", failed, w.Code, w.Body)
			}
			t.Logf("\t%s\tTest 1:\tShould return a single node.", success)

			w = at.do(http.MethodGet, "/v1/graph/nodes/Z", "")
			if w.Code != http.StatusNotFound {
				t.Fatalf("\t%s\tTest 1:\tShould receive a 404 for an unknown node, got %d.", failed, w.Code)
			}
			t.Logf("\t%s\tTest 1:\tShould receive a 404 for an unknown node.", success)

			w = at.do(http.MethodGet, "/v1/fit?width=800&height=600", "")
			if w.Code != http.StatusOK {
				t.Fatalf("\t%s\tTest 1:\tShould fit the positioned nodes, got %d.", failed, w.Code)
			}
			t.Logf("\t%s\tTest 1:\tShould fit the positioned nodes.", success)

			for _, q := range []string{"width=Inf&height=600", "width=800&height=NaN", "width=-Inf"} {
				w = at.do(http.MethodGet, "/v1/fit?"+q, "")
				if w.Code != http.StatusBadRequest {
					t.Fatalf("\t%s\tTest 1:\tShould receive a 400 for %s, got %d.", failed, q, w.Code)
				}
			}
			t.Logf("\t%s\tTest 1:\tShould receive a 400 for non-finite dimensions.", success)

			for _, path := range []string{"/v1/layout", "/v1/scene", "/v1/stats"} {
				w = at.do(http.MethodGet, path, "")
				if w.Code != http.StatusOK {
					t.Fatalf("\t%s\tTest 1:\tShould serve %s, got %d.", failed, path, w.Code)
				}
			}
			t.Logf("\t%s\tTest 1:\tShould serve layout, scene and stats.", success)
		}

		t.Logf("\tTest 2:\tWhen submitting a malformed batch.")
		{
			body := `{"type":"new_transactions","data":[{"hash":"h2","from":"A"},{"from":"B"}]}`
			w := at.do(http.MethodPost, "/v1/batches", body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("\t%s\tTest 2:\tShould receive a 400, got %d.", failed, w.Code)
			}

			var resp errs.Response
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould decode the error: %s", failed, err)
			}
			if _, exists := resp.Fields["transactions[1].hash"]; !exists {
				t.Fatalf("\t%s\tTest 2:\tShould name the offending field, got %v.", failed, resp.Fields)
			}
			t.Logf("\t%s\tTest 2:\tShould name the offending field.", success)

			w = at.do(http.MethodPost, "/v1/batches", `{"message":"Connected to SSE"}`)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("\t%s\tTest 2:\tShould reject an envelope without a batch, got %d.", failed, w.Code)
			}
			t.Logf("\t%s\tTest 2:\tShould reject an envelope without a batch.", success)
		}

		t.Logf("\tTest 3:\tWhen the stream is paused.")
		{
			if w := at.do(http.MethodPost, "/v1/pause", ""); w.Code != http.StatusOK {
				t.Fatalf("\t%s\tTest 3:\tShould pause, got %d.", failed, w.Code)
			}

			body := `{"type":"new_transactions","data":[{"hash":"h3","from":"C","to":"D"}]}`
			if w := at.do(http.MethodPost, "/v1/batches", body); w.Code != http.StatusServiceUnavailable {
				t.Fatalf("\t%s\tTest 3:\tShould receive a 503 while paused, got %d.", failed, w.Code)
			}
			t.Logf("\t%s\tTest 3:\tShould receive a 503 while paused.", success)

			if w := at.do(http.MethodPost, "/v1/resume", ""); w.Code != http.StatusOK || at.eng.Paused() {
				t.Fatalf("\t%s\tTest 3:\tShould resume, got %d.", failed, w.Code)
			}
			t.Logf("\t%s\tTest 3:\tShould resume.", success)
		}

		t.Logf("\tTest 4:\tWhen resizing the viewport.")
		{
			if w := at.do(http.MethodPost, "/v1/viewport", `{"width":0,"height":10}`); w.Code != http.StatusBadRequest {
				t.Fatalf("\t%s\tTest 4:\tShould reject an empty canvas, got %d.", failed, w.Code)
			}
			if w := at.do(http.MethodPost, "/v1/viewport", `{"width":1024,"height":768}`); w.Code != http.StatusAccepted {
				t.Fatalf("\t%s\tTest 4:\tShould accept the canvas, got %d.", failed, w.Code)
			}
			t.Logf("\t%s\tTest 4:\tShould validate the canvas.", success)
		}

		t.Logf("\tTest 5:\tWhen sending a preflight request.")
		{
			w := at.do(http.MethodOptions, "/preflight", "")
			if w.Code != http.StatusNoContent || w.Header().Get("Access-Control-Allow-Origin") != "*" {
				t.Fatalf("\t%s\tTest 5:\tShould answer the preflight, got %d.", failed, w.Code)
			}
			t.Logf("\t%s\tTest 5:\tShould answer the preflight.", success)
		}
	}
}
