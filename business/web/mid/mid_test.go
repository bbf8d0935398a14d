package mid_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/ardanlabs/blockgraph/business/web/errs"
	"github.com/ardanlabs/blockgraph/business/web/mid"
	"github.com/ardanlabs/blockgraph/foundation/validate"
	"github.com/ardanlabs/blockgraph/foundation/web"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func TestErrors(t *testing.T) {
	log := zap.NewNop().Sugar()

	app := web.NewApp(make(chan os.Signal, 1), mid.Logger(log), mid.Errors(log), mid.Metrics(), mid.Panics())

	app.Handle(http.MethodGet, "v1", "/trusted", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return errs.NewTrusted(errors.New("not here"), http.StatusNotFound)
	})
	app.Handle(http.MethodGet, "v1", "/fields", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return validate.FieldErrors{{Field: "transactions[0].hash", Error: "hash is a required field"}}
	})
	app.Handle(http.MethodGet, "v1", "/boom", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return errors.New("database password is hunter2")
	})
	app.Handle(http.MethodGet, "v1", "/panic", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		panic("boom")
	})

	tt := []struct {
		name   string
		path   string
		status int
		msg    string
		field  string
	}{
		{"trusted", "/v1/trusted", http.StatusNotFound, "not here", ""},
		{"fields", "/v1/fields", http.StatusBadRequest, "data validation error", "transactions[0].hash"},
		{"untrusted", "/v1/boom", http.StatusInternalServerError, "Internal Server Error", ""},
		{"panic", "/v1/panic", http.StatusInternalServerError, "Internal Server Error", ""},
	}

	t.Log("Given the need to map handler errors to responses.")
	{
		for i, tst := range tt {
			t.Logf("\tTest %d:\tWhen the handler returns a %s error.", i, tst.name)
			{
				w := httptest.NewRecorder()
				app.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tst.path, nil))

				if w.Code != tst.status {
					t.Fatalf("\t%s\tTest %d:\tShould receive a %d, got %d.", failed, i, tst.status, w.Code)
				}

				var resp errs.Response
				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould decode the response: %s", failed, i, err)
				}
				if resp.Error != tst.msg {
					t.Fatalf("\t%s\tTest %d:\tShould expose %q, got %q.", failed, i, tst.msg, resp.Error)
				}
				if tst.field != "" && resp.Fields[tst.field] == "" {
					t.Fatalf("\t%s\tTest %d:\tShould name the field %q, got %v.", failed, i, tst.field, resp.Fields)
				}
				t.Logf("\t%s\tTest %d:\tShould respond with %d and a safe message.", success, i, tst.status)
			}
		}
	}
}
