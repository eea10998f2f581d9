package main

import (
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tacsim.ai/internal/sim/catalogs"
	"tacsim.ai/internal/sim/mission"
	"tacsim.ai/internal/sim/tuning"
)

func newControlMux(t *testing.T) *http.ServeMux {
	t.Helper()
	cats, err := catalogs.Load(filepath.Join("..", "..", "configs"), "")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	logger := log.New(os.Stderr, "[test] ", 0)
	m := mission.New(mission.Config{ID: "ctl-test", Seed: 1, GridCols: 16, GridRows: 16, CellSize: 10}, tuning.Defaults(), cats, logger)

	// Input channels are buffered, so the handlers work without the loop running.
	mux := http.NewServeMux()
	registerControlHandlers(mux, m)
	return mux
}

func controlPost(mux *http.ServeMux, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.RemoteAddr = "127.0.0.1:40000"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestControl_AcceptsValidRequests(t *testing.T) {
	mux := newControlMux(t)

	cases := []struct {
		path, body string
	}{
		{"/v1/pause", `{"paused":true}`},
		{"/v1/spawn", `{"kind":"guard","pos":[10,10],"waypoints":[[10,10],[40,10]]}`},
		{"/v1/incident", `{"type":"BodyFound","pos":[25,25],"source":"G0001"}`},
		{"/v1/sound", `{"pos":[30,30],"intensity":0.8,"radius":60}`},
		{"/v1/override", `{"agent":"G0001","level":"Alert","source":[50,50],"target":"X0002"}`},
		{"/v1/cancel", `{"agent":"G0001"}`},
	}
	for _, c := range cases {
		if rec := controlPost(mux, c.path, c.body); rec.Code != http.StatusAccepted {
			t.Fatalf("%s: got %d want 202 (body %q)", c.path, rec.Code, rec.Body.String())
		}
	}
}

func TestControl_OverrideRejectsUnknownLevel(t *testing.T) {
	mux := newControlMux(t)
	rec := controlPost(mux, "/v1/override", `{"agent":"G0001","level":"frantic"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got %d want 400", rec.Code)
	}
}

func TestControl_RejectsWrongMethodAndRemote(t *testing.T) {
	mux := newControlMux(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/cancel", nil)
	req.RemoteAddr = "127.0.0.1:40000"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET: got %d want 405", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/cancel", strings.NewReader(`{"agent":"G0001"}`))
	req.RemoteAddr = "203.0.113.7:40000"
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-loopback: got %d want 403", rec.Code)
	}
}
