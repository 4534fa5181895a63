package request_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/momentics/liftcore/engine"
	"github.com/momentics/liftcore/request"
)

func TestPrepareForPerformBuildsHandle(t *testing.T) {
	r := request.New(http.MethodPost, "http://example.invalid/path", []byte("payload"))
	r.Header.Set("X-Test", "1")

	if err := r.PrepareForPerform(); err != nil {
		t.Fatalf("PrepareForPerform: %v", err)
	}
	if r.Request == nil {
		t.Fatal("Request not populated")
	}
	if r.Request.Method != http.MethodPost {
		t.Fatalf("Method = %q, want POST", r.Request.Method)
	}
	if got := r.Request.Header.Get("X-Test"); got != "1" {
		t.Fatalf("header not carried over, got %q", got)
	}
	if r.Handle() == nil {
		t.Fatal("Handle() nil after successful PrepareForPerform")
	}
	if r.Handle().UserData != r {
		t.Fatal("Handle.UserData must back-point to the Request")
	}
}

func TestPrepareForPerformRejectsUnparseableURL(t *testing.T) {
	r := request.New(http.MethodGet, "://not-a-url", nil)
	if err := r.PrepareForPerform(); err == nil {
		t.Fatal("expected an error for an unparseable URL")
	}
	if r.Handle() != nil {
		t.Fatal("Handle must stay nil when prepare fails")
	}
}

func TestSetStatusCarriesCodeAndErr(t *testing.T) {
	r := request.New(http.MethodGet, "http://example.invalid/", nil)
	r.SetStatus(engine.Status{Code: 204})
	if r.StatusCode != 204 || r.Err != nil {
		t.Fatalf("SetStatus(204, nil) -> StatusCode=%d Err=%v", r.StatusCode, r.Err)
	}

	wantErr := errors.New("boom")
	r.SetStatus(engine.Status{Err: wantErr})
	if r.Err != wantErr {
		t.Fatalf("SetStatus did not carry the error through")
	}
}

func TestResetClearsFields(t *testing.T) {
	r := request.New(http.MethodPost, "http://example.invalid/", []byte("x"))
	r.Header.Set("A", "b")
	_ = r.PrepareForPerform()
	r.StatusCode = 200

	r.Reset()
	if r.Method != "" || r.URL != "" || r.Body != nil || r.Request != nil {
		t.Fatal("Reset left stale fields")
	}
	if r.StatusCode != 0 {
		t.Fatal("Reset did not clear StatusCode")
	}
	if len(r.Header) != 0 {
		t.Fatal("Reset did not clear Header")
	}
}

func TestPoolGetPutRecycles(t *testing.T) {
	p := request.NewPool()
	r := p.Get(http.MethodGet, "http://example.invalid/", nil)
	r.Header.Set("A", "b")
	p.Put(r)

	r2 := p.Get(http.MethodPost, "http://example.invalid/other", nil)
	if r2.Method != http.MethodPost || r2.URL != "http://example.invalid/other" {
		t.Fatal("Get did not set method/url on the recycled Request")
	}
	if len(r2.Header) != 0 {
		t.Fatal("recycled Request carried over a stale header from before Put's Reset")
	}
}
