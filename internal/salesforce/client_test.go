package salesforce

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSoqlEscape(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"plain@x.test", "plain@x.test"},
		{"o'brien@x.test", `o\'brien@x.test`},
		{`back\slash`, `back\\slash`},
	}
	for _, tc := range cases {
		if got := soqlEscape(tc.in); got != tc.want {
			t.Errorf("soqlEscape(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestInstanceURLFrom(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"myorg.my.salesforce.com", "https://myorg.my.salesforce.com"},
		{"https://myorg.my.salesforce.com", "https://myorg.my.salesforce.com"},
		{"https://myorg.my.salesforce.com/services", "https://myorg.my.salesforce.com"},
	}
	for _, tc := range cases {
		got, err := InstanceURLFrom(tc.in)
		if err != nil {
			t.Errorf("InstanceURLFrom(%q) error = %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("InstanceURLFrom(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFindContactOrLeadByEmail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		q := r.URL.Query().Get("q")
		switch {
		case strings.Contains(q, "FROM Contact"):
			w.Write([]byte(`{"totalSize":0,"records":[]}`))
		case strings.Contains(q, "FROM Lead"):
			w.Write([]byte(`{"totalSize":1,"records":[{"Id":"00Qabc","FirstName":"Ada"}]}`))
		default:
			t.Errorf("unexpected SOQL %q", q)
		}
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "token", "v59.0")
	if err != nil {
		t.Fatal(err)
	}
	got, err := c.FindContactOrLeadByEmail(context.Background(), "ada@x.test")
	if err != nil {
		t.Fatalf("FindContactOrLeadByEmail() error = %v, want nil", err)
	}
	if got == nil || got.ID != "00Qabc" || got.FirstName != "Ada" {
		t.Errorf("FindContactOrLeadByEmail() = %#v, want lead record", got)
	}
}

func TestFindContactOrLeadByEmailNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"totalSize":0,"records":[]}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "token", "")
	if err != nil {
		t.Fatal(err)
	}
	got, err := c.FindContactOrLeadByEmail(context.Background(), "nobody@x.test")
	if err != nil {
		t.Fatalf("FindContactOrLeadByEmail() error = %v, want nil", err)
	}
	if got != nil {
		t.Errorf("FindContactOrLeadByEmail() = %#v, want nil for unknown address", got)
	}
}

func TestLogActivityRejectionIsReportedNotFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `[{"message":"invalid WhoId","errorCode":"MALFORMED_ID"}]`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "token", "")
	if err != nil {
		t.Fatal(err)
	}
	result, err := c.LogActivity(context.Background(), "bad-id", "s", "b", DirectionInbound)
	if err != nil {
		t.Fatalf("LogActivity() error = %v, want rejection in result", err)
	}
	if result.Success || result.Error == "" {
		t.Errorf("LogActivity() = %#v, want unsuccessful result with error text", result)
	}
}

func TestLogActivitySuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sobjects/Task") {
			t.Errorf("path = %q, want Task create", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"00Tabc","success":true,"errors":[]}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "token", "")
	if err != nil {
		t.Fatal(err)
	}
	result, err := c.LogActivity(context.Background(), "003abc", "Hello", "body", DirectionOutbound)
	if err != nil {
		t.Fatalf("LogActivity() error = %v, want nil", err)
	}
	if !result.Success || result.ID != "00Tabc" {
		t.Errorf("LogActivity() = %#v, want success with task id", result)
	}
}
