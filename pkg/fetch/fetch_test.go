package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestGetHTML(t *testing.T) {
	var gotUA, gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotLang = r.Header.Get("Accept-Language")
		w.Write([]byte("<html><body>tramites</body></html>"))
	}))
	defer srv.Close()

	c := NewClient("test-agent", 5*time.Second)
	body, err := c.GetHTML(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("GetHTML() error = %v", err)
	}
	if !strings.Contains(body, "tramites") {
		t.Errorf("body = %q", body)
	}
	if gotUA != "test-agent" {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if !strings.HasPrefix(gotLang, "es-PE") {
		t.Errorf("Accept-Language = %q", gotLang)
	}
}

func TestGetHTMLErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient("", 5*time.Second)
	if _, err := c.GetHTML(context.Background(), srv.URL); err == nil {
		t.Fatal("GetHTML() on 404 should fail")
	}
}

func TestGetHTMLDefaultUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	c := NewClient("", 5*time.Second)
	if _, err := c.GetHTML(context.Background(), srv.URL); err != nil {
		t.Fatalf("GetHTML() error = %v", err)
	}
	if !strings.Contains(gotUA, "Mozilla/5.0") {
		t.Errorf("default User-Agent = %q", gotUA)
	}
}
