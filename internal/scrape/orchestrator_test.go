package scrape

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tramiteperu/tupa-scraper/models"
	"github.com/tramiteperu/tupa-scraper/pkg/browser"
	"github.com/tramiteperu/tupa-scraper/pkg/drivers"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeBrowser struct {
	initErr    error
	initCalls  atomic.Int32
	closeCalls atomic.Int32
	fetchCalls atomic.Int32
}

func (f *fakeBrowser) Init(context.Context) error {
	f.initCalls.Add(1)
	return f.initErr
}

func (f *fakeBrowser) Close() { f.closeCalls.Add(1) }

func (f *fakeBrowser) Fetch(context.Context, string, time.Duration) (string, error) {
	f.fetchCalls.Add(1)
	return "<html></html>", nil
}

type fakeDriver struct {
	entity  string
	records []models.ProcedureRecord
	err     error
	delay   time.Duration
	ran     atomic.Bool
}

func (f *fakeDriver) Entity() string { return f.entity }

func (f *fakeDriver) DiscoverURLs(context.Context, drivers.Fetcher) ([]string, error) {
	return nil, f.err
}

func (f *fakeDriver) ScrapeAll(context.Context, drivers.Fetcher) ([]models.ProcedureRecord, error) {
	f.ran.Store(true)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.records, f.err
}

func record(name, url string) models.ProcedureRecord {
	return models.ProcedureRecord{Name: name, SourceURL: url, Category: "General"}
}

func TestRunAllFlattensDriverOutput(t *testing.T) {
	session := &fakeBrowser{}
	a := &fakeDriver{entity: "A", records: []models.ProcedureRecord{record("a1", "u1"), record("a2", "u2")}}
	b := &fakeDriver{entity: "B", records: []models.ProcedureRecord{record("b1", "u3")}, delay: 10 * time.Millisecond}

	o := NewOrchestrator(session, []drivers.Driver{a, b}, testLogger)
	records, driverErrors, err := o.RunAll(context.Background())
	if err != nil {
		t.Fatalf("RunAll() error = %v", err)
	}
	if driverErrors != 0 {
		t.Errorf("driverErrors = %d", driverErrors)
	}
	if len(records) != 3 {
		t.Errorf("len(records) = %d, want 3", len(records))
	}
	if session.closeCalls.Load() != 1 {
		t.Errorf("Close called %d times, want exactly 1", session.closeCalls.Load())
	}
}

func TestRunAllToleratesDriverFailure(t *testing.T) {
	session := &fakeBrowser{}
	healthy := &fakeDriver{entity: "healthy", records: []models.ProcedureRecord{record("ok", "u1")}}
	broken := &fakeDriver{entity: "broken", err: &drivers.DriverError{Entity: "broken", Err: errors.New("listing timeout")}}

	o := NewOrchestrator(session, []drivers.Driver{healthy, broken}, testLogger)
	records, driverErrors, err := o.RunAll(context.Background())
	if err != nil {
		t.Fatalf("RunAll() error = %v, a driver failure must not escalate", err)
	}
	if driverErrors != 1 {
		t.Errorf("driverErrors = %d, want 1", driverErrors)
	}
	if len(records) != 1 || records[0].Name != "ok" {
		t.Errorf("records = %v, want the healthy driver's output", records)
	}
	if session.closeCalls.Load() != 1 {
		t.Errorf("Close called %d times, want exactly 1", session.closeCalls.Load())
	}
}

func TestRunAllLaunchFailureAbortsBeforeDrivers(t *testing.T) {
	launchErr := &browser.LaunchError{Err: errors.New("chrome not found")}
	session := &fakeBrowser{initErr: launchErr}
	d := &fakeDriver{entity: "A", records: []models.ProcedureRecord{record("a", "u")}}

	o := NewOrchestrator(session, []drivers.Driver{d}, testLogger)
	records, _, err := o.RunAll(context.Background())

	var le *browser.LaunchError
	if !errors.As(err, &le) {
		t.Fatalf("RunAll() error = %v, want *browser.LaunchError", err)
	}
	if records != nil {
		t.Errorf("records = %v, want none on launch failure", records)
	}
	if d.ran.Load() {
		t.Error("driver executed despite launch failure")
	}
	if session.closeCalls.Load() != 0 {
		t.Error("Close called for a browser that never opened")
	}
	if session.fetchCalls.Load() != 0 {
		t.Error("page context created despite launch failure")
	}
}

func TestRunAllEmptyDrivers(t *testing.T) {
	session := &fakeBrowser{}
	o := NewOrchestrator(session, nil, testLogger)
	records, driverErrors, err := o.RunAll(context.Background())
	if err != nil || driverErrors != 0 || len(records) != 0 {
		t.Errorf("empty run = (%v, %d, %v)", records, driverErrors, err)
	}
	if session.closeCalls.Load() != 1 {
		t.Errorf("Close called %d times, want exactly 1", session.closeCalls.Load())
	}
}
