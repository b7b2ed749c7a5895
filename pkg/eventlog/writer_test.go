package eventlog

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gameforge/pkg/session"
)

func TestNewWriter(t *testing.T) {
	tmpDir := filepath.Join(t.TempDir(), "events")

	writer, err := NewWriter(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	defer writer.Close()

	if _, err := os.Stat(tmpDir); os.IsNotExist(err) {
		t.Error("Log directory was not created")
	}

	currentFile := writer.CurrentLogFile()
	if currentFile == "" {
		t.Fatal("No current log file set")
	}
	if _, err := os.Stat(currentFile); os.IsNotExist(err) {
		t.Error("Current log file does not exist")
	}
}

func TestRecordAndReadEvents(t *testing.T) {
	writer, err := NewWriter(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	defer writer.Close()

	events := []Event{
		{SessionID: "s1", From: session.PhaseInit, To: session.PhaseClarifying, Kind: session.KindInit},
		{SessionID: "s1", From: session.PhasePlanning, To: session.PhaseFailed, Kind: session.KindError, Attempts: 3, Error: "upstream 503"},
	}
	for _, ev := range events {
		if err := writer.Record(ev); err != nil {
			t.Fatalf("Failed to record event: %v", err)
		}
	}

	data, err := os.ReadFile(writer.CurrentLogFile())
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if data[len(data)-1] != '\n' {
		t.Error("Log line should end with newline")
	}

	got, err := ReadEvents(writer.CurrentLogFile())
	if err != nil {
		t.Fatalf("Failed to read events: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(got))
	}
	if got[0].Timestamp.IsZero() {
		t.Error("Expected timestamp to be stamped")
	}
	if got[1].To != session.PhaseFailed || got[1].Attempts != 3 || got[1].Error != "upstream 503" {
		t.Errorf("Unexpected failure event: %+v", got[1])
	}
}

func TestDailyRotation(t *testing.T) {
	tmpDir := t.TempDir()
	writer, err := NewWriter(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	defer writer.Close()

	day := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	writer.now = func() time.Time { return day }
	if err := writer.Record(Event{SessionID: "a"}); err != nil {
		t.Fatalf("Failed to record: %v", err)
	}
	day = day.Add(2 * time.Minute)
	if err := writer.Record(Event{SessionID: "b"}); err != nil {
		t.Fatalf("Failed to record: %v", err)
	}

	for _, name := range []string{"events-2026-03-01.jsonl", "events-2026-03-02.jsonl"} {
		evs, err := ReadEvents(filepath.Join(tmpDir, name))
		if err != nil {
			t.Fatalf("Failed to read %s: %v", name, err)
		}
		if len(evs) != 1 {
			t.Errorf("Expected 1 event in %s, got %d", name, len(evs))
		}
	}

	files, err := ListLogFiles(tmpDir)
	if err != nil {
		t.Fatalf("Failed to list log files: %v", err)
	}
	// today's file from NewWriter plus the two rotated days
	if len(files) < 2 {
		t.Errorf("Expected at least 2 log files, got %v", files)
	}
}

func TestConcurrentRecord(t *testing.T) {
	writer, err := NewWriter(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	defer writer.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = writer.Record(Event{SessionID: "s", From: session.PhaseInit, To: session.PhaseClarifying})
		}()
	}
	wg.Wait()

	got, err := ReadEvents(writer.CurrentLogFile())
	if err != nil {
		t.Fatalf("Failed to read events: %v", err)
	}
	if len(got) != 20 {
		t.Errorf("Expected 20 events, got %d", len(got))
	}
}

func TestReadEventsRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events-bad.jsonl")
	if err := os.WriteFile(path, []byte("{\"session_id\":\"a\"}\n\nnot json\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadEvents(path); err == nil {
		t.Error("Expected parse error")
	}
}

func TestNopSink(t *testing.T) {
	if err := Nop().Record(Event{}); err != nil {
		t.Errorf("Nop sink returned %v", err)
	}
}
