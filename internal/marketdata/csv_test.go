package marketdata

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempCSV(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "bars.csv")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write temp csv: %v", err)
	}
	return path
}

func TestOpenCSVFeedReadsRowsInOrder(t *testing.T) {
	t.Parallel()
	path := writeTempCSV(t, "time,open,high,low,close\n"+
		"2024-01-01T00:00:00Z,100,105,95,102\n"+
		"2024-01-01T01:00:00Z,102,110,101,108\n")

	feed, err := OpenCSVFeed(path)
	if err != nil {
		t.Fatalf("OpenCSVFeed: %v", err)
	}
	if feed.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", feed.Len())
	}

	b1, ok := feed.Next()
	if !ok {
		t.Fatal("Next() returned false on first bar")
	}
	if b1.Close != 102 {
		t.Errorf("first bar close = %v, want 102", b1.Close)
	}

	b2, ok := feed.Next()
	if !ok {
		t.Fatal("Next() returned false on second bar")
	}
	if b2.Open != 102 {
		t.Errorf("second bar open = %v, want 102", b2.Open)
	}

	if _, ok := feed.Next(); ok {
		t.Error("Next() after exhaustion = true, want false")
	}
}

func TestOpenCSVFeedRejectsShortHeader(t *testing.T) {
	t.Parallel()
	path := writeTempCSV(t, "time,open,high\n")

	if _, err := OpenCSVFeed(path); err == nil {
		t.Error("OpenCSVFeed with short header = nil error, want error")
	}
}

func TestOpenCSVFeedRejectsBadTime(t *testing.T) {
	t.Parallel()
	path := writeTempCSV(t, "time,open,high,low,close\nnot-a-time,1,2,0,1\n")

	if _, err := OpenCSVFeed(path); err == nil {
		t.Error("OpenCSVFeed with malformed time = nil error, want error")
	}
}

func TestOpenCSVFeedMissingFile(t *testing.T) {
	t.Parallel()
	if _, err := OpenCSVFeed(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Error("OpenCSVFeed on missing file = nil error, want error")
	}
}
