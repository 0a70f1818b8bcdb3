package pipeline

import (
	"os"
	"path/filepath"
	"testing"
)

func writeLabels(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "labels.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadLabelsIndexed(t *testing.T) {
	labels, err := LoadLabels(writeLabels(t, "0  person\n1  bicycle\n2  car\n87  teddy bear\n"))
	if err != nil {
		t.Fatalf("LoadLabels failed: %v", err)
	}
	if labels.Name(0) != "person" || labels.Name(87) != "teddy bear" {
		t.Errorf("labels: got %v", labels)
	}
}

func TestLoadLabelsPlain(t *testing.T) {
	labels, err := LoadLabels(writeLabels(t, "person\nbicycle\ntraffic light\n"))
	if err != nil {
		t.Fatalf("LoadLabels failed: %v", err)
	}
	if labels.Name(1) != "bicycle" || labels.Name(2) != "traffic light" {
		t.Errorf("labels: got %v", labels)
	}
}

func TestLabelsFallback(t *testing.T) {
	labels := Labels{0: "person"}
	if got := labels.Name(42); got != "42" {
		t.Errorf("unknown class: got %q, want 42", got)
	}
	var none Labels
	if got := none.Name(3); got != "3" {
		t.Errorf("nil labels: got %q", got)
	}
}

func TestLoadLabelsMissing(t *testing.T) {
	if _, err := LoadLabels(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Error("missing file should fail")
	}
}
