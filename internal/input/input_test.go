package input

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dvergara/leadtap/internal/model"
)

func writeTasks(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadAll(t *testing.T) {
	path := writeTasks(t, `
- country: US
  region: Tampa, FL
  category: Legal Services
- country: US
  region: Orlando, FL
  category: Dentists
`)

	tasks, err := NewStore(path).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks, want 2", len(tasks))
	}
	if tasks[0].Region != "Tampa, FL" || tasks[0].Category != "Legal Services" {
		t.Errorf("task 0 = %+v", tasks[0])
	}
	if tasks[0].Status != model.StatusPending {
		t.Errorf("status = %q, want pending", tasks[0].Status)
	}
	if got := tasks[1].Query(); got != "Dentists in Orlando, FL, US" {
		t.Errorf("Query() = %q", got)
	}
}

func TestReadAllSkipsBlankRows(t *testing.T) {
	path := writeTasks(t, `
- country: US
  region: Tampa, FL
  category: Legal Services
- country: ""
  region: ""
  category: ""
`)

	tasks, err := NewStore(path).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error: %v", err)
	}
	if len(tasks) != 1 {
		t.Errorf("got %d tasks, want blank row skipped", len(tasks))
	}
}

func TestReadAllRejectsPartialRows(t *testing.T) {
	path := writeTasks(t, `
- country: US
  region: Tampa, FL
  category: Legal Services
- country: US
  region: Orlando, FL
`)

	if _, err := NewStore(path).ReadAll(); err == nil {
		t.Error("ReadAll() = nil error for a row missing its category")
	}
}

func TestReadAllMissingFile(t *testing.T) {
	if _, err := NewStore(filepath.Join(t.TempDir(), "absent.yaml")).ReadAll(); err == nil {
		t.Error("ReadAll() = nil error for a missing file")
	}
}

func TestReadAllTrimsWhitespace(t *testing.T) {
	path := writeTasks(t, `
- country: "  US  "
  region: " Tampa, FL "
  category: " Legal Services "
`)

	tasks, err := NewStore(path).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error: %v", err)
	}
	if tasks[0].Country != "US" || tasks[0].Region != "Tampa, FL" {
		t.Errorf("fields not trimmed: %+v", tasks[0])
	}
}
