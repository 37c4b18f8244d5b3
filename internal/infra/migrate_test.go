package infra

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestSplitSQL(t *testing.T) {
	in := `-- header
CREATE TABLE a (id INT);

  -- indented comment
CREATE INDEX a_idx ON a (id);
`
	want := []string{"CREATE TABLE a (id INT)", "CREATE INDEX a_idx ON a (id)"}
	if got := SplitSQL(in); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q", got)
	}
}

func TestMigrationFilesSorted(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0002_b.sql", "0001_a.sql", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	files, err := MigrationFiles(dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 2 || filepath.Base(files[0]) != "0001_a.sql" {
		t.Fatalf("files = %v", files)
	}
	if _, err := MigrationFiles(t.TempDir()); err == nil {
		t.Fatal("expected error for empty dir")
	}
}
