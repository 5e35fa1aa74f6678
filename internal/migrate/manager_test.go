package migrate

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCollectSQLOrdersLexically(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0002_clusters.up.sql", "0001_users.up.sql", "0003_schools.up.sql", "ignore.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("select 1;"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	files, err := collectSQL(dir, ".up.sql")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 3 {
		t.Fatalf("expected 3 files, got %d", len(files))
	}
	want := []string{"0001_users.up.sql", "0002_clusters.up.sql", "0003_schools.up.sql"}
	for i, f := range files {
		if f.Base != want[i] {
			t.Fatalf("order mismatch at %d: got %s want %s", i, f.Base, want[i])
		}
	}
}

func TestCollectSQLMissingDir(t *testing.T) {
	files, err := collectSQL(filepath.Join(t.TempDir(), "nope"), ".sql")
	if err != nil {
		t.Fatal(err)
	}
	if files != nil {
		t.Fatalf("expected nil, got %v", files)
	}
}

func TestSplitStatements(t *testing.T) {
	sql := `create table t(a text); insert into t values ('x;y'); select 1`
	stmts := splitStatements(sql)
	if len(stmts) != 3 {
		t.Fatalf("expected 3 statements, got %d: %q", len(stmts), stmts)
	}
	if stmts[1] != ` insert into t values ('x;y');` {
		t.Fatalf("quoted semicolon split incorrectly: %q", stmts[1])
	}
}
