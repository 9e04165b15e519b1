package testutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

func TestInternalImportForbidden(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"vetclinic/internal/core", true},
		{"example.com/some/internal/deep/path", true},
		{"vetclinic/pkg/domain", false},
		{"internal", false},
		{"example.com/internal", false},
		{"notinternal", false},
		{"", false},
	}
	for _, c := range cases {
		if got := InternalImportForbidden(c.in); got != c.want {
			t.Errorf("InternalImportForbidden(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestStorageDriverImportForbidden(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"database/sql", true},
		{"database/sql/driver", true},
		{"github.com/jmoiron/sqlx", true},
		{"modernc.org/sqlite", true},
		{"modernc.org/sqlite/lib", true},
		{"github.com/jackc/pgx/v5/stdlib", true},
		{"database/sqlite", false},
		{"github.com/shopspring/decimal", false},
	}
	for _, c := range cases {
		if got := StorageDriverImportForbidden(c.in); got != c.want {
			t.Errorf("StorageDriverImportForbidden(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestAWSImportForbidden(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"github.com/aws/aws-sdk-go-v2/service/s3", true},
		{"github.com/aws/aws-sdk-go-v2", true},
		{"github.com/aws/smithy-go/middleware", true},
		{"github.com/awslabs/other", false},
		{"vetclinic/internal/blob", false},
	}
	for _, c := range cases {
		if got := AWSImportForbidden(c.in); got != c.want {
			t.Errorf("AWSImportForbidden(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

type recordingFatal struct {
	msg string
}

func (r *recordingFatal) Fatalf(format string, args ...any) {
	r.msg = fmt.Sprintf(format, args...)
}

func TestDirectImportViolations(t *testing.T) {
	dir := t.TempDir()
	write := func(name, src string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	write("store.go", "package tmp\nimport (\n\t\"fmt\"\n\tsq \"database/sql\"\n)\nvar _ = fmt.Sprint\nvar _ sq.DB\n")
	write("store_test.go", "package tmp\nimport \"modernc.org/sqlite\"\n")
	write("notes.txt", "import \"database/sql\"")
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	write(filepath.Join("nested", "x.go"), "package nested\nimport \"github.com/jackc/pgx/v5\"\n")

	viols, err := directImportViolations(dir, StorageDriverImportForbidden)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || viols[0] != "database/sql (in store.go)" {
		t.Fatalf("expected only the non-test top-level import, got %v", viols)
	}

	rec := &recordingFatal{}
	failIfDirectViolations(rec, "no sql", viols)
	if !strings.Contains(rec.msg, "database/sql") {
		t.Fatalf("expected the violation to be reported, got %q", rec.msg)
	}
	AssertNoDirectImports(t, dir, AWSImportForbidden, "no aws")

	if _, err := directImportViolations(filepath.Join(dir, "missing"), AWSImportForbidden); err == nil {
		t.Fatalf("expected an error for a missing directory")
	}
}

func TestTransitiveDependencyViolationsWithStubLoader(t *testing.T) {
	orig := loadPackages
	t.Cleanup(func() { loadPackages = orig })

	driver := &packages.Package{PkgPath: "modernc.org/sqlite"}
	store := &packages.Package{PkgPath: "vetclinic/internal/infra/persistence/sqlite", Imports: map[string]*packages.Package{"modernc.org/sqlite": driver}}
	root := &packages.Package{PkgPath: "vetclinic/internal/core", Imports: map[string]*packages.Package{store.PkgPath: store}}
	loadPackages = func(string) ([]*packages.Package, error) { return []*packages.Package{root}, nil }

	viols, err := transitiveDependencyViolations("./...", StorageDriverImportForbidden)
	if err != nil {
		t.Fatalf("violations: %v", err)
	}
	if len(viols) != 1 || viols[0] != "modernc.org/sqlite" {
		t.Fatalf("expected the driver to be found through the store, got %v", viols)
	}

	rec := &recordingFatal{}
	failIfTransitiveViolations(rec, "no drivers", viols)
	if rec.msg == "" {
		t.Fatalf("expected a failure to be reported")
	}
	failIfTransitiveViolations(t, "none", nil)

	loadPackages = func(string) ([]*packages.Package, error) { return nil, errors.New("no go command") }
	if _, err := transitiveDependencyViolations(".", AWSImportForbidden); err == nil {
		t.Fatalf("expected loader error")
	}
}

func TestAssertNoTransitiveDependencyOnThisPackage(t *testing.T) {
	AssertNoTransitiveDependency(t, ".", AWSImportForbidden, "testutil stays free of the AWS SDK")
}
