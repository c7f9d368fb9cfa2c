package resolver

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/atgreen/do-better/internal/pkgdb"
	"github.com/atgreen/do-better/internal/setutil"
)

// newAlphaUniverse builds the canonical test universe: alpha requires beta
// and gamma, beta requires nothing, gamma requires nothing.
func newAlphaUniverse() *pkgdb.FakeDatabase {
	db := pkgdb.NewFakeDatabase()
	db.AddPackage("alpha", "alpha-1.0-1", "beta", "gamma")
	db.AddPackage("beta", "beta-2.0-1")
	db.AddPackage("gamma", "gamma-3.0-1")
	return db
}

func diffSets(want, got []string) string {
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        want,
		B:        got,
		FromFile: "want",
		ToFile:   "got",
		Context:  2,
	})
	return diff
}

func TestClosure_DisallowOverridesRequirement(t *testing.T) {
	db := newAlphaUniverse()

	result, err := Closure(context.Background(), db, "/rootfs", []string{"alpha"}, []string{"gamma"}, Options{})
	if err != nil {
		t.Fatalf("Closure failed: %v", err)
	}

	want := []string{"alpha", "beta"}
	if !reflect.DeepEqual(result.Keep, want) {
		t.Errorf("keep set mismatch:\n%s", diffSets(want, result.Keep))
	}
	if setutil.Contains(result.Keep, "gamma") {
		t.Error("gamma must be excluded despite being a declared requirement")
	}
}

func TestClosure_TransitiveExpansion(t *testing.T) {
	db := pkgdb.NewFakeDatabase()
	db.AddPackage("bash", "bash-5.2.26-1.fc40", "ncurses-libs", "libc.so.6()(64bit)")
	db.AddPackage("ncurses-libs", "ncurses-libs-6.4-12.fc40", "libc.so.6()(64bit)")
	db.AddPackage("glibc", "glibc-2.39-5.fc40")
	db.Providers["libc.so.6()(64bit)"] = []string{"glibc-2.39-5.fc40"}

	result, err := Closure(context.Background(), db, "/rootfs", []string{"bash"}, nil, Options{})
	if err != nil {
		t.Fatalf("Closure failed: %v", err)
	}

	want := []string{"bash", "glibc", "ncurses-libs"}
	if !reflect.DeepEqual(result.Keep, want) {
		t.Errorf("keep set mismatch:\n%s", diffSets(want, result.Keep))
	}
}

func TestClosure_Idempotent(t *testing.T) {
	db := newAlphaUniverse()
	disallow := []string{"gamma"}

	first, err := Closure(context.Background(), db, "/rootfs", []string{"alpha"}, disallow, Options{})
	if err != nil {
		t.Fatalf("first Closure failed: %v", err)
	}

	second, err := Closure(context.Background(), db, "/rootfs", first.Keep, disallow, Options{})
	if err != nil {
		t.Fatalf("second Closure failed: %v", err)
	}

	if !setutil.Equal(first.Keep, second.Keep) {
		t.Errorf("closure of its own output changed:\n%s", diffSets(first.Keep, second.Keep))
	}
	// Re-running on a fixpoint needs exactly the stability iteration plus
	// the final no-change check.
	if second.Iterations > 2 {
		t.Errorf("closure of a fixpoint took %d iterations", second.Iterations)
	}
}

func TestClosure_NoProviderIsNotFatal(t *testing.T) {
	db := pkgdb.NewFakeDatabase()
	db.AddPackage("alpha", "alpha-1.0-1", "/usr/bin/mystery")

	result, err := Closure(context.Background(), db, "/rootfs", []string{"alpha"}, nil, Options{})
	if err != nil {
		t.Fatalf("Closure failed on unsatisfied requirement: %v", err)
	}

	want := []string{"alpha"}
	if !reflect.DeepEqual(result.Keep, want) {
		t.Errorf("keep set mismatch:\n%s", diffSets(want, result.Keep))
	}
	if len(result.Unsatisfied) != 1 || result.Unsatisfied[0] != "/usr/bin/mystery" {
		t.Errorf("Unsatisfied = %v, want [/usr/bin/mystery]", result.Unsatisfied)
	}
}

func TestClosure_MetaRequirementsFiltered(t *testing.T) {
	db := pkgdb.NewFakeDatabase()
	db.AddPackage("alpha", "alpha-1.0-1", "rpmlib(CompressedFileNames) <= 3.0.4-1", "beta")
	db.AddPackage("beta", "beta-2.0-1")
	// Even if a provider is registered for the token, it must never be
	// consulted.
	db.Providers["rpmlib(CompressedFileNames) <= 3.0.4-1"] = []string{"rpm-4.19.1-1.fc40"}

	result, err := Closure(context.Background(), db, "/rootfs", []string{"alpha"}, nil, Options{
		MetaPrefixes: []string{"rpmlib("},
	})
	if err != nil {
		t.Fatalf("Closure failed: %v", err)
	}

	if setutil.Contains(result.Keep, "rpm") {
		t.Error("meta requirement was resolved to a package")
	}
	if len(result.Unsatisfied) != 0 {
		t.Errorf("meta requirements must not be reported unsatisfied: %v", result.Unsatisfied)
	}
}

func TestClosure_MonotonicAndBounded(t *testing.T) {
	// Linear chain pkg0 -> pkg1 -> ... -> pkg19: the worst case for
	// iteration count. The loop must terminate within the universe size
	// plus the final no-change iteration.
	const n = 20
	db := pkgdb.NewFakeDatabase()
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("pkg%d", i)
		var requires []string
		if i < n-1 {
			requires = []string{fmt.Sprintf("pkg%d", i+1)}
		}
		db.AddPackage(name, fmt.Sprintf("%s-1.0-1", name), requires...)
	}

	result, err := Closure(context.Background(), db, "/rootfs", []string{"pkg0"}, nil, Options{})
	if err != nil {
		t.Fatalf("Closure failed: %v", err)
	}

	if len(result.Keep) != n {
		t.Errorf("keep set has %d members, want %d", len(result.Keep), n)
	}
	if result.Iterations > n+1 {
		t.Errorf("closure took %d iterations for a %d package universe", result.Iterations, n)
	}
}

func TestClosure_Deterministic(t *testing.T) {
	run := func() []string {
		db := newAlphaUniverse()
		result, err := Closure(context.Background(), db, "/rootfs", []string{"alpha", "beta"}, []string{"gamma"}, Options{})
		if err != nil {
			t.Fatalf("Closure failed: %v", err)
		}
		return result.Keep
	}

	first := run()
	second := run()
	if !reflect.DeepEqual(first, second) {
		t.Errorf("identical inputs produced different keep sets:\n%s", diffSets(first, second))
	}
}

func TestClosure_DisallowNeverInKeep(t *testing.T) {
	// Diamond: alpha and beta both require gamma; gamma is disallowed.
	db := pkgdb.NewFakeDatabase()
	db.AddPackage("alpha", "alpha-1.0-1", "gamma")
	db.AddPackage("beta", "beta-1.0-1", "gamma")
	db.AddPackage("gamma", "gamma-1.0-1", "delta")
	db.AddPackage("delta", "delta-1.0-1")

	result, err := Closure(context.Background(), db, "/rootfs", []string{"alpha", "beta"}, []string{"gamma"}, Options{})
	if err != nil {
		t.Fatalf("Closure failed: %v", err)
	}

	if hit := setutil.Intersect(result.Keep, []string{"gamma"}); len(hit) > 0 {
		t.Errorf("disallowed package entered keep set: %v", result.Keep)
	}
	// delta is only reachable through gamma and must not be pulled in.
	if setutil.Contains(result.Keep, "delta") {
		t.Errorf("dependency of a disallowed package entered keep set: %v", result.Keep)
	}
}

func TestClosure_AdapterFailureIsFatal(t *testing.T) {
	db := newAlphaUniverse()
	db.RequiresErr = errors.New("cannot open Packages database")

	_, err := Closure(context.Background(), db, "/rootfs", []string{"alpha"}, nil, Options{})
	if err == nil {
		t.Fatal("expected error for adapter failure")
	}
	if !strings.Contains(err.Error(), "cannot open Packages database") {
		t.Errorf("error should wrap the adapter failure, got: %v", err)
	}
}

func TestClosure_ProviderFailureIsFatal(t *testing.T) {
	db := newAlphaUniverse()
	db.ProvidesErr = errors.New("query failed")

	if _, err := Closure(context.Background(), db, "/rootfs", []string{"alpha"}, nil, Options{}); err == nil {
		t.Fatal("expected error for provider query failure")
	}
}

func TestClosure_CancelledContext(t *testing.T) {
	db := newAlphaUniverse()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := Closure(ctx, db, "/rootfs", []string{"alpha"}, nil, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if result != nil {
		t.Error("no partial result may be retained after cancellation")
	}
}

func TestClosure_DisallowedSeedViolatesInvariant(t *testing.T) {
	db := newAlphaUniverse()

	_, err := Closure(context.Background(), db, "/rootfs", []string{"gamma"}, []string{"gamma"}, Options{})
	if !errors.Is(err, ErrInvariant) {
		t.Errorf("expected ErrInvariant for disallowed seed, got %v", err)
	}
}
