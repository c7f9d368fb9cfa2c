package resolver

import (
	"fmt"
	"strings"

	"github.com/atgreen/do-better/internal/pkgname"
	"github.com/atgreen/do-better/internal/setutil"
)

// RemovalPlan describes which installed packages the removal phase erases.
type RemovalPlan struct {
	// Erase is the sorted set of bare names to remove.
	Erase []string

	// Kept is the sorted set of installed names retained.
	Kept []string

	// Protected is the sorted subset of Kept retained only because of the
	// protected set, not the closure.
	Protected []string
}

// Empty reports whether the plan removes nothing. An empty plan is valid
// and expected for minimal seed sets.
func (p *RemovalPlan) Empty() bool {
	return len(p.Erase) == 0
}

// PlanRemoval computes the removal set: the normalized installed set minus
// the union of the keep set and the protected set.
//
// The protected invariant is checked here, before any erase call is made,
// not relied upon implicitly: a protected name in the erase set is a defect
// in the computation and aborts with ErrInvariant.
func PlanRemoval(installed, keep, protected []string) (*RemovalPlan, error) {
	installedNames := setutil.SortUnique(pkgname.NameAll(installed))
	retain := setutil.Union(keep, protected)

	erase := setutil.Difference(installedNames, retain)
	kept := setutil.Difference(installedNames, erase)

	if hit := setutil.Intersect(erase, protected); len(hit) > 0 {
		return nil, fmt.Errorf("%w: protected packages in removal set: %s", ErrInvariant, strings.Join(hit, ", "))
	}

	return &RemovalPlan{
		Erase:     erase,
		Kept:      kept,
		Protected: setutil.Intersect(installedNames, setutil.Difference(protected, keep)),
	}, nil
}
