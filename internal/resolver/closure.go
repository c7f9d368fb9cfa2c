package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/atgreen/do-better/internal/pkgdb"
	"github.com/atgreen/do-better/internal/pkgname"
	"github.com/atgreen/do-better/internal/setutil"
)

// ErrInvariant indicates a name was detected in a place the algorithm
// guarantees it cannot be. It marks a defect in the resolver itself, never
// a runtime condition, and must abort the build loudly.
var ErrInvariant = errors.New("invariant violation")

// Options configures closure computation.
type Options struct {
	// MetaPrefixes lists requirement prefixes identifying manager-internal
	// capability tokens, which are never resolved to packages.
	MetaPrefixes []string
}

// ClosureResult is the outcome of a closure computation.
type ClosureResult struct {
	// Keep is the stabilized keep set: the smallest superset of the seeds
	// whose every runtime requirement is satisfied by another member.
	Keep []string

	// Iterations is the number of fixpoint iterations performed, including
	// the final iteration that produced no change.
	Iterations int

	// Unsatisfied lists requirements that had no provider. These are
	// warnings, not failures: a requirement may be satisfied outside
	// package granularity.
	Unsatisfied []string
}

// Closure expands keep0 to its full transitive runtime closure against the
// database, excluding anything in disallow.
//
// Each iteration takes an immutable snapshot of the keep set, proposes new
// names from the declared requirements of the snapshot, filters the
// proposals against the denylist, and stops when a snapshot equals its
// predecessor. Filtering happens after provider resolution so the denylist
// override is applied at one visible point, never buried in query
// construction.
func Closure(ctx context.Context, db pkgdb.Database, root string, keep0, disallow []string, opts Options) (*ClosureResult, error) {
	keep := setutil.SortUnique(keep0)
	prev := []string{}
	unsatisfied := []string{}
	iterations := 0

	for !setutil.Equal(keep, prev) {
		// A partially computed closure is not a valid state to keep, so the
		// iteration boundary is the cancellation point and the accumulated
		// set is discarded.
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		prev = keep
		iterations++

		requirements, err := db.QueryRequires(ctx, root, keep)
		if err != nil {
			return nil, fmt.Errorf("failed to query requirements: %w", err)
		}

		var proposed []string
		for _, req := range setutil.SortUnique(requirements) {
			if hasMetaPrefix(req, opts.MetaPrefixes) {
				continue
			}

			providers, err := db.QueryWhatProvides(ctx, root, req)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve requirement %q: %w", req, err)
			}
			if len(providers) == 0 {
				unsatisfied = append(unsatisfied, req)
				continue
			}

			proposed = append(proposed, pkgname.NameAll(providers)...)
		}

		// The denylist is stronger than any dependency edge.
		proposed = setutil.Difference(proposed, disallow)
		keep = setutil.Union(keep, proposed)

		if hit := setutil.Intersect(keep, disallow); len(hit) > 0 {
			return nil, fmt.Errorf("%w: disallowed packages in keep set: %s", ErrInvariant, strings.Join(hit, ", "))
		}
	}

	return &ClosureResult{
		Keep:        keep,
		Iterations:  iterations,
		Unsatisfied: setutil.SortUnique(unsatisfied),
	}, nil
}

func hasMetaPrefix(requirement string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(requirement, prefix) {
			return true
		}
	}
	return false
}
