// Package resolver computes which packages a rootfs must keep.
//
// The resolver is the computation layer under the engine. It expands a seed
// keep set to its full transitive runtime closure against the package
// database, and plans the removal of everything outside that closure.
//
// Key responsibilities:
//   - Closure: iterative fixpoint over a growing keep set
//   - Denylist enforcement: disallowed names never enter the keep set,
//     overriding any dependency edge
//   - PlanRemoval: set difference with a hard protected-package invariant
package resolver
