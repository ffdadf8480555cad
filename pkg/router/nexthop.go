package router

import (
	"fmt"

	"github.com/opd-ai/go-cells/pkg/cellerrors"
	"github.com/opd-ai/go-cells/pkg/envelope"
	"github.com/opd-ai/go-cells/pkg/topology"
)

// hop is the result of findNextHop: either "deliver locally" (self) or a
// concrete neighbor to forward to.
type hop struct {
	self     bool
	neighbor topology.CellRecord
}

// findNextHop returns the next hop for a message addressed to dest,
// given path, this cell's current position in the tree. It mirrors
// manager._find_next_hop, but manager._find_next_hop only ever walks in
// one vocabulary (routing_path grows toward dest); here path and dest
// are both global absolute cell paths, so which side must prefix which
// depends on direction: descending toward a child requires path to
// prefix dest, ascending toward a parent requires dest (an ancestor) to
// prefix path. An empty result plus a non-nil error means the path/dest
// relationship is invalid or the next neighbor is unknown, both
// reported as RoutingInconsistency.
func findNextHop(topo *topology.Cache, dest, path string, direction envelope.Direction) (hop, error) {
	if dest == path {
		return hop{self: true}, nil
	}

	curLabels := envelope.SplitPath(path)
	destLabels := envelope.SplitPath(dest)

	if direction == envelope.Up {
		return findNextHopUp(topo, dest, destLabels, curLabels)
	}
	return findNextHopDown(topo, dest, destLabels, curLabels)
}

// findNextHopDown walks toward a descendant: dest must be at least as
// deep as path and share it as a prefix, and the next hop is the child
// named by the label one level past path's depth.
func findNextHopDown(topo *topology.Cache, dest string, destLabels, curLabels []string) (hop, error) {
	if len(destLabels) < len(curLabels) {
		return hop{}, cellerrors.RoutingInconsistency(
			fmt.Sprintf("destination %q is shallower than routing path %q", dest, envelope.JoinPath(curLabels)))
	}
	if !envelope.IsPrefix(curLabels, destLabels) {
		return hop{}, cellerrors.RoutingInconsistency(
			fmt.Sprintf("destination %q does not share routing path %q as a prefix", dest, envelope.JoinPath(curLabels)))
	}

	nextLabel := destLabels[len(curLabels)]
	neighbor, ok := topo.Neighbor(envelope.Down, nextLabel)
	if !ok {
		return hop{}, cellerrors.RoutingInconsistency(
			fmt.Sprintf("unknown child %q routing to %q", nextLabel, dest))
	}
	return hop{neighbor: neighbor}, nil
}

// findNextHopUp walks toward an ancestor: dest must be no deeper than
// path and path must share dest as a prefix (dest is genuinely an
// ancestor of this cell), and the next hop is always this cell's
// immediate parent, whatever further hops dest still requires.
func findNextHopUp(topo *topology.Cache, dest string, destLabels, curLabels []string) (hop, error) {
	if len(destLabels) > len(curLabels) {
		return hop{}, cellerrors.RoutingInconsistency(
			fmt.Sprintf("destination %q is deeper than routing path %q", dest, envelope.JoinPath(curLabels)))
	}
	if !envelope.IsPrefix(destLabels, curLabels) {
		return hop{}, cellerrors.RoutingInconsistency(
			fmt.Sprintf("destination %q does not share routing path %q as a prefix", dest, envelope.JoinPath(curLabels)))
	}

	if len(curLabels) < 2 {
		return hop{}, cellerrors.RoutingInconsistency(
			fmt.Sprintf("no parent to route %q toward %q", envelope.JoinPath(curLabels), dest))
	}
	parentLabel := curLabels[len(curLabels)-2]
	neighbor, ok := topo.Neighbor(envelope.Up, parentLabel)
	if !ok {
		return hop{}, cellerrors.RoutingInconsistency(
			fmt.Sprintf("unknown parent %q routing to %q", parentLabel, dest))
	}
	return hop{neighbor: neighbor}, nil
}
