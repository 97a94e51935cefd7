// Package resource models the declarative resource graph produced by
// the compiler. Every provisioned entity is a node with a logical
// identifier, a kind, a property bag and explicit dependency edges.
// The graph is what gets handed to the external provisioning engine;
// nothing in this package touches a cloud API.
package resource

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dominikbraun/graph"
)

// Kind identifies the provisioned resource type of a graph node.
type Kind string

// Resource kinds understood by the template renderer.
const (
	KindNetworkSegment     Kind = "NetworkSegment"
	KindSubnet             Kind = "Subnet"
	KindNatGateway         Kind = "NatGateway"
	KindSecurityGroup      Kind = "SecurityGroup"
	KindComputeCluster     Kind = "ComputeCluster"
	KindLoadBalancer       Kind = "LoadBalancer"
	KindTargetGroup        Kind = "TargetGroup"
	KindListener           Kind = "Listener"
	KindListenerRule       Kind = "ListenerRule"
	KindLogGroup           Kind = "LogGroup"
	KindTaskDefinition     Kind = "TaskDefinition"
	KindService            Kind = "Service"
	KindScalableTarget     Kind = "ScalableTarget"
	KindScalingPolicy      Kind = "ScalingPolicy"
	KindDatabase           Kind = "Database"
	KindSecret             Kind = "Secret"
	KindBucket             Kind = "Bucket"
	KindStateTable         Kind = "StateTable"
	KindComputeEnvironment Kind = "ComputeEnvironment"
	KindJobQueue           Kind = "JobQueue"
)

// Resource is one node of the compiled graph. Properties hold the
// renderer-facing attributes; DependsOn lists logical IDs that must be
// provisioned first.
type Resource struct {
	LogicalID  string
	Kind       Kind
	Properties map[string]any
	DependsOn  []string
}

// Graph is a directed acyclic graph of resources keyed by logical ID.
// Edges run from dependency to dependent, so a topological walk yields
// a valid provisioning order.
type Graph struct {
	g     graph.Graph[string, *Resource]
	order []string
}

// NewGraph creates an empty resource graph that rejects cycles.
func NewGraph() *Graph {
	return &Graph{
		g: graph.New(func(r *Resource) string { return r.LogicalID }, graph.Directed(), graph.PreventCycles()),
	}
}

// Add inserts a resource and its dependency edges. Every dependency
// must already exist in the graph; this is what enforces the staged
// construction order (target groups before listeners before rules).
func (g *Graph) Add(r *Resource) error {
	if r.LogicalID == "" {
		return fmt.Errorf("resource of kind %s has no logical ID", r.Kind)
	}

	if err := g.g.AddVertex(r); err != nil {
		if errors.Is(err, graph.ErrVertexAlreadyExists) {
			return fmt.Errorf("duplicate logical ID %q in resource graph", r.LogicalID)
		}
		return err
	}

	for _, dep := range r.DependsOn {
		if _, err := g.g.Vertex(dep); err != nil {
			return fmt.Errorf("resource %q depends on undeclared resource %q", r.LogicalID, dep)
		}
		if err := g.g.AddEdge(dep, r.LogicalID); err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
			return fmt.Errorf("adding dependency %q -> %q: %w", dep, r.LogicalID, err)
		}
	}

	g.order = append(g.order, r.LogicalID)
	return nil
}

// Get returns the resource with the given logical ID.
func (g *Graph) Get(logicalID string) (*Resource, error) {
	r, err := g.g.Vertex(logicalID)
	if err != nil {
		return nil, fmt.Errorf("unknown resource %q", logicalID)
	}
	return r, nil
}

// Len returns the number of resources in the graph.
func (g *Graph) Len() int {
	return len(g.order)
}

// Sorted returns all resources in deterministic topological order:
// dependencies first, ties broken by insertion order.
func (g *Graph) Sorted() ([]*Resource, error) {
	insertionRank := make(map[string]int, len(g.order))
	for i, id := range g.order {
		insertionRank[id] = i
	}

	ids, err := graph.StableTopologicalSort(g.g, func(a, b string) bool {
		return insertionRank[a] < insertionRank[b]
	})
	if err != nil {
		return nil, fmt.Errorf("resource graph is not acyclic: %w", err)
	}

	resources := make([]*Resource, 0, len(ids))
	for _, id := range ids {
		r, err := g.g.Vertex(id)
		if err != nil {
			return nil, err
		}
		resources = append(resources, r)
	}
	return resources, nil
}

// ByKind returns the resources of the given kind, sorted by logical ID.
func (g *Graph) ByKind(kind Kind) []*Resource {
	var matched []*Resource
	for _, id := range g.order {
		r, err := g.g.Vertex(id)
		if err != nil {
			continue
		}
		if r.Kind == kind {
			matched = append(matched, r)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].LogicalID < matched[j].LogicalID })
	return matched
}
