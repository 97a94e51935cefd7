package compiler

import (
	"fmt"
	"net"

	"github.com/trly/flow-ops/internal/deploy"
	"github.com/trly/flow-ops/internal/resource"
)

// resolvedNetwork is the (network segment, compute cluster) pair every
// later stage binds against, plus the load balancer the routing stage
// attaches listeners to.
type resolvedNetwork struct {
	SegmentID        string
	ClusterID        string
	LoadBalancerID   string
	LoadBalancerHost string
	SecurityGroupIDs []string
}

// resolveNetwork determines which network segment and compute cluster
// the service binds to. An existing reference is passed through without
// materializing resources; a CIDR materializes a new segment and
// cluster. Supplying a per-service network while shared network
// resources are in play is a conflict.
func (c *Compiler) resolveNetwork(spec deploy.ServiceSpec, shared Shared) (resolvedNetwork, error) {
	if spec.Network != nil && (shared.SegmentID != "" || shared.ClusterID != "") {
		return resolvedNetwork{}, &deploy.ResourceConflictError{
			Service: spec.Name,
			First:   "a service-level network source",
			Second:  "shared network resources",
		}
	}

	var resolved resolvedNetwork
	switch src := spec.Network.(type) {
	case nil:
		if shared.SegmentID == "" || shared.ClusterID == "" {
			return resolvedNetwork{}, &deploy.ConfigurationError{
				Service: spec.Name,
				Field:   "network",
				Detail:  "no network source given and no shared network segment and cluster supplied",
			}
		}
		resolved = resolvedNetwork{
			SegmentID:        shared.SegmentID,
			ClusterID:        shared.ClusterID,
			SecurityGroupIDs: shared.SecurityGroupIDs,
		}

	case deploy.ExistingNetwork:
		if src.SegmentID == "" {
			return resolvedNetwork{}, &deploy.ExternalResolutionFailure{Kind: "network segment", ID: src.SegmentID}
		}
		if src.ClusterID == "" {
			return resolvedNetwork{}, &deploy.ExternalResolutionFailure{Kind: "compute cluster", ID: src.ClusterID}
		}
		resolved = resolvedNetwork{SegmentID: src.SegmentID, ClusterID: src.ClusterID}

	case deploy.NewNetwork:
		segmentID, clusterID, err := c.materializeNetwork(spec.Name, src.CIDR, minAvailabilityZones)
		if err != nil {
			return resolvedNetwork{}, err
		}
		resolved = resolvedNetwork{SegmentID: segmentID, ClusterID: clusterID}

	default:
		return resolvedNetwork{}, &deploy.ConfigurationError{
			Service: spec.Name,
			Field:   "network",
			Detail:  fmt.Sprintf("unsupported network source %T", spec.Network),
		}
	}

	if shared.LoadBalancerID != "" {
		resolved.LoadBalancerID = shared.LoadBalancerID
		resolved.LoadBalancerHost = shared.LoadBalancerHost
		return resolved, nil
	}

	lbID, err := c.addLoadBalancer(spec.Name, spec.Public, resolved.SegmentID)
	if err != nil {
		return resolvedNetwork{}, err
	}
	resolved.LoadBalancerID = lbID
	resolved.LoadBalancerHost = fmt.Sprintf("${%s.DnsName}", lbID)
	return resolved, nil
}

// CompileSharedNetwork materializes the shared network segment,
// compute cluster and load balancer that multiple services attach to,
// and returns the Shared handle passed to each CompileService call.
// Listener ports must stay disjoint across attached services; that is
// the callers' contract, not enforced here.
func (c *Compiler) CompileSharedNetwork(name, cidr string, availabilityZones int, public bool) (Shared, error) {
	segmentID, clusterID, err := c.materializeNetwork(name, cidr, availabilityZones)
	if err != nil {
		return Shared{}, err
	}

	lbID, err := c.addLoadBalancer(name, public, segmentID)
	if err != nil {
		return Shared{}, err
	}

	return Shared{
		SegmentID:        segmentID,
		ClusterID:        clusterID,
		LoadBalancerID:   lbID,
		LoadBalancerHost: fmt.Sprintf("${%s.DnsName}", lbID),
	}, nil
}

// minAvailabilityZones is the smallest zone spread a materialized
// network may have.
const minAvailabilityZones = 2

// materializeNetwork builds a new segmented network from a CIDR block:
// one public and one private subnet range per availability zone, a
// single NAT egress point, and a compute cluster bound to the segment.
func (c *Compiler) materializeNetwork(name, cidr string, availabilityZones int) (segmentID, clusterID string, err error) {
	if availabilityZones < minAvailabilityZones {
		availabilityZones = minAvailabilityZones
	}
	if _, _, parseErr := net.ParseCIDR(cidr); parseErr != nil {
		return "", "", &deploy.ConfigurationError{
			Service: name,
			Field:   "network.cidr",
			Detail:  fmt.Sprintf("%q is not a valid CIDR block", cidr),
		}
	}

	segmentID = resource.LogicalID(name, "vpc")
	err = c.graph.Add(&resource.Resource{
		LogicalID: segmentID,
		Kind:      resource.KindNetworkSegment,
		Properties: map[string]any{
			"Cidr":         cidr,
			"DnsSupport":   true,
			"DnsHostnames": true,
			"MaxAZs":       availabilityZones,
		},
	})
	if err != nil {
		return "", "", err
	}

	for az := 1; az <= availabilityZones; az++ {
		for _, visibility := range []string{"public", "private"} {
			subnetID := resource.LogicalID(name, visibility, "subnet", fmt.Sprintf("%d", az))
			err = c.graph.Add(&resource.Resource{
				LogicalID: subnetID,
				Kind:      resource.KindSubnet,
				Properties: map[string]any{
					"AvailabilityZone": az,
					"Visibility":       visibility,
					"CidrMask":         24,
				},
				DependsOn: []string{segmentID},
			})
			if err != nil {
				return "", "", err
			}
		}
	}

	natID := resource.LogicalID(name, "nat")
	publicSubnet1 := resource.LogicalID(name, "public", "subnet", "1")
	err = c.graph.Add(&resource.Resource{
		LogicalID:  natID,
		Kind:       resource.KindNatGateway,
		Properties: map[string]any{"Subnet": publicSubnet1},
		DependsOn:  []string{segmentID, publicSubnet1},
	})
	if err != nil {
		return "", "", err
	}

	clusterID = resource.LogicalID(name, "cluster")
	err = c.graph.Add(&resource.Resource{
		LogicalID:  clusterID,
		Kind:       resource.KindComputeCluster,
		Properties: map[string]any{"NetworkSegment": segmentID},
		DependsOn:  []string{segmentID},
	})
	if err != nil {
		return "", "", err
	}

	return segmentID, clusterID, nil
}

func (c *Compiler) addLoadBalancer(name string, public bool, segmentID string) (string, error) {
	lbID := resource.LogicalID(name, "alb")
	err := c.graph.Add(&resource.Resource{
		LogicalID: lbID,
		Kind:      resource.KindLoadBalancer,
		Properties: map[string]any{
			"InternetFacing": public,
			"NetworkSegment": segmentID,
		},
		DependsOn: c.depsIn(segmentID),
	})
	if err != nil {
		return "", err
	}
	return lbID, nil
}
