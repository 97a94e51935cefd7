package compiler

import (
	"fmt"

	"github.com/trly/flow-ops/internal/deploy"
	"github.com/trly/flow-ops/internal/resource"
)

// notFoundBody is the fixed-response default action body returned by a
// listener when no rule matches.
const notFoundBody = "Sorry mate! 404 Page not found."

// ruleForwardPriority is the priority assigned to every forwarding
// rule. It is intentionally not caller-tunable; multiple rules with
// overlapping path patterns on one listener will collide unless
// priorities are coordinated externally. Known open issue.
const ruleForwardPriority = 2

// validateHealthCheckTarget rejects specs where the resolved
// health-check port matches none of the container ports while more
// than one container port is present: every target group would share
// a health check aimed at a port it does not expose.
func validateHealthCheckTarget(spec deploy.ServiceSpec) error {
	containerPorts := spec.ContainerPorts()
	if len(containerPorts) <= 1 {
		return nil
	}
	if !containsPort(containerPorts, spec.HealthCheckPort) {
		return &deploy.ConfigurationError{
			Service: spec.Name,
			Field:   "healthCheckPort",
			Detail: fmt.Sprintf("health-check port %d matches none of the container ports %s; the health-check target is ambiguous",
				spec.HealthCheckPort, joinIntPorts(containerPorts)),
		}
	}
	return nil
}

// TargetGroupSet holds the compiled target groups keyed by container
// port. It is produced before any listener exists, so the type system
// enforces the construction order: target groups, then listeners, then
// rules.
type TargetGroupSet struct {
	byContainerPort map[int]string
	order           []int
}

// ListenerSet holds the compiled listeners and forwarding rules keyed
// by listener port.
type ListenerSet struct {
	byListenerPort      map[int]string
	rulesByListenerPort map[int]string
}

// compileTargetGroups constructs exactly one target group per distinct
// container port in the mapping list, each health-checked on the
// spec's resolved health-check port and path. Mappings sharing a
// container port reuse the same target group, so one internal port can
// be reached through multiple listener ports without duplicating
// health checks.
func (c *Compiler) compileTargetGroups(spec deploy.ServiceSpec, net resolvedNetwork) (*TargetGroupSet, error) {
	containerPorts := spec.ContainerPorts()

	set := &TargetGroupSet{byContainerPort: make(map[int]string, len(containerPorts))}
	for _, port := range containerPorts {
		tgID := resource.LogicalID(spec.Name, "target-group", fmt.Sprintf("%d", port))
		err := c.graph.Add(&resource.Resource{
			LogicalID: tgID,
			Kind:      resource.KindTargetGroup,
			Properties: map[string]any{
				"Port":       port,
				"Protocol":   "HTTP",
				"TargetType": "ip",
				"HealthCheck": map[string]any{
					"Port":     spec.HealthCheckPort,
					"Path":     spec.HealthCheckPath,
					"Protocol": "HTTP",
				},
			},
			DependsOn: c.depsIn(net.SegmentID),
		})
		if err != nil {
			return nil, err
		}
		set.byContainerPort[port] = tgID
		set.order = append(set.order, port)
	}

	return set, nil
}

// compileListeners constructs one listener per listener port, each
// with a fixed 404 fallback action and exactly one forwarding rule
// matching the mapping's path pattern. Listeners reference target
// groups through the already-built TargetGroupSet, which keeps the
// dependency order explicit.
func (c *Compiler) compileListeners(spec deploy.ServiceSpec, net resolvedNetwork, targetGroups *TargetGroupSet) (*ListenerSet, error) {
	set := &ListenerSet{
		byListenerPort:      make(map[int]string, len(spec.PortMappings)),
		rulesByListenerPort: make(map[int]string, len(spec.PortMappings)),
	}

	for _, mapping := range spec.PortMappings {
		tgID, ok := targetGroups.byContainerPort[mapping.ContainerPort]
		if !ok {
			return nil, &deploy.ConfigurationError{
				Service: spec.Name,
				Field:   "portMappings",
				Detail:  fmt.Sprintf("no target group exists for container port %d", mapping.ContainerPort),
			}
		}

		listenerID := resource.LogicalID(spec.Name, "listener", fmt.Sprintf("%d", mapping.ListenerPort))
		err := c.graph.Add(&resource.Resource{
			LogicalID: listenerID,
			Kind:      resource.KindListener,
			Properties: map[string]any{
				"Port":         mapping.ListenerPort,
				"Protocol":     "HTTP",
				"LoadBalancer": net.LoadBalancerID,
				"DefaultAction": map[string]any{
					"Type":        "fixed-response",
					"StatusCode":  404,
					"ContentType": "text/html",
					"Body":        notFoundBody,
				},
			},
			DependsOn: c.depsIn(net.LoadBalancerID, tgID),
		})
		if err != nil {
			return nil, err
		}

		ruleID := resource.LogicalID(spec.Name, "listener-rule", fmt.Sprintf("%d", mapping.ListenerPort))
		err = c.graph.Add(&resource.Resource{
			LogicalID: ruleID,
			Kind:      resource.KindListenerRule,
			Properties: map[string]any{
				"Listener":    listenerID,
				"Priority":    ruleForwardPriority,
				"PathPattern": mapping.Pattern(),
				"Actions": []map[string]any{
					{"Type": "forward", "TargetGroup": tgID},
				},
			},
			DependsOn: []string{listenerID, tgID},
		})
		if err != nil {
			return nil, err
		}

		set.byListenerPort[mapping.ListenerPort] = listenerID
		set.rulesByListenerPort[mapping.ListenerPort] = ruleID
	}

	return set, nil
}

func containsPort(ports []int, port int) bool {
	for _, p := range ports {
		if p == port {
			return true
		}
	}
	return false
}

func joinIntPorts(ports []int) string {
	out := ""
	for i, p := range ports {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%d", p)
	}
	return out
}
