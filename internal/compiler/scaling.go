package compiler

import (
	"fmt"

	"github.com/trly/flow-ops/internal/deploy"
	"github.com/trly/flow-ops/internal/resource"
)

// validateScaling rejects utilization targets outside (0, 100]. A zero
// target disables that policy rather than failing.
func validateScaling(spec deploy.ServiceSpec) error {
	for _, target := range []struct {
		metric  string
		percent int
	}{
		{"CPUUtilization", spec.Scaling.TargetCPUPercent},
		{"MemoryUtilization", spec.Scaling.TargetMemoryPercent},
	} {
		if target.percent < 0 || target.percent > 100 {
			return &deploy.ConfigurationError{
				Service: spec.Name,
				Field:   "scaling",
				Detail:  fmt.Sprintf("%s target of %d%% is outside (0, 100]", target.metric, target.percent),
			}
		}
	}
	return nil
}

// bindAutoscaling attaches scale-out/scale-in policies to the deployed
// service handle: one CPU-utilization policy and one
// memory-utilization policy, both bounded by [minTasks, maxTasks]. No
// coordination between the two is defined beyond the autoscaling
// engine's native apply-whichever-fires semantics.
func (c *Compiler) bindAutoscaling(spec deploy.ServiceSpec, serviceID string) error {
	targetID := resource.LogicalID(spec.Name, "scalable-target")
	err := c.graph.Add(&resource.Resource{
		LogicalID: targetID,
		Kind:      resource.KindScalableTarget,
		Properties: map[string]any{
			"Service":     serviceID,
			"MinCapacity": spec.MinTasks,
			"MaxCapacity": spec.MaxTasks,
		},
		DependsOn: []string{serviceID},
	})
	if err != nil {
		return err
	}

	policies := []struct {
		name    string
		metric  string
		percent int
	}{
		{"cpu-scaling", "CPUUtilization", spec.Scaling.TargetCPUPercent},
		{"memory-scaling", "MemoryUtilization", spec.Scaling.TargetMemoryPercent},
	}

	for _, p := range policies {
		if p.percent == 0 {
			continue
		}

		props := map[string]any{
			"ScalableTarget": targetID,
			"Metric":         p.metric,
			"TargetPercent":  p.percent,
		}
		if spec.Scaling.ScaleInCooldown > 0 {
			props["ScaleInCooldownSeconds"] = int(spec.Scaling.ScaleInCooldown.Seconds())
		}
		if spec.Scaling.ScaleOutCooldown > 0 {
			props["ScaleOutCooldownSeconds"] = int(spec.Scaling.ScaleOutCooldown.Seconds())
		}

		err := c.graph.Add(&resource.Resource{
			LogicalID:  resource.LogicalID(spec.Name, p.name),
			Kind:       resource.KindScalingPolicy,
			Properties: props,
			DependsOn:  []string{targetID},
		})
		if err != nil {
			return err
		}
	}

	return nil
}
