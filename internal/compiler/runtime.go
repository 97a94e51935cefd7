package compiler

import (
	"github.com/trly/flow-ops/internal/deploy"
	"github.com/trly/flow-ops/internal/resource"
)

// runtimeConfig is the finalized runtime configuration consumed by the
// routing stage. It is immutable once built.
type runtimeConfig struct {
	TaskDefID  string
	LogGroupID string
	Env        map[string]string
}

// packageRuntime attaches the resolved image source and the merged
// environment to a task definition with its log group. The image was
// resolved before compilation started; resolution failures are fatal
// and surfaced immediately since they always indicate a caller
// configuration defect, with no local recovery attempted.
func (c *Compiler) packageRuntime(spec deploy.ServiceSpec, image map[string]any) (runtimeConfig, error) {
	logGroupID := resource.LogicalID(spec.Name, "log-group")
	err := c.graph.Add(&resource.Resource{
		LogicalID: logGroupID,
		Kind:      resource.KindLogGroup,
		Properties: map[string]any{
			"StreamPrefix":  spec.Name,
			"RetentionDays": 3,
		},
	})
	if err != nil {
		return runtimeConfig{}, err
	}

	env := mergeEnv(nil, spec.Env)

	props := map[string]any{
		"Cpu":            spec.CPU,
		"MemoryMB":       spec.MemoryMB,
		"Image":          image,
		"ContainerPorts": spec.ContainerPorts(),
		"Environment":    env,
		"LogGroup":       logGroupID,
	}
	if len(spec.Command) > 0 {
		props["Command"] = spec.Command
	}

	taskDefID := resource.LogicalID(spec.Name, "task-definition")
	err = c.graph.Add(&resource.Resource{
		LogicalID:  taskDefID,
		Kind:       resource.KindTaskDefinition,
		Properties: props,
		DependsOn:  []string{logGroupID},
	})
	if err != nil {
		return runtimeConfig{}, err
	}

	return runtimeConfig{
		TaskDefID:  taskDefID,
		LogGroupID: logGroupID,
		Env:        env,
	}, nil
}

// resolveImage turns the image source variant into renderer-facing
// properties: a registry reference, or a local build descriptor.
func resolveImage(spec deploy.ServiceSpec) (map[string]any, error) {
	switch src := spec.Image.(type) {
	case deploy.RegistryImage:
		if src.Ref == "" {
			return nil, &deploy.ConfigurationError{
				Service: spec.Name,
				Field:   "image.registry",
				Detail:  "registry image reference is empty",
			}
		}
		return map[string]any{"Registry": src.Ref}, nil

	case deploy.LocalBuild:
		if src.Context == "" {
			return nil, &deploy.ConfigurationError{
				Service: spec.Name,
				Field:   "image.build",
				Detail:  "local build descriptor has no build context",
			}
		}
		dockerfile := src.Dockerfile
		if dockerfile == "" {
			dockerfile = "Dockerfile"
		}
		build := map[string]any{
			"Context":    src.Context,
			"Dockerfile": dockerfile,
		}
		if len(src.Args) > 0 {
			build["Args"] = src.Args
		}
		return map[string]any{"Build": build}, nil

	default:
		return nil, &deploy.ConfigurationError{
			Service: spec.Name,
			Field:   "image",
			Detail:  "unsupported image source",
		}
	}
}

// MergeEnv merges overrides into defaults; overrides win on key
// collision. Callers assembling an environment contract use this to
// layer manifest overrides over platform defaults before compiling.
func MergeEnv(defaults, overrides map[string]string) map[string]string {
	return mergeEnv(defaults, overrides)
}

// mergeEnv merges overrides into defaults; overrides win on key
// collision. Neither input map is mutated.
func mergeEnv(defaults, overrides map[string]string) map[string]string {
	merged := make(map[string]string, len(defaults)+len(overrides))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}
