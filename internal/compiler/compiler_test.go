package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trly/flow-ops/internal/deploy"
	"github.com/trly/flow-ops/internal/log"
	"github.com/trly/flow-ops/internal/resource"
)

func testShared() Shared {
	return Shared{
		SegmentID:        "SharedVpc",
		ClusterID:        "SharedCluster",
		LoadBalancerID:   "SharedAlb",
		LoadBalancerHost: "${SharedAlb.DnsName}",
	}
}

func uiSpec() deploy.ServiceSpec {
	return deploy.ServiceSpec{
		Name:            "ui-frontend",
		Image:           deploy.RegistryImage{Ref: "public.ecr.aws/outerbounds/metaflow_ui:v1.1.1"},
		PortMappings:    []deploy.PortMapping{{ListenerPort: 3000, ContainerPort: 3000, PathPattern: "*"}},
		HealthCheckPath: "/",
		CPU:             512,
		MemoryMB:        1024,
		DesiredTasks:    1,
		MinTasks:        1,
		MaxTasks:        1,
		Scaling:         deploy.Scaling{TargetCPUPercent: 50, TargetMemoryPercent: 50},
	}
}

func TestCompileServiceSharedTargetGroup(t *testing.T) {
	c := New(log.NewLogger(false))

	spec := uiSpec()
	spec.Name = "ui-backend"
	spec.PortMappings = []deploy.PortMapping{
		{ListenerPort: 80, ContainerPort: 3000, PathPattern: "/"},
		{ListenerPort: 8080, ContainerPort: 3000, PathPattern: "/"},
	}
	spec.HealthCheckPort = 3000

	deployed, err := c.CompileService(spec, testShared())
	require.NoError(t, err)

	// Exactly one target group for container port 3000, two listeners
	// both referencing it.
	require.Len(t, deployed.TargetGroups, 1)
	require.Len(t, deployed.Listeners, 2)

	tgID := deployed.TargetGroups[3000]
	for _, port := range []int{80, 8080} {
		rule, err := c.Graph().Get(deployed.Rules[port])
		require.NoError(t, err)
		actions := rule.Properties["Actions"].([]map[string]any)
		require.Len(t, actions, 1)
		assert.Equal(t, tgID, actions[0]["TargetGroup"])
	}

	assert.Len(t, c.Graph().ByKind(resource.KindTargetGroup), 1)
	assert.Len(t, c.Graph().ByKind(resource.KindListener), 2)
}

func TestCompileServiceDuplicateListenerPortFailsEarly(t *testing.T) {
	c := New(log.NewLogger(false))

	spec := uiSpec()
	spec.PortMappings = []deploy.PortMapping{
		{ListenerPort: 80, ContainerPort: 3000, PathPattern: "/api/*"},
		{ListenerPort: 80, ContainerPort: 4000, PathPattern: "/"},
	}
	spec.HealthCheckPort = 3000

	_, err := c.CompileService(spec, testShared())
	require.Error(t, err)
	assert.True(t, deploy.IsConfigurationError(err))

	// Compilation failed before any resource was constructed.
	assert.Zero(t, c.Graph().Len())
}

func TestCompileServiceIdempotentStructure(t *testing.T) {
	compile := func() (*Compiler, *DeployedService) {
		c := New(log.NewLogger(false))
		spec := uiSpec()
		spec.PortMappings = []deploy.PortMapping{
			{ListenerPort: 80, ContainerPort: 3000, PathPattern: "/"},
			{ListenerPort: 8080, ContainerPort: 5432, PathPattern: "/db/*"},
		}
		spec.HealthCheckPort = 3000
		deployed, err := c.CompileService(spec, testShared())
		require.NoError(t, err)
		return c, deployed
	}

	c1, d1 := compile()
	c2, d2 := compile()

	assert.Equal(t, c1.Graph().Len(), c2.Graph().Len())
	assert.Equal(t, d1.TargetGroups, d2.TargetGroups)
	assert.Equal(t, d1.Listeners, d2.Listeners)

	sorted1, err := c1.Graph().Sorted()
	require.NoError(t, err)
	sorted2, err := c2.Graph().Sorted()
	require.NoError(t, err)
	require.Equal(t, len(sorted1), len(sorted2))
	for i := range sorted1 {
		assert.Equal(t, sorted1[i].LogicalID, sorted2[i].LogicalID)
		assert.Equal(t, sorted1[i].Kind, sorted2[i].Kind)
	}
}

func TestCompileServiceTargetGroupsBeforeListeners(t *testing.T) {
	c := New(log.NewLogger(false))

	deployed, err := c.CompileService(uiSpec(), testShared())
	require.NoError(t, err)

	sorted, err := c.Graph().Sorted()
	require.NoError(t, err)

	rank := make(map[string]int, len(sorted))
	for i, r := range sorted {
		rank[r.LogicalID] = i
	}

	tgRank := rank[deployed.TargetGroups[3000]]
	listenerRank := rank[deployed.Listeners[3000]]
	ruleRank := rank[deployed.Rules[3000]]

	assert.Less(t, tgRank, listenerRank)
	assert.Less(t, listenerRank, ruleRank)
}

func TestCompileServiceListenerDefaultAction(t *testing.T) {
	c := New(log.NewLogger(false))

	deployed, err := c.CompileService(uiSpec(), testShared())
	require.NoError(t, err)

	listener, err := c.Graph().Get(deployed.Listeners[3000])
	require.NoError(t, err)

	action := listener.Properties["DefaultAction"].(map[string]any)
	assert.Equal(t, "fixed-response", action["Type"])
	assert.Equal(t, 404, action["StatusCode"])
	assert.Equal(t, "Sorry mate! 404 Page not found.", action["Body"])
}

func TestCompileServiceHealthCheckInference(t *testing.T) {
	c := New(log.NewLogger(false))

	deployed, err := c.CompileService(uiSpec(), testShared())
	require.NoError(t, err)

	tg, err := c.Graph().Get(deployed.TargetGroups[3000])
	require.NoError(t, err)

	hc := tg.Properties["HealthCheck"].(map[string]any)
	assert.Equal(t, 3000, hc["Port"])
	assert.Equal(t, "/", hc["Path"])
}

func TestCompileServiceAmbiguousHealthCheckTarget(t *testing.T) {
	c := New(log.NewLogger(false))

	spec := uiSpec()
	spec.PortMappings = []deploy.PortMapping{
		{ListenerPort: 80, ContainerPort: 3000},
		{ListenerPort: 8080, ContainerPort: 4000},
	}
	spec.HealthCheckPort = 9999

	_, err := c.CompileService(spec, testShared())
	require.Error(t, err)
	assert.True(t, deploy.IsConfigurationError(err))
	assert.Contains(t, err.Error(), "ambiguous")
	assert.Zero(t, c.Graph().Len())
}

func TestCompileServiceScalingPercentOutOfRange(t *testing.T) {
	c := New(log.NewLogger(false))

	spec := uiSpec()
	spec.Scaling.TargetCPUPercent = 150

	_, err := c.CompileService(spec, testShared())
	require.Error(t, err)
	assert.True(t, deploy.IsConfigurationError(err))
	assert.Zero(t, c.Graph().Len())
}

func TestCompileServiceScalingBounds(t *testing.T) {
	c := New(log.NewLogger(false))

	deployed, err := c.CompileService(uiSpec(), testShared())
	require.NoError(t, err)

	target, err := c.Graph().Get(resource.LogicalID(deployed.Name, "scalable-target"))
	require.NoError(t, err)

	// min=max=1: the bounds pin the replica count at 1 regardless of
	// utilization.
	assert.Equal(t, 1, target.Properties["MinCapacity"])
	assert.Equal(t, 1, target.Properties["MaxCapacity"])

	policies := c.Graph().ByKind(resource.KindScalingPolicy)
	require.Len(t, policies, 2)
	metrics := []string{
		policies[0].Properties["Metric"].(string),
		policies[1].Properties["Metric"].(string),
	}
	assert.ElementsMatch(t, []string{"CPUUtilization", "MemoryUtilization"}, metrics)
}

func TestCompileServiceNetworkConflict(t *testing.T) {
	c := New(log.NewLogger(false))

	spec := uiSpec()
	spec.Network = deploy.NewNetwork{CIDR: "10.30.0.0/16"}

	_, err := c.CompileService(spec, testShared())
	require.Error(t, err)
	assert.True(t, deploy.IsResourceConflictError(err))
}

func TestCompileServiceMaterializesNetwork(t *testing.T) {
	c := New(log.NewLogger(false))

	spec := uiSpec()
	spec.Network = deploy.NewNetwork{CIDR: "10.30.0.0/16"}

	deployed, err := c.CompileService(spec, Shared{})
	require.NoError(t, err)
	require.NotNil(t, deployed)

	assert.Len(t, c.Graph().ByKind(resource.KindNetworkSegment), 1)
	assert.Len(t, c.Graph().ByKind(resource.KindSubnet), 4)
	assert.Len(t, c.Graph().ByKind(resource.KindNatGateway), 1)
	assert.Len(t, c.Graph().ByKind(resource.KindComputeCluster), 1)
	assert.Len(t, c.Graph().ByKind(resource.KindLoadBalancer), 1)
}

func TestCompileServiceInvalidCIDR(t *testing.T) {
	c := New(log.NewLogger(false))

	spec := uiSpec()
	spec.Network = deploy.NewNetwork{CIDR: "not-a-cidr"}

	_, err := c.CompileService(spec, Shared{})
	require.Error(t, err)
	assert.True(t, deploy.IsConfigurationError(err))
	assert.Contains(t, err.Error(), "not a valid CIDR")
}

func TestCompileServiceExistingNetworkPassthrough(t *testing.T) {
	c := New(log.NewLogger(false))

	spec := uiSpec()
	spec.Network = deploy.ExistingNetwork{SegmentID: "vpc-1234", ClusterID: "cluster-1234"}

	_, err := c.CompileService(spec, Shared{})
	require.NoError(t, err)

	// Pass-through: no segment or cluster nodes were materialized.
	assert.Empty(t, c.Graph().ByKind(resource.KindNetworkSegment))
	assert.Empty(t, c.Graph().ByKind(resource.KindComputeCluster))

	// The load balancer references the external segment in its
	// properties but must not declare a dependency edge on it.
	lbs := c.Graph().ByKind(resource.KindLoadBalancer)
	require.Len(t, lbs, 1)
	assert.Equal(t, "vpc-1234", lbs[0].Properties["NetworkSegment"])
	assert.Empty(t, lbs[0].DependsOn)
}

func TestCompileServiceUnresolvableExistingNetwork(t *testing.T) {
	c := New(log.NewLogger(false))

	spec := uiSpec()
	spec.Network = deploy.ExistingNetwork{SegmentID: "", ClusterID: "cluster-1234"}

	_, err := c.CompileService(spec, Shared{})
	require.Error(t, err)
	assert.True(t, deploy.IsExternalResolutionFailure(err))
}

func TestCompileServiceURL(t *testing.T) {
	c := New(log.NewLogger(false))

	spec := uiSpec()
	spec.Name = "ui-backend"
	spec.PortMappings = []deploy.PortMapping{{ListenerPort: 80, ContainerPort: 8083, PathPattern: "/api/*"}}
	spec.HealthCheckPath = "/api/ping"

	deployed, err := c.CompileService(spec, testShared())
	require.NoError(t, err)

	assert.Equal(t, "/api/", deployed.PathPrefix)
	assert.Equal(t, "http://${SharedAlb.DnsName}/api/", deployed.URL)
}

func TestCompileServiceLocalBuildImage(t *testing.T) {
	c := New(log.NewLogger(false))

	spec := uiSpec()
	spec.Image = deploy.LocalBuild{Context: ".", Args: map[string]string{"VERSION": "1.2.3"}}

	deployed, err := c.CompileService(spec, testShared())
	require.NoError(t, err)

	taskDef, err := c.Graph().Get(deployed.TaskDefID)
	require.NoError(t, err)

	image := taskDef.Properties["Image"].(map[string]any)
	build := image["Build"].(map[string]any)
	assert.Equal(t, ".", build["Context"])
	assert.Equal(t, "Dockerfile", build["Dockerfile"])
}

func TestCompileServiceEmptyBuildContext(t *testing.T) {
	c := New(log.NewLogger(false))

	spec := uiSpec()
	spec.Image = deploy.LocalBuild{}

	_, err := c.CompileService(spec, testShared())
	require.Error(t, err)
	assert.True(t, deploy.IsConfigurationError(err))
}

func TestMergeEnvOverridesWin(t *testing.T) {
	defaults := map[string]string{"LOGLEVEL": "INFO", "PATH_PREFIX": "/api/"}
	overrides := map[string]string{"LOGLEVEL": "DEBUG"}

	merged := MergeEnv(defaults, overrides)

	assert.Equal(t, "DEBUG", merged["LOGLEVEL"])
	assert.Equal(t, "/api/", merged["PATH_PREFIX"])
	// Inputs are untouched
	assert.Equal(t, "INFO", defaults["LOGLEVEL"])
}

func TestAttachOIDC(t *testing.T) {
	c := New(log.NewLogger(false))

	deployed, err := c.CompileService(uiSpec(), testShared())
	require.NoError(t, err)

	ruleID := deployed.Rules[3000]
	err = c.AttachOIDC(ruleID, OIDCConfig{
		IssuerURL:       "https://tenant.auth0.com/",
		ClientID:        "client-id",
		ClientSecretRef: "secret-ref",
	})
	require.NoError(t, err)

	rule, err := c.Graph().Get(ruleID)
	require.NoError(t, err)

	actions := rule.Properties["Actions"].([]map[string]any)
	require.Len(t, actions, 2)
	assert.Equal(t, "authenticate-oidc", actions[0]["Type"])
	assert.Equal(t, "https://tenant.auth0.com/", actions[0]["Issuer"])
	assert.Equal(t, "https://tenant.auth0.com/authorize", actions[0]["AuthorizationEndpoint"])
	assert.Equal(t, "openid profile", actions[0]["Scope"])
	assert.Equal(t, "forward", actions[1]["Type"])
}

func TestAttachOIDCMissingFields(t *testing.T) {
	c := New(log.NewLogger(false))

	err := c.AttachOIDC("SomeRule", OIDCConfig{IssuerURL: "https://tenant.auth0.com"})
	require.Error(t, err)
	assert.True(t, deploy.IsConfigurationError(err))
}

func TestAttachOIDCUnknownRule(t *testing.T) {
	c := New(log.NewLogger(false))

	err := c.AttachOIDC("Missing", OIDCConfig{
		IssuerURL:       "https://tenant.auth0.com",
		ClientID:        "id",
		ClientSecretRef: "ref",
	})
	require.Error(t, err)
	assert.True(t, deploy.IsExternalResolutionFailure(err))
}
