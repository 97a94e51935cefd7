// Package config provides configuration management for flow-ops
package config

import (
	"os"

	"github.com/spf13/viper"
)

// Provider defines the interface for configuration providers.
type Provider interface {
	// GetConfig returns the current application configuration.
	GetConfig() *Settings
	// SetConfig sets the application configuration.
	SetConfig(c *Settings)
	// InitConfig initializes the application configuration.
	InitConfig() *Settings
	// SetConfigFilePath sets the configuration file path.
	SetConfigFilePath(p string)
}

// defaultConfigProvider implements the Provider interface.
type defaultConfigProvider struct {
	cfg *Settings
}

// NewDefaultConfigProvider creates a new default config provider.
func NewDefaultConfigProvider() Provider {
	return &defaultConfigProvider{}
}

var defaultProvider = NewDefaultConfigProvider()
var cfg *Settings

// DefaultProvider returns the process-wide config provider.
func DefaultProvider() Provider {
	return defaultProvider
}

// Default configuration values for the flow-ops system.
const (
	DefaultRepositoryDir     = "/var/lib/flow-ops/repos"
	DefaultOutputDir         = "/var/lib/flow-ops/out"
	DefaultManifestDir       = "."
	DefaultStateDBPath       = "/var/lib/flow-ops/flow-ops.db"
	DefaultUserRepositoryDir = "$HOME/.local/share/flow-ops/repos"
	DefaultUserOutputDir     = "$HOME/.local/share/flow-ops/out"
	DefaultUserStateDBPath   = "$HOME/.local/share/flow-ops/flow-ops.db"
	DefaultUserMode          = false
	DefaultVerbose           = false
	DefaultVpcCidr           = "10.20.0.0/16"
	DefaultAvailabilityZones = 2
)

// Repository represents a git repository holding deployment manifests.
type Repository struct {
	Name        string `yaml:"name"`
	URL         string `yaml:"url"`
	Reference   string `yaml:"ref,omitempty"`
	ManifestDir string `yaml:"manifestDir,omitempty"`
}

// Settings represents the configuration for the flow-ops system. It contains
// paths for manifest repositories and rendered template artifacts, the state
// database location, and default network settings used when a manifest does
// not bring its own.
type Settings struct {
	RepositoryDir     string       `yaml:"repositoryDir"`
	OutputDir         string       `yaml:"outputDir"`
	ManifestDir       string       `yaml:"manifestDir"`
	Repositories      []Repository `yaml:"repositories"`
	StateDBPath       string       `yaml:"stateDBPath"`
	UserMode          bool         `yaml:"userMode"`
	Verbose           bool         `yaml:"verbose"`
	VpcCidr           string       `yaml:"vpcCidr"`
	AvailabilityZones int          `yaml:"availabilityZones"`
}

func (p *defaultConfigProvider) SetConfig(c *Settings) {
	p.cfg = c
}

func (p *defaultConfigProvider) GetConfig() *Settings {
	return p.cfg
}

func (p *defaultConfigProvider) SetConfigFilePath(path string) {
	viper.SetConfigFile(path)
}

func (p *defaultConfigProvider) InitConfig() *Settings {
	p.cfg = initConfigInternal()
	return p.cfg
}

// SetConfig sets the application configuration.
func SetConfig(c *Settings) {
	defaultProvider.SetConfig(c)
	cfg = c
}

// GetConfig returns the current application configuration.
func GetConfig() *Settings {
	return defaultProvider.GetConfig()
}

// SetConfigFilePath sets the configuration file path.
func SetConfigFilePath(p string) {
	defaultProvider.SetConfigFilePath(p)
}

// InitConfig initializes the application configuration.
func InitConfig() *Settings {
	cfg = defaultProvider.InitConfig()
	return cfg
}

// Internal function to initialize configuration.
func initConfigInternal() *Settings {
	cfg := &Settings{
		RepositoryDir:     DefaultRepositoryDir,
		OutputDir:         DefaultOutputDir,
		ManifestDir:       DefaultManifestDir,
		StateDBPath:       DefaultStateDBPath,
		UserMode:          DefaultUserMode,
		Verbose:           DefaultVerbose,
		VpcCidr:           DefaultVpcCidr,
		AvailabilityZones: DefaultAvailabilityZones,
	}

	viper.SetDefault("repositoryDir", DefaultRepositoryDir)
	viper.SetDefault("outputDir", DefaultOutputDir)
	viper.SetDefault("manifestDir", DefaultManifestDir)
	viper.SetDefault("stateDBPath", DefaultStateDBPath)
	viper.SetDefault("userMode", DefaultUserMode)
	viper.SetDefault("verbose", DefaultVerbose)
	viper.SetDefault("vpcCidr", DefaultVpcCidr)
	viper.SetDefault("availabilityZones", DefaultAvailabilityZones)

	// SetConfigName clears an explicitly set config file, so only
	// fall back to the search paths when no file was given.
	if viper.ConfigFileUsed() == "" {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(os.ExpandEnv("$HOME/.config/flow-ops"))
		viper.AddConfigPath("/etc/flow-ops")
		viper.AddConfigPath(".")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(err)
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		panic(err)
	}

	return cfg
}
