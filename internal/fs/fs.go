// Package fs provides file system operations for synthesized artifact management
package fs

import (
	"crypto/sha1" //nolint:gosec // Not used for security purposes, just content comparison
	"fmt"
	"os"
	"path/filepath"

	"github.com/trly/flow-ops/internal/config"
	"github.com/trly/flow-ops/internal/log"
)

// Service provides file system operations with configurable paths.
type Service struct {
	configProvider config.Provider
	logger         log.Logger
}

// NewService creates a new filesystem service with the given config provider.
func NewService(configProvider config.Provider) *Service {
	return &Service{
		configProvider: configProvider,
		logger:         log.NewLogger(configProvider.GetConfig().Verbose),
	}
}

// NewServiceWithLogger creates a new filesystem service with explicit logger injection.
func NewServiceWithLogger(configProvider config.Provider, logger log.Logger) *Service {
	return &Service{
		configProvider: configProvider,
		logger:         logger,
	}
}

// GetDeploymentDirectory returns the directory synthesized artifacts
// for a deployment are written to.
func (s *Service) GetDeploymentDirectory(deployment string) string {
	return filepath.Join(s.configProvider.GetConfig().OutputDir, deployment)
}

// GetTemplatePath returns the full path of a deployment's resource template.
func (s *Service) GetTemplatePath(deployment string) string {
	return filepath.Join(s.GetDeploymentDirectory(deployment), "template.yaml")
}

// GetEnvFilePath returns the full path of a service's environment file.
func (s *Service) GetEnvFilePath(deployment, service string) string {
	return filepath.Join(s.GetDeploymentDirectory(deployment), "env", fmt.Sprintf("%s.env", service))
}

// HasArtifactChanged checks if the content of an artifact file has changed.
func (s *Service) HasArtifactChanged(path, content string) bool {
	existingContent, err := os.ReadFile(path) //nolint:gosec // Safe as path is internally constructed, not user-controlled
	if err != nil {
		// File doesn't exist or can't be read, so it has changed
		return true
	}

	s.logger.Debug("Content hash comparison",
		"existing", fmt.Sprintf("%x", GetContentHash(string(existingContent))),
		"new", fmt.Sprintf("%x", GetContentHash(content)))

	// Compare the actual content directly instead of hashes
	if string(existingContent) == content {
		s.logger.Debug("Artifact unchanged, skipping", "path", path)
		return false
	}

	return true
}

// WriteArtifactFile writes artifact content to the specified file path.
func (s *Service) WriteArtifactFile(path, content string) error {
	s.logger.Debug("Writing artifact", "path", path)

	// Ensure the parent directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}

	return os.WriteFile(path, []byte(content), 0600)
}

// GetContentHash calculates a SHA1 hash for content storage and change tracking.
func GetContentHash(content string) []byte {
	hash := sha1.New() //nolint:gosec // Not used for security purposes, just for content tracking
	hash.Write([]byte(content))
	return hash.Sum(nil)
}
