package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testManifest = `name: flow
network:
  cidr: 10.20.0.0/16
services:
  - name: event-relay
    image: example.com/event-relay:1.0
    ports:
      - listener: 8100
        container: 9100
        path: /events/*
    healthCheck:
      path: /healthz
    cpu: 256
    memoryMb: 512
`

func writeTestManifest(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "platform.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestValidateCommand_ValidManifest(t *testing.T) {
	path := writeTestManifest(t, testManifest)

	cmd := (&ValidateCommand{}).GetCobraCommand()
	AssertCommandOutput(t, cmd, []string{"-f", path}, "Deployment flow is valid")
}

func TestValidateCommand_MissingManifest(t *testing.T) {
	cmd := (&ValidateCommand{}).GetCobraCommand()
	AssertCommandFailure(t, cmd, []string{"-f", filepath.Join(t.TempDir(), "platform.yaml")}, "not found")
}

func TestValidateCommand_InvalidService(t *testing.T) {
	path := writeTestManifest(t, `name: flow
services:
  - image: example.com/app:1.0
`)

	cmd := (&ValidateCommand{}).GetCobraCommand()
	AssertCommandFailure(t, cmd, []string{"-f", path}, "name")
}

func TestValidateCommand_ListenerConflict(t *testing.T) {
	path := writeTestManifest(t, `name: flow
services:
  - name: clash
    image: example.com/app:1.0
    ports:
      - listener: 80
        container: 9000
        path: /app/*
    healthCheck:
      path: /healthz
`)

	cmd := (&ValidateCommand{}).GetCobraCommand()
	AssertCommandFailure(t, cmd, []string{"-f", path}, "invalid")
}
