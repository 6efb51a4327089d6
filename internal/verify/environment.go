package verify

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/canyonroad/agentsh-runloop/internal/runloop"
)

//go:embed assets/Dockerfile
var embeddedDockerfile string

//go:embed assets/default.yaml
var embeddedDefaultPolicy string

//go:embed assets/config.yaml
var embeddedSiteConfig string

// Environment is the sandbox image definition: a Dockerfile plus the two
// policy documents baked into it. The documents are opaque blobs here; the
// policy engine inside the image interprets them.
type Environment struct {
	Dockerfile    string
	DefaultPolicy string
	SiteConfig    string
}

func DefaultEnvironment() Environment {
	return Environment{
		Dockerfile:    embeddedDockerfile,
		DefaultPolicy: embeddedDefaultPolicy,
		SiteConfig:    embeddedSiteConfig,
	}
}

// LoadEnvironment reads Dockerfile, default.yaml, and config.yaml from dir,
// replacing the embedded defaults wholesale.
func LoadEnvironment(dir string) (Environment, error) {
	read := func(name string) (string, error) {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return "", fmt.Errorf("read %s: %w", name, err)
		}
		return string(data), nil
	}

	dockerfile, err := read("Dockerfile")
	if err != nil {
		return Environment{}, err
	}
	defaultPolicy, err := read("default.yaml")
	if err != nil {
		return Environment{}, err
	}
	siteConfig, err := read("config.yaml")
	if err != nil {
		return Environment{}, err
	}
	return Environment{
		Dockerfile:    dockerfile,
		DefaultPolicy: defaultPolicy,
		SiteConfig:    siteConfig,
	}, nil
}

// BuildRequest assembles the blueprint creation payload. The documents are
// mounted under /tmp (user-writable during build); the launch commands copy
// them into /etc and install the shell shim when a devbox boots.
func (e Environment) BuildRequest(name string) runloop.CreateBlueprintRequest {
	return runloop.CreateBlueprintRequest{
		Name:       name,
		Dockerfile: e.Dockerfile,
		FileMounts: map[string]string{
			"/tmp/agentsh-config/default.yaml": e.DefaultPolicy,
			"/tmp/agentsh-config/config.yaml":  e.SiteConfig,
		},
		LaunchParameters: &runloop.LaunchParameters{
			LaunchCommands: []string{
				"sudo cp /tmp/agentsh-config/config.yaml /etc/agentsh/config.yaml",
				"sudo cp /tmp/agentsh-config/default.yaml /etc/agentsh/policies/default.yaml",
				"sudo agentsh shim install-shell --root / --shim /usr/bin/agentsh-shell-shim --bash --i-understand-this-modifies-the-host",
			},
		},
	}
}
