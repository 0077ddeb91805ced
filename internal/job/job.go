package job

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Profile namespaces
const (
	NamespacePegasus = "pegasus"
	NamespaceCondor  = "condor"
	NamespaceEnv     = "env"
)

// Profile keys consulted when wrapping a job in a container
const (
	// KeyGPUs is the pegasus namespace GPU request
	KeyGPUs = "gpus"

	// KeyRequestGPUs is the condor namespace GPU request
	KeyRequestGPUs = "request_gpus"

	// KeyContainerArguments holds extra arguments passed verbatim to the container runtime
	KeyContainerArguments = "container.arguments"

	// KeyContainerLauncher names a launcher that wraps the container runtime invocation
	KeyContainerLauncher = "container.launcher"

	// KeyContainerLauncherArguments holds arguments for the launcher
	KeyContainerLauncherArguments = "container.launcher.arguments"
)

// Job is a single unit of work that may run inside a container
type Job struct {
	// ID uniquely identifies the job within a workflow
	ID string

	// Executable and Arguments form the job payload
	Executable string
	Arguments  []string

	// Container the job runs in, nil when the job is not containerized
	Container *Container

	// Profiles attached to the job (pegasus, condor, ...)
	Profiles Profiles
}

// LaunchScriptName returns the name of the job-local script launched inside the container
func (j *Job) LaunchScriptName() string {
	return j.ID + "-cont.sh"
}

// Container describes the image a job runs in
type Container struct {
	// LFN is the logical filename of the image
	LFN string

	// Image is the source URL of the image, e.g. docker:///centos:7
	Image string

	// MountPoints are bind mounted in order
	MountPoints []MountPoint

	// Profiles attached to the container; env holds environment variables
	Profiles Profiles
}

// Env returns the environment variables declared for the container
func (c *Container) Env() map[string]string {
	return c.Profiles.Namespace(NamespaceEnv)
}

// MountPoint maps a host directory into the container
type MountPoint struct {
	Source      string
	Destination string
	Options     string
}

// ParseMountPoint parses src:dst[:options]
func ParseMountPoint(s string) (MountPoint, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return MountPoint{}, fmt.Errorf("invalid mount point %q: expected src:dst[:options]", s)
	}

	mp := MountPoint{Source: parts[0], Destination: parts[1]}
	if len(parts) == 3 {
		mp.Options = parts[2]
	}
	return mp, nil
}

// String renders the mount point as a runtime bind mount value
func (m MountPoint) String() string {
	if m.Options == "" {
		return m.Source + ":" + m.Destination
	}
	return m.Source + ":" + m.Destination + ":" + m.Options
}

// UnmarshalYAML decodes a mount point from a src:dst[:options] scalar
func (m *MountPoint) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}

	mp, err := ParseMountPoint(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*m = mp
	return nil
}

// Profiles maps a namespace to its key/value pairs
type Profiles map[string]map[string]string

// Get returns the value stored under key in namespace ns
func (p Profiles) Get(ns, key string) (string, bool) {
	v, ok := p[ns][key]
	return v, ok
}

// Has reports whether key is present in namespace ns, regardless of value
func (p Profiles) Has(ns, key string) bool {
	_, ok := p.Get(ns, key)
	return ok
}

// Namespace returns the pairs of ns, never nil
func (p Profiles) Namespace(ns string) map[string]string {
	if m, ok := p[ns]; ok && m != nil {
		return m
	}
	return map[string]string{}
}

// Set stores value under key in namespace ns
func (p Profiles) Set(ns, key, value string) {
	if p[ns] == nil {
		p[ns] = map[string]string{}
	}
	p[ns][key] = value
}
