package docker

import (
	"strings"
	"sync"

	"github.com/joshrwolf/contwrap/internal/job"
	"github.com/joshrwolf/contwrap/internal/runtime"
)

const (
	// WorkingDirectory is where the host job directory is mounted in the container
	WorkingDirectory = "/scratch"

	// RootPathVariable carries the root user's PATH across the switch to the job user
	RootPathVariable = "root_path"
)

// Docker wraps jobs to run in docker containers
type Docker struct {
	// dockerPath is the client binary the run and remove fragments invoke
	dockerPath string

	helpers runtime.Helpers

	preambleOnce sync.Once
	preamble     string
}

// Option configures a Docker wrapper
type Option func(*Docker)

// WithHelpers overrides the shared helpers installed by Initialize
func WithHelpers(h runtime.Helpers) Option {
	return func(d *Docker) {
		d.helpers = h
	}
}

// New creates a new Docker wrapper
func New(opts ...Option) *Docker {
	d := &Docker{
		dockerPath: "docker",
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Initialize implements runtime.Wrapper
func (d *Docker) Initialize(sess runtime.Session) {
	if d.helpers == nil {
		d.helpers = runtime.NewShared(sess)
	}
}

// Init implements runtime.Wrapper. docker_init is a shell function of the
// launcher's common library that loads or pulls the image, not the docker
// client, so it does not go through dockerPath.
func (d *Docker) Init(j *job.Job) string {
	return "docker_init " + j.Container.LFN
}

// Run implements runtime.Wrapper
func (d *Docker) Run(j *job.Job) string {
	var sb strings.Builder
	c := j.Container

	sb.WriteString(d.helpers.WrapWithLauncher(j, d.dockerPath))
	sb.WriteString(" run ")
	// start as root so the job user and group can be provisioned
	sb.WriteString("--user root ")
	sb.WriteString("-v $PWD:" + WorkingDirectory + " ")

	if j.Profiles.Has(job.NamespacePegasus, job.KeyGPUs) ||
		j.Profiles.Has(job.NamespaceCondor, job.KeyRequestGPUs) {
		sb.WriteString("--gpus all ")
	}

	for _, mp := range c.MountPoints {
		sb.WriteString("-v " + mp.String() + " ")
	}

	sb.WriteString("-w=" + WorkingDirectory + " ")
	sb.WriteString("--entrypoint /bin/sh ")

	// passed through untouched
	if extra, ok := j.Profiles.Get(job.NamespacePegasus, job.KeyContainerArguments); ok {
		sb.WriteString(extra + " ")
	}

	sb.WriteString("--name $cont_name ")
	sb.WriteString(" $cont_image ")

	sb.WriteString("-c \"")
	sb.WriteString(provisionUser)
	sb.WriteString("su $cont_user -c ")
	sb.WriteString("\\\"./" + j.LaunchScriptName() + " \\\"")
	sb.WriteString("\"")

	return sb.String()
}

// provisionUser is the start of the -c payload. It is evaluated first by the
// host shell (inside double quotes) and then by /bin/sh in the container, so
// $cont_* expand on the host while \$PATH expands in the container.
const provisionUser = "set -e ;" +
	"export " + RootPathVariable + "=\\$PATH ;" +
	"if ! grep -q -E  \"^$cont_group:\" /etc/group ; then " +
	"groupadd -f --gid $cont_groupid $cont_group ;" +
	"fi; " +
	"if ! id $cont_user 2>/dev/null >/dev/null; then " +
	"   if id $cont_userid 2>/dev/null >/dev/null; then " +
	// uid taken by another user, reuse it
	"       useradd -o --uid $cont_userid --gid $cont_groupid $cont_user; " +
	"   else " +
	"       useradd --uid $cont_userid --gid $cont_groupid $cont_user; " +
	"   fi; " +
	"fi; "

// Remove implements runtime.Wrapper
func (d *Docker) Remove(j *job.Job) string {
	return d.dockerPath + " rm --force $cont_name  1>&2"
}

// WorkerPackagePreamble implements runtime.Wrapper. The preamble does not
// depend on the job, so it is built once per wrapper.
func (d *Docker) WorkerPackagePreamble() string {
	d.preambleOnce.Do(func() {
		d.preamble = d.helpers.WorkerPackagePreamble(WorkingDirectory)
	})
	return d.preamble
}

// JobEnvironment implements runtime.Wrapper
func (d *Docker) JobEnvironment(j *job.Job) string {
	var sb strings.Builder

	sb.WriteString("# setting environment variables for job\n")
	env := j.Container.Env()
	sb.WriteString(d.helpers.RenderEnvironment(env))

	// su resets PATH; fall back to the one root had unless the job sets its own.
	// Escaped for the heredoc the launch script is written through.
	if _, ok := env["PATH"]; !ok {
		sb.WriteString("export PATH=\\$" + RootPathVariable + "\n")
	}

	return sb.String()
}

// WorkingDirectory implements runtime.Wrapper
func (d *Docker) WorkingDirectory() string {
	return WorkingDirectory
}

// Describe implements runtime.Wrapper
func (d *Docker) Describe() string {
	return "Docker"
}

var _ runtime.Wrapper = (*Docker)(nil)
