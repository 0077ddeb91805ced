package runtime

import (
	"github.com/joshrwolf/contwrap/internal/job"
)

// Wrapper generates the shell snippets that launch a job inside a container
// runtime. Implementations only produce text; nothing is executed.
type Wrapper interface {
	// Initialize binds the planning session. It must be called before any
	// other method.
	Initialize(sess Session)

	// Init returns the snippet that prepares the container image on the host
	Init(j *job.Job) string

	// Run returns the command line that starts the container and launches the
	// job's launch script inside it as an unprivileged user
	Run(j *job.Job) string

	// Remove returns the snippet that tears the container down
	Remove(j *job.Job) string

	// WorkerPackagePreamble returns the job independent snippet that sets up
	// the worker package inside the container
	WorkerPackagePreamble() string

	// JobEnvironment returns the environment set up for the job inside the container
	JobEnvironment(j *job.Job) string

	// WorkingDirectory is the directory inside the container the job runs from
	WorkingDirectory() string

	// Describe names the container technology
	Describe() string
}

// Helpers are the capabilities shared by all wrappers
type Helpers interface {
	// WrapWithLauncher prefixes invocation with the job's container launcher, if any
	WrapWithLauncher(j *job.Job, invocation string) string

	// RenderEnvironment renders env as shell export statements
	RenderEnvironment(env map[string]string) string

	// WorkerPackagePreamble builds the worker package setup for a container
	// whose working directory is workDir
	WorkerPackagePreamble(workDir string) string
}

// Session carries planning-session wide configuration
type Session struct {
	// SubmitDir is the workflow submit directory on the submit host
	SubmitDir string

	// WorkflowID identifies the workflow being planned
	WorkflowID string

	// PegasusVersion is the major.minor.patch version of the worker package
	PegasusVersion string

	// StrictWorkerPackageCheck requires the worker package to match PegasusVersion exactly
	StrictWorkerPackageCheck bool

	// AllowWorkerPackageDownload lets PegasusLite fetch a worker package when none fits
	AllowWorkerPackageDownload bool
}
