package runtime

import (
	"fmt"
	"sort"
	"strings"

	"github.com/joshrwolf/contwrap/internal/job"
)

// Shared is the default Helpers implementation
type Shared struct {
	sess Session
}

// NewShared creates helpers bound to a planning session
func NewShared(sess Session) *Shared {
	return &Shared{sess: sess}
}

// WrapWithLauncher implements Helpers
func (s *Shared) WrapWithLauncher(j *job.Job, invocation string) string {
	launcher, ok := j.Profiles.Get(job.NamespacePegasus, job.KeyContainerLauncher)
	if !ok || launcher == "" {
		return invocation
	}

	var sb strings.Builder
	sb.WriteString(launcher)
	sb.WriteString(" ")
	if args, ok := j.Profiles.Get(job.NamespacePegasus, job.KeyContainerLauncherArguments); ok && args != "" {
		sb.WriteString(args)
		sb.WriteString(" ")
	}
	sb.WriteString(invocation)
	return sb.String()
}

// envValueReplacer escapes a value for a double quoted export written through
// an unquoted heredoc. $ is left to expand in the container, so values may
// reference container variables.
var envValueReplacer = strings.NewReplacer(
	`\`, `\\\\`,
	`"`, `\\"`,
	"`", "\\\\\\`",
	`$`, `\$`,
)

// RenderEnvironment implements Helpers. Keys are emitted in sorted order.
func (s *Shared) RenderEnvironment(env map[string]string) string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "export %s=\"%s\"\n", k, envValueReplacer.Replace(env[k]))
	}
	return sb.String()
}

// WorkerPackagePreamble implements Helpers. Variables meant for the container
// are escaped since the preamble is written out through an unquoted heredoc.
func (s *Shared) WorkerPackagePreamble(workDir string) string {
	major, minor, patch := splitVersion(s.sess.PegasusVersion)

	var sb strings.Builder
	fmt.Fprintf(&sb, "pegasus_lite_version_major=\"%s\"\n", major)
	fmt.Fprintf(&sb, "pegasus_lite_version_minor=\"%s\"\n", minor)
	fmt.Fprintf(&sb, "pegasus_lite_version_patch=\"%s\"\n", patch)
	fmt.Fprintf(&sb, "pegasus_lite_enforce_strict_wp_check=\"%t\"\n", s.sess.StrictWorkerPackageCheck)
	fmt.Fprintf(&sb, "pegasus_lite_version_allow_wp_auto_download=\"%t\"\n", s.sess.AllowWorkerPackageDownload)
	sb.WriteString("pegasus_lite_inside_container=true\n")
	fmt.Fprintf(&sb, "export pegasus_lite_work_dir=%s\n", workDir)
	sb.WriteString("\n")
	sb.WriteString("cd \\${pegasus_lite_work_dir}\n")
	sb.WriteString(". ./pegasus-lite-common.sh\n")
	sb.WriteString("pegasus_lite_init\n")
	sb.WriteString("\n")
	sb.WriteString("printf \"\\n###################### figuring out the worker package to use in the container ######################\\n\"  1>&2\n")
	sb.WriteString("# figure out the worker package to use\n")
	sb.WriteString("pegasus_lite_worker_package\n")
	sb.WriteString("printf \"PATH in container is set to %s\\n\" \"\\$PATH\"  1>&2\n")
	return sb.String()
}

// splitVersion splits major.minor.patch, leaving missing parts empty
func splitVersion(v string) (major, minor, patch string) {
	parts := strings.SplitN(v, ".", 3)
	for len(parts) < 3 {
		parts = append(parts, "")
	}
	return parts[0], parts[1], parts[2]
}

var _ Helpers = (*Shared)(nil)
