package script

import (
	"fmt"
	"io"
	"strings"

	"al.essio.dev/pkg/shellescape"
)

// Delimiter terminates the heredoc the container script is written through
const Delimiter = "EOF"

// ContainerScript is the job-local script launched inside the container
type ContainerScript struct {
	// Name of the script file, relative to the job directory
	Name string

	// Shell for the shebang line (default: /bin/bash)
	Shell string

	// Preamble sets up the worker package
	Preamble string

	// Environment exports the job environment
	Environment string

	// WorkDir is changed into before the payload runs
	WorkDir string

	// Executable and Arguments form the payload
	Executable string
	Arguments  []string
}

// Render writes the host side snippet that creates the container script.
// The body goes through an unquoted heredoc: Preamble and Environment must
// already be escaped for it, the payload is escaped here. No body line may
// equal Delimiter, and payload words must be single line.
func Render(w io.Writer, s ContainerScript) error {
	if s.Name == "" {
		return fmt.Errorf("container script has no name")
	}
	if Quote(s.Name) != s.Name {
		return fmt.Errorf("container script name %q contains shell metacharacters", s.Name)
	}
	if s.Executable == "" {
		return fmt.Errorf("container script %s has no executable", s.Name)
	}
	for _, word := range append([]string{s.Shell, s.WorkDir, s.Executable}, s.Arguments...) {
		if strings.ContainsAny(word, "\r\n") {
			return fmt.Errorf("container script %s: %q spans multiple lines", s.Name, word)
		}
	}

	shell := s.Shell
	if shell == "" {
		shell = "/bin/bash"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "cat <<%s > %s\n", Delimiter, s.Name)
	fmt.Fprintf(&sb, "#!%s\n", shell)
	sb.WriteString("set -e\n")
	writeBlock(&sb, s.Preamble)
	writeBlock(&sb, s.Environment)
	if s.WorkDir != "" {
		fmt.Fprintf(&sb, "cd %s\n", heredocEscape(Quote(s.WorkDir)))
	}

	words := make([]string, 0, len(s.Arguments)+1)
	words = append(words, Quote(s.Executable))
	for _, arg := range s.Arguments {
		words = append(words, Quote(arg))
	}
	sb.WriteString(heredocEscape(strings.Join(words, " ")))
	sb.WriteString("\n")

	body := sb.String()
	for _, line := range strings.Split(body, "\n")[1:] {
		if line == Delimiter {
			return fmt.Errorf("container script %s: body line terminates the %s heredoc", s.Name, Delimiter)
		}
	}

	sb.WriteString(Delimiter + "\n")
	fmt.Fprintf(&sb, "chmod +x %s\n", s.Name)

	if _, err := io.WriteString(w, sb.String()); err != nil {
		return fmt.Errorf("writing container script %s: %w", s.Name, err)
	}
	return nil
}

func writeBlock(sb *strings.Builder, block string) {
	if block == "" {
		return
	}
	sb.WriteString(block)
	if !strings.HasSuffix(block, "\n") {
		sb.WriteString("\n")
	}
}

// Quote quotes s for a POSIX shell when it contains anything but plain word characters
func Quote(s string) string {
	return shellescape.Quote(s)
}

var heredocReplacer = strings.NewReplacer(`\`, `\\`, `$`, `\$`, "`", "\\`")

// heredocEscape protects s from expansion inside an unquoted heredoc
func heredocEscape(s string) string {
	return heredocReplacer.Replace(s)
}
