package job

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
	"gopkg.in/yaml.v3"
)

// document is the on-disk form of a job description file
type document struct {
	Containers []containerDoc `yaml:"containers"`
	Jobs       []jobDoc       `yaml:"jobs"`
}

type containerDoc struct {
	Name     string       `yaml:"name"`
	Image    string       `yaml:"image"`
	Mounts   []MountPoint `yaml:"mounts"`
	Profiles Profiles     `yaml:"profiles"`
}

type jobDoc struct {
	ID         string   `yaml:"id"`
	Executable string   `yaml:"executable"`
	Arguments  []string `yaml:"arguments"`
	Container  string   `yaml:"container"`
	Profiles   Profiles `yaml:"profiles"`
}

// Parse reads a job description document and resolves container references.
// Jobs are returned in document order.
func Parse(r io.Reader) ([]*Job, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("unmarshaling YAML: %w", err)
	}

	containers := make(map[string]*Container, len(doc.Containers))
	for _, cd := range doc.Containers {
		if cd.Name == "" {
			return nil, fmt.Errorf("container without a name")
		}
		if err := validateName(cd.Name); err != nil {
			return nil, fmt.Errorf("container %q: %w", cd.Name, err)
		}
		if _, ok := containers[cd.Name]; ok {
			return nil, fmt.Errorf("duplicate container %q", cd.Name)
		}
		if err := validateImage(cd.Image); err != nil {
			return nil, fmt.Errorf("container %q: %w", cd.Name, err)
		}
		containers[cd.Name] = &Container{
			LFN:         cd.Name,
			Image:       cd.Image,
			MountPoints: cd.Mounts,
			Profiles:    orEmpty(cd.Profiles),
		}
	}

	seen := make(map[string]bool, len(doc.Jobs))
	jobs := make([]*Job, 0, len(doc.Jobs))
	for i, jd := range doc.Jobs {
		if jd.ID == "" {
			return nil, fmt.Errorf("job %d: missing id", i)
		}
		if err := validateName(jd.ID); err != nil {
			return nil, fmt.Errorf("job %q: %w", jd.ID, err)
		}
		if seen[jd.ID] {
			return nil, fmt.Errorf("duplicate job %q", jd.ID)
		}
		seen[jd.ID] = true

		j := &Job{
			ID:         jd.ID,
			Executable: jd.Executable,
			Arguments:  jd.Arguments,
			Profiles:   orEmpty(jd.Profiles),
		}
		if jd.Container != "" {
			c, ok := containers[jd.Container]
			if !ok {
				return nil, fmt.Errorf("job %q: unknown container %q", jd.ID, jd.Container)
			}
			j.Container = c
		}
		jobs = append(jobs, j)
	}

	return jobs, nil
}

// safeName matches identifiers that end up unquoted in generated shell and in
// output file names. A leading '-' would read as a command option.
var safeName = regexp.MustCompile(`^[A-Za-z0-9_.][A-Za-z0-9_.-]*$`)

func validateName(s string) error {
	if !safeName.MatchString(s) {
		return fmt.Errorf("invalid name %q: only letters, digits, '_', '.' and '-' are allowed, and it must not start with '-'", s)
	}
	if strings.Contains(s, "..") {
		return fmt.Errorf("invalid name %q: must not contain \"..\"", s)
	}
	if s == "." {
		return fmt.Errorf("invalid name %q", s)
	}
	return nil
}

// validateImage checks docker:// image URLs are valid registry references.
// Other schemes (file://, http://, ...) point at image tarballs and are not checked.
func validateImage(image string) error {
	ref, ok := strings.CutPrefix(image, "docker://")
	if !ok {
		return nil
	}
	ref = strings.TrimLeft(ref, "/")
	if _, err := name.ParseReference(ref); err != nil {
		return fmt.Errorf("parsing image %q: %w", image, err)
	}
	return nil
}

func orEmpty(p Profiles) Profiles {
	if p == nil {
		return Profiles{}
	}
	return p
}
