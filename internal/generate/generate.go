package generate

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/joshrwolf/contwrap/internal/job"
	"github.com/joshrwolf/contwrap/internal/runtime"
	"github.com/joshrwolf/contwrap/internal/script"
	"golang.org/x/sync/errgroup"
)

// Fragments are the snippets generated for one job
type Fragments struct {
	JobID string

	// Host side snippets, in the order the launcher runs them
	Init   string
	Run    string
	Remove string

	// Environment is embedded in the container script
	Environment string

	// ContainerScript writes the job-local launch script
	ContainerScript string
}

// Options configures generation
type Options struct {
	// Concurrency bounds how many jobs are rendered at once (default: 1)
	Concurrency int
}

// Generate renders fragments for every containerized job, in input order.
// Jobs without a container are skipped. The wrapper must be initialized.
func Generate(ctx context.Context, w runtime.Wrapper, jobs []*job.Job, opts Options) ([]Fragments, error) {
	log := clog.FromContext(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	limit := opts.Concurrency
	if limit < 1 {
		limit = 1
	}

	results := make([]*Fragments, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, j := range jobs {
		if j.Container == nil {
			log.Debug("skipping job without container", "job", j.ID)
			continue
		}

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			f, err := render(w, j)
			if err != nil {
				return fmt.Errorf("job %s: %w", j.ID, err)
			}
			log.Debug("generated fragments", "job", j.ID, "container", j.Container.LFN, "runtime", w.Describe())
			results[i] = f
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]Fragments, 0, len(jobs))
	for _, f := range results {
		if f != nil {
			out = append(out, *f)
		}
	}
	return out, nil
}

func render(w runtime.Wrapper, j *job.Job) (*Fragments, error) {
	env := w.JobEnvironment(j)

	var sb strings.Builder
	err := script.Render(&sb, script.ContainerScript{
		Name:        j.LaunchScriptName(),
		Preamble:    w.WorkerPackagePreamble(),
		Environment: env,
		WorkDir:     w.WorkingDirectory(),
		Executable:  j.Executable,
		Arguments:   j.Arguments,
	})
	if err != nil {
		return nil, err
	}

	return &Fragments{
		JobID:           j.ID,
		Init:            w.Init(j),
		Run:             w.Run(j),
		Remove:          w.Remove(j),
		Environment:     env,
		ContainerScript: sb.String(),
	}, nil
}

// WriteTo writes the fragments as a shell document with one section per fragment
func (f Fragments) WriteTo(w io.Writer) (int64, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# job: %s\n", f.JobID)
	for _, section := range []struct{ name, body string }{
		{"init", f.Init},
		{"run", f.Run},
		{"remove", f.Remove},
		{"container script", f.ContainerScript},
	} {
		fmt.Fprintf(&sb, "\n# --- %s\n", section.name)
		sb.WriteString(section.body)
		if !strings.HasSuffix(section.body, "\n") {
			sb.WriteString("\n")
		}
	}

	n, err := io.WriteString(w, sb.String())
	return int64(n), err
}
