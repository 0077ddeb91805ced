package runtime

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/joshrwolf/contwrap/internal/job"
)

func TestWrapWithLauncher(t *testing.T) {
	tests := []struct {
		name     string
		profiles job.Profiles
		want     string
	}{
		{
			name:     "no launcher",
			profiles: job.Profiles{},
			want:     "docker",
		},
		{
			name: "launcher without arguments",
			profiles: job.Profiles{
				job.NamespacePegasus: {job.KeyContainerLauncher: "srun"},
			},
			want: "srun docker",
		},
		{
			name: "launcher with arguments",
			profiles: job.Profiles{
				job.NamespacePegasus: {
					job.KeyContainerLauncher:          "jsrun",
					job.KeyContainerLauncherArguments: "-n 1 -a 1",
				},
			},
			want: "jsrun -n 1 -a 1 docker",
		},
		{
			name: "arguments without launcher are ignored",
			profiles: job.Profiles{
				job.NamespacePegasus: {job.KeyContainerLauncherArguments: "-n 1"},
			},
			want: "docker",
		},
	}

	s := NewShared(Session{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := &job.Job{ID: "j", Profiles: tt.profiles}
			if got := s.WrapWithLauncher(j, "docker"); got != tt.want {
				t.Errorf("WrapWithLauncher() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderEnvironment(t *testing.T) {
	s := NewShared(Session{})

	got := s.RenderEnvironment(map[string]string{
		"ZED": "last",
		"FOO": "bar",
		"ABC": "$HOME/abc",
	})
	want := "export ABC=\"\\$HOME/abc\"\n" +
		"export FOO=\"bar\"\n" +
		"export ZED=\"last\"\n"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("RenderEnvironment() mismatch (-want +got):\n%s", diff)
	}

	if got := s.RenderEnvironment(nil); got != "" {
		t.Errorf("RenderEnvironment(nil) = %q, want empty", got)
	}
}

func TestRenderEnvironmentEscaping(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{name: "container variable", value: "$HOSTONLY", want: `export V="\$HOSTONLY"` + "\n"},
		{name: "double quote", value: `say "hi"`, want: `export V="say \\"hi\\""` + "\n"},
		{name: "backslash", value: `a\b`, want: `export V="a\\\\b"` + "\n"},
		{name: "backtick", value: "`id`", want: "export V=\"\\\\\\`id\\\\\\`\"\n"},
		{name: "single quote", value: "it's", want: `export V="it's"` + "\n"},
	}

	s := NewShared(Session{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.RenderEnvironment(map[string]string{"V": tt.value})
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("RenderEnvironment() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWorkerPackagePreamble(t *testing.T) {
	s := NewShared(Session{
		PegasusVersion:             "5.0.8",
		StrictWorkerPackageCheck:   true,
		AllowWorkerPackageDownload: false,
	})

	got := s.WorkerPackagePreamble("/scratch")
	for _, want := range []string{
		"pegasus_lite_version_major=\"5\"\n",
		"pegasus_lite_version_minor=\"0\"\n",
		"pegasus_lite_version_patch=\"8\"\n",
		"pegasus_lite_enforce_strict_wp_check=\"true\"\n",
		"pegasus_lite_version_allow_wp_auto_download=\"false\"\n",
		"pegasus_lite_inside_container=true\n",
		"export pegasus_lite_work_dir=/scratch\n",
		"pegasus_lite_init\n",
		"pegasus_lite_worker_package\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("preamble missing %q\n%s", want, got)
		}
	}

	if again := s.WorkerPackagePreamble("/scratch"); again != got {
		t.Error("preamble is not deterministic")
	}
}

func TestSplitVersion(t *testing.T) {
	tests := []struct {
		in                  string
		major, minor, patch string
	}{
		{"5.0.8", "5", "0", "8"},
		{"5.1", "5", "1", ""},
		{"", "", "", ""},
		{"5.1.0dev", "5", "1", "0dev"},
	}
	for _, tt := range tests {
		major, minor, patch := splitVersion(tt.in)
		if major != tt.major || minor != tt.minor || patch != tt.patch {
			t.Errorf("splitVersion(%q) = %q %q %q", tt.in, major, minor, patch)
		}
	}
}
