package job

import (
	"strings"
	"testing"
)

const diamond = `
containers:
  - name: centos-base.tar
    image: docker:///centos:7
    mounts:
      - /shared/inputs:/inputs:ro
      - /shared/outputs:/outputs
    profiles:
      env:
        FOO: bar
jobs:
  - id: preprocess_ID0000001
    executable: /usr/bin/pegasus-keg
    arguments: ["-a", "preprocess"]
    container: centos-base.tar
    profiles:
      pegasus:
        gpus: "1"
      condor:
        request_memory: "2048"
  - id: stage_in_local_0
    executable: /usr/bin/pegasus-transfer
`

func TestParse(t *testing.T) {
	jobs, err := Parse(strings.NewReader(diamond))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("Parse() got %d jobs, want 2", len(jobs))
	}

	j := jobs[0]
	if j.ID != "preprocess_ID0000001" || j.Container == nil {
		t.Fatalf("unexpected first job: %+v", j)
	}
	if j.Container.LFN != "centos-base.tar" {
		t.Errorf("LFN = %q", j.Container.LFN)
	}
	if len(j.Container.MountPoints) != 2 || j.Container.MountPoints[0].Destination != "/inputs" {
		t.Errorf("mount points not preserved in order: %+v", j.Container.MountPoints)
	}
	if v, _ := j.Profiles.Get(NamespacePegasus, KeyGPUs); v != "1" {
		t.Errorf("gpus = %q, want 1", v)
	}
	if j.Container.Env()["FOO"] != "bar" {
		t.Errorf("env = %v", j.Container.Env())
	}

	if jobs[1].Container != nil {
		t.Error("job without container reference should not be containerized")
	}
	if jobs[1].Profiles == nil {
		t.Error("profiles should never be nil")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "unknown container",
			doc:  "jobs:\n  - id: a\n    container: missing\n",
		},
		{
			name: "duplicate container",
			doc:  "containers:\n  - name: c\n  - name: c\n",
		},
		{
			name: "duplicate job",
			doc:  "jobs:\n  - id: a\n  - id: a\n",
		},
		{
			name: "missing job id",
			doc:  "jobs:\n  - executable: /bin/true\n",
		},
		{
			name: "bad mount",
			doc:  "containers:\n  - name: c\n    mounts: [\"/only-source\"]\n",
		},
		{
			name: "bad docker image",
			doc:  "containers:\n  - name: c\n    image: docker:///Not A Ref\n",
		},
		{
			name: "job id with path and shell syntax",
			doc:  "jobs:\n  - id: \"../../x y;touch PWN\"\n",
		},
		{
			name: "job id with space",
			doc:  "jobs:\n  - id: \"a b\"\n",
		},
		{
			name: "job id with slash",
			doc:  "jobs:\n  - id: dir/job\n",
		},
		{
			name: "job id parent directory",
			doc:  "jobs:\n  - id: \"..\"\n",
		},
		{
			name: "job id current directory",
			doc:  "jobs:\n  - id: \".\"\n",
		},
		{
			name: "job id with command substitution",
			doc:  "jobs:\n  - id: \"$(id)\"\n",
		},
		{
			name: "job id starting with dash",
			doc:  "jobs:\n  - id: -rf\n",
		},
		{
			name: "container name with shell syntax",
			doc:  "containers:\n  - name: \"c.tar;touch PWN\"\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(strings.NewReader(tt.doc)); err == nil {
				t.Error("Parse() expected error, got nil")
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	jobs, err := Parse(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(jobs) != 0 {
		t.Errorf("Parse() got %d jobs, want 0", len(jobs))
	}
}

func TestParseNonDockerImage(t *testing.T) {
	doc := "containers:\n  - name: c.tar\n    image: file:///images/c.tar\n"
	if _, err := Parse(strings.NewReader(doc)); err != nil {
		t.Errorf("Parse() error = %v", err)
	}
}
