package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Job is one command to run through the pool.
type Job struct {
	Name    string        `yaml:"name"`
	Command string        `yaml:"command"`
	Args    []string      `yaml:"args,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
	// Delay postpones posting the job by the given duration.
	Delay time.Duration `yaml:"delay,omitempty"`
}

type jobFile struct {
	Jobs []Job `yaml:"jobs"`
}

// LoadJobs reads a job file. The file is either a YAML list of jobs or a
// mapping with a top-level "jobs" key.
func LoadJobs(path string) ([]Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read job file: %w", err)
	}
	jobs, err := ParseJobs(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return jobs, nil
}

// ParseJobs decodes and validates job definitions.
func ParseJobs(data []byte) ([]Job, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("invalid job file: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, fmt.Errorf("job file is empty")
	}

	var jobs []Job
	root := node.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		if err := decodeStrict(data, &jobs); err != nil {
			return nil, err
		}
	case yaml.MappingNode:
		var f jobFile
		if err := decodeStrict(data, &f); err != nil {
			return nil, err
		}
		jobs = f.Jobs
	default:
		return nil, fmt.Errorf("job file must be a list or a mapping with a jobs key")
	}

	if err := validateJobs(jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

func decodeStrict(data []byte, out interface{}) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("invalid job file: %w", err)
	}
	return nil
}

func validateJobs(jobs []Job) error {
	if len(jobs) == 0 {
		return fmt.Errorf("job file defines no jobs")
	}
	seen := make(map[string]bool, len(jobs))
	for i, job := range jobs {
		if job.Name == "" {
			return fmt.Errorf("job %d: name is required", i)
		}
		if seen[job.Name] {
			return fmt.Errorf("job %q: duplicate name", job.Name)
		}
		seen[job.Name] = true
		if job.Command == "" {
			return fmt.Errorf("job %q: command is required", job.Name)
		}
		if job.Timeout < 0 {
			return fmt.Errorf("job %q: timeout must not be negative", job.Name)
		}
		if job.Delay < 0 {
			return fmt.Errorf("job %q: delay must not be negative", job.Name)
		}
	}
	return nil
}
