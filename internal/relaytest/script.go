package relaytest

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Script is a timed sequence of relay output, loaded from YAML:
//
//	steps:
//	  - line: "FEN rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
//	  - after_ms: 1000
//	    line: "e2e4 179000 180000"
//	  - after_ms: 500
//	    drop: true
type Script struct {
	Loop  bool   `yaml:"loop"`
	Steps []Step `yaml:"steps"`
}

// Step waits AfterMS, then broadcasts Line or drops every client.
type Step struct {
	AfterMS int    `yaml:"after_ms"`
	Line    string `yaml:"line"`
	Drop    bool   `yaml:"drop"`
}

// ParseScript decodes and checks a script.
func ParseScript(data []byte) (Script, error) {
	var script Script
	if err := yaml.Unmarshal(data, &script); err != nil {
		return Script{}, fmt.Errorf("failed to parse script: %w", err)
	}
	for i, step := range script.Steps {
		if step.AfterMS < 0 {
			return Script{}, fmt.Errorf("step %d: after_ms must not be negative", i+1)
		}
		if step.Line == "" && !step.Drop {
			return Script{}, fmt.Errorf("step %d: needs a line or drop", i+1)
		}
	}
	return script, nil
}

// LoadScript reads a script file.
func LoadScript(path string) (Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Script{}, fmt.Errorf("failed to read script: %w", err)
	}
	return ParseScript(data)
}

// Play runs the script against the server until it ends or ctx is done.
func (s *Server) Play(ctx context.Context, script Script) error {
	if len(script.Steps) == 0 {
		return nil
	}
	for {
		for _, step := range script.Steps {
			if step.AfterMS > 0 {
				timer := time.NewTimer(time.Duration(step.AfterMS) * time.Millisecond)
				select {
				case <-ctx.Done():
					timer.Stop()
					return ctx.Err()
				case <-timer.C:
				}
			} else if err := ctx.Err(); err != nil {
				return err
			}

			if step.Drop {
				s.DropAll()
				continue
			}
			s.Broadcast(step.Line)
		}
		if !script.Loop {
			return nil
		}
	}
}
