// Package resultlog persists sweep outcomes as JSON Lines and the final
// report as YAML.
package resultlog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/sgmdse/internal/dispatch"
	dseerrors "github.com/conneroisu/sgmdse/internal/errors"
)

// Default file names, relative to the workspace root.
const (
	DefaultLogFile    = "outcomes.jsonl"
	DefaultReportFile = "report.yaml"
)

const maxLineSize = 4 << 20

// Log appends outcomes to a JSON Lines file. It is safe for concurrent use.
type Log struct {
	mu   sync.Mutex
	file afero.File
	path string
}

// Open opens path for appending, creating it and its directory if needed.
func Open(fs afero.Fs, path string) (*Log, error) {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, dseerrors.WrapIO(err, dseerrors.ErrCodeResultLog, "failed to create result log directory").
			WithPath(path)
	}

	f, err := fs.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, dseerrors.WrapIO(err, dseerrors.ErrCodeResultLog, "failed to open result log").
			WithPath(path)
	}
	return &Log{file: f, path: path}, nil
}

// Path returns the log file location.
func (l *Log) Path() string {
	return l.path
}

// Append writes o as one line.
func (l *Log) Append(o dispatch.Outcome) error {
	data, err := json.Marshal(o)
	if err != nil {
		return dseerrors.WrapIO(err, dseerrors.ErrCodeResultLog, "failed to encode outcome").WithKey(o.Key)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return dseerrors.NewIOError(dseerrors.ErrCodeResultLog, "result log is closed", nil).WithPath(l.path)
	}
	if _, err := l.file.Write(data); err != nil {
		return dseerrors.WrapIO(err, dseerrors.ErrCodeResultLog, "failed to append outcome").
			WithKey(o.Key).WithPath(l.path)
	}
	return nil
}

// Close closes the file. Further appends fail.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Read returns every outcome in the log in file order. Blank lines are
// ignored.
func Read(fs afero.Fs, path string) ([]dispatch.Outcome, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, dseerrors.WrapIO(err, dseerrors.ErrCodeResultLog, "failed to open result log").WithPath(path)
	}
	defer f.Close()

	var outcomes []dispatch.Outcome
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var o dispatch.Outcome
		if err := json.Unmarshal(line, &o); err != nil {
			return nil, dseerrors.WrapIO(err, dseerrors.ErrCodeResultLog,
				fmt.Sprintf("failed to parse line %d", lineNo)).WithPath(path)
		}
		outcomes = append(outcomes, o)
	}
	if err := sc.Err(); err != nil {
		return nil, dseerrors.WrapIO(err, dseerrors.ErrCodeResultLog, "failed to read result log").WithPath(path)
	}
	return outcomes, nil
}

// Latest keeps the most recent outcome per configuration key, in the order
// keys were first seen. A log spanning several sweeps then reads as the
// current state of every workspace.
func Latest(outcomes []dispatch.Outcome) []dispatch.Outcome {
	index := make(map[string]int, len(outcomes))
	var latest []dispatch.Outcome
	for _, o := range outcomes {
		if i, ok := index[o.Key]; ok {
			latest[i] = o
			continue
		}
		index[o.Key] = len(latest)
		latest = append(latest, o)
	}
	return latest
}

// WriteReport writes report as YAML to path.
func WriteReport(fs afero.Fs, path string, report dispatch.Report) error {
	data, err := yaml.Marshal(report)
	if err != nil {
		return dseerrors.WrapIO(err, dseerrors.ErrCodeResultLog, "failed to encode report")
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return dseerrors.WrapIO(err, dseerrors.ErrCodeResultLog, "failed to create report directory").WithPath(path)
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return dseerrors.WrapIO(err, dseerrors.ErrCodeResultLog, "failed to write report").WithPath(path)
	}
	return nil
}

// ReadReport loads a report written by WriteReport.
func ReadReport(fs afero.Fs, path string) (dispatch.Report, error) {
	var report dispatch.Report
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return report, dseerrors.WrapIO(err, dseerrors.ErrCodeResultLog, "failed to read report").WithPath(path)
	}
	if err := yaml.Unmarshal(data, &report); err != nil {
		return report, dseerrors.WrapIO(err, dseerrors.ErrCodeResultLog, "failed to parse report").WithPath(path)
	}
	return report, nil
}
