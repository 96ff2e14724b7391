package tap

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Tap records can be wide; a scanner line must hold the largest of them.
const maxLineBytes = 1024 * 1024

const progressEvery = 100

// RunResult carries everything captured from one extraction run.
type RunResult struct {
	// Lines holds every stdout line verbatim, in emission order, for the
	// post-run classification pass that builds the records to persist.
	Lines []string
	// LastState is the value of the final STATE message observed, nil when
	// the tap emitted none (or ended on an empty one).
	LastState json.RawMessage
	// Stderr holds the tap's diagnostic lines for error reporting.
	Stderr []string
	// Records counts RECORD lines observed while streaming.
	Records int
}

// Runner supervises one tap extraction process. The tap writes protocol
// messages to stdout and diagnostics to stderr; both must be drained
// concurrently and continuously, or a full pipe buffer on either side
// deadlocks the child.
type Runner struct {
	// Timeout bounds the whole extraction; 0 leaves the run unbounded.
	Timeout time.Duration

	log *logrus.Entry
}

func NewRunner(timeout time.Duration, log *logrus.Entry) *Runner {
	return &Runner{Timeout: timeout, log: log}
}

// Run executes `<command> --config <configPath> [--catalog <catalogPath>]
// [--state <statePath>]` and streams it to completion. The catalog flag is
// attached when catalogPath is non-empty (the file must then exist); the
// state flag is attached only when the checkpoint file exists on disk — a
// missing checkpoint simply means a full extraction. Messages are
// classified live while the process runs, so checkpoint capture and
// progress logging do not wait for exit.
func (r *Runner) Run(ctx context.Context, command, configPath, catalogPath, statePath string) (*RunResult, error) {
	if _, err := os.Stat(configPath); err != nil {
		return nil, ErrConfigNotFound
	}

	args := []string{"--config", configPath}
	if catalogPath != "" {
		if _, err := os.Stat(catalogPath); err != nil {
			return nil, ErrCatalogNotFound
		}
		args = append(args, "--catalog", catalogPath)
	}
	if statePath != "" {
		if _, err := os.Stat(statePath); err == nil {
			args = append(args, "--state", statePath)
		}
	}

	runCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, command, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("attaching stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("attaching stderr pipe: %w", err)
	}

	r.log.WithFields(map[string]interface{}{
		"command": command,
		"args":    strings.Join(args, " "),
	}).Info("Starting tap")

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", command, err)
	}

	result := &RunResult{}
	var wg sync.WaitGroup
	wg.Add(2)

	// The readers write to disjoint fields of result and the main
	// goroutine only touches it after wg.Wait().
	go func() {
		defer wg.Done()
		r.readStdout(stdout, result)
	}()
	go func() {
		defer wg.Done()
		r.readStderr(stderr, result)
	}()

	wg.Wait()
	waitErr := cmd.Wait()

	if waitErr != nil {
		stderrText := strings.Join(result.Stderr, "\n")
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			stderrText = fmt.Sprintf("killed after exceeding %s run timeout; %s", r.Timeout, stderrText)
		}
		return nil, ExecError{ExitCode: exitCode(waitErr), Stderr: stderrText}
	}

	r.log.WithFields(map[string]interface{}{
		"lines":   len(result.Lines),
		"records": result.Records,
	}).Info("Tap finished")

	return result, nil
}

// readStdout accumulates every protocol line verbatim and classifies it as
// it arrives: records drive progress logging, each STATE value overwrites
// the running checkpoint so only the final one survives, schemas are noted.
// Scanning continues past process exit until the pipe reaches EOF, which
// drains whatever the tap buffered before terminating.
func (r *Runner) readStdout(stdout io.Reader, result *RunResult) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := scanner.Text()
		result.Lines = append(result.Lines, line)

		msg := Classify(line)
		switch msg.Type {
		case TypeRecord:
			result.Records++
			if result.Records%progressEvery == 0 {
				r.log.WithField("records", result.Records).Info("Extraction progress")
			}
		case TypeState:
			result.LastState = msg.StateValue()
		case TypeSchema:
			r.log.WithField("stream", msg.Stream).Debug("Schema received")
		}
	}

	if err := scanner.Err(); err != nil {
		// Keep draining so the child never blocks on a full pipe.
		r.log.WithError(err).Warn("Tap stdout truncated")
		io.Copy(io.Discard, stdout)
	}
}

// readStderr accumulates diagnostic lines for error reporting. Taps log
// their own INFO chatter to stderr, so lines are echoed at debug level
// rather than treated as failures.
func (r *Runner) readStderr(stderr io.Reader, result *RunResult) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := scanner.Text()
		result.Stderr = append(result.Stderr, line)
		r.log.WithField("tap", line).Debug("Tap stderr")
	}

	if err := scanner.Err(); err != nil {
		r.log.WithError(err).Warn("Tap stderr truncated")
		io.Copy(io.Discard, stderr)
	}
}
