// Package muxer implements spec.md §4.4 step 2's final stage: combining a
// separately downloaded video track and audio track into one container.
// The concrete implementation shells out to ffmpeg, modeled on
// _examples/ManuGH-xg2g/internal/infra/ffmpeg/runner.go's exec.CommandContext
// + stderr ring-buffer pattern; the ffmpeg invocation itself is external
// tooling, out of scope per spec.md §1.
package muxer

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"

	"github.com/kaorin/bilisync/internal/log"
)

// Muxer is the narrow interface the orchestrator's page-content step
// consumes.
type Muxer interface {
	Mux(ctx context.Context, videoPath, audioPath, outPath string) error
}

// FFmpeg shells out to an ffmpeg binary to remux the two input tracks
// without re-encoding.
type FFmpeg struct {
	BinaryPath string
}

// New builds an FFmpeg muxer; binaryPath defaults to "ffmpeg" on PATH.
func New(binaryPath string) *FFmpeg {
	if binaryPath == "" {
		binaryPath = "ffmpeg"
	}
	return &FFmpeg{BinaryPath: binaryPath}
}

const ringBufferLines = 50

func (f *FFmpeg) Mux(ctx context.Context, videoPath, audioPath, outPath string) error {
	args := []string{
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-c", "copy",
		outPath,
	}
	cmd := exec.CommandContext(ctx, f.BinaryPath, args...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("muxer: pipe stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("muxer: start %s: %w", f.BinaryPath, err)
	}

	ring := newRingBuffer(ringBufferLines)
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		ring.add(scanner.Text())
	}

	if err := cmd.Wait(); err != nil {
		log.FromContext(ctx).Error().Err(err).Strs("stderr_tail", ring.all()).Msg("mux failed")
		return fmt.Errorf("muxer: %s exited: %w", f.BinaryPath, err)
	}
	return nil
}

type ringBuffer struct {
	lines []string
	pos   int
	full  bool
}

func newRingBuffer(size int) *ringBuffer { return &ringBuffer{lines: make([]string, size)} }

func (r *ringBuffer) add(line string) {
	r.lines[r.pos] = line
	r.pos = (r.pos + 1) % len(r.lines)
	if r.pos == 0 {
		r.full = true
	}
}

func (r *ringBuffer) all() []string {
	if !r.full {
		return append([]string(nil), r.lines[:r.pos]...)
	}
	out := make([]string, len(r.lines))
	copy(out, r.lines[r.pos:])
	copy(out[len(r.lines)-r.pos:], r.lines[:r.pos])
	return out
}

