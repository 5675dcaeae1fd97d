package muxer

import "context"

// Fake is an in-memory Muxer test double for the orchestrator/artifact test
// suites, so they never depend on a real ffmpeg binary being on PATH.
type Fake struct {
	Calls []FakeCall
	Err   error
}

type FakeCall struct {
	VideoPath, AudioPath, OutPath string
}

func (f *Fake) Mux(ctx context.Context, videoPath, audioPath, outPath string) error {
	f.Calls = append(f.Calls, FakeCall{videoPath, audioPath, outPath})
	return f.Err
}
