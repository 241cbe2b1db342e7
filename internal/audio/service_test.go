package audio

import (
	"context"
	"encoding/binary"
	"log/slog"
	"testing"
	"time"

	"github.com/captionlabs/livecap-core/internal/config"
)

type fakeSource struct {
	started int
	stopped int
	closed  bool
	onFrame func(pcm []byte)
}

func (f *fakeSource) Start(onFrame func(pcm []byte)) error {
	f.started++
	f.onFrame = onFrame
	return nil
}

func (f *fakeSource) Stop()        { f.stopped++ }
func (f *fakeSource) Close() error { f.closed = true; return nil }

func voicedPCM() []byte {
	pcm := make([]byte, 64)
	for i := 0; i < len(pcm); i += 2 {
		binary.LittleEndian.PutUint16(pcm[i:], uint16(int16(12000)))
	}
	return pcm
}

func silentPCM() []byte { return make([]byte, 64) }

func newTestService(silenceMS int) (*Service, *fakeSource) {
	src := &fakeSource{}
	svc := NewService(context.Background(), config.AudioConfig{
		Enabled:           true,
		SampleRate:        16000,
		Channels:          1,
		SilenceEndpointMS: silenceMS,
	}, nil, src, slog.Default())
	return svc, src
}

func TestEndpointAfterSustainedSilence(t *testing.T) {
	svc, _ := newTestService(800)
	defer svc.cancel()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if svc.endpoint(voicedPCM(), base) {
		t.Fatal("voiced frame must not end the utterance")
	}
	if svc.endpoint(silentPCM(), base.Add(400*time.Millisecond)) {
		t.Fatal("short silence must not end the utterance")
	}
	if !svc.endpoint(silentPCM(), base.Add(900*time.Millisecond)) {
		t.Fatal("sustained silence should end the utterance")
	}
	// the boundary fires once per utterance
	if svc.endpoint(silentPCM(), base.Add(2*time.Second)) {
		t.Fatal("silence after the boundary must not fire again")
	}
}

func TestEndpointNeedsPriorVoice(t *testing.T) {
	svc, _ := newTestService(800)
	defer svc.cancel()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if svc.endpoint(silentPCM(), base) || svc.endpoint(silentPCM(), base.Add(5*time.Second)) {
		t.Fatal("silence with no voiced audio must never end an utterance")
	}
}

func TestEndpointDisabled(t *testing.T) {
	svc, _ := newTestService(0)
	defer svc.cancel()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.endpoint(voicedPCM(), base)
	if svc.endpoint(silentPCM(), base.Add(time.Hour)) {
		t.Fatal("endpointing disabled by config")
	}
}

func TestCloseReleasesSource(t *testing.T) {
	svc, src := newTestService(800)
	svc.sessionID = "s1"
	svc.Close()
	if src.stopped == 0 {
		t.Fatal("active capture must be stopped on close")
	}
	if !src.closed {
		t.Fatal("source must be closed on shutdown")
	}
}
