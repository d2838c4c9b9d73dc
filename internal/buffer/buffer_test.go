package buffer

import (
	"testing"
	"time"

	"github.com/vaanilabs/vaani/pkg/telephony"
)

var testConfig = Config{
	MinUtterance: 100 * time.Millisecond,
	QuietWindow:  60 * time.Millisecond,
	HardCap:      400 * time.Millisecond,
}

// frame is one 20 ms media frame of non-silent PCM.
func frame() []byte {
	f := make([]byte, telephony.FrameBytes)
	for i := range f {
		f[i] = 0x7F
	}
	return f
}

// feed appends n frames spaced 20 ms apart starting at t0, failing the test
// if any append closes an utterance early. Returns the time after the last
// frame.
func feed(t *testing.T, b *Buffer, t0 time.Time, n int) time.Time {
	t.Helper()
	now := t0
	for i := range n {
		if got := b.Append(frame(), now); got != nil {
			t.Fatalf("frame %d: unexpected utterance of %d bytes", i, len(got))
		}
		now = now.Add(20 * time.Millisecond)
	}
	return now
}

func TestQuietWindowClosesUtterance(t *testing.T) {
	t.Parallel()

	b := New(testConfig)
	t0 := time.Now()

	// 10 frames = 200 ms of audio, above the 100 ms minimum.
	end := feed(t, b, t0, 10)

	// Nothing closes while the gap is shorter than the quiet window.
	if got := b.Poll(end.Add(30 * time.Millisecond)); got != nil {
		t.Fatalf("Poll before quiet window returned %d bytes", len(got))
	}

	got := b.Poll(end.Add(80 * time.Millisecond))
	if got == nil {
		t.Fatal("Poll after quiet window returned nil")
	}
	if want := 10 * telephony.FrameBytes; len(got) != want {
		t.Errorf("utterance length = %d, want %d", len(got), want)
	}
	if b.Len() != 0 {
		t.Errorf("buffer not drained: %d bytes remain", b.Len())
	}
}

func TestGapOnAppendClosesPreviousUtterance(t *testing.T) {
	t.Parallel()

	b := New(testConfig)
	t0 := time.Now()
	end := feed(t, b, t0, 8) // 160 ms buffered

	// Next frame arrives after a 100 ms gap: previous utterance closes, the
	// new frame starts the next one.
	got := b.Append(frame(), end.Add(100*time.Millisecond))
	if got == nil {
		t.Fatal("Append after gap returned nil")
	}
	if want := 8 * telephony.FrameBytes; len(got) != want {
		t.Errorf("closed utterance = %d bytes, want %d", len(got), want)
	}
	if b.Len() != telephony.FrameBytes {
		t.Errorf("new utterance = %d bytes, want one frame", b.Len())
	}
}

func TestShortBlipDiscarded(t *testing.T) {
	t.Parallel()

	b := New(testConfig)
	t0 := time.Now()

	// 3 frames = 60 ms, below the 100 ms minimum.
	end := feed(t, b, t0, 3)

	if got := b.Poll(end.Add(200 * time.Millisecond)); got != nil {
		t.Errorf("blip below minimum produced %d-byte utterance", len(got))
	}
	if b.Len() != 0 {
		t.Errorf("blip not discarded: %d bytes remain", b.Len())
	}
}

func TestHardCapClosesMidSpeech(t *testing.T) {
	t.Parallel()

	b := New(testConfig)
	now := time.Now()

	// Continuous speech: the 20th frame reaches the 400 ms cap.
	var got []byte
	frames := 0
	for i := range 30 {
		got = b.Append(frame(), now)
		now = now.Add(20 * time.Millisecond)
		if got != nil {
			frames = i + 1
			break
		}
	}
	if got == nil {
		t.Fatal("hard cap never closed the utterance")
	}
	if frames != 20 {
		t.Errorf("closed after %d frames, want 20", frames)
	}
	if want := 20 * telephony.FrameBytes; len(got) != want {
		t.Errorf("utterance = %d bytes, want %d", len(got), want)
	}
}

func TestFlushOnStop(t *testing.T) {
	t.Parallel()

	b := New(testConfig)
	feed(t, b, time.Now(), 6) // 120 ms, above minimum

	got := b.Flush()
	if got == nil {
		t.Fatal("Flush returned nil")
	}
	if want := 6 * telephony.FrameBytes; len(got) != want {
		t.Errorf("flushed %d bytes, want %d", len(got), want)
	}

	// A second flush on the empty buffer yields nothing.
	if got := b.Flush(); got != nil {
		t.Errorf("second Flush returned %d bytes", len(got))
	}
}
