package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
	"time"
)

// pcm16 builds a little-endian PCM buffer from int16 samples.
func pcm16(samples ...int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func TestDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		pcmLen int
		rate   int
		want   time.Duration
	}{
		{"one second at 8k", 16000, 8000, time.Second},
		{"20ms frame at 8k", 320, 8000, 20 * time.Millisecond},
		{"one second at 16k", 32000, 16000, time.Second},
		{"empty", 0, 8000, 0},
		{"zero rate", 16000, 0, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Duration(tc.pcmLen, tc.rate); got != tc.want {
				t.Errorf("Duration(%d, %d) = %v, want %v", tc.pcmLen, tc.rate, got, tc.want)
			}
		})
	}
}

func TestEncodeDecodeWAV(t *testing.T) {
	t.Parallel()

	pcm := pcm16(0, 100, -100, 32767, -32768, 42)
	wav := EncodeWAV(pcm, 8000, 1)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("EncodeWAV length = %d, want %d", len(wav), 44+len(pcm))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Fatalf("EncodeWAV produced bad header %q", wav[0:12])
	}

	got, rate, channels, err := DecodeWAV(wav)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if rate != 8000 || channels != 1 {
		t.Errorf("DecodeWAV rate=%d channels=%d, want 8000/1", rate, channels)
	}
	if !bytes.Equal(got, pcm) {
		t.Errorf("DecodeWAV pcm mismatch: got %v, want %v", got, pcm)
	}
}

func TestDecodeWAVSkipsForeignChunks(t *testing.T) {
	t.Parallel()

	pcm := pcm16(1, 2, 3)
	wav := EncodeWAV(pcm, 22050, 1)

	// Splice a LIST chunk between fmt and data.
	list := make([]byte, 8+4)
	copy(list, "LIST")
	binary.LittleEndian.PutUint32(list[4:8], 4)
	spliced := append(append(append([]byte{}, wav[:36]...), list...), wav[36:]...)

	got, rate, _, err := DecodeWAV(spliced)
	if err != nil {
		t.Fatalf("DecodeWAV with LIST chunk: %v", err)
	}
	if rate != 22050 || !bytes.Equal(got, pcm) {
		t.Errorf("DecodeWAV with LIST chunk: rate=%d pcm=%v", rate, got)
	}
}

func TestDecodeWAVErrors(t *testing.T) {
	t.Parallel()

	if _, _, _, err := DecodeWAV([]byte("not a wav file at all, definitely not 44 bytes")); !errors.Is(err, ErrNotWAV) {
		t.Errorf("DecodeWAV(garbage) = %v, want ErrNotWAV", err)
	}

	// Valid header but compressed format code.
	wav := EncodeWAV(pcm16(0, 0), 8000, 1)
	binary.LittleEndian.PutUint16(wav[20:22], 7) // mu-law
	if _, _, _, err := DecodeWAV(wav); err == nil {
		t.Error("DecodeWAV(mu-law) = nil error, want format error")
	}
}

func TestResampleMono16(t *testing.T) {
	t.Parallel()

	t.Run("identity", func(t *testing.T) {
		t.Parallel()
		in := pcm16(1, 2, 3, 4)
		if got := ResampleMono16(in, 8000, 8000); !bytes.Equal(got, in) {
			t.Errorf("identity resample changed data: %v", got)
		}
	})

	t.Run("downsample halves length", func(t *testing.T) {
		t.Parallel()
		in := make([]byte, 32000) // 1 s at 16 kHz
		got := ResampleMono16(in, 16000, 8000)
		if len(got) != 16000 {
			t.Errorf("len = %d, want 16000", len(got))
		}
	})

	t.Run("22050 to 8000 ratio", func(t *testing.T) {
		t.Parallel()
		in := make([]byte, 44100) // 1 s at 22.05 kHz
		got := ResampleMono16(in, 22050, 8000)
		if len(got) != 16000 {
			t.Errorf("len = %d, want 16000", len(got))
		}
	})

	t.Run("constant signal stays constant", func(t *testing.T) {
		t.Parallel()
		in := pcm16(1000, 1000, 1000, 1000, 1000, 1000, 1000, 1000)
		got := ResampleMono16(in, 16000, 8000)
		for i := 0; i+1 < len(got); i += 2 {
			s := int16(binary.LittleEndian.Uint16(got[i:]))
			if s != 1000 {
				t.Fatalf("sample %d = %d, want 1000", i/2, s)
			}
		}
	})
}

func TestStereoToMono(t *testing.T) {
	t.Parallel()

	in := pcm16(100, 200, -100, -200, 32767, 32767)
	got := StereoToMono(in)
	want := pcm16(150, -150, 32767)
	if !bytes.Equal(got, want) {
		t.Errorf("StereoToMono = %v, want %v", got, want)
	}
}
