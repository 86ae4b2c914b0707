package audio

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestWAVFromPCM_HeaderFields(t *testing.T) {
	pcm := make([]byte, 40000)

	wav, err := WAVFromPCM(pcm, SampleRate, Channels, BitsPerSample)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if len(wav) != HeaderSize+len(pcm) {
		t.Fatalf("expected %d bytes, got %d", HeaderSize+len(pcm), len(wav))
	}

	header, err := ParseHeader(wav)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if header.ChunkSize != uint32(36+len(pcm)) {
		t.Errorf("file size field: expected %d, got %d", 36+len(pcm), header.ChunkSize)
	}
	if header.SampleRate != 16000 {
		t.Errorf("sample rate: expected 16000, got %d", header.SampleRate)
	}
	if header.NumChannels != 1 {
		t.Errorf("channels: expected 1, got %d", header.NumChannels)
	}
	if header.BitsPerSample != 16 {
		t.Errorf("bits per sample: expected 16, got %d", header.BitsPerSample)
	}
	if header.ByteRate != 32000 {
		t.Errorf("byte rate: expected 32000, got %d", header.ByteRate)
	}
	if header.BlockAlign != 2 {
		t.Errorf("block align: expected 2, got %d", header.BlockAlign)
	}
	if header.Subchunk2Size != uint32(len(pcm)) {
		t.Errorf("data size: expected %d, got %d", len(pcm), header.Subchunk2Size)
	}
	if !bytes.Equal(wav[HeaderSize:], pcm) {
		t.Error("payload does not match original PCM bytes")
	}
}

func TestWAVFromPCM_PayloadPreserved(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}

	wav, err := WAVFromPCM(pcm, SampleRate, Channels, BitsPerSample)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if !bytes.Equal(wav[HeaderSize:], pcm) {
		t.Fatalf("payload mangled: %v", wav[HeaderSize:])
	}
	// data size lives at offset 40
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != uint32(len(pcm)) {
		t.Fatalf("data sub-chunk size: expected %d, got %d", len(pcm), got)
	}
}

func TestWAVFromPCM_Empty(t *testing.T) {
	if _, err := WAVFromPCM(nil, SampleRate, Channels, BitsPerSample); err == nil {
		t.Fatal("expected error for empty payload")
	}
}

func TestDuration(t *testing.T) {
	// 64000 bytes at 32000 bytes/s is two seconds
	pcm := make([]byte, 64000)
	wav, err := WAVFromPCM(pcm, SampleRate, Channels, BitsPerSample)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	d, err := Duration(wav)
	if err != nil {
		t.Fatalf("duration failed: %v", err)
	}
	if d != 2.0 {
		t.Fatalf("expected 2s, got %v", d)
	}
}

func TestParseHeader_Truncated(t *testing.T) {
	if _, err := ParseHeader([]byte("RIFF")); err == nil {
		t.Fatal("expected error for truncated header")
	}
}
