package cmd

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/andresmejia3/chroma/internal/decode"
	"github.com/andresmejia3/chroma/internal/registry"
	"github.com/andresmejia3/chroma/internal/scanner"
	"github.com/andresmejia3/chroma/internal/store"
	"github.com/andresmejia3/chroma/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validOptions() Options {
	return Options{
		Device:      "/dev/video0",
		InputFormat: "v4l2",
		Width:       1280,
		Height:      720,
		FPS:         30,
		Timeout:     "60s",
		GuardDelay:  "100ms",
		BoxSize:     480,
		SpeakCmd:    "espeak",
	}
}

func TestValidateScanFlags(t *testing.T) {
	lookupFile := filepath.Join(t.TempDir(), "lookup.json")
	require.NoError(t, os.WriteFile(lookupFile, []byte("[]"), 0o644))

	tests := []struct {
		name    string
		modify  func(*Options)
		wantErr bool
	}{
		{name: "Valid options", modify: func(o *Options) {}},
		{name: "Valid with lookup file", modify: func(o *Options) { o.LookupPath = lookupFile }},
		{name: "Oversized box is clamped, not rejected", modify: func(o *Options) { o.BoxSize = 5000 }},
		{name: "Zero guard delay", modify: func(o *Options) { o.GuardDelay = "0s" }},
		{name: "Empty device", modify: func(o *Options) { o.Device = " " }, wantErr: true},
		{name: "Invalid size", modify: func(o *Options) { o.Width = 0 }, wantErr: true},
		{name: "Invalid fps", modify: func(o *Options) { o.FPS = 0 }, wantErr: true},
		{name: "Bad timeout format", modify: func(o *Options) { o.Timeout = "soon" }, wantErr: true},
		{name: "Non-positive timeout", modify: func(o *Options) { o.Timeout = "0s" }, wantErr: true},
		{name: "Negative guard delay", modify: func(o *Options) { o.GuardDelay = "-1s" }, wantErr: true},
		{name: "Zero box", modify: func(o *Options) { o.BoxSize = 0 }, wantErr: true},
		{name: "Missing lookup file", modify: func(o *Options) { o.LookupPath = "nope.json" }, wantErr: true},
		{name: "Lookup is a directory", modify: func(o *Options) { o.LookupPath = t.TempDir() }, wantErr: true},
		{name: "Speak without command", modify: func(o *Options) { o.Speak = true; o.SpeakCmd = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Redirect stderr to discard output during this specific sub-test
			oldStderr := os.Stderr
			r, w, _ := os.Pipe()
			os.Stderr = w

			opts := validOptions()
			tt.modify(&opts)
			err := validateScanFlags(&opts)

			w.Close()
			os.Stderr = oldStderr
			r.Close()

			if (err != nil) != tt.wantErr {
				t.Errorf("validateScanFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBuildLookupFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lookup.json")
	data := `[{"channel":"red","payload":"R1","display_text":"Kitchen","spoken_text":"kitchen"},
		{"channel":"blue","payload":"xyz 9","display_text":"Locker","spoken_text":"locker"}]`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	table, err := buildLookup(context.Background(), path)
	require.NoError(t, err)
	e, ok := table.Lookup(types.Red, "R1")
	assert.True(t, ok)
	assert.Equal(t, "Kitchen", e.DisplayText)

	e, ok = table.Lookup(types.Blue, decode.Normalize("xyz 9"))
	assert.True(t, ok, "file payloads are keyed like decoded payloads")
	assert.Equal(t, "Locker", e.DisplayText)

	empty, err := buildLookup(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
}

func TestParseLabelArgs(t *testing.T) {
	ch, payload, entry, err := parseLabelArgs([]string{"g", " G 7 ", "Garage"})
	require.NoError(t, err)
	assert.Equal(t, types.Green, ch)
	assert.Equal(t, "G7", payload)
	assert.Equal(t, types.LookupEntry{DisplayText: "Garage", SpokenText: "Garage"}, entry)

	_, _, entry, err = parseLabelArgs([]string{"blue", "B1", "Porch", "front porch"})
	require.NoError(t, err)
	assert.Equal(t, "front porch", entry.SpokenText)

	_, _, _, err = parseLabelArgs([]string{"purple", "X", "y"})
	assert.Error(t, err)
	_, _, _, err = parseLabelArgs([]string{"red", "   ", "y"})
	assert.Error(t, err)
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			// confirm prints the prompt on stdout
			oldStdout := os.Stdout
			r, w, _ := os.Pipe()
			os.Stdout = w

			got := confirm(bufio.NewReader(strings.NewReader(tt.input)), "?")

			w.Close()
			os.Stdout = oldStdout
			r.Close()

			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrintSummary(t *testing.T) {
	reg := registry.New(nil, func() time.Time { return time.Unix(0, 0) })
	reg.Record(types.Blue, "B1", types.ChannelDominance)
	s := &scanner.Session{ID: "abc", Registry: reg, Started: time.Now()}

	var buf bytes.Buffer
	printSummary(&buf, s, 42)

	out := buf.String()
	assert.Contains(t, out, "Session abc")
	assert.Contains(t, out, "42 decode attempts")
	assert.Contains(t, out, "Unknown BLUE QR: B1")
	assert.Contains(t, out, "Missing: RED, GREEN")

	buf.Reset()
	printSummary(&buf, nil, 0)
	assert.Empty(t, buf.String())
}

func TestWriteSessions(t *testing.T) {
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	finished := started.Add(75 * time.Second)

	var buf bytes.Buffer
	writeSessions(&buf, []store.Session{
		{ID: "0123456789abcdef", StartedAt: started, FinishedAt: &finished, Outcome: "complete", Found: 3},
		{ID: "short", StartedAt: started, Outcome: "searching"},
	})

	out := buf.String()
	assert.Contains(t, out, "01234567 ")
	assert.NotContains(t, out, "0123456789")
	assert.Contains(t, out, "00:01:15")
	assert.Contains(t, out, "3/3")
	assert.Contains(t, out, "0/3")

	buf.Reset()
	writeSessions(&buf, nil)
	assert.Contains(t, buf.String(), "No scan sessions")
}

func TestWriteResults(t *testing.T) {
	var buf bytes.Buffer
	writeResults(&buf, "abc", []types.FoundResult{
		{Channel: types.Red, Method: types.Segmented, DisplayText: "Kitchen", RawPayload: "R1", FoundAt: time.Now()},
	})
	assert.Contains(t, buf.String(), "Kitchen")
	assert.Contains(t, buf.String(), "segmented")

	buf.Reset()
	writeResults(&buf, "abc", nil)
	assert.Contains(t, buf.String(), "No codes were found")
}
