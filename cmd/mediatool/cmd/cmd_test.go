package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/mediatool/internal/config"
	"github.com/jmylchreest/mediatool/internal/media"
	"github.com/jmylchreest/mediatool/internal/media/mediatest"
	"github.com/jmylchreest/mediatool/internal/remux"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeOps struct {
	trimErr  error
	remuxErr error
	calls    []string
}

func (f *fakeOps) Trim(_ context.Context, in, out string, _ remux.Window) (*remux.Result, error) {
	f.calls = append(f.calls, "trim")
	return &remux.Result{Operation: "trim", Input: in, Output: out, State: remux.StateHeaderWritten}, f.trimErr
}

func (f *fakeOps) Remux(_ context.Context, in, out string) (*remux.Result, error) {
	f.calls = append(f.calls, "remux")
	return &remux.Result{Operation: "remux", Input: in, Output: out}, f.remuxErr
}

type inspectFunc func(ctx context.Context, path string) (media.InputContainer, error)

func (f inspectFunc) Inspect(ctx context.Context, path string) (media.InputContainer, error) {
	return f(ctx, path)
}

func staticInspector(c *mediatest.Container, err error, calls *[]string) media.Inspector {
	return inspectFunc(func(context.Context, string) (media.InputContainer, error) {
		*calls = append(*calls, "report")
		if err != nil {
			return nil, err
		}
		return c, nil
	})
}

func testContainer() *mediatest.Container {
	return &mediatest.Container{Input: mediatest.Input{
		Streams:  []*media.Stream{mediatest.VideoStream(0)},
		Duration: 10 * media.TimeBase,
	}}
}

func TestSequence_Policy(t *testing.T) {
	tests := []struct {
		name      string
		trimErr   error
		reportErr error
		remuxErr  error
		wantErr   bool
		wantCalls []string
	}{
		{
			name:      "all steps succeed",
			wantCalls: []string{"trim", "report", "remux"},
		},
		{
			name:      "trim failure is fatal and stops the sequence",
			trimErr:   media.ErrHeaderWriteFailed,
			wantErr:   true,
			wantCalls: []string{"trim"},
		},
		{
			name:      "report failure is swallowed",
			reportErr: media.ErrIOOpenFailed,
			wantCalls: []string{"trim", "report", "remux"},
		},
		{
			name:      "copy failure is swallowed",
			remuxErr:  media.ErrPacketWriteFailed,
			wantCalls: []string{"trim", "report", "remux"},
		},
		{
			name:      "report and copy failures are both swallowed",
			reportErr: media.ErrIOOpenFailed,
			remuxErr:  media.ErrIOCreateFailed,
			wantCalls: []string{"trim", "report", "remux"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ops := &fakeOps{trimErr: tt.trimErr, remuxErr: tt.remuxErr}
			var out bytes.Buffer
			seq := &sequence{
				pipeline:   ops,
				input:      "in.ts",
				trimOutput: "trim.ts",
				copyOutput: "copy.ts",
				out:        &out,
				logger:     discardLogger(),
			}
			var calls []string
			seq.inspector = staticInspector(testContainer(), tt.reportErr, &calls)

			err := seq.run(context.Background())
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.trimErr)
			} else {
				require.NoError(t, err)
			}

			merged := mergeCalls(ops.calls, calls)
			assert.Equal(t, tt.wantCalls, merged)
			if tt.reportErr == nil && !tt.wantErr {
				assert.Contains(t, out.String(), "duration (seconds): 10.00")
			}
		})
	}
}

// mergeCalls interleaves pipeline calls with the single report call, which
// always happens between trim and remux.
func mergeCalls(ops, report []string) []string {
	if len(ops) == 0 {
		return report
	}
	merged := []string{ops[0]}
	merged = append(merged, report...)
	return append(merged, ops[1:]...)
}

func TestSequence_WithPipeline(t *testing.T) {
	p := mediatest.NewProvider()
	p.AddInput("in.mem", &mediatest.Input{
		Streams: []*media.Stream{mediatest.VideoStream(0), mediatest.AudioStream(1)},
		Packets: append(mediatest.PacketsEvery(0, 50, 9000), mediatest.PacketsEvery(1, 10, 48000)...),
	})

	var out bytes.Buffer
	var calls []string
	seq := &sequence{
		pipeline:   remux.NewPipeline(p, remux.Options{}, discardLogger()),
		inspector:  staticInspector(testContainer(), nil, &calls),
		input:      "in.mem",
		trimOutput: "trim.mem",
		copyOutput: "copy.mem",
		window:     remux.Window{Start: 0, Duration: 2},
		out:        &out,
		logger:     discardLogger(),
	}
	require.NoError(t, seq.run(context.Background()))

	trimmed, ok := p.Output("trim.mem")
	require.True(t, ok)
	copied, ok := p.Output("copy.mem")
	require.True(t, ok)
	assert.Less(t, len(trimmed.Packets), len(copied.Packets))
	assert.Len(t, copied.Packets, 60)
	assert.Equal(t, 1, trimmed.Count("trailer"))
	assert.Equal(t, 1, copied.Count("trailer"))
	assert.Contains(t, out.String(), "stream index 0:")
}

func TestSequence_TrimOpenFailure(t *testing.T) {
	p := mediatest.NewProvider()

	var calls []string
	seq := &sequence{
		pipeline:   remux.NewPipeline(p, remux.Options{}, discardLogger()),
		inspector:  staticInspector(testContainer(), nil, &calls),
		input:      "missing.mem",
		trimOutput: "trim.mem",
		copyOutput: "copy.mem",
		window:     remux.Window{Duration: 10},
		out:        io.Discard,
		logger:     discardLogger(),
	}

	err := seq.run(context.Background())
	assert.ErrorIs(t, err, media.ErrIOOpenFailed)
	assert.Empty(t, calls)
	_, created := p.Output("copy.mem")
	assert.False(t, created)
}

func TestSequence_Interrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls []string
	seq := &sequence{
		pipeline:  &fakeOps{},
		inspector: staticInspector(testContainer(), nil, &calls),
		out:       io.Discard,
		logger:    discardLogger(),
	}
	assert.ErrorIs(t, seq.run(ctx), context.Canceled)
}

func TestWriteReport(t *testing.T) {
	c := testContainer()
	var calls []string
	insp := staticInspector(c, nil, &calls)

	var text bytes.Buffer
	require.NoError(t, writeReport(context.Background(), insp, "in.ts", &text, false))
	assert.Contains(t, text.String(), "Best video stream index: 0")
	assert.True(t, c.Closed)

	var js bytes.Buffer
	require.NoError(t, writeReport(context.Background(), insp, "in.ts", &js, true))
	assert.Contains(t, js.String(), `"best_streams"`)

	err := writeReport(context.Background(), staticInspector(nil, errors.New("boom"), &calls), "x", io.Discard, false)
	assert.EqualError(t, err, "boom")
}

func TestPrintResult(t *testing.T) {
	res := &remux.Result{
		Operation:      "trim",
		Input:          "in.ts",
		Output:         "out.ts",
		PacketsRead:    2000,
		PacketsWritten: 1500,
		PacketsDropped: 499,
		StoppedEarly:   true,
	}

	var buf bytes.Buffer
	require.NoError(t, printResult(&buf, res, false))
	assert.Equal(t, "trim in.ts -> out.ts: 1,500 of 2,000 packets written (75.0%), 499 dropped, stopped at window end\n", buf.String())

	buf.Reset()
	require.NoError(t, printResult(&buf, res, true))
	assert.Contains(t, buf.String(), `"packets_written": 1500`)
	assert.Contains(t, buf.String(), `"state": "init"`)
}

func TestPrintFormats(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printFormats(&buf, []media.Provider{mediatest.NewProvider()}))

	out := buf.String()
	assert.Contains(t, out, "FORMAT")
	assert.Contains(t, out, ".mem")
	assert.Regexp(t, `(?m)^h264\s+Video\s+memory\s+`, out)
	assert.Regexp(t, `(?m)^ac3\s+Audio\s+-\s+`, out)
}

func TestDumpConfig(t *testing.T) {
	loaded, err := config.Load("")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, dumpConfig(&buf, loaded))
	assert.Contains(t, buf.String(), "# mediatool Configuration File")

	var parsed map[string]map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &parsed))
	assert.Equal(t, "copy", parsed["remux"]["codec_policy"])
	assert.Equal(t, "4MB", parsed["mpegts"]["metadata_probe_size"])
	assert.Equal(t, "30s", parsed["ffmpeg"]["probe_timeout"])
	assert.Contains(t, parsed["run"], "trim_duration")

	// The dump must load back into an equivalent configuration.
	path := filepath.Join(t.TempDir(), "dump.yaml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	reloaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, loaded, reloaded)
}
