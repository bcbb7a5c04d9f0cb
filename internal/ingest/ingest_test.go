package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docroute/docroute/internal/pipeline"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoad_Files(t *testing.T) {
	dir := t.TempDir()

	p := writeFile(t, dir, "invoice.json", `{"invoice_number": 1}`)
	in, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, p, in.Source)
	assert.Equal(t, `{"invoice_number": 1}`, in.Content)

	p = writeFile(t, dir, "mail.html", `<html><head><title>x</title><style>p{}</style></head>
<body><p>From: jane@x.com</p><p>The item is <b>broken</b>.</p><script>alert(1)</script></body></html>`)
	in, err = Load(p)
	require.NoError(t, err)
	assert.Equal(t, "From: jane@x.com\nThe item is broken .", in.Content)
}

func TestLoad_Literal(t *testing.T) {
	for _, arg := range []string{
		`{"invoice_number": 1}`,
		"From: jane@x.com Please send a quote.",
		"hello",
	} {
		in, err := Load(arg)
		require.NoError(t, err, arg)
		assert.Equal(t, LiteralSource, in.Source)
		assert.Equal(t, arg, in.Content)
	}
}

func TestLoad_MissingPath(t *testing.T) {
	for _, arg := range []string{
		filepath.Join("no", "such", "file.txt"),
		"missing.pdf",
		"notes.txt",
		"payload.json",
		"message.eml",
	} {
		_, err := Load(arg)
		require.Error(t, err, arg)
		assert.True(t, errors.Is(err, ErrFileNotFound), arg)
	}
}

func TestLoad_Directory(t *testing.T) {
	_, err := Load(t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotAFile))
}

func TestLoad_InvalidPDF(t *testing.T) {
	p := writeFile(t, t.TempDir(), "broken.pdf", "this is not a pdf")
	_, err := Load(p)
	require.Error(t, err)
}

func TestLoadAll_StopsAtFirstError(t *testing.T) {
	_, err := LoadAll([]string{"hello", "missing.pdf", "world"})
	assert.True(t, errors.Is(err, ErrFileNotFound))

	inputs, err := LoadAll([]string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, inputs, 2)
}

func TestHTMLText_LineBreaks(t *testing.T) {
	got, err := HTMLText(strings.NewReader(`<div>Line one<br>Line two</div><ul><li>a</li><li>b</li></ul>`))
	require.NoError(t, err)
	assert.Equal(t, "Line one\nLine two\na\nb", got)
}

type fakeDispatcher struct {
	mu        sync.Mutex
	threadIDs map[string]bool
	inFlight  atomic.Int32
	peak      atomic.Int32
}

func (f *fakeDispatcher) Dispatch(_ context.Context, threadID, raw string) (pipeline.Outcome, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)

	f.mu.Lock()
	f.threadIDs[threadID] = true
	f.mu.Unlock()

	if raw == "bad" {
		return pipeline.Outcome{}, errors.New("classification failed")
	}
	return pipeline.Outcome{ThreadID: threadID}, nil
}

func TestBatch_Run(t *testing.T) {
	f := &fakeDispatcher{threadIDs: map[string]bool{}}
	inputs := []Input{
		{Source: "literal", Content: "one"},
		{Source: "literal", Content: "bad"},
		{Source: "literal", Content: "three"},
		{Source: "literal", Content: "four"},
		{Source: "literal", Content: "five"},
	}

	results := NewBatch(f, 2).Run(context.Background(), inputs)

	require.Len(t, results, len(inputs))
	for i, r := range results {
		assert.Equal(t, inputs[i], r.Input)
		assert.NotEmpty(t, r.Outcome.ThreadID)
	}
	assert.Error(t, results[1].Err)
	assert.Equal(t, 1, Failed(results))
	assert.Len(t, f.threadIDs, len(inputs), "each input gets its own thread")
	assert.LessOrEqual(t, f.peak.Load(), int32(2))
}
