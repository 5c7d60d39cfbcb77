package pipeline_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dohanlee/gmail-table-extractor/internal/artifact"
	"github.com/dohanlee/gmail-table-extractor/internal/mailbox"
	"github.com/dohanlee/gmail-table-extractor/internal/pipeline"
)

type fnFetcher func(ctx context.Context, id string) (mailbox.RawContent, error)

func (f fnFetcher) FetchBody(ctx context.Context, id string) (mailbox.RawContent, error) {
	return f(ctx, id)
}

type fnRenderer func(ctx context.Context, doc string) ([]byte, error)

func (f fnRenderer) Render(ctx context.Context, doc string) ([]byte, error) { return f(ctx, doc) }

type fnRecognizer func(ctx context.Context, image []byte) (pipeline.TableSet, error)

func (f fnRecognizer) Extract(ctx context.Context, image []byte) (pipeline.TableSet, error) {
	return f(ctx, image)
}

type fnWriter func(tables pipeline.TableSet, path string) error

func (f fnWriter) Write(tables pipeline.TableSet, path string) error { return f(tables, path) }

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

var testRef = mailbox.MessageRef{
	ID:         "abc123",
	Subject:    "정산내역 2025년09월04일",
	Sender:     "이도한 <dohan@example.com>",
	ReceivedAt: time.Date(2025, 9, 4, 9, 30, 0, 0, time.UTC),
}

var settlementTables = pipeline.TableSet{
	Tables: []pipeline.Table{{
		Headers: []string{"항목", "금액"},
		Rows:    [][]string{{"수수료", "1,000"}, {"정산", "9,000", "ragged-extra"}},
	}},
}

type collaborators struct {
	fetch     fnFetcher
	render    fnRenderer
	recognize fnRecognizer
	write     fnWriter
}

func happyPath() collaborators {
	return collaborators{
		fetch: func(ctx context.Context, id string) (mailbox.RawContent, error) {
			return mailbox.RawContent{
				Ref:  testRef,
				HTML: "<table><tr><td>수수료</td><td>1,000</td></tr></table>",
			}, nil
		},
		render: func(ctx context.Context, doc string) ([]byte, error) {
			return []byte("png-bytes"), nil
		},
		recognize: func(ctx context.Context, image []byte) (pipeline.TableSet, error) {
			return settlementTables, nil
		},
		write: func(tables pipeline.TableSet, path string) error {
			return os.WriteFile(path, []byte("xlsx-bytes"), 0644)
		},
	}
}

func newPipeline(t *testing.T, c collaborators) (*pipeline.Pipeline, string, string) {
	t.Helper()
	outDir := filepath.Join(t.TempDir(), "output")
	tmpDir := filepath.Join(t.TempDir(), "temp")
	store, err := artifact.NewStore(outDir, tmpDir, "이도한", time.Now())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return pipeline.New(c.fetch, c.render, c.recognize, c.write, store, quietLogger()), outDir, tmpDir
}

func TestRun_Success(t *testing.T) {
	t.Parallel()

	p, outDir, tmpDir := newPipeline(t, happyPath())
	res := p.Run(context.Background(), testRef)

	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.StageReached != pipeline.StageEmit {
		t.Fatalf("stage = %v, want emit", res.StageReached)
	}
	if len(res.OutputFiles) != 4 {
		t.Fatalf("expected 4 output files, got %v", res.OutputFiles)
	}
	wantExt := []string{".html", ".png", ".json", ".xlsx"}
	for i, f := range res.OutputFiles {
		if filepath.Ext(f) != wantExt[i] {
			t.Fatalf("output file %d = %s, want ext %s", i, f, wantExt[i])
		}
		if _, err := os.Stat(f); err != nil {
			t.Fatalf("output file missing on disk: %v", err)
		}
	}
	if filepath.Dir(res.OutputFiles[1]) != tmpDir {
		t.Fatalf("png should live in temp dir, got %s", res.OutputFiles[1])
	}
	if filepath.Dir(res.OutputFiles[0]) != outDir {
		t.Fatalf("html should live in output dir, got %s", res.OutputFiles[0])
	}
	if res.Elapsed <= 0 {
		t.Fatalf("expected positive elapsed time, got %v", res.Elapsed)
	}
}

func TestRun_RecognitionFailureLeavesEarlierArtifacts(t *testing.T) {
	t.Parallel()

	c := happyPath()
	c.recognize = func(ctx context.Context, image []byte) (pipeline.TableSet, error) {
		return pipeline.TableSet{}, errors.New("model returned garbage")
	}

	p, outDir, tmpDir := newPipeline(t, c)
	res := p.Run(context.Background(), testRef)

	if res.Success {
		t.Fatal("expected failure")
	}
	if res.StageReached != pipeline.StageRecognize {
		t.Fatalf("stage = %v, want recognize", res.StageReached)
	}
	var recErr *pipeline.RecognitionError
	if !errors.As(res.Err, &recErr) {
		t.Fatalf("expected RecognitionError, got %v", res.Err)
	}
	if len(res.OutputFiles) != 0 {
		t.Fatalf("failed run must list no output files, got %v", res.OutputFiles)
	}

	// Fetch and render artifacts remain on disk for diagnosis.
	if n := countFiles(t, outDir, ".html"); n != 1 {
		t.Fatalf("expected 1 html artifact, found %d", n)
	}
	if n := countFiles(t, tmpDir, ".png"); n != 1 {
		t.Fatalf("expected 1 png artifact, found %d", n)
	}
}

func TestRun_FailureKinds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		mutate    func(*collaborators)
		wantStage pipeline.Stage
		wantErr   any
	}{
		{
			name: "fetch transport failure",
			mutate: func(c *collaborators) {
				c.fetch = func(ctx context.Context, id string) (mailbox.RawContent, error) {
					return mailbox.RawContent{}, errors.New("message vanished")
				}
			},
			wantStage: pipeline.StageFetch,
			wantErr:   new(*pipeline.FetchError),
		},
		{
			name: "fetch empty content",
			mutate: func(c *collaborators) {
				c.fetch = func(ctx context.Context, id string) (mailbox.RawContent, error) {
					return mailbox.RawContent{Ref: testRef}, nil
				}
			},
			wantStage: pipeline.StageFetch,
			wantErr:   new(*pipeline.FetchError),
		},
		{
			name: "renderer timeout",
			mutate: func(c *collaborators) {
				c.render = func(ctx context.Context, doc string) ([]byte, error) {
					return nil, context.DeadlineExceeded
				}
			},
			wantStage: pipeline.StageRender,
			wantErr:   new(*pipeline.RenderError),
		},
		{
			name: "emit disk failure",
			mutate: func(c *collaborators) {
				c.write = func(tables pipeline.TableSet, path string) error {
					return errors.New("disk full")
				}
			},
			wantStage: pipeline.StageEmit,
			wantErr:   new(*pipeline.EmitError),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c := happyPath()
			tc.mutate(&c)
			p, _, _ := newPipeline(t, c)

			res := p.Run(context.Background(), testRef)
			if res.Success {
				t.Fatal("expected failure")
			}
			if res.StageReached != tc.wantStage {
				t.Fatalf("stage = %v, want %v", res.StageReached, tc.wantStage)
			}
			if !errors.As(res.Err, tc.wantErr) {
				t.Fatalf("error %v is not the expected kind", res.Err)
			}
			if res.Message == "" {
				t.Fatal("failure result must carry a message")
			}
		})
	}
}

func TestRun_TableContentIsIdempotent(t *testing.T) {
	t.Parallel()

	var captured []pipeline.TableSet
	c := happyPath()
	base := c.write
	c.write = func(tables pipeline.TableSet, path string) error {
		captured = append(captured, tables)
		return base(tables, path)
	}

	p1, _, _ := newPipeline(t, c)
	p2, _, _ := newPipeline(t, c)

	if res := p1.Run(context.Background(), testRef); !res.Success {
		t.Fatalf("first run failed: %+v", res)
	}
	if res := p2.Run(context.Background(), testRef); !res.Success {
		t.Fatalf("second run failed: %+v", res)
	}
	if len(captured) != 2 || !reflect.DeepEqual(captured[0].Tables, captured[1].Tables) {
		t.Fatalf("table content differs across runs: %#v", captured)
	}
}

func TestRun_JSONArtifactPrefersRawCapture(t *testing.T) {
	t.Parallel()

	c := happyPath()
	raw := `{"tables":[{"headers":["h"],"rows":[["v"]]}]}`
	c.recognize = func(ctx context.Context, image []byte) (pipeline.TableSet, error) {
		return pipeline.TableSet{
			Tables: []pipeline.Table{{Headers: []string{"h"}, Rows: [][]string{{"v"}}}},
			Raw:    []byte(raw),
		}, nil
	}

	p, outDir, _ := newPipeline(t, c)
	res := p.Run(context.Background(), testRef)
	if !res.Success {
		t.Fatalf("run failed: %+v", res)
	}

	jsonFiles := listFiles(t, outDir, ".json")
	if len(jsonFiles) != 1 {
		t.Fatalf("expected 1 json artifact, got %v", jsonFiles)
	}
	data, err := os.ReadFile(jsonFiles[0])
	if err != nil {
		t.Fatalf("read json artifact: %v", err)
	}
	if string(data) != raw {
		t.Fatalf("json artifact = %q, want raw capture %q", data, raw)
	}
}

func countFiles(t *testing.T, dir, ext string) int {
	t.Helper()
	return len(listFiles(t, dir, ext))
}

func listFiles(t *testing.T, dir, ext string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir %s: %v", dir, err)
	}
	var out []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ext) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out
}
