// Package pipeline drives the four-stage conversion of one resolved
// message into a spreadsheet: fetch raw content, render it to an
// image, recognize tables from the image, and emit the rows as an
// xlsx file. Every stage's artifact is persisted as soon as it is
// produced, so a later failure leaves the earlier artifacts on disk
// for diagnosis.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dohanlee/gmail-table-extractor/internal/artifact"
	"github.com/dohanlee/gmail-table-extractor/internal/mailbox"
)

// Stage identifies how far a run progressed.
type Stage int

const (
	StageNone Stage = iota
	StageFetch
	StageRender
	StageRecognize
	StageEmit
)

func (s Stage) String() string {
	switch s {
	case StageFetch:
		return "fetch"
	case StageRender:
		return "render"
	case StageRecognize:
		return "recognize"
	case StageEmit:
		return "emit"
	default:
		return "none"
	}
}

// Table is one recognized table: a header row plus data rows. Rows
// may be ragged; the model's output is not trusted to be rectangular.
type Table struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// TableSet is the recognizer's full structured response plus the raw
// JSON it produced, kept for auditability.
type TableSet struct {
	Tables []Table
	Raw    json.RawMessage
}

// Fetcher retrieves a message body. Implemented by mailbox.Client.
type Fetcher interface {
	FetchBody(ctx context.Context, id string) (mailbox.RawContent, error)
}

// Renderer converts an HTML document into an image snapshot.
type Renderer interface {
	Render(ctx context.Context, htmlDoc string) ([]byte, error)
}

// Recognizer extracts structured tables from an image.
type Recognizer interface {
	Extract(ctx context.Context, image []byte) (TableSet, error)
}

// Writer serializes a table set to a spreadsheet at path.
type Writer interface {
	Write(tables TableSet, path string) error
}

// Result is the terminal outcome of one run. Constructed once,
// never mutated afterwards.
type Result struct {
	Success      bool
	Message      string
	OutputFiles  []string
	StageReached Stage
	Err          error
	Elapsed      time.Duration
}

// Pipeline sequences the four stages for one message. Strictly
// sequential; retries, if any, belong to the collaborator clients.
type Pipeline struct {
	fetcher    Fetcher
	renderer   Renderer
	recognizer Recognizer
	writer     Writer
	store      *artifact.Store
	log        *logrus.Logger
}

func New(fetcher Fetcher, renderer Renderer, recognizer Recognizer, writer Writer, store *artifact.Store, log *logrus.Logger) *Pipeline {
	return &Pipeline{
		fetcher:    fetcher,
		renderer:   renderer,
		recognizer: recognizer,
		writer:     writer,
		store:      store,
		log:        log,
	}
}

// Run executes the pipeline for one resolved message. Failures are
// converted into a failed Result at the stage boundary and recorded
// with the stage that was reached; they do not propagate as errors.
func (p *Pipeline) Run(ctx context.Context, ref mailbox.MessageRef) Result {
	start := time.Now()
	var files []string

	// On failure the result lists no output files; artifacts from
	// completed stages stay on disk for diagnosis regardless.
	fail := func(stage Stage, err error) Result {
		p.log.WithFields(logrus.Fields{"stage": stage.String(), "message_id": ref.ID}).WithError(err).Error("pipeline stage failed")
		return Result{
			Success:      false,
			Message:      err.Error(),
			StageReached: stage,
			Err:          err,
			Elapsed:      time.Since(start),
		}
	}

	// Fetch.
	htmlPath, doc, err := p.fetch(ctx, ref)
	if err != nil {
		return fail(StageFetch, &FetchError{Err: err})
	}
	files = append(files, htmlPath)
	p.log.WithField("path", htmlPath).Info("message content saved")

	// Render.
	pngPath, image, err := p.render(ctx, doc)
	if err != nil {
		return fail(StageRender, &RenderError{Err: err})
	}
	files = append(files, pngPath)
	p.log.WithField("path", pngPath).Info("snapshot saved")

	// Recognize.
	jsonPath, tables, err := p.recognize(ctx, image)
	if err != nil {
		return fail(StageRecognize, &RecognitionError{Err: err})
	}
	files = append(files, jsonPath)
	p.log.WithFields(logrus.Fields{"path": jsonPath, "tables": len(tables.Tables)}).Info("tables recognized")

	// Emit.
	xlsxPath, err := p.emit(tables)
	if err != nil {
		return fail(StageEmit, &EmitError{Err: err})
	}
	files = append(files, xlsxPath)
	p.log.WithField("path", xlsxPath).Info("spreadsheet saved")

	return Result{
		Success:      true,
		Message:      fmt.Sprintf("extracted %d table(s) from message %s", len(tables.Tables), ref.ID),
		OutputFiles:  files,
		StageReached: StageEmit,
		Elapsed:      time.Since(start),
	}
}

func (p *Pipeline) fetch(ctx context.Context, ref mailbox.MessageRef) (path, doc string, err error) {
	content, err := p.fetcher.FetchBody(ctx, ref.ID)
	if err != nil {
		return "", "", err
	}
	if content.Empty() {
		return "", "", fmt.Errorf("message %s has no renderable content", ref.ID)
	}
	doc, err = mailbox.RenderableDocument(content)
	if err != nil {
		return "", "", err
	}
	path, err = p.store.Write(artifact.ExtHTML, []byte(doc))
	if err != nil {
		return "", "", err
	}
	return path, doc, nil
}

func (p *Pipeline) render(ctx context.Context, doc string) (path string, image []byte, err error) {
	image, err = p.renderer.Render(ctx, doc)
	if err != nil {
		return "", nil, err
	}
	path, err = p.store.Write(artifact.ExtPNG, image)
	if err != nil {
		return "", nil, err
	}
	return path, image, nil
}

func (p *Pipeline) recognize(ctx context.Context, image []byte) (path string, tables TableSet, err error) {
	tables, err = p.recognizer.Extract(ctx, image)
	if err != nil {
		return "", TableSet{}, err
	}
	raw := tables.Raw
	if len(raw) == 0 {
		raw, err = json.MarshalIndent(struct {
			Tables []Table `json:"tables"`
		}{Tables: tables.Tables}, "", "  ")
		if err != nil {
			return "", TableSet{}, err
		}
	}
	path, err = p.store.Write(artifact.ExtJSON, raw)
	if err != nil {
		return "", TableSet{}, err
	}
	return path, tables, nil
}

func (p *Pipeline) emit(tables TableSet) (string, error) {
	path, err := p.store.Allocate(artifact.ExtXLSX)
	if err != nil {
		return "", err
	}
	if err := p.writer.Write(tables, path); err != nil {
		return "", err
	}
	return path, nil
}
