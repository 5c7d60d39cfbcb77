// Package app composes the extractor run: build selection criteria
// from configuration, resolve one message, and drive the extraction
// pipeline. All collaborator errors stop here; a run always returns a
// terminal Result.
package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/dohanlee/gmail-table-extractor/internal/config"
	"github.com/dohanlee/gmail-table-extractor/internal/mailbox"
	"github.com/dohanlee/gmail-table-extractor/internal/pipeline"
	"github.com/dohanlee/gmail-table-extractor/internal/selector"
	"github.com/dohanlee/gmail-table-extractor/internal/subjectdate"
	"github.com/dohanlee/gmail-table-extractor/internal/util"
)

// Extractor is the per-run orchestrator.
type Extractor struct {
	cfg    config.Config
	log    *logrus.Logger
	client mailbox.Client
	pipe   *pipeline.Pipeline
}

func NewExtractor(cfg config.Config, log *logrus.Logger, client mailbox.Client, pipe *pipeline.Pipeline) *Extractor {
	return &Extractor{cfg: cfg, log: log, client: client, pipe: pipe}
}

// Run resolves one message and pipes it to a spreadsheet. Selection
// failures are the caller's configuration mistake and terminate the
// run with a descriptive failure result; pipeline failures are
// reported with the stage that was reached.
func (e *Extractor) Run(ctx context.Context) pipeline.Result {
	criteria, err := e.criteria()
	if err != nil {
		return terminal(err)
	}
	strategy := criteria.Strategy()
	e.log.WithFields(logrus.Fields{
		"strategy": strategy.String(),
		"sender":   criteria.SenderName,
	}).Info("resolving message")

	ref, err := e.resolve(ctx, criteria)
	if err != nil {
		e.log.WithError(err).Error("message resolution failed")
		return terminal(err)
	}
	e.log.WithFields(logrus.Fields{
		"message_id": ref.ID,
		"subject":    ref.Subject,
	}).Info("message resolved")

	res := e.pipe.Run(ctx, ref)
	if res.Success {
		e.log.WithFields(logrus.Fields{
			"files":   res.OutputFiles,
			"elapsed": res.Elapsed.String(),
		}).Info("extraction complete")
	}
	return res
}

func (e *Extractor) criteria() (selector.Criteria, error) {
	criteria := selector.Criteria{
		SenderName: e.cfg.SenderName,
		MessageID:  e.cfg.MessageID,
		MaxResults: e.cfg.MaxResults,
		StrictDate: e.cfg.StrictDate,
	}
	if e.cfg.TargetDate != "" {
		d, err := subjectdate.FromCompact(e.cfg.TargetDate)
		if err != nil {
			return selector.Criteria{}, fmt.Errorf("TARGET_DATE: %w", err)
		}
		criteria.TargetDate = &d
	}
	return criteria, nil
}

// resolve picks the single message the pipeline will process. An
// explicit message id is looked up directly, bypassing search; the
// other strategies search the sender's messages first.
func (e *Extractor) resolve(ctx context.Context, criteria selector.Criteria) (mailbox.MessageRef, error) {
	if criteria.Strategy() == selector.StrategyByID {
		ref, err := e.client.Lookup(ctx, criteria.MessageID)
		if err != nil {
			return mailbox.MessageRef{}, fmt.Errorf("lookup message %s: %w", criteria.MessageID, err)
		}
		return ref, nil
	}

	query := mailbox.SenderQuery(criteria.SenderName)
	candidates, err := e.client.Search(ctx, query, int64(criteria.MaxResults))
	if err != nil {
		return mailbox.MessageRef{}, fmt.Errorf("search mailbox: %w", err)
	}
	e.log.WithField("candidates", len(candidates)).Debug("search complete")

	return selector.Resolve(criteria, candidates)
}

// terminal converts a pre-pipeline error into a failed result.
func terminal(err error) pipeline.Result {
	return pipeline.Result{
		Success:      false,
		Message:      util.RedactSecrets(err.Error()),
		StageReached: pipeline.StageNone,
		Err:          err,
	}
}
