// Command extractor locates one message in a Gmail mailbox, renders
// its content, extracts tables from the snapshot with Gemini, and
// writes the rows to an xlsx workbook.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dohanlee/gmail-table-extractor/internal/app"
	"github.com/dohanlee/gmail-table-extractor/internal/artifact"
	"github.com/dohanlee/gmail-table-extractor/internal/config"
	"github.com/dohanlee/gmail-table-extractor/internal/mailbox"
	"github.com/dohanlee/gmail-table-extractor/internal/pipeline"
	"github.com/dohanlee/gmail-table-extractor/internal/recognize"
	"github.com/dohanlee/gmail-table-extractor/internal/render"
	"github.com/dohanlee/gmail-table-extractor/internal/sheet"
	"github.com/dohanlee/gmail-table-extractor/internal/util"
	"github.com/dohanlee/gmail-table-extractor/internal/version"
)

func main() {
	os.Exit(run())
}

func run() int {
	fs := flag.NewFlagSet("extractor", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	configPath := fs.String("config", "", "Optional YAML config file; env vars override its values")
	sender := fs.String("sender", "", "Sender filter, name or address (env: SENDER_NAME)")
	messageID := fs.String("message-id", "", "Process exactly this message id (env: MESSAGE_ID)")
	targetDate := fs.String("target-date", "", "Process the message for this YYYYMMDD date (env: TARGET_DATE)")
	maxResults := fs.Int("max-results", 0, "Candidate set size bound (env: MAX_RESULTS)")
	showVersion := fs.Bool("version", false, "Print the version and exit")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return 2
	}
	if *showVersion {
		fmt.Println(version.Current)
		return 0
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %s\n", util.RedactSecrets(err.Error()))
		return 2
	}
	// Flags are the highest-precedence layer.
	if *sender != "" {
		cfg.SenderName = *sender
	}
	if *messageID != "" {
		cfg.MessageID = *messageID
	}
	if *targetDate != "" {
		cfg.TargetDate = *targetDate
	}
	if *maxResults > 0 {
		cfg.MaxResults = *maxResults
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %s\n", util.RedactSecrets(err.Error()))
		return 2
	}

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("shutdown signal received")
		cancel()
	}()

	log.Info("gmail table extractor starting")

	auth := &mailbox.Authenticator{
		CredentialsFile: cfg.CredentialsFile,
		TokenFile:       cfg.TokenFile,
		Log:             log,
	}
	srv, err := auth.Service(ctx)
	if err != nil {
		log.WithError(err).Error("gmail authentication failed")
		return 1
	}
	client := mailbox.NewGmailClient(srv, log)

	recognizer, err := recognize.New(ctx, recognize.Config{
		APIKey:       cfg.GeminiAPIKey,
		Model:        cfg.GeminiModel,
		BaseURL:      cfg.GeminiBaseURL,
		RateLimitRPS: cfg.RateLimitRPS,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "gemini config error: %s\n", util.RedactSecrets(err.Error()))
		return 2
	}

	store, err := artifact.NewStore(cfg.OutputDir, cfg.TempDir, cfg.SenderName, time.Now())
	if err != nil {
		log.WithError(err).Error("artifact store setup failed")
		return 1
	}

	renderer := render.New(render.Config{
		FullPage:    cfg.FullPageCapture,
		ScaleFactor: cfg.DeviceScaleFactor,
		Timeout:     cfg.RequestTimeout,
	})

	pipe := pipeline.New(client, renderer, recognizer, sheet.NewWriter(), store, log)
	extractor := app.NewExtractor(cfg, log, client, pipe)

	res := extractor.Run(ctx)
	if !res.Success {
		log.WithFields(logrus.Fields{
			"stage":   res.StageReached.String(),
			"message": util.RedactSecrets(res.Message),
		}).Error("run failed")
		return 1
	}

	log.WithFields(logrus.Fields{
		"files":   res.OutputFiles,
		"elapsed": res.Elapsed.String(),
	}).Info("run succeeded")
	return 0
}
