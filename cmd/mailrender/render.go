package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/felo/mail-render/internal/config"
	"github.com/felo/mail-render/internal/logging"
	"github.com/felo/mail-render/internal/parser"
	"github.com/felo/mail-render/internal/pipeline"
	"github.com/felo/mail-render/internal/sanitize"
	"github.com/felo/mail-render/internal/scanner"
)

// renderJob is the render command's input, resolved from flags and config
type renderJob struct {
	paths   []string
	outDir  string
	opts    sanitize.Options
	workers int
}

// renderSummary counts what a render run produced
type renderSummary struct {
	Files    int
	Messages int
	Failed   int
	Bytes    uint64
}

func newRenderCmd(flags *rootFlags) *cobra.Command {
	var (
		outDir      string
		images      bool
		theme       string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "render <path>...",
		Short: "Render .eml files, .mbox archives or directories of them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			log := logging.New(cfg.Log.Level, true)

			job := renderJob{paths: args, outDir: outDir, opts: cfg.RenderOptions(), workers: cfg.Render.Concurrency}
			if cmd.Flags().Changed("images") {
				job.opts.LoadExternalImages = images
			}
			if theme != "" {
				t, err := sanitize.ParseTheme(theme)
				if err != nil {
					return err
				}
				job.opts.Theme = t
			}
			if concurrency > 0 {
				job.workers = concurrency
			}

			summary, err := runRender(cmd.Context(), cfg, job, log)
			if err != nil {
				return err
			}
			log.Info().
				Int("files", summary.Files).
				Int("messages", summary.Messages).
				Int("failed", summary.Failed).
				Str("written", humanize.Bytes(summary.Bytes)).
				Str("out", outDir).
				Msg("render complete")
			if summary.Failed > 0 {
				return fmt.Errorf("%d of %d messages fell back to their snippet", summary.Failed, summary.Messages)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "rendered", "Output directory")
	cmd.Flags().BoolVar(&images, "images", false, "Load external images instead of blocking them")
	cmd.Flags().StringVar(&theme, "theme", "", "Theme: light or dark")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Number of render workers")
	return cmd
}

// namedMessage pairs a pipeline message with its output file stem
type namedMessage struct {
	stem string
	msg  pipeline.Message
}

func runRender(ctx context.Context, cfg *config.Config, job renderJob, log zerolog.Logger) (renderSummary, error) {
	var summary renderSummary

	inputs, err := scanner.NewScanner(job.paths...).Scan()
	if err != nil {
		return summary, err
	}
	summary.Files = len(inputs)
	if len(inputs) == 0 {
		log.Warn().Strs("paths", job.paths).Msg("no .eml or .mbox files found")
		return summary, nil
	}

	named := loadMessages(inputs, log)
	summary.Messages = len(named)

	processor, err := pipeline.FromConfig(cfg, log)
	if err != nil {
		return summary, err
	}
	if job.workers > 0 {
		processor.WithConcurrency(job.workers)
	}

	if err := os.MkdirAll(job.outDir, 0755); err != nil {
		return summary, fmt.Errorf("failed to create output directory: %w", err)
	}

	msgs := make([]pipeline.Message, len(named))
	for i, n := range named {
		msgs[i] = n.msg
	}
	results := processor.ProcessBatchWithProgress(ctx, msgs, job.opts, func(done, total int, id string) {
		log.Debug().Int("done", done).Int("total", total).Str("message", id).Msg("rendered")
	})

	for i, res := range results {
		if res.Err != nil {
			summary.Failed++
			log.Warn().Err(res.Err).Str("message", named[i].stem).Msg("render degraded to snippet")
		}
		n, err := writeResult(job.outDir, named[i].stem, res.Result)
		if err != nil {
			return summary, err
		}
		summary.Bytes += n
	}
	return summary, nil
}

// loadMessages parses every input. A file or mbox entry that cannot be
// parsed is logged and skipped.
func loadMessages(inputs []scanner.Input, log zerolog.Logger) []namedMessage {
	var out []namedMessage
	stems := make(map[string]int)

	add := func(stem string, parsed *parser.ParsedEmail) {
		stems[stem]++
		if c := stems[stem]; c > 1 {
			stem = stem + "-" + strconv.Itoa(c)
		}
		out = append(out, namedMessage{
			stem: stem,
			msg: pipeline.Message{
				ID:      stem,
				Snippet: parsed.Snippet,
				Payload: parsed.Root,
				Fetcher: parsed.Store,
			},
		})
	}

	for _, in := range inputs {
		stem := strings.TrimSuffix(filepath.Base(in.Path), filepath.Ext(in.Path))

		switch in.Kind {
		case scanner.KindMbox:
			entries, err := parser.ReadMboxFile(in.Path)
			if err != nil && len(entries) == 0 {
				log.Warn().Err(err).Str("path", in.Path).Msg("skipping unreadable mbox")
				continue
			}
			if err != nil {
				log.Warn().Err(err).Str("path", in.Path).Int("read", len(entries)).Msg("mbox truncated")
			}
			for _, e := range entries {
				if e.Err != nil {
					log.Warn().Err(e.Err).Str("path", in.Path).Int("index", e.Index).Msg("skipping unparseable message")
					continue
				}
				add(fmt.Sprintf("%s-%03d", stem, e.Index+1), e.Email)
			}
		default:
			parsed, err := parser.ParseEMLFile(in.Path)
			if err != nil {
				log.Warn().Err(err).Str("path", in.Path).Msg("skipping unparseable message")
				continue
			}
			add(stem, parsed)
		}
	}
	return out
}

// writeResult writes <stem>.html and <stem>.txt and returns the bytes written
func writeResult(dir, stem string, res pipeline.Result) (uint64, error) {
	files := []struct {
		ext  string
		data string
	}{
		{".html", res.ProcessedHTML},
		{".txt", res.PlainText},
	}

	var n uint64
	for _, f := range files {
		path := filepath.Join(dir, stem+f.ext)
		if err := os.WriteFile(path, []byte(f.data), 0644); err != nil {
			return n, fmt.Errorf("failed to write %s: %w", path, err)
		}
		n += uint64(len(f.data))
	}
	return n, nil
}
