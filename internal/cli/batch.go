package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ppiankov/plagiscan/internal/report"
	"github.com/ppiankov/plagiscan/internal/worker"
)

var (
	batchOpts    checkFlags
	concurrency  int
	outputDir    string
	listFile     string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch [files...]",
	Short: "Check several documents in parallel",
	Long: `Batch checks several documents concurrently:
- Read paths from arguments and/or a list file (one per line)
- Check documents in parallel, each with its own detector
- Write a JSON and a Markdown report per document

Keep concurrency low: every worker issues its own web searches and
search engines rate limit aggressive clients.

Example:
  plagiscan batch a.txt b.docx c.pdf
  plagiscan batch --list essays.txt --concurrency 2 --output-dir ./reports`,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", min(2, runtime.NumCPU()), "number of documents checked at once")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./plagiscan-reports", "output directory for reports")
	batchCmd.Flags().StringVar(&listFile, "list", "", "file listing document paths, one per line")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", time.Hour, "total timeout for batch processing")
	addCheckFlags(batchCmd, &batchOpts)
}

func runBatch(cmd *cobra.Command, args []string) error {
	paths := append([]string(nil), args...)
	if listFile != "" {
		listed, err := worker.ReadPathsFromFile(listFile)
		if err != nil {
			return err
		}
		paths = append(paths, listed...)
	}
	if len(paths) == 0 {
		return fmt.Errorf("no documents given: pass files or --list")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	batchOpts.apply(cmd, cfg)
	if err := requireProviderKey(cfg.LLM); err != nil {
		return err
	}

	rt, err := newRuntime(cfg, !batchOpts.noStore)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, batchTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  plagiscan batch\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Documents:    %d\n", len(paths))
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", concurrency)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	if cfg.LLM.Provider != "" {
		fmt.Fprintf(os.Stderr, "  LLM:          %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
	}
	fmt.Fprintf(os.Stderr, "\n")

	processor := worker.NewBatchProcessor(func() (worker.Checker, error) {
		p, err := rt.newPipeline()
		if err != nil {
			return nil, err
		}
		return p, nil
	}, concurrency)

	results := processor.ProcessPaths(ctx, paths)

	renderer := report.NewRenderer(cfg.Output.IncludeFooter)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	successCount, failureCount := 0, 0
	for _, result := range results {
		if result.Error != nil {
			failureCount++
			red.Fprintf(os.Stderr, "✗ %s: %v\n", result.Path, result.Error)
			continue
		}

		base := fmt.Sprintf("%02d-%s", result.Index+1, sanitizeFilename(result.Path))
		jsonPath := filepath.Join(outputDir, base+".json")
		mdPath := filepath.Join(outputDir, base+".md")

		if err := renderer.WriteFile(jsonPath, result.Report); err != nil {
			failureCount++
			red.Fprintf(os.Stderr, "✗ %s: failed to write JSON: %v\n", result.Path, err)
			continue
		}
		if err := renderer.WriteFile(mdPath, result.Report); err != nil {
			failureCount++
			red.Fprintf(os.Stderr, "✗ %s: failed to write Markdown: %v\n", result.Path, err)
			continue
		}

		successCount++
		green.Fprintf(os.Stderr, "✓ %s", result.Path)
		fmt.Fprintf(os.Stderr, " (%.2f%% similar, %d matches, %s)\n",
			result.Report.Summary.OverallPercentage, result.Report.Summary.TotalMatches, result.Report.Stats.Status())
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d documents\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	if failureCount > 0 && successCount == 0 {
		return fmt.Errorf("all %d documents failed", failureCount)
	}
	return nil
}

// sanitizeFilename turns a document path into a safe report file stem
func sanitizeFilename(path string) string {
	s := filepath.Base(path)
	s = strings.TrimSuffix(s, filepath.Ext(s))

	s = strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "-",
	).Replace(s)

	if s == "" || s == "." {
		s = "document"
	}
	if r := []rune(s); len(r) > 100 {
		s = string(r[:100])
	}
	return s
}
