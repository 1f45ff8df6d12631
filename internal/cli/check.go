package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ppiankov/plagiscan/internal/ingest"
	"github.com/ppiankov/plagiscan/internal/model"
	"github.com/ppiankov/plagiscan/internal/pipeline"
)

var (
	checkOpts    checkFlags
	checkText    string
	checkFormat  string
	outJSON      string
	outYAML      string
	outMD        string
	checkTimeout time.Duration
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check [file | -]",
	Short: "Check a document for wording found on the web",
	Long: `Check runs one plagiarism check:
- Split the text into sentences and pick the most distinctive ones
- Search the web for each selected sentence
- Fetch the top results and compare their sentences
- Report every sentence whose best source match meets the threshold

Input is a .txt, .docx or .pdf file, "-" for standard input, or --text.

Example:
  plagiscan check essay.docx
  plagiscan check essay.txt --md report.md --json report.json
  cat essay.txt | plagiscan check - --format json
  plagiscan check --text "Some paragraph to check..." --min-similarity 0.6`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVar(&checkText, "text", "", "check this text instead of a file")
	checkCmd.Flags().StringVar(&checkFormat, "format", "", "terminal output format (text, json, yaml, md)")
	checkCmd.Flags().StringVar(&outJSON, "json", "", "write JSON report to this path")
	checkCmd.Flags().StringVar(&outYAML, "yaml", "", "write YAML report to this path")
	checkCmd.Flags().StringVar(&outMD, "md", "", "write Markdown report to this path")
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 10*time.Minute, "overall check timeout")
	addCheckFlags(checkCmd, &checkOpts)
}

func runCheck(cmd *cobra.Command, args []string) error {
	raw, label, err := readCheckInput(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	checkOpts.apply(cmd, cfg)
	if checkFormat != "" {
		cfg.Output.Format = checkFormat
	}
	if err := requireProviderKey(cfg.LLM); err != nil {
		return err
	}

	rt, err := newRuntime(cfg, !checkOpts.noStore)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	p, err := rt.newPipeline()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	if cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, "Checking: %s (%d characters)\n", label, len([]rune(raw)))
		fmt.Fprintf(os.Stderr, "Threshold: %.2f, sentences: %d, cache: %v\n",
			cfg.Detection.MinSimilarity, cfg.Detection.MaxSentencesChecked, cfg.Cache.Enabled)
		fmt.Fprintln(os.Stderr)
	}

	rep, err := p.CheckText(ctx, raw, label)
	if err != nil && rep == nil {
		return fmt.Errorf("check failed: %w", err)
	}
	if err != nil {
		color.New(color.FgYellow).Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	if err := p.RenderReport(cmd.OutOrStdout(), rep, pipeline.RenderOptions{
		Format:   cfg.Output.Format,
		JSONPath: outJSON,
		YAMLPath: outYAML,
		MDPath:   outMD,
	}); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	printRunFooter(rep, rt.store != nil)
	return nil
}

// readCheckInput returns the raw text to check and a label for it
func readCheckInput(stdin io.Reader, args []string) (string, string, error) {
	switch {
	case checkText != "" && len(args) > 0:
		return "", "", fmt.Errorf("pass either a file or --text, not both")
	case checkText != "":
		return checkText, "text", nil
	case len(args) == 0:
		return "", "", fmt.Errorf("nothing to check: pass a file, - for stdin, or --text")
	case args[0] == "-":
		raw, err := io.ReadAll(stdin)
		if err != nil {
			return "", "", fmt.Errorf("read stdin: %w", err)
		}
		doc, err := ingest.Parse("stdin", raw)
		if err != nil {
			return "", "", err
		}
		return doc.Text, "stdin", nil
	default:
		doc, err := ingest.ParseFile(args[0])
		if err != nil {
			return "", "", err
		}
		return doc.Text, doc.Name, nil
	}
}

func printRunFooter(rep *model.Report, stored bool) {
	switch rep.Stats.Status() {
	case model.RunStatusPartial:
		color.New(color.FgYellow).Fprintln(os.Stderr, "Run was interrupted; results cover only the sentences checked so far.")
	case model.RunStatusDegraded:
		color.New(color.FgRed).Fprintln(os.Stderr, "Every web search failed or was rate limited; an empty result does not mean the text is original.")
	}
	if stored {
		fmt.Fprintf(os.Stderr, "Run %s saved. View it again with: plagiscan runs show %s\n", rep.RunID, rep.RunID)
	}
}
