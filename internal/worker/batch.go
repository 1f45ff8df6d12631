package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/plagiscan/internal/model"
)

// Checker checks one document and returns its report
type Checker interface {
	CheckFile(ctx context.Context, path string) (*model.Report, error)
}

// CheckerFactory builds a fresh Checker. Each batch job gets its own so no
// detection state is shared across documents.
type CheckerFactory func() (Checker, error)

// CheckJob represents a single document check
type CheckJob struct {
	Index      int
	Path       string
	NewChecker CheckerFactory
}

// Execute executes the check job
func (j *CheckJob) Execute(ctx context.Context) Result {
	res := &CheckResult{Index: j.Index, Path: j.Path}

	checker, err := j.NewChecker()
	if err != nil {
		res.Error = fmt.Errorf("build checker: %w", err)
		return res
	}

	report, err := checker.CheckFile(ctx, j.Path)
	if err != nil {
		res.Error = err
		return res
	}
	res.Report = report
	return res
}

// CheckResult represents the result of a check job
type CheckResult struct {
	Index  int
	Path   string
	Report *model.Report
	Error  error
}

// GetError returns the error from the check result
func (r *CheckResult) GetError() error {
	return r.Error
}

// BatchProcessor checks multiple documents concurrently
type BatchProcessor struct {
	newChecker  CheckerFactory
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(newChecker CheckerFactory, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		newChecker:  newChecker,
		concurrency: concurrency,
	}
}

// ProcessPaths checks every path and returns results in input order
func (b *BatchProcessor) ProcessPaths(ctx context.Context, paths []string) []*CheckResult {
	if len(paths) == 0 {
		return []*CheckResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	// Submit from a goroutine so a large batch cannot fill both queues
	go func() {
		for i, path := range paths {
			pool.Submit(&CheckJob{Index: i, Path: path, NewChecker: b.newChecker})
		}
		pool.Close()
	}()

	checkResults := make([]*CheckResult, 0, len(paths))
	for result := range pool.Results() {
		checkResults = append(checkResults, result.(*CheckResult))
	}

	sort.Slice(checkResults, func(i, j int) bool {
		return checkResults[i].Index < checkResults[j].Index
	})

	return checkResults
}

// ProcessList reads document paths from a list file and checks them concurrently
func (b *BatchProcessor) ProcessList(ctx context.Context, listPath string) ([]*CheckResult, error) {
	paths, err := ReadPathsFromFile(listPath)
	if err != nil {
		return nil, fmt.Errorf("read paths: %w", err)
	}

	return b.ProcessPaths(ctx, paths), nil
}

// ReadPathsFromFile reads document paths from a file (one per line).
// Relative paths resolve against the list file's directory.
func ReadPathsFromFile(listPath string) ([]string, error) {
	file, err := os.Open(listPath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	base := filepath.Dir(listPath)
	var paths []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !filepath.IsAbs(line) {
			line = filepath.Join(base, line)
		}

		if !seen[line] {
			seen[line] = true
			paths = append(paths, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return paths, nil
}
