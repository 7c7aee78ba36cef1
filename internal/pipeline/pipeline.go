package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"repsum/internal/archive"
	"repsum/internal/batcher"
	"repsum/internal/chunker"
	"repsum/internal/ledger"
)

// ErrNoArchives is returned when the source directory holds nothing to do.
var ErrNoArchives = errors.New("no archives found in source directory")

// Summarizer produces a summary artifact for one input artifact. The
// production implementation is summarizer.Client.
type Summarizer interface {
	Summarize(ctx context.Context, artifactPath string) (string, error)
}

// Config contains configuration for a pipeline run.
type Config struct {
	SourceDir   string
	OutputDir   string
	BatchSize   int    // summaries per rollup batch
	ChunkTokens int    // per-chunk token budget
	FinalPath   string // final rollup document, sibling of OutputDir
}

// Statistics describes what a run did.
type Statistics struct {
	ArchivesProcessed  int
	ArchivesFailed     int
	FilesProcessed     int
	ChunksSummarized   int
	ChunksSkipped      int // already done per the ledger
	BatchSummaries     int
	DirectorySummaries int
	FinalSummaryPath   string // empty when no directory summaries exist
	Duration           time.Duration
	ErrorMessages      []string
}

// Pipeline coordinates the rollup: extract -> chunk -> summarize ->
// per-directory batch-reduce -> global directory rollup -> final reduction.
// Execution is strictly sequential; the external-service cooldown inside
// the Summarizer is the intended throttle.
type Pipeline struct {
	cfg    Config
	svc    Summarizer
	ledger *ledger.Ledger
}

// New creates a Pipeline.
func New(cfg Config, svc Summarizer, led *ledger.Ledger) *Pipeline {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = batcher.DefaultSize
	}
	return &Pipeline{cfg: cfg, svc: svc, ledger: led}
}

// Run processes every archive in the source directory and rolls the
// resulting summaries up to a single final summary. Failures are contained
// at the smallest skippable unit (one chunk, one file, one archive); only
// cancellation or an unusable source directory aborts the run.
func (p *Pipeline) Run(ctx context.Context) (*Statistics, error) {
	startTime := time.Now()
	stats := &Statistics{
		ErrorMessages: make([]string, 0),
	}

	archives, err := archive.List(p.cfg.SourceDir)
	if err != nil {
		return nil, err
	}
	if len(archives) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoArchives, p.cfg.SourceDir)
	}

	if err := os.MkdirAll(p.cfg.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	for _, zipPath := range archives {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		pterm.Info.Printfln("Processing archive %s", filepath.Base(zipPath))
		if err := p.processArchive(ctx, zipPath, stats); err != nil {
			if ctx.Err() != nil {
				return stats, err
			}
			stats.ArchivesFailed++
			p.recordError(stats, "archive %s: %v", zipPath, err)
			continue
		}
		stats.ArchivesProcessed++
	}

	if err := p.globalRollup(ctx, stats); err != nil {
		return stats, err
	}

	stats.Duration = time.Since(startTime)
	return stats, nil
}

// processArchive runs the per-archive stages: extract, per-file fan-out,
// per-directory batch-reduce, cleanup. The scratch directory is removed on
// every exit path; a cleanup failure is logged, not fatal.
func (p *Pipeline) processArchive(ctx context.Context, zipPath string, stats *Statistics) error {
	name := strings.TrimSuffix(filepath.Base(zipPath), filepath.Ext(zipPath))
	scratch := filepath.Join(p.cfg.SourceDir, name)

	if err := archive.Extract(zipPath, scratch); err != nil {
		return err
	}
	defer func() {
		if err := archive.Cleanup(scratch); err != nil {
			pterm.Warning.Printfln("Cleanup failed: %v", err)
			p.recordError(stats, "cleanup %s: %v", scratch, err)
		}
	}()

	dirs, err := collectSourceDirs(scratch)
	if err != nil {
		return err
	}

	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.processDirectory(ctx, scratch, dir, stats); err != nil {
			return err
		}
	}
	return nil
}

// processDirectory chunks and summarizes every eligible file directly in
// dir, then reduces the collected chunk summaries into batch summaries.
func (p *Pipeline) processDirectory(ctx context.Context, scratch, dir string, stats *Statistics) error {
	rel, err := filepath.Rel(scratch, dir)
	if err != nil {
		return err
	}
	destRoot := filepath.Join(p.cfg.OutputDir, rel)
	if err := os.MkdirAll(destRoot, 0755); err != nil {
		return fmt.Errorf("create dest dir: %w", err)
	}

	files, err := listFiles(dir)
	if err != nil {
		p.recordError(stats, "list %s: %v", dir, err)
		return nil
	}

	var summaries []string
	for _, file := range files {
		if skipFile(file) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		srcFile := filepath.Join(dir, file)
		destFile := filepath.Join(destRoot, file)

		chunkPaths, err := chunker.ChunkFile(srcFile, destFile, p.cfg.ChunkTokens)
		if err != nil {
			// Unreadable source files are skipped, not fatal.
			p.recordError(stats, "chunk %s: %v", srcFile, err)
			continue
		}
		stats.FilesProcessed++

		for _, chunkPath := range chunkPaths {
			summaryPath, err := p.summarizeArtifact(ctx, chunkPath, stats)
			if err != nil {
				if ctx.Err() != nil {
					return err
				}
				p.recordError(stats, "summarize %s: %v", chunkPath, err)
				continue
			}
			summaries = append(summaries, summaryPath)
		}
	}

	// Directory batch-reduce: one summary per batch of chunk summaries.
	for i, group := range batcher.Split(summaries, p.cfg.BatchSize) {
		if err := ctx.Err(); err != nil {
			return err
		}
		batchPath := filepath.Join(destRoot, fmt.Sprintf("batch_%03d.txt", i+1))
		if err := p.reduceBatch(ctx, batchPath, group, ""); err != nil {
			p.recordError(stats, "batch %s: %v", batchPath, err)
			continue
		}
		stats.BatchSummaries++
	}

	return nil
}

// summarizeArtifact applies the skip policy: an artifact already recorded in
// the ledger reuses its existing summary without another external call.
func (p *Pipeline) summarizeArtifact(ctx context.Context, artifactPath string, stats *Statistics) (string, error) {
	if p.ledger.IsDone(artifactPath) {
		stats.ChunksSkipped++
		return artifactPath + "_summary", nil
	}
	summaryPath, err := p.svc.Summarize(ctx, artifactPath)
	if err != nil {
		return "", err
	}
	stats.ChunksSummarized++
	return summaryPath, nil
}

// reduceBatch materializes a group of summaries into one combined document
// and summarizes it. A batch already recorded in the ledger is trusted
// as-is and neither rewritten nor re-summarized.
func (p *Pipeline) reduceBatch(ctx context.Context, batchPath string, members []string, headerRoot string) error {
	if p.ledger.IsDone(batchPath) {
		return nil
	}
	if err := batcher.Materialize(batchPath, members, headerRoot); err != nil {
		return err
	}
	if _, err := p.svc.Summarize(ctx, batchPath); err != nil {
		return err
	}
	return nil
}

// globalRollup walks the whole output tree after all archives are done,
// batches each directory's summary artifacts into combined documents named
// after the directory, summarizes those, and finally reduces the rollup
// summaries into the single end-of-run summary.
func (p *Pipeline) globalRollup(ctx context.Context, stats *Statistics) error {
	dirSummaries, err := collectOutputSummaries(p.cfg.OutputDir)
	if err != nil {
		return err
	}

	var rollupSummaries []string
	for _, ds := range dirSummaries {
		rel, err := filepath.Rel(p.cfg.OutputDir, ds.dir)
		if err != nil {
			return err
		}
		label := sanitizeDirLabel(rel)

		for i, group := range batcher.Split(ds.files, p.cfg.BatchSize) {
			if err := ctx.Err(); err != nil {
				return err
			}
			batchPath := filepath.Join(p.cfg.OutputDir,
				fmt.Sprintf("directory_summary-%s-batch_%03d.txt", label, i+1))
			if err := p.reduceBatch(ctx, batchPath, group, p.cfg.OutputDir); err != nil {
				if ctx.Err() != nil {
					return err
				}
				p.recordError(stats, "directory rollup %s: %v", batchPath, err)
				continue
			}
			stats.DirectorySummaries++
			rollupSummaries = append(rollupSummaries, batchPath+"_summary")
		}
	}

	if len(rollupSummaries) == 0 {
		return nil
	}

	// Final reduction: one document concatenating every directory-level
	// summary, itself summarized exactly once.
	if err := p.reduceBatch(ctx, p.cfg.FinalPath, rollupSummaries, p.cfg.OutputDir); err != nil {
		p.recordError(stats, "final summary: %v", err)
		return nil
	}
	stats.FinalSummaryPath = p.cfg.FinalPath + "_summary"
	return nil
}

// recordError keeps the indexer-style error list and surfaces the message.
func (p *Pipeline) recordError(stats *Statistics, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	stats.ErrorMessages = append(stats.ErrorMessages, msg)
	pterm.Warning.Printfln("%s", msg)
}

// skipDir filters version-control and infra metadata directories.
func skipDir(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	return name == "vendor" || name == "node_modules"
}

// skipFile filters artifacts that are themselves summaries or prior
// responses, and pipeline-generated batch documents.
func skipFile(name string) bool {
	if strings.HasSuffix(name, "_summary") || strings.HasSuffix(name, "_response.txt") {
		return true
	}
	matched, _ := filepath.Match("batch_*.txt", name)
	return matched
}

// collectSourceDirs lists every directory under root in lexical order,
// skipping metadata directories.
func collectSourceDirs(root string) ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		dirs = append(dirs, path)
		return nil
	})
	return dirs, err
}

// listFiles returns the names of regular files directly under dir, sorted.
func listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// dirSummaries pairs a directory with the summary artifacts found in it.
type dirSummaries struct {
	dir   string
	files []string
}

// collectOutputSummaries snapshots the output tree before the rollup stage
// mutates it. Artifacts produced by earlier rollup runs are excluded so a
// resumed run reduces the same inputs and creates no new batches.
func collectOutputSummaries(outputDir string) ([]dirSummaries, error) {
	byDir := make(map[string][]string)
	var order []string

	err := filepath.WalkDir(outputDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if !strings.HasSuffix(name, "_summary") {
			return nil
		}
		if strings.HasPrefix(name, "directory_summary-") {
			return nil
		}
		dir := filepath.Dir(path)
		if _, seen := byDir[dir]; !seen {
			order = append(order, dir)
		}
		byDir[dir] = append(byDir[dir], path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := make([]dirSummaries, 0, len(order))
	for _, dir := range order {
		files := byDir[dir]
		sort.Strings(files)
		result = append(result, dirSummaries{dir: dir, files: files})
	}
	return result, nil
}

// sanitizeDirLabel turns a directory's relative path into a filename-safe
// batch tag. The output root itself is labeled "root".
func sanitizeDirLabel(rel string) string {
	if rel == "." || rel == "" {
		return "root"
	}
	return strings.ReplaceAll(rel, string(os.PathSeparator), "-")
}
