// Package pipeline runs the nightly batch: every archive in the input directory
// is gated, extracted, enriched and written, one at a time.
//
// Failures are contained per archive. A missing extract, a bad number or a
// report that cannot be saved marks that archive failed and leaves it on disk;
// the run moves on to the next archive.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/phillip-england/prodsummary/internal/archive"
	"github.com/phillip-england/prodsummary/internal/enrich"
	"github.com/phillip-england/prodsummary/internal/table"
)

const (
	tableFinal    = "final"
	tableEmployee = "employee"
	tableToday    = "today"
)

var requiredTables = []string{tableFinal, tableEmployee, tableToday}

type ArchiveStore interface {
	Extract(archivePath, entryName, destDir string) (string, error)
}

type TableReader interface {
	Read(path string) (*table.Table, error)
}

type ReportWriter interface {
	Write(outputPath string, summaries []enrich.EmployeeSummary) error
}

type Options struct {
	RootDir   string
	OutputDir string
	WorkDir   string
	RunID     string
}

type Orchestrator struct {
	opts    Options
	store   ArchiveStore
	reader  TableReader
	writer  ReportWriter
	fs      FileSystem
	errLog  ErrorLog
	logger  *zap.Logger
	console io.Writer
}

func New(opts Options, store ArchiveStore, reader TableReader, writer ReportWriter, fs FileSystem, errLog ErrorLog, logger *zap.Logger, console io.Writer) *Orchestrator {
	if opts.OutputDir == "" {
		opts.OutputDir = opts.RootDir
	}
	if opts.WorkDir == "" {
		opts.WorkDir = filepath.Join(opts.RootDir, ".work")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if console == nil {
		console = io.Discard
	}
	return &Orchestrator{
		opts:    opts,
		store:   store,
		reader:  reader,
		writer:  writer,
		fs:      fs,
		errLog:  errLog,
		logger:  logger,
		console: console,
	}
}

// Run processes every archive in the root directory in name order. The error
// is non-nil only when the directory cannot be listed or ctx is cancelled;
// per-archive outcomes are in the summary.
func (o *Orchestrator) Run(ctx context.Context) (RunSummary, error) {
	summary := RunSummary{RunID: o.opts.RunID}

	names, err := o.fs.ListFiles(o.opts.RootDir)
	if err != nil {
		return summary, fmt.Errorf("list archives: %w", err)
	}
	var archives []string
	for _, name := range names {
		if archive.IsArchive(name) {
			archives = append(archives, name)
		}
	}
	o.logger.Info("Starting run", zap.String("root", o.opts.RootDir), zap.Int("archives", len(archives)))

	for i, name := range archives {
		if err := ctx.Err(); err != nil {
			o.logger.Warn("Run cancelled", zap.Int("remaining", len(archives)-i))
			return summary, err
		}
		summary.Results = append(summary.Results, o.ProcessArchive(name))
	}

	o.logger.Info("Run complete",
		zap.Int("written", summary.Count(StateWritten)),
		zap.Int("skipped", summary.Count(StateSkipped)),
		zap.Int("blank", summary.Count(StateBlank)),
		zap.Int("failed", summary.Count(StateFailed)))
	return summary, nil
}

// ProcessArchive takes one archive from Pending to a terminal state.
func (o *Orchestrator) ProcessArchive(name string) ArchiveResult {
	res := ArchiveResult{Name: name, State: StatePending}
	log := o.logger.With(zap.String("archive", name))
	archivePath := filepath.Join(o.opts.RootDir, name)

	if enrich.Gate(name) == enrich.DecisionSkip {
		res.State = StateSkipped
		if err := o.fs.Remove(archivePath); err != nil {
			log.Warn("Failed to delete skipped archive", zap.Error(err))
			fmt.Fprintf(o.console, "Skipped %s (could not delete: %v)\n", name, err)
			return res
		}
		log.Info("Skipped and deleted archive")
		fmt.Fprintf(o.console, "Skipped and deleted %s\n", name)
		return res
	}
	res.State = StateGated

	_, summaries, err := o.enrichArchive(name, &res, log)
	if err != nil {
		return o.fail(res, err, log)
	}

	if len(summaries) == 0 {
		res.State = StateBlank
		res.Err = blankError(name)
		if err := o.errLog.Append(BlankLogLine(name)); err != nil {
			log.Error("Failed to append error log", zap.Error(err))
		}
		log.Warn("Archive has no employee rows; kept for inspection")
		fmt.Fprintln(o.console, BlankLogLine(name))
		return res
	}

	output := filepath.Join(o.opts.OutputDir, archive.Stem(name)+".xlsx")
	if err := o.writer.Write(output, summaries); err != nil {
		return o.fail(res, fmt.Errorf("write report: %w", err), log)
	}
	res.State = StateWritten
	res.Output = output
	log.Info("Wrote summary", zap.String("output", output), zap.Int("employees", len(summaries)))
	fmt.Fprintf(o.console, "Wrote %s (%d employees)\n", output, len(summaries))

	if err := o.fs.Remove(archivePath); err != nil {
		log.Warn("Failed to delete processed archive", zap.Error(err))
		fmt.Fprintf(o.console, "Could not delete %s: %v\n", name, err)
	}
	return res
}

// Inspection is what an archive would produce, without the side effects.
type Inspection struct {
	Decision  enrich.Decision
	Metadata  enrich.ArchiveMetadata
	Summaries []enrich.EmployeeSummary
}

// Inspect extracts and enriches an archive without writing or deleting anything.
func (o *Orchestrator) Inspect(name string) (Inspection, error) {
	in := Inspection{Decision: enrich.Gate(name)}
	if in.Decision == enrich.DecisionSkip {
		return in, nil
	}
	res := ArchiveResult{Name: name, State: StateGated}
	meta, summaries, err := o.enrichArchive(name, &res, o.logger.With(zap.String("archive", name)))
	if err != nil {
		return in, err
	}
	in.Metadata = meta
	in.Summaries = summaries
	return in, nil
}

func (o *Orchestrator) enrichArchive(name string, res *ArchiveResult, log *zap.Logger) (enrich.ArchiveMetadata, []enrich.EmployeeSummary, error) {
	var meta enrich.ArchiveMetadata
	archivePath := filepath.Join(o.opts.RootDir, name)
	workDir := filepath.Join(o.opts.WorkDir, archive.Stem(name))

	// Archives sharing a stem reuse the directory; never read a previous run's files.
	if err := o.fs.RemoveAll(workDir); err != nil {
		return meta, nil, fmt.Errorf("clear work directory: %w", err)
	}
	if err := o.fs.MkdirAll(workDir); err != nil {
		return meta, nil, fmt.Errorf("create work directory: %w", err)
	}
	defer func() {
		if err := o.fs.RemoveAll(workDir); err != nil {
			log.Warn("Failed to clear work directory", zap.String("dir", workDir), zap.Error(err))
		}
	}()

	tables := make(map[string]*table.Table, len(requiredTables))
	for _, tableName := range requiredTables {
		path, err := o.store.Extract(archivePath, tableName, workDir)
		if errors.Is(err, archive.ErrEntryNotFound) {
			return meta, nil, &MissingTableError{Archive: name, Table: tableName}
		}
		if err != nil {
			return meta, nil, fmt.Errorf("extract %s: %w", tableName, err)
		}
		t, err := o.reader.Read(path)
		if err != nil {
			return meta, nil, fmt.Errorf("read %s: %w", tableName, err)
		}
		tables[tableName] = t
	}
	res.State = StateExtracted
	log.Debug("Extracted tables",
		zap.Int("final_rows", tables[tableFinal].Len()),
		zap.Int("employee_rows", tables[tableEmployee].Len()),
		zap.Int("today_rows", tables[tableToday].Len()))

	meta = enrich.ResolveMetadata(tables[tableToday], name)
	if !meta.HasInvoiceDate() {
		log.Debug("Invoice date unparseable; using sentinel", zap.String("raw", tables[tableToday].At(0, 0)))
	}

	employees, err := enrich.EmployeeRecordsFromTable(tables[tableEmployee])
	if err != nil {
		return meta, nil, err
	}
	records, err := enrich.RawRecordsFromTable(tables[tableFinal])
	if err != nil {
		return meta, nil, err
	}
	summaries, err := enrich.Aggregate(records, enrich.BuildEmployeeIndex(employees), meta)
	if err != nil {
		return meta, nil, err
	}
	res.State = StateEnriched
	res.Summaries = len(summaries)
	log.Debug("Enriched archive",
		zap.String("store", meta.StoreNumber),
		zap.String("invoice_date", enrich.FormatDate(meta.InvoiceDate)),
		zap.Int("employees", len(summaries)))
	return meta, summaries, nil
}

func (o *Orchestrator) fail(res ArchiveResult, err error, log *zap.Logger) ArchiveResult {
	log.Error("Archive failed; left in place", zap.String("state", res.State.String()), zap.Error(err))
	res.State = StateFailed
	res.Err = err
	fmt.Fprintf(o.console, "Failed %s: %v\n", res.Name, err)
	return res
}
