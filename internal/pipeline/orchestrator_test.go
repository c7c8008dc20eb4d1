package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/phillip-england/prodsummary/internal/archive"
	"github.com/phillip-england/prodsummary/internal/enrich"
	"github.com/phillip-england/prodsummary/internal/report"
	"github.com/phillip-england/prodsummary/internal/table"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	finalCSV = "EMPLOYEE,TIME,UNITS,QUANTITY2,PRICE,SERIAL\n" +
		"E1,2024-01-15 10:00:00,1,2,3.5,a\n" +
		"E2,2024-01-15 10:02:00,1,1,10,b\n" +
		"E1,2024-01-15 10:06:00,2,1,1.25,c\n"
	employeeCSV = "EMP_ID,LAST_NAME,FIRST_NAME\n" +
		"E1,Smithe,Joe\n" +
		"E2,Ng,Ann\n"
	todayCSV = "DATE,A,B,C,D,E,STORE\n" +
		"01/15/2024,,,,,,0421\n"
)

func writeArchive(t *testing.T, path string, files map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func fullArchive() map[string]string {
	return map[string]string{
		"final.csv":    finalCSV,
		"employee.csv": employeeCSV,
		"today.csv":    todayCSV,
	}
}

type harness struct {
	root    string
	errLog  *FileErrorLog
	console *bytes.Buffer
	logs    *observer.ObservedLogs
	orch    *Orchestrator
}

func newHarness(t *testing.T, writer ReportWriter, fs FileSystem) *harness {
	t.Helper()
	root := t.TempDir()
	if writer == nil {
		w, err := report.NewWriter(report.Options{})
		require.NoError(t, err)
		writer = w
	}
	if fs == nil {
		fs = OSFileSystem{}
	}
	core, logs := observer.New(zap.DebugLevel)
	h := &harness{
		root:    root,
		errLog:  NewFileErrorLog(filepath.Join(root, "errorlog.txt")),
		console: &bytes.Buffer{},
		logs:    logs,
	}
	h.orch = New(Options{RootDir: root, RunID: "run-1"}, archive.NewStore(), table.NewReader(), writer, fs, h.errLog, zap.New(core), h.console)
	return h
}

func (h *harness) errorLogLines(t *testing.T) []string {
	t.Helper()
	data, err := os.ReadFile(h.errLog.Path())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestRunWritesReportAndDeletesArchive(t *testing.T) {
	h := newHarness(t, nil, nil)
	writeArchive(t, filepath.Join(h.root, "0421-20240115.zip"), fullArchive())

	summary, err := h.orch.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	res := summary.Results[0]
	assert.Equal(t, StateWritten, res.State)
	assert.NoError(t, res.Err)
	assert.Equal(t, 2, res.Summaries)
	assert.Equal(t, filepath.Join(h.root, "0421-20240115.xlsx"), res.Output)
	assert.Equal(t, "run-1", summary.RunID)
	assert.False(t, summary.HasProblems())

	assert.NoFileExists(t, filepath.Join(h.root, "0421-20240115.zip"))
	assert.NoDirExists(t, filepath.Join(h.root, ".work", "0421-20240115"))

	f, err := excelize.OpenFile(res.Output)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(report.DefaultSheetName, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"E1", "2", "4", "9.5", "E1", "Smithe", "Joe", "01/15/24", "0421", "c"}, rows[1][:10])
	assert.Equal(t, []string{"E2", "1", "1", "10", "E2", "Ng", "Ann", "01/15/24", "0421", "b"}, rows[2][:10])

	assert.Contains(t, h.console.String(), "Wrote ")
	assert.Equal(t, 1, h.logs.FilterMessage("Wrote summary").FilterField(zap.String("archive", "0421-20240115.zip")).Len())
}

func TestRunSkipsGatedArchive(t *testing.T) {
	h := newHarness(t, nil, nil)
	path := filepath.Join(h.root, "0002-RX-20240115.zip")
	writeArchive(t, path, fullArchive())

	summary, err := h.orch.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, StateSkipped, summary.Results[0].State)
	assert.NoFileExists(t, path)
	assert.NoFileExists(t, filepath.Join(h.root, "0002-RX-20240115.xlsx"))
	assert.Nil(t, h.errorLogLines(t))
}

func TestRunMissingTableLeavesArchive(t *testing.T) {
	h := newHarness(t, nil, nil)
	files := fullArchive()
	delete(files, "employee.csv")
	path := filepath.Join(h.root, "0421.zip")
	writeArchive(t, path, files)

	summary, err := h.orch.Run(context.Background())
	require.NoError(t, err)
	res := summary.Results[0]
	assert.Equal(t, StateFailed, res.State)
	assert.ErrorIs(t, res.Err, ErrMissingTable)
	var missing *MissingTableError
	require.ErrorAs(t, res.Err, &missing)
	assert.Equal(t, "employee", missing.Table)
	assert.FileExists(t, path)
	assert.NoFileExists(t, filepath.Join(h.root, "0421.xlsx"))
	assert.True(t, summary.HasProblems())
}

func TestRunBlankArchiveLogsAndKeepsArchive(t *testing.T) {
	h := newHarness(t, nil, nil)
	files := fullArchive()
	files["final.csv"] = "EMPLOYEE,TIME,UNITS,QUANTITY2,PRICE,SERIAL\n,,1,1,1,x\n"
	path := filepath.Join(h.root, "0421.zip")
	writeArchive(t, path, files)

	summary, err := h.orch.Run(context.Background())
	require.NoError(t, err)
	res := summary.Results[0]
	assert.Equal(t, StateBlank, res.State)
	assert.ErrorIs(t, res.Err, enrich.ErrEmptyResult)
	assert.FileExists(t, path)
	assert.NoFileExists(t, filepath.Join(h.root, "0421.xlsx"))
	assert.Equal(t, []string{"Zip File Is Blank: 0421.zip"}, h.errorLogLines(t))
	assert.Contains(t, h.console.String(), "Zip File Is Blank: 0421.zip")
}

func TestRunIsolatesNumericFailure(t *testing.T) {
	h := newHarness(t, nil, nil)
	bad := fullArchive()
	bad["final.csv"] = "EMPLOYEE,UNITS,QUANTITY2,PRICE\nE1,1,two,3\n"
	writeArchive(t, filepath.Join(h.root, "a-bad.zip"), bad)
	writeArchive(t, filepath.Join(h.root, "b-good.zip"), fullArchive())

	summary, err := h.orch.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Results, 2)

	assert.Equal(t, "a-bad.zip", summary.Results[0].Name)
	assert.Equal(t, StateFailed, summary.Results[0].State)
	var numErr *enrich.NumericConversionError
	require.ErrorAs(t, summary.Results[0].Err, &numErr)
	assert.Equal(t, "two", numErr.Value)
	assert.FileExists(t, filepath.Join(h.root, "a-bad.zip"))

	assert.Equal(t, StateWritten, summary.Results[1].State)
	assert.FileExists(t, filepath.Join(h.root, "b-good.xlsx"))
	assert.Equal(t, 1, summary.Count(StateFailed))
	assert.Equal(t, 1, summary.Count(StateWritten))
}

func TestRunIgnoresNonArchives(t *testing.T) {
	h := newHarness(t, nil, nil)
	require.NoError(t, os.WriteFile(filepath.Join(h.root, "notes.txt"), []byte("x"), 0o644))

	summary, err := h.orch.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, summary.Results)
	assert.FileExists(t, filepath.Join(h.root, "notes.txt"))
}

func TestRunIsRepeatable(t *testing.T) {
	h := newHarness(t, nil, nil)
	writeArchive(t, filepath.Join(h.root, "0421.zip"), fullArchive())
	first, err := h.orch.Run(context.Background())
	require.NoError(t, err)
	firstRows := readRows(t, first.Results[0].Output)

	writeArchive(t, filepath.Join(h.root, "0421.zip"), fullArchive())
	second, err := h.orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, firstRows, readRows(t, second.Results[0].Output))
}

func TestRunClearsStaleWorkFiles(t *testing.T) {
	h := newHarness(t, nil, nil)
	stale := filepath.Join(h.root, ".work", "0421")
	require.NoError(t, os.MkdirAll(stale, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(stale, "employee.csv"), []byte(employeeCSV), 0o644))

	files := fullArchive()
	delete(files, "employee.csv")
	writeArchive(t, filepath.Join(h.root, "0421.zip"), files)

	summary, err := h.orch.Run(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, summary.Results[0].Err, ErrMissingTable)
}

func TestRunStopsWhenCancelled(t *testing.T) {
	h := newHarness(t, nil, nil)
	writeArchive(t, filepath.Join(h.root, "0421.zip"), fullArchive())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := h.orch.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, summary.Results)
	assert.FileExists(t, filepath.Join(h.root, "0421.zip"))
}

type failingWriter struct{}

func (failingWriter) Write(string, []enrich.EmployeeSummary) error {
	return errors.New("disk full")
}

func TestRunWriteFailureKeepsArchive(t *testing.T) {
	h := newHarness(t, failingWriter{}, nil)
	path := filepath.Join(h.root, "0421.zip")
	writeArchive(t, path, fullArchive())

	summary, err := h.orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateFailed, summary.Results[0].State)
	assert.ErrorContains(t, summary.Results[0].Err, "disk full")
	assert.FileExists(t, path)
}

// stickyFS refuses to delete archives.
type stickyFS struct {
	OSFileSystem
}

func (stickyFS) Remove(string) error {
	return os.ErrPermission
}

func TestRunArchiveDeleteFailureStillWritten(t *testing.T) {
	h := newHarness(t, nil, stickyFS{})
	path := filepath.Join(h.root, "0421.zip")
	writeArchive(t, path, fullArchive())

	summary, err := h.orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateWritten, summary.Results[0].State)
	assert.FileExists(t, path)
	assert.Equal(t, 1, h.logs.FilterMessage("Failed to delete processed archive").Len())
}

func TestInspectDoesNotTouchArchive(t *testing.T) {
	h := newHarness(t, nil, nil)
	path := filepath.Join(h.root, "0421.zip")
	writeArchive(t, path, fullArchive())

	in, err := h.orch.Inspect("0421.zip")
	require.NoError(t, err)
	assert.Equal(t, enrich.DecisionProcess, in.Decision)
	assert.Equal(t, "0421", in.Metadata.StoreNumber)
	require.Len(t, in.Summaries, 2)
	assert.Equal(t, "E1", in.Summaries[0].EmployeeID)
	assert.FileExists(t, path)
	assert.NoFileExists(t, filepath.Join(h.root, "0421.xlsx"))

	in, err = h.orch.Inspect("5001-rx.zip")
	require.NoError(t, err)
	assert.Equal(t, enrich.DecisionSkip, in.Decision)
	assert.Nil(t, in.Summaries)
}

func TestRunSummaryString(t *testing.T) {
	s := RunSummary{Results: []ArchiveResult{
		{State: StateWritten}, {State: StateWritten}, {State: StateSkipped}, {State: StateFailed},
	}}
	assert.Equal(t, "4 archives: 2 written, 1 skipped, 0 blank, 1 failed", s.String())
	assert.True(t, s.HasProblems())
	assert.True(t, StateBlank.Terminal())
	assert.False(t, StateExtracted.Terminal())
	assert.Equal(t, "state(42)", State(42).String())
}

func TestFileErrorLogAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "errorlog.txt")
	l := NewFileErrorLog(path)
	require.NoError(t, l.Append(BlankLogLine("a.zip")))
	require.NoError(t, l.Append(BlankLogLine("b.zip")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Zip File Is Blank: a.zip\nZip File Is Blank: b.zip\n", string(data))
}

func TestRunAcceptsFormattedXLSXAndBOMCSV(t *testing.T) {
	h := newHarness(t, nil, nil)

	final := excelize.NewFile()
	sheet := final.GetSheetName(0)
	require.NoError(t, final.SetSheetRow(sheet, "A1", &[]any{"EMPLOYEE", "UNITS", "QUANTITY2", "PRICE", "SERIAL"}))
	require.NoError(t, final.SetSheetRow(sheet, "A2", &[]any{"E1", 1, 1, 1234.5, "s1"}))
	money := "#,##0.00"
	style, err := final.NewStyle(&excelize.Style{CustomNumFmt: &money})
	require.NoError(t, err)
	require.NoError(t, final.SetCellStyle(sheet, "D2", "D2", style))
	buf, err := final.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, final.Close())

	files := map[string]string{
		"final.xlsx":   buf.String(),
		"employee.csv": "\uFEFF" + employeeCSV,
		"today.csv":    "\uFEFF" + todayCSV,
	}
	writeArchive(t, filepath.Join(h.root, "0421.zip"), files)

	summary, err := h.orch.Run(context.Background())
	require.NoError(t, err)
	res := summary.Results[0]
	require.Equal(t, StateWritten, res.State, "err: %v", res.Err)

	rows := readRows(t, res.Output)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"E1", "1", "1", "1234.5", "E1", "Smithe", "Joe", "01/15/24", "0421", "s1"}, rows[1][:10])
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(report.DefaultSheetName, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	return rows
}
