package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/tutoring-ledger-api/internal/dto"
	"github.com/noah-isme/tutoring-ledger-api/internal/models"
	appErrors "github.com/noah-isme/tutoring-ledger-api/pkg/errors"
	"github.com/noah-isme/tutoring-ledger-api/pkg/export"
)

// Supported payroll export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

var payrollHeaders = []string{"Teacher", "Class", "Period", "Lessons", "Rate", "Calculated", "Paid", "Remaining", "Status", "Paid On"}

type payrollSource interface {
	List(ctx context.Context, filter models.WageFilter) ([]models.WageRecordDetail, int, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, opts export.PDFOptions) ([]byte, error)
}

// ReportArchive retains rendered payroll reports.
type ReportArchive interface {
	Save(filename string, data []byte) (string, error)
}

// PayrollExportConfig tunes payroll report rendering.
type PayrollExportConfig struct {
	PDFTitle string
	Currency string
}

// PayrollExportService renders filtered wage records as CSV or PDF reports.
type PayrollExportService struct {
	source  payrollSource
	csv     csvRenderer
	pdf     pdfRenderer
	archive ReportArchive
	cfg     PayrollExportConfig
	logger  *zap.Logger
	now     func() time.Time
}

// NewPayrollExportService constructs a PayrollExportService. archive may be
// nil, in which case rendered reports are not retained.
func NewPayrollExportService(source payrollSource, cfg PayrollExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer, archive ReportArchive) *PayrollExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PDFTitle == "" {
		cfg.PDFTitle = "Teacher Payroll"
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &PayrollExportService{
		source:  source,
		csv:     csv,
		pdf:     pdf,
		archive: archive,
		cfg:     cfg,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Export renders every record matching filter in the requested format.
func (s *PayrollExportService) Export(ctx context.Context, filter models.WageFilter, format string) (*dto.WageExport, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	filter.Page, filter.PageSize = 0, 0
	records, _, err := s.source.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to load wage records")
	}
	dataset := BuildPayrollDataset(records)

	out := &dto.WageExport{Filename: s.filename(filter, format)}
	switch format {
	case ExportFormatPDF:
		out.ContentType = "application/pdf"
		out.Body, err = s.pdf.Render(dataset, export.PDFOptions{
			Title:     s.cfg.PDFTitle,
			Subtitle:  s.subtitle(filter, len(records)),
			Landscape: true,
		})
	default:
		out.ContentType = "text/csv"
		out.Body, err = s.csv.Render(dataset)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to render payroll export")
	}

	if s.archive != nil {
		if path, err := s.archive.Save(out.Filename, out.Body); err != nil {
			s.logger.Warn("payroll archive failed", zap.String("filename", out.Filename), zap.Error(err))
		} else {
			s.logger.Debug("payroll archived", zap.String("path", path))
		}
	}

	s.logger.Info("payroll exported",
		zap.String("format", format),
		zap.Int("records", len(records)),
		zap.String("filename", out.Filename),
	)
	return out, nil
}

// BuildPayrollDataset lays wage records out as report rows followed by a
// totals footer.
func BuildPayrollDataset(records []models.WageRecordDetail) export.Dataset {
	rows := make([]map[string]string, 0, len(records))
	for _, r := range records {
		paidOn := ""
		if r.PaymentDate != nil {
			paidOn = r.PaymentDate.UTC().Format(isoDate)
		}
		rows = append(rows, map[string]string{
			"Teacher":    nameOr(r.TeacherName, r.TeacherID),
			"Class":      nameOr(r.ClassName, r.ClassID),
			"Period":     fmt.Sprintf("%d-%02d", r.Year, r.Month),
			"Lessons":    strconv.Itoa(r.LessonTaught),
			"Rate":       r.WagePerLesson.StringFixed(2),
			"Calculated": r.CalculatedAmount.StringFixed(2),
			"Paid":       r.Amount.StringFixed(2),
			"Remaining":  r.RemainingAmount.StringFixed(2),
			"Status":     string(r.PaymentStatus),
			"Paid On":    paidOn,
		})
	}

	totals := SummarizeWages(records).Totals
	return export.Dataset{
		Headers: payrollHeaders,
		Rows:    rows,
		Footer: map[string]string{
			"Teacher":    "Total",
			"Lessons":    strconv.Itoa(totals.LessonTaught),
			"Calculated": totals.Calculated.StringFixed(2),
			"Paid":       totals.Paid.StringFixed(2),
			"Remaining":  totals.Outstanding.StringFixed(2),
		},
	}
}

func (s *PayrollExportService) filename(filter models.WageFilter, format string) string {
	period := "all"
	if filter.Year > 0 && filter.Month > 0 {
		period = fmt.Sprintf("%d-%02d", filter.Year, filter.Month)
	} else if filter.Year > 0 {
		period = strconv.Itoa(filter.Year)
	}
	return fmt.Sprintf("payroll_%s_%s.%s", period, s.now().Format("20060102_150405"), format)
}

func (s *PayrollExportService) subtitle(filter models.WageFilter, count int) string {
	parts := []string{fmt.Sprintf("%d records", count)}
	if filter.Year > 0 && filter.Month > 0 {
		parts = append([]string{time.Month(filter.Month).String() + " " + strconv.Itoa(filter.Year)}, parts...)
	}
	if s.cfg.Currency != "" {
		parts = append(parts, "amounts in "+s.cfg.Currency)
	}
	return strings.Join(parts, " | ")
}

func nameOr(name *string, fallback string) string {
	if name != nil && *name != "" {
		return *name
	}
	return fallback
}
