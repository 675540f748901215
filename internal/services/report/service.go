// -----------------------------------------------------------------------
// Report Service - render a ranked candidate list as a PDF
// -----------------------------------------------------------------------

package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/seligo/internal/models"
)

// Service renders ranking reports.
type Service struct {
	reportDir string
	logger    arbor.ILogger
}

func NewService(reportDir string, logger arbor.ILogger) *Service {
	if reportDir != "" {
		os.MkdirAll(reportDir, 0755)
	}
	return &Service{reportDir: reportDir, logger: logger}
}

// GenerateRankingReport renders the final candidate ordering for a job as a
// PDF. Results must be sorted by rank; unranked (filtered or skipped)
// candidates are listed in a separate section.
func (s *Service) GenerateRankingReport(job *models.Job, results []*models.ScoreResult, resumes map[string]*models.Resume) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 10)
	pdf.AddPage()

	title := job.Title
	if title == "" && job.Analysis != nil {
		title = job.Analysis.RoleTitle
	}

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, fmt.Sprintf("Candidate Ranking: %s", title), "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 5, fmt.Sprintf("Job %s, generated %s", job.ID, time.Now().Format("2006-01-02 15:04")), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	ranked := make([]*models.ScoreResult, 0, len(results))
	excluded := make([]*models.ScoreResult, 0)
	for _, r := range results {
		if r.Rank > 0 {
			ranked = append(ranked, r)
		} else {
			excluded = append(excluded, r)
		}
	}

	s.renderRankedTable(pdf, ranked, resumes)

	if len(excluded) > 0 {
		pdf.Ln(6)
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(0, 6, "Not ranked", "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 8)
		for _, r := range excluded {
			reason := "skipped: insufficient evidence"
			if !r.Compliance.Passed {
				reason = "filtered: " + r.Compliance.Reason
			}
			line := fmt.Sprintf("%s  -  %s", candidateName(r, resumes), reason)
			pdf.MultiCell(0, 4.5, line, "", "L", false)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF output: %w", err)
	}

	s.logger.Debug().
		Str("job_id", job.ID).
		Int("ranked", len(ranked)).
		Int("excluded", len(excluded)).
		Int("pdf_size", buf.Len()).
		Msg("Ranking report generated")

	return buf.Bytes(), nil
}

// WriteRankingReport generates the report and writes it under the report
// directory, returning the file path.
func (s *Service) WriteRankingReport(job *models.Job, results []*models.ScoreResult, resumes map[string]*models.Resume) (string, error) {
	data, err := s.GenerateRankingReport(job, results, resumes)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.reportDir, fmt.Sprintf("ranking_%s.pdf", job.ID))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

func (s *Service) renderRankedTable(pdf *fpdf.Fpdf, ranked []*models.ScoreResult, resumes map[string]*models.Resume) {
	headers := []string{"Rank", "Candidate", "Adjusted", "Final", "Keyword", "Semantic", "Project", "Compliance"}
	widths := []float64{12, 56, 18, 18, 18, 18, 18, 32}

	pdf.SetFont("Arial", "B", 8)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 6, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	pdf.SetFillColor(255, 255, 255)
	for _, r := range ranked {
		final := ""
		if r.FinalScore != nil {
			final = fmt.Sprintf("%.3f", *r.FinalScore)
		}

		cells := []string{
			fmt.Sprintf("%d", r.Rank),
			candidateName(r, resumes),
			fmt.Sprintf("%.3f", r.AdjustedScore),
			final,
			fmt.Sprintf("%.3f", r.KeywordScore),
			fmt.Sprintf("%.3f", r.SemanticScore),
			fmt.Sprintf("%.3f", r.ProjectScore),
			fmt.Sprintf("%.0f%% met", r.Compliance.Score*100),
		}
		for i, c := range cells {
			pdf.CellFormat(widths[i], 5.5, truncateCell(pdf, c, widths[i]-2), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
}

func candidateName(result *models.ScoreResult, resumes map[string]*models.Resume) string {
	if resume, ok := resumes[result.ResumeID]; ok {
		if resume.Parsed != nil && resume.Parsed.Name != "" {
			return resume.Parsed.Name
		}
		if resume.Filename != "" {
			return resume.Filename
		}
	}
	return result.ResumeID
}

func truncateCell(pdf *fpdf.Fpdf, text string, width float64) string {
	if pdf.GetStringWidth(text) <= width {
		return text
	}
	for pdf.GetStringWidth(text+"...") > width && len(text) > 3 {
		text = strings.TrimSpace(text[:len(text)-1])
	}
	return text + "..."
}
