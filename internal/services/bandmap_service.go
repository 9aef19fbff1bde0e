package services

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/prepdesk/exam-service/internal/models"
	"github.com/prepdesk/exam-service/internal/repositories"
	"github.com/prepdesk/exam-service/internal/utils"
)

// Spreadsheet layout for band map import and export.
var bandMapColumns = []string{"Section Type", "Track", "Min Raw", "Max Raw", "Band"}

const bandMapSheet = "BandMap"

type bandMapService struct {
	repo   repositories.Repository
	logger utils.Logger
}

func NewBandMapService(repo repositories.Repository, logger utils.Logger) BandMapService {
	return &bandMapService{repo: repo, logger: logger}
}

func (s *bandMapService) List(ctx context.Context, category models.ExamCategory) ([]*models.BandMap, error) {
	if category == "" {
		return s.repo.BandMap().ListAll(ctx, nil)
	}
	return s.repo.BandMap().List(ctx, nil, category)
}

func (s *bandMapService) Lookup(ctx context.Context, category models.ExamCategory, sectionType models.SectionType, track *string, raw int) (float64, error) {
	entry, err := s.repo.BandMap().Lookup(ctx, nil, category, sectionType, track, raw)
	if err != nil {
		return 0, ErrBandMapNotFound
	}
	return entry.Band, nil
}

// Import replaces the whole band table for one category from a spreadsheet.
// The first sheet must carry a header row followed by one row per band range.
func (s *bandMapService) Import(ctx context.Context, category models.ExamCategory, file *excelize.File, userID string) (*BandMapImportResult, error) {
	if !category.IsValid() {
		return nil, NewBusinessRuleError("band_map_category", fmt.Sprintf("unknown exam category %q", category))
	}

	sheet := file.GetSheetName(0)
	if sheet == "" {
		return nil, NewBusinessRuleError("band_map_sheet", "workbook has no sheets")
	}
	rows, err := file.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(rows) < 2 {
		return nil, NewBusinessRuleError("band_map_rows", "sheet has no data rows below the header")
	}

	entries := make([]*models.BandMap, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rowNum := i + 2
		if isBlankRow(row) {
			continue
		}
		entry, err := parseBandMapRow(category, row, rowNum)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if len(entries) == 0 {
		return nil, NewBusinessRuleError("band_map_rows", "sheet has no usable rows")
	}

	if err := s.repo.BandMap().ReplaceCategory(ctx, nil, category, entries); err != nil {
		return nil, fmt.Errorf("failed to replace band maps: %w", err)
	}

	s.logger.InfoContext(ctx, "band maps imported",
		"category", category,
		"rows", len(entries),
		"imported_by", userID)

	return &BandMapImportResult{Category: category, Imported: len(entries)}, nil
}

// Export writes the category's band table into a fresh workbook, mirroring
// the import layout so a round trip is lossless.
func (s *bandMapService) Export(ctx context.Context, category models.ExamCategory) (*excelize.File, error) {
	entries, err := s.repo.BandMap().List(ctx, nil, category)
	if err != nil {
		return nil, fmt.Errorf("failed to load band maps: %w", err)
	}

	file := excelize.NewFile()
	if err := file.SetSheetName(file.GetSheetName(0), bandMapSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	for col, title := range bandMapColumns {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := file.SetCellValue(bandMapSheet, cell, title); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	for i, entry := range entries {
		track := ""
		if entry.Track != nil {
			track = *entry.Track
		}
		values := []interface{}{string(entry.SectionType), track, entry.MinRaw, entry.MaxRaw, entry.Band}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			if err := file.SetCellValue(bandMapSheet, cell, value); err != nil {
				return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
			}
		}
	}

	return file, nil
}

// ===== ROW PARSING =====

func parseBandMapRow(category models.ExamCategory, row []string, rowNum int) (*models.BandMap, error) {
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	sectionType := models.SectionType(strings.ToUpper(cell(0)))
	if !sectionType.IsValid() {
		return nil, NewBusinessRuleError("band_map_row", fmt.Sprintf("row %d: unknown section type %q", rowNum, cell(0)))
	}

	var track *string
	if t := cell(1); t != "" {
		track = &t
	}

	minRaw, err := strconv.Atoi(cell(2))
	if err != nil {
		return nil, NewBusinessRuleError("band_map_row", fmt.Sprintf("row %d: min raw %q is not a number", rowNum, cell(2)))
	}
	maxRaw, err := strconv.Atoi(cell(3))
	if err != nil {
		return nil, NewBusinessRuleError("band_map_row", fmt.Sprintf("row %d: max raw %q is not a number", rowNum, cell(3)))
	}
	if minRaw < 0 || maxRaw < minRaw {
		return nil, NewBusinessRuleError("band_map_row", fmt.Sprintf("row %d: invalid raw range [%d, %d]", rowNum, minRaw, maxRaw))
	}

	band, err := strconv.ParseFloat(cell(4), 64)
	if err != nil {
		return nil, NewBusinessRuleError("band_map_row", fmt.Sprintf("row %d: band %q is not a number", rowNum, cell(4)))
	}
	if band < 0 || band > 9 || math.Mod(band*2, 1) != 0 {
		return nil, NewBusinessRuleError("band_map_row", fmt.Sprintf("row %d: band %v is not a half step between 0 and 9", rowNum, band))
	}

	return &models.BandMap{
		Category:    category,
		SectionType: sectionType,
		Track:       track,
		MinRaw:      minRaw,
		MaxRaw:      maxRaw,
		Band:        band,
	}, nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
