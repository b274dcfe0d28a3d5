// Package export renders club schedules as XLSX workbooks.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"sportclub/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const (
	sheetName = "Schedule"
	dateKey   = "2006-01-02"

	// MaxDays bounds the width of one export.
	MaxDays = 62
)

var ErrInvalidRange = errors.New("export range must cover 1 to 62 days")

// Source is the read side the exporter needs.
type Source interface {
	GetClub(ctx context.Context, id int64) (*models.Club, error)
	ListFacilities(ctx context.Context, clubID int64) ([]*models.Facility, error)
	GetDailyBookings(ctx context.Context, clubID int64, from, to time.Time, loc *time.Location) (map[string][]*models.Booking, error)
}

// ScheduleExporter builds a facility by day grid. Each cell lists the active bookings
// of that facility on that day and is coloured by the peak overlap against the limit.
type ScheduleExporter struct {
	source Source
	dir    string
	logger *zerolog.Logger
}

func NewScheduleExporter(source Source, dir string, logger *zerolog.Logger) *ScheduleExporter {
	return &ScheduleExporter{source: source, dir: dir, logger: logger}
}

type styles struct {
	title, dateHeader, facility, free, partial, full int
}

// Build renders the days from..to inclusive, as calendar dates in the club timezone.
func (e *ScheduleExporter) Build(ctx context.Context, clubID int64, from, to time.Time) (*excelize.File, error) {
	club, err := e.source.GetClub(ctx, clubID)
	if err != nil {
		return nil, err
	}
	loc := club.Location()

	start := dayStart(from, loc)
	end := dayStart(to, loc)
	days := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days++
	}
	if days < 1 || days > MaxDays {
		return nil, ErrInvalidRange
	}

	facilities, err := e.source.ListFacilities(ctx, clubID)
	if err != nil {
		return nil, fmt.Errorf("error getting facilities: %w", err)
	}
	daily, err := e.source.GetDailyBookings(ctx, clubID, start, end.AddDate(0, 0, 1), loc)
	if err != nil {
		return nil, fmt.Errorf("error getting bookings: %w", err)
	}

	f := excelize.NewFile()
	if _, err := f.NewSheet(sheetName); err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	_ = f.DeleteSheet("Sheet1")
	if index, err := f.GetSheetIndex(sheetName); err == nil {
		f.SetActiveSheet(index)
	}

	st, err := newStyles(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("%s: %s – %s (%s)",
		club.Name, start.Format("02.01.2006"), end.Format("02.01.2006"), loc.String()))
	lastCol, _ := excelize.ColumnNumberToName(days + 1)
	_ = f.MergeCell(sheetName, "A1", lastCol+"1")
	_ = f.SetCellStyle(sheetName, "A1", "A1", st.title)

	for i := 0; i < days; i++ {
		cell, _ := excelize.CoordinatesToCellName(i+2, 2)
		_ = f.SetCellValue(sheetName, cell, start.AddDate(0, 0, i).Format("Mon 02.01"))
		_ = f.SetCellStyle(sheetName, cell, cell, st.dateHeader)
	}

	for r, facility := range facilities {
		row := r + 3
		cell, _ := excelize.CoordinatesToCellName(1, row)
		_ = f.SetCellValue(sheetName, cell, fmt.Sprintf("%s (max %d)", facility.Name, facility.MaxConcurrentBookings))
		_ = f.SetCellStyle(sheetName, cell, cell, st.facility)

		for i := 0; i < days; i++ {
			day := start.AddDate(0, 0, i)
			bookings := activeFor(daily[day.Format(dateKey)], facility.ID)

			cell, _ := excelize.CoordinatesToCellName(i+2, row)
			_ = f.SetCellValue(sheetName, cell, cellText(bookings, loc))

			peak := PeakOverlap(bookings)
			style := st.free
			switch {
			case peak >= facility.MaxConcurrentBookings:
				style = st.full
			case peak > 0:
				style = st.partial
			}
			_ = f.SetCellStyle(sheetName, cell, cell, style)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 28)
	_ = f.SetColWidth(sheetName, "B", lastCol, 24)
	return f, nil
}

// Write streams the workbook to w.
func (e *ScheduleExporter) Write(ctx context.Context, w io.Writer, clubID int64, from, to time.Time) error {
	f, err := e.Build(ctx, clubID, from, to)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// Save writes the workbook into the export directory and returns its path.
func (e *ScheduleExporter) Save(ctx context.Context, clubID int64, from, to time.Time) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f, err := e.Build(ctx, clubID, from, to)
	if err != nil {
		return "", err
	}
	defer f.Close()

	path := filepath.Join(e.dir, FileName(clubID, from, to))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	e.logger.Info().Str("file_path", path).Int64("club_id", clubID).Msg("Excel file created")
	return path, nil
}

// FileName is the suggested download name for an export.
func FileName(clubID int64, from, to time.Time) string {
	return fmt.Sprintf("schedule_%d_%s_to_%s.xlsx", clubID, from.Format(dateKey), to.Format(dateKey))
}

// PeakOverlap returns the largest number of bookings that share an instant.
func PeakOverlap(bookings []*models.Booking) int {
	type edge struct {
		at    time.Time
		delta int
	}
	edges := make([]edge, 0, 2*len(bookings))
	for _, b := range bookings {
		edges = append(edges, edge{b.StartTime, 1}, edge{b.EndTime, -1})
	}
	// ends sort before starts at the same instant, so touching ranges do not stack
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].at.Equal(edges[j].at) {
			return edges[i].delta < edges[j].delta
		}
		return edges[i].at.Before(edges[j].at)
	})

	peak, cur := 0, 0
	for _, e := range edges {
		cur += e.delta
		if cur > peak {
			peak = cur
		}
	}
	return peak
}

func activeFor(bookings []*models.Booking, facilityID int64) []*models.Booking {
	var out []*models.Booking
	for _, b := range bookings {
		if b.FacilityID != nil && *b.FacilityID == facilityID && b.Active() {
			out = append(out, b)
		}
	}
	return out
}

func cellText(bookings []*models.Booking, loc *time.Location) string {
	if len(bookings) == 0 {
		return "free"
	}
	lines := make([]string, 0, len(bookings))
	for _, b := range bookings {
		line := fmt.Sprintf("%s–%s %s", b.StartTime.In(loc).Format("15:04"), b.EndTime.In(loc).Format("15:04"), b.Title)
		if b.Status == models.StatusPending {
			line += " (pending)"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func dayStart(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func newStyles(f *excelize.File) (styles, error) {
	var (
		st  styles
		err error
	)
	fill := func(color string) excelize.Fill {
		return excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1}
	}
	wrap := &excelize.Alignment{WrapText: true, Vertical: "top"}

	defs := []struct {
		dst   *int
		style *excelize.Style
	}{
		{&st.title, &excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}, Alignment: &excelize.Alignment{Horizontal: "center"}}},
		{&st.dateHeader, &excelize.Style{Fill: fill("#DDEBF7"), Font: &excelize.Font{Bold: true}, Alignment: &excelize.Alignment{Horizontal: "center"}}},
		{&st.facility, &excelize.Style{Fill: fill("#E2EFDA"), Font: &excelize.Font{Bold: true}}},
		{&st.free, &excelize.Style{Fill: fill("#C6EFCE"), Alignment: wrap}},
		{&st.partial, &excelize.Style{Fill: fill("#FFEB9C"), Alignment: wrap}},
		{&st.full, &excelize.Style{Fill: fill("#FFC7CE"), Alignment: wrap}},
	}
	for _, d := range defs {
		if *d.dst, err = f.NewStyle(d.style); err != nil {
			return st, fmt.Errorf("error creating style: %w", err)
		}
	}
	return st, nil
}
