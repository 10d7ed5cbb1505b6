// Package report renders reservation listings as Excel workbooks.
package report

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"pitstop/internal/model"
)

// ReservationLister provides the rows for a report.
type ReservationLister interface {
	ListReservationsRange(ctx context.Context, garageID int64, from, to string) ([]model.Reservation, error)
}

// Exporter writes reservation reports.
type Exporter struct {
	reservations ReservationLister
}

// NewExporter creates a report exporter.
func NewExporter(reservations ReservationLister) *Exporter {
	return &Exporter{reservations: reservations}
}

var reportColumns = []string{
	"Reference", "Date", "Slot", "Status", "Requester ID", "Vehicle ID", "Notes", "Created At",
}

// WriteReservations renders all reservations of a garage in [from, to] as a
// single-sheet workbook.
func (e *Exporter) WriteReservations(ctx context.Context, w io.Writer, garageID int64, from, to string) error {
	rows, err := e.reservations.ListReservationsRange(ctx, garageID, from, to)
	if err != nil {
		return fmt.Errorf("list reservations: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Reservations"
	f.SetSheetName("Sheet1", sheet)

	for i, col := range reportColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return err
		}
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		start, _ := excelize.CoordinatesToCellName(1, 1)
		end, _ := excelize.CoordinatesToCellName(len(reportColumns), 1)
		_ = f.SetCellStyle(sheet, start, end, style)
	}

	for i := range rows {
		r := &rows[i]
		values := []any{
			r.Reference, r.Date, r.Slot, string(r.Status),
			r.RequesterID, r.VehicleID, r.Notes,
			r.CreatedAt.Format(time.RFC3339),
		}
		for j, val := range values {
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, val); err != nil {
				return err
			}
		}
	}

	return f.Write(w)
}
