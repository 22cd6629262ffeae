// Package exports renders registration lists as CSV, XLSX and PDF.
package exports

import (
	"time"

	"github.com/groeigesprek/backend/internal/models"
)

// Header is the column order shared by every tabular format.
var Header = []string{
	"Datum aanmelding",
	"Gesprekstype",
	"Sessie datum",
	"Sessie tijd",
	"E-mail",
	"Naam",
	"Afdeling",
	"Locatie",
	"Begeleider",
	"Status",
}

// registeredAtLayout matches the Dutch locale's date-time rendering.
const registeredAtLayout = "2-1-2006 15:04:05"

// Row is one exported registration.
type Row struct {
	RegisteredAt time.Time
	TypeName     string
	SessionDate  string
	SessionTime  string
	Email        string
	Name         string
	Department   string
	Location     string
	Facilitator  string
	Status       string
}

// Cells renders the row in Header order, with times in loc.
func (r Row) Cells(loc *time.Location) []string {
	if loc == nil {
		loc = time.Local
	}
	return []string{
		r.RegisteredAt.In(loc).Format(registeredAtLayout),
		r.TypeName,
		r.SessionDate,
		r.SessionTime,
		r.Email,
		r.Name,
		r.Department,
		r.Location,
		r.Facilitator,
		r.Status,
	}
}

// RowsFromRegistrations flattens registrations joined with their session.
// Registrations without a loaded session export empty session columns.
func RowsFromRegistrations(regs []models.Registration) []Row {
	rows := make([]Row, 0, len(regs))
	for _, reg := range regs {
		row := Row{
			RegisteredAt: reg.CreatedAt,
			Email:        reg.Email,
			Name:         reg.Name,
			Department:   reg.Department,
			Status:       string(reg.Status),
		}
		if s := reg.Session; s != nil {
			row.TypeName = s.TypeName("")
			row.SessionDate = s.Date
			row.SessionTime = s.StartTime
			row.Location = s.DisplayLocation()
			row.Facilitator = s.Facilitator
		}
		rows = append(rows, row)
	}
	return rows
}

// Filename returns aanmeldingen-groeigesprekken-YYYY-MM-DD.{ext}.
func Filename(at time.Time, ext string) string {
	return "aanmeldingen-groeigesprekken-" + at.Format(models.DateLayout) + "." + ext
}
