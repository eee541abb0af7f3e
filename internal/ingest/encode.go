package ingest

import (
	"encoding/csv"
	"io"
	"strconv"

	"example.com/sitetracker/internal/domain"
)

var exportHeader = []string{"id", "categoria", "nombre", "proveedor", "responsable", "estado", "avance", "costo", "inicio", "fin"}

// Encode writes activities as a CSV sheet in the column order Decode reads.
// Statuses are written with their display label so a re-import classifies
// them back to the same value.
func Encode(w io.Writer, activities []domain.Activity) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, a := range activities {
		record := []string{
			a.ID,
			a.Category,
			a.Name,
			a.Provider,
			a.Responsible,
			a.Status.Label(),
			strconv.Itoa(a.Progress),
			strconv.FormatFloat(a.Cost, 'f', -1, 64),
			a.StartDate,
			a.EndDate,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
