package store

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/safecity/crimewatch-cli/internal/model"
)

// csvTimeLayouts are the accepted occurred_at formats, tried in order.
var csvTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// DecodeIncidentsCSV parses an incident feed CSV with the header
// case_id,category,latitude,longitude,occurred_at,arrest,domestic.
// Rows with out-of-range coordinates or unparseable fields are skipped and
// counted rather than failing the batch; incidents without a case ID are
// minted one.
func DecodeIncidentsCSV(r io.Reader) (incidents []model.Incident, skipped int, err error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, 0, eris.Wrap(err, "store: read csv header")
	}
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"category", "latitude", "longitude", "occurred_at"} {
		if _, ok := idx[required]; !ok {
			return nil, 0, eris.Errorf("store: csv missing column %q", required)
		}
	}

	field := func(row []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			skipped++
			zap.L().Debug("csv: skipping malformed row", zap.Int("line", line), zap.Error(err))
			continue
		}

		lat, latErr := strconv.ParseFloat(field(row, "latitude"), 64)
		lng, lngErr := strconv.ParseFloat(field(row, "longitude"), 64)
		if latErr != nil || lngErr != nil || model.ValidateCoords(lat, lng) != nil {
			skipped++
			continue
		}

		occurred, ok := parseCSVTime(field(row, "occurred_at"))
		if !ok {
			skipped++
			continue
		}

		caseID := field(row, "case_id")
		if caseID == "" {
			caseID = uuid.NewString()
		}

		incidents = append(incidents, model.Incident{
			CaseID:     caseID,
			Category:   model.NormalizeCategory(field(row, "category")),
			Latitude:   lat,
			Longitude:  lng,
			OccurredAt: occurred,
			Arrest:     parseCSVBool(field(row, "arrest")),
			Domestic:   parseCSVBool(field(row, "domestic")),
		})
	}
	return incidents, skipped, nil
}

func parseCSVTime(s string) (time.Time, bool) {
	for _, layout := range csvTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func parseCSVBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "t", "1", "yes", "y":
		return true
	default:
		return false
	}
}
