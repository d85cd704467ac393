// Package ingest parses uploaded CSV files into raw participant rows. Header
// names are matched leniently so exports from different form tools work
// without manual renaming.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/casematch/casematch/internal/types"
)

// ErrMissingHeader is returned when the CSV lacks the columns required to
// identify a participant.
var ErrMissingHeader = errors.New("csv missing required header")

// column keys after canonicalization of header names.
const (
	colName         = "name"
	colEmail        = "email"
	colStrengths    = "corestrengths"
	colRoles        = "preferredroles"
	colStyles       = "workingstyles"
	colAvailability = "availability"
	colExperience   = "experience"
	colTeamSize     = "preferredteamsize"
	colCaseTypes    = "casepreferences"
)

// headerAliases maps common export spellings onto canonical column keys.
var headerAliases = map[string]string{
	"fullname":        colName,
	"participant":     colName,
	"emailaddress":    colEmail,
	"strengths":       colStrengths,
	"skills":          colStrengths,
	"roles":           colRoles,
	"role":            colRoles,
	"style":           colStyles,
	"hoursperweek":    colAvailability,
	"experiencelevel": colExperience,
	"teamsize":        colTeamSize,
	"size":            colTeamSize,
	"casetypes":       colCaseTypes,
	"caseinterests":   colCaseTypes,
}

// ParseCSV reads a participant CSV into raw rows. The first record is the
// header; field counts are relaxed so ragged rows read as missing optional
// fields instead of failing the upload.
func ParseCSV(r io.Reader) ([]types.RawRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty file", ErrMissingHeader)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[canonical(h)] = i
	}
	if _, ok := index[colEmail]; !ok {
		return nil, fmt.Errorf("%w: email", ErrMissingHeader)
	}
	if _, ok := index[colName]; !ok {
		return nil, fmt.Errorf("%w: name", ErrMissingHeader)
	}

	var rows []types.RawRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv record: %w", err)
		}
		rows = append(rows, types.RawRow{
			Name:              field(record, index, colName),
			Email:             field(record, index, colEmail),
			CoreStrengths:     field(record, index, colStrengths),
			PreferredRoles:    field(record, index, colRoles),
			WorkingStyles:     field(record, index, colStyles),
			Availability:      field(record, index, colAvailability),
			Experience:        field(record, index, colExperience),
			PreferredTeamSize: field(record, index, colTeamSize),
			CasePreferences:   field(record, index, colCaseTypes),
		})
	}
	return rows, nil
}

// canonical lowercases a header and strips separators so "Core Strengths",
// "core_strengths" and "core-strengths" all match.
func canonical(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-', '.':
			return -1
		}
		return r
	}, h)
	if alias, ok := headerAliases[h]; ok {
		return alias
	}
	return h
}

func field(record []string, index map[string]int, col string) string {
	i, ok := index[col]
	if !ok || i >= len(record) {
		return ""
	}
	return record[i]
}
