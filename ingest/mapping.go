package ingest

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// COLUMN MAPPING
// =============================================================================

// ColumnMapping names the header text for each logical field.
// EmployeeID and Date are required; the rest are optional.
type ColumnMapping struct {
	EmployeeID string `json:"employeeId" yaml:"employeeId"`
	Name       string `json:"name,omitempty" yaml:"name,omitempty"`
	Date       string `json:"date" yaml:"date"`
	TimeIn     string `json:"timeIn,omitempty" yaml:"timeIn,omitempty"`
	TimeOut    string `json:"timeOut,omitempty" yaml:"timeOut,omitempty"`
	Department string `json:"department,omitempty" yaml:"department,omitempty"`
}

// DefaultMapping matches the headers most delimited exports use.
var DefaultMapping = ColumnMapping{
	EmployeeID: "Employee ID",
	Name:       "Name",
	Date:       "Date",
	TimeIn:     "Time In",
	TimeOut:    "Time Out",
	Department: "Department",
}

// IsZero reports whether no field is mapped.
func (m ColumnMapping) IsZero() bool { return m == ColumnMapping{} }

// ColumnIndex is a resolved column position per logical field; -1 = unmapped.
type ColumnIndex struct {
	EmployeeID int
	Name       int
	Date       int
	TimeIn     int
	TimeOut    int
	Department int
}

// ResolveColumns matches mapping against headers (exact, trimmed, case-insensitive).
func ResolveColumns(headers []string, mapping ColumnMapping) (ColumnIndex, error) {
	idx := ColumnIndex{
		EmployeeID: headerIndex(headers, mapping.EmployeeID),
		Name:       headerIndex(headers, mapping.Name),
		Date:       headerIndex(headers, mapping.Date),
		TimeIn:     headerIndex(headers, mapping.TimeIn),
		TimeOut:    headerIndex(headers, mapping.TimeOut),
		Department: headerIndex(headers, mapping.Department),
	}

	var missing []string
	if idx.EmployeeID < 0 {
		missing = append(missing, fmt.Sprintf("employeeId (%q)", mapping.EmployeeID))
	}
	if idx.Date < 0 {
		missing = append(missing, fmt.Sprintf("date (%q)", mapping.Date))
	}
	if len(missing) > 0 {
		return ColumnIndex{}, &ConfigError{
			Reason: fmt.Sprintf("required column not found in headers: %s", strings.Join(missing, ", ")),
			Err:    ErrMissingColumn,
		}
	}
	return idx, nil
}

// headerIndex returns the first header equal to name, or -1.
func headerIndex(headers []string, name string) int {
	name = strings.TrimSpace(name)
	if name == "" {
		return -1
	}
	for i, h := range headers {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}

// lastHeaderIndex returns the last header equal to name, or -1.
func lastHeaderIndex(headers []string, name string) int {
	for i := len(headers) - 1; i >= 0; i-- {
		if strings.EqualFold(strings.TrimSpace(headers[i]), name) {
			return i
		}
	}
	return -1
}

// =============================================================================
// MAPPING PROFILES - Per-device mappings loaded from YAML
// =============================================================================

// MappingProfiles is the YAML document:
//
//	default: zkteco
//	profiles:
//	  zkteco:
//	    employeeId: "AC-No."
//	    date: "Date"
//	    timeIn: "Clock In"
type MappingProfiles struct {
	Default  string                   `yaml:"default"`
	Profiles map[string]ColumnMapping `yaml:"profiles"`
}

// LoadMappingProfiles reads and validates a profiles file.
func LoadMappingProfiles(path string) (*MappingProfiles, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping profiles: %w", err)
	}
	return ParseMappingProfiles(data)
}

// ParseMappingProfiles decodes and validates profiles YAML.
func ParseMappingProfiles(data []byte) (*MappingProfiles, error) {
	var p MappingProfiles
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse mapping profiles: %w", err)
	}
	for name, m := range p.Profiles {
		if strings.TrimSpace(m.EmployeeID) == "" || strings.TrimSpace(m.Date) == "" {
			return nil, &ConfigError{
				Reason: fmt.Sprintf("profile %q must map employeeId and date", name),
				Err:    ErrMissingColumn,
			}
		}
	}
	if p.Default != "" {
		if _, ok := p.Profiles[p.Default]; !ok {
			return nil, &ConfigError{Reason: fmt.Sprintf("default profile %q is not defined", p.Default), Err: ErrUnknownProfile}
		}
	}
	return &p, nil
}

// Profile returns the named mapping; an empty name selects the default.
func (p *MappingProfiles) Profile(name string) (ColumnMapping, error) {
	if name == "" {
		name = p.Default
	}
	if name == "" {
		return DefaultMapping, nil
	}
	m, ok := p.Profiles[name]
	if !ok {
		return ColumnMapping{}, &ConfigError{Reason: fmt.Sprintf("mapping profile %q", name), Err: ErrUnknownProfile}
	}
	return m, nil
}

// Names lists profile names in sorted order.
func (p *MappingProfiles) Names() []string {
	names := make([]string, 0, len(p.Profiles))
	for name := range p.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
