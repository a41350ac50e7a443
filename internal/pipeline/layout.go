package pipeline

import (
	"encoding/csv"
	"os"
	"regexp"
	"strings"

	cerrors "github.com/ajitpratap0/shapecsv/pkg/errors"
	"github.com/ajitpratap0/shapecsv/pkg/models"
)

// File names of a scenario directory.
const (
	NetworkFile      = "network.csv"
	NodesFile        = "nodes.csv"
	LinksFile        = "links.csv"
	GroupsFile       = "groups.csv"
	GroupMembersFile = "group_members.csv"

	unitsLabel = "Units"
)

// resourceFile describes one resource CSV file: the fixed columns written
// before the attribute columns, and the column written after them.
type resourceFile struct {
	name     string
	refKey   models.RefKey
	leading  []string
	trailing string
}

var (
	networkLayout = resourceFile{
		name:     NetworkFile,
		refKey:   models.RefNetwork,
		leading:  []string{"ID", "Name", "Type", "Projection", "Nodes", "Links", "Groups", "Rules"},
		trailing: "Description",
	}
	timeRangeColumns = []string{"starttime", "endtime", "timestep"}

	nodesLayout = resourceFile{
		name:     NodesFile,
		refKey:   models.RefNode,
		leading:  []string{"Name", "x", "y", "Type"},
		trailing: "description",
	}
	linksLayout = resourceFile{
		name:     LinksFile,
		refKey:   models.RefLink,
		leading:  []string{"Name", "from", "to", "Type"},
		trailing: "description",
	}
	groupsLayout = resourceFile{
		name:     GroupsFile,
		refKey:   models.RefGroup,
		leading:  []string{"Name", "Type", "Members"},
		trailing: "description",
	}
	groupMembersHeading = []string{"Name", "Type", "Member"}
)

// metadataFile names the metadata companion of a resource file,
// e.g. nodes_metadata.csv.
func (f resourceFile) metadataFile() string {
	return strings.TrimSuffix(f.name, ".csv") + "_metadata.csv"
}

// fixed reports whether heading names one of the file's fixed columns.
func (f resourceFile) fixed(heading string) bool {
	h := strings.ToLower(strings.TrimSpace(heading))
	if h == strings.ToLower(f.trailing) {
		return true
	}
	for _, c := range f.leading {
		if h == strings.ToLower(c) {
			return true
		}
	}
	if f.refKey == models.RefNetwork {
		for _, c := range timeRangeColumns {
			if h == c {
				return true
			}
		}
	}
	return false
}

// columnIndex maps lower-cased headings to their position.
type columnIndex map[string]int

func indexColumns(heading []string) columnIndex {
	idx := make(columnIndex, len(heading))
	for i, h := range heading {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, ok := idx[key]; !ok {
			idx[key] = i
		}
	}
	return idx
}

// cell returns row's value in the named column, or "" when the row is short
// or the column is absent.
func (c columnIndex) cell(row []string, name string) string {
	i, ok := c[strings.ToLower(name)]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func isUnitsRow(row []string) bool {
	return len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), unitsLabel)
}

var metadataPair = regexp.MustCompile(`\(([^;()]*);([^()]*)\)`)

// formatMetadata renders metadata as "(key;value)" pairs.
func formatMetadata(m models.Metadata) string {
	var b strings.Builder
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		b.WriteString("(" + k + ";" + v + ")")
	}
	return b.String()
}

// parseMetadata reads "(key;value)" pairs written by formatMetadata.
func parseMetadata(cell string) models.Metadata {
	var m models.Metadata
	for _, match := range metadataPair.FindAllStringSubmatch(cell, -1) {
		m.Set(strings.TrimSpace(match[1]), strings.TrimSpace(match[2]))
	}
	return m
}

// writeCSV writes rows to path in one pass.
func writeCSV(path string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return cerrors.Wrap(err, cerrors.ErrorTypeFile, "failed to create file").
			WithDetail("path", path)
	}
	w := csv.NewWriter(file)
	if err := w.WriteAll(rows); err != nil {
		file.Close()
		return cerrors.Wrap(err, cerrors.ErrorTypeFile, "failed to write file").
			WithDetail("path", path)
	}
	if err := file.Close(); err != nil {
		return cerrors.Wrap(err, cerrors.ErrorTypeFile, "failed to close file").
			WithDetail("path", path)
	}
	return nil
}

// dirName replaces spaces so names can be used as directory names.
func dirName(name string) string {
	return strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
}
