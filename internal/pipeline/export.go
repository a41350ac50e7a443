package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ajitpratap0/shapecsv/pkg/codec"
	cerrors "github.com/ajitpratap0/shapecsv/pkg/errors"
	"github.com/ajitpratap0/shapecsv/pkg/metrics"
	"github.com/ajitpratap0/shapecsv/pkg/models"
	"github.com/ajitpratap0/shapecsv/pkg/observability"
	"go.uber.org/zap"
)

// maxExportDirs bounds the "(n)" suffixes tried when a network directory
// already exists.
const maxExportDirs = 100

// ExportOptions select where and what to export.
type ExportOptions struct {
	// OutputDir must exist; the network directory is created inside it
	OutputDir string
	// ScenarioName limits the export to one scenario; empty exports all
	ScenarioName string
}

// ExportResult summarises an export run.
type ExportResult struct {
	RunID        string
	NetworkDir   string
	ScenarioDirs []string
	Files        []string
	Warnings     []string
	Duration     time.Duration
}

// Exporter writes networks to CSV directories.
type Exporter struct {
	opts    codec.Options
	metrics *metrics.Collector
	tracer  *observability.Tracer
	logger  *zap.Logger
}

// NewExporter creates an exporter. collector and tracer may be nil.
func NewExporter(opts codec.Options, collector *metrics.Collector, tracer *observability.Tracer, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tracer == nil {
		tracer, _ = observability.NewTracer(observability.TracingConfig{})
	}
	if collector == nil {
		collector = metrics.NewCollector()
	}
	return &Exporter{opts: opts, metrics: collector, tracer: tracer, logger: logger}
}

// Export writes the network of doc to network_<name>/<scenario>/ under
// opts.OutputDir, one directory per selected scenario. Each scenario run
// shares one codec session; all data files are closed before Export
// returns, whether or not it fails.
func (e *Exporter) Export(ctx context.Context, doc *models.Document, opts ExportOptions) (*ExportResult, error) {
	if doc == nil {
		return nil, cerrors.New(cerrors.ErrorTypeValidation, "no network to export")
	}
	net := &doc.Network
	scenarios, err := selectScenarios(net, opts.ScenarioName)
	if err != nil {
		return nil, err
	}
	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = "."
	}
	if info, err := os.Stat(outputDir); err != nil || !info.IsDir() {
		return nil, cerrors.New(cerrors.ErrorTypeFile, "output folder does not exist").
			WithDetail("path", outputDir)
	}

	session, err := codec.NewSession(e.opts, e.logger, e.metrics)
	if err != nil {
		return nil, err
	}
	logger := session.Logger()
	result := &ExportResult{RunID: session.ID()}

	err = e.tracer.Trace(ctx, "shapecsv.export", func(ctx context.Context, span *observability.Span) error {
		span.SetAttribute("run_id", session.ID())
		span.SetAttribute("network", net.Name)
		span.SetAttribute("scenarios", len(scenarios))

		networkDir, err := makeNetworkDir(outputDir, net.Name, logger)
		if err != nil {
			return err
		}
		result.NetworkDir = networkDir

		for _, scenario := range scenarios {
			targetDir := filepath.Join(networkDir, dirName(scenario.Name))
			err := e.tracer.Trace(ctx, "shapecsv.export.scenario", func(ctx context.Context, span *observability.Span) error {
				span.SetAttribute("scenario", scenario.Name)
				if err := os.MkdirAll(targetDir, 0o755); err != nil {
					return cerrors.Wrap(err, cerrors.ErrorTypeFile, "failed to create scenario directory").
						WithDetail("path", targetDir)
				}
				w := newScenarioWriter(session, doc, scenario, targetDir)
				if err := w.write(); err != nil {
					return err
				}
				result.Warnings = append(result.Warnings, w.warnings...)
				return nil
			})
			if err != nil {
				return err
			}
			result.ScenarioDirs = append(result.ScenarioDirs, targetDir)
		}
		return nil
	})

	if cerr := session.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		logger.Error("export failed", zap.Error(err))
		return nil, err
	}

	for _, dir := range result.ScenarioDirs {
		files, err := listFiles(dir)
		if err != nil {
			return nil, err
		}
		result.Files = append(result.Files, files...)
	}
	result.Duration = e.metrics.ObserveRun(metrics.DirectionExport)
	logger.Info("export complete",
		zap.String("network_dir", result.NetworkDir),
		zap.Int("scenarios", len(result.ScenarioDirs)),
		zap.Int("files", len(result.Files)),
		zap.Duration("duration", result.Duration))
	return result, nil
}

func selectScenarios(net *models.Network, name string) ([]*models.Scenario, error) {
	if len(net.Scenarios) == 0 {
		return nil, cerrors.New(cerrors.ErrorTypeValidation, "network has no scenarios").
			WithDetail("network", net.Name)
	}
	var out []*models.Scenario
	for i := range net.Scenarios {
		if name == "" || net.Scenarios[i].Name == name {
			out = append(out, &net.Scenarios[i])
		}
	}
	if len(out) == 0 {
		return nil, cerrors.New(cerrors.ErrorTypeNotFound, "no scenario with that name").
			WithDetail("scenario", name)
	}
	return out, nil
}

// makeNetworkDir creates network_<name> in outputDir, or network_<name>(n)
// when that already exists.
func makeNetworkDir(outputDir, name string, logger *zap.Logger) (string, error) {
	base := filepath.Join(outputDir, "network_"+dirName(name))
	candidate := base
	for n := 1; n <= maxExportDirs+1; n++ {
		err := os.Mkdir(candidate, 0o755)
		if err == nil {
			return candidate, nil
		}
		if !os.IsExist(err) {
			return "", cerrors.Wrap(err, cerrors.ErrorTypeFile, "failed to create network directory").
				WithDetail("path", candidate)
		}
		logger.Info("network directory exists", zap.String("path", candidate))
		candidate = fmt.Sprintf("%s(%d)", base, n)
	}
	return "", cerrors.New(cerrors.ErrorTypeFile, "no free network directory name").
		WithDetail("path", base)
}

func listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, cerrors.Wrap(err, cerrors.ErrorTypeFile, "failed to list directory").
			WithDetail("path", dir)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

// resourceRow is one resource ready to be written: its fixed cells and the
// attribute slots to fill from the scenario.
type resourceRow struct {
	name        string
	leading     []string
	description string
	attributes  []models.ResourceAttribute
}

// scenarioWriter writes the resource files of one scenario.
type scenarioWriter struct {
	session   *codec.Session
	logger    *zap.Logger
	network   *models.Network
	scenario  *models.Scenario
	attrNames map[int64]string
	lookup    map[int64]*models.ResourceScenario
	targetDir string
	warnings  []string
}

func newScenarioWriter(session *codec.Session, doc *models.Document, scenario *models.Scenario, targetDir string) *scenarioWriter {
	return &scenarioWriter{
		session:   session,
		logger:    session.Logger().With(zap.String("scenario", scenario.Name)),
		network:   &doc.Network,
		scenario:  scenario,
		attrNames: doc.AttributeNames(),
		lookup:    scenario.Lookup(),
		targetDir: targetDir,
	}
}

func (w *scenarioWriter) warn(msg string) {
	w.logger.Warn(msg)
	w.warnings = append(w.warnings, msg)
}

func (w *scenarioWriter) write() error {
	net := w.network

	nodeNames := make(map[int64]string, len(net.Nodes))
	for _, n := range net.Nodes {
		nodeNames[n.ID] = n.Name
	}
	linkNames := make(map[int64]string, len(net.Links))
	for _, l := range net.Links {
		linkNames[l.ID] = l.Name
	}
	groupNames := make(map[int64]string, len(net.Groups))
	for _, g := range net.Groups {
		groupNames[g.ID] = g.Name
	}

	var nodesCell, linksCell, groupsCell string
	if len(net.Nodes) > 0 {
		rows := make([]resourceRow, 0, len(net.Nodes))
		for _, n := range net.Nodes {
			rows = append(rows, resourceRow{
				name:        n.Name,
				leading:     []string{n.Name, n.X, n.Y, models.FirstType(n.Types)},
				description: n.Description,
				attributes:  n.Attributes,
			})
		}
		if err := w.writeResources(nodesLayout, nodesLayout.leading, rows); err != nil {
			return err
		}
		nodesCell = NodesFile
	} else {
		w.warn("network has no nodes")
	}

	if len(net.Links) > 0 {
		rows := make([]resourceRow, 0, len(net.Links))
		for _, l := range net.Links {
			from, ok := nodeNames[l.Node1ID]
			to, ok2 := nodeNames[l.Node2ID]
			if !ok || !ok2 {
				return cerrors.New(cerrors.ErrorTypeNotFound, "link refers to an unknown node").
					WithDetail("link", l.Name)
			}
			rows = append(rows, resourceRow{
				name:        l.Name,
				leading:     []string{l.Name, from, to, models.FirstType(l.Types)},
				description: l.Description,
				attributes:  l.Attributes,
			})
		}
		if err := w.writeResources(linksLayout, linksLayout.leading, rows); err != nil {
			return err
		}
		linksCell = LinksFile
	} else {
		w.warn("network has no links")
	}

	if len(net.Groups) > 0 {
		rows := make([]resourceRow, 0, len(net.Groups))
		for _, g := range net.Groups {
			rows = append(rows, resourceRow{
				name:        g.Name,
				leading:     []string{g.Name, models.FirstType(g.Types), GroupMembersFile},
				description: g.Description,
				attributes:  g.Attributes,
			})
		}
		if err := w.writeResources(groupsLayout, groupsLayout.leading, rows); err != nil {
			return err
		}
		if err := w.writeGroupMembers(groupNames, nodeNames, linkNames); err != nil {
			return err
		}
		groupsCell = GroupsFile
	} else {
		w.warn("network has no groups")
	}

	heading := append([]string(nil), networkLayout.leading...)
	leading := []string{
		strconv.FormatInt(net.ID, 10), net.Name, models.FirstType(net.Types), net.Projection,
		nodesCell, linksCell, groupsCell, "",
	}
	if w.scenario.HasTimeRange() {
		heading = append(heading, timeRangeColumns...)
		leading = append(leading, w.scenario.StartTime, w.scenario.EndTime, w.scenario.TimeStep)
	}
	row := resourceRow{
		name:        net.Name,
		leading:     leading,
		description: net.Description,
		attributes:  net.Attributes,
	}
	return w.writeResources(networkLayout, heading, []resourceRow{row})
}

// writeResources writes a resource file with one column per attribute any
// of the rows carries, in order of first appearance, and its metadata file
// when any dataset has metadata.
func (w *scenarioWriter) writeResources(layout resourceFile, heading []string, rows []resourceRow) error {
	attrIDs, err := w.attributeColumns(layout, rows)
	if err != nil {
		return err
	}
	attrNames := make([]string, len(attrIDs))
	for i, id := range attrIDs {
		attrNames[i] = w.attrNames[id]
	}

	header := make([]string, 0, len(heading)+len(attrIDs)+1)
	header = append(header, heading...)
	header = append(header, attrNames...)
	header = append(header, layout.trailing)

	units := make([]string, len(header))
	units[0] = unitsLabel
	for i, id := range attrIDs {
		units[len(heading)+i] = w.unit(id, attrNames[i])
	}

	records := [][]string{header, units}
	metadataRecords := [][]string{append([]string{"Name"}, attrNames...)}
	position := make(map[int64]int, len(attrIDs))
	for i, id := range attrIDs {
		position[id] = i
	}

	for _, r := range rows {
		values := make([]string, len(attrIDs))
		meta := make([]string, len(attrIDs))
		hasMeta := false
		for _, ra := range r.attributes {
			i := position[ra.AttrID]
			cell, m, err := w.value(layout.refKey, r.name, attrNames[i], ra)
			if err != nil {
				return err
			}
			values[i] = cell
			if m.Len() > 0 {
				meta[i] = formatMetadata(m)
				hasMeta = true
			}
		}
		record := make([]string, 0, len(header))
		record = append(record, r.leading...)
		record = append(record, values...)
		record = append(record, r.description)
		records = append(records, record)
		if hasMeta {
			metadataRecords = append(metadataRecords, append([]string{r.name}, meta...))
		}
	}

	if err := writeCSV(filepath.Join(w.targetDir, layout.name), records); err != nil {
		return err
	}
	w.logger.Info("wrote resource file",
		zap.String("file", layout.name),
		zap.Int("resources", len(rows)),
		zap.Int("attributes", len(attrIDs)))

	if len(metadataRecords) > 1 {
		return writeCSV(filepath.Join(w.targetDir, layout.metadataFile()), metadataRecords)
	}
	return nil
}

func (w *scenarioWriter) attributeColumns(layout resourceFile, rows []resourceRow) ([]int64, error) {
	var ids []int64
	seen := make(map[int64]struct{})
	for _, r := range rows {
		for _, ra := range r.attributes {
			if _, ok := seen[ra.AttrID]; ok {
				continue
			}
			if _, ok := w.attrNames[ra.AttrID]; !ok {
				return nil, cerrors.New(cerrors.ErrorTypeNotFound, "resource attribute refers to an unknown attribute").
					WithDetail("file", layout.name).
					WithDetail("resource", r.name).
					WithDetail("attr_id", ra.AttrID)
			}
			seen[ra.AttrID] = struct{}{}
			ids = append(ids, ra.AttrID)
		}
	}
	return ids, nil
}

// unit returns the unit of the first dataset of attrID that has one.
func (w *scenarioWriter) unit(attrID int64, name string) string {
	for _, rs := range w.scenario.ResourceScenarios {
		if rs.AttrID == attrID && rs.Dataset != nil && rs.Dataset.Unit != "" {
			return rs.Dataset.Unit
		}
	}
	w.logger.Debug("no unit for attribute", zap.String("attribute", name))
	return ""
}

func (w *scenarioWriter) value(refKey models.RefKey, resource, attribute string, ra models.ResourceAttribute) (string, models.Metadata, error) {
	rs, ok := w.lookup[ra.ID]
	if !ok || rs.Dataset == nil {
		return "", models.Metadata{}, nil
	}
	cell, err := w.session.ProcessDataset(rs.Dataset, resource, refKey, attribute, w.targetDir)
	if err != nil {
		return "", models.Metadata{}, cerrors.Wrap(err, cerrors.TypeOf(err), "failed to export dataset").
			WithDetail("resource", resource).
			WithDetail("attribute", attribute)
	}
	return cell, rs.Dataset.Metadata, nil
}

func (w *scenarioWriter) writeGroupMembers(groups, nodes, links map[int64]string) error {
	records := [][]string{groupMembersHeading}
	for _, item := range w.scenario.GroupItems {
		group, ok := groups[item.GroupID]
		if !ok {
			return cerrors.New(cerrors.ErrorTypeNotFound, "group member refers to an unknown group").
				WithDetail("group_id", item.GroupID)
		}
		var (
			member string
			found  bool
		)
		switch item.RefKey {
		case models.RefNode:
			member, found = nodes[item.NodeID]
		case models.RefLink:
			member, found = links[item.LinkID]
		case models.RefGroup:
			member, found = groups[item.SubGroupID]
		default:
			return cerrors.New(cerrors.ErrorTypeValidation, "unrecognised group member type").
				WithDetail("group", group).
				WithDetail("type", string(item.RefKey))
		}
		if !found {
			return cerrors.New(cerrors.ErrorTypeNotFound, "group member not found").
				WithDetail("group", group).
				WithDetail("type", string(item.RefKey))
		}
		records = append(records, []string{group, string(item.RefKey), member})
	}
	return writeCSV(filepath.Join(w.targetDir, GroupMembersFile), records)
}
