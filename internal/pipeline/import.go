package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ajitpratap0/shapecsv/pkg/codec"
	"github.com/ajitpratap0/shapecsv/pkg/csvfile"
	cerrors "github.com/ajitpratap0/shapecsv/pkg/errors"
	"github.com/ajitpratap0/shapecsv/pkg/metrics"
	"github.com/ajitpratap0/shapecsv/pkg/models"
	"github.com/ajitpratap0/shapecsv/pkg/observability"
	"github.com/ajitpratap0/shapecsv/pkg/schema"
	"go.uber.org/zap"
)

// ImportOptions select the directory to import and name its contents.
type ImportOptions struct {
	// Dir holds network.csv, nodes.csv and the other resource files
	Dir string
	// NetworkName overrides the name in network.csv
	NetworkName string
	// ScenarioName names the imported scenario; the directory name is used
	// when empty
	ScenarioName string
	// Restrictions are checked against every value of the named attribute
	Restrictions map[string]schema.Restrictions
}

// ImportResult is an imported network and what was noticed on the way.
type ImportResult struct {
	RunID    string
	Document *models.Document
	Warnings []string
	Duration time.Duration
}

// Importer reads CSV directories into networks.
type Importer struct {
	opts    codec.Options
	metrics *metrics.Collector
	tracer  *observability.Tracer
	logger  *zap.Logger
}

// NewImporter creates an importer. collector and tracer may be nil.
func NewImporter(opts codec.Options, collector *metrics.Collector, tracer *observability.Tracer, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tracer == nil {
		tracer, _ = observability.NewTracer(observability.TracingConfig{})
	}
	if collector == nil {
		collector = metrics.NewCollector()
	}
	return &Importer{opts: opts, metrics: collector, tracer: tracer, logger: logger}
}

// Import reads the resource files in opts.Dir, classifies every attribute
// cell and returns the network with a single scenario holding the values.
// Relative data file references resolve against the session base path,
// itself relative to opts.Dir.
func (i *Importer) Import(ctx context.Context, opts ImportOptions) (*ImportResult, error) {
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, cerrors.New(cerrors.ErrorTypeFile, "import directory does not exist").
			WithDetail("path", dir)
	}

	sessionOpts := i.opts
	if !filepath.IsAbs(sessionOpts.BasePath) {
		sessionOpts.BasePath = filepath.Join(dir, sessionOpts.BasePath)
	}
	session, err := codec.NewSession(sessionOpts, i.logger, i.metrics)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	b := newDocumentBuilder(session, dir, opts)
	err = i.tracer.Trace(ctx, "shapecsv.import", func(ctx context.Context, span *observability.Span) error {
		span.SetAttribute("run_id", session.ID())
		span.SetAttribute("dir", dir)
		if err := b.build(); err != nil {
			return err
		}
		span.SetAttribute("nodes", len(b.doc.Network.Nodes))
		span.SetAttribute("links", len(b.doc.Network.Links))
		span.SetAttribute("datasets", len(b.scenario().ResourceScenarios))
		return nil
	})
	if err != nil {
		session.Logger().Error("import failed", zap.Error(err))
		return nil, err
	}

	result := &ImportResult{
		RunID:    session.ID(),
		Document: b.doc,
		Warnings: b.warnings,
		Duration: i.metrics.ObserveRun(metrics.DirectionImport),
	}
	session.Logger().Info("import complete",
		zap.String("network", b.doc.Network.Name),
		zap.Int("nodes", len(b.doc.Network.Nodes)),
		zap.Int("links", len(b.doc.Network.Links)),
		zap.Int("groups", len(b.doc.Network.Groups)),
		zap.Int("datasets", len(b.scenario().ResourceScenarios)),
		zap.Duration("duration", result.Duration))
	return result, nil
}

// resourceTable is a parsed resource file.
type resourceTable struct {
	path     string
	columns  columnIndex
	heading  []string
	attrCols []int
	units    []string
	rows     [][]string
	metadata map[string]map[string]models.Metadata
}

// documentBuilder accumulates the imported network.
type documentBuilder struct {
	session *codec.Session
	logger  *zap.Logger
	dir     string
	opts    ImportOptions

	doc      *models.Document
	attrIDs  map[string]int64
	nodeIDs  map[string]int64
	linkIDs  map[string]int64
	groupIDs map[string]int64
	nextRA   int64
	warnings []string
	invalid  []error
}

func newDocumentBuilder(session *codec.Session, dir string, opts ImportOptions) *documentBuilder {
	return &documentBuilder{
		session:  session,
		logger:   session.Logger().With(zap.String("dir", dir)),
		dir:      dir,
		opts:     opts,
		doc:      &models.Document{Network: models.Network{ID: 1}},
		attrIDs:  make(map[string]int64),
		nodeIDs:  make(map[string]int64),
		linkIDs:  make(map[string]int64),
		groupIDs: make(map[string]int64),
	}
}

func (b *documentBuilder) warn(msg string, fields ...zap.Field) {
	b.logger.Warn(msg, fields...)
	b.warnings = append(b.warnings, msg)
}

// reject records a value that failed with a structural error. Only that
// dataset is dropped; the remaining cells are still read so every bad value
// is reported in one run.
func (b *documentBuilder) reject(err error) {
	b.logger.Error("invalid value", zap.Error(err))
	b.invalid = append(b.invalid, err)
}

func (b *documentBuilder) scenario() *models.Scenario {
	return &b.doc.Network.Scenarios[0]
}

func (b *documentBuilder) build() error {
	scenarioName := b.opts.ScenarioName
	if scenarioName == "" {
		scenarioName = strings.ReplaceAll(filepath.Base(filepath.Clean(b.dir)), "_", " ")
	}
	b.doc.Network.Scenarios = []models.Scenario{{ID: 1, Name: scenarioName}}

	if err := b.readNetwork(); err != nil {
		return err
	}
	if b.opts.NetworkName != "" {
		b.doc.Network.Name = b.opts.NetworkName
	}
	if b.doc.Network.Name == "" {
		b.doc.Network.Name = filepath.Base(filepath.Clean(b.dir))
	}

	steps := []func() error{b.readNodes, b.readLinks, b.readGroups, b.readGroupMembers}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}

	if n := len(b.invalid); n > 0 {
		first := b.invalid[0]
		return cerrors.Wrap(first, cerrors.TypeOf(first), fmt.Sprintf("%d invalid values", n)).
			WithDetail("invalid", n)
	}
	return nil
}

// readTable loads a resource file and its metadata file. A missing resource
// file yields nil.
func (b *documentBuilder) readTable(layout resourceFile) (*resourceTable, error) {
	path := filepath.Join(b.dir, layout.name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	rows, err := csvfile.ReadRows(path)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		b.warn("resource file is empty", zap.String("file", layout.name))
		return nil, nil
	}
	heading := rows[0]
	if err := csvfile.CheckHeader(path, heading); err != nil {
		return nil, err
	}

	t := &resourceTable{
		path:    path,
		columns: indexColumns(heading),
		heading: heading,
		units:   make([]string, len(heading)),
	}
	for i, h := range heading {
		if !layout.fixed(h) {
			t.attrCols = append(t.attrCols, i)
		}
	}
	rows = rows[1:]
	if len(rows) > 0 && isUnitsRow(rows[0]) {
		copy(t.units, rows[0])
		rows = rows[1:]
	}
	t.rows = rows

	t.metadata, err = b.readMetadata(layout)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (b *documentBuilder) readMetadata(layout resourceFile) (map[string]map[string]models.Metadata, error) {
	path := filepath.Join(b.dir, layout.metadataFile())
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	rows, err := csvfile.ReadRows(path)
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[string]models.Metadata)
	if len(rows) == 0 {
		return out, nil
	}
	heading := rows[0]
	for _, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}
		byAttr := make(map[string]models.Metadata)
		for i := 1; i < len(row) && i < len(heading); i++ {
			if m := parseMetadata(row[i]); m.Len() > 0 {
				byAttr[strings.TrimSpace(heading[i])] = m
			}
		}
		out[strings.TrimSpace(row[0])] = byAttr
	}
	return out, nil
}

// attributes classifies the attribute cells of row for resource and returns
// its resource attributes. Each non-empty cell becomes a dataset in the
// scenario; empty cells leave the attribute without a value.
func (b *documentBuilder) attributes(t *resourceTable, refKey models.RefKey, resource string, row []string) ([]models.ResourceAttribute, error) {
	var out []models.ResourceAttribute
	sc := b.scenario()
	for _, col := range t.attrCols {
		attr := strings.TrimSpace(t.heading[col])
		attrID := b.attributeID(attr)
		b.nextRA++
		ra := models.ResourceAttribute{ID: b.nextRA, AttrID: attrID, RefKey: refKey}
		out = append(out, ra)

		if col >= len(row) || strings.TrimSpace(row[col]) == "" {
			continue
		}
		unit, factor := csvfile.ParseUnit(t.units[col])
		ds, err := b.session.Classify(row[col], schema.Options{
			Resource:     resource,
			Attribute:    attr,
			Unit:         unit,
			Metadata:     t.metadata[resource][attr],
			Restrictions: b.opts.Restrictions[attr],
		})
		if err != nil {
			err = cerrors.Wrap(err, cerrors.TypeOf(err), "failed to import value").
				WithDetail("file", filepath.Base(t.path)).
				WithDetail("resource", resource).
				WithDetail("attribute", attr)
			if cerrors.IsStructural(err) {
				b.reject(err)
				continue
			}
			return nil, err
		}
		if factor != 1 && ds.Kind == models.KindScalar {
			if v, err := strconv.ParseFloat(ds.Value, 64); err == nil {
				ds.Value = strconv.FormatFloat(v*factor, 'g', -1, 64)
			}
		}
		sc.ResourceScenarios = append(sc.ResourceScenarios, models.ResourceScenario{
			ResourceAttrID: ra.ID,
			AttrID:         attrID,
			Dataset:        ds,
		})
	}
	return out, nil
}

func (b *documentBuilder) attributeID(name string) int64 {
	if id, ok := b.attrIDs[name]; ok {
		return id
	}
	id := int64(len(b.doc.Attributes) + 1)
	b.attrIDs[name] = id
	b.doc.Attributes = append(b.doc.Attributes, models.Attribute{ID: id, Name: name})
	return id
}

func types(name string) []string {
	if name == "" {
		return nil
	}
	return []string{name}
}

func (b *documentBuilder) readNetwork() error {
	t, err := b.readTable(networkLayout)
	if err != nil || t == nil {
		if t == nil && err == nil {
			b.warn("no network file found")
		}
		return err
	}
	if len(t.rows) == 0 {
		b.warn("network file has no network row")
		return nil
	}
	row := t.rows[0]
	net := &b.doc.Network
	net.Name = t.columns.cell(row, "name")
	net.Projection = t.columns.cell(row, "projection")
	net.Description = t.columns.cell(row, "description")
	net.Types = types(t.columns.cell(row, "type"))

	sc := b.scenario()
	sc.StartTime = t.columns.cell(row, "starttime")
	sc.EndTime = t.columns.cell(row, "endtime")
	sc.TimeStep = t.columns.cell(row, "timestep")

	resource := net.Name
	if b.opts.NetworkName != "" {
		resource = b.opts.NetworkName
	}
	net.Attributes, err = b.attributes(t, models.RefNetwork, resource, row)
	return err
}

func (b *documentBuilder) readNodes() error {
	t, err := b.readTable(nodesLayout)
	if err != nil {
		return err
	}
	if t == nil {
		b.warn("no node file found")
		return nil
	}
	for _, row := range t.rows {
		name := t.columns.cell(row, "name")
		if name == "" {
			continue
		}
		if _, ok := b.nodeIDs[name]; ok {
			return cerrors.New(cerrors.ErrorTypeValidation, "duplicate node").
				WithDetail("file", NodesFile).
				WithDetail("resource", name)
		}
		attrs, err := b.attributes(t, models.RefNode, name, row)
		if err != nil {
			return err
		}
		id := int64(len(b.doc.Network.Nodes) + 1)
		b.nodeIDs[name] = id
		b.doc.Network.Nodes = append(b.doc.Network.Nodes, models.Node{
			ID:          id,
			Name:        name,
			Description: t.columns.cell(row, "description"),
			X:           t.columns.cell(row, "x"),
			Y:           t.columns.cell(row, "y"),
			Types:       types(t.columns.cell(row, "type")),
			Attributes:  attrs,
		})
	}
	return nil
}

func (b *documentBuilder) readLinks() error {
	t, err := b.readTable(linksLayout)
	if err != nil {
		return err
	}
	if t == nil {
		b.warn("no link file found")
		return nil
	}
	for _, row := range t.rows {
		name := t.columns.cell(row, "name")
		if name == "" {
			continue
		}
		from, ok := b.nodeIDs[t.columns.cell(row, "from")]
		to, ok2 := b.nodeIDs[t.columns.cell(row, "to")]
		if !ok || !ok2 {
			return cerrors.New(cerrors.ErrorTypeNotFound, "link refers to an unknown node").
				WithDetail("file", LinksFile).
				WithDetail("resource", name)
		}
		attrs, err := b.attributes(t, models.RefLink, name, row)
		if err != nil {
			return err
		}
		id := int64(len(b.doc.Network.Links) + 1)
		b.linkIDs[name] = id
		b.doc.Network.Links = append(b.doc.Network.Links, models.Link{
			ID:          id,
			Name:        name,
			Description: t.columns.cell(row, "description"),
			Node1ID:     from,
			Node2ID:     to,
			Types:       types(t.columns.cell(row, "type")),
			Attributes:  attrs,
		})
	}
	return nil
}

func (b *documentBuilder) readGroups() error {
	t, err := b.readTable(groupsLayout)
	if err != nil || t == nil {
		return err
	}
	for _, row := range t.rows {
		name := t.columns.cell(row, "name")
		if name == "" {
			continue
		}
		attrs, err := b.attributes(t, models.RefGroup, name, row)
		if err != nil {
			return err
		}
		id := int64(len(b.doc.Network.Groups) + 1)
		b.groupIDs[name] = id
		b.doc.Network.Groups = append(b.doc.Network.Groups, models.Group{
			ID:          id,
			Name:        name,
			Description: t.columns.cell(row, "description"),
			Types:       types(t.columns.cell(row, "type")),
			Attributes:  attrs,
		})
	}
	return nil
}

func (b *documentBuilder) readGroupMembers() error {
	path := filepath.Join(b.dir, GroupMembersFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	rows, err := csvfile.ReadRows(path)
	if err != nil {
		return err
	}
	if len(rows) < 2 {
		return nil
	}
	sc := b.scenario()
	for _, row := range rows[1:] {
		if len(row) < 3 {
			return cerrors.New(cerrors.ErrorTypeValidation, "group member row needs a group, a type and a member").
				WithDetail("file", GroupMembersFile).
				WithDetail("row", strings.Join(row, ","))
		}
		group, ok := b.groupIDs[row[0]]
		if !ok {
			return cerrors.New(cerrors.ErrorTypeNotFound, "unknown group").
				WithDetail("file", GroupMembersFile).
				WithDetail("group", row[0])
		}
		item := models.GroupItem{GroupID: group, RefKey: models.RefKey(strings.ToUpper(row[1]))}
		switch item.RefKey {
		case models.RefNode:
			item.NodeID, ok = b.nodeIDs[row[2]]
		case models.RefLink:
			item.LinkID, ok = b.linkIDs[row[2]]
		case models.RefGroup:
			item.SubGroupID, ok = b.groupIDs[row[2]]
		default:
			return cerrors.New(cerrors.ErrorTypeValidation, "unrecognised group member type").
				WithDetail("file", GroupMembersFile).
				WithDetail("type", row[1])
		}
		if !ok {
			return cerrors.New(cerrors.ErrorTypeNotFound, "unknown group member").
				WithDetail("file", GroupMembersFile).
				WithDetail("group", row[0]).
				WithDetail("member", row[2])
		}
		sc.GroupItems = append(sc.GroupItems, item)
	}
	return nil
}
