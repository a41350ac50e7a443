package pipeline

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/ajitpratap0/shapecsv/pkg/codec"
	cerrors "github.com/ajitpratap0/shapecsv/pkg/errors"
	"github.com/ajitpratap0/shapecsv/pkg/metrics"
	"github.com/ajitpratap0/shapecsv/pkg/models"
	"github.com/ajitpratap0/shapecsv/pkg/observability"
	"github.com/ajitpratap0/shapecsv/pkg/schema"
	"github.com/ajitpratap0/shapecsv/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type PipelineTestSuite struct {
	testutil.IntegrationTestSuite
}

func TestPipelineTestSuite(t *testing.T) {
	suite.Run(t, new(PipelineTestSuite))
}

const inflow = `{"flow":{"2020-01-01T00:00:00.000000000Z":1.5,"2020-01-02T00:00:00.000000000Z":2}}`

// sampleDocument is a two-node network with one link, one group and a
// dataset of every kind.
func sampleDocument() *models.Document {
	return &models.Document{
		Attributes: []models.Attribute{
			{ID: 1, Name: "budget"},
			{ID: 2, Name: "demand"},
			{ID: 3, Name: "inflow"},
			{ID: 4, Name: "state"},
			{ID: 5, Name: "policy"},
			{ID: 6, Name: "capacity"},
		},
		Network: models.Network{
			ID:         7,
			Name:       "River Basin",
			Types:      []string{"basin"},
			Attributes: []models.ResourceAttribute{{ID: 100, AttrID: 1, RefKey: models.RefNetwork}},
			Nodes: []models.Node{
				{
					ID: 1, Name: "reservoir", X: "1", Y: "2", Types: []string{"storage"},
					Attributes: []models.ResourceAttribute{
						{ID: 101, AttrID: 2, RefKey: models.RefNode},
						{ID: 102, AttrID: 3, RefKey: models.RefNode},
						{ID: 103, AttrID: 4, RefKey: models.RefNode},
						{ID: 104, AttrID: 5, RefKey: models.RefNode},
					},
				},
				{
					ID: 2, Name: "city", X: "3", Y: "4", Description: "demand centre",
					Attributes: []models.ResourceAttribute{
						{ID: 105, AttrID: 4, RefKey: models.RefNode},
					},
				},
			},
			Links: []models.Link{
				{
					ID: 1, Name: "canal", Node1ID: 1, Node2ID: 2,
					Attributes: []models.ResourceAttribute{{ID: 106, AttrID: 6, RefKey: models.RefLink}},
				},
			},
			Groups: []models.Group{{ID: 1, Name: "supply"}},
			Scenarios: []models.Scenario{
				{
					ID:   1,
					Name: "Base case",
					ResourceScenarios: []models.ResourceScenario{
						{ResourceAttrID: 100, AttrID: 1, Dataset: &models.Dataset{Kind: models.KindScalar, Value: "250", Unit: "GBP"}},
						{ResourceAttrID: 101, AttrID: 2, Dataset: &models.Dataset{Kind: models.KindArray, Value: "[[1,2],[3,4]]"}},
						{ResourceAttrID: 102, AttrID: 3, Dataset: &models.Dataset{Kind: models.KindTimeSeries, Value: inflow, Unit: "m^3"}},
						{ResourceAttrID: 103, AttrID: 4, Dataset: &models.Dataset{Kind: models.KindDescriptor, Value: "open, staffed"}},
						{ResourceAttrID: 104, AttrID: 5, Dataset: &models.Dataset{Kind: models.KindUnknown, TypeName: "pywr_parameter", Value: `{"type":"constant"}`}},
						{ResourceAttrID: 105, AttrID: 4, Dataset: &models.Dataset{Kind: models.KindDescriptor, Value: "closed"}},
						{ResourceAttrID: 106, AttrID: 6, Dataset: &models.Dataset{
							Kind: models.KindScalar, Value: "12.5", Metadata: models.NewMetadata("source", "survey"),
						}},
					},
					GroupItems: []models.GroupItem{
						{GroupID: 1, RefKey: models.RefNode, NodeID: 1},
						{GroupID: 1, RefKey: models.RefLink, LinkID: 1},
					},
				},
				{ID: 2, Name: "Dry year"},
			},
		},
	}
}

func (s *PipelineTestSuite) exporter() *Exporter {
	return NewExporter(codec.Options{}, nil, nil, s.Logger())
}

func (s *PipelineTestSuite) importer() *Importer {
	return NewImporter(codec.Options{ExpandFilenames: true}, nil, nil, s.Logger())
}

func (s *PipelineTestSuite) TestExportLayout() {
	result, err := s.exporter().Export(s.Context(), sampleDocument(), ExportOptions{
		OutputDir:    s.TempDir(),
		ScenarioName: "Base case",
	})
	s.Require().NoError(err)

	s.Equal(filepath.Join(s.TempDir(), "network_River_Basin"), result.NetworkDir)
	s.Require().Len(result.ScenarioDirs, 1)
	dir := result.ScenarioDirs[0]
	s.Equal(filepath.Join(result.NetworkDir, "Base_case"), dir)

	s.ElementsMatch([]string{
		NetworkFile, NodesFile, LinksFile, GroupsFile, GroupMembersFile,
		"links_metadata.csv",
		"array_NODE_demand.csv",
		"timeseries_NODE_inflow.csv",
		"unknown_values.json",
	}, testutil.ListFiles(s.T(), dir))

	s.Equal([]string{
		"Name,x,y,Type,demand,inflow,state,policy,description",
		"Units,,,,,m^3,,,",
		`reservoir,1,2,storage,array_NODE_demand.csv,timeseries_NODE_inflow.csv,"open, staffed",unknown_values.json,`,
		"city,3,4,,,,closed,,demand centre",
	}, testutil.ReadLines(s.T(), filepath.Join(dir, NodesFile)))

	s.Equal([]string{
		"ID,Name,Type,Projection,Nodes,Links,Groups,Rules,budget,Description",
		"Units,,,,,,,,GBP,",
		"7,River Basin,basin,,nodes.csv,links.csv,groups.csv,,250,",
	}, testutil.ReadLines(s.T(), filepath.Join(dir, NetworkFile)))

	s.Equal([]string{"Name,capacity", "canal,(source;survey)"},
		testutil.ReadLines(s.T(), filepath.Join(dir, "links_metadata.csv")))
	s.Equal([]string{"Name,Type,Member", "supply,NODE,reservoir", "supply,LINK,canal"},
		testutil.ReadLines(s.T(), filepath.Join(dir, GroupMembersFile)))
	s.Equal([]string{"reservoir,2 2,1,2,3,4"},
		testutil.ReadLines(s.T(), filepath.Join(dir, "array_NODE_demand.csv")))
}

func (s *PipelineTestSuite) TestExportAllScenarios() {
	result, err := s.exporter().Export(s.Context(), sampleDocument(), ExportOptions{OutputDir: s.TempDir()})
	s.Require().NoError(err)
	s.Len(result.ScenarioDirs, 2)
	s.DirExists(filepath.Join(result.NetworkDir, "Dry_year"))
	s.Empty(result.Warnings)
	s.Contains(result.Files, filepath.Join(result.NetworkDir, "Dry_year", NodesFile))
}

func (s *PipelineTestSuite) TestExportSuffixesExistingDirectory() {
	opts := ExportOptions{OutputDir: s.TempDir(), ScenarioName: "Dry year"}
	first, err := s.exporter().Export(s.Context(), sampleDocument(), opts)
	s.Require().NoError(err)
	second, err := s.exporter().Export(s.Context(), sampleDocument(), opts)
	s.Require().NoError(err)

	s.NotEqual(first.NetworkDir, second.NetworkDir)
	s.Equal(first.NetworkDir+"(1)", second.NetworkDir)
}

func (s *PipelineTestSuite) TestExportUnknownScenario() {
	_, err := s.exporter().Export(s.Context(), sampleDocument(), ExportOptions{
		OutputDir:    s.TempDir(),
		ScenarioName: "Wet year",
	})
	s.Require().Error(err)
	s.True(cerrors.IsType(err, cerrors.ErrorTypeNotFound))
}

func (s *PipelineTestSuite) TestExportMissingOutputDir() {
	_, err := s.exporter().Export(s.Context(), sampleDocument(), ExportOptions{
		OutputDir: filepath.Join(s.TempDir(), "missing"),
	})
	s.Require().Error(err)
	s.True(cerrors.IsType(err, cerrors.ErrorTypeFile))
}

func (s *PipelineTestSuite) TestRoundTrip() {
	exported, err := s.exporter().Export(s.Context(), sampleDocument(), ExportOptions{
		OutputDir:    s.TempDir(),
		ScenarioName: "Base case",
	})
	s.Require().NoError(err)

	result, err := s.importer().Import(s.Context(), ImportOptions{Dir: exported.ScenarioDirs[0]})
	s.Require().NoError(err)
	doc := result.Document

	s.Equal("River Basin", doc.Network.Name)
	s.Equal([]string{"basin"}, doc.Network.Types)
	s.Require().Len(doc.Network.Nodes, 2)
	s.Equal("reservoir", doc.Network.Nodes[0].Name)
	s.Equal("demand centre", doc.Network.Nodes[1].Description)
	s.Require().Len(doc.Network.Links, 1)
	s.Equal(doc.Network.Nodes[1].ID, doc.Network.Links[0].Node2ID)
	s.Require().Len(doc.Network.Scenarios, 1)
	scenario := doc.Network.Scenarios[0]
	s.Equal("Base case", scenario.Name)
	s.Len(scenario.GroupItems, 2)

	values := datasetsByResource(doc)
	s.Equal("250", values["River Basin/budget"].Value)
	s.Equal("GBP", values["River Basin/budget"].Unit)
	s.Equal(models.KindArray, values["reservoir/demand"].Kind)
	s.Equal("[[1,2],[3,4]]", values["reservoir/demand"].Value)
	s.Equal(models.KindTimeSeries, values["reservoir/inflow"].Kind)
	s.JSONEq(inflow, values["reservoir/inflow"].Value)
	s.Equal("m^3", values["reservoir/inflow"].Unit)
	s.Equal("open, staffed", values["reservoir/state"].Value)
	s.Equal(models.KindUnknown, values["reservoir/policy"].Kind)
	s.Equal("pywr_parameter", values["reservoir/policy"].TypeName)
	s.JSONEq(`{"type":"constant"}`, values["reservoir/policy"].Value)

	capacity := values["canal/capacity"]
	s.Equal("12.5", capacity.Value)
	source, ok := capacity.Metadata.Get("source")
	s.True(ok)
	s.Equal("survey", source)
}

func (s *PipelineTestSuite) TestImportAppliesUnitFactor() {
	s.WriteFile(NodesFile, "Name,x,y,Type,volume,description\nUnits,,,,1000 m^3,\nlake,0,0,,2,\n")

	result, err := s.importer().Import(s.Context(), ImportOptions{Dir: s.TempDir(), ScenarioName: "S"})
	s.Require().NoError(err)

	ds := datasetsByResource(result.Document)["lake/volume"]
	s.Require().NotNil(ds)
	s.Equal("2000", ds.Value)
	s.Equal("m^3", ds.Unit)
	s.Contains(result.Warnings, "no network file found")
}

func (s *PipelineTestSuite) TestImportChecksRestrictions() {
	s.WriteFile(NodesFile, "Name,x,y,Type,volume,description\nlake,0,0,,-2,\n")

	_, err := s.importer().Import(s.Context(), ImportOptions{
		Dir:          s.TempDir(),
		Restrictions: map[string]schema.Restrictions{"volume": {"GREATERTHAN": 0.0}},
	})
	s.Require().Error(err)
	s.True(cerrors.IsType(err, cerrors.ErrorTypeValidation))
}

func (s *PipelineTestSuite) TestImportReportsEveryInvalidValue() {
	s.WriteFile(NodesFile, "Name,x,y,Type,volume,description\nlake,0,0,,-2,\npond,0,0,,3,\nmarsh,0,0,,-5,\n")
	collector := metrics.NewCollector()
	importer := NewImporter(codec.Options{ExpandFilenames: true}, collector, nil, s.Logger())

	_, err := importer.Import(s.Context(), ImportOptions{
		Dir:          s.TempDir(),
		Restrictions: map[string]schema.Restrictions{"volume": {"GREATERTHAN": 0.0}},
	})
	s.Require().Error(err)
	s.True(cerrors.IsType(err, cerrors.ErrorTypeValidation))
	var ce *cerrors.Error
	s.Require().True(cerrors.As(err, &ce))
	s.Equal(2, ce.Detail("invalid"))

	counts, err := collector.Counts()
	s.Require().NoError(err)
	s.Equal(float64(2), counts["errors_total{validation}"])
	s.Equal(float64(1), counts["datasets_total{import,scalar}"])
}

func (s *PipelineTestSuite) TestImportRejectsUnknownLinkNode() {
	s.WriteFile(NodesFile, "Name,x,y,Type,description\na,0,0,,\n")
	s.WriteFile(LinksFile, "Name,from,to,Type,description\nab,a,b,,\n")

	_, err := s.importer().Import(s.Context(), ImportOptions{Dir: s.TempDir()})
	s.Require().Error(err)
	s.True(cerrors.IsType(err, cerrors.ErrorTypeNotFound))
}

func (s *PipelineTestSuite) TestImportRejectsDuplicateHeader() {
	s.WriteFile(NodesFile, "Name,x,y,Type,volume,volume,description\nlake,0,0,,1,2,\n")

	_, err := s.importer().Import(s.Context(), ImportOptions{Dir: s.TempDir()})
	s.Require().Error(err)
	s.True(cerrors.IsType(err, cerrors.ErrorTypeValidation))
}

func (s *PipelineTestSuite) TestTracingAndMetrics() {
	var spans bytes.Buffer
	tracer, err := observability.NewTracer(observability.TracingConfig{
		Enabled:     true,
		ServiceName: "shapecsv-test",
		Output:      &spans,
	})
	s.Require().NoError(err)
	defer tracer.Shutdown(s.Context())
	collector := metrics.NewCollector()

	exporter := NewExporter(codec.Options{}, collector, tracer, s.Logger())
	_, err = exporter.Export(s.Context(), sampleDocument(), ExportOptions{
		OutputDir:    s.TempDir(),
		ScenarioName: "Base case",
	})
	s.Require().NoError(err)

	s.Contains(spans.String(), "shapecsv.export.scenario")
	counts, err := collector.Counts()
	s.Require().NoError(err)
	s.Equal(float64(1), counts["datasets_total{export,timeseries}"])
	s.Equal(float64(1), counts["data_files_total{array}"])
}

func datasetsByResource(doc *models.Document) map[string]*models.Dataset {
	names := doc.AttributeNames()
	owner := make(map[int64]string)
	add := func(resource string, attrs []models.ResourceAttribute) {
		for _, ra := range attrs {
			owner[ra.ID] = resource + "/" + names[ra.AttrID]
		}
	}
	add(doc.Network.Name, doc.Network.Attributes)
	for _, n := range doc.Network.Nodes {
		add(n.Name, n.Attributes)
	}
	for _, l := range doc.Network.Links {
		add(l.Name, l.Attributes)
	}
	for _, g := range doc.Network.Groups {
		add(g.Name, g.Attributes)
	}

	out := make(map[string]*models.Dataset)
	for _, sc := range doc.Network.Scenarios {
		for _, rs := range sc.ResourceScenarios {
			out[owner[rs.ResourceAttrID]] = rs.Dataset
		}
	}
	return out
}

func TestMetadataCells(t *testing.T) {
	m := parseMetadata("(source;survey)(year; 2020)")
	assert.Equal(t, []string{"source", "year"}, m.Keys())
	assert.Equal(t, "(source;survey)(year;2020)", formatMetadata(m))
	assert.Zero(t, parseMetadata("").Len())
}

func TestDirName(t *testing.T) {
	assert.Equal(t, "River_Basin", dirName(" River Basin "))
}
