// Package pipeline moves whole networks between JSON documents and CSV
// directories.
//
// # Layout
//
// An exported scenario directory holds one file per resource kind:
//
//	network.csv        ID, Name, Type, Projection, Nodes, Links, Groups, Rules, <attributes>, Description
//	nodes.csv          Name, x, y, Type, <attributes>, description
//	links.csv          Name, from, to, Type, <attributes>, description
//	groups.csv         Name, Type, Members, <attributes>, description
//	group_members.csv  Name, Type, Member
//
// The second line of each resource file is the Units row. Attribute cells
// hold scalars and descriptors directly; arrays, dataframes and timeseries
// live in data files next to the resource files and the cell names the data
// file. Dataset metadata is written to <file>_metadata.csv as (key;value)
// pairs.
//
// # Usage
//
//	exporter := pipeline.NewExporter(opts, collector, tracer, logger)
//	result, err := exporter.Export(ctx, doc, pipeline.ExportOptions{OutputDir: "out"})
//
//	importer := pipeline.NewImporter(opts, collector, tracer, logger)
//	imported, err := importer.Import(ctx, pipeline.ImportOptions{Dir: result.ScenarioDirs[0]})
//
// Each Export or Import call runs one codec session; caches never outlive
// the call.
package pipeline
