package models

// RefKey identifies the kind of network element a resource attribute hangs off.
type RefKey string

const (
	RefNetwork RefKey = "NETWORK"
	RefNode    RefKey = "NODE"
	RefLink    RefKey = "LINK"
	RefGroup   RefKey = "GROUP"
)

// Attribute is a named property definition shared across resources.
type Attribute struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ResourceAttribute is an attribute slot on one resource.
type ResourceAttribute struct {
	ID     int64  `json:"id"`
	AttrID int64  `json:"attr_id"`
	RefKey RefKey `json:"ref_key"`
}

// Node is a network node.
type Node struct {
	ID          int64               `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	X           string              `json:"x,omitempty"`
	Y           string              `json:"y,omitempty"`
	Types       []string            `json:"types,omitempty"`
	Attributes  []ResourceAttribute `json:"attributes,omitempty"`
}

// Link connects two nodes.
type Link struct {
	ID          int64               `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Node1ID     int64               `json:"node_1_id"`
	Node2ID     int64               `json:"node_2_id"`
	Types       []string            `json:"types,omitempty"`
	Attributes  []ResourceAttribute `json:"attributes,omitempty"`
}

// Group is a named collection of nodes, links and other groups.
type Group struct {
	ID          int64               `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Types       []string            `json:"types,omitempty"`
	Attributes  []ResourceAttribute `json:"attributes,omitempty"`
}

// GroupItem places one member into a group for a scenario. Exactly one of
// NodeID, LinkID or SubGroupID is set, as selected by RefKey.
type GroupItem struct {
	GroupID    int64  `json:"group_id"`
	RefKey     RefKey `json:"ref_key"`
	NodeID     int64  `json:"node_id,omitempty"`
	LinkID     int64  `json:"link_id,omitempty"`
	SubGroupID int64  `json:"subgroup_id,omitempty"`
}

// ResourceScenario binds a dataset to a resource attribute within a scenario.
type ResourceScenario struct {
	ResourceAttrID int64    `json:"resource_attr_id"`
	AttrID         int64    `json:"attr_id"`
	Dataset        *Dataset `json:"dataset,omitempty"`
}

// Scenario is one set of values for a network's resource attributes.
type Scenario struct {
	ID                int64              `json:"id"`
	Name              string             `json:"name"`
	StartTime         string             `json:"start_time,omitempty"`
	EndTime           string             `json:"end_time,omitempty"`
	TimeStep          string             `json:"time_step,omitempty"`
	ResourceScenarios []ResourceScenario `json:"resourcescenarios,omitempty"`
	GroupItems        []GroupItem        `json:"resourcegroupitems,omitempty"`
}

// HasTimeRange reports whether start, end and step are all set.
func (s *Scenario) HasTimeRange() bool {
	return s.StartTime != "" && s.EndTime != "" && s.TimeStep != ""
}

// Lookup indexes resource scenarios by resource attribute ID.
func (s *Scenario) Lookup() map[int64]*ResourceScenario {
	out := make(map[int64]*ResourceScenario, len(s.ResourceScenarios))
	for i := range s.ResourceScenarios {
		rs := &s.ResourceScenarios[i]
		out[rs.ResourceAttrID] = rs
	}
	return out
}

// Network is the root of an exported or imported model.
type Network struct {
	ID          int64               `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Projection  string              `json:"projection,omitempty"`
	Types       []string            `json:"types,omitempty"`
	Attributes  []ResourceAttribute `json:"attributes,omitempty"`
	Nodes       []Node              `json:"nodes,omitempty"`
	Links       []Link              `json:"links,omitempty"`
	Groups      []Group             `json:"resourcegroups,omitempty"`
	Scenarios   []Scenario          `json:"scenarios,omitempty"`
}

// Document is the on-disk form of a network together with the attribute
// definitions its resource attributes refer to.
type Document struct {
	Attributes []Attribute `json:"attributes"`
	Network    Network     `json:"network"`
}

// AttributeNames maps attribute IDs to names.
func (d *Document) AttributeNames() map[int64]string {
	out := make(map[int64]string, len(d.Attributes))
	for _, a := range d.Attributes {
		out[a.ID] = a.Name
	}
	return out
}

// FirstType returns the first type name, or "" when there is none.
func FirstType(types []string) string {
	if len(types) == 0 {
		return ""
	}
	return types[0]
}
