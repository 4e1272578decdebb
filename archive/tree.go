package archive

// treeNode is one archive tree entry: either a full node (uuid,
// description, children, fields) or, for an already-emitted shared
// node, a stub carrying only the uuid (§4.F step 2, §6.2).
type treeNode struct {
	UUID        string              `json:"uuid"`
	Description string              `json:"description,omitempty"`
	Children    map[string]classTree `json:"children,omitempty"`
	Fields      map[string]any      `json:"fields,omitempty"`
}

// classTree is a one-entry map keyed by class name, the unit the
// index tree nests at every level (§6.2 "a nested tree keyed by class
// name at each level").
type classTree map[string]treeNode

func (c classTree) single() (class string, node treeNode, ok bool) {
	for k, v := range c {
		return k, v, true
	}
	return "", treeNode{}, false
}
