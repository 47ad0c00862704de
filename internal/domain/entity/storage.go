package entity

import "strconv"

// StoragePath is a dot-delimited vstorage key, e.g. "published.vaultFactory.managers.manager0".
type StoragePath string

// Child returns the path one level below p.
func (p StoragePath) Child(segment string) StoragePath {
	if p == "" {
		return StoragePath(segment)
	}
	return StoragePath(string(p) + "." + segment)
}

// Indexed returns the child named prefix+index, e.g. Indexed("vault", 3) -> "<p>.vault3".
func (p StoragePath) Indexed(prefix string, index int) StoragePath {
	return p.Child(prefix + strconv.Itoa(index))
}

func (p StoragePath) String() string {
	return string(p)
}

// QueryKind selects which vstorage endpoint a query hits.
type QueryKind string

const (
	// QueryData reads the terminal value stored at a path.
	QueryData QueryKind = "data"
	// QueryChildren lists the child segments of a path.
	QueryChildren QueryKind = "children"
)

const abciPathPrefix = "/custom/vstorage/"

// StorageQuery is one abci_query against vstorage. It is also the memoization key.
type StorageQuery struct {
	Kind QueryKind
	Path StoragePath
}

// DataQuery builds a data query for path.
func DataQuery(path StoragePath) StorageQuery {
	return StorageQuery{Kind: QueryData, Path: path}
}

// ChildrenQuery builds a children query for path.
func ChildrenQuery(path StoragePath) StorageQuery {
	return StorageQuery{Kind: QueryChildren, Path: path}
}

// ABCIPath returns the path passed to abci_query, e.g. "/custom/vstorage/data/published.reserve.metrics".
func (q StorageQuery) ABCIPath() string {
	return abciPathPrefix + string(q.Kind) + "/" + string(q.Path)
}

// CacheKey is the string form used by the per-run query cache.
func (q StorageQuery) CacheKey() string {
	return string(q.Kind) + ":" + string(q.Path)
}

// StorageNode is the decoded abci_query payload: either a terminal value or a child list.
type StorageNode struct {
	Value    string   `json:"value,omitempty"`
	Children []string `json:"children,omitempty"`
}

// IsEmpty reports whether the node carries neither a value nor children.
func (n StorageNode) IsEmpty() bool {
	return n.Value == "" && len(n.Children) == 0
}

// HasChildren reports whether the node carries a child list, possibly empty.
func (n StorageNode) HasChildren() bool {
	return n.Children != nil
}

// Missing reports whether the node means "nothing stored" for a query of the given kind.
// An explicit empty child list is a valid answer to a children query.
func (n StorageNode) Missing(kind QueryKind) bool {
	if kind == QueryChildren && n.HasChildren() {
		return false
	}
	return n.IsEmpty()
}

// StorageStats counts the work done by one storage session.
type StorageStats struct {
	Calls    int64 // network calls, retries included
	Hits     int64 // answered from the query cache
	NotFound int64
}
