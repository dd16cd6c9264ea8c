package kv

import "fmt"

// Sub-database (bucket) names for the on-disk layout. Declared in
// one place so the record store, catalog, and index manager agree on
// naming, in the spirit of erigon-lib/kv/tables.go's central table
// registry.
const (
	TableNodes              = "nodes"
	TableRelationships      = "relationships"
	TableProperties         = "properties"
	TableLabels             = "labels"
	TableLabelNames         = "label_names"
	TableTypes              = "types"
	TableTypeNames          = "type_names"
	TableKeys               = "keys"
	TableKeyNames           = "key_names"
	TableConstraints        = "constraints"
	TableConstraintIDToKey  = "constraint_id_to_key"
	TableNodeCounts         = "node_counts"
	TableRelCounts          = "rel_counts"
	TableLabelIndex         = "index_label"
	TableTypeIndex          = "index_type"
	TablePropertyIndexPrefix = "index_prop_"
	TableMeta               = "meta"
	TableIndexRegistry      = "index_registry"
)

// PropertyIndexTable names the bucket backing the B-tree property index
// declared on (labelID, keyID).
func PropertyIndexTable(labelID, keyID uint32) string {
	return fmt.Sprintf("%s%d_%d", TablePropertyIndexPrefix, labelID, keyID)
}

// CoreTables lists every sub-database the engine creates at open time,
// excluding per-declaration property indexes (created on demand by
// CREATE INDEX).
var CoreTables = []string{
	TableNodes,
	TableRelationships,
	TableProperties,
	TableLabels,
	TableLabelNames,
	TableTypes,
	TableTypeNames,
	TableKeys,
	TableKeyNames,
	TableConstraints,
	TableConstraintIDToKey,
	TableNodeCounts,
	TableRelCounts,
	TableLabelIndex,
	TableTypeIndex,
	TableMeta,
	TableIndexRegistry,
}
