package schema

// Relation is a canonical, directional link type between two tickets.
type Relation string

const (
	RelationBlocks     Relation = "blocks"
	RelationBlockedBy  Relation = "blocked_by"
	RelationDuplicates Relation = "duplicates"
	RelationRelates    Relation = "relates"
	RelationDependsOn  Relation = "depends_on"
	RelationRequiredBy Relation = "required_by"
	RelationCauses     Relation = "causes"
	RelationCausedBy   Relation = "caused_by"
	RelationClones     Relation = "clones"
	RelationClonedBy   Relation = "cloned_by"
)

// remoteLink pairs the remote link-type name with a directionality
// flag: the remote schema names only the type, direction is expressed
// by which side of the link the record sits on.
type remoteLink struct {
	TypeName string
	Inward   bool
}

// relationTable is the static bidirectional lookup between canonical
// relations and remote link types.
var relationTable = map[Relation]remoteLink{
	RelationBlocks:     {"Blocks", false},
	RelationBlockedBy:  {"Blocks", true},
	RelationDuplicates: {"Duplicate", false},
	RelationRelates:    {"Relates", false},
	RelationDependsOn:  {"Dependency", false},
	RelationRequiredBy: {"Dependency", true},
	RelationCauses:     {"Problem/Incident", false},
	RelationCausedBy:   {"Problem/Incident", true},
	RelationClones:     {"Cloners", false},
	RelationClonedBy:   {"Cloners", true},
}

// inverseTable maps each relation to the relation seen from the other
// participant. Relates and duplicates are their own inverse.
var inverseTable = map[Relation]Relation{
	RelationBlocks:     RelationBlockedBy,
	RelationBlockedBy:  RelationBlocks,
	RelationDuplicates: RelationDuplicates,
	RelationRelates:    RelationRelates,
	RelationDependsOn:  RelationRequiredBy,
	RelationRequiredBy: RelationDependsOn,
	RelationCauses:     RelationCausedBy,
	RelationCausedBy:   RelationCauses,
	RelationClones:     RelationClonedBy,
	RelationClonedBy:   RelationClones,
}

// MapRelation translates a canonical relation into the remote link-type
// name plus the direction flag. Relations absent from the table default
// to an outward "Relates" link.
func MapRelation(rel Relation) (typeName string, inward bool) {
	if r, ok := relationTable[rel]; ok {
		return r.TypeName, r.Inward
	}
	return "Relates", false
}

// CanonicalRelation is the reverse lookup: remote link-type name plus
// the side of the link the local ticket sits on. Unknown types map to
// relates.
func CanonicalRelation(typeName string, inward bool) Relation {
	for rel, r := range relationTable {
		if r.TypeName == typeName && r.Inward == inward {
			return rel
		}
	}
	return RelationRelates
}

// Inverse returns the relation as seen from the other participant.
func Inverse(rel Relation) Relation {
	if inv, ok := inverseTable[rel]; ok {
		return inv
	}
	return RelationRelates
}

// KnownRelation reports whether rel is in the canonical vocabulary.
func KnownRelation(rel Relation) bool {
	_, ok := relationTable[rel]
	return ok
}
