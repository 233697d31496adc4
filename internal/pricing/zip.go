package pricing

// ZipStatus classifies an address by service area.
type ZipStatus string

// ZIP classifications.
const (
	ZipIncluded ZipStatus = "included"
	ZipExcluded ZipStatus = "excluded"
	ZipUnknown  ZipStatus = "unknown"
	ZipInvalid  ZipStatus = "invalid"
)

const zipPrefixLen = 3

// ServiceAreaTable holds the 3-digit ZIP prefixes the business serves and the
// ones it explicitly does not.
type ServiceAreaTable struct {
	included map[string]struct{}
	excluded map[string]struct{}
}

// NewServiceAreaTable builds a table from prefix lists. A prefix present in
// both lists is treated as excluded.
func NewServiceAreaTable(included, excluded []string) ServiceAreaTable {
	return ServiceAreaTable{
		included: toSet(included),
		excluded: toSet(excluded),
	}
}

// DefaultServiceAreas covers metro Atlanta, minus the downtown 303 prefix.
func DefaultServiceAreas() ServiceAreaTable {
	return NewServiceAreaTable(
		[]string{"300", "301", "302", "303", "304", "305", "306", "307", "308", "309", "310", "311", "312"},
		[]string{"303"},
	)
}

// ClassifyZip reports whether zip falls in the service area.
func (t ServiceAreaTable) ClassifyZip(zip string) ZipStatus {
	if len(zip) < 5 {
		return ZipInvalid
	}

	prefix := zip[:zipPrefixLen]
	if _, ok := t.excluded[prefix]; ok {
		return ZipExcluded
	}
	if _, ok := t.included[prefix]; ok {
		return ZipIncluded
	}
	return ZipUnknown
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}
