package schema

import "strings"

// Category groups FHIR and FHIRPath types by how they compare in SQL.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryText
	CategoryNumeric
	CategoryBoolean
	CategoryDate
	CategoryDateTime
	CategoryTime
	CategoryComplex
)

// IsTemporal reports whether values of the category are compared by range.
func (c Category) IsTemporal() bool {
	return c == CategoryDate || c == CategoryDateTime || c == CategoryTime
}

var primitiveCategories = map[string]Category{
	"string":       CategoryText,
	"code":         CategoryText,
	"id":           CategoryText,
	"uri":          CategoryText,
	"url":          CategoryText,
	"canonical":    CategoryText,
	"oid":          CategoryText,
	"uuid":         CategoryText,
	"markdown":     CategoryText,
	"base64binary": CategoryText,
	"xhtml":        CategoryText,
	"integer":      CategoryNumeric,
	"integer64":    CategoryNumeric,
	"positiveint":  CategoryNumeric,
	"unsignedint":  CategoryNumeric,
	"decimal":      CategoryNumeric,
	"boolean":      CategoryBoolean,
	"date":         CategoryDate,
	"datetime":     CategoryDateTime,
	"instant":      CategoryDateTime,
	"time":         CategoryTime,
}

// NormalizeTypeName strips a System. or FHIR. namespace from a type
// specifier. System.String and FHIR.string both become their bare name.
func NormalizeTypeName(name string) string {
	for _, prefix := range []string{"System.", "FHIR."} {
		if rest, ok := strings.CutPrefix(name, prefix); ok {
			return rest
		}
	}
	return name
}

// Classify returns the comparison category of a type name. Names that are
// neither primitives nor empty are treated as complex types.
func Classify(typeName string) Category {
	if typeName == "" {
		return CategoryUnknown
	}
	if c, ok := primitiveCategories[strings.ToLower(NormalizeTypeName(typeName))]; ok {
		return c
	}
	return CategoryComplex
}

// SameType reports whether two type names denote the same type, ignoring
// namespace and the case difference between System and FHIR primitives.
func SameType(a, b string) bool {
	return strings.EqualFold(NormalizeTypeName(a), NormalizeTypeName(b))
}
