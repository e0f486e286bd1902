package ribx

import "encoding/xml"

// Namespaces that occur in GWSW.Ribx documents. The gml namespace
// carries point geometries; the legacy GWSW namespace qualifies field
// tags in older documents.
const (
	gmlNamespace  = "http://www.opengis.net/gml"
	ribxNamespace = "http://www.ribx.nl/gwsw"
)

// Mode selects which side of the exchange a document represents.
// Occurrence rules for inspection-result fields depend on it.
type Mode int

const (
	// PreInspection is the ordering party's side: planned work only,
	// inspection-result fields are forbidden.
	PreInspection Mode = iota + 1
	// Inspection is the contractor's side: completed work,
	// inspection-result fields are mandatory.
	Inspection
)

func (m Mode) String() string {
	switch m {
	case PreInspection:
		return "pre-inspection"
	case Inspection:
		return "inspection"
	default:
		return "unknown mode"
	}
}

// ElementKind identifies one of the five sewer element kinds a ribx
// document can carry.
type ElementKind int

const (
	KindInspectionPipe ElementKind = iota
	KindCleaningPipe
	KindInspectionManhole
	KindCleaningManhole
	KindDrain
)

// kindInfo carries the per-kind schema constants: the element tag, the
// video capability and the work-impossible code table.
type kindInfo struct {
	tag      string
	hasVideo bool
	reasons  map[string]string
}

// Reason codes for the ?XD "work impossible" field. Pipes use a
// smaller table than manholes and drains.
var pipeReasons = map[string]string{
	"A": "Opdracht gedeeltelijk uitgevoerd",
	"B": "Opdracht niet uitgevoerd",
	"Z": "Andere reden",
}

var manholeReasons = map[string]string{
	"A": "Geen toegang tot de locatie",
	"B": "Object niet aangetroffen",
	"C": "Object niet bereikbaar",
	"D": "Object niet toegankelijk",
	"E": "Onderzoek niet mogelijk door weersomstandigheden",
	"Z": "Andere reden",
}

var kindTable = map[ElementKind]kindInfo{
	KindInspectionPipe:    {tag: "ZB_A", hasVideo: true, reasons: pipeReasons},
	KindCleaningPipe:      {tag: "ZB_G", hasVideo: true, reasons: pipeReasons},
	KindInspectionManhole: {tag: "ZB_C", hasVideo: true, reasons: manholeReasons},
	KindCleaningManhole:   {tag: "ZB_J", hasVideo: true, reasons: manholeReasons},
	KindDrain:             {tag: "ZB_E", reasons: manholeReasons},
}

// Tag returns the element tag of the kind, e.g. "ZB_A".
func (k ElementKind) Tag() string {
	return kindTable[k].tag
}

func (k ElementKind) String() string {
	return kindTable[k].tag
}

// prefix is the schema prefix field tags are built with: the last
// character of the kind tag ("A" for ZB_A, "E" for ZB_E, ...).
func (k ElementKind) prefix() string {
	tag := kindTable[k].tag
	return tag[len(tag)-1:]
}

// fieldTag resolves a two-letter field code to the concrete tag name
// for this kind, e.g. ("AA", KindInspectionPipe) -> "AAA".
func (k ElementKind) fieldTag(code string) string {
	return k.prefix() + code
}

// fieldCandidates returns the tag names to try for a field code, in
// preference order: the modern unqualified tag first, then the same
// local name qualified with the legacy GWSW namespace.
func (k ElementKind) fieldCandidates(code string) []xml.Name {
	tag := k.fieldTag(code)
	return []xml.Name{
		{Local: tag},
		{Space: ribxNamespace, Local: tag},
	}
}

// stubKind is the kind a pipe's owned manhole stubs are created as.
func (k ElementKind) stubKind() ElementKind {
	if k == KindCleaningPipe {
		return KindCleaningManhole
	}
	return KindInspectionManhole
}
