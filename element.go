package ribx

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// ErrorKind classifies what went wrong while extracting a field.
type ErrorKind int

const (
	MissingField ErrorKind = iota + 1
	UnexpectedField
	DuplicateField
	InvalidValue
	UnknownCode
	InconsistentReference
)

func (k ErrorKind) String() string {
	switch k {
	case MissingField:
		return "missing field"
	case UnexpectedField:
		return "unexpected field"
	case DuplicateField:
		return "duplicate field"
	case InvalidValue:
		return "invalid value"
	case UnknownCode:
		return "unknown code"
	case InconsistentReference:
		return "inconsistent reference"
	default:
		return "parse error"
	}
}

// ParseError describes why a single element was rejected. Expr is the
// field expression that was being evaluated when the check failed.
type ParseError struct {
	Kind ErrorKind
	Expr string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// elementParser turns one XML element into one domain model instance.
// It runs once per element; any failed check aborts this element only.
type elementParser struct {
	kind ElementKind
	mode Mode
	node *node
}

func (p *elementParser) fail(kind ErrorKind, expr, format string, args ...any) *ParseError {
	return &ParseError{
		Kind: kind,
		Expr: expr,
		Line: p.node.line,
		Msg:  fmt.Sprintf(format, args...),
	}
}

// find returns the child nodes for a field code. Modern unqualified
// tags win; the legacy namespaced tag is only consulted when no modern
// match exists.
func (p *elementParser) find(code string) []*node {
	for _, name := range p.kind.fieldCandidates(code) {
		if nodes := p.node.childrenNamed(name); len(nodes) > 0 {
			return nodes
		}
	}
	return nil
}

// childField resolves an unprefixed tag (ZC and its children) with the
// same modern-then-legacy preference as find.
func childField(n *node, local string) []*node {
	if nodes := n.childrenNamed(xml.Name{Local: local}); len(nodes) > 0 {
		return nodes
	}
	return n.childrenNamed(xml.Name{Space: ribxNamespace, Local: local})
}

// required extracts a mandatory field and the line it occurred on.
func (p *elementParser) required(code string) (string, int, *ParseError) {
	expr := p.kind.fieldTag(code)
	nodes := p.find(code)
	if len(nodes) == 0 {
		return "", 0, p.fail(MissingField, expr, "expected %s record", expr)
	}
	value := nodes[0].text()
	if value == "" {
		return "", 0, p.fail(MissingField, expr, "%s record is empty", expr)
	}
	return value, nodes[0].line, nil
}

// optional extracts a field that may occur at most once in any mode.
func (p *elementParser) optional(code string) (string, bool, *ParseError) {
	expr := p.kind.fieldTag(code)
	nodes := p.find(code)
	switch {
	case len(nodes) == 0:
		return "", false, nil
	case len(nodes) > 1:
		return "", false, p.fail(DuplicateField, expr, "maxOccurs = 1, found %d", len(nodes))
	}
	return nodes[0].text(), true, nil
}

// gated applies the mode-conditional occurrence discipline shared by
// the inspection-result fields: forbidden in pre-inspection, at most
// one (exactly one when required) in inspection.
func (p *elementParser) gated(code string, requiredField bool) (string, bool, *ParseError) {
	expr := p.kind.fieldTag(code)
	nodes := p.find(code)
	if p.mode == PreInspection {
		if len(nodes) != 0 {
			return "", false, p.fail(UnexpectedField, expr, "maxOccurs = 0 in %s", p.mode)
		}
		return "", false, nil
	}
	if requiredField && len(nodes) < 1 {
		return "", false, p.fail(MissingField, expr, "minOccurs = 1 in %s", p.mode)
	}
	if len(nodes) > 1 {
		return "", false, p.fail(DuplicateField, expr, "maxOccurs = 1 in %s", p.mode)
	}
	if len(nodes) == 0 {
		return "", false, nil
	}
	return nodes[0].text(), true, nil
}

// point extracts an optional gml point from a field's sub-tree. A
// missing tag or sub-tree is not an error; a malformed coordinate
// pair is.
func (p *elementParser) point(code string) (*orb.Point, *ParseError) {
	expr := p.kind.fieldTag(code) + "/gml:Point/gml:pos"
	nodes := p.find(code)
	if len(nodes) == 0 {
		return nil, nil
	}
	points := nodes[0].childrenNamed(xml.Name{Space: gmlNamespace, Local: "Point"})
	if len(points) == 0 {
		return nil, nil
	}
	positions := points[0].childrenNamed(xml.Name{Space: gmlNamespace, Local: "pos"})
	if len(positions) == 0 {
		return nil, nil
	}
	fields := strings.Fields(positions[0].text())
	if len(fields) != 2 {
		return nil, p.fail(InvalidValue, expr, "expected two coordinates, got %q", positions[0].text())
	}
	x, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return nil, p.fail(InvalidValue, expr, "invalid coordinate %q", fields[0])
	}
	y, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return nil, p.fail(InvalidValue, expr, "invalid coordinate %q", fields[1])
	}
	return &orb.Point{x, y}, nil
}

// inspectionDate extracts the ?BF date under the mode gate and merges
// in the optional ?BG time.
func (p *elementParser) inspectionDate() (*time.Time, *ParseError) {
	dateText, hasDate, perr := p.gated("BF", true)
	if perr != nil {
		return nil, perr
	}
	timeText, hasTime, perr := p.gated("BG", false)
	if perr != nil {
		return nil, perr
	}
	if !hasDate {
		return nil, nil
	}
	day, err := time.Parse("2006-1-2", dateText)
	if err != nil {
		return nil, p.fail(InvalidValue, p.kind.fieldTag("BF"), "invalid date %q", dateText)
	}
	if !hasTime {
		return &day, nil
	}
	clock, err := time.Parse("15:4:5", timeText)
	if err != nil {
		return nil, p.fail(InvalidValue, p.kind.fieldTag("BG"), "invalid time %q", timeText)
	}
	merged := time.Date(day.Year(), day.Month(), day.Day(),
		clock.Hour(), clock.Minute(), clock.Second(), 0, time.UTC)
	return &merged, nil
}

// workImpossible extracts the ?XD reason code and composes the final
// explanation from the fixed code table, the ?DE attribute on the XD
// tag and the separate ?DE tag.
func (p *elementParser) workImpossible() (string, *ParseError) {
	expr := p.kind.fieldTag("XD")
	nodes := p.find("XD")
	if len(nodes) == 0 {
		return "", nil
	}
	if len(nodes) > 1 {
		return "", p.fail(DuplicateField, expr, "maxOccurs = 1, found %d", len(nodes))
	}
	xd := nodes[0]
	code := xd.text()
	explanation, known := kindTable[p.kind].reasons[code]
	if !known {
		return "", p.fail(UnknownCode, expr, "unknown reason code %q", code)
	}

	attrName := p.kind.fieldTag("DE")
	attrText, _ := xd.attr(attrName)
	tagText, _, perr := p.optional("DE")
	if perr != nil {
		return "", perr
	}

	hasExplanation := attrText != "" || tagText != ""
	if code == "Z" && !hasExplanation {
		return "", p.fail(MissingField, attrName, "reason code Z requires an explanation")
	}
	if code != "Z" && hasExplanation {
		return "", p.fail(UnexpectedField, attrName, "explanation is only allowed with reason code Z")
	}

	composed := fmt.Sprintf("%s (%s)\n%s\n%s", explanation, code, attrText, tagText)
	return strings.TrimSpace(composed), nil
}

// observations extracts the nested ZC records. Any occurrence is an
// error in pre-inspection mode.
func (p *elementParser) observations(el *SewerElement) *ParseError {
	nodes := childField(p.node, "ZC")
	if p.mode == PreInspection {
		if len(nodes) != 0 {
			return p.fail(UnexpectedField, "ZC", "maxOccurs = 0 in %s", p.mode)
		}
		return nil
	}
	for _, zc := range nodes {
		obs, perr := p.parseObservation(zc)
		if perr != nil {
			return perr
		}
		el.Observations = append(el.Observations, *obs)
		for _, name := range obs.Media {
			// Validated by parseObservation.
			el.Media[name] = struct{}{}
		}
	}
	return nil
}

func (p *elementParser) parseObservation(zc *node) (*Observation, *ParseError) {
	obs := &Observation{}
	if codes := childField(zc, "A"); len(codes) > 0 {
		obs.Code = codes[0].text()
	}
	if distances := childField(zc, "I"); len(distances) > 0 {
		value, err := strconv.ParseFloat(distances[0].text(), 64)
		if err != nil {
			return nil, p.fail(InvalidValue, "ZC/I", "invalid distance %q", distances[0].text())
		}
		obs.Distance = &value
	}
	for _, video := range childField(zc, "M") {
		// A trailing annotation after '|' is not part of the filename.
		name := strings.TrimSpace(strings.SplitN(video.text(), "|", 2)[0])
		if err := CheckFilename(name); err != nil {
			return nil, p.fail(InvalidValue, "ZC/M", "%v", err)
		}
		obs.Media = append(obs.Media, name)
	}
	for _, photo := range childField(zc, "N") {
		name := photo.text()
		if err := CheckFilename(name); err != nil {
			return nil, p.fail(InvalidValue, "ZC/N", "%v", err)
		}
		obs.Media = append(obs.Media, name)
	}
	return obs, nil
}

// element extracts the fields every kind starts with: the mandatory
// reference and the mode-gated inspection date.
func (p *elementParser) element() (SewerElement, *ParseError) {
	el := newSewerElement(p.kind)
	ref, line, perr := p.required("AA")
	if perr != nil {
		return el, perr
	}
	el.Ref = ref
	el.SourceLine = line

	date, perr := p.inspectionDate()
	if perr != nil {
		return el, perr
	}
	el.InspectionDate = date
	return el, nil
}

// finish extracts the fields every kind ends with: ownership, video,
// work-impossible reason, new marker and observations.
func (p *elementParser) finish(el *SewerElement) *ParseError {
	owner, _, perr := p.optional("AQ")
	if perr != nil {
		return perr
	}
	el.Owner = owner

	if kindTable[p.kind].hasVideo {
		video, hasVideo, perr := p.gated("BS", false)
		if perr != nil {
			return perr
		}
		if hasVideo {
			if err := el.Media.Add(video); err != nil {
				return p.fail(InvalidValue, p.kind.fieldTag("BS"), "%v", err)
			}
		}
	}

	impossible, perr := p.workImpossible()
	if perr != nil {
		return perr
	}
	el.WorkImpossible = impossible

	el.New = len(p.find("XC")) > 0

	return p.observations(el)
}

func (p *elementParser) manholeStub(refCode, geomCode string) (*Manhole, *ParseError) {
	ref, line, perr := p.required(refCode)
	if perr != nil {
		return nil, perr
	}
	geom, perr := p.point(geomCode)
	if perr != nil {
		return nil, perr
	}
	stub := &Manhole{SewerElement: newSewerElement(p.kind.stubKind()), Geom: geom}
	stub.Ref = ref
	stub.SourceLine = line
	return stub, nil
}

func (p *elementParser) parsePipe() (*Pipe, *ParseError) {
	el, perr := p.element()
	if perr != nil {
		return nil, perr
	}
	pipe := &Pipe{SewerElement: el}

	if pipe.Manhole1, perr = p.manholeStub("AD", "AE"); perr != nil {
		return nil, perr
	}
	if pipe.Manhole2, perr = p.manholeStub("AF", "AG"); perr != nil {
		return nil, perr
	}

	// A started inspection must record which end it started from.
	if p.kind == KindInspectionPipe && p.mode == Inspection {
		start, _, perr := p.required("AB")
		if perr != nil {
			return nil, perr
		}
		if start != pipe.Manhole1.Ref && start != pipe.Manhole2.Ref {
			return nil, p.fail(InconsistentReference, p.kind.fieldTag("AB"),
				"start manhole %q is not one of %q and %q", start, pipe.Manhole1.Ref, pipe.Manhole2.Ref)
		}
		pipe.ManholeStart = start
	}

	if perr := p.finish(&pipe.SewerElement); perr != nil {
		return nil, perr
	}
	return pipe, nil
}

func (p *elementParser) parseManhole() (*Manhole, *ParseError) {
	el, perr := p.element()
	if perr != nil {
		return nil, perr
	}
	geom, perr := p.point("AB")
	if perr != nil {
		return nil, perr
	}
	manhole := &Manhole{SewerElement: el, Geom: geom}
	if perr := p.finish(&manhole.SewerElement); perr != nil {
		return nil, perr
	}
	return manhole, nil
}

func (p *elementParser) parseDrain() (*Drain, *ParseError) {
	el, perr := p.element()
	if perr != nil {
		return nil, perr
	}
	geom, perr := p.point("AB")
	if perr != nil {
		return nil, perr
	}
	drain := &Drain{SewerElement: el, Geom: geom}
	if perr := p.finish(&drain.SewerElement); perr != nil {
		return nil, perr
	}
	return drain, nil
}
