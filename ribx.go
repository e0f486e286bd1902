/*
Package ribx parses GWSW.Ribx / Ribx-A documents into an in-memory
model of the sewer pipes, manholes and storm drains they describe.

GWSW.Ribx and GWSW.Ribx-A are immature standards with arguable
deficiencies (wrong use of namespaces, gml:Point, and so on). In the
absence of a usable schema no attempt is made to validate documents;
only the information the upload workflow needs is extracted and
checked.

Parsing is tolerant: a malformed element is reported in the returned
log and skipped, and the rest of the document is still processed. Only
a document that is not well-formed XML aborts the whole parse.

	f, _ := os.Open("inspection.ribx")
	result, log := ribx.Parse(f, ribx.Inspection, logger)
	for _, entry := range log {
		fmt.Println(entry.Message)
	}
*/
package ribx

import (
	"fmt"
	"io"

	"go.uber.org/zap"
)

const levelFatal = "FATAL"

// LogEntry is one diagnostic produced during a parse. Fatal
// well-formedness entries carry Level "FATAL" and, when known, the
// position reported by the XML parser; element-local entries carry
// the element's source line and an empty level.
type LogEntry struct {
	Line    int
	Column  int
	Level   string
	Message string
}

// Parse reads a GWSW.Ribx document from r. It always returns a Ribx
// aggregate plus an ordered error log; element-level problems never
// surface as errors. A nil logger disables logging.
//
// If the document is not well-formed XML the aggregate is empty and
// the log holds exactly one fatal entry.
func Parse(r io.Reader, mode Mode, log *zap.Logger) (*Ribx, []LogEntry) {
	if log == nil {
		log = zap.NewNop()
	}

	result := &Ribx{}
	doc, fatal := parseTree(r)
	if fatal != nil {
		log.Error("document is not well-formed",
			zap.Int("line", fatal.Line),
			zap.String("message", fatal.Message))
		return result, []LogEntry{*fatal}
	}

	// The five scans run in a fixed order against the same read-only
	// tree; their logs merge in the same order.
	var entries []LogEntry
	result.InspectionPipes = collectPipes(doc, KindInspectionPipe, mode, log, &entries)
	result.CleaningPipes = collectPipes(doc, KindCleaningPipe, mode, log, &entries)
	result.InspectionManholes = collectManholes(doc, KindInspectionManhole, mode, log, &entries)
	result.CleaningManholes = collectManholes(doc, KindCleaningManhole, mode, log, &entries)
	result.Drains = collectDrains(doc, mode, log, &entries)
	return result, entries
}

// collectPipes parses every element of the given pipe kind in document
// order. A failing element is logged and skipped; it never discards
// what was already collected.
func collectPipes(doc *document, kind ElementKind, mode Mode, log *zap.Logger, entries *[]LogEntry) []*Pipe {
	var pipes []*Pipe
	for _, n := range doc.root.findAll(kind.Tag()) {
		parser := &elementParser{kind: kind, mode: mode, node: n}
		pipe, perr := parser.parsePipe()
		if perr != nil {
			*entries = append(*entries, elementEntry(kind, perr, log))
			continue
		}
		pipes = append(pipes, pipe)
	}
	return pipes
}

func collectManholes(doc *document, kind ElementKind, mode Mode, log *zap.Logger, entries *[]LogEntry) []*Manhole {
	var manholes []*Manhole
	for _, n := range doc.root.findAll(kind.Tag()) {
		parser := &elementParser{kind: kind, mode: mode, node: n}
		manhole, perr := parser.parseManhole()
		if perr != nil {
			*entries = append(*entries, elementEntry(kind, perr, log))
			continue
		}
		manholes = append(manholes, manhole)
	}
	return manholes
}

func collectDrains(doc *document, mode Mode, log *zap.Logger, entries *[]LogEntry) []*Drain {
	var drains []*Drain
	for _, n := range doc.root.findAll(KindDrain.Tag()) {
		parser := &elementParser{kind: KindDrain, mode: mode, node: n}
		drain, perr := parser.parseDrain()
		if perr != nil {
			*entries = append(*entries, elementEntry(KindDrain, perr, log))
			continue
		}
		drains = append(drains, drain)
	}
	return drains
}

func elementEntry(kind ElementKind, perr *ParseError, log *zap.Logger) LogEntry {
	message := fmt.Sprintf("Element %s has problems with %s: %s", kind.Tag(), perr.Expr, perr)
	log.Error("element skipped",
		zap.String("tag", kind.Tag()),
		zap.String("expr", perr.Expr),
		zap.Int("line", perr.Line),
		zap.String("reason", perr.Kind.String()))
	return LogEntry{Line: perr.Line, Message: message}
}
