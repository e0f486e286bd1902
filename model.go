package ribx

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/samber/lo"
)

// Ribx is the aggregate a single parse call produces. It is the sole
// owner of its sequences; they are populated exactly once per parse.
type Ribx struct {
	InspectionPipes    []*Pipe
	CleaningPipes      []*Pipe
	InspectionManholes []*Manhole
	CleaningManholes   []*Manhole
	Drains             []*Drain
}

// Media returns the sorted union of every contained element's media
// plus, for each pipe, the media of both owned manhole stubs.
func (r *Ribx) Media() []string {
	all := MediaSet{}
	for _, pipe := range append(append([]*Pipe{}, r.InspectionPipes...), r.CleaningPipes...) {
		all.merge(pipe.Media)
		if pipe.Manhole1 != nil {
			all.merge(pipe.Manhole1.Media)
		}
		if pipe.Manhole2 != nil {
			all.merge(pipe.Manhole2.Media)
		}
	}
	for _, manhole := range append(append([]*Manhole{}, r.InspectionManholes...), r.CleaningManholes...) {
		all.merge(manhole.Media)
	}
	for _, drain := range r.Drains {
		all.merge(drain.Media)
	}
	names := lo.Keys(all)
	sort.Strings(names)
	return names
}

// MediaSet is a set of validated media filenames. Entries only enter
// the set through Add, which enforces the filename rules.
type MediaSet map[string]struct{}

// Add validates the filename and inserts it into the set.
func (m MediaSet) Add(filename string) error {
	if err := CheckFilename(filename); err != nil {
		return err
	}
	m[filename] = struct{}{}
	return nil
}

func (m MediaSet) merge(other MediaSet) {
	for name := range other {
		m[name] = struct{}{}
	}
}

// CheckFilename rejects media filenames that carry a directory
// component (either path convention) or lack a base name or extension.
func CheckFilename(name string) error {
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("filename %q must not contain a directory", name)
	}
	ext := filepath.Ext(name)
	if ext == "" {
		return fmt.Errorf("filename %q has no extension", name)
	}
	if strings.TrimSuffix(name, ext) == "" {
		return fmt.Errorf("filename %q has no base name", name)
	}
	return nil
}

// SewerElement is the field set shared by pipes, manholes and drains.
type SewerElement struct {
	Kind ElementKind
	Ref  string

	// InspectionDate is set in inspection mode only. It carries the
	// ?BF date, merged with the ?BG time when one was supplied.
	InspectionDate *time.Time

	Owner string

	// WorkImpossible explains why planned work could not be carried
	// out; empty unless a ?XD reason code was supplied.
	WorkImpossible string

	// New marks elements absent from the original order (?XC tag).
	New bool

	// SourceLine is the line of the ?AA reference tag in the source
	// document. Diagnostics only.
	SourceLine int

	Media        MediaSet
	Observations []Observation
}

func (e *SewerElement) String() string {
	return e.Ref
}

// Pipe is a sewerage pipe (rioolbuis). It owns its two manhole stubs;
// they are not looked up from a registry.
type Pipe struct {
	SewerElement
	Manhole1 *Manhole
	Manhole2 *Manhole

	// ManholeStart is the ref of whichever manhole the inspection run
	// started from. Inspection-mode inspection pipes only.
	ManholeStart string
}

// Geom derives the pipe's line geometry from the two manhole stub
// points. Nil when either point is missing.
func (p *Pipe) Geom() orb.LineString {
	if p.Manhole1 == nil || p.Manhole2 == nil {
		return nil
	}
	if p.Manhole1.Geom == nil || p.Manhole2.Geom == nil {
		return nil
	}
	return orb.LineString{*p.Manhole1.Geom, *p.Manhole2.Geom}
}

// Manhole is a covered hole to a sewerage pipe (put).
type Manhole struct {
	SewerElement
	Geom *orb.Point
}

// Drain is a storm drain (kolk).
type Drain struct {
	SewerElement
	Geom *orb.Point
}

// Observation is one nested ZC record: an observation code, an
// optional distance and the media files it references. Media is
// validated eagerly while the record is built.
type Observation struct {
	Code     string
	Distance *float64
	Media    []string
}

func newSewerElement(kind ElementKind) SewerElement {
	return SewerElement{Kind: kind, Media: MediaSet{}}
}
