package ribx

import (
	"reflect"
	"strings"
	"testing"
)

const fullDocument = `<RIBX xmlns:gml="http://www.opengis.net/gml">
  <ZB_A>
    <AAA>pipe1</AAA>
    <AAB>m1</AAB>
    <AAD>m1</AAD>
    <AAE>
      <gml:Point srsDimension="2">
        <gml:pos>144054.76 488764.43</gml:pos>
      </gml:Point>
    </AAE>
    <AAF>m2</AAF>
    <AAG>
      <gml:Point srsDimension="2">
        <gml:pos>144003.23 488739.40</gml:pos>
      </gml:Point>
    </AAG>
    <ABF>2015-7-3</ABF>
    <ABS>pipe1.mpg</ABS>
  </ZB_A>
  <ZB_G>
    <GAA>pipe2</GAA>
    <GAD>m2</GAD>
    <GAF>m3</GAF>
    <GBF>2015-7-4</GBF>
  </ZB_G>
  <ZB_C>
    <CAA>put1</CAA>
    <CBF>2015-7-3</CBF>
    <ZC>
      <N>put1.jpg</N>
    </ZC>
  </ZB_C>
  <ZB_J>
    <JAA>put2</JAA>
    <JBF>2015-7-3</JBF>
  </ZB_J>
  <ZB_E>
    <EAA>kolk1</EAA>
    <EBF>2015-7-3</EBF>
  </ZB_E>
  <ZB_E>
    <EAA>kolk2</EAA>
  </ZB_E>
</RIBX>`

func TestParseDocument(t *testing.T) {
	result, log := Parse(strings.NewReader(fullDocument), Inspection, nil)

	if len(result.InspectionPipes) != 1 {
		t.Errorf("inspection pipes = %d, want 1", len(result.InspectionPipes))
	}
	if len(result.CleaningPipes) != 1 {
		t.Errorf("cleaning pipes = %d, want 1", len(result.CleaningPipes))
	}
	if len(result.InspectionManholes) != 1 {
		t.Errorf("inspection manholes = %d, want 1", len(result.InspectionManholes))
	}
	if len(result.CleaningManholes) != 1 {
		t.Errorf("cleaning manholes = %d, want 1", len(result.CleaningManholes))
	}

	// The second drain is missing its inspection date: skipped and
	// logged, without dropping the first one.
	if len(result.Drains) != 1 {
		t.Fatalf("drains = %d, want 1", len(result.Drains))
	}
	if result.Drains[0].Ref != "kolk1" {
		t.Errorf("drain ref = %q, want %q", result.Drains[0].Ref, "kolk1")
	}
	if len(log) != 1 {
		t.Fatalf("log = %v, want exactly one entry", log)
	}
	entry := log[0]
	if !strings.Contains(entry.Message, "ZB_E") || !strings.Contains(entry.Message, "EBF") {
		t.Errorf("message = %q, want the tag and field expression in it", entry.Message)
	}
	if entry.Level != "" {
		t.Errorf("level = %q, want empty for an element-local entry", entry.Level)
	}
	if entry.Line == 0 {
		t.Error("Expected an element-local entry to carry a source line")
	}
}

func TestParseDocumentMedia(t *testing.T) {
	result, _ := Parse(strings.NewReader(fullDocument), Inspection, nil)

	want := []string{"pipe1.mpg", "put1.jpg"}
	if got := result.Media(); !reflect.DeepEqual(got, want) {
		t.Errorf("Media() = %v, want %v", got, want)
	}
}

func TestParseSourceLines(t *testing.T) {
	result, _ := Parse(strings.NewReader(fullDocument), Inspection, nil)

	// The AAA reference tag of the inspection pipe sits on line 3.
	if got := result.InspectionPipes[0].SourceLine; got != 3 {
		t.Errorf("pipe source line = %d, want 3", got)
	}
}

func TestParseNotWellFormed(t *testing.T) {
	tests := []struct {
		name string
		xml  string
	}{
		{name: "Unclosed element", xml: `<ZB_E><EAA>whee</EAA>`},
		{name: "Mismatched close tag", xml: `<ZB_E><EAA>whee</EBB></ZB_E>`},
		{name: "Two root elements", xml: `<ZB_E><EAA>a.jpg</EAA></ZB_E><ZB_E/>`},
		{name: "Not XML at all", xml: `hello world`},
		{name: "Empty input", xml: ``},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, log := Parse(strings.NewReader(tc.xml), Inspection, nil)
			if len(log) != 1 {
				t.Fatalf("log = %v, want exactly one fatal entry", log)
			}
			if log[0].Level != "FATAL" {
				t.Errorf("level = %q, want FATAL", log[0].Level)
			}
			empty := &Ribx{}
			if !reflect.DeepEqual(result, empty) {
				t.Errorf("result = %+v, want an empty aggregate", result)
			}
		})
	}
}

func TestParsePreInspection(t *testing.T) {
	doc := `<RIBX>
  <ZB_E>
    <EAA>kolk1</EAA>
  </ZB_E>
  <ZB_E>
    <EAA>kolk2</EAA>
    <EBF>2015-7-3</EBF>
  </ZB_E>
</RIBX>`
	result, log := Parse(strings.NewReader(doc), PreInspection, nil)

	if len(result.Drains) != 1 {
		t.Fatalf("drains = %d, want 1", len(result.Drains))
	}
	if result.Drains[0].Ref != "kolk1" {
		t.Errorf("drain ref = %q, want %q", result.Drains[0].Ref, "kolk1")
	}
	if len(log) != 1 {
		t.Fatalf("log = %v, want one entry for the dated drain", log)
	}
	if !strings.Contains(log[0].Message, "EBF") {
		t.Errorf("message = %q, want EBF in it", log[0].Message)
	}
}

func TestParseIdempotent(t *testing.T) {
	first, firstLog := Parse(strings.NewReader(fullDocument), Inspection, nil)
	second, secondLog := Parse(strings.NewReader(fullDocument), Inspection, nil)

	if !reflect.DeepEqual(first, second) {
		t.Error("Parsing the same document twice produced different aggregates")
	}
	if !reflect.DeepEqual(firstLog, secondLog) {
		t.Error("Parsing the same document twice produced different logs")
	}
}

func TestParseKeepsDocumentOrder(t *testing.T) {
	doc := `<RIBX>
  <ZB_E><EAA>kolk1</EAA></ZB_E>
  <ZB_E><EAA>kolk2</EAA></ZB_E>
  <ZB_E><EAA>kolk3</EAA></ZB_E>
</RIBX>`
	result, log := Parse(strings.NewReader(doc), PreInspection, nil)
	if len(log) != 0 {
		t.Fatalf("log = %v, want empty", log)
	}
	var refs []string
	for _, drain := range result.Drains {
		refs = append(refs, drain.Ref)
	}
	want := []string{"kolk1", "kolk2", "kolk3"}
	if !reflect.DeepEqual(refs, want) {
		t.Errorf("refs = %v, want %v", refs, want)
	}
}
