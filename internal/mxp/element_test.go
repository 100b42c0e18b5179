package mxp

import "testing"

func TestClosingChain(t *testing.T) {
	tests := []struct {
		template string
		want     string
	}{
		{"", ""},
		{"<b>&val;</b>", ""},
		{"<b><u>", "</u></b>"},
		{`<color red><b>`, "</b></color>"},
		{`<send href="go &dir;">`, "</send>"},
		{"<b><i>x</i>", "</b>"},
		{"</i><b>", "</b>"},
		{"<img src=x/><b>", "</b>"},
	}

	for _, tt := range tests {
		if got := closingChain(tt.template); got != tt.want {
			t.Errorf("%q: expected %q, got %q", tt.template, tt.want, got)
		}
	}
}

func TestParseDirective(t *testing.T) {
	tests := []struct {
		tag    string
		entity bool
		name   string
		value  string
		rest   string
	}{
		{`<!ELEMENT GAUGE '<b>&val;</b>' ATT=val>`, false, "GAUGE", "<b>&val;</b>", "ATT=val"},
		{`<!EL RName "<FONT COLOR=Red>" FLAG="RoomName">`, false, "RName", "<FONT COLOR=Red>", `FLAG="RoomName"`},
		{`<!ENTITY HP "100" ADD>`, true, "HP", "100", "ADD"},
		{`<!entity hp DELETE>`, true, "hp", "", "DELETE"},
		{`<!ENTITY HP ADD "5">`, true, "HP", "5", "ADD"},
		{`<!ENTITY HP REMOVE '100' PRIVATE>`, true, "HP", "100", "REMOVE PRIVATE"},
		{`<!ELEMENT X FLAG="hp" '<b>'>`, false, "X", "<b>", `FLAG="hp"`},
		{`<!ELEMENT X FLAG="hp">`, false, "X", "", `FLAG="hp"`},
	}

	for _, tt := range tests {
		d, err := parseDirective(tt.tag)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.tag, err)
		}
		if d.entity != tt.entity || d.name != tt.name || d.value != tt.value || d.rest != tt.rest {
			t.Errorf("%s: expected %v/%q/%q/%q, got %v/%q/%q/%q",
				tt.tag, tt.entity, tt.name, tt.value, tt.rest, d.entity, d.name, d.value, d.rest)
		}
	}
}

func TestDirectiveKeywords(t *testing.T) {
	d, err := parseDirective(`<!ELEMENT X '<b>' ATT='delete' FLAG="add it" EMPTY>`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !d.keyword("EMPTY") {
		t.Error("expected EMPTY keyword")
	}
	if d.keyword("DELETE") || d.keyword("ADD") {
		t.Error("expected option values not to count as keywords")
	}
	if v, ok := d.option(reOptFLAG); !ok || v != "add it" {
		t.Errorf("expected FLAG 'add it', got %q", v)
	}
}

func TestAttribute(t *testing.T) {
	tests := []struct {
		attrs string
		name  string
		want  string
		ok    bool
	}{
		{` val="42"`, "val", "42", true},
		{` val='42'`, "VAL", "42", true},
		{` val=42 max=100`, "max", "100", true},
		{` interval=5`, "val", "", false},
		{` val = "a b"`, "val", "a b", true},
		{``, "val", "", false},
	}

	for _, tt := range tests {
		got, ok := attributeValue(attributeMatcher(tt.name), tt.attrs)
		if got != tt.want || ok != tt.ok {
			t.Errorf("attributeValue(%q, %q): expected %q/%v, got %q/%v", tt.attrs, tt.name, tt.want, tt.ok, got, ok)
		}
	}
}

func TestElementExpand(t *testing.T) {
	e, err := newElement(directive{
		name:  "Bar",
		value: "<color &fg;>&value;/&valuemax",
		rest:  "ATT='fg=red value valuemax=100'",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := e.Expand(` value="5" fg=blue`, "hp")
	want := "<color blue>5/100hp</color>"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestElementPlaceholdersCompiledOnce(t *testing.T) {
	e, err := newElement(directive{
		name:  "Bar",
		value: "&value;/&valuemax;",
		rest:  "ATT='value valuemax=100'",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(e.placeholders) != len(e.Attributes) {
		t.Fatalf("expected %d placeholders, got %d", len(e.Attributes), len(e.placeholders))
	}
	// Longer names are substituted first so &valuemax; is not read as &value;max.
	if e.placeholders[0].attr.Name != "valuemax" {
		t.Errorf("expected valuemax first, got %q", e.placeholders[0].attr.Name)
	}

	for _, attrs := range []string{` value=1`, ` value=2 valuemax=9`} {
		before := e.placeholders[0].value
		e.Expand(attrs, "")
		if e.placeholders[0].value != before {
			t.Errorf("expected matchers reused across expansions")
		}
	}
	if got := e.Expand(` value=7`, ""); got != "7/100" {
		t.Errorf("expected %q, got %q", "7/100", got)
	}
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"\x1b[1;31mred\x1b[0m", "red"},
		{"<b>bold</b> text", "bold text"},
		{"a &lt;b&gt; &amp; &quot;c&quot;", `a <b> & "c"`},
	}

	for _, tt := range tests {
		if got := plainText(tt.in); got != tt.want {
			t.Errorf("plainText(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}
