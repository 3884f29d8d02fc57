package docx

import (
	"reflect"
	"testing"

	"github.com/beevik/etree"

	"github.com/akannigil/oxygen-documentor-sub000/internal/model"
)

func TestApplyStyles(t *testing.T) {
	t.Parallel()

	body := para(run("Jane Doe")) + para(`<w:r><w:rPr><w:i/></w:rPr><w:t xml:space="preserve">Awarded to Jane Doe today</w:t></w:r>`)
	a := openFixture(t, body, nil)

	style := model.Style{FontFamily: "Lato", FontSize: 14, Color: "#1a2b3c", Bold: true, Underline: true}
	out, err := ApplyStyles(a, []StyledValue{{Value: "Jane Doe", Style: style}})
	if err != nil {
		t.Fatalf("ApplyStyles: %v", err)
	}

	if got := texts(t, out, documentPart); !reflect.DeepEqual(got, []string{"Jane Doe", "Awarded to ", "Jane Doe", " today"}) {
		t.Fatalf("fragments = %q", got)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromString(partString(t, out, documentPart)); err != nil {
		t.Fatal(err)
	}

	styled := 0
	for _, r := range doc.FindElements("//w:r") {
		if r.SelectElement("w:t").Text() != "Jane Doe" {
			if r.FindElement("w:rPr/w:b") != nil {
				t.Errorf("run %q got bold", r.SelectElement("w:t").Text())
			}
			continue
		}
		styled++
		rPr := r.SelectElement("w:rPr")
		var order []string
		for _, c := range rPr.ChildElements() {
			order = append(order, c.Tag)
		}
		if got := rPr.SelectElement("w:rFonts").SelectAttrValue("w:ascii", ""); got != "Lato" {
			t.Errorf("font = %q", got)
		}
		if got := rPr.SelectElement("w:sz").SelectAttrValue("w:val", ""); got != "28" {
			t.Errorf("size = %q, want 28 half-points", got)
		}
		if got := rPr.SelectElement("w:color").SelectAttrValue("w:val", ""); got != "1A2B3C" {
			t.Errorf("color = %q", got)
		}
		if rPr.SelectElement("w:u") == nil || rPr.SelectElement("w:b") == nil {
			t.Errorf("missing bold or underline: %v", order)
		}
		if order[0] != "rFonts" {
			t.Errorf("rPr order = %v", order)
		}
	}
	if styled != 2 {
		t.Errorf("styled runs = %d, want 2", styled)
	}
}

func TestNormalizeColor(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]string{
		"#ff0000": "FF0000",
		"00ff00":  "00FF00",
		"red":     "",
		"#12345":  "",
		"#GGGGGG": "",
	} {
		if got := normalizeColor(in); got != want {
			t.Errorf("normalizeColor(%q) = %q, want %q", in, got, want)
		}
	}
}
