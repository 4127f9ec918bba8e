package extension

import (
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantLen   int
		wantFirst string
		wantErr   bool
	}{
		{name: "empty", input: "", wantLen: 0},
		{name: "blank", input: "   \n", wantLen: 0},
		{name: "single element", input: "<ext/>", wantLen: 1, wantFirst: "<ext/>"},
		{name: "element with whitespace", input: "  <ext>v</ext>\n", wantLen: 1, wantFirst: "<ext>v</ext>"},
		{name: "nested element", input: `<a xmlns="urn:x"><b>1</b></a>`, wantLen: 1, wantFirst: `<a xmlns="urn:x"><b>1</b></a>`},
		{name: "json list", input: `[{"ID":"e1","Any":"<x/>"},{"ID":"e2"}]`, wantLen: 2, wantFirst: "<x/>"},
		{name: "two root elements", input: "<a/><b/>", wantErr: true},
		{name: "unclosed element", input: "<a>", wantErr: true},
		{name: "trailing text", input: "<a/>junk", wantErr: true},
		{name: "bad json", input: "{not json", wantErr: true},
		{name: "json with bad payload", input: `[{"Any":"<a><b></a>"}]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext, err := Parse(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMalformed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLen, ext.Len())
			assert.Equal(t, tt.wantFirst, strings.TrimSpace(ext.FirstXML()))
		})
	}
}

func TestString_RoundTrip(t *testing.T) {
	ext := MustParse("<ext attr=\"1\">value</ext>")
	s := ext.String()
	assert.True(t, strings.HasPrefix(s, "["))

	again, err := Parse(s)
	require.NoError(t, err)
	assert.True(t, ext.Equal(again))
	assert.Equal(t, s, again.String())

	assert.Equal(t, "", Extension{}.String())
}

func TestSet(t *testing.T) {
	var ext Extension

	changed, err := ext.Set("<a/>")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = ext.Set("<a/>")
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = ext.Set("<broken")
	require.Error(t, err)
	assert.False(t, changed)
	assert.Equal(t, "<a/>", ext.FirstXML())

	changed, err = ext.Set("")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, ext.IsEmpty())
}

func TestItemsReturnsCopy(t *testing.T) {
	ext := New(Item{ID: "x"})
	items := ext.Items()
	items[0].ID = "changed"
	assert.Equal(t, "x", ext.Items()[0].ID)
}

func TestElementRoundTrip(t *testing.T) {
	ext := New(
		Item{ID: "id1", Name: "name", AgencyURI: "http://agency", Any: "<payload><v>1</v></payload>"},
		Item{ID: "id2"},
	)

	parent := etree.NewElement("ServiceGroup")
	require.NoError(t, ext.WriteElement(parent))
	assert.Len(t, parent.SelectElements(ElementName), 2)

	got, err := ReadElement(parent)
	require.NoError(t, err)
	assert.True(t, ext.Equal(got), "got %s", got.String())
}

func TestElementRoundTrip_Payloads(t *testing.T) {
	tests := []struct {
		name string
		item Item
	}{
		{name: "payload named like metadata", item: Item{Any: "<ExtensionName>n</ExtensionName>"}},
		{name: "payload named like content", item: Item{ID: "id", Any: "<ExtensionContent><a/></ExtensionContent>"}},
		{name: "namespaced nested payload", item: Item{Any: `<a xmlns="urn:x"><b>x</b><c k="v"/></a>`}},
		{name: "significant whitespace", item: Item{Reason: "  spaced  ", Any: "<a> <b/> </a>"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext := New(tt.item)
			doc := etree.NewDocument()
			parent := doc.CreateElement("ServiceGroup")
			require.NoError(t, ext.WriteElement(parent))

			// Formatting the surrounding document must not change the payload
			doc.Indent(2)
			s, err := doc.WriteToString()
			require.NoError(t, err)
			reread := etree.NewDocument()
			require.NoError(t, reread.ReadFromString(s))

			got, err := ReadElement(reread.Root())
			require.NoError(t, err)
			assert.True(t, ext.Equal(got), "got %s", got.String())
			assert.Equal(t, tt.item.Any, got.FirstXML())
		})
	}
}

func TestWriteElement_RejectsMalformedPayload(t *testing.T) {
	err := New(Item{Any: "<a>"}).WriteElement(etree.NewElement("ServiceGroup"))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestReadElement_None(t *testing.T) {
	got, err := ReadElement(etree.NewElement("Redirect"))
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())
}
