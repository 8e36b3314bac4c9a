package document

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

const sampleReport = `<?xml version="1.0" encoding="UTF-8"?>
<FMSaveAsXML version="2.2.3.0">
  <Structure>
    <BaseTableCatalog membercount="1">
      <BaseTable id="7" name="Customers">
        <FieldCatalog>
          <Field id="10" name="Name" dataType="Text"/>
          <Field id="11" name="Email" dataType="Text"><Comment>primary contact</Comment></Field>
        </FieldCatalog>
      </BaseTable>
    </BaseTableCatalog>
    <BaseDirectoryCatalog/>
    <LayoutCatalog>
      <Layout id="1" name="Main">
        <Table id="70" name="Customers"/>
        <Object type="Field" name="x"><FieldObj><Name>Customers::Name</Name></FieldObj></Object>
      </Layout>
    </LayoutCatalog>
  </Structure>
</FMSaveAsXML>`

func TestDecodeXMLSections(t *testing.T) {
	doc, err := DecodeXML(strings.NewReader(sampleReport))
	require.NoError(t, err)

	assert.Equal(t, "FMSaveAsXML", doc.Root)
	assert.Equal(t, []string{"BaseTableCatalog", "BaseDirectoryCatalog", "LayoutCatalog"}, doc.Kinds())
	assert.NotNil(t, doc.Sections[1].Tree, "empty sections decode to an empty tree")
}

func TestDecodeXMLConventions(t *testing.T) {
	doc, err := DecodeXML(strings.NewReader(sampleReport))
	require.NoError(t, err)

	catalog := doc.Sections[0].Tree
	assert.Equal(t, "1", catalog.Attr("membercount"))

	tables, dropped := catalog.Children("BaseTable")
	require.Len(t, tables, 1, "a single element is not wrapped")
	assert.Zero(t, dropped)
	assert.Equal(t, "Customers", tables[0].Attr("name"))
	assert.Equal(t, "7", tables[0].Attr("id"))

	fields, _ := tables[0].Map("FieldCatalog").Children("Field")
	require.Len(t, fields, 2, "repeated elements become a list")
	assert.Equal(t, "Name", fields[0].Attr("name"))
	assert.Equal(t, "primary contact", fields[1].String("Comment"), "text-only elements become strings")

	layout := doc.Sections[2].Tree.Map("Layout")
	name := layout.Path("Object", "FieldObj").String("Name")
	assert.Equal(t, "Customers::Name", name)
}

func TestDecodeXMLMixedText(t *testing.T) {
	doc, err := DecodeXML(strings.NewReader(`<R><S><K><Note lang="en">  hello  </Note><Empty/></K></S></R>`))
	require.NoError(t, err)
	require.Len(t, doc.Sections, 1)

	k := doc.Sections[0].Tree
	assert.Equal(t, "hello", k.Map("Note")[TextKey])
	assert.Equal(t, "hello", k.String("Note"))
	assert.Equal(t, "en", k.Map("Note").Attr("lang"))
	assert.True(t, k.Has("Empty"))
	assert.Nil(t, k["Empty"])
}

func TestDecodeXMLErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty input", ""},
		{"no container", `<Root/>`},
		{"truncated", `<Root><Structure><BaseTableCatalog>`},
		{"mismatched tags", `<Root><Structure><A></B></Structure></Root>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeXML(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}

	_, err := DecodeXML(strings.NewReader(`<Root/>`))
	assert.ErrorIs(t, err, ErrNoSections)
}

func TestDecodeXMLEncodings(t *testing.T) {
	const utf16Report = `<?xml version="1.0" encoding="UTF-16"?><FMPReport><File><BaseTableCatalog/></File></FMPReport>`

	encode := func(t *testing.T, enc interface{ String(string) (string, error) }, s string) []byte {
		t.Helper()
		out, err := enc.String(s)
		require.NoError(t, err)
		return []byte(out)
	}

	tests := []struct {
		name  string
		input []byte
	}{
		{"utf-16le with bom", encode(t, unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder(), utf16Report)},
		{"utf-16be with bom", encode(t, unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder(), utf16Report)},
		{"utf-8 with bom", append([]byte("\xef\xbb\xbf"), `<?xml version="1.0" encoding="UTF-8"?><FMPReport><File><BaseTableCatalog/></File></FMPReport>`...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := DecodeXML(bytes.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, "FMPReport", doc.Root)
			assert.Equal(t, []string{"BaseTableCatalog"}, doc.Kinds())
		})
	}

	t.Run("declared latin-1", func(t *testing.T) {
		input := encode(t, charmap.ISO8859_1.NewEncoder(),
			`<?xml version="1.0" encoding="ISO-8859-1"?><FMPReport><File><BaseTable name="Café"/></File></FMPReport>`)
		doc, err := DecodeXML(bytes.NewReader(input))
		require.NoError(t, err)
		require.Len(t, doc.Sections, 1)
		assert.Equal(t, "Café", doc.Sections[0].Tree.Attr("name"))
	})

	t.Run("unknown encoding", func(t *testing.T) {
		_, err := DecodeXML(strings.NewReader(`<?xml version="1.0" encoding="x-no-such"?><Root><S/></Root>`))
		assert.ErrorContains(t, err, "x-no-such")
	})
}

func TestDecodeXMLFileMissing(t *testing.T) {
	_, err := DecodeXMLFile("testdata/does-not-exist.xml")
	assert.Error(t, err)
}
