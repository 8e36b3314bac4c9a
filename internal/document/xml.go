package document

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrNoSections is returned when the root element has no child element to
// take sections from.
var ErrNoSections = errors.New("document has no section container")

// DecodeXMLFile opens path and decodes it with DecodeXML.
func DecodeXMLFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening document: %w", err)
	}
	defer f.Close()
	return DecodeXML(f)
}

// DecodeXML reads a design report. The sections are the child elements of
// the root's first child element, in document order.
//
// Input with a UTF-16 or UTF-8 byte-order mark is transcoded to UTF-8
// before parsing; other declared encodings are looked up in the IANA
// registry.
func DecodeXML(r io.Reader) (*Document, error) {
	dec := xml.NewDecoder(transform.NewReader(r, unicode.BOMOverride(transform.Nop)))
	dec.Strict = true
	dec.CharsetReader = charsetReader

	root, err := nextStart(dec)
	if err != nil {
		return nil, fmt.Errorf("reading root element: %w", err)
	}
	doc := &Document{Root: root.Name.Local}

	container, err := nextStart(dec)
	if errors.Is(err, errElementEnd) {
		return nil, fmt.Errorf("%s: %w", doc.Root, ErrNoSections)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", doc.Root, err)
	}

	for {
		start, err := nextStart(dec)
		if errors.Is(err, errElementEnd) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", container.Name.Local, err)
		}
		value, err := decodeElement(dec, start)
		if err != nil {
			return nil, fmt.Errorf("decoding section %s: %w", start.Name.Local, err)
		}
		tree, ok := asTree(value)
		if !ok {
			// A text-only or empty section still counts; keep its text.
			tree = Tree{}
			if s, isString := value.(string); isString {
				tree[TextKey] = s
			}
		}
		doc.Sections = append(doc.Sections, Section{Kind: start.Name.Local, Tree: tree})
	}
	return doc, nil
}

var errElementEnd = errors.New("element ended")

// charsetReader converts input declared in a non-UTF-8 encoding. UTF-16
// input has already been transcoded by the byte-order-mark pass, so its
// declaration is taken as is.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	if strings.HasPrefix(strings.ToLower(label), "utf-16") {
		return input, nil
	}
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", label, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported encoding %q", label)
	}
	return enc.NewDecoder().Reader(input), nil
}

// nextStart skips to the next start element at the current depth. It
// returns errElementEnd when the enclosing element closes first.
func nextStart(dec *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return xml.StartElement{}, io.ErrUnexpectedEOF
		}
		if err != nil {
			return xml.StartElement{}, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			return t, nil
		case xml.EndElement:
			return xml.StartElement{}, errElementEnd
		}
	}
}

// decodeElement consumes tokens up to the end of start and returns its
// value: nil, a string or a Tree.
func decodeElement(dec *xml.Decoder, start xml.StartElement) (any, error) {
	tree := Tree{}
	for _, a := range start.Attr {
		tree["@"+qualified(a.Name)] = a.Value
	}

	var text strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child, err := decodeElement(dec, t)
			if err != nil {
				return nil, err
			}
			addChild(tree, qualified(t.Name), child)
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			s := strings.TrimSpace(text.String())
			if len(tree) == 0 {
				if s == "" {
					return nil, nil
				}
				return s, nil
			}
			if s != "" {
				tree[TextKey] = s
			}
			return tree, nil
		}
	}
}

// addChild stores a child value, turning the key into a list on the
// second occurrence.
func addChild(tree Tree, key string, value any) {
	existing, ok := tree[key]
	if !ok {
		tree[key] = value
		return
	}
	if list, isList := existing.([]any); isList {
		tree[key] = append(list, value)
		return
	}
	tree[key] = []any{existing, value}
}

func qualified(n xml.Name) string {
	// encoding/xml resolves prefixes to namespace URLs; the report only
	// uses the default namespace, so the local name is what callers key on.
	return n.Local
}
