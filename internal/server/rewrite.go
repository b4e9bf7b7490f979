package server

import (
	"bytes"

	"golang.org/x/net/html"
)

// Transform rewrites the href of every <base> element that has one to "/"
// and inserts inject immediately before the last </body> end tag, or appends
// it when the document has none. Everything else is copied byte for byte.
func Transform(doc []byte, inject string) []byte {
	var out bytes.Buffer
	out.Grow(len(doc) + len(inject))

	bodyEnd := -1
	consumed := 0
	z := html.NewTokenizer(bytes.NewReader(doc))

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			// A trailing unterminated tag is never emitted as a token.
			if consumed < len(doc) {
				out.Write(doc[consumed:])
			}
			break
		}

		// TagName lowercases the tokenizer's buffer in place.
		raw := bytes.Clone(z.Raw())
		consumed += len(raw)

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) == "base" && hasAttr {
				writeBase(&out, z, raw, tt == html.SelfClosingTagToken)
				continue
			}
			out.Write(raw)
		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == "body" {
				bodyEnd = out.Len()
			}
			out.Write(raw)
		default:
			out.Write(raw)
		}
	}

	if bodyEnd < 0 {
		out.WriteString(inject)
		return out.Bytes()
	}

	result := make([]byte, 0, out.Len()+len(inject))
	result = append(result, out.Bytes()[:bodyEnd]...)
	result = append(result, inject...)
	result = append(result, out.Bytes()[bodyEnd:]...)

	return result
}

type attr struct {
	key, val string
}

// writeBase re-emits a <base> tag with href="/" and its other attributes
// preserved. A <base> without href is copied unchanged from raw.
func writeBase(out *bytes.Buffer, z *html.Tokenizer, raw []byte, selfClosing bool) {
	var (
		attrs   []attr
		hasHref bool
	)
	for more := true; more; {
		var key, val []byte
		key, val, more = z.TagAttr()
		if string(key) == "href" {
			hasHref = true
			continue
		}
		attrs = append(attrs, attr{key: string(key), val: string(val)})
	}

	if !hasHref {
		out.Write(raw)
		return
	}

	out.WriteString(`<base href="/"`)
	for _, a := range attrs {
		out.WriteByte(' ')
		out.WriteString(a.key)
		out.WriteString(`="`)
		out.WriteString(html.EscapeString(a.val))
		out.WriteByte('"')
	}

	if selfClosing {
		out.WriteString(" />")
	} else {
		out.WriteString(">")
	}
}
