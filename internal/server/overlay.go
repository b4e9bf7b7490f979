package server

import (
	"bytes"
	"context"
	"io"

	"github.com/a-h/templ"
)

// errorOverlay renders a fixed banner describing the last failed build.
func errorOverlay(message string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `
<div id="ssg-build-error" style="position:fixed;left:0;right:0;bottom:0;z-index:2147483647;`+
			`max-height:40vh;overflow:auto;margin:0;padding:12px 16px;background:#2b0b0b;color:#ffd7d7;`+
			`font:13px/1.4 ui-monospace,monospace;border-top:3px solid #e5484d">`+
			`<strong>Build failed</strong> <span style="opacity:.7">showing output of the last successful build</span>`+
			`<pre style="white-space:pre-wrap;margin:8px 0 0">`+templ.EscapeString(message)+`</pre></div>
`)
		return err
	})
}

func renderOverlay(ctx context.Context, message string) (string, error) {
	var buf bytes.Buffer
	if err := errorOverlay(message).Render(ctx, &buf); err != nil {
		return "", err
	}

	return buf.String(), nil
}
