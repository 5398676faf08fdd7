package preview

import (
	"html/template"
	"io"
	"time"
)

const (
	KaTeXVersion = "0.16.19"
	KaTeXBaseURL = "https://cdn.jsdelivr.net/npm/katex@" + KaTeXVersion + "/dist"
)

var pageTemplate = template.Must(template.New("preview").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>MuText Preview</title>
<link rel="stylesheet" href="{{.KaTeX}}/katex.min.css">
<script defer src="{{.KaTeX}}/katex.min.js"></script>
<script defer src="{{.KaTeX}}/contrib/auto-render.min.js" onload="mutextRender()"></script>
<style>
body { margin: 2em auto; max-width: 60em; padding: 0 1em; font-family: Georgia, serif; line-height: 1.5; }
{{- if .Dark}}
body { background: #111212; color: #e8e8e8; }
a { color: #8ab4f8; }
{{- end}}
</style>
<script>
var mutextLast = null;
function mutextRender() {
  if (typeof renderMathInElement !== "function") { return; }
  renderMathInElement(document.getElementById("content"), {
    delimiters: [
      {left: "$$", right: "$$", display: true},
      {left: "\\[", right: "\\]", display: true},
      {left: "$", right: "$", display: false},
      {left: "\\(", right: "\\)", display: false}
    ],
    throwOnError: false
  });
}
setInterval(function () {
  fetch(window.location.pathname, {cache: "no-store"})
    .then(function (resp) { return resp.text(); })
    .then(function (html) {
      var next = new DOMParser().parseFromString(html, "text/html").getElementById("content");
      if (!next || next.innerHTML === mutextLast) { return; }
      mutextLast = next.innerHTML;
      document.getElementById("content").innerHTML = next.innerHTML;
      mutextRender();
    })
    .catch(function () {});
}, {{.PollMillis}});
</script>
</head>
<body>
<div id="content">{{.Content}}</div>
</body>
</html>
`))

type pageData struct {
	KaTeX      string
	Dark       bool
	PollMillis int64
	Content    template.HTML
}

// writePage renders text unescaped: the buffer is the user's own HTML.
func writePage(w io.Writer, text string, dark bool, poll time.Duration) error {
	return pageTemplate.Execute(w, pageData{
		KaTeX:      KaTeXBaseURL,
		Dark:       dark,
		PollMillis: poll.Milliseconds(),
		Content:    template.HTML(text),
	})
}
