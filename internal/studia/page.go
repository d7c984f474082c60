package studia

import (
	"html/template"
	"io"

	"github.com/dustin/go-humanize"
)

var pageTmpl = template.Must(template.New("studia").Funcs(template.FuncMap{
	"since": humanize.Time,
}).Parse(`<!DOCTYPE html>
<html>
<head>
<title>Studia3 Login</title>
<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body>
{{- if .Message}}
<p><i>{{.Message}}</i></p>
{{- end}}
{{- range .Sessions}}
{{- if .Alive}}
<p>{{.ProgramName}}: <b>session alive</b>, logged in {{since .LastLoginAt}}</p>
{{- else}}
<form action="{{$.Action}}" method="POST">
<p>{{.ProgramName}}
<input name="program_id" type="hidden" value="{{.ProgramID}}">
<input name="password" placeholder="Password" type="password">
<button type="submit">Login</button>
</p>
</form>
{{- end}}
{{- end}}
</body>
</html>
`))

// Page is the data of the session overview form.
type Page struct {
	Sessions []*Session
	// Action is the form target, including the admin token query.
	Action  string
	Message string
}

// Render writes the HTML form for p.
func (p Page) Render(w io.Writer) error {
	return pageTmpl.Execute(w, p)
}
