package ui

import (
	"embed"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"strconv"

	"github.com/bher20/utilityrates/internal/rates"
)

// content embeds all static assets for the web UI.
//
//go:embed static/*
var content embed.FS

//go:embed templates/*.html
var templates embed.FS

const Title = "Aether Energy Utilities Demo"

var page = template.Must(template.New("index.html").Funcs(template.FuncMap{
	"money": formatMoney,
}).ParseFS(templates, "templates/index.html"))

// Form holds the submitted values, echoed back verbatim.
type Form struct {
	Address         string
	Consumption     string
	PercentageScale string
}

// PageData is everything the demo page renders.
type PageData struct {
	Title        string
	Form         Form
	SubmissionID string
	Lookup       *rates.LookupResponse
	Error        string
}

// Render writes the demo page.
func Render(w io.Writer, data PageData) error {
	if data.Title == "" {
		data.Title = Title
	}
	return page.Execute(w, data)
}

// Handler returns an http.Handler that serves the embedded UI assets.
func Handler() http.Handler {
	sub, err := fs.Sub(content, "static")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}

func formatMoney(v float64) string {
	return "$" + strconv.FormatFloat(v, 'f', 2, 64)
}
