package render

import (
	_ "embed"
	"fmt"
	"html/template"
	"strings"
	"unicode"

	"github.com/gosimple/slug"
)

//go:embed page.tmpl
var pageTemplateText string

var pageTemplate = template.Must(template.New("page").Parse(pageTemplateText))

// PageInput carries everything the full-page shell needs besides the article
// body itself.
type PageInput struct {
	Title        string
	ArticleHTML  string
	BrandClass   string
	BrandName    string
	Primary      string
	TraceID      string
	PageID       string
	BaseURL      string
	ContactEmail string
	ContactPhone string
	ContactURL   string
}

type pageData struct {
	Title        string
	Article      template.HTML
	BrandClass   string
	BrandName    string
	BrandInitial string
	Primary      string
	TraceID      string
	Canonical    string
	DownloadURL  string
	SafeTitle    string
	ContactEmail string
	ContactPhone string
	ContactURL   string
}

// FullPage wraps a sanitized article fragment into the standalone HTML
// document served at /v/<id>. The article is injected verbatim, so it MUST
// already be sanitized.
func FullPage(in PageInput) (string, error) {
	canonical := strings.TrimRight(in.BaseURL, "/") + "/v/" + in.PageID
	title := in.Title
	if title == "" {
		title = "Article"
	}
	brandName := in.BrandName
	if brandName == "" {
		brandName = in.BrandClass
	}
	data := pageData{
		Title:        title,
		Article:      template.HTML(in.ArticleHTML),
		BrandClass:   in.BrandClass,
		BrandName:    brandName,
		BrandInitial: brandInitial(in.BrandClass),
		Primary:      in.Primary,
		TraceID:      in.TraceID,
		Canonical:    canonical,
		DownloadURL:  canonical + "/download",
		SafeTitle:    slug.Make(title),
		ContactEmail: in.ContactEmail,
		ContactPhone: in.ContactPhone,
		ContactURL:   in.ContactURL,
	}
	var b strings.Builder
	if err := pageTemplate.Execute(&b, data); err != nil {
		return "", fmt.Errorf("failed to render page: %w", err)
	}
	return b.String(), nil
}

func brandInitial(brandClass string) string {
	for _, r := range brandClass {
		return string(unicode.ToUpper(r))
	}
	return ""
}
