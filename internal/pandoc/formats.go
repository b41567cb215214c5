package pandoc

import "strings"

// Format is an output format offered to users.
type Format struct {
	Value    string `json:"value"`
	Label    string `json:"label"`
	Category string `json:"category"`
}

var outputFormats = []Format{
	{"html", "HTML", "Web"},
	{"md", "Markdown", "Markup"},
	{"txt", "Plain Text", "Markup"},
	{"docx", "Microsoft Word (.docx)", "Word Processor"},
	{"epub", "EPUB ebook", "Web"},
	{"latex", "LaTeX source", "Print"},
	{"rtf", "Rich Text Format (.rtf)", "Word Processor"},
	{"xml", "XML version of native AST", "Other"},
	{"csv", "CSV table", "Other"},
	{"asciidoc", "AsciiDoc", "Markup"},
	{"slidy", "Slidy HTML slideshow", "Web"},
	{"slideous", "Slideous HTML slideshow", "Web"},
	{"dzslides", "DZSlides HTML slideshow", "Web"},
	{"s5", "S5 HTML slideshow", "Web"},
	{"odt", "OpenDocument Text (.odt)", "Word Processor"},
	{"beamer", "LaTeX Beamer slideshow", "Print"},
	{"context", "ConTeXt", "Print"},
	{"man", "roff man page", "Print"},
	{"docbook", "DocBook XML", "Print"},
	{"typst", "Typst markup", "Print"},
	{"commonmark_x", "CommonMark with extensions", "Markup"},
	{"rst", "reStructuredText", "Markup"},
	{"mediawiki", "MediaWiki markup", "Markup"},
	{"org", "Emacs Org-Mode", "Markup"},
	{"json", "JSON version of native AST", "Other"},
	{"ipynb", "Jupyter notebook", "Other"},
	{"tsv", "TSV table", "Other"},
}

var inputExtensions = []string{
	// lightweight markup
	"md", "markdown", "txt", "rst", "org", "muse", "textile", "t2t", "djot",
	"html", "htm", "xhtml",
	"epub", "fb2",
	"pod", "haddock",
	"man", "mdoc",
	"tex", "latex",
	"xml", "docbook", "jats", "bits",
	"opml",
	// bibliography
	"bib", "bibtex", "json", "yaml", "yml", "ris", "enl",
	"docx", "rtf", "odt",
	"ipynb",
	"typ", "typst",
	// wiki
	"wiki", "mediawiki", "dokuwiki", "tikiwiki", "twiki", "vimwiki", "jira", "creole",
	"csv", "tsv",
}

// OutputFormats returns the catalog of output formats in display order. The
// list is informational; Convert passes any valid token through to pandoc.
func OutputFormats() []Format {
	out := make([]Format, len(outputFormats))
	copy(out, outputFormats)
	return out
}

// InputExtensions returns the file extensions, without dots, that pandoc
// can read.
func InputExtensions() []string {
	out := make([]string, len(inputExtensions))
	copy(out, inputExtensions)
	return out
}

// IsKnownInputExtension reports whether ext (with or without a leading dot,
// any case) is a readable input extension.
func IsKnownInputExtension(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, e := range inputExtensions {
		if e == ext {
			return true
		}
	}
	return false
}
