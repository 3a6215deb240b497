package extractor

import (
	"fmt"
	"strings"

	"github.com/genricoloni/ytmpresence/internal/page"
)

// SelectorProbe is the outcome of one selector in the debug report
type SelectorProbe struct {
	Selector string
	Found    bool
	Detail   string
}

// SelectorGroup groups the alternatives of one field
type SelectorGroup struct {
	Name   string
	Probes []SelectorProbe
}

// Report is the DEBUG_PAGE diagnostic
type Report struct {
	Groups      []SelectorGroup
	Media       []string
	ButtonAttrs []string
	ButtonPaths []string
	Extracted   string
}

// Inspect probes every known selector against doc
func (e *Extractor) Inspect(doc page.Node) Report {
	var r Report
	if doc == nil {
		r.Extracted = "no document"
		return r
	}

	groups := []struct {
		name      string
		selectors []string
		image     bool
	}{
		{"Player Bar", []string{playerSelector}, false},
		{"Title", titleSelectors, false},
		{"Artist", artistSelectors, false},
		{"Play Button", playButtonSelectors, false},
		{"Album Art", imageSelectors, true},
		{"Time Info", timeSelectors, false},
	}

	for _, g := range groups {
		group := SelectorGroup{Name: g.name}
		for _, sel := range g.selectors {
			group.Probes = append(group.Probes, probe(doc, sel, g.image))
		}
		r.Groups = append(r.Groups, group)
	}

	for _, m := range doc.QueryAll(mediaSelector) {
		paused, ended, known := page.MediaState(m)
		if !known {
			r.Media = append(r.Media, "state unknown")
			continue
		}
		r.Media = append(r.Media, fmt.Sprintf("paused=%t ended=%t", paused, ended))
	}

	if btn, ok := doc.Query(playButtonSelectors[0]); ok {
		for _, attr := range []string{"class", "id", "aria-label", "title", "role"} {
			if v, ok := btn.Attr(attr); ok {
				r.ButtonAttrs = append(r.ButtonAttrs, fmt.Sprintf("%s=%q", attr, v))
			}
		}
		for _, p := range btn.QueryAll("path") {
			if d, ok := p.Attr("d"); ok {
				r.ButtonPaths = append(r.ButtonPaths, d)
			}
		}
	}

	if obs, ok := e.Extract(doc); ok {
		r.Extracted = fmt.Sprintf("title=%q artist=%q playing=%t time=%q/%q art=%q",
			obs.Title, obs.Artist, obs.IsPlaying, obs.CurrentPosition, obs.TotalDuration, obs.AlbumArtURL)
	} else {
		r.Extracted = "no observation"
	}
	return r
}

func probe(doc page.Node, selector string, image bool) SelectorProbe {
	n, ok := doc.Query(selector)
	if !ok {
		return SelectorProbe{Selector: selector, Detail: "Not found"}
	}

	var detail string
	if image {
		detail = "No src attribute"
		if src, ok := n.Attr("src"); ok && src != "" {
			detail = src
		}
	} else {
		detail = strings.TrimSpace(n.Text())
		if detail == "" {
			detail = "Empty text"
		}
		if label, ok := n.Attr("aria-label"); ok && label != "" {
			detail += fmt.Sprintf(" (aria-label: %q)", label)
		}
	}
	return SelectorProbe{Selector: selector, Found: true, Detail: detail}
}

// String renders the report one line per probe
func (r Report) String() string {
	var b strings.Builder
	b.WriteString("=== YouTube Music Element Debug ===\n")
	for _, g := range r.Groups {
		fmt.Fprintf(&b, "%s:\n", g.Name)
		for _, p := range g.Probes {
			mark := "✗"
			if p.Found {
				mark = "✓"
			}
			fmt.Fprintf(&b, "  %s: %s %s\n", p.Selector, mark, p.Detail)
		}
	}
	if len(r.Media) == 0 {
		b.WriteString("Media elements: none\n")
	} else {
		fmt.Fprintf(&b, "Media elements: %s\n", strings.Join(r.Media, "; "))
	}
	if len(r.ButtonAttrs) > 0 {
		fmt.Fprintf(&b, "Play button attributes: %s\n", strings.Join(r.ButtonAttrs, ", "))
	}
	if len(r.ButtonPaths) > 0 {
		fmt.Fprintf(&b, "Play button SVG paths: %s\n", strings.Join(r.ButtonPaths, " | "))
	}
	fmt.Fprintf(&b, "Extract result: %s\n", r.Extracted)
	return b.String()
}
