package extractor

import (
	"strings"

	"github.com/genricoloni/ytmpresence/internal/page"
)

// firstText returns the trimmed text of the first selector match that has any
func firstText(root page.Node, selectors []string) (page.Node, string, bool) {
	for _, sel := range selectors {
		n, ok := root.Query(sel)
		if !ok {
			continue
		}
		if text := strings.TrimSpace(n.Text()); text != "" {
			return n, text, true
		}
	}
	return nil, "", false
}

// resolvePlayer finds the player container and checks it is displayed
func resolvePlayer(doc page.Node) (page.Node, bool) {
	player, ok := doc.Query(playerSelector)
	if !ok || !player.Visible() {
		return nil, false
	}
	return player, true
}

func resolveTitle(doc page.Node) (string, bool) {
	_, title, ok := firstText(doc, titleSelectors)
	return title, ok
}

// resolveArtist prefers the artist link and falls back to the first
// bullet-separated segment of the subtitle.
func resolveArtist(doc page.Node) (string, bool) {
	label, full, ok := firstText(doc, artistSelectors)
	if !ok {
		return "", false
	}

	for _, link := range label.QueryAll("a") {
		if name := strings.TrimSpace(link.Text()); name != "" {
			return name, true
		}
	}

	first, _, _ := strings.Cut(full, artistSeparator)
	if first = strings.TrimSpace(first); first != "" {
		return first, true
	}
	return full, true
}

func resolveAlbumArt(doc page.Node) (string, bool) {
	for _, sel := range imageSelectors {
		img, ok := doc.Query(sel)
		if !ok {
			continue
		}
		if src, ok := img.Attr("src"); ok && strings.TrimSpace(src) != "" {
			return strings.TrimSpace(src), true
		}
	}
	return "", false
}

// resolveTime splits "1:23 / 4:56". Anything but exactly two parts is rejected.
func resolveTime(doc page.Node) (position, duration string, ok bool) {
	_, text, found := firstText(doc, timeSelectors)
	if !found {
		return "", "", false
	}
	parts := strings.Split(text, timeSeparator)
	if len(parts) != 2 {
		return "", "", false
	}
	position, duration = strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	if position == "" || duration == "" {
		return "", "", false
	}
	return position, duration, true
}
