package extractor

import (
	"strings"

	"github.com/genricoloni/ytmpresence/internal/page"
)

// Verdict is the answer of one playback signal. Only a Definite verdict stops
// the cascade.
type Verdict struct {
	Definite bool
	Playing  bool
}

var (
	inconclusive = Verdict{}
	playing      = Verdict{Definite: true, Playing: true}
)

// PlaybackInput is what the signals get to look at
type PlaybackInput struct {
	Doc      page.Node
	Player   page.Node
	Position string
}

// Signal is one evaluator of the playback cascade
type Signal struct {
	Name     string
	Evaluate func(PlaybackInput) Verdict
}

// Resolver decides whether audio is playing from a priority-ordered signal list
type Resolver struct {
	signals []Signal
}

// NewResolver builds the default cascade: media element, button label,
// button icon, state class, elapsed time.
func NewResolver(pauseTokens []string) *Resolver {
	if len(pauseTokens) == 0 {
		pauseTokens = DefaultPauseTokens
	}
	return &Resolver{signals: []Signal{
		{Name: "media", Evaluate: mediaSignal},
		{Name: "button-label", Evaluate: buttonLabelSignal(pauseTokens)},
		{Name: "button-icon", Evaluate: buttonIconSignal},
		{Name: "state-class", Evaluate: stateClassSignal},
		{Name: "elapsed-time", Evaluate: elapsedTimeSignal},
	}}
}

// Resolve runs the cascade. It returns the verdict and the name of the signal
// that produced it, or "default" when none was definite.
func (r *Resolver) Resolve(in PlaybackInput) (bool, string) {
	for _, s := range r.signals {
		if v := s.Evaluate(in); v.Definite {
			return v.Playing, s.Name
		}
	}
	return false, "default"
}

// mediaSignal: a native media element that is neither paused nor ended
func mediaSignal(in PlaybackInput) Verdict {
	for _, m := range in.Doc.QueryAll(mediaSelector) {
		paused, ended, known := page.MediaState(m)
		if known && !paused && !ended {
			return playing
		}
	}
	return inconclusive
}

// buttonLabelSignal: the toggle offers the next action, so "Pause" means playing
func buttonLabelSignal(tokens []string) func(PlaybackInput) Verdict {
	lowered := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			lowered = append(lowered, t)
		}
	}

	return func(in PlaybackInput) Verdict {
		for _, btn := range playButtons(in.Doc) {
			label := buttonLabel(btn)
			if label == "" {
				continue
			}
			label = strings.ToLower(label)
			for _, t := range lowered {
				if strings.Contains(label, t) {
					return playing
				}
			}
		}
		return inconclusive
	}
}

// buttonIconSignal: a visible two-bar pause glyph inside the toggle
func buttonIconSignal(in PlaybackInput) Verdict {
	for _, btn := range playButtons(in.Doc) {
		for _, sel := range pauseIconSelectors {
			icon, ok := btn.Query(sel)
			if !ok {
				continue
			}
			container, ok := icon.Parent()
			if !ok {
				container = icon
			}
			if container.Visible() {
				return playing
			}
		}
	}
	return inconclusive
}

// stateClassSignal: the "playing" marker class on or inside the player bar
func stateClassSignal(in PlaybackInput) Verdict {
	if in.Player == nil {
		return inconclusive
	}
	if in.Player.HasClass(playingClass) {
		return playing
	}
	if _, ok := in.Player.Query("." + playingClass); ok {
		return playing
	}
	return inconclusive
}

// elapsedTimeSignal: a nonzero elapsed time with nothing saying "paused"
func elapsedTimeSignal(in PlaybackInput) Verdict {
	if in.Position == "" || isZeroTime(in.Position) {
		return inconclusive
	}
	return playing
}

// playButtons returns the first selector's matches that yields any
func playButtons(doc page.Node) []page.Node {
	for _, sel := range playButtonSelectors {
		if buttons := doc.QueryAll(sel); len(buttons) > 0 {
			return buttons
		}
	}
	return nil
}

func buttonLabel(btn page.Node) string {
	for _, attr := range []string{"aria-label", "title"} {
		if v, ok := btn.Attr(attr); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

// isZeroTime reports whether a clock string like "0:00" or "00:00:00" is zero
func isZeroTime(s string) bool {
	digits := 0
	for _, r := range s {
		switch {
		case r == ':':
		case r == '0':
			digits++
		case r >= '1' && r <= '9':
			return false
		case r == ' ':
		default:
			return false
		}
	}
	return digits > 0
}
