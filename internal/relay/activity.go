package relay

import "github.com/genricoloni/ytmpresence/internal/domain"

// buildActivity renders the current song. Callers ensure Current is set.
func (r *Relay) buildActivity() domain.Activity {
	cur := r.state.Current

	artist := cur.Artist
	if artist == "" {
		artist = r.opts.UnknownArtist
	}

	image := r.artURL
	if image == "" {
		image = r.opts.DefaultImageKey
	}

	a := domain.Activity{
		Details:        cur.Title,
		State:          "by " + artist,
		LargeImageKey:  image,
		LargeImageText: r.opts.LargeImageText,
		SmallImageKey:  "play",
		SmallImageText: "Playing",
		StartTimestamp: r.state.ActivitySince.UnixMilli(),
	}
	if !cur.IsPlaying {
		a.SmallImageKey = "pause"
		a.SmallImageText = "Paused"
	}
	return a
}
