package extractor

// Selector cascades, most specific first. The player markup changes between
// rollouts so every field keeps its alternatives.
var (
	playerSelector = "ytmusic-player-bar"

	titleSelectors = []string{
		".title.style-scope.ytmusic-player-bar",
		"ytmusic-player-bar .title",
		"ytmusic-player-bar .content-info-wrapper .title",
	}

	artistSelectors = []string{
		".subtitle.style-scope.ytmusic-player-bar",
		"ytmusic-player-bar .subtitle",
		"ytmusic-player-bar .content-info-wrapper .subtitle",
	}

	imageSelectors = []string{
		".image.style-scope.ytmusic-player-bar img",
		"ytmusic-player-bar .image img",
		"img.ytmusic-player-bar",
	}

	timeSelectors = []string{
		".time-info.style-scope.ytmusic-player-bar",
		"ytmusic-player-bar .time-info",
	}

	playButtonSelectors = []string{
		".play-pause-button",
		"tp-yt-paper-icon-button.play-pause-button",
		"ytmusic-player-bar .play-pause-button",
	}

	// Path data of the two-bar pause glyph
	pauseIconSelectors = []string{
		`path[d^="M6,19h4"]`,
		`[d*="h4V5H6v14zm8-14v14h4V5h-4z"]`,
	}

	mediaSelector = "video, audio"

	playingClass = "playing"
)

const (
	// artistSeparator splits "Artist • Album • Year" subtitles (U+2022)
	artistSeparator = "•"
	timeSeparator   = " / "
)

// DefaultPauseTokens are the localized labels of the pause action
var DefaultPauseTokens = []string{"Pause", "Pausa", "Pausieren", "Mettre en pause", "一時停止"}
