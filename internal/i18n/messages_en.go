package i18n

// englishMessages contains all English translations.
var englishMessages = map[string]string{
	// Error messages
	"error.generic":                 "Something went wrong. Please try again.",
	"error.player.no_credential":    "No access token. Please log in again.",
	"error.player.sdk_unavailable":  "The Spotify player could not be loaded. Open the player page and retry.",
	"error.player.ready_timeout":    "The Spotify player did not become ready in time.",
	"error.player.connect_failed":   "Could not connect to the Spotify player.",
	"error.player.initialization":   "Player initialization failed: %s",
	"error.player.authentication":   "Authentication failed: %s. Please log out and log in again.",
	"error.player.premium_required": "A Spotify Premium account is required for streaming.",
	"error.player.not_ready":        "Player not ready: no device ID.",
	"error.player.transfer_failed":  "Could not transfer playback to this device.",
	"error.player.playback":         "Playback error: %d",
	"error.player.network":          "Network error while talking to Spotify.",
	"error.quiz.not_enough_tracks":  "This playlist does not have enough tracks.",
	"error.quiz.player_not_ready":   "The Spotify player is not ready. Make sure you have a Premium account and the player page is open.",
	"error.quiz.not_found":          "This game does not exist or has ended.",
	"error.recommend.no_candidates": "No tracks matched these seeds.",
	"error.recommend.rate_limited":  "Too many requests, slow down a little.",
	"error.quiz.invalid_choice":     "This track is not one of the choices.",
	"error.quiz.already_answered":   "This question has already been answered.",
	"error.quiz.not_playing":        "This game is over.",
	"error.export.nothing":          "There are no tracks to save.",
	"error.stats.invalid_range":     "Unknown time range.",
	"error.request.invalid":         "Invalid request: %s",
	"error.upstream":                "Spotify did not answer correctly. Please try again.",
	"error.auth.state":              "Login expired, please start again.",
	"error.auth.exchange":           "Could not complete the Spotify login.",

	// Format helpers
	"format.minutes_ago":        "%d minute ago",
	"format.minutes_ago_plural": "%d minutes ago",
	"format.hours_ago":          "%d hour ago",
	"format.hours_ago_plural":   "%d hours ago",
	"format.days_ago":           "%d day ago",
	"format.days_ago_plural":    "%d days ago",
	"format.points":             "%d pt",
	"format.points_plural":      "%d pts",
}
