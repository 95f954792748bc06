package i18n

// frenchMessages contains all French translations.
var frenchMessages = map[string]string{
	// Error messages
	"error.generic":                 "Une erreur est survenue. Veuillez réessayer.",
	"error.player.no_credential":    "Pas de token d'accès. Veuillez vous reconnecter.",
	"error.player.sdk_unavailable":  "Le lecteur Spotify n'a pas pu être chargé. Ouvrez la page du lecteur et réessayez.",
	"error.player.ready_timeout":    "Le lecteur Spotify n'a pas répondu à temps.",
	"error.player.connect_failed":   "Échec de connexion au player",
	"error.player.initialization":   "Erreur init: %s",
	"error.player.authentication":   "Erreur auth: %s. Veuillez vous déconnecter et reconnecter.",
	"error.player.premium_required": "Compte Premium requis pour le streaming",
	"error.player.not_ready":        "Player non prêt - pas de device ID",
	"error.player.transfer_failed":  "Impossible de transférer la lecture",
	"error.player.playback":         "Erreur lecture: %d",
	"error.player.network":          "Erreur réseau",
	"error.quiz.not_enough_tracks":  "Cette playlist n'a pas assez de morceaux.",
	"error.quiz.player_not_ready":   "Le lecteur Spotify n'est pas prêt. Assurez-vous d'avoir un compte Premium et que le lecteur est ouvert.",
	"error.quiz.not_found":          "Cette partie n'existe pas ou est terminée.",
	"error.recommend.no_candidates": "Aucun morceau ne correspond à ces seeds.",
	"error.recommend.rate_limited":  "Trop de requêtes, ralentissez un peu.",
	"error.quiz.invalid_choice":     "Ce morceau ne fait pas partie des choix.",
	"error.quiz.already_answered":   "Vous avez déjà répondu à cette question.",
	"error.quiz.not_playing":        "Cette partie est terminée.",
	"error.export.nothing":          "Aucun morceau à enregistrer.",
	"error.stats.invalid_range":     "Période inconnue.",
	"error.request.invalid":         "Requête invalide : %s",
	"error.upstream":                "Spotify n'a pas répondu correctement. Veuillez réessayer.",
	"error.auth.state":              "La connexion a expiré, veuillez recommencer.",
	"error.auth.exchange":           "Impossible de finaliser la connexion Spotify.",

	// Format helpers
	"format.minutes_ago":        "Il y a %d minute",
	"format.minutes_ago_plural": "Il y a %d minutes",
	"format.hours_ago":          "Il y a %d heure",
	"format.hours_ago_plural":   "Il y a %d heures",
	"format.days_ago":           "Il y a %d jour",
	"format.days_ago_plural":    "Il y a %d jours",
	"format.points":             "%dpt",
	"format.points_plural":      "%dpts",
}
