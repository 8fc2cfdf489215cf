// Package i18n holds the English and French text used in archives and in
// build status lines.
package i18n

import (
	"fmt"
	"strings"
	"time"
)

type Strings struct {
	Lang string

	// document
	SelectAll          string
	Clear              string
	Invert             string
	DeleteSelected     string
	DownloadPruned     string
	SaveStates         string
	ResetStates        string
	ExportState        string
	ThemeLight         string
	ThemeDark          string
	ThemeVibrant       string
	SearchPlaceholder  string
	Footer             string
	ExternalAudioName  string
	MediaOmitted       string
	ShowTranscription  string
	NotePlaceholder    string
	StatesSaved        string
	StatesReset        string
	MessageDeleted     string // contains {num}
	StorageFailed      string
	EncryptedSuffix    string
	Rotate             string
	DecryptionFailed   string

	// status
	LookingForEngine   string
	SkippingEngine     string
	CreatingMediaDir   string // %s folder
	LoadingChat        string
	ScanningAudio      string
	FoundExternal      string // %d
	Sorting            string // %d
	NoMessages         string
	CountingAudio      string
	BuildingHTML       string
	Transcribing       string // %d %d %s
	Encrypting         string // %s
	EncryptingError    string // %s
	Processing         string
	StopRequested      string
	Stopped            string
	DoneTime           string // %.2f
	DoneNoTime         string
	EncryptedReminder  string // %s
	Failed             string

	days   [7]string
	months [12]string
}

var english = Strings{
	Lang:              "en",
	SelectAll:         "Select all",
	Clear:             "Clear",
	Invert:            "Invert",
	DeleteSelected:    "Delete selected",
	DownloadPruned:    "Download Pruned HTML",
	SaveStates:        "Save States",
	ResetStates:       "Reset States",
	ExportState:       "Export State",
	ThemeLight:        "☀️ Light Theme",
	ThemeDark:         "🌙 Dark Theme",
	ThemeVibrant:      "🎨 Vibrant Theme",
	SearchPlaceholder: "Search messages… (#12 jumps to message 12)",
	Footer:            "Rotate images, switch theme, and view transcriptions. No internet required.",
	ExternalAudioName: "External Recorded Audio",
	MediaOmitted:      "Media not included in the export",
	ShowTranscription: "🎙️ Show Transcription",
	NotePlaceholder:   "Add a note…",
	StatesSaved:       "Checkbox states saved!",
	StatesReset:       "Checkbox states reset!",
	MessageDeleted:    "Message {num} — Deleted",
	StorageFailed:     "Could not save to browser storage (it may be full or disabled). Changes will not persist.",
	EncryptedSuffix:   "(Encrypted)",
	Rotate:            "↻ Rotate",
	DecryptionFailed:  "Decryption Failed",

	LookingForEngine:  "Checking the transcription engine...",
	SkippingEngine:    "Skipping transcription.",
	CreatingMediaDir:  "Creating encrypted media folder: %s",
	LoadingChat:       "Loading chat messages...",
	ScanningAudio:     "Scanning folder for all audio files...",
	FoundExternal:     "Found %d external audio files.",
	Sorting:           "Sorting %d total messages...",
	NoMessages:        "No messages or audio files could be loaded.",
	CountingAudio:     "Counting audio files to transcribe...",
	BuildingHTML:      "Building HTML...",
	Transcribing:      "Transcribing %d/%d: %s...",
	Encrypting:        "Encrypting %s...",
	EncryptingError:   "Failed to encrypt %s.",
	Processing:        "Processing messages...",
	StopRequested:     "Stop requested, finishing current file...",
	Stopped:           "Process stopped by user.",
	DoneTime:          "Done! Total transcription time: %.2f seconds.",
	DoneNoTime:        "Done! (No new transcriptions were needed).",
	EncryptedReminder: "Share the HTML together with the %s folder.",
	Failed:            "An error occurred: %s",

	days:   [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"},
	months: [12]string{"January", "February", "March", "April", "May", "June", "July", "August", "September", "October", "November", "December"},
}

var french = Strings{
	Lang:              "fr",
	SelectAll:         "Tout Sél.",
	Clear:             "Effacer",
	Invert:            "Inverser",
	DeleteSelected:    "Suppr. Sél.",
	DownloadPruned:    "Télécharger HTML Nettoyé",
	SaveStates:        "Sauv. États",
	ResetStates:       "Réinit. États",
	ExportState:       "Exporter l'état",
	ThemeLight:        "☀️ Thème Clair",
	ThemeDark:         "🌙 Thème Sombre",
	ThemeVibrant:      "🎨 Thème Vibrant",
	SearchPlaceholder: "Rechercher des messages… (#12 va au message 12)",
	Footer:            "Pivotez les images, changez de thème et voyez les transcriptions. Pas d'Internet requis.",
	ExternalAudioName: "Audio Enregistré Externe",
	MediaOmitted:      "Média non inclus dans l'export",
	ShowTranscription: "🎙️ Afficher la Transcription",
	NotePlaceholder:   "Ajouter une note…",
	StatesSaved:       "États des cases cochées enregistrés !",
	StatesReset:       "États des cases cochées réinitialisés !",
	MessageDeleted:    "Message {num} — Supprimé",
	StorageFailed:     "Impossible d'enregistrer dans le navigateur (stockage plein ou désactivé). Les modifications ne seront pas conservées.",
	EncryptedSuffix:   "(Crypté)",
	Rotate:            "↻ Pivoter",
	DecryptionFailed:  "Échec du décryptage",

	LookingForEngine:  "Vérification du moteur de transcription...",
	SkippingEngine:    "Transcription ignorée.",
	CreatingMediaDir:  "Création du dossier média crypté : %s",
	LoadingChat:       "Chargement des messages du chat...",
	ScanningAudio:     "Analyse du dossier pour les fichiers audio...",
	FoundExternal:     "Trouvé %d fichiers audio externes.",
	Sorting:           "Tri de %d messages au total...",
	NoMessages:        "Aucun message ou fichier audio n'a pu être chargé.",
	CountingAudio:     "Comptage des fichiers audio à transcrire...",
	BuildingHTML:      "Création du HTML...",
	Transcribing:      "Transcription %d/%d : %s...",
	Encrypting:        "Cryptage de %s...",
	EncryptingError:   "Échec du cryptage de %s.",
	Processing:        "Traitement des messages...",
	StopRequested:     "Arrêt demandé, fin du fichier actuel...",
	Stopped:           "Processus arrêté par l'utilisateur.",
	DoneTime:          "Terminé ! Temps total de transcription : %.2f secondes.",
	DoneNoTime:        "Terminé ! (Aucune nouvelle transcription n'était nécessaire).",
	EncryptedReminder: "Partagez le HTML avec le dossier %s.",
	Failed:            "Une erreur est survenue : %s",

	days:   [7]string{"Dimanche", "Lundi", "Mardi", "Mercredi", "Jeudi", "Vendredi", "Samedi"},
	months: [12]string{"janvier", "février", "mars", "avril", "mai", "juin", "juillet", "août", "septembre", "octobre", "novembre", "décembre"},
}

// For returns the strings for lang, falling back to English.
func For(lang string) *Strings {
	if strings.EqualFold(strings.TrimSpace(lang), "fr") {
		s := french
		return &s
	}
	s := english
	return &s
}

// LongDate renders t's calendar date in the language's usual long form.
func (s *Strings) LongDate(t time.Time) string {
	day := s.days[t.Weekday()]
	month := s.months[t.Month()-1]
	if s.Lang == "fr" {
		return fmt.Sprintf("%s %d %s %d", day, t.Day(), month, t.Year())
	}
	return fmt.Sprintf("%s, %s %d, %d", day, month, t.Day(), t.Year())
}

// DeletedPlaceholder fills MessageDeleted with a display number.
func (s *Strings) DeletedPlaceholder(num int) string {
	return strings.ReplaceAll(s.MessageDeleted, "{num}", fmt.Sprint(num))
}
