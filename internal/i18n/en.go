package i18n

// EnMessages English message catalog
var EnMessages = map[string]string{
	// Steps
	"step.checkin":       "Check-in",
	"step.qualityoflife": "Quality of Life",
	"step.rocks":         "Rocks",
	"step.todos":         "To-Dos",
	"step.issues":        "Issues",
	"step.close":         "Close",

	// UI (TUI) - Panel titles
	"panel.meeting": "Meeting",
	"panel.steps":   "Steps",
	"panel.notices": "Notices",

	// UI (TUI sidebar)
	"sidebar.total":    "Total",
	"sidebar.section":  "Section",
	"sidebar.progress": "Progress",
	"sidebar.owner":    "Owner",

	// UI - Status bar
	"status.ready":    "Ready",
	"status.saving":   "Saving...",
	"status.saved":    "Saved %s",
	"status.complete": "Meeting complete",
	"status.synced":   "%s set to %s",

	// UI (TUI) - Misc
	"tui.loading":      "Loading...",
	"tui.recap":        "Recap",
	"tui.summary_hint": "q quit · ↑/↓ scroll",

	// UI - Keybindings (TUI)
	"keys.next":   "ctrl+n next",
	"keys.back":   "ctrl+b back",
	"keys.goto":   "alt+1..6 jump",
	"keys.field":  "tab field",
	"keys.cycle":  "space status",
	"keys.save":   "ctrl+s save",
	"keys.quit":   "ctrl+c quit",
	"keys.finish": "enter finish",

	// Fields
	"field.word":    "Word for %s",
	"field.rating":  "%s rating (1-10)",
	"field.comment": "Comment",
	"field.notes":   "Notes",
	"field.qol":     "%s / %s",

	// Quality of Life categories
	"qol.physical":     "Physical",
	"qol.emotional":    "Emotional",
	"qol.relationship": "Relationship",
	"qol.financial":    "Financial",
	"qol.spiritual":    "Spiritual",

	// Empty lists
	"empty.rocks":  "No active rocks.",
	"empty.todos":  "No open to-dos.",
	"empty.issues": "No open issues.",

	// Close
	"close.confirm": "Press enter to complete the meeting.",
	"close.done":    "Meeting saved. Duration %s.",

	// Notifications
	"notify.sync_failed":     "Could not update %s: %v",
	"notify.save_failed":     "Could not save %s: %v",
	"notify.complete_failed": "Could not save the meeting summary: %v",
	"notify.derived_issue":   "Created issue %q",
	"notify.recap_failed":    "Recap unavailable: %v",

	// REPL
	"repl.welcome":  "Weekly meeting started. Type help for commands.",
	"repl.unknown":  "Unknown command: %s",
	"repl.usage":    "Usage: %s",
	"repl.bye":      "Meeting left open. Saved sections stay saved.",
	"repl.complete": "Meeting complete. Summary %s saved.",
	"repl.help": `Commands:
  next | back | goto <1-6>          move between sections
  checkin <1|2> <word>              set a partner's check-in word
  rate <category> <1|2> <1-10>      rate quality of life
  rock <n> <on-track|off-track|complete> [comment]
  todo <n> <incomplete|complete> [notes]
  issue <n> <open|solved> [notes]
  close <1|2> <1-10>                rate the meeting
  save                              save the current section
  status                            show progress and timers
  quit                              leave without completing`,

	// History / CLI
	"history.empty":  "No meetings yet.",
	"history.header": "Past meetings",

	"cli.owner_required": "No owner configured. Run: huddle whoami --set-id <id> --set-name <name>",
	"cli.created":        "Created %s %s",
	"cli.deleted":        "Deleted meeting %s",
	"cli.exported":       "Exported %d document(s) to %s",
	"cli.imported":       "Imported %d document(s)",
	"cli.whoami":         "%s (%s)",
	"cli.init":           "Wrote %s",
	"cli.init_exists":    "%s already exists",
	"cli.archived":       "Archived %s %s",
	"cli.restored":       "Restored %d saved section(s)",
	"cli.line_fallback":  "Falling back to plain input: %v",
	"cli.recap_written":  "Recap saved to %s",

	// Errors
	"error.invalid_step": "No section %d",
	"error.complete":     "This meeting is already complete",
}
