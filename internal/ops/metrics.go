package ops

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EntriesRecorded counts successfully persisted ledger entries.
	EntriesRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kesef_entries_recorded_total",
		Help: "Ledger entries persisted from free-text messages.",
	})

	// ParseRejections counts free-text messages rejected by the parser.
	ParseRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kesef_parse_rejections_total",
		Help: "Free-text messages rejected before persistence.",
	})

	// CommandsHandled counts slash commands by name.
	CommandsHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kesef_commands_total",
		Help: "Slash commands handled, labeled by command.",
	}, []string{"command"})

	// StoreErrors counts storage failures surfaced to users as the
	// generic failure reply.
	StoreErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kesef_store_errors_total",
		Help: "Storage-layer failures observed at the handler boundary.",
	})
)
