package config

const (
	DefaultTickIntervalMS  = 1000
	DefaultSyncConcurrency = 4
	DefaultSaveTimeoutMS   = 10000

	DefaultPromptTokenBudget = 3000
)
