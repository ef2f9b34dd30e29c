// Package qforge holds application-wide defaults shared by the QuestForge
// packages and entrypoints.
package qforge

const (
	// DefaultAppName is used for config discovery and data directories.
	DefaultAppName = "questforge"

	// DefaultConfigPath is the fallback config directory.
	DefaultConfigPath = "$HOME/.config/questforge"

	// DefaultDataDir is where embedded databases live by default.
	DefaultDataDir = "$HOME/.local/share/questforge"

	// DefaultStoreDriver selects the session store when none is configured.
	DefaultStoreDriver = "memory"

	// DefaultStoreDSN is the embedded libsql database location.
	DefaultStoreDSN = "file:questforge.db"

	// DefaultProviderBackend selects the generative provider adapter.
	DefaultProviderBackend = "gemini"

	// DefaultProviderModel is the model requested from the provider.
	DefaultProviderModel = "gemini-2.5-pro"
)
