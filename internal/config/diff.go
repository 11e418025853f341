package config

import "reflect"

// ConfigDiff describes what changed between two configs. Provider, chat and
// conversation changes apply to sessions started afterwards; the fields in
// RestartRequired only take effect after a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	ProvidersChanged    bool
	ChatChanged         bool
	ConversationChanged bool

	// RestartRequired lists the changed keys that a reload cannot apply.
	RestartRequired []string
}

// Changed reports whether anything differs.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.ProvidersChanged || d.ChatChanged ||
		d.ConversationChanged || len(d.RestartRequired) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	d.ProvidersChanged = !reflect.DeepEqual(old.Providers, new.Providers)
	d.ChatChanged = !reflect.DeepEqual(old.Chat, new.Chat)
	d.ConversationChanged = !reflect.DeepEqual(old.Conversation, new.Conversation)

	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server.listen_addr")
	}
	if !reflect.DeepEqual(old.Server.TLS, new.Server.TLS) {
		d.RestartRequired = append(d.RestartRequired, "server.tls")
	}
	if old.Store != new.Store {
		d.RestartRequired = append(d.RestartRequired, "store")
	}
	if old.Resilience != new.Resilience {
		d.RestartRequired = append(d.RestartRequired, "resilience")
	}
	return d
}
