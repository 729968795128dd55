package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	// QuizChanged is true when any drill tuning value changed. New drills
	// pick the values up; running drills keep the ones they started with.
	QuizChanged bool
	NewQuiz     QuizConfig

	LogLevelChanged bool
	NewLogLevel     LogLevel

	// ContentChanged is true when the content source or its location
	// changed. The store is reopened on the next course load.
	ContentChanged bool
	NewContent     ContentConfig
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Quiz != new.Quiz {
		d.QuizChanged = true
		d.NewQuiz = new.Quiz
	}

	if old.Content != new.Content {
		d.ContentChanged = true
		d.NewContent = new.Content
	}

	return d
}
