package config

import "github.com/specialistvlad/femloop/internal/params"

// Model is the unified, format-agnostic representation of a session file.
type Model struct {
	Run        RunConfiguration
	Script     ScriptConfig
	Parameters *params.Set
	// History lists the time-history series to export after every solve.
	History  []int
	Gradient GradientConfig
	Journal  JournalConfig
	Status   StatusConfig
	Progress ProgressConfig
}

// ScriptConfig names the model files copied into the run directory.
type ScriptConfig struct {
	Main       string
	ExtraFiles []string
	Location   string
}

// GradientConfig holds finite-difference defaults.
type GradientConfig struct {
	Method  string
	Step    float64
	OnlyFor []string
	NotFor  []string
}

// JournalConfig enables the sqlite run journal when Path is set.
type JournalConfig struct {
	Path string
}

// StatusConfig enables the status HTTP server when Port is positive.
type StatusConfig struct {
	Port int
}

// ProgressConfig enables socket.io progress events when URL is set.
type ProgressConfig struct {
	URL                string
	Namespace          string
	Event              string
	InsecureSkipVerify bool
}

// Defaults for the gradient block.
const (
	DefaultGradientMethod = "forward"
	DefaultGradientStep   = 0.05
	DefaultProgressEvent  = "femloop:progress"
)

// NewModel returns a Model with defaults applied.
func NewModel() *Model {
	return &Model{
		Run:        RunConfiguration{}.WithDefaults(),
		Script:     ScriptConfig{Location: "."},
		Parameters: params.New(),
		Gradient:   GradientConfig{Method: DefaultGradientMethod, Step: DefaultGradientStep},
		Progress:   ProgressConfig{Event: DefaultProgressEvent},
	}
}
