package hcl_adapter

import "github.com/hashicorp/hcl/v2"

// fileRoot is a struct used to decode all possible top-level blocks from any
// file. Every block is optional; pointer attributes are nil when omitted so
// a later file only overrides what it sets.
type fileRoot struct {
	Solver     *SolverBlock     `hcl:"solver,block"`
	Model      *ModelBlock      `hcl:"model,block"`
	Parameters *ParametersBlock `hcl:"parameters,block"`
	History    *HistoryBlock    `hcl:"history,block"`
	Gradient   *GradientBlock   `hcl:"gradient,block"`
	Journal    *JournalBlock    `hcl:"journal,block"`
	Status     *StatusBlock     `hcl:"status,block"`
	Progress   *ProgressBlock   `hcl:"progress,block"`
	Remain     hcl.Body         `hcl:",remain"`
}

// SolverBlock maps to config.RunConfiguration. Durations are Go duration
// strings such as "500ms".
type SolverBlock struct {
	Executable   *string   `hcl:"executable,optional"`
	RunDir       *string   `hcl:"run_dir,optional"`
	JobName      *string   `hcl:"job_name,optional"`
	Processors   *int      `hcl:"processors,optional"`
	ExtraFlags   *[]string `hcl:"extra_flags,optional"`
	OverrideLock *bool     `hcl:"override_lock,optional"`
	PollInterval *string   `hcl:"poll_interval,optional"`
	MonitorWait  *string   `hcl:"monitor_wait,optional"`
	StartTimeout *string   `hcl:"start_timeout,optional"`
	StartSleep   *string   `hcl:"start_sleep,optional"`
	KillInterval *string   `hcl:"kill_interval,optional"`
	DoneTimeout  *string   `hcl:"done_timeout,optional"`
}

// ModelBlock maps to config.ScriptConfig.
type ModelBlock struct {
	Main       *string   `hcl:"main,optional"`
	ExtraFiles *[]string `hcl:"extra_files,optional"`
	Location   *string   `hcl:"location,optional"`
}

// ParametersBlock holds free-form NAME = value attributes.
type ParametersBlock struct {
	Body hcl.Body `hcl:",remain"`
}

// HistoryBlock lists the time-history variables exported on every solve.
type HistoryBlock struct {
	Series []int `hcl:"series"`
}

// GradientBlock maps to config.GradientConfig.
type GradientBlock struct {
	Method  *string   `hcl:"method,optional"`
	Step    *float64  `hcl:"step,optional"`
	OnlyFor *[]string `hcl:"only_for,optional"`
	NotFor  *[]string `hcl:"not_for,optional"`
}

// JournalBlock maps to config.JournalConfig.
type JournalBlock struct {
	Path string `hcl:"path"`
}

// StatusBlock maps to config.StatusConfig.
type StatusBlock struct {
	Port int `hcl:"port"`
}

// ProgressBlock maps to config.ProgressConfig.
type ProgressBlock struct {
	URL                string  `hcl:"url"`
	Namespace          *string `hcl:"namespace,optional"`
	Event              *string `hcl:"event,optional"`
	InsecureSkipVerify *bool   `hcl:"insecure_skip_verify,optional"`
}
