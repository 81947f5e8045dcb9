package main

// EnvActor supplies the acting user when --actor is not given.
const EnvActor = "DIRECTORY_ACTOR"

// Default limits for CLI commands.
const (
	DefaultListLimit = 50
	DefaultAuditShow = 20
)

// Valid output formats for reports.
var validFormats = []string{"text", "json"}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
