package stationing

import "fmt"

// ConfigError rejects one section's parameters. Other sections of the same
// file are still processed.
type ConfigError struct {
	SectionID string
	Field     string
	Reason    string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid section %q: %s %s", e.SectionID, e.Field, e.Reason)
}
