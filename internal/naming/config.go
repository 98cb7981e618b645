// Package naming turns SQL catalog names into GraphQL names: inflection,
// relation field names, reserved words and collision suffixes.
package naming

// Config customizes inflection for words the inflection rules get wrong.
type Config struct {
	// PluralOverrides maps a singular word to its plural, e.g. person -> people.
	PluralOverrides map[string]string `mapstructure:"plural_overrides"`
	// SingularOverrides maps a plural word to its singular, e.g. data -> datum.
	SingularOverrides map[string]string `mapstructure:"singular_overrides"`
}

// DefaultConfig returns a config without overrides.
func DefaultConfig() Config {
	return Config{
		PluralOverrides:   map[string]string{},
		SingularOverrides: map[string]string{},
	}
}
