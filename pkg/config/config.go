package config

import "fmt"

func errDialectRequiresDSN(dialect StoreDialect) error {
	return fmt.Errorf("config: store.dsn is required for dialect %q", dialect)
}

func errUnknownDialect(dialect StoreDialect) error {
	return fmt.Errorf("config: unknown store.dialect %q (want memory, postgres, mysql or sqlite)", dialect)
}

func errAuthField(field string) error {
	return fmt.Errorf("config: auth.%s is required when auth.enabled is true", field)
}

// ProcessConfigPipeline applies defaults and cross-field validation to a
// freshly unmarshaled Config.
func ProcessConfigPipeline(cfg *Config) (*Config, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
