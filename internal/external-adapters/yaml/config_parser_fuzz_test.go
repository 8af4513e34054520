package yaml

import (
	"testing"
)

// FuzzConfigParser tests the YAML parser against random/malformed inputs
// to detect crashes, panics, or unexpected behavior.
//
// Run with: go test -fuzz=FuzzConfigParser -fuzztime=30s
func FuzzConfigParser(f *testing.F) {
	f.Add([]byte(`database:
  driver: sqlite
  dsn: enforcer.db
`))
	f.Add([]byte(`database:
  driver: postgres
  dsn_secret: prod/governance
lifecycle:
  deprecation_window_months: 12
log:
  level: debug
  format: json
`))
	f.Add([]byte(`database: [`))
	f.Add([]byte(``))

	f.Fuzz(func(t *testing.T, data []byte) {
		cfg, err := NewConfigParserWithEnv(noEnv).Parse(data)
		if err != nil {
			return
		}
		if cfg.Database.Driver == "" {
			t.Error("accepted config has no driver")
		}
		if cfg.Lifecycle.DeprecationWindowMonths < 0 {
			t.Error("accepted config has a negative deprecation window")
		}
	})
}
