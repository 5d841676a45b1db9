// Package assets verifies the validation-asset bundle (XSD schemas,
// KoSIT scenario/repository configuration) is present before the
// worker starts accepting transactions. The original Python service
// (scripts/setup_validation_assets.py) downloads this bundle on
// deployment; the Go worker does not reach out to the network for it,
// but it does not start silently misconfigured: cmd/worker run logs the
// returned error at boot and then keeps running in a degraded mode
// (missing KoSIT assets make the schematron stage SKIPPED per invoice).
package assets

import (
	"fmt"
	"os"

	"github.com/diewo77/invoice-pipeline/internal/config"
)

// EnsureValidationAssets checks that every configured asset path
// exists and is readable. It does not validate the *content* of the
// schemas — that happens lazily the first time xsdvalidate compiles
// them — only that the deployment wired the paths correctly.
func EnsureValidationAssets(cfg config.Config) error {
	checks := []struct {
		name string
		path string
	}{
		{"xsd_schema_dir", cfg.XSDSchemaDir},
		{"kosit_jar_path", cfg.KositJarPath},
		{"kosit_scenarios_path", cfg.KositScenariosPath},
		{"kosit_repository_path", cfg.KositRepositoryPath},
	}
	var missing []string
	for _, c := range checks {
		if c.path == "" {
			missing = append(missing, c.name+" (unset)")
			continue
		}
		if _, err := os.Stat(c.path); err != nil {
			missing = append(missing, fmt.Sprintf("%s (%s): %v", c.name, c.path, err))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("validation assets not available: %v", missing)
	}
	return nil
}
