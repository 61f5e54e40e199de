package cmd

import "fmt"

// ConfigShowCmd prints the effective configuration
type ConfigShowCmd struct{}

// Run executes the config show command.
func (c *ConfigShowCmd) Run(g *Globals) error {
	cfg, err := g.loadConfig(nil)
	if err != nil {
		return err
	}

	out, err := cfg.Redacted().YAML()
	if err != nil {
		return err
	}
	_, _ = fmt.Fprint(stdout, out)
	return nil
}
