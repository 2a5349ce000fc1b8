package commands

import (
	"github.com/mosaicnetworks/hyperdag/src/config"
)

//CLIConfig contains configuration for the Run command
type CLIConfig struct {
	Hyperdag config.Config `mapstructure:",squash"`
}

//NewDefaultCLIConfig creates a CLIConfig with default values
func NewDefaultCLIConfig() *CLIConfig {
	return &CLIConfig{
		Hyperdag: *config.NewDefaultConfig(),
	}
}
