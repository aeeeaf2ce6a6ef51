package cli

import _ "embed"

//go:embed default_config.yaml
var embeddedDefaultConfigurationContent []byte

// EmbeddedDefaultConfiguration exposes a copy of the baked-in default
// configuration together with its format identifier.
func EmbeddedDefaultConfiguration() ([]byte, string) {
	configurationCopy := make([]byte, len(embeddedDefaultConfigurationContent))
	copy(configurationCopy, embeddedDefaultConfigurationContent)
	return configurationCopy, configurationTypeConstant
}
