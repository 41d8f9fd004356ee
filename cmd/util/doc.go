// Package util holds the helpers shared by the statsinit commands: flag setup,
// configuration loading (env files, environment variables, YAML config file)
// and the translation from configuration to a store connector.
package util
