package config

import (
	"os"
	"path/filepath"
	"strings"
)

// Deployment environments recognised in APP_ENV.
const (
	EnvironmentDevelopment = "development"
	EnvironmentStaging     = "staging"
	EnvironmentProduction  = "production"
)

// envAliases maps shorthands and common misspellings seen in deploy manifests.
var envAliases = map[string]string{
	"dev":         EnvironmentDevelopment,
	"prod":        EnvironmentProduction,
	"producation": EnvironmentProduction,
	"stag":        EnvironmentStaging,
	"stagging":    EnvironmentStaging,
}

// AppEnvironment returns APP_ENV lower-cased with aliases resolved, or
// development when it is unset.
func AppEnvironment() string {
	env := strings.ToLower(strings.TrimSpace(os.Getenv("APP_ENV")))
	if env == "" {
		return EnvironmentDevelopment
	}
	if canonical, ok := envAliases[env]; ok {
		return canonical
	}
	return env
}

// IsProductionLike reports whether env stops a run on the first malformed
// input line when the config file does not choose a policy.
func IsProductionLike(env string) bool {
	return env == EnvironmentProduction || env == EnvironmentStaging
}

func defaultOnError(env string) string {
	if IsProductionLike(env) {
		return OnErrorFail
	}
	return OnErrorSkip
}

// ResolveConfigPath returns config/config.<env>.yml in place of defaultPath
// when that file exists. A path other than the default is returned as is.
func ResolveConfigPath(path, defaultPath string) string {
	if path == "" {
		path = defaultPath
	}
	if path != defaultPath {
		return path
	}

	candidate := filepath.Join("config", "config."+AppEnvironment()+".yml")
	if _, err := os.Stat(candidate); err != nil {
		return path
	}
	return candidate
}
