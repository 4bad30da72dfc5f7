package am

import "github.com/spf13/viper"

// SetDefaults registers the baseline configuration. Every key listed here is
// overridable by any file layer or DOXA_* environment variable.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "")

	v.SetDefault("server.allowed_origins", []string{})

	v.SetDefault("inference.max_rounds", 100)
	v.SetDefault("inference.max_derivations", 10000)
	v.SetDefault("inference.rules_dir", "")
	v.SetDefault("inference.hierarchy", true)

	v.SetDefault("ontology.overlap_policy", "reject")

	v.SetDefault("watch.enabled", false)

	v.SetDefault("display.json", false)
	v.SetDefault("display.color", true)
}

// BindSensitiveEnvVars binds keys that must work from the environment even
// when no config file mentions them. AutomaticEnv only resolves keys viper
// already knows about, so explicit binds are needed for these.
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("database.path", "DOXA_DATABASE_PATH")
	v.BindEnv("server.port", "DOXA_SERVER_PORT")
	v.BindEnv("inference.rules_dir", "DOXA_INFERENCE_RULES_DIR")
}
