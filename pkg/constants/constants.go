package constants

const (
	ConfigName   = "consultorio"
	ConfigFormat = "yaml"
	EnvPrefix    = "CONSULTORIO"
)

// LoginSuffix turns a short username into the internal credential identifier.
const LoginSuffix = "@sistema.local"
