package authorize

import "github.com/Alijeyrad/consultorio_backend/config"

type Config struct {
	// ModelPath overrides DefaultModel when set.
	ModelPath string
	// PolicyPath is a casbin CSV policy file. DefaultPolicies are used when empty.
	PolicyPath string
	// EnableAudit logs every decision.
	EnableAudit bool
}

func FromCentralConfig(c config.AuthorizationConfig) Config {
	return Config{
		ModelPath:   c.ModelPath,
		PolicyPath:  c.PolicyPath,
		EnableAudit: c.EnableAudit,
	}
}
