package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	out.Database = cfg.Database
	redact(&out.Database.DSN)
	redact(&out.Database.Password)

	out.Redis = cfg.Redis
	redact(&out.Redis.Password)

	out.S3 = cfg.S3
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	out.LLM = cfg.LLM
	redact(&out.LLM.OpenRouterAPIKey)
	redact(&out.LLM.OpenAIAPIKey)

	out.Email = cfg.Email
	redact(&out.Email.ResendAPIKey)

	// Copy slices so callers cannot mutate the original through the redacted
	// copy.
	if cfg.Engine.UserAgents != nil {
		out.Engine.UserAgents = make([]string, len(cfg.Engine.UserAgents))
		copy(out.Engine.UserAgents, cfg.Engine.UserAgents)
	}
	if cfg.Server.CORSOrigins != nil {
		out.Server.CORSOrigins = make([]string, len(cfg.Server.CORSOrigins))
		copy(out.Server.CORSOrigins, cfg.Server.CORSOrigins)
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
