package sandbox

// ValidateEnv checks an environment variable name against the hard deny
// list (always applied) and then the per-agent allowlist.
func (p *Policy) ValidateEnv(name string) error {
	if containsFold(defaultEnvDenylist, name) {
		return p.deny("env", name, "denied by default env deny list")
	}
	if len(p.EnvAllow) > 0 && !containsFold(p.EnvAllow, name) {
		return p.deny("env", name, "not in agent env allowlist")
	}
	p.allow("env", name)
	return nil
}
