package providers

import (
	"github.com/samber/do/v2"

	"github.com/neurotunes/neurotunes-server/internal/auth"
	"github.com/neurotunes/neurotunes-server/internal/config"
	"github.com/neurotunes/neurotunes-server/internal/logger"
)

// IdentityKey is the PASETO key shared with the identity provider.
type IdentityKey []byte

// ProvideIdentityKey uses the configured key or loads/generates one under the data path.
func ProvideIdentityKey(i do.Injector) (IdentityKey, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if len(cfg.Identity.Key) > 0 {
		return IdentityKey(cfg.Identity.Key), nil
	}

	key, err := auth.LoadOrGenerateKey(cfg.Storage.DataPath)
	if err != nil {
		return nil, err
	}
	log.Warn("Using locally generated identity key; tokens from an external provider will not verify")
	return IdentityKey(key), nil
}

func identityConfig(cfg *config.Config, key IdentityKey) auth.VerifierConfig {
	return auth.VerifierConfig{
		Key:             key,
		Issuer:          cfg.Identity.Issuer,
		Audience:        cfg.Identity.Audience,
		CaregiverEmails: cfg.Identity.CaregiverEmails,
	}
}

// ProvideVerifier provides the bearer token verifier.
func ProvideVerifier(i do.Injector) (*auth.Verifier, error) {
	cfg := do.MustInvoke[*config.Config](i)
	key := do.MustInvoke[IdentityKey](i)
	return auth.NewVerifier(identityConfig(cfg, key))
}

// ProvideIssuer provides a token issuer sharing the verifier's key. Only
// development tooling uses it.
func ProvideIssuer(i do.Injector) (*auth.Issuer, error) {
	cfg := do.MustInvoke[*config.Config](i)
	key := do.MustInvoke[IdentityKey](i)
	return auth.NewIssuer(identityConfig(cfg, key))
}
