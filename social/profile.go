package social

import (
	"encoding/json"
	"errors"
	"strings"

	auth "github.com/goliatone/go-storefront-auth"
)

var errMissingSubject = errors.New("profile has no subject id")

// DecodeProfile unmarshals a user-info payload into v
func DecodeProfile(provider auth.ProviderKey, raw []byte, v any) error {
	if len(raw) == 0 {
		return InvalidProfile(string(provider), errors.New("empty profile payload"))
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return InvalidProfile(string(provider), err)
	}
	return nil
}

// BuildIdentity trims the normalized fields and validates the result
func BuildIdentity(provider auth.ProviderKey, subject, email, name, avatar string) (*auth.CanonicalIdentity, error) {
	identity := &auth.CanonicalIdentity{
		Provider:  provider,
		SubjectID: strings.TrimSpace(subject),
		Email:     auth.NormalizeEmail(email),
		Name:      strings.TrimSpace(name),
		Avatar:    strings.TrimSpace(avatar),
	}
	if identity.SubjectID == "" {
		return nil, InvalidProfile(string(provider), errMissingSubject)
	}
	if err := identity.Validate(); err != nil {
		return nil, err
	}
	return identity, nil
}
