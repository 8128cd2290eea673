package domain

import (
	"errors"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

const (
	DefaultMinPasswordLength = 6
	MaxDisplayNameLength     = 100
	maxEmailLength           = 254
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
	trans        ut.Translator
)

func validatorInstance() (*validator.Validate, ut.Translator) {
	validateOnce.Do(func() {
		validate = validator.New()
		english := en.New()
		trans, _ = ut.New(english, english).GetTranslator("en")
		_ = en_translations.RegisterDefaultTranslations(validate, trans)
	})
	return validate, trans
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail expects an already normalized address.
func ValidateEmail(email string) error {
	if email == "" {
		return ErrMissingField("email")
	}
	if len(email) > maxEmailLength {
		return ErrInvalidField("email", "too long")
	}
	v, tr := validatorInstance()
	if err := v.Var(email, "email"); err != nil {
		reason := "must be a valid email address"
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			reason = strings.TrimSpace(verrs[0].Translate(tr))
		}
		return ErrInvalidField("email", reason)
	}
	return nil
}

func ValidatePassword(password string, minLen int) error {
	if minLen <= 0 {
		minLen = DefaultMinPasswordLength
	}
	if utf8.RuneCountInString(password) < minLen {
		return ErrWeakCredential(minLen)
	}
	return nil
}

// NormalizeDisplayName trims and length-checks a caller supplied display name.
func NormalizeDisplayName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > MaxDisplayNameLength {
		return "", ErrInvalidField("displayName", "too long")
	}
	if !utf8.ValidString(name) {
		return "", ErrInvalidField("displayName", "invalid utf-8")
	}
	return name, nil
}

// forbiddenProfileFields exist on Profile but are not caller-writable.
var forbiddenProfileFields = map[string]struct{}{
	"accountId":   {},
	"email":       {},
	"role":        {},
	"isActive":    {},
	"createdAt":   {},
	"lastLoginAt": {},
	"updatedAt":   {},
}

// ParseProfilePatch converts caller supplied fields into a ProfilePatch.
// Only displayName is writable.
func ParseProfilePatch(fields map[string]any) (ProfilePatch, error) {
	if len(fields) == 0 {
		return ProfilePatch{}, ErrEmptyUpdate()
	}

	var p ProfilePatch
	for k, v := range fields {
		switch k {
		case "displayName":
			s, ok := v.(string)
			if !ok {
				return ProfilePatch{}, ErrInvalidField("displayName", "must be a string")
			}
			name, err := NormalizeDisplayName(s)
			if err != nil {
				return ProfilePatch{}, err
			}
			p.DisplayName = &name
		default:
			if _, ok := forbiddenProfileFields[k]; ok {
				return ProfilePatch{}, ErrForbiddenField(k)
			}
			return ProfilePatch{}, ErrUnknownField(k)
		}
	}
	return p, nil
}
