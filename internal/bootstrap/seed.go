package bootstrap

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/application/account"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

type devAccount struct {
	Email    string
	Password string
	Name     string
	Role     domain.Role
	Active   bool
}

var devAccounts = []devAccount{
	{Email: "admin@example.com", Password: "AdminPassword123!", Name: "Admin", Role: domain.RoleAdmin, Active: true},
	{Email: "moderator@example.com", Password: "ModeratorPassword123!", Name: "Moderator", Role: domain.RoleModerator, Active: true},
	{Email: "user@example.com", Password: "UserPassword123!", Name: "User", Role: domain.RoleUser, Active: true},
	{Email: "deactivated@example.com", Password: "DeactivatedPassword123!", Name: "Deactivated", Role: domain.RoleUser, Active: false},
}

// SeedDevAccounts signs up the fixed local accounts through the service, then
// applies the privileged role and activation changes directly to the profile store.
// Safe to call on every start: existing accounts are left alone.
func SeedDevAccounts(ctx context.Context, svc *account.Service, profiles ProfileAdmin, log zerolog.Logger) {
	seeded := 0
	for _, a := range devAccounts {
		prof, err := svc.SignUp(ctx, account.SignUpInput{Email: a.Email, Password: a.Password, DisplayName: a.Name})
		if err != nil {
			if !domain.IsKind(err, domain.KindDuplicateAccount) {
				log.Warn().Err(err).Str("email", a.Email).Msg("seed sign-up failed")
			}
			continue
		}

		if a.Role != domain.RoleUser {
			prof.Role = a.Role
			prof.Version++
			if err := profiles.Put(ctx, prof); err != nil {
				log.Warn().Err(err).Str("email", a.Email).Msg("seed role grant failed")
			}
		}
		if !a.Active {
			if err := profiles.SetActive(ctx, prof.AccountID, false); err != nil {
				log.Warn().Err(err).Str("email", a.Email).Msg("seed deactivation failed")
			}
		}
		seeded++
	}
	log.Info().Int("created", seeded).Msg("dev accounts seeded")
}
