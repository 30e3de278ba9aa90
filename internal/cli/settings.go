package cli

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/frizbank/frizbank/internal/client"
	"github.com/frizbank/frizbank/internal/kv"
	"github.com/frizbank/frizbank/internal/users"
)

// Profile prints the profile, or updates name and email when flags are set.
func (a *App) Profile(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("profile", flag.ContinueOnError)
	fs.SetOutput(a.out)
	name := fs.String("name", "", "new name")
	email := fs.String("email", "", "new email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	u, err := a.current()
	if err != nil {
		return err
	}

	var update client.ProfileUpdate
	if *name != "" {
		update.Name = name
	}
	if *email != "" {
		update.Email = email
	}

	var profile users.Response
	err = a.authed(ctx, func() (err error) {
		if update.Name == nil && update.Email == nil {
			profile, err = a.api.Me(ctx)
		} else {
			profile, err = a.api.UpdateProfile(ctx, u.ID, update)
		}
		return err
	})
	if err != nil {
		return err
	}
	if profile.Name != u.Name || profile.Email != u.Email {
		u.Name, u.Email = profile.Name, profile.Email
		if err := a.session.Update(ctx, u); err != nil {
			return err
		}
	}
	fmt.Fprint(a.out, RenderProfile(profile, a.theme(ctx)))
	return nil
}

// Password changes the password of the logged-in user.
func (a *App) Password(ctx context.Context, _ []string) error {
	u, err := a.current()
	if err != nil {
		return err
	}
	pw, err := a.newPassword()
	if err != nil {
		return err
	}
	err = a.authed(ctx, func() error {
		_, err := a.api.UpdateProfile(ctx, u.ID, client.ProfileUpdate{Password: &pw})
		return err
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Password updated.")
	return nil
}

// Theme sets dark or light mode, or toggles it without an argument. The
// choice is kept locally and synced to the server when logged in.
func (a *App) Theme(ctx context.Context, args []string) error {
	var dark bool
	switch mode := strings.ToLower(strings.Join(args, "")); mode {
	case "":
		dark = !a.theme(ctx).Dark
	case "dark":
		dark = true
	case "light":
		dark = false
	default:
		return fmt.Errorf("unknown theme %q, want dark or light", mode)
	}

	if err := a.store.Set(ctx, kv.DarkModeKey, strconv.FormatBool(dark), 0); err != nil {
		return err
	}
	if u, ok := a.session.Current(); ok {
		err := a.authed(ctx, func() error { return a.api.SetDarkMode(ctx, u.ID, dark) })
		if err != nil {
			a.logger.Warn("sync theme", "error", err)
		}
	}
	fmt.Fprintf(a.out, "Theme: %s\n", themeFor(dark).Name)
	return nil
}

// theme reads the locally stored preference; light when unset.
func (a *App) theme(ctx context.Context) Theme {
	raw, err := a.store.Get(ctx, kv.DarkModeKey)
	if err != nil {
		return themeFor(false)
	}
	dark, _ := strconv.ParseBool(raw)
	return themeFor(dark)
}
