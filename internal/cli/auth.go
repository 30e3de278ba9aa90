package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/frizbank/frizbank/internal/auth"
	"github.com/frizbank/frizbank/internal/face"
	"github.com/frizbank/frizbank/internal/kv"
	"github.com/frizbank/frizbank/internal/session"
)

// Register creates a user. It does not log in.
func (a *App) Register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	fs.SetOutput(a.out)
	name := fs.String("name", "", "full name")
	email := fs.String("email", "", "email address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	n, err := a.required(*name, "Name")
	if err != nil {
		return err
	}
	e, err := a.required(*email, "Email")
	if err != nil {
		return err
	}
	pw, err := a.newPassword()
	if err != nil {
		return err
	}

	user, err := a.api.Register(ctx, n, e, pw)
	if err != nil {
		return err
	}
	a.session.Register(session.User{ID: user.ID, Name: user.Name, Email: user.Email})
	fmt.Fprintf(a.out, "Registered %s. Run `frizbank login` to enroll your face and sign in.\n", user.Email)
	return nil
}

// Login checks the password and then completes the face step, enrolling a
// face first when the user has none.
func (a *App) Login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(a.out)
	email := fs.String("email", "", "email address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := a.required(*email, "Email")
	if err != nil {
		return err
	}
	pw, err := a.promptPassword("Password")
	if err != nil {
		return err
	}

	res, err := a.api.Login(ctx, e, pw)
	if err != nil {
		return err
	}
	if !res.FaceVerified {
		if !res.FaceEnrolled {
			fmt.Fprintln(a.out, "No face enrolled yet. Look at the camera to enroll.")
			if err := a.enrollFace(ctx, res.User.ID, res.User.Email); err != nil {
				return err
			}
		}
		fmt.Fprintln(a.out, "Look at the camera to confirm it is you.")
		if res, err = a.verifyFace(ctx, res.User.Email); err != nil {
			return err
		}
	}
	return a.completeLogin(ctx, res)
}

func (a *App) completeLogin(ctx context.Context, res auth.LoginResponse) error {
	u := session.User{
		ID:           res.User.ID,
		Name:         res.User.Name,
		Email:        res.User.Email,
		AccountID:    res.AccountID,
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
	}
	if err := a.session.Login(ctx, u); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Welcome, %s.\n", u.Name)
	return nil
}

// Enroll replaces the enrolled face of the logged-in user.
func (a *App) Enroll(ctx context.Context, _ []string) error {
	u, err := a.current()
	if err != nil {
		return err
	}
	if err := a.enrollFace(ctx, u.ID, u.Email); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Face enrolled.")
	return nil
}

// Verify runs the face step again and refreshes the session tokens.
func (a *App) Verify(ctx context.Context, _ []string) error {
	u, err := a.current()
	if err != nil {
		return err
	}
	res, err := a.verifyFace(ctx, u.Email)
	if err != nil {
		return err
	}
	if res.Distance != nil {
		fmt.Fprintf(a.out, "Face recognized (distance %.3f).\n", *res.Distance)
	}
	u.AccessToken, u.RefreshToken = res.AccessToken, res.RefreshToken
	return a.session.Update(ctx, u)
}

// Logout revokes the tokens server side and clears the local session. The
// local session is cleared even when the server call fails.
func (a *App) Logout(ctx context.Context, _ []string) error {
	u, err := a.current()
	if err != nil {
		return err
	}
	apiErr := a.api.Logout(ctx)
	if err := a.session.Logout(ctx); err != nil {
		return err
	}
	if apiErr != nil {
		a.logger.Warn("server logout failed", "error", apiErr)
	}
	fmt.Fprintf(a.out, "Goodbye, %s.\n", u.Name)
	return nil
}

func (a *App) enrollFace(ctx context.Context, userID, email string) error {
	capture, err := a.newCapture(ctx)
	if err != nil {
		return err
	}
	d, err := capture.Enroll(ctx)
	if err != nil {
		return err
	}
	if err := a.api.EnrollFace(ctx, userID, d); err != nil {
		return err
	}
	return kv.SetJSON(ctx, a.store, kv.FaceDescriptorsKey(email), []face.Descriptor{d}, 0)
}

// verifyFace captures until a frame matches the locally cached descriptor,
// then lets the server confirm it. Without a cached descriptor the first
// detected face is sent as is.
func (a *App) verifyFace(ctx context.Context, email string) (auth.LoginResponse, error) {
	capture, err := a.newCapture(ctx)
	if err != nil {
		return auth.LoginResponse{}, err
	}

	var stored []face.Descriptor
	if _, err := kv.GetJSON(ctx, a.store, a.logger, kv.FaceDescriptorsKey(email), &stored); err != nil {
		return auth.LoginResponse{}, err
	}

	var candidate face.Descriptor
	if len(stored) > 0 {
		candidate, _, err = capture.Verify(ctx, stored...)
	} else {
		candidate, err = capture.Enroll(ctx)
	}
	if errors.Is(err, face.ErrNoMatch) || errors.Is(err, face.ErrTimeout) {
		return auth.LoginResponse{}, fmt.Errorf("face verification failed: %w", err)
	}
	if err != nil {
		return auth.LoginResponse{}, err
	}
	return a.api.VerifyFace(ctx, candidate)
}
