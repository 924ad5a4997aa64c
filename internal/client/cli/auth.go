package cli

import (
	"bytes"
	"context"
	"errors"

	"github.com/dmitrijs2005/wayne/internal/common"
)

// getPassword is swapped in tests to avoid touching the terminal.
var getPassword = GetPassword

var errPasswordMismatch = errors.New("passwords do not match")

func (a *App) readCredentials(confirm bool) (string, []byte, error) {
	email, err := GetSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return "", nil, err
	}

	password, err := getPassword("Enter password", a.out)
	if err != nil {
		return "", nil, err
	}
	if !confirm {
		return email, password, nil
	}

	repeat, err := getPassword("Repeat password", a.out)
	if err != nil {
		common.WipeByteArray(password)
		return "", nil, err
	}
	defer common.WipeByteArray(repeat)
	if !bytes.Equal(password, repeat) {
		common.WipeByteArray(password)
		return "", nil, errPasswordMismatch
	}
	return email, password, nil
}

func (a *App) Register(ctx context.Context) error {
	email, password, err := a.readCredentials(true)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	remember, err := GetConfirmation(a.reader, "Remember this session for later refreshes?", a.out)
	if err != nil {
		return err
	}

	s, err := a.api.Register(ctx, email, string(password), remember)
	if err != nil {
		return err
	}

	a.email = common.NormalizeEmail(email)
	a.println("Registered, user id", s.UserID)
	return nil
}

func (a *App) Login(ctx context.Context) error {
	email, password, err := a.readCredentials(false)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	remember, err := GetConfirmation(a.reader, "Remember this session for later refreshes?", a.out)
	if err != nil {
		return err
	}

	if _, err := a.api.Login(ctx, email, string(password), remember); err != nil {
		return err
	}

	a.email = common.NormalizeEmail(email)
	a.println("Login successful")
	return nil
}

func (a *App) Refresh(ctx context.Context) error {
	if err := a.api.Refresh(ctx); err != nil {
		if !a.isLoggedIn() {
			a.email = ""
		}
		return err
	}
	a.println("Access token refreshed")
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	err := a.api.Logout(ctx)
	a.email = ""
	if err != nil {
		return err
	}
	a.println("Logged out")
	return nil
}

// ChangePassword changes the account password. The server revokes every
// refresh token of the account, so the local session is dropped as well.
func (a *App) ChangePassword(ctx context.Context) error {
	current, err := getPassword("Current password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(current)

	next, err := getPassword("New password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(next)

	repeat, err := getPassword("Repeat new password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(repeat)
	if !bytes.Equal(next, repeat) {
		return errPasswordMismatch
	}

	if err := a.api.ChangePassword(ctx, string(current), string(next)); err != nil {
		return err
	}

	a.api.SetTokens("", "")
	a.email = ""
	a.println("Password changed, all sessions were signed out. Please log in again.")
	return nil
}
