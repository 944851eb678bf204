package cli

import (
	"context"
	"flag"
	"fmt"
)

func (a *App) cmdLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(a.out)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var err error
	if *email == "" {
		if *email, err = a.readLine("Email: "); err != nil {
			return err
		}
	}
	if *password == "" {
		if *password, err = a.readLine("Password: "); err != nil {
			return err
		}
	}

	user, err := a.api.Login(context.Background(), *email, *password)
	if err != nil {
		return a.friendlyError(err)
	}
	okColor.Fprintf(a.out, "Signed in as %s\n", user.Email)
	return nil
}

func (a *App) cmdSignup(args []string) error {
	fs := flag.NewFlagSet("signup", flag.ContinueOnError)
	fs.SetOutput(a.out)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	company := fs.String("company", "", "company name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var err error
	if *email == "" {
		if *email, err = a.readLine("Email: "); err != nil {
			return err
		}
	}
	if *password == "" {
		if *password, err = a.readLine("Password: "); err != nil {
			return err
		}
	}
	if *company == "" {
		if *company, err = a.readLine("Company: "); err != nil {
			return err
		}
	}

	user, err := a.api.Signup(context.Background(), *email, *password, *company)
	if err != nil {
		return a.friendlyError(err)
	}
	okColor.Fprintf(a.out, "Account created for %s\n", user.Email)
	return nil
}

func (a *App) cmdLogout(_ []string) error {
	ctx := context.Background()
	if err := a.api.Logout(ctx); err != nil {
		// Local credentials are gone either way; the server-side failure
		// is informational.
		fmt.Fprintf(a.out, "Note: server sign-out failed (%v), local credentials cleared.\n", err)
		return nil
	}
	if err := a.store.ClearSessionID(ctx); err != nil {
		return err
	}
	okColor.Fprintln(a.out, "Signed out.")
	return nil
}
