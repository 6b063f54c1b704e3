package main

import (
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	domainauth "github.com/todoproduction/todo-client/internal/domain/auth"
)

var errNotLoggedIn = errors.New("not logged in")

func runLogin(ctx *commandContext, args []string) error {
	fs := ctx.flagSet("login")
	email := fs.String("email", "", "Account email (required)")
	password := fs.String("password", "", "Password; read from stdin when omitted")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	pw := *password
	if pw == "" {
		var err error
		if pw, err = readLine(ctx.In); err != nil {
			return err
		}
	}

	out, err := ctx.Services.Auth.Login(ctx.Ctx, *email, pw)
	if err != nil {
		return err
	}
	return ctx.renderIdentity(domainauth.Identity{User: out.User, Agency: out.Agency, IsAuthenticated: true})
}

func runRegister(ctx *commandContext, args []string) error {
	fs := ctx.flagSet("register")
	var in domainauth.RegisterRequest
	fs.StringVar(&in.Email, "email", "", "Account email (required)")
	fs.StringVar(&in.Password, "password", "", "Password; read from stdin when omitted")
	fs.StringVar(&in.FirstName, "first-name", "", "First name")
	fs.StringVar(&in.LastName, "last-name", "", "Last name")
	fs.StringVar(&in.AgencyName, "agency", "", "Agency name (required)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if in.Password == "" {
		pw, err := readLine(ctx.In)
		if err != nil {
			return err
		}
		in.Password = pw
	}

	out, err := ctx.Services.Auth.Register(ctx.Ctx, in)
	if err != nil {
		return err
	}
	return ctx.renderIdentity(domainauth.Identity{
		User:            out.User,
		Agency:          out.Agency,
		IsAuthenticated: out.Tokens != nil && out.Tokens.Complete(),
	})
}

func runLogout(ctx *commandContext, _ []string) error {
	if err := ctx.Services.Auth.Logout(ctx.Ctx); err != nil {
		return err
	}
	return writef(ctx.Out, "Logged out\n")
}

func runWhoAmI(ctx *commandContext, _ []string) error {
	id, err := ctx.Services.Auth.CurrentSession(ctx.Ctx)
	if err != nil {
		return err
	}
	if !id.IsAuthenticated {
		return errNotLoggedIn
	}
	return ctx.renderIdentity(id)
}

func runRefresh(ctx *commandContext, _ []string) error {
	token, err := ctx.Services.Client.Refresh(ctx.Ctx)
	if err != nil {
		return err
	}

	result := struct {
		Refreshed bool       `json:"refreshed"            yaml:"refreshed"`
		ExpiresAt *time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
	}{Refreshed: true}
	if claims, cerr := domainauth.ParseAccessClaims(token); cerr == nil && !claims.ExpiresAt.IsZero() {
		exp := claims.ExpiresAt
		result.ExpiresAt = &exp
	}

	return ctx.render(result, func(w io.Writer) error {
		if result.ExpiresAt != nil {
			return writef(w, "Access token refreshed, expires %s\n", result.ExpiresAt.Format(time.RFC3339))
		}
		return writef(w, "Access token refreshed\n")
	})
}

func runAgencies(ctx *commandContext, _ []string) error {
	list, err := ctx.Services.Auth.MyAgencies(ctx.Ctx)
	if err != nil {
		return err
	}
	return ctx.render(list, func(w io.Writer) error {
		if err := row(w, "ID", "NAME", "ROLE", "OWNER", "CURRENT"); err != nil {
			return err
		}
		for _, a := range list.Agencies {
			current := ""
			if a.IsCurrent {
				current = "*"
			}
			if err := row(w, a.ID, a.Name, orDash(a.Role), a.IsOwner, current); err != nil {
				return err
			}
		}
		return nil
	})
}

func runSwitchAgency(ctx *commandContext, args []string) error {
	if len(args) != 1 {
		return usagef("usage: switch-agency <agency-id>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return usagef("agency id must be a number: %q", args[0])
	}

	out, err := ctx.Services.Auth.SwitchAgency(ctx.Ctx, id)
	if err != nil {
		return err
	}
	return ctx.render(out, func(w io.Writer) error {
		return writef(w, "Current agency: %s (%d)\n", out.Agency.Name, out.Agency.ID)
	})
}

func (c *commandContext) renderIdentity(id domainauth.Identity) error {
	return c.render(id, func(w io.Writer) error {
		if id.User == nil {
			return writef(w, "Account created, log in to continue\n")
		}
		if err := row(w, "USER", "EMAIL", "AGENCY", "ROLE"); err != nil {
			return err
		}
		agency, role := "-", "-"
		if id.Agency != nil {
			agency = id.Agency.Name
			role = orDash(id.Agency.Role)
		}
		return row(w, id.User.DisplayName(), id.User.Email, agency, role)
	})
}

func readLine(r io.Reader) (string, error) {
	if r == nil {
		return "", nil
	}
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
