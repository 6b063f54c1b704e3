package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/todoproduction/todo-client/internal/domain/model"
)

var errUnhealthy = errors.New("api is unhealthy")

func runDashboard(ctx *commandContext, _ []string) error {
	out, err := ctx.Services.Dashboard.Overview(ctx.Ctx)
	if err != nil {
		return err
	}
	return ctx.render(out, func(w io.Writer) error {
		if out.Me != nil {
			if err := writef(w, "Hello, %s\n\n", out.Me.DisplayName()); err != nil {
				return err
			}
		}
		s := out.Stats.Stats
		for _, line := range []struct {
			label string
			stat  model.StatValue
		}{
			{"Active projects", s.ActiveProjects},
			{"Pending tasks", s.PendingTasks},
			{"Completed tasks", s.CompletedTasks},
			{"Monthly revenue", s.MonthlyRevenue},
		} {
			if err := row(w, line.label, line.stat.Value, orDash(line.stat.Trend)); err != nil {
				return err
			}
		}
		if err := writef(w, "\n"); err != nil {
			return err
		}
		return projectTable(w, out.ActiveProjects)
	})
}

func runProjects(ctx *commandContext, args []string) error {
	if len(args) == 0 {
		return usagef("usage: projects list|active|get <id>|create [flags]")
	}

	switch sub, rest := args[0], args[1:]; sub {
	case "list", "active":
		list := ctx.Services.Projects.List
		if sub == "active" {
			list = ctx.Services.Projects.Active
		}
		projects, err := list(ctx.Ctx)
		if err != nil {
			return err
		}
		return ctx.render(projects, func(w io.Writer) error { return projectTable(w, projects) })

	case "get":
		if len(rest) != 1 {
			return usagef("usage: projects get <id>")
		}
		id, err := strconv.ParseInt(rest[0], 10, 64)
		if err != nil {
			return usagef("project id must be a number: %q", rest[0])
		}
		p, err := ctx.Services.Projects.Get(ctx.Ctx, id)
		if err != nil {
			return err
		}
		return ctx.render(p, func(w io.Writer) error { return projectDetail(w, p) })

	case "create":
		return runProjectCreate(ctx, rest)

	default:
		return usagef("unknown projects subcommand %q", sub)
	}
}

func runProjectCreate(ctx *commandContext, args []string) error {
	fs := ctx.flagSet("projects create")
	var (
		in       model.CreateProjectRequest
		priority string
		tags     string
	)
	fs.StringVar(&in.Title, "title", "", "Project title (required)")
	fs.StringVar(&in.Description, "description", "", "Description")
	fs.StringVar(&in.ClientName, "client", "", "Client name")
	fs.StringVar(&in.Status, "status", "", "Initial status")
	fs.StringVar(&priority, "priority", "", "low, medium, high or critical")
	fs.StringVar(&in.StartDate, "start", "", "Start date (YYYY-MM-DD)")
	fs.StringVar(&in.EndDate, "end", "", "End date (YYYY-MM-DD)")
	fs.StringVar(&in.Location, "location", "", "Location")
	fs.StringVar(&in.BudgetEstimated, "budget", "", "Estimated budget")
	fs.StringVar(&tags, "tags", "", "Comma-separated tags")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	in.Priority = model.ProjectPriority(priority)
	for _, t := range strings.Split(tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			in.Tags = append(in.Tags, t)
		}
	}

	p, err := ctx.Services.Projects.Create(ctx.Ctx, in)
	if err != nil {
		return err
	}
	return ctx.render(p, func(w io.Writer) error { return projectDetail(w, p) })
}

func projectTable(w io.Writer, projects []model.Project) error {
	if err := row(w, "ID", "TITLE", "CLIENT", "STATUS", "PRIORITY"); err != nil {
		return err
	}
	for _, p := range projects {
		if err := row(w, p.ID, p.Title, orDash(p.ClientName), p.Status, orDash(p.Priority)); err != nil {
			return err
		}
	}
	return nil
}

func projectDetail(w io.Writer, p *model.Project) error {
	fields := [][2]string{
		{"ID", strconv.FormatInt(p.ID, 10)},
		{"Title", p.Title},
		{"Client", orDash(p.ClientName)},
		{"Status", p.Status},
		{"Priority", orDash(p.Priority)},
		{"Dates", fmt.Sprintf("%s .. %s", orDash(p.StartDate), orDash(p.EndDate))},
		{"Location", orDash(p.Location)},
		{"Tags", orDash(strings.Join(p.Tags, ", "))},
	}
	for _, f := range fields {
		if err := row(w, f[0]+":", f[1]); err != nil {
			return err
		}
	}
	return nil
}

func runTeam(ctx *commandContext, _ []string) error {
	team, err := ctx.Services.Users.Team(ctx.Ctx)
	if err != nil {
		return err
	}
	return ctx.render(team, func(w io.Writer) error {
		if err := row(w, "ID", "NAME", "EMAIL", "ROLE", "OWNER"); err != nil {
			return err
		}
		for _, m := range team.Members {
			if err := row(w, m.ID, orDash(m.Name), m.Email, orDash(m.Role), m.IsOwner); err != nil {
				return err
			}
		}
		return nil
	})
}

func runInvite(ctx *commandContext, args []string) error {
	fs := ctx.flagSet("invite")
	email := fs.String("email", "", "Email to invite (required)")
	roleID := fs.Int64("role-id", 0, "Role to grant; omit for the default role")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	var role *int64
	if *roleID != 0 {
		role = roleID
	}

	out, err := ctx.Services.Users.Invite(ctx.Ctx, *email, role)
	if err != nil {
		return err
	}
	return ctx.render(out, func(w io.Writer) error {
		if out.AlreadyMember {
			return writef(w, "%s is already a member\n", strings.ToLower(strings.TrimSpace(*email)))
		}
		return writef(w, "%s\n", orDash(out.Message))
	})
}

func runHealth(ctx *commandContext, _ []string) error {
	status, err := ctx.Services.Health.Check(ctx.Ctx)
	if err != nil {
		return err
	}
	if err := ctx.render(status, func(w io.Writer) error {
		if err := row(w, "STATUS", "DATABASE", "CACHE"); err != nil {
			return err
		}
		return row(w, status.Status, orDash(status.Database), orDash(status.Cache))
	}); err != nil {
		return err
	}
	if !status.Healthy() {
		return errUnhealthy
	}
	return nil
}
