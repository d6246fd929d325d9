// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Command inkctl is a terminal client for the inkpost API. The credential
// is kept per profile under the user's configuration directory.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"

	"inkpost/internal/authz"
	"inkpost/internal/client"
	"inkpost/internal/logging"
	"inkpost/internal/models"
)

const usage = `Usage: inkctl [-api URL] [-profile NAME] COMMAND [ARGS]

Commands:
  login -email E -password P [-otp CODE]
  logout
  whoami
  posts [-page N] [-per-page N] [-category C] [-tag T] [-search S] [-status S]
  comments POST_ID
  guard [-roles admin,moderator] PATH
`

func main() {
	zl, err := logging.Setup(envOr("INKCTL_LOG_LEVEL", "warn"), "text")
	if err == nil {
		defer zl.Sync()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "inkctl:", err)
		stop()
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// app holds what every command needs.
type app struct {
	client   *client.Client
	resolver *client.Resolver
	out      io.Writer
}

func run(ctx context.Context, args []string, out io.Writer) error {
	global := flag.NewFlagSet("inkctl", flag.ContinueOnError)
	global.SetOutput(io.Discard)
	api := global.String("api", envOr("INKPOST_API", "http://localhost:8080"), "API base URL")
	profile := global.String("profile", envOr("INKPOST_PROFILE", "default"), "credential profile")
	dir := global.String("dir", "", "profile directory (overrides -profile)")
	if err := global.Parse(args); err != nil || global.NArg() == 0 {
		return errors.New(strings.TrimSpace(usage))
	}

	profileDir := *dir
	if profileDir == "" {
		var err error
		if profileDir, err = client.ProfileDir(*profile); err != nil {
			return err
		}
	}
	tokens, err := client.NewFileStore(profileDir)
	if err != nil {
		return err
	}

	c := client.New(*api, tokens)
	a := &app{client: c, resolver: client.NewResolver(c), out: out}
	defer a.resolver.Close()

	cmd, rest := global.Arg(0), global.Args()[1:]
	switch cmd {
	case "login":
		return a.login(ctx, rest)
	case "logout":
		return a.logout(ctx)
	case "whoami":
		return a.whoami(ctx)
	case "posts":
		return a.posts(ctx, rest)
	case "comments":
		return a.comments(ctx, rest)
	case "guard":
		return a.guard(ctx, rest)
	default:
		return fmt.Errorf("unknown command %q\n\n%s", cmd, usage)
	}
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	otp := fs.String("otp", "", "one-time code")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// A stale credential must not block a new login.
	if err := a.resolver.Init(ctx); err != nil && !client.Retryable(err) {
		fmt.Fprintln(a.out, "previous session discarded")
	}
	if a.resolver.State().Status == authz.StatusResolved {
		if err := a.resolver.Logout(ctx); err != nil {
			return err
		}
	}

	var (
		user *models.User
		err  error
	)
	if *otp != "" {
		user, err = a.resolver.LoginOTP(ctx, *email, *password, *otp)
	} else {
		user, err = a.resolver.Login(ctx, *email, *password)
	}
	var lerr *client.LoginError
	if errors.As(err, &lerr) {
		switch lerr.Reason {
		case client.ReasonInvalidCredentials:
			return errors.New("invalid email or password")
		case client.ReasonOTPRequired:
			return errors.New("this account needs a one-time code: pass -otp")
		case client.ReasonNetwork, client.ReasonServer:
			return fmt.Errorf("server unavailable, try again: %w", lerr.Err)
		}
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "logged in as %s (%s)\n", user.Email, user.Role)
	return nil
}

func (a *app) logout(ctx context.Context) error {
	if err := a.resolver.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "logged out")
	return nil
}

func (a *app) whoami(ctx context.Context) error {
	err := a.resolver.Init(ctx)
	st := a.resolver.State()
	if st.Status != authz.StatusResolved {
		if err != nil && client.Retryable(err) {
			return err
		}
		fmt.Fprintln(a.out, "not logged in")
		return nil
	}
	p := st.Principal
	fmt.Fprintf(a.out, "%s <%s>\nrole: %s\nid:   %s\n", p.Name, p.Email, p.Role, p.ID)
	return nil
}

func (a *app) posts(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("posts", flag.ContinueOnError)
	page := fs.Int("page", 1, "page number")
	perPage := fs.Int("per-page", models.DefaultPerPage, "posts per page")
	category := fs.String("category", "", "category id or slug")
	tag := fs.String("tag", "", "tag slug")
	search := fs.String("search", "", "search text")
	status := fs.String("status", "", "status filter (staff only)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	q := client.PostQuery{
		Page:     *page,
		PerPage:  *perPage,
		Category: *category,
		Tag:      *tag,
		Search:   *search,
		Status:   models.PostStatus(*status),
	}
	res, err := a.client.ListPosts(ctx, q)
	if err != nil {
		return err
	}
	// Out-of-range pages come back empty; show the last real page instead.
	if clamped := client.ClampPage(q.Page, res.Meta); clamped != q.Page {
		q.Page = clamped
		if res, err = a.client.ListPosts(ctx, q); err != nil {
			return err
		}
	}
	if !client.Live(ctx) {
		return ctx.Err()
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SLUG\tSTATUS\tVIEWS\tLIKES\tTITLE")
	for _, p := range res.Data {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", p.Slug, p.Status, p.Views, p.Likes, p.Title)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "page %d of %d (%d posts)\n", res.Meta.CurrentPage, res.Meta.LastPage, res.Meta.Total)
	return nil
}

func (a *app) comments(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: inkctl comments POST_ID")
	}
	postID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid post id %q", args[0])
	}
	thread, err := a.client.ListComments(ctx, postID)
	if err != nil {
		return err
	}
	printThread(a.out, thread, 0)
	return nil
}

func printThread(w io.Writer, thread []models.Comment, depth int) {
	for _, c := range thread {
		author := "guest"
		if c.AuthorName != nil {
			author = *c.AuthorName
		}
		fmt.Fprintf(w, "%s- %s [%s]: %s\n", strings.Repeat("  ", depth), author, c.Status, c.Content)
		printThread(w, c.Replies, depth+1)
	}
}

// guard prints what the navigation guard decides for PATH.
func (a *app) guard(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("guard", flag.ContinueOnError)
	rolesFlag := fs.String("roles", "", "comma-separated roles; empty admits any principal")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: inkctl guard [-roles R] PATH")
	}
	roles, err := parseRoles(*rolesFlag)
	if err != nil {
		return err
	}

	if err := a.resolver.Init(ctx); err != nil && client.Retryable(err) {
		return err
	}
	d := a.resolver.Guard(roles, fs.Arg(0))
	switch d.Action {
	case authz.RedirectLogin:
		fmt.Fprintf(a.out, "%s %s?return_to=%s\n", d.Action, d.Location, d.ReturnTo)
	case authz.RedirectHome:
		fmt.Fprintf(a.out, "%s %s\n", d.Action, d.Location)
	default:
		fmt.Fprintln(a.out, d.Action)
	}
	return nil
}

func parseRoles(s string) ([]models.Role, error) {
	var roles []models.Role
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		r, err := models.ParseRole(part)
		if err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, nil
}
