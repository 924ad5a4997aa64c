package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/dmitrijs2005/wayne/internal/client/client"
	"github.com/dmitrijs2005/wayne/internal/client/config"
)

// apiClient is the part of client.HTTPClient the REPL depends on.
type apiClient interface {
	client.Client
	LoggedIn() bool
	SetTokens(access, refresh string)
}

type App struct {
	config *config.Config
	api    apiClient
	reader *bufio.Reader
	out    io.Writer
	email  string
}

func NewApp(c *config.Config, in io.Reader, out io.Writer) *App {
	return newApp(c, client.NewHTTPClient(c.ServerURL, c.RequestTimeout), in, out)
}

func newApp(c *config.Config, api apiClient, in io.Reader, out io.Writer) *App {
	return &App{config: c, api: api, reader: bufio.NewReader(in), out: out}
}

func (a *App) isLoggedIn() bool {
	return a.api.LoggedIn()
}

func (a *App) getStatus() string {
	if !a.isLoggedIn() {
		return ""
	}
	if a.email == "" {
		return "(logged in)"
	}
	return fmt.Sprintf("(%s)", a.email)
}

func (a *App) println(args ...any) {
	fmt.Fprintln(a.out, args...)
}

// Run blocks in the REPL until the user exits or input ends. A session that
// is still open on exit is revoked on the server.
func (a *App) Run(ctx context.Context) error {
	a.println("Welcome to wayne CLI (type 'help' for commands)")
	a.println("Server:", a.config.ServerURL)

	runREPL(ctx, a, a.getStatus, a.reader)

	if a.isLoggedIn() {
		if err := a.api.Logout(ctx); err != nil {
			a.println("Could not revoke session:", describeError(err))
		}
	}
	return nil
}
