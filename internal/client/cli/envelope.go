package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/dmitrijs2005/wayne/internal/client/client"
)

// readFile is a test seam for os.ReadFile.
var readFile = os.ReadFile

var errUsage = errors.New("invalid arguments, type 'help' for usage")

// Envelope handles "envelope show", "envelope put <file>" and
// "envelope rotate <file>". Files hold the envelope JSON as the API returns it.
func (a *App) Envelope(ctx context.Context, args []string) error {
	switch {
	case len(args) == 0 || (len(args) == 1 && args[0] == "show"):
		return a.showEnvelope(ctx)
	case len(args) == 2 && args[0] == "put":
		return a.putEnvelope(ctx, args[1])
	case len(args) == 2 && args[0] == "rotate":
		return a.rotateMasterSecret(ctx, args[1])
	}
	return errUsage
}

func (a *App) showEnvelope(ctx context.Context) error {
	env, id, err := a.api.GetEnvelope(ctx)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(struct {
		EnvelopeID string           `json:"envelope_id"`
		Envelope   *client.Envelope `json:"envelope"`
	}{id, env}, "", "  ")
	if err != nil {
		return err
	}
	a.println(string(out))
	return nil
}

func loadEnvelope(path string) (client.Envelope, error) {
	var env client.Envelope

	data, err := readFile(path)
	if err != nil {
		return env, fmt.Errorf("read envelope file: %w", err)
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return env, fmt.Errorf("parse envelope file: %w", err)
	}
	return env, nil
}

func (a *App) putEnvelope(ctx context.Context, path string) error {
	env, err := loadEnvelope(path)
	if err != nil {
		return err
	}

	id, err := a.api.PutEnvelope(ctx, env)
	if err != nil {
		return err
	}
	a.println("Envelope stored, id", id)
	return nil
}

func (a *App) rotateMasterSecret(ctx context.Context, path string) error {
	env, err := loadEnvelope(path)
	if err != nil {
		return err
	}

	ok, err := GetConfirmation(a.reader, "Replace the stored key envelope?", a.out)
	if err != nil {
		return err
	}
	if !ok {
		a.println("Cancelled")
		return nil
	}

	if err := a.api.RotateMasterSecret(ctx, env); err != nil {
		return err
	}
	a.println("Master secret rotated")
	return nil
}
