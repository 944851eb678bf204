package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/compliance-assistant/client/internal/linking"
)

const linkTimeout = 3 * time.Minute

func (a *App) cmdStorage(args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}
	ctx := context.Background()

	switch args[0] {
	case "list":
		providers, err := a.api.ListStorageProviders(ctx)
		if err != nil {
			return a.friendlyError(err)
		}
		for _, p := range providers {
			status := "not linked"
			if p.Linked {
				status = "linked"
			}
			fmt.Fprintf(a.out, "%-16s %s\n", p.ID, status)
		}
		return nil

	case "link":
		if len(args) < 2 {
			return fmt.Errorf("usage: assistant storage link <provider>")
		}
		return a.linkStorage(ctx, args[1])

	case "unlink":
		if len(args) < 2 {
			return fmt.Errorf("usage: assistant storage unlink <provider>")
		}
		if err := a.api.UnlinkStorage(ctx, args[1]); err != nil {
			return a.friendlyError(err)
		}
		okColor.Fprintf(a.out, "Unlinked %s\n", args[1])
		return nil

	default:
		return fmt.Errorf("unknown storage subcommand %q", args[0])
	}
}

// linkStorage drives the loopback OAuth flow: start the callback
// listener, hand its redirect URI to the backend, send the user to the
// authorize URL, then finish the link with the captured code.
func (a *App) linkStorage(ctx context.Context, provider string) error {
	callback := linking.NewCallbackServer(a.cfg.CallbackPort, a.log)
	if err := callback.Start(); err != nil {
		return err
	}
	defer callback.Close()

	authorizeURL, err := a.api.StartStorageLink(ctx, provider, callback.RedirectURI())
	if err != nil {
		return a.friendlyError(err)
	}

	fmt.Fprintln(a.out, "Open this URL in your browser to authorize:")
	okColor.Fprintln(a.out, authorizeURL+"&state="+callback.State())
	fmt.Fprintln(a.out, "Waiting for authorization...")

	waitCtx, cancel := context.WithTimeout(ctx, linkTimeout)
	defer cancel()
	code, err := callback.Wait(waitCtx)
	if err != nil {
		return fmt.Errorf("authorization did not complete: %w", err)
	}

	if err := a.api.CompleteStorageLink(ctx, provider, code); err != nil {
		return a.friendlyError(err)
	}
	okColor.Fprintf(a.out, "Storage linked: %s\n", provider)
	return nil
}
