package cli

import (
	"context"
	"fmt"
)

func (a *App) cmdConversations(args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}
	ctx := context.Background()

	switch args[0] {
	case "list":
		return a.listConversations(ctx)
	case "archive":
		if len(args) < 2 {
			return fmt.Errorf("usage: assistant conversations archive <id>")
		}
		if err := a.api.ArchiveConversation(ctx, args[1]); err != nil {
			return a.friendlyError(err)
		}
		okColor.Fprintf(a.out, "Archived %s\n", args[1])
		return nil
	case "delete":
		if len(args) < 2 {
			return fmt.Errorf("usage: assistant conversations delete <id>")
		}
		confirm, err := a.readLine(fmt.Sprintf("Delete conversation %s? This cannot be undone. [y/N] ", args[1]))
		if err != nil {
			return err
		}
		if confirm != "y" && confirm != "Y" {
			fmt.Fprintln(a.out, "Aborted.")
			return nil
		}
		if err := a.api.DeleteConversation(ctx, args[1]); err != nil {
			return a.friendlyError(err)
		}
		if stored, _ := a.store.SessionID(ctx); stored == args[1] {
			a.store.ClearSessionID(ctx)
		}
		okColor.Fprintf(a.out, "Deleted %s\n", args[1])
		return nil
	default:
		return fmt.Errorf("unknown sessions subcommand %q", args[0])
	}
}

func (a *App) listConversations(ctx context.Context) error {
	conversations, err := a.api.ListConversations(ctx)
	if err != nil {
		return a.friendlyError(err)
	}
	if len(conversations) == 0 {
		fmt.Fprintln(a.out, "No conversations yet. Start one with 'assistant chat'.")
		return nil
	}

	headingColor.Fprintf(a.out, "%-36s  %-22s  %-10s  %s\n", "ID", "PHASE", "ARCHIVED", "UPDATED")
	for _, conv := range conversations {
		archived := ""
		if conv.Archived {
			archived = "yes"
		}
		fmt.Fprintf(a.out, "%-36s  %-22s  %-10s  %s\n", conv.ID, conv.Phase, archived, conv.UpdatedAt)
	}
	return nil
}
