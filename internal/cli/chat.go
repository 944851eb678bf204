package cli

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/compliance-assistant/client/internal/assistant"
	"github.com/compliance-assistant/client/internal/model"
)

func (a *App) cmdChat(args []string) error {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	fs.SetOutput(a.out)
	resume := fs.Bool("resume", false, "resume the most recent conversation")
	sessionFlag := fs.String("session", "", "resume a specific conversation by id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	token, err := a.api.AccessToken(ctx)
	if err != nil {
		return a.friendlyError(err)
	}

	sessionID := *sessionFlag
	if sessionID == "" && *resume {
		if stored, err := a.store.SessionID(ctx); err == nil {
			sessionID = stored
		}
	}

	client := assistant.New(assistant.Config{
		StreamURL: a.cfg.StreamURL,
		Logger:    a.log,
	}, a.chatEvents())
	defer client.Close()

	// Reuse this install's connection lease across restarts; the client
	// mints a fresh one only when nothing is stored yet.
	if stored, err := a.store.ConnToken(ctx); err == nil {
		client.SetConnToken(stored)
	}

	client.SetSessionHook(func(id, connToken string) {
		if err := a.store.SaveSessionID(ctx, id); err != nil {
			a.log.Warn("failed to persist session id", zap.Error(err))
		}
		if err := a.store.SaveConnToken(ctx, connToken); err != nil {
			a.log.Warn("failed to persist connection token", zap.Error(err))
		}
	})

	if sessionID != "" {
		sess, err := a.api.GetConversation(ctx, sessionID)
		if err != nil {
			systemColor.Fprintf(a.out, "Could not load conversation %s (%v); starting fresh.\n",
				sessionID, a.friendlyError(err))
			sessionID = ""
		} else {
			client.SeedHistory(sess)
			a.printHistory(sess)
		}
	}

	if err := client.Connect(ctx, token, sessionID); err != nil {
		return a.friendlyError(err)
	}

	headingColor.Fprintln(a.out, "Connected. Type a message, or /quit to leave, /retry to resend.")
	return a.inputLoop(client)
}

func (a *App) printHistory(sess *model.ConversationSession) {
	headingColor.Fprintf(a.out, "Resuming conversation (%s, phase %s)\n", sess.ID, sess.Phase)
	for _, msg := range sess.Messages {
		a.printChatLine(msg)
	}
}

func (a *App) printChatLine(msg model.ChatMessage) {
	switch {
	case msg.IsSystem:
		systemColor.Fprintf(a.out, "  • %s\n", msg.Content)
		if msg.ShowRetry {
			systemColor.Fprintln(a.out, "    (type /retry to try again)")
		}
	case msg.Role == model.RoleUser:
		promptColor.Fprintf(a.out, "you> %s\n", msg.Content)
	default:
		assistantColor.Fprintf(a.out, "assistant> %s\n", msg.Content)
	}
}

// inputLoop reads user lines until EOF or /quit. When a document
// selection is pending, numeric input is interpreted against it.
func (a *App) inputLoop(client *assistant.Client) error {
	scanner := bufio.NewScanner(a.in)
	var lastUserText string

	for {
		fmt.Fprint(a.out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "/quit", "/exit":
			return client.Close()
		case "/retry":
			if lastUserText == "" {
				systemColor.Fprintln(a.out, "Nothing to retry yet.")
				continue
			}
			if err := client.SendText(lastUserText); err != nil {
				errColor.Fprintf(a.out, "Could not send: %v\n", a.friendlyError(err))
			}
			continue
		}

		if selection := client.State().Selection; selection != nil {
			if err := a.submitSelection(client, selection, line); err != nil {
				errColor.Fprintf(a.out, "%v\n", err)
			}
			continue
		}

		if err := client.SendText(line); err != nil {
			errColor.Fprintf(a.out, "Could not send: %v\n", a.friendlyError(err))
			continue
		}
		lastUserText = line
	}
}

// submitSelection parses "1,3,5"-style input against the pending
// selection request and submits the chosen documents.
func (a *App) submitSelection(client *assistant.Client, req *model.DocumentSelectionRequest, line string) error {
	var chosen []string
	for _, part := range strings.Split(line, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		idx, err := strconv.Atoi(part)
		if err != nil || idx < 1 || idx > len(req.Documents) {
			return fmt.Errorf("pick numbers between 1 and %d, separated by commas", len(req.Documents))
		}
		chosen = append(chosen, req.Documents[idx-1])
	}

	err := client.SendSelection(chosen)
	switch {
	case err == nil:
		return nil
	case err == model.ErrSelectionEmpty:
		return fmt.Errorf("select at least one document")
	case err == model.ErrSelectionLimit:
		return fmt.Errorf("your plan allows at most %d documents", req.MaxSelectable)
	default:
		return a.friendlyError(err)
	}
}

// chatEvents renders session callbacks to the terminal.
func (a *App) chatEvents() assistant.Events {
	return assistant.Events{
		OnMessage: func(msg model.ChatMessage) {
			if msg.Role == model.RoleUser && !msg.IsSystem {
				// The input loop already echoed the user's line.
				return
			}
			fmt.Fprint(a.out, "\r")
			a.printChatLine(msg)
		},
		OnPhaseChange: func(from, to model.Phase, autoContinued bool) {
			headingColor.Fprintf(a.out, "\r— phase: %s —\n", to)
		},
		OnProgress: func(p model.DocumentProgress) {
			label := p.CurrentDocument
			if label == "" {
				label = "working"
			}
			fmt.Fprintf(a.out, "\r[%d/%d] %d%% %s", p.Current, p.Total, p.Percent, label)
			if p.Current == p.Total && p.Total > 0 {
				fmt.Fprintln(a.out)
			}
		},
		OnFramework: func(r model.FrameworkResult) {
			okColor.Fprintf(a.out, "\rRecommended framework: %s (confidence %s)\n", r.Framework, r.Confidence)
			for _, alt := range r.Alternatives {
				fmt.Fprintf(a.out, "  alternative: %s\n", alt.Name)
			}
		},
		OnStructure: func(r model.StructureResult) {
			okColor.Fprintf(a.out, "\rDocument structure ready: %d documents in %d folders\n",
				r.DocumentCount, r.FolderCount)
		},
		OnFinalization: func(p model.FinalizationProgress) {
			if p.ZipCreated {
				okColor.Fprintf(a.out, "\rPackage ready: %s (%d bytes)\n", p.ZipName, p.ZipSizeBytes)
				if p.DownloadURL != "" {
					fmt.Fprintf(a.out, "Download: %s\n", p.DownloadURL)
				}
			} else if p.ManifestCreated {
				fmt.Fprintln(a.out, "\rManifest created...")
			}
		},
		OnQuota: func(q model.QuotaStatus) {
			fmt.Fprintf(a.out, "\rPlan %s: %d/%d documents, %d/%d packages used\n",
				q.PlanName, q.DocumentsUsed, q.DocumentsLimit, q.PackagesUsed, q.PackagesLimit)
		},
		OnSelectionRequest: func(r model.DocumentSelectionRequest) {
			fmt.Fprintln(a.out)
			headingColor.Fprintf(a.out, "Choose up to %d documents:\n", r.MaxSelectable)
			for i, doc := range r.Documents {
				fmt.Fprintf(a.out, "  %2d. %s\n", i+1, doc)
			}
			fmt.Fprintln(a.out, "Enter numbers separated by commas (e.g. 1,3,5).")
		},
		OnSelectionConfirmed: func() {
			okColor.Fprintln(a.out, "\rSelection confirmed.")
		},
		OnNotice: func(level assistant.NoticeLevel, text string) {
			switch level {
			case assistant.NoticeError:
				errColor.Fprintf(a.out, "\r%s\n", text)
			case assistant.NoticeSuccess:
				okColor.Fprintf(a.out, "\r%s\n", text)
			default:
				systemColor.Fprintf(a.out, "\r%s\n", text)
			}
		},
		OnUpgradeRequired: func(reason string) {
			errColor.Fprintf(a.out, "\r%s\n", reason)
			fmt.Fprintln(a.out, "See available plans with 'assistant billing plans'.")
		},
		OnConnectionChange: func(state assistant.ConnState) {
			if state == assistant.ConnConnecting {
				systemColor.Fprintln(a.out, "\rReconnecting...")
			}
		},
		OnTick: func(elapsed int) {
			fmt.Fprintf(a.out, "\rstill working... %ds elapsed", elapsed)
		},
	}
}
