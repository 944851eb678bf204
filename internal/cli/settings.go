package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/compliance-assistant/client/internal/api"
)

func (a *App) cmdSettings(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: assistant settings letterhead|styles|logo")
	}
	ctx := context.Background()

	switch args[0] {
	case "letterhead":
		return a.settingsLetterhead(ctx, args[1:])
	case "styles":
		return a.settingsStyles(ctx, args[1:])
	case "logo":
		if len(args) < 2 {
			return fmt.Errorf("usage: assistant settings logo <image-file>")
		}
		return a.settingsLogo(ctx, args[1])
	default:
		return fmt.Errorf("unknown settings subcommand %q", args[0])
	}
}

func (a *App) settingsLetterhead(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("letterhead", flag.ContinueOnError)
	fs.SetOutput(a.out)
	company := fs.String("company", "", "company name on documents")
	header := fs.String("header", "", "header text")
	footer := fs.String("footer", "", "footer text")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// No flags means show the current configuration.
	if *company == "" && *header == "" && *footer == "" {
		lh, err := a.api.GetLetterhead(ctx)
		if err != nil {
			return a.friendlyError(err)
		}
		fmt.Fprintf(a.out, "Company: %s\nHeader:  %s\nFooter:  %s\n", lh.CompanyName, lh.HeaderText, lh.FooterText)
		if lh.LogoURL != "" {
			fmt.Fprintf(a.out, "Logo:    %s\n", lh.LogoURL)
		}
		return nil
	}

	current, err := a.api.GetLetterhead(ctx)
	if err != nil {
		return a.friendlyError(err)
	}
	if *company != "" {
		current.CompanyName = *company
	}
	if *header != "" {
		current.HeaderText = *header
	}
	if *footer != "" {
		current.FooterText = *footer
	}
	if err := a.api.UpdateLetterhead(ctx, current); err != nil {
		return a.friendlyError(err)
	}
	okColor.Fprintln(a.out, "Letterhead updated.")
	return nil
}

func (a *App) settingsStyles(ctx context.Context, args []string) error {
	if len(args) == 0 {
		styles, err := a.api.GetStyleMap(ctx)
		if err != nil {
			return a.friendlyError(err)
		}
		keys := make([]string, 0, len(styles))
		for k := range styles {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(a.out, "%-20s %s\n", k, styles[k])
		}
		return nil
	}

	// Each argument is element=style.
	styles, err := a.api.GetStyleMap(ctx)
	if err != nil {
		return a.friendlyError(err)
	}
	if styles == nil {
		styles = api.StyleMap{}
	}
	for _, arg := range args {
		element, style, ok := strings.Cut(arg, "=")
		if !ok || element == "" {
			return fmt.Errorf("expected element=style, got %q", arg)
		}
		styles[element] = style
	}
	if err := a.api.UpdateStyleMap(ctx, styles); err != nil {
		return a.friendlyError(err)
	}
	okColor.Fprintln(a.out, "Styles updated.")
	return nil
}

func (a *App) settingsLogo(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open logo file: %w", err)
	}
	defer f.Close()

	logoURL, err := a.api.UploadLogo(ctx, path, f)
	if err != nil {
		return a.friendlyError(err)
	}
	okColor.Fprintf(a.out, "Logo uploaded: %s\n", logoURL)
	return nil
}
