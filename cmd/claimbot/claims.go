package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tbourn/claimbot/internal/domain"
	"github.com/tbourn/claimbot/internal/services"
)

// errInconsistent makes `claims check` exit non-zero when problems are found.
var errInconsistent = errors.New("claims and collections are inconsistent")

// exportDoc is the shape written by `claims export`.
type exportDoc struct {
	Claims      domain.Claims      `json:"claims"      yaml:"claims"`
	Collections domain.Collections `json:"collections" yaml:"collections"`
}

func claimsCmd(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "claims",
		Short: "Inspect the stored claims and collections",
	}

	// withLedger loads configuration and both documents read-only.
	withLedger := func(cmd *cobra.Command, fn func(*services.Ledger) error) error {
		cfg, err := load()
		if err != nil {
			return err
		}
		store, closeStore, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer closeStore()
		ledger, err := services.LoadLedger(cmd.Context(), store)
		if err != nil {
			return fmt.Errorf("load ledger: %w", err)
		}
		return fn(ledger)
	}

	var user string
	list := &cobra.Command{
		Use:   "list",
		Short: "List one user's collection",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withLedger(cmd, func(l *services.Ledger) error {
				return writeCollection(cmd.OutOrStdout(), user, l.Collections.List(user))
			})
		},
	}
	list.Flags().StringVar(&user, "user", "", "user id")
	_ = list.MarkFlagRequired("user")

	var format string
	export := &cobra.Command{
		Use:   "export",
		Short: "Dump both documents as YAML or JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withLedger(cmd, func(l *services.Ledger) error {
				doc := exportDoc{Claims: l.Registry.Snapshot(), Collections: l.Collections.Snapshot()}
				return writeExport(cmd.OutOrStdout(), format, doc)
			})
		},
	}
	export.Flags().StringVar(&format, "format", "yaml", "output format (yaml|json)")

	var fix bool
	check := &cobra.Command{
		Use:   "check",
		Short: "Report claims and collection records that disagree",
		Long: `Report claims and collection records that disagree.

With --fix, records written without a message id are backfilled where the
pairing is unambiguous, claims with no record are released, and records
whose message is unclaimed are claimed back for their holder. Whatever is
left is printed and the command fails.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withLedger(cmd, func(l *services.Ledger) error {
				if !fix {
					return writeCheck(cmd.OutOrStdout(), services.CheckConsistency(l))
				}
				rep, err := l.Repair(cmd.Context())
				if err != nil {
					return fmt.Errorf("repair: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "backfilled=%d released=%d restored=%d\n",
					rep.Backfilled, rep.Released, rep.Restored)
				return writeCheck(cmd.OutOrStdout(), rep.Remaining)
			})
		},
	}
	check.Flags().BoolVar(&fix, "fix", false, "repair what can be repaired, then report the rest")

	cmd.AddCommand(list, export, check)
	return cmd
}

func writeCollection(w io.Writer, user string, posts []domain.Post) error {
	if len(posts) == 0 {
		_, err := fmt.Fprintf(w, "user %s has no claims\n", user)
		return err
	}
	for i, p := range posts {
		date := p.Date
		if date == "" {
			date = "unknown"
		}
		if _, err := fmt.Fprintf(w, "%d. %s  message=%s  date=%s  artist=%s\n",
			i+1, p.Image, p.MessageID, date, p.Artist); err != nil {
			return err
		}
	}
	return nil
}

func writeExport(w io.Writer, format string, doc exportDoc) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	default:
		return fmt.Errorf("unknown format %q (want yaml or json)", format)
	}
}

func writeCheck(w io.Writer, found []services.Inconsistency) error {
	if len(found) == 0 {
		_, err := fmt.Fprintln(w, "ok: claims and collections agree")
		return err
	}
	for _, inc := range found {
		line := fmt.Sprintf("%s\tmessage=%s\tuser=%s", inc.Kind, inc.MessageID, inc.UserID)
		if inc.Image != "" {
			line += "\timage=" + inc.Image
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: %d problem(s)", errInconsistent, len(found))
}
