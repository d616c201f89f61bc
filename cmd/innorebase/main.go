package main

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/innorebase/pkg/backup"
	"github.com/user/innorebase/pkg/config"
	"github.com/user/innorebase/pkg/rebase"
	"github.com/user/innorebase/pkg/uninstlog"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "innorebase",
		Short: "Inspect and rebase installer uninstall logs",
		Long: `innorebase reads the binary uninstall log (unins000.dat) of an installed
application and rewrites the install paths recorded in it, so the
application can be moved without reinstalling it.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newInspectCmd())
	rootCmd.AddCommand(newRebaseCmd())
	rootCmd.AddCommand(newRestoreCmd())
	return rootCmd
}

// --- inspect ---

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <log>",
		Short: "Print the header and records of an uninstall log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := uninstlog.OpenLog(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, l.Header)
			fmt.Fprintf(out, "records: %d, trailing bytes: %d\n", len(l.Records), len(l.Trailer))
			for i, rec := range l.Records {
				fmt.Fprintf(out, "%5d  %-20s extra=0x%08x  %d bytes", i, rec.Type, rec.ExtraData, len(rec.Data))
				if path, err := rec.EmbeddedString(); err == nil {
					fmt.Fprintf(out, "  %s", path)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}

// --- rebase ---

type rebaseOptions struct {
	configPath string
	from       string
	to         string
	types      []string
	outPath    string
	noBackup   bool
	dryRun     bool
	logLevel   string
}

func newRebaseCmd() *cobra.Command {
	opts := &rebaseOptions{}
	cmd := &cobra.Command{
		Use:   "rebase <log>",
		Short: "Replace an install path prefix in an uninstall log",
		Long: `Rewrites every path-carrying record whose path starts with --from so that
it starts with --to instead. Rules may also come from a YAML config file.
The log is rewritten in place (after an LZ4 backup) unless --out is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRebase(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "YAML config file with rules")
	cmd.Flags().StringVar(&opts.from, "from", "", "path prefix to replace")
	cmd.Flags().StringVar(&opts.to, "to", "", "replacement path prefix")
	cmd.Flags().StringSliceVar(&opts.types, "type", nil, "record types to rebase (default DeleteDirOrFiles,DeleteFile)")
	cmd.Flags().StringVarP(&opts.outPath, "out", "o", "", "write the result here instead of in place")
	cmd.Flags().BoolVar(&opts.noBackup, "no-backup", false, "skip the backup when rewriting in place")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "report what would change without writing")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")
	return cmd
}

func loadRebaseConfig(opts *rebaseOptions) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.LoadConfig(opts.configPath); err != nil {
			return nil, err
		}
	}

	if opts.from != "" || opts.to != "" {
		if opts.from == "" {
			return nil, fmt.Errorf("--to requires --from")
		}
		// Flag rule takes precedence over the config file rules.
		cfg.Rules = append([]config.Rule{{From: opts.from, To: opts.to}}, cfg.Rules...)
	}
	if len(opts.types) > 0 {
		cfg.RecordTypes = opts.types
	}
	if opts.noBackup {
		cfg.Backup = false
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runRebase(cmd *cobra.Command, logPath string, opts *rebaseOptions) error {
	cfg, err := loadRebaseConfig(opts)
	if err != nil {
		return err
	}
	level, _ := cfg.Level()
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	types, _ := cfg.Types()
	rb, err := rebase.New(cfg.RebaseRules(), types, logger)
	if err != nil {
		return err
	}

	original, err := os.ReadFile(logPath)
	if err != nil {
		return fmt.Errorf("failed to read uninstall log %s: %w", logPath, err)
	}
	l, err := uninstlog.ReadLog(bytes.NewReader(original))
	if err != nil {
		return fmt.Errorf("failed to read uninstall log %s: %w", logPath, err)
	}

	st, err := rb.Apply(l)
	if err != nil {
		return fmt.Errorf("rebase of %s aborted: %w", logPath, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d records, %d with paths, %d rebased, %d unmatched\n",
		st.Examined, st.Eligible, st.Rebased, st.Skipped)

	if opts.dryRun {
		return nil
	}
	if st.Rebased == 0 && opts.outPath == "" {
		logger.Info("nothing to rewrite", "log", logPath)
		return nil
	}
	if l.Size() != int64(len(original)) {
		logger.Warn("log size changed; header end offset and checksum are left as read",
			"old_size", len(original), "new_size", l.Size())
	}

	target := opts.outPath
	if target == "" {
		target = logPath
		if cfg.Backup {
			backupPath, err := backup.Write(logPath, original)
			if err != nil {
				return err
			}
			logger.Info("backup written", "path", backupPath)
		}
	}

	if err := backup.ReplaceFile(target, l.Bytes()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "written %s\n", target)
	return nil
}

// --- restore ---

func newRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <backup> <log>",
		Short: "Restore an uninstall log from an LZ4 backup",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := backup.Read(args[0])
			if err != nil {
				return err
			}
			// Refuse to restore something that is not a readable log.
			if _, err := uninstlog.ReadLog(bytes.NewReader(data)); err != nil {
				return fmt.Errorf("backup %s does not hold a valid uninstall log: %w", args[0], err)
			}
			if err := backup.Restore(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %s from %s\n", args[1], args[0])
			return nil
		},
	}
}
