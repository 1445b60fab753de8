package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/reconflow/api"
	"github.com/kbukum/reconflow/bootstrap"
	"github.com/kbukum/reconflow/config"
	"github.com/kbukum/reconflow/dag"
	"github.com/kbukum/reconflow/orchestrator"
	"github.com/kbukum/reconflow/policy"
	"github.com/kbukum/reconflow/profile"
	"github.com/kbukum/reconflow/recon"
	"github.com/kbukum/reconflow/version"
)

type rootFlags struct {
	config    string
	envFile   string
	envPrefix string
	policy    string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           serviceName,
		Short:         "Policy-driven execution engine for reconciliation breaks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.config, "config", "c", "", "Path to config.yml")
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", "", "Path to a .env file")
	root.PersistentFlags().StringVar(&flags.envPrefix, "env-prefix", "", "Environment override prefix (default RECONFLOW_)")
	root.PersistentFlags().StringVarP(&flags.policy, "policy", "p", "", "Policy file, overrides policy.file")

	root.AddCommand(
		newRunCmd(flags),
		newBatchCmd(flags),
		newPlanCmd(flags),
		newPoliciesCmd(flags),
		newValidateCmd(flags),
		newServeCmd(flags),
		newTokenCmd(flags),
		newVersionCmd(),
	)
	return root
}

func (f *rootFlags) loaderOptions() []config.LoaderOption {
	var opts []config.LoaderOption
	if f.config != "" {
		opts = append(opts, config.WithConfigFile(f.config))
	}
	if f.envFile != "" {
		opts = append(opts, config.WithEnvFile(f.envFile))
	}
	if f.envPrefix != "" {
		opts = append(opts, config.WithEnvPrefix(f.envPrefix))
	}
	return opts
}

func (f *rootFlags) load() (*Config, error) {
	cfg, err := loadConfig(f.loaderOptions()...)
	if err != nil {
		return nil, err
	}
	if f.policy != "" {
		cfg.Policy.File = f.policy
	}
	return cfg, nil
}

func (f *rootFlags) engine(opts ...bootstrap.Option) (*engine, error) {
	cfg, err := f.load()
	if err != nil {
		return nil, err
	}
	return newEngine(cfg, opts...)
}

func newRunCmd(flags *rootFlags) *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process one work item and print its execution report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var item profile.WorkItem
			if err := readJSON(cmd, input, &item); err != nil {
				return err
			}
			e, err := flags.engine()
			if err != nil {
				return err
			}
			return e.run(cmd.Context(), func(ctx context.Context, svc *orchestrator.Service) error {
				report, err := svc.Process(ctx, &item)
				if report != nil {
					if werr := writeJSON(cmd.OutOrStdout(), report); werr != nil {
						return werr
					}
				}
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&input, "file", "f", "-", "Work item JSON file, - for stdin")
	return cmd
}

func newBatchCmd(flags *rootFlags) *cobra.Command {
	var (
		input       string
		workers     int
		summaryOnly bool
	)
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Process a JSON array of work items concurrently",
		RunE: func(cmd *cobra.Command, _ []string) error {
			items, err := readWorkItems(cmd, input)
			if err != nil {
				return err
			}
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			if workers > 0 {
				cfg.Batch.Workers = workers
			}
			e, err := newEngine(cfg)
			if err != nil {
				return err
			}
			return e.run(cmd.Context(), func(ctx context.Context, svc *orchestrator.Service) error {
				res, err := svc.ProcessBatch(ctx, items)
				if res != nil {
					var out any = res
					if summaryOnly {
						out = res.Summary
					}
					if werr := writeJSON(cmd.OutOrStdout(), out); werr != nil {
						return werr
					}
				}
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&input, "file", "f", "-", "JSON array or {\"work_items\": [...]} file, - for stdin")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Concurrent work items, overrides batch.workers")
	cmd.Flags().BoolVar(&summaryOnly, "summary", false, "Print only the batch summary")
	return cmd
}

func newPlanCmd(flags *rootFlags) *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Classify a work item and print its plan without executing it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var item profile.WorkItem
			if err := readJSON(cmd, input, &item); err != nil {
				return err
			}
			e, err := flags.engine()
			if err != nil {
				return err
			}
			return e.run(cmd.Context(), func(ctx context.Context, svc *orchestrator.Service) error {
				preview, err := svc.Plan(ctx, &item)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), preview)
			})
		},
	}
	cmd.Flags().StringVarP(&input, "file", "f", "-", "Work item JSON file, - for stdin")
	return cmd
}

func newPoliciesCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "policies",
		Short: "Describe the loaded policy table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := flags.engine()
			if err != nil {
				return err
			}
			return e.run(cmd.Context(), func(_ context.Context, svc *orchestrator.Service) error {
				return writeJSON(cmd.OutOrStdout(), svc.Policies())
			})
		},
	}
}

// newValidateCmd checks a policy file without starting the engine.
func newValidateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [policy-file]",
		Short: "Validate a policy file against the registered tasks and conditions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := flags.policy
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				cfg, err := flags.load()
				if err != nil {
					return err
				}
				cfg.ApplyDefaults()
				path = cfg.Policy.File
			}
			conds := dag.NewConditions()
			if err := recon.RegisterConditions(conds); err != nil {
				return err
			}
			known := make(map[string]struct{}, len(recon.TaskNames))
			for _, n := range recon.TaskNames {
				known[n] = struct{}{}
			}
			table, err := policy.Load(path, policy.WithConditions(conds), policy.WithKnownTasks(known))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: version %s, %d policies OK\n", path, table.Version(), table.Len())
			return nil
		},
	}
}

func newServeCmd(flags *rootFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.API.Addr = addr
			}
			e, err := newEngine(cfg)
			if err != nil {
				return err
			}
			e.app.OnConfigure(func(ctx context.Context, a *bootstrap.App[*Config]) error {
				srv, err := api.New(a.Cfg.API, e.service,
					api.WithStore(e.store),
					api.WithHealth(a.Components.HealthAll),
					api.WithMetrics(e.metrics),
					api.WithLogger(a.Logger),
				)
				if err != nil {
					return err
				}
				if err := a.RegisterComponent(srv); err != nil {
					return err
				}
				return a.Components.StartAll(ctx)
			})
			return e.app.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address, overrides api.addr")
	return cmd
}

func newTokenCmd(flags *rootFlags) *cobra.Command {
	var (
		subject string
		scope   string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			cfg.ApplyDefaults()
			if ttl > 0 {
				cfg.API.Auth.TTL = ttl
			}
			tokens, err := api.NewTokens(cfg.API.Auth)
			if err != nil {
				return err
			}
			token, err := tokens.Issue(subject, scope)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Token subject, recorded as the audit actor")
	cmd.Flags().StringVar(&scope, "scope", "", "Token scope")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime, overrides api.auth.ttl")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Get().String())
		},
	}
}

func readJSON(cmd *cobra.Command, path string, dst any) error {
	var r io.Reader = cmd.InOrStdin()
	if path != "-" && path != "" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// readWorkItems accepts a bare array or the request body of
// POST /v1/work-items/batch.
func readWorkItems(cmd *cobra.Command, path string) ([]*profile.WorkItem, error) {
	var raw json.RawMessage
	if err := readJSON(cmd, path, &raw); err != nil {
		return nil, err
	}
	var items []*profile.WorkItem
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '{' {
		var body struct {
			WorkItems []*profile.WorkItem `json:"work_items"`
		}
		if err := json.Unmarshal(trimmed, &body); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		items = body.WorkItems
	} else if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%s: no work items", path)
	}
	return items, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
