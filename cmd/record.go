package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/pagesmith/api/schemas"
	"github.com/xkilldash9x/pagesmith/internal/artifacts"
	"github.com/xkilldash9x/pagesmith/internal/browser"
	"github.com/xkilldash9x/pagesmith/internal/config"
	"github.com/xkilldash9x/pagesmith/internal/pagestore"
	"github.com/xkilldash9x/pagesmith/internal/session"
	"github.com/xkilldash9x/pagesmith/pkg/observability"
)

// scriptStep is one entry of a --steps file.
type scriptStep struct {
	Action    string `yaml:"action"`
	Selector  string `yaml:"selector"`
	Value     string `yaml:"value"`
	Name      string `yaml:"name"`
	Timeout   string `yaml:"timeout"`
	Assertion *struct {
		Kind     string `yaml:"kind"`
		Expected string `yaml:"expected"`
	} `yaml:"assertion"`
}

type scriptFile struct {
	Steps []scriptStep `yaml:"steps"`
}

// newRecordCmd creates the `record` command: open a session, navigate,
// optionally replay a scripted step sequence while recording, and emit the
// synthesized test source.
func newRecordCmd() *cobra.Command {
	recordCmd := &cobra.Command{
		Use:   "record <url>",
		Short: "Records a browsing session against the URL and synthesizes test code",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}
			if out, _ := cmd.Flags().GetString("out"); out != "" {
				cfg.Artifacts.Dir = out
			}

			stepsFile, _ := cmd.Flags().GetString("steps")
			var script scriptFile
			if stepsFile != "" {
				data, err := os.ReadFile(stepsFile)
				if err != nil {
					return fmt.Errorf("failed to read steps file: %w", err)
				}
				if err := yaml.Unmarshal(data, &script); err != nil {
					return fmt.Errorf("failed to parse steps file: %w", err)
				}
			}

			store, cleanup, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			sink, err := artifacts.NewFileSink(logger, cfg.Artifacts)
			if err != nil {
				return err
			}

			driver, err := browser.NewDriver(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to launch browser: %w", err)
			}

			mgr := session.NewManager(logger, cfg, driver, store, sink)
			defer func() {
				if err := mgr.Shutdown(context.Background()); err != nil {
					logger.Warn("Shutdown reported errors", zap.Error(err))
				}
			}()

			id, err := mgr.Start(ctx)
			if err != nil {
				return err
			}
			if err := mgr.StartRecording(id); err != nil {
				return err
			}
			if err := mgr.Navigate(ctx, id, args[0]); err != nil {
				return err
			}

			for i, step := range script.Steps {
				if err := runScriptStep(ctx, mgr, id, step); err != nil {
					return fmt.Errorf("step %d (%s %s) failed: %w", i+1, step.Action, step.Selector, err)
				}
			}

			source, err := mgr.StopRecording(ctx, id)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), source)
			return nil
		},
	}

	recordCmd.Flags().String("steps", "", "YAML file with a scripted step sequence to replay")
	recordCmd.Flags().String("out", "", "directory for generated artifacts (overrides artifacts.dir)")
	return recordCmd
}

func runScriptStep(ctx context.Context, mgr *session.Manager, id string, step scriptStep) error {
	switch schemas.StepAction(step.Action) {
	case schemas.ActionNavigate:
		return mgr.Navigate(ctx, id, step.Value)
	case schemas.ActionClick:
		return mgr.Click(ctx, id, step.Selector, step.Name)
	case schemas.ActionFill:
		return mgr.Fill(ctx, id, step.Selector, step.Value, step.Name)
	case schemas.ActionSelect:
		return mgr.SelectOption(ctx, id, step.Selector, step.Value, step.Name)
	case schemas.ActionCheck:
		return mgr.SetChecked(ctx, id, step.Selector, true, step.Name)
	case schemas.ActionUncheck:
		return mgr.SetChecked(ctx, id, step.Selector, false, step.Name)
	case schemas.ActionHover:
		return mgr.Hover(ctx, id, step.Selector, step.Name)
	case schemas.ActionWait:
		timeout := time.Duration(0)
		if step.Timeout != "" {
			var err error
			if timeout, err = time.ParseDuration(step.Timeout); err != nil {
				return fmt.Errorf("invalid timeout %q: %w", step.Timeout, err)
			}
		}
		return mgr.WaitForSelector(ctx, id, step.Selector, timeout)
	case schemas.ActionAssert:
		if step.Assertion == nil {
			return fmt.Errorf("assert step needs an assertion block")
		}
		return mgr.Assert(ctx, id, step.Selector, schemas.Assertion{
			Kind:     schemas.AssertionKind(step.Assertion.Kind),
			Expected: step.Assertion.Expected,
		})
	default:
		return fmt.Errorf("unknown action %q", step.Action)
	}
}

// openStore builds the page object store, wiring the postgres repository when
// one is configured. The returned cleanup closes the pool.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*pagestore.Store, func(), error) {
	if cfg.Store.PostgresURL == "" {
		return pagestore.New(logger, nil), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.Store.PostgresURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	repo := pagestore.NewPostgresRepository(pool, logger)
	if err := repo.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	store := pagestore.New(logger, repo)
	if err := store.LoadFromRepository(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store, pool.Close, nil
}
