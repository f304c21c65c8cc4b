package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/branchflow/internal/config"
	"github.com/lucasnoah/branchflow/internal/db"
	"github.com/lucasnoah/branchflow/internal/flow"
	"github.com/lucasnoah/branchflow/internal/git"
	"github.com/lucasnoah/branchflow/internal/report"
	"github.com/lucasnoah/branchflow/internal/session"
	"github.com/lucasnoah/branchflow/internal/tool"
)

// newRunner builds the process runner behind every git and tool call.
// Replaced in tests.
var newRunner = func() tool.Runner { return &tool.ExecRunner{} }

// app is everything a lifecycle command needs for one repository.
type app struct {
	dir      string
	cfg      *config.Config
	git      *git.Client
	engine   *flow.Engine
	store    *session.Store
	events   *db.DB
	progress io.Writer
}

// repoDir resolves --dir, defaulting to the working directory.
func repoDir() (string, error) {
	if flagDir != "" {
		return filepath.Abs(flagDir)
	}
	return os.Getwd()
}

// loadConfig reads --config, or searches the default locations, and validates.
func loadConfig(dir string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flagConfig != "" {
		cfg, err = config.Load(flagConfig)
	} else {
		cfg, _, err = config.LoadDefault(dir)
	}
	if err != nil {
		return nil, usageErrorf("%v", err)
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, usageErrorf("invalid config: %s", strings.Join(msgs, "; "))
	}
	return cfg, nil
}

// newApp wires config, git, the engine, the checkpoint store and, when a
// database URL is configured, the event log. tune adjusts the loaded config
// before anything is built from it. Call close when done.
func newApp(cmd *cobra.Command, tune ...func(*config.Config)) (*app, error) {
	if flagFormat != report.FormatText && flagFormat != report.FormatJSON {
		return nil, usageErrorf("unknown format %q (want text or json)", flagFormat)
	}
	dir, err := repoDir()
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfig(dir)
	if err != nil {
		return nil, err
	}
	for _, fn := range tune {
		fn(cfg)
	}

	progress := io.Discard
	if flagVerbose {
		progress = cmd.ErrOrStderr()
	}

	adapter := tool.NewAdapter(newRunner())
	adapter.SetProgress(progress)
	gc := git.NewClient(adapter, dir, cfg.Remote, cfg.GitTimeout())

	gitDir, err := gc.GitDir(cmd.Context())
	if err != nil {
		return nil, &flow.PreconditionError{Reason: flow.ReasonInvalidArgument, Detail: dir + " is not a git repository"}
	}

	table, err := cfg.ManifestTable()
	if err != nil {
		return nil, usageErrorf("invalid config: %v", err)
	}
	engine := flow.NewEngine(adapter, gc, table, flow.Options{
		Trunk:         cfg.Trunk,
		TrackRemote:   cfg.ShouldTrackRemote(),
		IntegrateMode: cfg.IntegrateMode,
		BranchTypes:   cfg.BranchTypes,
		SetupTimeout:  cfg.SetupTimeout(),
		TestTimeout:   cfg.TestTimeout(),
		SkipSetup:     cfg.Setup.Skip,
		SkipTests:     cfg.Test.Skip,
		TestParser:    cfg.Test.Parser,
	})
	engine.SetProgress(progress)

	a := &app{
		dir:      dir,
		cfg:      cfg,
		git:      gc,
		engine:   engine,
		store:    session.NewStore(filepath.Join(gitDir, "branchflow")),
		progress: progress,
	}

	if url := cfg.EventLog.DatabaseURL; url != "" {
		d, err := openEventLog(cmd.Context(), url)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: event log disabled: %v\n", err)
		} else {
			a.events = d
			engine.SetRecorder(d)
		}
	}
	return a, nil
}

func openEventLog(ctx context.Context, url string) (*db.DB, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	d, err := db.Open(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := d.Migrate(ctx); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func (a *app) close() {
	if a.events != nil {
		a.events.Close()
	}
}

// load returns the session named by --branch, or the active one.
func (a *app) load(branch string) (*session.WorkflowSession, error) {
	if branch == "" {
		active, err := a.store.Active()
		if errors.Is(err, session.ErrNotFound) {
			return nil, &flow.PreconditionError{Reason: flow.ReasonNoSession, Detail: "no active session; run start or pass --branch"}
		}
		if err != nil {
			return nil, err
		}
		branch = active
	}
	ws, err := a.store.Get(branch)
	if errors.Is(err, session.ErrNotFound) {
		return nil, &flow.PreconditionError{Reason: flow.ReasonNoSession, Detail: fmt.Sprintf("no session for branch %q", branch)}
	}
	return ws, err
}

// checkpoint saves ws, emits its report, and discards the checkpoint once the
// session has ended. The report is always written before the checkpoint goes.
func (a *app) checkpoint(cmd *cobra.Command, ws *session.WorkflowSession) error {
	if err := a.store.Save(ws); err != nil {
		return err
	}
	if err := a.store.SetActive(ws.Branch); err != nil {
		return err
	}
	if err := a.report(cmd, ws); err != nil {
		return err
	}
	if ws.State.Terminal() {
		return a.store.Delete(ws.Branch)
	}
	return nil
}

func (a *app) report(cmd *cobra.Command, ws *session.WorkflowSession) error {
	r := report.New(ws, a.cfg.Staleness(), time.Now().UTC())
	return report.Write(cmd.OutOrStdout(), flagFormat, r)
}

// finish checkpoints ws and converts the engine's verdict into the command
// result. A refused request leaves the session as it was, so nothing is saved.
func (a *app) finish(cmd *cobra.Command, ws *session.WorkflowSession, err error) error {
	if flow.IsPrecondition(err) && ws.State != session.StateFailed {
		return err
	}
	if cerr := a.checkpoint(cmd, ws); cerr != nil {
		return cerr
	}
	return outcomeError(ws, err)
}

// decisionFrom builds a Decision from --decision, --paths and --message.
func decisionFrom(cmd *cobra.Command) *session.Decision {
	choice, _ := cmd.Flags().GetString("decision")
	if choice == "" {
		return nil
	}
	d := &session.Decision{Choice: choice}
	if cmd.Flags().Lookup("paths") != nil {
		d.Paths, _ = cmd.Flags().GetStringSlice("paths")
	}
	if cmd.Flags().Lookup("message") != nil {
		d.Message, _ = cmd.Flags().GetString("message")
	}
	return d
}
