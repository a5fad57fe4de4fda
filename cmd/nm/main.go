package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"nmflow/internal/config"
	"nmflow/internal/db"
	"nmflow/internal/domain"
	"nmflow/internal/engine"
	"nmflow/internal/keycheck"
	"nmflow/internal/migrate"
	"nmflow/internal/notify"
	"nmflow/internal/ops"
	"nmflow/internal/perms"
	"nmflow/internal/repo"
	"nmflow/internal/rt"
)

var rootCmd = &cobra.Command{
	Use:   "nm",
	Short: "New member process tracker",
	Long: `nm tracks membership applications as auditable processes.
A process moves a person toward a target status through a fixed set of
requirements (declaration of intent, agreements, advocacies, key check,
manager report). Every change happens through a logged operation.`,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("NMFLOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().Bool("verbose", false, "debug logging")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func registerCommands() {
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(opCmd())
	rootCmd.AddCommand(personCmd())
	rootCmd.AddCommand(processCmd())
}

func logger() zerolog.Logger {
	level := zerolog.InfoLevel
	if viper.GetBool("verbose") {
		level = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

type runtime struct {
	Engine   engine.Engine
	Config   *config.Config
	RT       *rt.Client
	Notifier notify.Notifier
	Log      zerolog.Logger
}

func (a runtime) executor() *ops.TxExecutor {
	return &ops.TxExecutor{
		DB:       a.Engine.DB,
		Engine:   a.Engine,
		RT:       a.RT,
		Notifier: a.Notifier,
		Log:      a.Log,
	}
}

func withRuntime(ctx context.Context, fn func(context.Context, runtime) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	log := logger()
	if err := migrate.Migrate(conn, log); err != nil {
		return err
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return err
	}
	var checker keycheck.Checker
	if cfg.Keycheck.URL != "" {
		checker = keycheck.NewClient(cfg.Keycheck.URL)
	}
	rtm := runtime{
		Engine:   engine.New(conn, checker, log),
		Config:   cfg,
		Notifier: notify.Null{},
		Log:      log,
	}
	if cfg.RT.URL != "" {
		rtm.RT = rt.NewClient(cfg.RT.URL, cfg.RT.User, cfg.RT.Pass, cfg.RT.Queue)
	}
	if cfg.Notify.WebhookURL != "" {
		rtm.Notifier = notify.NewWebhook(cfg.Notify.WebhookURL, cfg.Notify.Secret, log)
	}
	return fn(ctx, rtm)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	return withRuntime(ctx, func(ctx context.Context, a runtime) error {
		return fn(ctx, a.Engine.Repo)
	})
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn, logger()); err != nil {
				return err
			}
			fmt.Println("database up to date:", db.Path(workspace))
			return nil
		},
	}
}

func opCmd() *cobra.Command {
	op := &cobra.Command{Use: "op", Short: "Execute and inspect operations"}
	op.AddCommand(opExecCmd())
	op.AddCommand(opKindsCmd())
	return op
}

func opExecCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "exec",
		Short: "Execute one JSON operation from a file or stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = os.Stdin
			if file != "" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			data, err := io.ReadAll(in)
			if err != nil {
				return err
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, a runtime) error {
				res := &ops.Resolver{Repo: a.Engine.Repo}
				op, err := ops.FromJSON(ctx, res, data)
				if err != nil {
					return err
				}
				if err := a.executor().Execute(ctx, op); err != nil {
					return err
				}
				fmt.Println("executed", op.Kind())
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "operation file (default stdin)")
	return cmd
}

func opKindsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List the registered operation kinds",
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds := ops.Kinds()
			if viper.GetBool("json") {
				return printJSON(kinds)
			}
			for _, k := range kinds {
				fmt.Println(k)
			}
			return nil
		},
	}
}

func personCmd() *cobra.Command {
	p := &cobra.Command{Use: "person", Short: "Inspect people"}
	p.AddCommand(personListCmd())
	p.AddCommand(personShowCmd())
	return p
}

func personListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List people",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				people, err := r.ListPersons(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(people)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "UID", "Email", "Name", "Status"})
				for _, p := range people {
					tw.AppendRow(table.Row{p.ID, p.UID, p.Email, p.FullName, p.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func personShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <email|uid|fingerprint>",
		Short: "Show one person",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				p, err := r.PersonByKey(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(p)
			})
		},
	}
}

func processCmd() *cobra.Command {
	p := &cobra.Command{Use: "process", Short: "Inspect processes"}
	p.AddCommand(processListCmd())
	p.AddCommand(processShowCmd())
	p.AddCommand(processPermsCmd())
	return p
}

func processListCmd() *cobra.Command {
	var person, applyingFor string
	var openOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List processes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				var f repo.ProcessFilters
				if person != "" {
					p, err := r.PersonByKey(ctx, person)
					if err != nil {
						return err
					}
					f.PersonID = p.ID
				}
				f.ApplyingFor = domain.Status(applyingFor)
				f.OpenOnly = openOnly
				procs, err := r.ListProcesses(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(procs)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Person", "Applying for", "Started", "Phase"})
				for _, pr := range procs {
					tw.AppendRow(table.Row{pr.ID, pr.PersonID, pr.ApplyingFor, pr.Started, phase(pr)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&person, "person", "", "filter by person key")
	cmd.Flags().StringVar(&applyingFor, "applying-for", "", "filter by target status")
	cmd.Flags().BoolVar(&openOnly, "open", false, "open processes only")
	return cmd
}

func phase(p domain.Process) string {
	switch {
	case p.Closed():
		return "closed"
	case p.Approved():
		return "approved"
	case p.Frozen():
		return "frozen"
	}
	return "open"
}

func processShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a process with its requirements and log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid process id %q", args[0])
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, a runtime) error {
				r := a.Engine.Repo
				view, err := r.GetProcessView(ctx, id)
				if err != nil {
					return err
				}
				logs, err := r.LogsByProcess(ctx, id)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"process": view, "log": logs})
				}
				fmt.Printf("process %d: %s applying for %s (%s)\n",
					view.Process.ID, view.Person.Email, view.Process.ApplyingFor, phase(view.Process))
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Requirement", "Satisfied", "Approved", "Notes"})
				for _, rq := range view.Requirements {
					st, err := a.Engine.ComputeRequirementStatus(ctx, view, rq)
					if err != nil {
						return err
					}
					var notes []string
					for _, n := range st.Notes {
						notes = append(notes, fmt.Sprintf("%s: %s", n.Level, n.Text))
					}
					tw.AppendRow(table.Row{rq.Type, st.Satisfied, rq.Approved(), strings.Join(notes, "\n")})
				}
				tw.Render()
				lt := table.NewWriter()
				lt.SetOutputMirror(os.Stdout)
				lt.AppendHeader(table.Row{"When", "By", "Action", "Text"})
				for _, l := range logs {
					lt.AppendRow(table.Row{l.Logdate, l.ChangedBy, l.Action, l.Text})
				}
				lt.Render()
				return nil
			})
		},
	}
}

func processPermsCmd() *cobra.Command {
	var visitor string
	cmd := &cobra.Command{
		Use:   "perms <id>",
		Short: "Show a visitor's capabilities on a process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid process id %q", args[0])
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				view, err := r.GetProcessView(ctx, id)
				if err != nil {
					return err
				}
				v := perms.Anonymous
				if visitor != "" {
					p, err := r.PersonByKey(ctx, visitor)
					if err != nil {
						return err
					}
					v = perms.Visitor{Person: p}
					am, err := r.AMByPerson(ctx, p.ID)
					if err == nil {
						v.AM = &am
					} else if !errors.Is(err, repo.ErrNotFound) {
						return err
					}
				}
				out := map[string]any{"process": perms.ProcessTokens(v, view).Sorted()}
				for _, rq := range view.Requirements {
					out[string(rq.Type)] = perms.RequirementTokens(v, view, rq).Sorted()
				}
				return printJSON(out)
			})
		},
	}
	cmd.Flags().StringVar(&visitor, "visitor", "", "acting person key (default anonymous)")
	return cmd
}
