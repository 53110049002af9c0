package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"signoff/internal/app"
	"signoff/internal/config"
	"signoff/internal/db"
	"signoff/internal/domain"
	"signoff/internal/engine"
	"signoff/internal/migrate"
	"signoff/internal/repo"
	"signoff/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "sf",
	Short: "Signoff CLI",
	Long: `Signoff runs client approval workflows over versioned deliverables.
Core concepts:
- Workspace: your .signoff directory with only the database; configs are stored in the DB and imported explicitly.
- Project: owns deliverables; its config defines named review templates.
- Deliverable: a versioned artifact (design, document, build) a client signs off on.
- Workflow: an ordered list of approval steps attached to one deliverable version; the current step is always the earliest still-pending one.
- Steps: each is approved, rejected, or sent back for revision; some require an e-signature before approval.
- Signatures: captured per step per signer (draw, typed, or upload); one per signer per step.
- Resubmission: a revision-requested deliverable comes back as a new version with a fresh workflow; the old one stays in the record.
- History: the append-only diary of every successful action, view with 'sf history'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
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
	viper.SetEnvPrefix("SIGNOFF")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("project", "", "project id (overrides config default)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("project", rootCmd.PersistentFlags().Lookup("project"))
}

func registerCommands() {
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(deliverableCmd())
	rootCmd.AddCommand(stepCmd())
	rootCmd.AddCommand(signCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(serveCmd())
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectShowCmd())
	return prj
}

func projectListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListProjects(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func projectCreateCmd() *cobra.Command {
	var id, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				cfg := config.Default(id)
				if err := app.CreateProject(ctx, r, id, name, cfg, viper.GetString("actor-id")); err != nil {
					return err
				}
				p, err := r.GetProject(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "project id")
	cmd.Flags().StringVar(&name, "name", "", "project name")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func projectShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := viper.GetString("project")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if target == "" {
					target = e.Config.Project.ID
				}
				p, err := e.Repo.GetProject(ctx, target)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage project config",
		Long:  "Config is the rulebook (stored in DB): project id/kind and named review templates that say which steps a submission goes through and which need a signature. Import from signoff.yml if desired.",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configImportCmd())
	cfg.AddCommand(configValidateCmd())
	cfg.AddCommand(configInitCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show project config stored in DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return printJSONOrTable(e.Config)
			})
		},
	}
	return cmd
}

func configImportCmd() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import project config from YAML into the DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg *config.Config
			var err error
			if filePath != "" {
				cfg, err = config.FromFile(filePath)
			} else {
				cfg, err = config.Load(viper.GetString("workspace"))
			}
			if err != nil {
				return err
			}
			projectID := cfg.Project.ID
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if projectID == "" {
					projectID = e.Config.Project.ID
				}
				if err := e.Repo.UpsertProjectConfig(ctx, projectID, cfg); err != nil {
					return err
				}
				return printJSONOrTable(cfg)
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to YAML config (defaults to workspace signoff.yml)")
	return cmd
}

func configValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate stored config",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Config.Validate()
			})
			if viper.GetBool("json") {
				out := map[string]any{"ok": err == nil}
				if err != nil {
					out["error"] = err.Error()
				}
				return printJSON(out)
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	return cmd
}

func configInitCmd() *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Print default config YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" {
				projectID = "my-project"
			}
			fmt.Print(config.GenerateDefault(projectID))
			return nil
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id to embed")
	return cmd
}

func deliverableCmd() *cobra.Command {
	del := &cobra.Command{
		Use:   "deliverable",
		Short: "Manage deliverables",
		Long:  "Deliverables are the versioned artifacts clients approve. Create one, submit it for review, act on its steps, and resubmit after a revision request.",
	}
	del.AddCommand(deliverableCreateCmd())
	del.AddCommand(deliverableListCmd())
	del.AddCommand(deliverableShowCmd())
	del.AddCommand(deliverableSubmitCmd())
	del.AddCommand(deliverableResubmitCmd())
	return del
}

func deliverableCreateCmd() *cobra.Command {
	var opts engine.DeliverableCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a deliverable",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if opts.ProjectID == "" {
					opts.ProjectID = e.Config.Project.ID
				}
				d, err := e.CreateDeliverable(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "deliverable id (optional, deterministic UUID if omitted)")
	cmd.Flags().StringVar(&opts.ProjectID, "project", "", "project id")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.ArtifactRef, "artifact-ref", "", "artifact reference (URL or path)")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("artifact-ref")
	return cmd
}

func deliverableListCmd() *cobra.Command {
	var f repo.DeliverableFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List deliverables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if f.ProjectID == "" {
					f.ProjectID = e.Config.Project.ID
				}
				items, err := e.Repo.ListDeliverables(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Version", "Status", "Artifact"})
				for _, d := range items {
					status, err := e.DeliverableStatus(ctx, d)
					if err != nil {
						return err
					}
					tw.AppendRow(table.Row{d.ID, d.Title, d.Version, status, d.ArtifactRef})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.ProjectID, "project", "", "project id")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "max rows")
	return cmd
}

func deliverableShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show deliverable with its active workflow snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.Repo.GetDeliverable(ctx, id)
				if err != nil {
					return err
				}
				if d.ActiveWorkflowID == nil {
					return printJSONOrTable(d)
				}
				snap, err := e.Snapshot(ctx, *d.ActiveWorkflowID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(snap)
				}
				fmt.Printf("Deliverable: %s (v%d, %s)\n", d.Title, snap.Deliverable.Version, snap.DeliverableStatus)
				fmt.Printf("Artifact: %s\n", snap.Deliverable.ArtifactRef)
				printStepsTable(snap.Steps, snap.CurrentStepIndex)
				return nil
			})
		},
	}
	return cmd
}

func deliverableSubmitCmd() *cobra.Command {
	var template string
	var stepNames []string
	var signSteps []string
	cmd := &cobra.Command{
		Use:   "submit <id>",
		Short: "Submit deliverable for review",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("deliverable id required")
			}
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var steps []domain.StepTemplate
				if len(stepNames) > 0 {
					sign := map[string]bool{}
					for _, s := range signSteps {
						sign[s] = true
					}
					for i, name := range stepNames {
						steps = append(steps, domain.StepTemplate{
							Seq:              i + 1,
							Name:             name,
							RequireSignature: sign[name],
						})
					}
				}
				snap, err := e.SubmitForReview(ctx, engine.SubmitOptions{
					DeliverableID: id,
					Template:      template,
					Steps:         steps,
					ActorID:       viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printSnapshot(snap)
			})
		},
	}
	cmd.Flags().StringVar(&template, "template", "", "review template name (defaults to config default_template)")
	cmd.Flags().StringArrayVar(&stepNames, "step", []string{}, "explicit step name (repeatable; overrides template)")
	cmd.Flags().StringArrayVar(&signSteps, "require-signature", []string{}, "step name that requires a signature (repeatable)")
	return cmd
}

func deliverableResubmitCmd() *cobra.Command {
	var artifactRef string
	cmd := &cobra.Command{
		Use:   "resubmit <id>",
		Short: "Resubmit a revision-requested deliverable as a new version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				snap, err := e.Resubmit(ctx, engine.ResubmitOptions{
					DeliverableID: id,
					ArtifactRef:   artifactRef,
					ActorID:       viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printSnapshot(snap)
			})
		},
	}
	cmd.Flags().StringVar(&artifactRef, "artifact-ref", "", "new artifact reference")
	_ = cmd.MarkFlagRequired("artifact-ref")
	return cmd
}

func stepCmd() *cobra.Command {
	step := &cobra.Command{
		Use:   "step",
		Short: "Act on workflow steps",
		Long:  "Only the current step (earliest still pending) accepts actions. Approve moves the workflow forward; reject and revise end it.",
	}
	step.AddCommand(stepActionCmd("approve", "Approve the current step", func(e engine.Engine) func(context.Context, engine.ActionOptions) (engine.Snapshot, error) {
		return e.ApproveStep
	}))
	step.AddCommand(stepActionCmd("reject", "Reject the current step", func(e engine.Engine) func(context.Context, engine.ActionOptions) (engine.Snapshot, error) {
		return e.RejectStep
	}))
	step.AddCommand(stepActionCmd("revise", "Request revision on the current step", func(e engine.Engine) func(context.Context, engine.ActionOptions) (engine.Snapshot, error) {
		return e.RequestRevision
	}))
	return step
}

func stepActionCmd(verb, short string, pick func(engine.Engine) func(context.Context, engine.ActionOptions) (engine.Snapshot, error)) *cobra.Command {
	var comments string
	cmd := &cobra.Command{
		Use:   verb + " <step-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stepID := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				snap, err := pick(e)(ctx, engine.ActionOptions{
					StepID:   stepID,
					ActorID:  viper.GetString("actor-id"),
					Comments: comments,
				})
				if err != nil {
					return err
				}
				return printSnapshot(snap)
			})
		},
	}
	cmd.Flags().StringVar(&comments, "comments", "", "reviewer comments")
	return cmd
}

func signCmd() *cobra.Command {
	var payload, method string
	cmd := &cobra.Command{
		Use:   "sign <step-id>",
		Short: "Add a signature to the current step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stepID := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				snap, err := e.AddSignature(ctx, engine.SignatureOptions{
					StepID:   stepID,
					SignerID: viper.GetString("actor-id"),
					Payload:  payload,
					Method:   method,
				})
				if err != nil {
					return err
				}
				return printSnapshot(snap)
			})
		},
	}
	cmd.Flags().StringVar(&payload, "payload", "", "signature payload (image data or typed name)")
	cmd.Flags().StringVar(&method, "method", "typed", "signature method (draw, typed, upload)")
	_ = cmd.MarkFlagRequired("payload")
	return cmd
}

func historyCmd() *cobra.Command {
	var workflowID, deliverableID string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the audit trail",
		RunE: func(cmd *cobra.Command, args []string) error {
			if workflowID == "" && deliverableID == "" {
				return fmt.Errorf("--workflow or --deliverable required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var entries []domain.HistoryEntry
				var err error
				if workflowID != "" {
					entries, err = e.Repo.ListHistoryForWorkflow(ctx, workflowID)
				} else {
					entries, err = e.Repo.ListHistoryForDeliverable(ctx, deliverableID)
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"#", "TS", "Action", "Actor", "Step", "Comments"})
				for _, h := range entries {
					stepID := ""
					if h.StepID != nil {
						stepID = *h.StepID
					}
					tw.AppendRow(table.Row{h.ID, h.TS, h.Action, h.ActorID, stepID, h.Comments})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&workflowID, "workflow", "", "workflow id")
	cmd.Flags().StringVar(&deliverableID, "deliverable", "", "deliverable id (full lineage across versions)")
	return cmd
}

func apikeyCmd() *cobra.Command {
	key := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	key.AddCommand(apikeyCreateCmd())
	key.AddCommand(apikeyListCmd())
	key.AddCommand(apikeyDeleteCmd())
	return key
}

func apikeyCreateCmd() *cobra.Command {
	var actorID, name, rawKey string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Mint an API key for an actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			if rawKey == "" {
				return fmt.Errorf("--key required")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				tx, err := r.DB.BeginTx(ctx, nil)
				if err != nil {
					return err
				}
				defer tx.Rollback()
				if err := r.EnsureActor(ctx, tx, actorID, repo.ActorContact); err != nil {
					return err
				}
				key := domain.APIKey{
					ID:      fmt.Sprintf("key-%d", time.Now().UnixNano()),
					ActorID: actorID,
					Name:    name,
					KeyHash: repo.HashAPIKey(rawKey),
				}
				if err := r.InsertAPIKey(ctx, tx, key); err != nil {
					return err
				}
				if err := tx.Commit(); err != nil {
					return err
				}
				return printJSONOrTable(map[string]string{"id": key.ID, "actor_id": actorID})
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "actor id")
	cmd.Flags().StringVar(&name, "name", "", "key label")
	cmd.Flags().StringVar(&rawKey, "key", "", "raw key value (stored hashed)")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var actorID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListAPIKeys(ctx, actorID)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "filter by actor id")
	return cmd
}

func apikeyDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var allowLegacyHeader bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			r := repo.Repo{DB: conn}
			_, cfg, err := app.ResolveProjectAndConfig(cmd.Context(), viper.GetString("project"), viper.GetString("actor-id"), r)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			authCfg := server.AuthConfig{
				JWTSecret:              os.Getenv("SIGNOFF_JWT_SECRET"),
				AllowLegacyActorHeader: allowLegacyHeader,
			}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("SIGNOFF_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Signoff API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&allowLegacyHeader, "allow-legacy-actor-header", false, "accept X-Actor-Id without auth (dev only)")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	_, cfg, err := app.ResolveProjectAndConfig(ctx, viper.GetString("project"), viper.GetString("actor-id"), r)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	return fn(ctx, r)
}

func printSnapshot(snap engine.Snapshot) error {
	if viper.GetBool("json") {
		return printJSON(snap)
	}
	fmt.Printf("Workflow %s (v%d): %s\n", snap.Workflow.ID, snap.Workflow.Version, snap.Workflow.Status)
	printStepsTable(snap.Steps, snap.CurrentStepIndex)
	return nil
}

func printStepsTable(steps []domain.Step, currentIndex int) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"#", "Step", "Status", "Signature", "Actor"})
	for _, s := range steps {
		marker := s.Name
		if s.Seq == currentIndex {
			marker = "> " + s.Name
		}
		sig := ""
		if s.RequireSignature {
			sig = "required"
		}
		actor := ""
		if s.ActorID != nil {
			actor = *s.ActorID
		}
		tw.AppendRow(table.Row{s.Seq, marker, s.Status, sig, actor})
	}
	tw.Render()
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
