package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskflow/internal/app"
	"taskflow/internal/attach"
	"taskflow/internal/config"
	"taskflow/internal/db"
	"taskflow/internal/domain"
	"taskflow/internal/engine"
	"taskflow/internal/engine/auth"
	"taskflow/internal/migrate"
	"taskflow/internal/query"
	"taskflow/internal/report"
	"taskflow/internal/repo"
	"taskflow/internal/server"
	"taskflow/internal/store"
)

const envFile = ".env"

var rootCmd = &cobra.Command{
	Use:   "tf",
	Short: "Taskflow CLI",
	Long: `Taskflow is a small team task manager.
- Workspace: a directory holding taskflow.yml (the team roster and settings) and .taskflow/ with the database.
- Users: Managers see every task and the dashboard; Members only see tasks assigned to them.
- Tasks: move between To Do, In Progress and Completed. Status and priority changes, comments and attachments are audited.
- Recurring tasks: completing one creates the next occurrence (daily, weekly or monthly) assigned to the same people.
- Acting user: commands run as the session's current user (tf user use) unless --as is given.`,
	SilenceUsage: true,
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
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TASKFLOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("as", "", "act as this user id (defaults to the session's current user)")
	rootCmd.PersistentFlags().Bool("verbose", false, "log storage diagnostics to stderr")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("as", rootCmd.PersistentFlags().Lookup("as"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(resetCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(dashboardCmd())
	rootCmd.AddCommand(calendarCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create taskflow.yml, a JWT secret and the workspace database",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfgPath := config.Path(workspace)
			if _, err := os.Stat(cfgPath); errors.Is(err, os.ErrNotExist) {
				if err := os.WriteFile(cfgPath, []byte(config.GenerateDefault()), 0o644); err != nil {
					return err
				}
				fmt.Println("wrote", cfgPath)
			} else if err != nil {
				return err
			}
			if jwtSecret() == "" {
				secret, err := randomSecret()
				if err != nil {
					return err
				}
				if err := setEnvValue(filepath.Join(workspace, envFile), "TASKFLOW_JWT_SECRET", secret); err != nil {
					return err
				}
				fmt.Println("wrote TASKFLOW_JWT_SECRET to", filepath.Join(workspace, envFile))
			}
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				fmt.Printf("workspace ready: %d tasks, current user %s\n", len(ws.Session.Tasks()), ws.Session.CurrentUser().Name)
				return nil
			})
		},
	}
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
		Long:  "taskflow.yml holds the team roster, the month-end rule for monthly recurrences, server settings and whether a fresh workspace starts with demo tasks.",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			if cfg == nil {
				cfg = config.Default()
			}
			return printJSON(cfg)
		},
	}
	return cmd
}

func configValidateCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate taskflow.yml (or --file)",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if file != "" {
				_, err = config.FromFile(file)
			} else {
				_, err = config.Load(viper.GetString("workspace"))
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "validate this file instead of the workspace config")
	return cmd
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show workspace status",
		Long:  "Database location, schema version, stored values and task counts by status.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				version, err := migrate.Version(ctx, ws.DB)
				if err != nil {
					return err
				}
				latest, err := migrate.Latest()
				if err != nil {
					return err
				}
				values, err := ws.Repo.ListValues(ctx, false)
				if err != nil {
					return err
				}
				counts := map[domain.Status]int{}
				for _, t := range ws.Session.Tasks() {
					counts[t.Status]++
				}
				out := map[string]any{
					"database":       db.Path(ws.Dir),
					"schema_version": version,
					"schema_latest":  latest,
					"current_user":   ws.Session.CurrentUser().ID,
					"task_counts":    counts,
					"stored_values":  values,
				}
				if viper.GetBool("json") {
					return printJSON(out)
				}
				fmt.Printf("Database: %s (schema v%d of v%d)\n", db.Path(ws.Dir), version, latest)
				fmt.Printf("Current user: %s\n", ws.Session.CurrentUser().Name)
				fmt.Println("Tasks:")
				for _, s := range domain.Statuses {
					fmt.Printf("  %s: %d\n", s, counts[s])
				}
				fmt.Println("Stored values:")
				for _, v := range values {
					fmt.Printf("  %s (updated %s)\n", v.Name, v.UpdatedAt)
				}
				return nil
			})
		},
	}
	return cmd
}

func resetCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Forget stored tasks and current user (the next run starts from the seed)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				ok, err := confirm(cmd.InOrStdin(), "Erase all tasks in this workspace? [y/N] ")
				if err != nil {
					return err
				}
				if !ok {
					return app.ErrConfirmationRequired
				}
			}
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				for _, name := range []string{store.KeyTasks, store.KeyCurrentUser} {
					if err := ws.Repo.DeleteValue(ctx, name); err != nil && !errors.Is(err, repo.ErrNotFound) {
						return err
					}
				}
				fmt.Println("workspace reset")
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func userCmd() *cobra.Command {
	u := &cobra.Command{Use: "user", Short: "Team roster and current user"}
	u.AddCommand(userListCmd())
	u.AddCommand(userUseCmd())
	u.AddCommand(userWhoamiCmd())
	u.AddCommand(userTokenCmd())
	return u
}

func userListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List team members",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				users := ws.Session.Users()
				if viper.GetBool("json") {
					return printJSON(users)
				}
				current := ws.Session.CurrentUser().ID
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"", "ID", "Name", "Role"})
				for _, u := range users {
					mark := ""
					if u.ID == current {
						mark = "*"
					}
					tw.AppendRow(table.Row{mark, u.ID, u.Name, u.Role})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func userUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <user-id>",
		Short: "Switch the session's current user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				u, err := ws.Session.SwitchUser(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(u)
				}
				fmt.Printf("now acting as %s (%s)\n", u.Name, u.Role)
				return nil
			})
		},
	}
}

func userWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the acting user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				actor, err := resolveActor(ws)
				if err != nil {
					return err
				}
				return printJSONOrTable(actor)
			})
		},
	}
}

func userTokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Mint a bearer token for the API server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := jwtSecret()
			if secret == "" {
				return fmt.Errorf("TASKFLOW_JWT_SECRET is not set; run tf init or export it")
			}
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				u, err := ws.Session.User(args[0])
				if err != nil {
					return err
				}
				token, err := server.SignToken(secret, u.ID, ttl)
				if err != nil {
					return err
				}
				fmt.Println(token)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime (0 for no expiry)")
	return cmd
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
		Long:  "Tasks move between To Do, In Progress and Completed. Members can only see and change tasks assigned to them.",
	}
	task.AddCommand(taskCreateCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(taskGetCmd())
	task.AddCommand(taskUpdateCmd())
	task.AddCommand(taskStatusCmd())
	task.AddCommand(taskPriorityCmd())
	task.AddCommand(taskCommentCmd())
	task.AddCommand(taskAttachCmd())
	task.AddCommand(taskDownloadCmd())
	task.AddCommand(taskDeleteCmd())
	task.AddCommand(taskLogCmd())
	return task
}

func taskCreateCmd() *cobra.Command {
	var opts engine.TaskCreateOptions
	var status, priority, due, recurring string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			dueDate, err := parseDue(due)
			if err != nil {
				return err
			}
			opts.DueDate = dueDate
			opts.Status = domain.Status(status)
			opts.Priority = domain.Priority(priority)
			if recurring != "" {
				opts.IsRecurring = true
				opts.RecurrenceInterval = domain.RecurrenceInterval(recurring)
			}
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				actor, err := resolveActor(ws)
				if err != nil {
					return err
				}
				opts.ActorID = actor.ID
				t, err := ws.Session.CreateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printTask(t, ws.Session.Users())
			})
		},
	}
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&status, "status", "", "To Do, In Progress or Completed (default To Do)")
	cmd.Flags().StringVar(&priority, "priority", "", "Low, Medium or High (default Medium)")
	cmd.Flags().StringVar(&due, "due", "", "due date (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringArrayVar(&opts.AssigneeIDs, "assignee", []string{}, "assignee user id (repeatable)")
	cmd.Flags().StringVar(&recurring, "recurring", "", "make recurring: daily, weekly or monthly")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("due")
	return cmd
}

func taskListCmd() *cobra.Command {
	var f query.TaskFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List visible tasks, soonest due first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				actor, err := resolveActor(ws)
				if err != nil {
					return err
				}
				tasks := ws.Session.Visible(actor, f)
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				users := ws.Session.Users()
				now := time.Now()
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Priority", "Due", "Assignees", ""})
				for _, t := range tasks {
					var flags []string
					if t.IsOverdue(now) {
						flags = append(flags, "overdue")
					}
					if t.IsRecurring {
						flags = append(flags, string(t.RecurrenceInterval))
					}
					tw.AppendRow(table.Row{t.ID, t.Title, t.Status, t.Priority, t.DueDate.Format("2006-01-02 15:04"), assigneeNames(t, users), strings.Join(flags, ",")})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.SearchTerm, "search", "", "match title or description")
	cmd.Flags().StringVar(&f.Status, "status", query.All, "status filter")
	cmd.Flags().StringVar(&f.Priority, "priority", query.All, "priority filter")
	cmd.Flags().StringVar(&f.AssigneeID, "assignee", query.All, "assignee filter (managers only)")
	return cmd
}

func taskGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <task-id>",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				t, _, err := visibleTask(ws, args[0])
				if err != nil {
					return err
				}
				return printTask(t, ws.Session.Users())
			})
		},
	}
}

func taskUpdateCmd() *cobra.Command {
	var title, description, due, status, priority, recurring string
	var assignees []string
	cmd := &cobra.Command{
		Use:   "update <task-id>",
		Short: "Edit task fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts engine.TaskUpdateOptions
			flags := cmd.Flags()
			if flags.Changed("title") {
				opts.Title = &title
			}
			if flags.Changed("description") {
				opts.Description = &description
			}
			if flags.Changed("due") {
				d, err := parseDue(due)
				if err != nil {
					return err
				}
				opts.DueDate = &d
			}
			if flags.Changed("assignee") {
				opts.AssigneeIDs = &assignees
			}
			if flags.Changed("status") {
				s := domain.Status(status)
				opts.Status = &s
			}
			if flags.Changed("priority") {
				p := domain.Priority(priority)
				opts.Priority = &p
			}
			if flags.Changed("recurring") {
				on := recurring != "" && recurring != "off"
				opts.IsRecurring = &on
				if on {
					ri := domain.RecurrenceInterval(recurring)
					opts.RecurrenceInterval = &ri
				}
			}
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				_, actor, err := visibleTask(ws, args[0])
				if err != nil {
					return err
				}
				opts.ActorID = actor.ID
				out, err := ws.Session.UpdateTask(ctx, args[0], opts)
				if err != nil {
					return err
				}
				return printOutcome(out, ws.Session.Users())
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&due, "due", "", "due date (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringArrayVar(&assignees, "assignee", []string{}, "replace assignees (repeatable)")
	cmd.Flags().StringVar(&status, "status", "", "status")
	cmd.Flags().StringVar(&priority, "priority", "", "priority")
	cmd.Flags().StringVar(&recurring, "recurring", "", "daily, weekly, monthly or off")
	return cmd
}

func taskStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <task-id> <status>",
		Short: "Change status (completing a recurring task schedules the next one)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				_, actor, err := visibleTask(ws, args[0])
				if err != nil {
					return err
				}
				out, err := ws.Session.ChangeStatus(ctx, args[0], domain.Status(args[1]), actor.ID)
				if err != nil {
					return err
				}
				return printOutcome(out, ws.Session.Users())
			})
		},
	}
}

func taskPriorityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "priority <task-id> <priority>",
		Short: "Change priority",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				_, actor, err := visibleTask(ws, args[0])
				if err != nil {
					return err
				}
				out, err := ws.Session.ChangePriority(ctx, args[0], domain.Priority(args[1]), actor.ID)
				if err != nil {
					return err
				}
				return printOutcome(out, ws.Session.Users())
			})
		},
	}
}

func taskCommentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "comment <task-id> <text>...",
		Short: "Add a comment",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				_, actor, err := visibleTask(ws, args[0])
				if err != nil {
					return err
				}
				out, err := ws.Session.AddComment(ctx, args[0], strings.Join(args[1:], " "), actor.ID)
				if err != nil {
					return err
				}
				if !out.Changed && !viper.GetBool("json") {
					fmt.Println("empty comment ignored")
					return nil
				}
				return printOutcome(out, ws.Session.Users())
			})
		},
	}
}

func taskAttachCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "attach <task-id> <file>...",
		Short: "Attach files (stored inline as data URLs)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			uploads := make([]attach.Upload, 0, len(args)-1)
			for _, p := range args[1:] {
				f, err := os.Open(p)
				if err != nil {
					return err
				}
				defer f.Close()
				uploads = append(uploads, attach.Upload{Name: filepath.Base(p), Content: f})
			}
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				_, actor, err := visibleTask(ws, args[0])
				if err != nil {
					return err
				}
				out, err := ws.Session.AddAttachments(ctx, args[0], uploads, actor.ID)
				if err != nil {
					return err
				}
				return printOutcome(out, ws.Session.Users())
			})
		},
	}
}

func taskDownloadCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "download <task-id> <attachment-id>",
		Short: "Write an attachment's content to a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				t, _, err := visibleTask(ws, args[0])
				if err != nil {
					return err
				}
				for _, a := range t.Attachments {
					if a.ID != args[1] {
						continue
					}
					_, data, err := attach.DecodeDataURL(a.URL)
					if err != nil {
						return fmt.Errorf("attachment %s: %w", a.ID, err)
					}
					path := out
					if path == "" {
						path = filepath.Base(a.Name)
					}
					if err := os.WriteFile(path, data, 0o644); err != nil {
						return err
					}
					fmt.Printf("wrote %s (%d bytes, %s)\n", path, len(data), a.Type)
					return nil
				}
				return fmt.Errorf("task %s has no attachment %s", t.ID, args[1])
			})
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output path (defaults to the attachment name)")
	return cmd
}

func taskDeleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				return deleteTask(ctx, ws, args[0], yes, cmd.InOrStdin(), cmd.OutOrStdout())
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

// deleteTask prompts on in unless yes is set. Declining leaves the task alone.
func deleteTask(ctx context.Context, ws *app.Workspace, id string, yes bool, in io.Reader, out io.Writer) error {
	t, _, err := visibleTask(ws, id)
	if err != nil {
		return err
	}
	if !yes {
		ok, err := confirm(in, fmt.Sprintf("Delete %q? [y/N] ", t.Title))
		if err != nil {
			return err
		}
		if !ok {
			if viper.GetBool("json") {
				return printJSON(map[string]any{"deleted": false, "cancelled": true})
			}
			fmt.Fprintln(out, "cancelled")
			return nil
		}
	}
	deleted, err := ws.Session.DeleteTask(ctx, id, true)
	if err != nil {
		return err
	}
	if viper.GetBool("json") {
		return printJSON(map[string]any{"deleted": deleted})
	}
	if deleted {
		fmt.Fprintln(out, "deleted", id)
	} else {
		fmt.Fprintln(out, "nothing to delete:", id)
	}
	return nil
}

func taskLogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "log <task-id>",
		Short: "Show a task's audit log, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				if _, _, err := visibleTask(ws, args[0]); err != nil {
					return err
				}
				entries, err := ws.Session.Audit(args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				users := ws.Session.Users()
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"When", "Who", "Action"})
				for _, a := range entries {
					tw.AppendRow(table.Row{a.Timestamp.Format(time.RFC3339), domain.DisplayName(users, a.UserID), a.Action})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func dashboardCmd() *cobra.Command {
	var pdfPath string
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Team metrics (managers only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				actor, err := resolveActor(ws)
				if err != nil {
					return err
				}
				if err := auth.RequireManager(actor); err != nil {
					return err
				}
				m := report.Dashboard(ws.Session.Tasks(), ws.Session.Users(), time.Now())
				if pdfPath != "" {
					f, err := os.Create(pdfPath)
					if err != nil {
						return err
					}
					if err := report.WritePDF(f, m); err != nil {
						f.Close()
						return err
					}
					if err := f.Close(); err != nil {
						return err
					}
					fmt.Println("wrote", pdfPath)
					return nil
				}
				if viper.GetBool("json") {
					return printJSON(m)
				}
				fmt.Printf("Total %d  Completed %d  Overdue %d  Completion %d%%\n", m.Total, m.Completed, m.Overdue, m.CompletionRate)
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Member", "Overdue", "Completed"})
				for _, s := range m.Members {
					tw.AppendRow(table.Row{s.Name, s.Overdue, s.Completed})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&pdfPath, "pdf", "", "write the report to a PDF file")
	return cmd
}

func calendarCmd() *cobra.Command {
	var month string
	var f query.TaskFilters
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Month view of visible tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			year, mon, err := report.ParseMonth(month, now)
			if err != nil {
				return err
			}
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				actor, err := resolveActor(ws)
				if err != nil {
					return err
				}
				cal := report.MonthGrid(ws.Session.Visible(actor, f), year, mon, now)
				if viper.GetBool("json") {
					return printJSON(cal)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.SetTitle(fmt.Sprintf("%s %d", mon, year))
				tw.AppendHeader(table.Row{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"})
				for _, week := range cal.Weeks {
					row := make(table.Row, 0, len(week))
					for _, d := range week {
						row = append(row, calendarCell(d))
					}
					tw.AppendRow(row)
					tw.AppendSeparator()
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "YYYY-MM (defaults to the current month)")
	cmd.Flags().StringVar(&f.SearchTerm, "search", "", "match title or description")
	cmd.Flags().StringVar(&f.Status, "status", query.All, "status filter")
	cmd.Flags().StringVar(&f.Priority, "priority", query.All, "priority filter")
	cmd.Flags().StringVar(&f.AssigneeID, "assignee", query.All, "assignee filter (managers only)")
	return cmd
}

func calendarCell(d report.Day) string {
	if !d.InMonth {
		return ""
	}
	label := d.Date[len(d.Date)-2:]
	if d.IsToday {
		label += " (today)"
	}
	lines := []string{label}
	for _, t := range d.Tasks {
		lines = append(lines, truncate(t.Title, 18))
	}
	if d.OverdueCount > 0 {
		lines = append(lines, fmt.Sprintf("%d overdue", d.OverdueCount))
	}
	return strings.Join(lines, "\n")
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				if !cmd.Flags().Changed("addr") && ws.Config.Server.Addr != "" {
					addr = ws.Config.Server.Addr
				}
				if !cmd.Flags().Changed("base-path") && ws.Config.Server.BasePath != "" {
					basePath = ws.Config.Server.BasePath
				}
				authCfg := server.AuthConfig{
					JWTSecret:       jwtSecret(),
					AllowUserHeader: ws.Config.Auth.AllowUserHeader,
					Logger:          newLogger(),
				}
				if authCfg.JWTSecret == "" {
					fmt.Println("warning: TASKFLOW_JWT_SECRET is not set; bearer tokens are disabled")
				}
				handler, err := server.New(server.Config{Session: ws.Session, BasePath: basePath, Auth: authCfg})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				fmt.Printf("Serving Taskflow API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

func newLogger() *log.Logger {
	if viper.GetBool("verbose") {
		return log.New(os.Stderr, "tf: ", log.LstdFlags)
	}
	return log.New(io.Discard, "", 0)
}

func withWorkspace(ctx context.Context, fn func(context.Context, *app.Workspace) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ws, err := app.Open(ctx, app.OpenOptions{
		Dir:    viper.GetString("workspace"),
		Logger: newLogger(),
	})
	if err != nil {
		return err
	}
	defer ws.Close()
	return fn(ctx, ws)
}

// resolveActor returns the --as user, else the session's current user.
func resolveActor(ws *app.Workspace) (domain.User, error) {
	if id := strings.TrimSpace(viper.GetString("as")); id != "" {
		return ws.Session.User(id)
	}
	return ws.Session.CurrentUser(), nil
}

func visibleTask(ws *app.Workspace, id string) (domain.Task, domain.User, error) {
	actor, err := resolveActor(ws)
	if err != nil {
		return domain.Task{}, domain.User{}, err
	}
	t, err := ws.Session.Task(id)
	if err != nil {
		return domain.Task{}, domain.User{}, err
	}
	if err := auth.RequireView(actor, t); err != nil {
		return domain.Task{}, domain.User{}, err
	}
	return t, actor, nil
}

// parseDue accepts a bare date, taken as the end of that day in UTC, or an
// RFC3339 timestamp.
func parseDue(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if d, err := time.Parse("2006-01-02", s); err == nil {
		return d.Add(24*time.Hour - time.Minute), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("due date %q: want YYYY-MM-DD or RFC3339", s)
	}
	return t.UTC(), nil
}

func confirm(in io.Reader, prompt string) (bool, error) {
	fmt.Print(prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func assigneeNames(t domain.Task, users []domain.User) string {
	names := make([]string, 0, len(t.AssigneeIDs))
	for _, id := range t.AssigneeIDs {
		names = append(names, domain.DisplayName(users, id))
	}
	return strings.Join(names, ", ")
}

func printTask(t domain.Task, users []domain.User) error {
	if viper.GetBool("json") {
		return printJSON(t)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetTitle(t.Title)
	tw.AppendRow(table.Row{"ID", t.ID})
	tw.AppendRow(table.Row{"Status", t.Status})
	tw.AppendRow(table.Row{"Priority", t.Priority})
	tw.AppendRow(table.Row{"Due", t.DueDate.Format(time.RFC3339)})
	tw.AppendRow(table.Row{"Assignees", assigneeNames(t, users)})
	if t.IsRecurring {
		tw.AppendRow(table.Row{"Repeats", t.RecurrenceInterval})
	}
	if t.Description != "" {
		tw.AppendRow(table.Row{"Description", t.Description})
	}
	for _, c := range t.Comments {
		tw.AppendRow(table.Row{"Comment", fmt.Sprintf("%s: %s", domain.DisplayName(users, c.UserID), c.Content)})
	}
	for _, a := range t.Attachments {
		tw.AppendRow(table.Row{"Attachment", fmt.Sprintf("%s  %s (%s)", a.ID, a.Name, a.Type)})
	}
	tw.Render()
	return nil
}

func printOutcome(out engine.Outcome, users []domain.User) error {
	if viper.GetBool("json") {
		return printJSON(out)
	}
	if !out.Changed {
		fmt.Println("no change")
	}
	if err := printTask(out.Task, users); err != nil {
		return err
	}
	if out.Spawned != nil {
		fmt.Printf("next occurrence %s due %s\n", out.Spawned.ID, out.Spawned.DueDate.Format(time.RFC3339))
	}
	return nil
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

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// jwtSecret reads TASKFLOW_JWT_SECRET from the environment, falling back to
// the workspace .env file.
func jwtSecret() string {
	if s := viper.GetString("jwt-secret"); s != "" {
		return s
	}
	v := viper.New()
	v.SetConfigFile(filepath.Join(viper.GetString("workspace"), envFile))
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return ""
	}
	return v.GetString("TASKFLOW_JWT_SECRET")
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func setEnvValue(path, key, value string) error {
	var lines []string
	seen := false
	f, err := os.Open(path)
	if err == nil {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, key+"=") {
				lines = append(lines, fmt.Sprintf("%s=%s", key, value))
				seen = true
			} else {
				lines = append(lines, line)
			}
		}
		if err := scanner.Err(); err != nil {
			f.Close()
			return err
		}
		f.Close()
	} else if !os.IsNotExist(err) {
		return err
	}
	if !seen {
		lines = append(lines, fmt.Sprintf("%s=%s", key, value))
	}
	content := strings.Join(lines, "\n")
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return os.WriteFile(path, []byte(content), 0o600)
}
