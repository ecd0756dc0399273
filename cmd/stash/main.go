package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"stash-go/internal/api"
	"stash-go/internal/app"
	"stash-go/internal/auth"
	"stash-go/internal/config"
	"stash-go/internal/stash"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var verbose bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func readConfig() (*config.Config, app.Paths, error) {
	paths, err := app.DefaultPaths()
	if err != nil {
		return nil, app.Paths{}, fmt.Errorf("getting default paths: %w", err)
	}

	cfg, err := config.ReadFromFile(paths.ConfigPath)
	if err != nil {
		return nil, app.Paths{}, fmt.Errorf("reading config: %w", err)
	}
	return cfg, paths, nil
}

// newApp reads the config and creates a StashApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "UploadFile", "DeleteFolder").
// needKey asks for the passphrase so stored objects can be decrypted.
func newApp(operation string, needKey bool) (*app.StashApp, app.Paths, error) {
	cfg, paths, err := readConfig()
	if err != nil {
		return nil, app.Paths{}, err
	}

	opts := app.Options{Operation: operation}
	if verbose {
		opts.Stderr = os.Stderr
		opts.LogLevel = slog.LevelDebug
	}
	if needKey && cfg.Encryption.Type == "age" {
		opts.Passphrase = func() (string, error) {
			return readSecret("Passphrase: ", "STASH_PASSPHRASE")
		}
	}

	a, err := app.NewStashApp(context.Background(), cfg, opts)
	if err != nil {
		return nil, app.Paths{}, fmt.Errorf("initializing app: %w", err)
	}
	return a, paths, nil
}

// loggedInUser resolves the user of the stored CLI session.
func loggedInUser(a *app.StashApp, paths app.Paths) (*stash.User, error) {
	token, err := app.LoadSession(paths.SessionPath)
	if err != nil {
		return nil, err
	}
	user, err := a.Authorize(token)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			return nil, errors.New("session expired or invalid (run 'stash login')")
		}
		return nil, err
	}
	return user, nil
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}

func folderLabel(name string) string {
	if name == "" {
		return "(root)"
	}
	return name
}

var rootCmd = &cobra.Command{
	Use:           "stash",
	Short:         "Multi-user file store",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := app.DefaultPaths()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		instanceID := uuid.New().String()
		cfg := config.NewConfig(instanceID, paths.BaseDir)

		secret, err := app.NewSessionSecret()
		if err != nil {
			return err
		}
		cfg.Server.SessionSecret = secret

		if err := config.Init(paths.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", paths.ConfigPath)
		fmt.Printf("Instance ID: %s\n", instanceID)
		fmt.Printf("Base Dir:    %s\n", paths.BaseDir)
		fmt.Println("Run 'stash db migrate' to create the database.")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, paths, err := readConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", paths.ConfigPath)
		fmt.Printf("Instance ID: %s\n", cfg.InstanceID)
		fmt.Printf("Base Dir:    %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:     %s\n", cfg.LogDir)
		fmt.Printf("Database:    %s %s\n", cfg.Database.Type, cfg.Database.DataDir)
		switch cfg.Storage.Type {
		case "s3":
			fmt.Printf("Storage:     s3://%s/%s\n", cfg.Storage.S3Bucket, cfg.Storage.S3Prefix)
		default:
			fmt.Printf("Storage:     %s %s\n", cfg.Storage.Type, cfg.Storage.UploadRoot)
		}
		fmt.Printf("Encryption:  %s\n", cfg.Encryption.Type)
		fmt.Printf("Max Upload:  %d bytes\n", cfg.Uploads.MaxSize)
		if len(cfg.Uploads.AllowedExtensions) > 0 {
			fmt.Printf("Extensions:  %v\n", cfg.Uploads.AllowedExtensions)
		}
		fmt.Printf("Listen:      %s\n", cfg.Server.ListenAddr)
		fmt.Printf("Session TTL: %s\n", cfg.Server.SessionTTL)
		return nil
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the metadata database",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := readConfig()
		if err != nil {
			return err
		}

		status, err := app.MigrateDatabase(cfg)
		if err != nil {
			return err
		}

		fmt.Printf("Database at schema version %d (latest %d)\n", status.Version, status.Latest)
		return nil
	},
}

var dbBackupCmd = &cobra.Command{
	Use:   "backup DEST",
	Short: "Write a snapshot of the metadata database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := newApp("BackupDatabase", false)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.BackupDatabase(args[0]); err != nil {
			return err
		}
		fmt.Printf("Database written to %s\n", args[0])
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the key pair for encryption at rest",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := readConfig()
		if err != nil {
			return err
		}

		passphrase, err := readNewSecret("New passphrase: ", "STASH_PASSPHRASE")
		if err != nil {
			return err
		}

		if err := app.InitKeys(cfg, passphrase); err != nil {
			return fmt.Errorf("initializing keys: %w", err)
		}
		fmt.Printf("Public key:  %s\n", cfg.Encryption.PublicKeyPath)
		fmt.Printf("Private key: %s\n", cfg.Encryption.PrivateKeyPath)
		return nil
	},
}

// account commands
var registerCmd = &cobra.Command{
	Use:   "register USERNAME",
	Short: "Create an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := newApp("Register", false)
		if err != nil {
			return err
		}
		defer a.Close()

		password, err := readNewSecret("Password: ", "STASH_PASSWORD")
		if err != nil {
			return err
		}

		user, err := a.Register(args[0], password)
		if err != nil {
			return fmt.Errorf("registering: %w", err)
		}
		fmt.Printf("Registered %s (id %d)\n", user.Username, user.ID)
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login USERNAME",
	Short: "Log in and remember the session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, paths, err := newApp("Login", false)
		if err != nil {
			return err
		}
		defer a.Close()

		password, err := readSecret("Password: ", "STASH_PASSWORD")
		if err != nil {
			return err
		}

		token, session, err := a.Login(args[0], password)
		if err != nil {
			return err
		}
		if err := app.SaveSession(paths.SessionPath, token); err != nil {
			return err
		}
		fmt.Printf("Logged in as %s until %s\n", session.Username, session.ExpiresAt.Local().Format("2006-01-02 15:04"))
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := app.DefaultPaths()
		if err != nil {
			return fmt.Errorf("getting defaults: %w", err)
		}
		if err := app.ClearSession(paths.SessionPath); err != nil {
			return err
		}
		fmt.Println("Logged out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, paths, err := newApp("WhoAmI", false)
		if err != nil {
			return err
		}
		defer a.Close()

		user, err := loggedInUser(a, paths)
		if err != nil {
			return err
		}
		fmt.Printf("%s (id %d, since %s)\n", user.Username, user.ID, user.CreatedAt.Local().Format("2006-01-02"))
		return nil
	},
}

// file commands
var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List folders and the files of one folder",
	RunE: func(cmd *cobra.Command, args []string) error {
		folder, _ := cmd.Flags().GetString("folder")

		a, paths, err := newApp("Dashboard", false)
		if err != nil {
			return err
		}
		defer a.Close()

		user, err := loggedInUser(a, paths)
		if err != nil {
			return err
		}

		d, err := a.Dashboard(user, folder)
		if err != nil {
			return err
		}

		fmt.Println("Folders:")
		if len(d.Folders) == 0 {
			fmt.Println("  (none)")
		}
		for _, f := range d.Folders {
			fmt.Printf("  #%-6d %s\n", f.ID, f.Name)
		}

		fmt.Printf("\nFiles in %s:\n", folderLabel(d.Folder))
		if len(d.Files) == 0 {
			fmt.Println("  (none)")
		}
		for _, f := range d.Files {
			fmt.Printf("  #%-6d %10d  %s  %s\n", f.ID, f.Size, f.CreatedAt.Local().Format("2006-01-02 15:04"), f.Filename)
		}
		return nil
	},
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir NAME",
	Short: "Create a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, paths, err := newApp("CreateFolder", false)
		if err != nil {
			return err
		}
		defer a.Close()

		user, err := loggedInUser(a, paths)
		if err != nil {
			return err
		}

		folder, err := a.CreateFolder(user, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Created folder %s (id %d)\n", folder.Name, folder.ID)
		return nil
	},
}

var rmdirCmd = &cobra.Command{
	Use:   "rmdir ID",
	Short: "Delete a folder and every file in it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		a, paths, err := newApp("DeleteFolder", false)
		if err != nil {
			return err
		}
		defer a.Close()

		user, err := loggedInUser(a, paths)
		if err != nil {
			return err
		}

		if err := a.DeleteFolder(user, id); err != nil {
			return err
		}
		fmt.Printf("Deleted folder #%d\n", id)
		return nil
	},
}

var putCmd = &cobra.Command{
	Use:   "put PATH",
	Short: "Upload a file, or the files directly inside a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		folder, _ := cmd.Flags().GetString("folder")

		a, paths, err := newApp("UploadFile", false)
		if err != nil {
			return err
		}
		defer a.Close()

		user, err := loggedInUser(a, paths)
		if err != nil {
			return err
		}

		files, err := a.UploadPath(user, folder, args[0])
		for _, f := range files {
			fmt.Printf("Uploaded #%d %s (%d bytes) to %s\n", f.ID, f.Filename, f.Size, folderLabel(f.Folder))
		}
		if err != nil {
			return err
		}
		if len(files) == 0 {
			fmt.Println("No files to upload.")
		}
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get ID",
	Short: "Download a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		force, _ := cmd.Flags().GetBool("force")

		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		a, paths, err := newApp("DownloadFile", true)
		if err != nil {
			return err
		}
		defer a.Close()

		user, err := loggedInUser(a, paths)
		if err != nil {
			return err
		}

		file, dest, err := a.Download(user, id, output, force)
		if err != nil {
			return err
		}
		fmt.Printf("Wrote %s (%d bytes) to %s\n", file.Filename, file.Size, dest)
		return nil
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Delete a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		a, paths, err := newApp("DeleteFile", false)
		if err != nil {
			return err
		}
		defer a.Close()

		user, err := loggedInUser(a, paths)
		if err != nil {
			return err
		}

		if err := a.DeleteFile(user, id); err != nil {
			return err
		}
		fmt.Printf("Deleted file #%d\n", id)
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View the audit history of mutating commands",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, _, err := newApp("GetHistory", false)
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.GetHistory(limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt.Valid {
				d := op.FinishedAt.Time.Sub(op.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-15s  %s  %-10s  %-8s  %s\n",
				op.ID,
				op.Operation,
				op.StartedAt.Local().Format("2006-01-02 15:04:05"),
				op.Status,
				duration,
				op.Parameters,
			)
		}
		return nil
	},
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, _, err := readConfig()
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("listen"); addr != "" {
			cfg.Server.ListenAddr = addr
		}

		opts := app.Options{Operation: "Serve", Stderr: os.Stderr}
		if verbose {
			opts.LogLevel = slog.LevelDebug
		}
		if cfg.Encryption.Type == "age" {
			opts.Passphrase = func() (string, error) {
				return readSecret("Passphrase: ", "STASH_PASSPHRASE")
			}
		}

		a, err := app.NewStashApp(ctx, cfg, opts)
		if err != nil {
			return fmt.Errorf("initializing app: %w", err)
		}
		defer a.Close()

		created, err := a.Bootstrap()
		if err != nil {
			return fmt.Errorf("bootstrapping admin account: %w", err)
		}
		if created {
			a.Logger().Info("created initial admin account", "username", cfg.Bootstrap.AdminUsername)
		}

		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		server := api.NewServer(a.Service(), a.Tokens(), api.Options{
			Server:        cfg.Server,
			MaxUploadSize: cfg.Uploads.MaxSize,
			Logger:        a.Logger(),
			Registry:      registry,
		})
		return server.ListenAndServe(ctx)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// db subcommands
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbBackupCmd)

	// keys subcommands
	keysCmd.AddCommand(keysInitCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(lsCmd)
	lsCmd.Flags().StringP("folder", "f", "", "Folder to list (default: root bucket)")
	rootCmd.AddCommand(mkdirCmd)
	rootCmd.AddCommand(rmdirCmd)
	rootCmd.AddCommand(putCmd)
	putCmd.Flags().StringP("folder", "f", "", "Destination folder (default: root bucket)")
	rootCmd.AddCommand(getCmd)
	getCmd.Flags().StringP("output", "o", "", "Output path (default: stored filename in the current directory)")
	getCmd.Flags().Bool("force", false, "Overwrite an existing output file")
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", "", "Override the configured listen address")
}
