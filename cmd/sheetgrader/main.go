package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/sheetgrader/internal/handler"
	appI18n "github.com/pavelanni/sheetgrader/internal/i18n"
	"github.com/pavelanni/sheetgrader/internal/model"
	"github.com/pavelanni/sheetgrader/internal/omr"
	"github.com/pavelanni/sheetgrader/internal/store"
	"github.com/pavelanni/sheetgrader/internal/workflow"
)

// cleanupInterval is how often expired sessions are purged while serving.
const cleanupInterval = 15 * time.Minute

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sheetgrader",
		Short: "Web front end for a bubble-sheet grading service",
	}

	serve := serveCmd()
	root.AddCommand(serve, examsCmd(), reportCmd(), downloadCmd(), passwdCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `sheetgrader --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addLogFlags(f *pflag.FlagSet) {
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func addBackendFlags(f *pflag.FlagSet) {
	f.StringP("backend-url", "b", omr.DefaultBaseURL, "Grading backend base URL")
	f.Duration("backend-timeout", 0, "Per-request backend timeout (0 = none)")
}

func addStoreFlags(f *pflag.FlagSet) {
	f.String("db", "sheetgrader.db", "SQLite database path, or PostgreSQL DSN with --db-driver postgres")
	f.String("db-driver", string(store.DriverSQLite), "Database driver (sqlite, postgres)")
	f.Duration("session-ttl", store.DefaultSessionTTL, "Lifetime of view and login sessions")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	addBackendFlags(f)
	addStoreFlags(f)
	f.StringP("lang", "l", "en", "Default UI language (en, pt)")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /omr)")
	f.Bool("secure-cookies", true, "Set Secure flag on cookies")
	f.String("ui-password-hash", "", "bcrypt hash of the operator password (overrides `sheetgrader passwd`)")
	f.StringSlice("cors-origins", nil, "Origins allowed to call the JSON API")
	f.Int64("max-upload-bytes", handler.DefaultMaxUploadBytes, "Maximum size of one upload request")
	addLogFlags(f)
	return cmd
}

func examsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exams",
		Short: "List the exams known to the backend",
		Args:  cobra.NoArgs,
		RunE:  runExams,
	}
	addBackendFlags(cmd.Flags())
	addLogFlags(cmd.Flags())
	return cmd
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report <exam>",
		Short: "Generate and print the report of an exam",
		Args:  cobra.ExactArgs(1),
		RunE:  runReport,
	}
	f := cmd.Flags()
	addBackendFlags(f)
	f.StringP("format", "f", "text", "Output format (text, json)")
	f.Bool("no-generate", false, "Fetch the last generated report without generating a new one")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(f)
	return cmd
}

func downloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download <exam>",
		Short: "Download the CSV report of an exam",
		Args:  cobra.ExactArgs(1),
		RunE:  runDownload,
	}
	f := cmd.Flags()
	addBackendFlags(f)
	f.StringP("dir", "d", ".", "Directory to write <exam>_report.csv into")
	addLogFlags(f)
	return cmd
}

func passwdCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Set the operator password (read from stdin)",
		Args:  cobra.NoArgs,
		RunE:  runPasswd,
	}
	addStoreFlags(cmd.Flags())
	addLogFlags(cmd.Flags())
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("SHEETGRADER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("sheetgrader")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/sheetgrader")
	v.AddConfigPath("/etc/sheetgrader")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func openStore(ctx context.Context, v *viper.Viper) (*store.Store, error) {
	driver := store.Driver(strings.ToLower(v.GetString("db-driver")))
	db, err := store.Open(ctx, driver, v.GetString("db"), store.WithTTL(v.GetDuration("session-ttl")))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func backendClient(v *viper.Viper) *omr.Client {
	return omr.New(v.GetString("backend-url"), v.GetDuration("backend-timeout"))
}

// normalizeBasePath returns "" or a path with a leading slash and no trailing slash.
func normalizeBasePath(p string) string {
	p = strings.TrimRight(strings.TrimSpace(p), "/")
	if p != "" && !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	db, err := openStore(ctx, v)
	if err != nil {
		return err
	}
	defer db.Close()

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	backend := backendClient(v)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := backend.Ping(pingCtx); err != nil {
		// The UI reports backend failures per action, so a down backend is not fatal.
		slog.Warn("grading backend not reachable", "url", backend.BaseURL(), "error", err)
	} else {
		slog.Info("grading backend OK", "url", backend.BaseURL())
	}
	cancel()

	basePath := normalizeBasePath(v.GetString("base-path"))
	cfg := model.AppConfig{
		BackendURL:     backend.BaseURL(),
		BackendTimeout: v.GetDuration("backend-timeout"),
		BasePath:       basePath,
		SecureCookies:  v.GetBool("secure-cookies"),
		SessionTTL:     db.TTL(),
		PasswordHash:   v.GetString("ui-password-hash"),
		CORSOrigins:    v.GetStringSlice("cors-origins"),
		MaxUploadBytes: v.GetInt64("max-upload-bytes"),
	}

	h, err := handler.New(db, backend, cfg)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	go cleanupLoop(ctx, db, h)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"backend_url", backend.BaseURL(),
		"lang", lang,
		"base_path", basePath,
		"db_driver", v.GetString("db-driver"),
		"login", cfg.PasswordHash != "",
	)
	return http.ListenAndServe(addr, h.Router())
}

// cleanupLoop purges expired sessions from the store and idle workflows from memory.
func cleanupLoop(ctx context.Context, db *store.Store, h *handler.Handler) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := db.CleanupExpired()
			if err != nil {
				slog.Error("failed to clean up expired sessions", "error", err)
			} else if n > 0 {
				slog.Info("cleaned up expired sessions", "count", n)
			}
			h.Registry().Sweep(now.Add(-db.TTL()))
		}
	}
}

func runExams(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	exams, err := backendClient(v).ListExams(cmd.Context())
	if err != nil {
		return fmt.Errorf("list exams: %w", err)
	}
	for _, e := range exams {
		fmt.Fprintln(cmd.OutOrStdout(), e)
	}
	return nil
}

func runReport(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	exam := strings.TrimSpace(args[0])
	ctx := cmd.Context()
	backend := backendClient(v)

	if !v.GetBool("no-generate") {
		if err := backend.GenerateReport(ctx, exam); err != nil {
			return fmt.Errorf("generate report: %w", err)
		}
	}
	report, err := backend.FetchReport(ctx, exam)
	if err != nil {
		return fmt.Errorf("fetch report: %w", err)
	}
	export := model.NewReportExport(exam, report, time.Now().UTC())

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = cmd.OutOrStdout()
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	return writeReport(w, export, v.GetString("format"))
}

// writeReport prints an exported report as indented JSON or as a score table.
func writeReport(w io.Writer, export model.ReportExport, format string) error {
	switch strings.ToLower(format) {
	case "json":
		data, err := json.MarshalIndent(export, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal JSON: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		_, err = fmt.Fprintln(w)
		return err
	case "text", "":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "FILE\tSCORE\tCORRECT")
		for _, r := range export.Results {
			fmt.Fprintf(tw, "%s\t%g\t%d/%d\n", r.Filename, r.Score, r.Correct, len(r.Answers))
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown format %q (want text or json)", format)
	}
}

func runDownload(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	exam := strings.TrimSpace(args[0])
	name, err := reportPath(v.GetString("dir"), exam)
	if err != nil {
		return err
	}

	data, err := backendClient(v).DownloadReport(cmd.Context(), exam)
	if err != nil {
		return fmt.Errorf("download report: %w", err)
	}
	if err := os.WriteFile(name, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	slog.Info("report saved", "exam", exam, "path", name, "bytes", len(data))
	return nil
}

// reportPath is where the CSV for exam is saved under dir. Names that would
// resolve outside dir are refused.
func reportPath(dir, exam string) (string, error) {
	file := workflow.ReportFilename(exam)
	if exam == "" || exam == "." || exam == ".." || strings.ContainsAny(exam, `/\`) || !filepath.IsLocal(file) {
		return "", fmt.Errorf("invalid exam name %q", exam)
	}
	return filepath.Join(dir, file), nil
}

func runPasswd(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	password, err := readPassword(cmd.InOrStdin())
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	db, err := openStore(cmd.Context(), v)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.SetOperatorPasswordHash(string(hash)); err != nil {
		return fmt.Errorf("store password: %w", err)
	}
	slog.Info("operator password updated")
	return nil
}

// readPassword returns the first line of r without its line ending.
func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("password must not be empty")
	}
	return line, nil
}
