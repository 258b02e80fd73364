package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"go.uber.org/zap"

	"github.com/kurihiro0119/hitbatch/internal/aggregator"
	"github.com/kurihiro0119/hitbatch/internal/batch"
	"github.com/kurihiro0119/hitbatch/internal/config"
	"github.com/kurihiro0119/hitbatch/internal/cost"
	"github.com/kurihiro0119/hitbatch/internal/domain"
	"github.com/kurihiro0119/hitbatch/internal/duration"
	"github.com/kurihiro0119/hitbatch/internal/marketplace"
	"github.com/kurihiro0119/hitbatch/internal/qual"
	"github.com/kurihiro0119/hitbatch/internal/service"
	"github.com/kurihiro0119/hitbatch/internal/storage"
	storagefile "github.com/kurihiro0119/hitbatch/internal/storage/file"
	"github.com/kurihiro0119/hitbatch/internal/storage/postgres"
	"github.com/kurihiro0119/hitbatch/internal/storage/redis"
	"github.com/kurihiro0119/hitbatch/internal/storage/sqlite"
)

var (
	cfgFile    string
	production bool
	verbose    bool
	outputJSON bool

	forceInit bool
	initFlags = map[string]*string{}

	uploadAssignments int
	uploadDuration    string

	logger   = zap.NewNop()
	registry = prometheus.NewRegistry()
)

var rootCmd = &cobra.Command{
	Use:   "hitbatch",
	Short: "Crowdsourcing task uploader",
	Long: `A CLI tool for publishing and managing crowdsourcing tasks on Mechanical Turk.

Tasks are described once in settings.yaml, uploaded as one HIT or as a batch
of HITs capped at 9 assignments each, and can later be grown, extended,
expired and inspected. Commands run against the sandbox unless -p is given.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logCallMetrics()
		_ = logger.Sync()
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Describe the task",
	Long:  `Write settings.yaml, asking for every value not supplied by flag, then enter qualification formulae.`,
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Create the HITs",
	Long:  `Check the cost against the account balance, then create one HIT or a batch of HITs for the task.`,
	Args:  cobra.NoArgs,
	RunE:  runUpload,
}

var addCmd = &cobra.Command{
	Use:   "add [phrase]",
	Short: "Add assignments and/or time",
	Long: `Grow the uploaded task or extend its lifetime, e.g.

  hitbatch add 5 assignments and 3 days, 1 hour and 15 minutes

Assignments are added before time so that new HITs receive the extension.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show HIT progress",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var expireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Stop accepting new workers",
	Args:  cobra.NoArgs,
	RunE:  runExpire,
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show the account balance",
	Args:  cobra.NoArgs,
	RunE:  runBalance,
}

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show worker preview links",
	Args:  cobra.NoArgs,
	RunE:  runPreview,
}

var qualsCmd = &cobra.Command{
	Use:   "quals",
	Short: "List your custom qualification types",
	Args:  cobra.NoArgs,
	RunE:  runQuals,
}

// initQuestions are asked in order by init; each has a flag of the same name
var initQuestions = []question{
	{name: "url", message: "What is your task URL?", validate: validURL},
	{name: "title", message: "What is the title of your HIT?", validate: nonEmpty},
	{name: "description", message: "What is the description of your HIT?", validate: nonEmpty},
	{name: "keywords", message: "Provide some keywords for the HIT:", validate: nonEmpty},
	{name: "mode", message: "Do you want to run in (b)atch or (s)ingle mode?", validate: validMode},
	{name: "frame-height", message: "What frame height do you want?", validate: positiveInt},
	{name: "assignment-duration", message: "How long will a worker have to complete your HIT?\nYou can answer in seconds, minutes, hours, days, or weeks.", validate: validDuration},
	{name: "auto-approval-delay", message: "After how long should unreviewed assignments be automatically approved?\nYou can answer in seconds, minutes, hours, days, or weeks.", validate: validDuration},
	{name: "reward", message: "How much you will pay each worker (in dollars)?", validate: validReward},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().BoolVarP(&production, "production", "p", false, "run against production instead of the sandbox")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log marketplace calls")

	initCmd.Flags().BoolVar(&forceInit, "force", false, "overwrite an existing settings file")
	for _, q := range initQuestions {
		initFlags[q.name] = initCmd.Flags().String(q.name, "", q.message)
	}

	uploadCmd.Flags().IntVar(&uploadAssignments, "assignments", 0, "number of assignments")
	uploadCmd.Flags().StringVar(&uploadDuration, "duration", "", "how long the HITs stay available, e.g. \"3 days\"")

	statusCmd.Flags().BoolVar(&outputJSON, "json", false, "output in JSON format")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(expireCmd)
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(qualsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	if cfgFile != "" {
		if err := godotenv.Load(cfgFile); err != nil {
			return fmt.Errorf("failed to load %s: %w", cfgFile, err)
		}
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	built, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	logger = built
	return nil
}

func environment() domain.Environment {
	if production {
		return domain.EnvironmentProduction
	}
	return domain.EnvironmentSandbox
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func getStorage(cfg *config.Config) (storage.Repository, error) {
	switch cfg.StorageType {
	case "postgres":
		return postgres.NewPostgresStorage(cfg.PostgresURL)
	case "sqlite":
		return sqlite.NewSQLiteStorage(cfg.SQLitePath)
	case "redis":
		return redis.NewRedisStorage(cfg.RedisAddress, cfg.RedisPassword, cfg.RedisDB)
	default:
		return storagefile.NewFileStorage(cfg.StatePath), nil
	}
}

// placeholderCatalogWarning is shown when production runs on the embedded catalog
const placeholderCatalogWarning = "Warning: using the built-in premium qualification catalog, whose ids and fees are placeholders; set PREMIUM_CATALOG_PATH before using premium qualifications in production"

// catalogNotice warns when production would use the embedded placeholder catalog
func catalogNotice(env domain.Environment, cfg *config.Config) string {
	if env == domain.EnvironmentProduction && cfg.PremiumCatalogPath == "" {
		return placeholderCatalogWarning
	}
	return ""
}

func getCatalog(ctx context.Context, cfg *config.Config) (*qual.Catalog, error) {
	if cfg.PremiumCatalogPath == "" {
		return qual.DefaultCatalog()
	}
	return qual.LoadCatalog(ctx, cfg.PremiumCatalogPath)
}

// openService wires the marketplace client, storage and catalog for the selected environment
func openService(ctx context.Context, cfg *config.Config, out io.Writer) (*service.Service, func(), error) {
	env := environment()
	fmt.Fprintf(out, "Running on %s\n", env)

	store, err := getStorage(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	catalog, err := getCatalog(ctx, cfg)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("failed to load premium catalog: %w", err)
	}
	if notice := catalogNotice(env, cfg); notice != "" {
		fmt.Fprintln(out, notice)
	}
	client, err := marketplace.NewMTurkClient(ctx, env, cfg.AWSRegion, logger)
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	svc := service.New(env, marketplace.Instrument(client, marketplace.NewMetrics(registry)), store, catalog,
		service.WithPacer(batch.NewPacer(cfg.CallDelay, nil)),
		service.WithQuoteReporter(func(q service.Quote) { printQuote(out, q) }),
		service.WithLogger(logger),
	)
	return svc, func() { store.Close() }, nil
}

// printQuote shows the cost check; the service calls it before creating anything
func printQuote(out io.Writer, q service.Quote) {
	fmt.Fprintf(out, "Cost will be $%s\n", cost.Format(q.Cost))
	fmt.Fprintf(out, "Account balance is $%s\n", cost.Format(q.Balance))
}

func runInit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	exists, err := afs.New().Exists(ctx, url.Normalize(cfg.SettingsPath, file.Scheme))
	if err != nil {
		return err
	}
	if exists && !forceInit {
		return fmt.Errorf("%s already exists (use --force to overwrite)", cfg.SettingsPath)
	}

	p := newPrompter(cmd.InOrStdin(), out)
	answers := map[string]string{}
	for _, q := range initQuestions {
		answer, err := p.answer(q, *initFlags[q.name])
		if err != nil {
			return err
		}
		answers[q.name] = answer
	}

	settings, err := settingsFromAnswers(answers)
	if err != nil {
		return err
	}

	catalog, err := getCatalog(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to load premium catalog: %w", err)
	}
	formulae, err := enterQualifications(ctx, p, out, catalog.Names())
	if err != nil {
		return err
	}
	settings.Qualifications = formulae

	if err := config.SaveSettings(ctx, cfg.SettingsPath, settings); err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote %s\n", cfg.SettingsPath)
	return nil
}

// settingsFromAnswers builds settings from already validated init answers
func settingsFromAnswers(answers map[string]string) (*config.Settings, error) {
	taskURL, err := config.NormalizeURL(answers["url"])
	if err != nil {
		return nil, err
	}
	batchMode, _ := parseMode(answers["mode"])
	frameHeight, err := strconv.Atoi(answers["frame-height"])
	if err != nil {
		return nil, err
	}
	settings := &config.Settings{
		Version:            config.SettingsVersion,
		URL:                taskURL,
		Title:              answers["title"],
		Description:        answers["description"],
		Keywords:           answers["keywords"],
		Batch:              batchMode,
		FrameHeight:        frameHeight,
		AssignmentDuration: answers["assignment-duration"],
		AutoApprovalDelay:  answers["auto-approval-delay"],
		Reward:             strings.TrimPrefix(answers["reward"], "$"),
	}
	return settings, settings.Validate()
}

// enterQualifications runs the formula session until done or end of input.
// known holds the premium names, which skip the typo check.
func enterQualifications(ctx context.Context, p *prompter, out io.Writer, known []string) ([]string, error) {
	session := qual.NewSession(qual.NewCompiler(qual.WithLogger(logger), qual.WithKnownNames(known...)), out)
	for {
		fmt.Fprintln(out, session.Prompt())
		line, err := p.readLine()
		if err == io.EOF {
			return session.Formulae(), nil
		}
		if err != nil {
			return nil, err
		}
		if session.Handle(ctx, line) == qual.StepDone {
			return session.Formulae(), nil
		}
	}
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	settings, err := config.LoadSettings(cfg.SettingsPath)
	if err != nil {
		return err
	}

	p := newPrompter(cmd.InOrStdin(), out)
	assignments := uploadAssignments
	if assignments < 1 {
		answer, err := p.ask(question{name: "assignments", message: "How many assignments do you want to run?", validate: positiveInt})
		if err != nil {
			return err
		}
		assignments, _ = strconv.Atoi(answer)
	}
	phrase, err := p.answer(question{
		name:     "duration",
		message:  "How long do you want to run the HIT?\nYou can answer in seconds, minutes, hours, days, or weeks and you can always add more time using hitbatch add.",
		validate: validDuration,
	}, uploadDuration)
	if err != nil {
		return err
	}
	lifetime, err := duration.Parse(phrase)
	if err != nil {
		return err
	}

	svc, closeFn, err := openService(ctx, cfg, out)
	if err != nil {
		return err
	}
	defer closeFn()

	result, err := svc.Upload(ctx, settings, assignments, lifetime)
	if result != nil {
		if result.Set != nil {
			for _, h := range result.Set.HITs {
				fmt.Fprintf(out, "Created HIT %s with %d assignments\n", h.ID, h.MaxAssignments)
			}
		}
		for _, link := range result.PreviewURLs {
			fmt.Fprintf(out, "Preview link: %s\n", link)
		}
	}
	return err
}

func runAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	phrase := strings.Join(args, " ")
	n, hasAssignments := duration.Assignments(phrase)
	d, hasTime := duration.Find(phrase)
	if !hasAssignments && !hasTime {
		return fmt.Errorf("nothing to add in %q: expected \"N assignments\" and/or a duration", phrase)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, closeFn, err := openService(ctx, cfg, out)
	if err != nil {
		return err
	}
	defer closeFn()

	if hasAssignments {
		settings, err := config.LoadSettings(cfg.SettingsPath)
		if err != nil {
			return err
		}
		result, err := svc.AddAssignments(ctx, settings, n)
		if result != nil {
			printGrowth(out, result.Report)
		}
		if err != nil {
			return err
		}
	}

	if hasTime {
		report, err := svc.AddTime(ctx, d)
		if report != nil {
			for _, ext := range report.Applied {
				fmt.Fprintf(out, "Extended HIT %s by %s: expires %s\n", ext.HITID, duration.Format(d), ext.NewExpiration.Local().Format(time.RFC1123))
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func printGrowth(out io.Writer, report *batch.GrowthReport) {
	if report == nil {
		return
	}
	if report.TopUp != nil {
		fmt.Fprintf(out, "Added assignments to HIT %s (now %d)\n", report.TopUp.ID, report.TopUp.MaxAssignments)
	}
	for _, h := range report.Created {
		fmt.Fprintf(out, "Created HIT %s with %d assignments\n", h.ID, h.MaxAssignments)
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, closeFn, err := openService(ctx, cfg, out)
	if err != nil {
		return err
	}
	defer closeFn()

	summary, err := svc.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}

	if outputJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}
	renderSummary(out, summary)
	return nil
}

func renderSummary(out io.Writer, summary *aggregator.Summary) {
	mode := "single"
	if summary.Batch {
		mode = "batch"
	}
	fmt.Fprintf(out, "\nHITs on %s (%s mode)\n\n", summary.Environment, mode)

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"HIT ID", "Created", "Expiration", "Assignments", "Pending", "Available", "Completed"})
	for _, r := range summary.Rows {
		expiration := r.Expiration.Local().Format("2006-01-02 15:04")
		if r.Expired {
			expiration += " (expired)"
		}
		table.Append([]string{
			r.HITID,
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			expiration,
			strconv.Itoa(r.MaxAssignments),
			strconv.Itoa(r.Pending),
			strconv.Itoa(r.Available),
			strconv.Itoa(r.Completed),
		})
	}
	table.SetFooter([]string{
		"Total", "", "",
		strconv.Itoa(summary.Totals.MaxAssignments),
		strconv.Itoa(summary.Totals.Pending),
		strconv.Itoa(summary.Totals.Available),
		strconv.Itoa(summary.Totals.Completed),
	})
	table.Render()
}

func runExpire(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, closeFn, err := openService(ctx, cfg, out)
	if err != nil {
		return err
	}
	defer closeFn()

	set, err := svc.Expire(ctx)
	if set != nil {
		for _, h := range set.HITs {
			if !h.Expiration.After(time.Now()) {
				fmt.Fprintf(out, "Expired HIT %s\n", h.ID)
			}
		}
	}
	return err
}

func runBalance(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, closeFn, err := openService(ctx, cfg, out)
	if err != nil {
		return err
	}
	defer closeFn()

	balance, err := svc.Balance(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Account balance is $%s\n", cost.Format(balance))
	return nil
}

func runPreview(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, closeFn, err := openService(ctx, cfg, out)
	if err != nil {
		return err
	}
	defer closeFn()

	links, err := svc.PreviewURLs(ctx)
	if err != nil {
		return err
	}
	for _, link := range links {
		fmt.Fprintf(out, "Preview link: %s\n", link)
	}
	return nil
}

func runQuals(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, closeFn, err := openService(ctx, cfg, out)
	if err != nil {
		return err
	}
	defer closeFn()

	types, err := svc.CustomQualifications(ctx)
	if err != nil {
		return err
	}
	if len(types) == 0 {
		fmt.Fprintln(out, "No custom qualification types found")
		return nil
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Name", "Qualification Type ID"})
	for _, t := range types {
		table.Append([]string{t.Name, t.ID})
	}
	table.Render()
	return nil
}

// logCallMetrics reports the marketplace call counters at debug level
func logCallMetrics() {
	families, err := registry.Gather()
	if err != nil {
		logger.Debug("failed to gather metrics", zap.Error(err))
		return
	}
	for _, mf := range families {
		if mf.GetName() != "hitbatch_marketplace_calls_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			fields := make([]zap.Field, 0, len(m.GetLabel())+1)
			for _, lp := range m.GetLabel() {
				fields = append(fields, zap.String(lp.GetName(), lp.GetValue()))
			}
			fields = append(fields, zap.Float64("count", m.GetCounter().GetValue()))
			logger.Debug("marketplace calls", fields...)
		}
	}
}
