// Command vetclinic runs administrative tasks against the clinic database:
// schema setup and seeding, bookings, prescriptions, statistics and exports.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"vetclinic/internal/blob"
	"vetclinic/internal/config"
	"vetclinic/internal/core"
	"vetclinic/pkg/domain"
)

var (
	exitFunc   = os.Exit
	loadConfig = func() (*config.Config, error) { return config.Load() }
)

// errUsage marks flag and argument errors, which exit with status 2.
var errUsage = errors.New("usage")

type command struct {
	summary string
	run     func(ctx context.Context, a *app, args []string, out io.Writer) error
}

var commands = map[string]command{
	"migrate":        {"apply the schema and seed the doctor roster", runMigrate},
	"seed-medicines": {"install the sample medicine inventory", runSeedMedicines},
	"add-patient":    {"register a patient", runAddPatient},
	"stats":          {"print dashboard statistics [-date YYYY-MM-DD]", runStats},
	"book":           {"book or edit an appointment", runBook},
	"cancel":         {"cancel an appointment", runCancel},
	"diagnose":       {"record the diagnosis of an appointment", runDiagnose},
	"prescribe":      {"add a medication line to a diagnosis", runPrescribe},
	"export":         {"write a JSON snapshot to the configured blob store", runExport},
}

func main() {
	exitFunc(cli(os.Args[1:], os.Stdout, os.Stderr))
}

func cli(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", args[0])
		usage(stderr)
		return 2
	}
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	ctx := context.Background()
	a, err := newApp(cfg, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "startup: %v\n", err)
		return 1
	}
	runErr := cmd.run(ctx, a, args[1:], stdout)
	if err := a.close(); err != nil && runErr == nil {
		runErr = err
	}
	switch {
	case runErr == nil:
		return 0
	case errors.Is(runErr, errUsage):
		fmt.Fprintln(stderr, runErr)
		return 2
	default:
		report(stderr, runErr)
		return 1
	}
}

func usage(w io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(w, "usage: vetclinic <command> [flags]")
	for _, name := range names {
		fmt.Fprintf(w, "  %-15s %s\n", name, commands[name].summary)
	}
}

func report(w io.Writer, err error) {
	if kind := domain.KindOf(err); kind != domain.KindUnknown {
		fmt.Fprintf(w, "error [%s]: %v\n", kind, err)
		return
	}
	fmt.Fprintf(w, "error: %v\n", err)
}

// app holds the process-wide dependencies of one command run.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    domain.PersistentStore
	svc      *core.Service
	registry *prometheus.Registry
	trace    *os.File
}

func newApp(cfg *config.Config, logOut io.Writer) (*app, error) {
	logger := newLogger(cfg.Log, logOut)
	a := &app{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}

	metrics, err := core.NewPrometheusMetricsRecorder(a.registry)
	if err != nil {
		return nil, err
	}
	opts := []core.Option{
		core.WithLogger(logger),
		core.WithAuditRecorder(core.LoggerAuditRecorder{Logger: logger}),
		core.WithMetricsRecorder(metrics),
	}
	if cfg.TraceFile != "" {
		f, err := os.OpenFile(cfg.TraceFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open trace file: %w", err)
		}
		a.trace = f
		opts = append(opts, core.WithTracer(core.NewJSONTracer(f)))
	}

	store, err := core.OpenPersistentStore(cfg.Storage, core.NewDefaultRulesEngine())
	if err != nil {
		if a.trace != nil {
			_ = a.trace.Close()
		}
		return nil, fmt.Errorf("open %s store: %w", cfg.Storage.Driver, err)
	}
	a.store = store
	a.svc = core.NewService(store, opts...)
	logger.Debug("store opened", "driver", cfg.Storage.Driver)
	return a, nil
}

func newLogger(cfg config.Log, w io.Writer) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func (a *app) close() error {
	var errs []error
	if a.cfg.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(a.cfg.MetricsFile, a.registry); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	if a.trace != nil {
		errs = append(errs, a.trace.Close())
	}
	errs = append(errs, a.store.Close())
	return errors.Join(errs...)
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s: %v", errUsage, fs.Name(), err)
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%w: %s: unexpected arguments %v", errUsage, fs.Name(), fs.Args())
	}
	return nil
}

func require(fs *flag.FlagSet, names ...string) error {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	var missing []string
	for _, name := range names {
		if !set[name] {
			missing = append(missing, "-"+name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s: missing %s", errUsage, fs.Name(), strings.Join(missing, ", "))
	}
	return nil
}

func printViolations(out io.Writer, res domain.Result) {
	for _, v := range res.Violations {
		fmt.Fprintf(out, "warning: %s\n", v.Message)
	}
}

func runMigrate(ctx context.Context, a *app, args []string, out io.Writer) error {
	if err := parseFlags(flag.NewFlagSet("migrate", flag.ContinueOnError), args); err != nil {
		return err
	}
	inserted, err := a.svc.SeedDoctors(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "schema ready (%s), %d doctor(s) added\n", a.cfg.Storage.Driver, inserted)
	return nil
}

func runSeedMedicines(ctx context.Context, a *app, args []string, out io.Writer) error {
	if err := parseFlags(flag.NewFlagSet("seed-medicines", flag.ContinueOnError), args); err != nil {
		return err
	}
	inserted, err := a.svc.SeedSampleMedicines(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d medicine(s) added\n", inserted)
	return nil
}

func runAddPatient(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("add-patient", flag.ContinueOnError)
	var p domain.Patient
	fs.StringVar(&p.Name, "name", "", "pet name")
	fs.StringVar(&p.Species, "species", "", "species")
	fs.StringVar(&p.Breed, "breed", "", "breed")
	fs.IntVar(&p.Age, "age", 0, "age in years")
	fs.StringVar(&p.OwnerName, "owner", "", "owner name")
	fs.StringVar(&p.OwnerContact, "contact", "", "owner contact")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	saved, err := a.svc.SavePatient(ctx, p)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "patient %d registered\n", saved.ID)
	return nil
}

func runStats(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	date := fs.String("date", "", "day to count appointments for (default today)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	st, err := a.svc.Stats(ctx, *date)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "date:                   %s\n", st.Date)
	fmt.Fprintf(out, "active patients:        %d\n", st.ActivePatients)
	fmt.Fprintf(out, "owners:                 %d\n", st.Owners)
	fmt.Fprintf(out, "doctors:                %d\n", st.Doctors)
	fmt.Fprintf(out, "appointments on date:   %d\n", st.AppointmentsOnDate)
	fmt.Fprintf(out, "appointments total:     %d\n", st.TotalAppointments)
	fmt.Fprintf(out, "appointments completed: %d\n", st.CompletedAppointments)
	for _, m := range st.LowStock {
		fmt.Fprintf(out, "low stock:              %s (%d)\n", m.Name, m.Stock)
	}
	return nil
}

func runBook(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("book", flag.ContinueOnError)
	var draft core.AppointmentDraft
	var status, id string
	fs.Int64Var(&draft.PatientID, "patient", 0, "patient id")
	fs.Int64Var(&draft.DoctorID, "doctor", 0, "doctor id")
	fs.StringVar(&draft.Date, "date", "", "YYYY-MM-DD")
	fs.StringVar(&draft.Time, "time", "", "slot, e.g. 09:00 or 9:00 AM")
	fs.StringVar(&draft.Notes, "notes", "", "free text")
	fs.StringVar(&status, "status", "", "scheduled, completed or cancelled")
	fs.StringVar(&id, "id", "", "existing appointment to edit")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := require(fs, "patient", "doctor", "date", "time"); err != nil {
		return err
	}
	draft.Status = domain.AppointmentStatus(strings.ToLower(status))
	appt, res, err := a.svc.BookAppointment(ctx, draft, id)
	if err != nil {
		return err
	}
	printViolations(out, res)
	fmt.Fprintf(out, "appointment %s %s on %s at %s\n", appt.ID, appt.Status, appt.Date, appt.Time)
	return nil
}

func runCancel(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("cancel", flag.ContinueOnError)
	id := fs.String("id", "", "appointment id")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := require(fs, "id"); err != nil {
		return err
	}
	appt, err := a.svc.CancelAppointment(ctx, *id)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "appointment %s %s\n", appt.ID, appt.Status)
	return nil
}

func runDiagnose(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("diagnose", flag.ContinueOnError)
	id := fs.String("appointment", "", "appointment id")
	text := fs.String("text", "", "diagnosis text")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := require(fs, "appointment", "text"); err != nil {
		return err
	}
	outcome, err := a.svc.SaveDiagnosis(ctx, *id, *text, 0)
	if err != nil {
		return err
	}
	verb := "updated"
	if outcome.Created {
		verb = "created"
	}
	fmt.Fprintf(out, "diagnosis %d %s\n", outcome.Diagnosis.ID, verb)
	return nil
}

func runPrescribe(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("prescribe", flag.ContinueOnError)
	var draft core.PrescriptionDraft
	var price string
	fs.Int64Var(&draft.DiagnosisID, "diagnosis", 0, "diagnosis id")
	fs.StringVar(&draft.MedicineName, "medicine", "", "medicine name")
	fs.StringVar(&price, "price", "0", "unit price")
	fs.IntVar(&draft.Quantity, "qty", 0, "quantity")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := require(fs, "diagnosis", "medicine", "qty"); err != nil {
		return err
	}
	unit, err := decimal.NewFromString(price)
	if err != nil {
		return domain.ValidationError{Field: "unit_price", Message: "must be a number"}
	}
	draft.UnitPrice = unit
	line, res, err := a.svc.AddMedication(ctx, draft)
	if err != nil {
		return err
	}
	printViolations(out, res)
	fmt.Fprintf(out, "medication %d: %d x %s = %s\n", line.ID, line.Quantity, line.MedicineName, line.Subtotal().StringFixed(2))
	return nil
}

func runExport(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	expiry := fs.Duration("url-expiry", 15*time.Minute, "lifetime of the presigned download URL")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	store, err := blob.Open(ctx, a.cfg.Blob)
	if err != nil {
		return fmt.Errorf("open %s blob store: %w", a.cfg.Blob.Driver, err)
	}
	info, err := a.svc.ExportSnapshot(ctx, store)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "snapshot %s (%d bytes)\n", info.Key, info.Size)
	url, err := store.PresignURL(ctx, info.Key, blob.SignedURLOptions{Method: "GET", Expiry: *expiry})
	switch {
	case errors.Is(err, blob.ErrUnsupported):
	case err != nil:
		a.logger.Warn("presign failed", "key", info.Key, "error", err)
	default:
		fmt.Fprintf(out, "download: %s\n", url)
	}
	return nil
}
