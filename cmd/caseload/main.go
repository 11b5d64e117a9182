package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"caseload/internal/config"
	"caseload/internal/dates"
	"caseload/internal/ics"
	appLog "caseload/internal/log"
	"caseload/internal/notes"
	"caseload/internal/status"
	"caseload/internal/store"
	"caseload/internal/web"
)

type flagConfig struct {
	configPath    string
	listen        string
	note          string
	date          string
	school        string
	specificTimes bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if err := appLog.Configure(conf.Log.Mode, appLog.ParseLevel(conf.Log.Level)); err != nil {
		appLog.Error("failed to configure logger", err)
	}
	defer appLog.Sync()

	loc, err := conf.Location()
	if err != nil {
		appLog.Error("invalid timezone", err, "timezone", conf.Timezone)
		os.Exit(1)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", loc.String(),
		"database", conf.Database.Driver,
		"specific_times", conf.Notes.UseSpecificTimes,
		"horizon_days", conf.Feed.HorizonDays,
		"closure_calendars", len(conf.Closures.Calendars),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := store.Open(store.Options{
		Driver:   conf.Database.Driver,
		DSN:      conf.Database.DSN,
		Location: loc,
		Debug:    conf.Database.Debug,
	})
	if err != nil {
		appLog.Error("failed to open store", err, "driver", conf.Database.Driver)
		os.Exit(1)
	}
	defer st.Close()

	noteSvc := notes.NewService(st, notes.Options{UseSpecificTimes: conf.Notes.UseSpecificTimes})
	if len(conf.Closures.Calendars) > 0 {
		sources := make([]ics.Source, 0, len(conf.Closures.Calendars))
		for _, c := range conf.Closures.Calendars {
			sources = append(sources, ics.Source{ID: c.ID, URL: c.URL})
		}
		maxAge := time.Duration(conf.Closures.RefreshMinutes) * time.Minute
		noteSvc.WithClosures(ics.NewClosureCalendars(ics.NewFetcher(conf.Closures.CacheDir, nil), sources, loc, maxAge))
	}

	if flags.note != "" {
		if err := printNote(ctx, noteSvc, flags, loc); err != nil {
			appLog.Error("note generation failed", err, "mode", flags.note, "date", flags.date)
			os.Exit(1)
		}
		return
	}

	srv := web.NewServer(conf, web.Deps{
		Notes:  noteSvc,
		Status: status.NewService(st),
		DB:     st,
	})
	if err := srv.ListenAndServe(ctx); err != nil {
		appLog.Error("HTTP server failed", err, "listen", conf.Listen)
		os.Exit(1)
	}
	appLog.Info("caseload exiting")
}

// printNote writes one note to stdout for the given flags.
func printNote(ctx context.Context, svc *notes.Service, flags flagConfig, loc *time.Location) error {
	day := dates.StartOfDay(time.Now().In(loc))
	if flags.date != "" {
		d, err := dates.ParseLocalDateIn(flags.date, loc)
		if err != nil {
			return err
		}
		day = d
	}

	opts := svc.Defaults()
	opts.UseSpecificTimes = opts.UseSpecificTimes || flags.specificTimes

	var (
		note string
		err  error
	)
	switch notes.Mode(flags.note) {
	case notes.ModeRetrospective:
		note, err = svc.Retrospective(ctx, flags.school, day, opts)
	case notes.ModeProspective:
		note, err = svc.Prospective(ctx, flags.school, day, opts)
	default:
		return fmt.Errorf("unknown note mode %q", flags.note)
	}
	if err != nil {
		return err
	}
	fmt.Println(note)
	return nil
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./caseload.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.note, "note", "", "Print one note and exit: retrospective or prospective")
	flag.StringVar(&cfg.date, "date", "", "Note date as YYYY-MM-DD (default today)")
	flag.StringVar(&cfg.school, "school", "", "School id for -note")
	flag.BoolVar(&cfg.specificTimes, "specific-times", false, "Render session times in -note output")

	flag.Parse()

	return cfg
}
