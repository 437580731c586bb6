package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	_ "net/http/pprof"

	"github.com/IliaW/defacement-crawler/config"
	"github.com/IliaW/defacement-crawler/internal/aws_s3"
	"github.com/IliaW/defacement-crawler/internal/broker"
	"github.com/IliaW/defacement-crawler/internal/compare"
	"github.com/IliaW/defacement-crawler/internal/fetch"
	"github.com/IliaW/defacement-crawler/internal/filter"
	"github.com/IliaW/defacement-crawler/internal/frontier"
	"github.com/IliaW/defacement-crawler/internal/model"
	"github.com/IliaW/defacement-crawler/internal/normalizer"
	"github.com/IliaW/defacement-crawler/internal/persistence"
	"github.com/IliaW/defacement-crawler/internal/render"
	"github.com/IliaW/defacement-crawler/internal/storage"
	"github.com/IliaW/defacement-crawler/internal/telemetry"
	"github.com/IliaW/defacement-crawler/internal/worker"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/lmittmann/tint"
)

var (
	cfg           *config.Config
	db            *sql.DB
	httpTransport *http.Transport
	siteRepo      persistence.SiteStorage
	jobRepo       persistence.JobStorage
	pageRepo      persistence.PageStorage
	baselineRepo  persistence.BaselineStorage
	selectionRepo persistence.SelectionStorage
	observedRepo  persistence.ObservedStorage
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg = config.MustLoad()
	setupLogger()
	crawlMode, err := model.ParseCrawlMode(cfg.WorkerSettings.CrawlMode)
	if err != nil {
		slog.Error("invalid crawl mode.", slog.String("err", err.Error()))
		os.Exit(1)
	}
	metrics := telemetry.SetupMetrics(context.Background(), cfg)
	defer metrics.Close()
	db = setupDatabase()
	defer closeDatabase()

	var archive aws_s3.BucketClient
	if cfg.S3Settings.Enabled {
		archive = aws_s3.NewS3BucketClient(cfg)
	}
	httpTransport = getHttpTransport()
	fetcher := fetch.NewCollyFetcher(cfg, httpTransport)
	gate := render.NewGate(cfg.RenderSettings.MinHtmlBytes, cfg.RenderSettings.MinInteractiveElements)
	renderCache := render.NewCache(cfg.RenderSettings.CacheTtl)
	renderWorker := render.NewWorker(cfg.RenderSettings, cfg.WorkerSettings.UserAgent)
	renderCtx, stopRender := context.WithCancel(context.Background())
	defer stopRender()
	go renderWorker.Run(renderCtx)

	siteRepo = persistence.NewSiteRepository(db)
	jobRepo = persistence.NewJobRepository(db)
	pageRepo = persistence.NewPageRepository(db)
	baselineRepo = persistence.NewBaselineRepository(db)
	selectionRepo = persistence.NewSelectionRepository(db)
	observedRepo = persistence.NewObservedRepository(db)

	var alertChan chan *model.DefacementAlert
	kafkaWg := &sync.WaitGroup{}
	if cfg.KafkaSettings.Enabled {
		alertChan = make(chan *model.DefacementAlert, parallelWorkers()*2)
		kafkaWg.Add(1)
		alertProducer := broker.NewKafkaAlertProducer(alertChan, metrics.AppMetrics,
			cfg.KafkaSettings.Producer, kafkaWg)
		go alertProducer.Run()
	}

	go healthCheckHandler()
	slog.Info("starting application on port "+cfg.Port, slog.String("env", cfg.Env),
		slog.String("crawl mode", crawlMode.String()))

	blockReport := filter.NewBlockReport()
	sites, err := siteRepo.EnabledSites()
	if err != nil {
		slog.Error("failed to load enabled sites.", slog.String("err", err.Error()))
		os.Exit(1)
	}
	if len(sites) == 0 {
		slog.Info("no enabled sites found.")
	}
	slog.Info("loaded enabled sites.", slog.Int("count", len(sites)))

	for _, site := range sites {
		if ctx.Err() != nil {
			slog.Info("shutdown requested. skipping remaining sites.")
			break
		}
		runSiteJob(ctx, site, crawlMode, fetcher, gate, renderWorker, renderCache,
			blockReport, archive, alertChan, metrics.AppMetrics)
	}

	if alertChan != nil {
		close(alertChan)
		slog.Info("close alertChan.")
		kafkaWg.Wait()
	}
	logBlockReport(blockReport)
	slog.Info("all site crawls finished.")
}

// runSiteJob crawls one site to completion: seed the frontier, start the
// worker pool, wait until the frontier drains, record the job outcome. A
// failure here fails only this site's job; the batch continues.
func runSiteJob(ctx context.Context, site model.Site, crawlMode model.CrawlMode,
	fetcher fetch.Fetcher, gate *render.Gate, renderer worker.Renderer,
	renderCache worker.RenderCache, blockReport *filter.BlockReport,
	archive aws_s3.BucketClient, alertChan chan *model.DefacementAlert,
	appMetrics *telemetry.AppMetrics) {

	seed := resolveSeedURL(site.URL)
	startURL := normalizer.NormalizeURL(seed)
	jobID := uuid.New().String()
	slog.Info("starting crawl job.", slog.String("job_id", jobID),
		slog.Int64("custid", site.CustID), slog.Int64("siteid", site.SiteID),
		slog.String("seed_url", startURL))

	err := jobRepo.InsertJob(&model.CrawlJob{
		JobID:    jobID,
		CustID:   site.CustID,
		SiteID:   site.SiteID,
		StartURL: startURL,
	})
	if err != nil {
		slog.Error("failed to insert crawl job. skipping site.", slog.String("job_id", jobID),
			slog.String("err", err.Error()))
		return
	}

	front := frontier.New(cfg.CrawlerSettings.DepthLimit, cfg.CrawlerSettings.MaxPages)
	front.Enqueue(startURL, "", 0)

	snapshots := storage.NewSnapshotStore(cfg.StorageSettings.BaselineRoot, site.CustID,
		baselineRepo, selectionRepo, archive)
	var engine *compare.Engine
	if crawlMode == model.Compare {
		engine = compare.NewEngine(site.CustID, jobID, selectionRepo, baselineRepo, observedRepo,
			archive, alertChan, cfg.StorageSettings.BaselineRoot, cfg.StorageSettings.DiffRoot)
	}

	threadNum := parallelWorkers()
	workerWg := &sync.WaitGroup{}
	workers := make([]*worker.CrawlWorker, 0, threadNum)
	startTime := time.Now()
	for i := 0; i < threadNum; i++ {
		w := &worker.CrawlWorker{
			Name:        fmt.Sprintf("worker-%d", i),
			Frontier:    front,
			Fetcher:     fetcher,
			Gate:        gate,
			Renderer:    renderer,
			RenderCache: renderCache,
			BlockReport: blockReport,
			Pages:       pageRepo,
			Snapshots:   snapshots,
			Engine:      engine,
			Cfg:         cfg,
			Metrics:     appMetrics,
			CrawlMode:   crawlMode,
			JobID:       jobID,
			CustID:      site.CustID,
			SiteID:      site.SiteID,
			SeedURL:     startURL,
			Wg:          workerWg,
		}
		workerWg.Add(1)
		workers = append(workers, w)
		go w.Run()
	}
	slog.Info("started workers.", slog.Int("count", threadNum))

	drained := make(chan struct{})
	go func() {
		front.WaitUntilDrained()
		close(drained)
	}()

	aborted := false
	select {
	case <-drained:
	case <-ctx.Done():
		aborted = true
		slog.Warn("shutdown requested before frontier drained.", slog.String("job_id", jobID))
	}

	for _, w := range workers {
		w.Stop()
	}
	workerWg.Wait()

	stats := front.GetStats()
	if aborted {
		if err := jobRepo.FailJob(jobID, "shutdown requested before crawl completed"); err != nil {
			slog.Error("failed to mark crawl job as failed.", slog.String("err", err.Error()))
		}
		return
	}
	if err := jobRepo.CompleteJob(jobID, stats.VisitedCount); err != nil {
		slog.Error("failed to complete crawl job.", slog.String("err", err.Error()))
	}
	slog.Info("crawl completed.", slog.String("job_id", jobID),
		slog.Int64("siteid", site.SiteID), slog.Int("urls_visited", stats.VisitedCount),
		slog.Duration("duration", time.Since(startTime)), slog.Int("workers", threadNum))
}

// resolveSeedURL picks the root URL variant (with or without a trailing
// slash) that actually responds, locking in the final redirected URL. Falls
// back to the https-prefixed raw value when nothing answers.
func resolveSeedURL(rawURL string) string {
	raw := strings.TrimSpace(rawURL)

	var candidates []string
	if strings.HasSuffix(raw, "/") {
		candidates = []string{strings.TrimRight(raw, "/"), raw}
	} else {
		candidates = []string{raw, raw + "/"}
	}

	client := &http.Client{
		Timeout:   cfg.CrawlerSettings.SeedResolveTimeout,
		Transport: httpTransport,
	}
	for _, u := range candidates {
		req, err := http.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			continue
		}
		req.Header.Set("User-Agent", cfg.WorkerSettings.UserAgent)
		resp, err := client.Do(req)
		if err != nil {
			continue
		}
		resp.Body.Close()
		if resp.StatusCode < 400 {
			return resp.Request.URL.String()
		}
	}

	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	return raw
}

func logBlockReport(report *filter.BlockReport) {
	snapshot := report.Snapshot()
	if len(snapshot) == 0 {
		return
	}
	for reason, urls := range snapshot {
		slog.Info("blocked url report.", slog.String("reason", reason), slog.Int("count", len(urls)))
	}
}

func setupLogger() *slog.Logger {
	envLogLevel := strings.ToLower(cfg.LogLevel)
	var slogLevel slog.Level
	err := slogLevel.UnmarshalText([]byte(envLogLevel))
	if err != nil {
		log.Printf("encountenred log level: '%s'. The package does not support custom log levels", envLogLevel)
		slogLevel = slog.LevelDebug
	}
	log.Printf("slog level overwritten to '%v'", slogLevel)
	slog.SetLogLoggerLevel(slogLevel)

	replaceAttrs := func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == slog.SourceKey {
			source := a.Value.Any().(*slog.Source)
			source.File = filepath.Base(source.File)
		}
		return a
	}

	var logger *slog.Logger
	if strings.ToLower(cfg.LogType) == "json" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			AddSource:   true,
			Level:       slogLevel,
			ReplaceAttr: replaceAttrs}))
	} else {
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			AddSource:   true,
			Level:       slogLevel,
			ReplaceAttr: replaceAttrs,
			NoColor: func() bool {
				if cfg.Env == "local" {
					return false
				}
				return true
			}()}))
	}

	slog.SetDefault(logger)
	logger.Debug("debug messages are enabled.")

	return logger
}

func setupDatabase() *sql.DB {
	slog.Info("connecting to the database...")
	connStr := fmt.Sprintf("user=%s password=%s host=%s port=%s dbname=%s sslmode=disable",
		cfg.DbSettings.User,
		cfg.DbSettings.Password,
		cfg.DbSettings.Host,
		cfg.DbSettings.Port,
		cfg.DbSettings.Name,
	)
	database, err := sql.Open("postgres", connStr)
	if err != nil {
		slog.Error("failed to establish database connection.", slog.String("err", err.Error()))
		os.Exit(1)
	}
	database.SetConnMaxLifetime(cfg.DbSettings.ConnMaxLifetime)
	database.SetMaxOpenConns(cfg.DbSettings.MaxOpenConns)
	database.SetMaxIdleConns(cfg.DbSettings.MaxIdleConns)

	maxRetry := 6
	for i := 1; i <= maxRetry; i++ {
		slog.Info("ping the database.", slog.String("attempt", fmt.Sprintf("%d/%d", i, maxRetry)))
		pingErr := database.Ping()
		if pingErr != nil {
			slog.Error("not responding.", slog.String("err", pingErr.Error()))
			if i == maxRetry {
				slog.Error("failed to establish database connection.")
				os.Exit(1)
			}
			slog.Info(fmt.Sprintf("wait %d seconds", 5*i))
			time.Sleep(time.Duration(5*i) * time.Second)
		} else {
			break
		}
	}
	slog.Info("connected to the database!")

	return database
}

func closeDatabase() {
	slog.Info("closing database connection.")
	err := db.Close()
	if err != nil {
		slog.Error("failed to close database connection.", slog.String("err", err.Error()))
	}
}

// Set -1 to use all available CPUs
func parallelWorkers() int {
	customNumCPU := cfg.WorkerSettings.WorkersNum
	if customNumCPU == -1 {
		return runtime.NumCPU()
	}
	if customNumCPU <= 0 {
		slog.Error("workers number is 0 or less than -1")
		os.Exit(1)
	}

	return customNumCPU
}

func healthCheckHandler() {
	http.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pong"))
	})
	if err := http.ListenAndServe(":"+cfg.Port, nil); err != nil {
		slog.Error("http server error", slog.String("err", err.Error()))
	}
}

func getHttpTransport() *http.Transport {
	return &http.Transport{
		MaxIdleConns:        cfg.HttpClientSettings.MaxIdleConnections,
		MaxIdleConnsPerHost: cfg.HttpClientSettings.MaxIdleConnectionsPerHost,
		MaxConnsPerHost:     cfg.HttpClientSettings.MaxConnectionsPerHost,
		IdleConnTimeout:     cfg.HttpClientSettings.IdleConnectionTimeout,
		TLSHandshakeTimeout: cfg.HttpClientSettings.TlsHandshakeTimeout,
		DialContext: (&net.Dialer{
			Timeout:   cfg.HttpClientSettings.DialTimeout,
			KeepAlive: cfg.HttpClientSettings.DialKeepAlive,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.HttpClientSettings.TlsInsecureSkipVerify,
		},
	}
}
