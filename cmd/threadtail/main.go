package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"taskdeck/api/internal/config"
	"taskdeck/api/internal/directory"
	"taskdeck/api/internal/export"
	"taskdeck/api/internal/feed"
	"taskdeck/api/internal/logging"
	"taskdeck/api/internal/realtime"
	"taskdeck/api/internal/receipt"
	"taskdeck/api/internal/search"
	"taskdeck/api/internal/store"
	"taskdeck/api/internal/thread"
)

func main() {
	var (
		threadID     = flag.String("thread", "", "thread id to tail or export")
		userID       = flag.String("user", "", "acting user id")
		searchQuery  = flag.String("search", "", "run a one-shot comment search and exit")
		exportFormat = flag.String("export", "", "export the thread transcript (pdf or docx) and exit")
		outPath      = flag.String("out", "", "output path for -export (defaults to the derived filename)")
		showFeed     = flag.Bool("feed", false, "tail the cross-thread conversation feed instead of one thread")
		reindex      = flag.Bool("reindex", false, "rebuild the search index from the database and exit")
	)
	flag.Parse()

	cfg := config.Load()
	log := logging.New(cfg.LogLevel)
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatal().Err(err).Msg("migrations failed")
	}

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, log)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, pgfts, log)

	backend := store.NewPostgresStore(db, cfg.EditWindow, cfg.EditWindowInclusive)
	backend.SetIndexer(searchService)

	if *reindex {
		records, err := pgfts.LoadAllRecords(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("loading comments for reindex failed")
		}
		searchService.ReindexAll(records)
		log.Info().Int("comments", len(records)).Msg("reindex submitted")
		return
	}

	if *searchQuery != "" {
		resp := searchService.Search(search.Query{Text: *searchQuery, ThreadID: *threadID, Limit: 20})
		for _, r := range resp.Results {
			fmt.Printf("%s  [%s]  %s\n", r.ID, r.ThreadID, r.Snippet)
		}
		fmt.Printf("%d results\n", resp.Total)
		return
	}

	if *exportFormat != "" {
		if *threadID == "" {
			log.Fatal().Msg("-export requires -thread")
		}
		runExport(ctx, backend, *threadID, *userID, *exportFormat, *outPath, log)
		return
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid redis url")
	}
	client := redis.NewClient(opts)
	defer client.Close()
	backend.SetPublisher(realtime.NewPublisher(client, log))

	var avatars *directory.AvatarStore
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		avatars, err = directory.NewAvatarStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Warn().Err(err).Msg("avatar store unavailable, falling back to names only")
			avatars = nil
		}
	}
	dir := directory.New(backend, avatars, log)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if *showFeed {
		if *userID == "" {
			log.Fatal().Msg("-feed requires -user")
		}
		runFeed(runCtx, client, backend, *userID, log)
		return
	}

	if *threadID == "" || *userID == "" {
		log.Fatal().Msg("tailing requires -thread and -user")
	}
	policy := thread.EditWindowPolicy{Window: cfg.EditWindow, Inclusive: cfg.EditWindowInclusive}
	runTail(runCtx, client, backend, dir, policy, *threadID, *userID, log)
}

// runTail keeps one thread's comments live on stdout. Lines typed on stdin
// are posted as new comments.
func runTail(ctx context.Context, client *redis.Client, backend *store.PostgresStore, dir *directory.Service, policy thread.EditWindowPolicy, threadID, userID string, log zerolog.Logger) {
	viewer := thread.Viewer{ID: userID}
	if display, err := dir.Display(ctx, userID); err == nil {
		viewer.Display = display
	}

	ts := thread.NewStore(threadID, viewer, backend, policy, log)
	channel := realtime.Subscribe(ctx, client, threadID, log)
	defer channel.Close()

	bridge := thread.NewBridge(ts, dir, channel, log)
	go bridge.Run(ctx)

	tracker := receipt.NewTracker(backend)

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			content := strings.TrimSpace(scanner.Text())
			if content == "" {
				continue
			}
			_, ack := ts.Create(ctx, content)
			go func() {
				if err := <-ack; err != nil {
					log.Error().Err(err).Msg("comment rejected")
				}
			}()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ts.Changes():
			comments := ts.Comments()
			printThread(comments)

			entries := make([]receipt.Entry, 0, len(comments))
			for _, c := range comments {
				entries = append(entries, receipt.Entry{ID: c.ID, AuthorID: c.AuthorID, Pending: c.Pending})
			}
			if err := tracker.MarkViewed(ctx, userID, entries); err != nil {
				log.Warn().Err(err).Msg("read marker update failed")
			}
		}
	}
}

func printThread(comments []thread.Comment) {
	fmt.Printf("\n--- %d comments ---\n", len(comments))
	for _, c := range comments {
		name := c.Author.Name
		if name == "" {
			name = c.AuthorID
		}
		marker := ""
		if c.Pending {
			marker = " (sending)"
		} else if c.UpdatedAt != nil {
			marker = " (edited)"
		}
		fmt.Printf("[%s] %s%s: %s\n", c.CreatedAt.Format(time.Stamp), name, marker, c.Content)
	}
}

// runFeed tails the cross-thread conversation list for one user.
func runFeed(ctx context.Context, client *redis.Client, backend *store.PostgresStore, userID string, log zerolog.Logger) {
	channel := realtime.SubscribeAll(ctx, client, log)
	defer channel.Close()

	agg := feed.NewAggregator(userID, backend, log)
	go agg.Run(ctx, channel)

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := agg.RefreshError(); err != nil {
				log.Warn().Err(err).Msg("feed refresh failed")
				continue
			}
			summaries := agg.Summaries()
			fmt.Printf("\n--- %d conversations ---\n", len(summaries))
			for _, s := range summaries {
				fmt.Printf("%-30s  unread %d/%d  last %s\n",
					s.Title, s.UnreadCount, s.TotalComments, s.LastMessage.CreatedAt.Format(time.Stamp))
			}
		}
	}
}

func runExport(ctx context.Context, backend *store.PostgresStore, threadID, userID, format, outPath string, log zerolog.Logger) {
	var task store.Task
	if userID != "" {
		tasks, err := backend.ListUserTasks(ctx, userID)
		if err != nil {
			log.Warn().Err(err).Msg("task lookup failed, exporting without title")
		}
		for _, t := range tasks {
			if t.ID == threadID {
				task = t
				break
			}
		}
	}

	svc := export.NewService(backend)
	result, err := svc.Export(ctx, export.Request{ThreadID: threadID, Format: export.Format(format)}, task)
	if err != nil {
		log.Fatal().Err(err).Msg("export failed")
	}

	path := outPath
	if path == "" {
		path = result.Filename
	}
	if err := os.WriteFile(path, result.Data, 0o644); err != nil {
		log.Fatal().Err(err).Msg("writing export failed")
	}
	log.Info().Str("path", path).Int("bytes", len(result.Data)).Msg("transcript exported")
}
