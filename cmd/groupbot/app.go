package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-group-bot/internal/bot"
	botmw "github.com/tbourn/go-group-bot/internal/bot/middleware"
	"github.com/tbourn/go-group-bot/internal/commands"
	"github.com/tbourn/go-group-bot/internal/config"
	"github.com/tbourn/go-group-bot/internal/domain"
	"github.com/tbourn/go-group-bot/internal/keylock"
	"github.com/tbourn/go-group-bot/internal/repo"
	"github.com/tbourn/go-group-bot/internal/roster"
	"github.com/tbourn/go-group-bot/internal/services"
	"github.com/tbourn/go-group-bot/internal/store"
	"github.com/tbourn/go-group-bot/internal/sysutil"
	"github.com/tbourn/go-group-bot/internal/transport"
)

// app holds everything the subcommands share.
type app struct {
	cfg      config.Config
	settings config.Settings
	db       *gorm.DB

	fortune    *services.FortuneService
	lottery    *services.LotteryService
	roster     *roster.Cache
	dispatcher *bot.Dispatcher
}

// openDB opens the SQLite database and migrates the schema.
func openDB(cfg config.Config) (*gorm.DB, error) {
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// recordStores selects the backend for the three record sequences.
type recordStores struct {
	fortunes store.Store[domain.FortuneRecord]
	weights  store.Store[domain.FortuneWeight]
	lottery  store.Store[domain.LotteryRecord]
}

func openStores(cfg config.StoreConfig, db *gorm.DB) (recordStores, error) {
	codec, err := store.CodecByName(cfg.Codec)
	if err != nil {
		return recordStores{}, err
	}

	switch cfg.Backend {
	case "sqlite":
		return recordStores{
			fortunes: repo.NewRecordStore[domain.FortuneRecord](db, domain.KindFortune, codec),
			weights:  repo.NewRecordStore[domain.FortuneWeight](db, domain.KindFortuneWeights, codec),
			lottery:  repo.NewRecordStore[domain.LotteryRecord](db, domain.KindLottery, codec),
		}, nil
	case "file":
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return recordStores{}, fmt.Errorf("create data dir: %w", err)
		}
		path := func(kind string) string { return filepath.Join(cfg.DataDir, kind+codec.Ext()) }

		var rs recordStores
		if rs.fortunes, err = store.NewFileStore[domain.FortuneRecord](path(domain.KindFortune), codec); err != nil {
			return recordStores{}, err
		}
		if rs.weights, err = store.NewFileStore[domain.FortuneWeight](path(domain.KindFortuneWeights), codec); err != nil {
			return recordStores{}, err
		}
		if rs.lottery, err = store.NewFileStore[domain.LotteryRecord](path(domain.KindLottery), codec); err != nil {
			return recordStores{}, err
		}
		return rs, nil
	default:
		return recordStores{}, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// wireApp builds the services, the command set and the message pipeline.
func wireApp(ctx context.Context, cfg config.Config, settingsFlag string) (_ *app, err error) {
	settings, err := config.LoadSettings(sysutil.FirstNonEmpty(settingsFlag, cfg.Bot.SettingsPath))
	if err != nil {
		return nil, err
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			if sqlDB, derr := db.DB(); derr == nil {
				_ = sqlDB.Close()
			}
		}
	}()

	stores, err := openStores(cfg.Store, db)
	if err != nil {
		return nil, err
	}

	cal := services.Calendar{Location: cfg.Bot.Location}
	locks := keylock.New()

	fortune := services.NewFortuneService(stores.fortunes, stores.weights)
	fortune.Calendar, fortune.Locks = cal, locks
	if err := fortune.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("seed fortune weights: %w", err)
	}

	lottery := services.NewLotteryService(stores.lottery)
	lottery.Calendar, lottery.Locks = cal, locks
	lottery.Chances = cfg.Bot.LotteryChances

	cache := roster.NewCache(repo.NewMemberSource(db), cfg.Bot.RosterTTL)
	cmds := commands.New(fortune, lottery, cache, transport.NewLogSender(log.Logger), settings)

	router := bot.NewRouter()
	if err := cmds.Register(router); err != nil {
		return nil, err
	}

	pipeline := bot.NewPipeline()
	limiter := botmw.NewRateLimiter(cfg.Bot.RateRPS, cfg.Bot.RateBurst, botmw.KeyBySender())
	for _, m := range []bot.Middleware{
		botmw.Blacklist(botmw.BlacklistConfig{
			Users:  settings.Blacklist.Users,
			Groups: settings.Blacklist.Groups,
			Mode:   botmw.BlacklistMode(cfg.Bot.BlacklistMode),
		}),
		limiter.Middleware(),
		botmw.Metrics(),
		botmw.Logger(),
		cmds.PrivateReply(0),
	} {
		if err := pipeline.Use(m); err != nil {
			return nil, err
		}
	}

	return &app{
		cfg:        cfg,
		settings:   settings,
		db:         db,
		fortune:    fortune,
		lottery:    lottery,
		roster:     cache,
		dispatcher: bot.NewDispatcher(router, pipeline),
	}, nil
}

func (a *app) close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
