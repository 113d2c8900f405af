// Command pennybot runs the Penny Chat Slack bot: webhook server, event
// router, task queue, and follow-up scheduler.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/penny-university/pennybot/pkg/api"
	"github.com/penny-university/pennybot/pkg/bot"
	"github.com/penny-university/pennybot/pkg/config"
	"github.com/penny-university/pennybot/pkg/domain"
	"github.com/penny-university/pennybot/pkg/infrastructure/eventbus"
	"github.com/penny-university/pennybot/pkg/infrastructure/persistence"
	"github.com/penny-university/pennybot/pkg/logger"
	"github.com/penny-university/pennybot/pkg/modules/greeting"
	pennychatmod "github.com/penny-university/pennybot/pkg/modules/pennychat"
	slackclient "github.com/penny-university/pennybot/pkg/slack"
	"github.com/penny-university/pennybot/pkg/tasks"
)

func main() {
	configPath := flag.String("config", "pennybot.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "pennybot:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger.Init(cfg.Log.Level, cfg.Log.Format)
	defer logger.Sync()

	store, err := persistence.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	bus := eventbus.New()
	defer bus.Close()

	client := slackclient.NewWeb(cfg.Slack.BotToken)
	chats := persistence.NewPennyChatRepository(store)
	users := slackclient.NewDirectory(persistence.NewUserRepository(store), client)

	queue := tasks.NewQueue(
		cfg.Tasks.Workers,
		cfg.Tasks.MaxRetries,
		time.Duration(cfg.Tasks.BackoffSeconds)*time.Second,
		bus,
	)
	tasks.NewPennyChatTasks(chats, users, client, queue, bus).Register(queue)

	scheduler := tasks.NewScheduler(queue)
	if err := scheduler.Every("*/15 * * * *", tasks.TaskReminderSweep, nil); err != nil {
		return err
	}

	chatHandlers := pennychatmod.NewHandlers(chats, users, client, queue, bus)
	router := bot.New(
		greeting.NewHandlers(client).Module(),
		chatHandlers.Module(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go queue.Run(ctx)
	go scheduler.Run(ctx)

	server := api.NewServer(cfg, router, chatHandlers, client, bus)
	if err := server.Start(ctx); err != nil {
		return err
	}

	bus.Publish(domain.NewEvent(domain.EventSystemStartup, "", map[string]string{
		"addr": cfg.Addr(),
	}))
	logger.InfoCF("main", "pennybot started", map[string]interface{}{
		"addr":    cfg.Addr(),
		"modules": router.Modules(),
	})

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.InfoC("main", "Shutting down")
	bus.Publish(domain.NewEvent(domain.EventSystemShutdown, "", nil))
	cancel()
	return server.Stop()
}
