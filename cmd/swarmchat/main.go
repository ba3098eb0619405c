package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/swarmchat/core/broker"
	"github.com/hrygo/swarmchat/core/capability"
	"github.com/hrygo/swarmchat/core/chatmodel"
	"github.com/hrygo/swarmchat/core/orchestrator"
	"github.com/hrygo/swarmchat/core/registry"
	"github.com/hrygo/swarmchat/gateway"
	"github.com/hrygo/swarmchat/gateway/adminhttp"
	"github.com/hrygo/swarmchat/gateway/telegram"
	"github.com/hrygo/swarmchat/internal/config"
	"github.com/hrygo/swarmchat/internal/metrics"
	"github.com/hrygo/swarmchat/internal/version"
	"github.com/hrygo/swarmchat/persistence/sqlitekv"
)

var rootCmd = &cobra.Command{
	Use:     "swarmchat",
	Short:   "A multi-AI chat room orchestrator: several AI personalities sharing one conversation.",
	Version: version.String(),
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		if !isRunningAsSystemdService() {
			_ = godotenv.Load()
		}
		return nil
	},
	RunE: func(_ *cobra.Command, _ []string) error {
		return run()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print full build version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Println(version.StringFull())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)

	viper.SetDefault("mode", "demo")
	viper.SetDefault("port", 28081)
	viper.SetDefault("admin-addr", ":28082")

	rootCmd.PersistentFlags().String("mode", "demo", `mode of the instance, can be "prod", "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of the instance")
	rootCmd.PersistentFlags().Int("port", 28081, "port of the instance")
	rootCmd.PersistentFlags().String("admin-addr", ":28082", "listen address of the admin HTTP surface")
	rootCmd.PersistentFlags().String("persistence-driver", "", `persistence driver ("" or "sqlite")`)
	rootCmd.PersistentFlags().String("persistence-dsn", "", "persistence data source name")

	for _, key := range []string{"mode", "addr", "port", "admin-addr", "persistence-driver", "persistence-dsn"} {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(key)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("swarmchat")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
}

func run() error {
	profile := &config.Profile{
		Mode:              viper.GetString("mode"),
		Addr:              viper.GetString("addr"),
		Port:              viper.GetInt("port"),
		AdminAddr:         viper.GetString("admin-addr"),
		PersistenceDriver: viper.GetString("persistence-driver"),
		PersistenceDSN:    viper.GetString("persistence-dsn"),
	}
	profile.FromEnv()
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registryConfigs := make([]registry.Config, 0, len(profile.AIs))
	for _, ai := range profile.AIs {
		adapter := capability.NewOpenAICapability(capability.Config{
			Provider: ai.Provider,
			Model:    ai.Model,
			APIKey:   ai.APIKey,
			BaseURL:  ai.BaseURL,
			Timeout:  time.Duration(ai.TimeoutSec) * time.Second,
		})
		registryConfigs = append(registryConfigs, registry.Config{
			ID:              ai.ID,
			ProviderKey:     ai.Provider,
			ProviderName:    ai.Provider,
			ModelKey:        ai.Model,
			ModelName:       ai.Model,
			DisplayName:     ai.DisplayName,
			Alias:           ai.Alias,
			Emoji:           ai.Emoji,
			Persona:         ai.Persona,
			Capability:      adapter,
			SkipHealthcheck: profile.SkipHealthcheck,
		})
	}

	reg := registry.New()
	for _, failure := range reg.Initialize(ctx, registryConfigs) {
		slog.Warn("swarmchat: an AI participant failed to initialize and was excluded",
			"ai_id", failure.ID, "error", failure.Err)
	}
	if len(reg.All()) == 0 {
		return fmt.Errorf("no AI participant initialized successfully")
	}

	var persistence *sqlitekv.Store
	if profile.PersistenceDriver == "sqlite" {
		store, err := sqlitekv.Open(profile.PersistenceDSN)
		if err != nil {
			return fmt.Errorf("failed to open persistence store: %w", err)
		}
		defer store.Close()
		persistence = store
	}

	metricsSink := metrics.New(prometheus.DefaultRegisterer)
	fanout := gateway.NewFanout()

	br := broker.New()
	allowList := chatmodel.NewRoomAllowList()

	var persistenceStore orchestrator.PersistenceStore
	if persistence != nil {
		persistenceStore = persistence
	}

	orch := orchestrator.New(orchestrator.Config{
		Flags: orchestrator.Flags{
			EnablePersonas:        profile.EnablePersonas,
			SkipHealthcheck:       profile.SkipHealthcheck,
			VerboseContextLogging: profile.VerboseContextLogging,
		},
		MaxMessages: profile.MaxMessages,
	}, br, reg, allowList, persistenceStore, metricsSink, fanout.Dispatch)
	defer orch.Cleanup()

	var tg *telegram.Channel
	if profile.TelegramBotToken != "" {
		ch, err := telegram.New(telegram.Config{
			BotToken:  profile.TelegramBotToken,
			ParseMode: profile.TelegramParseMode,
		}, orch)
		if err != nil {
			return fmt.Errorf("failed to start telegram channel: %w", err)
		}
		fanout.Register(ch)
		tg = ch
		go tg.Run()
	}

	admin := adminhttp.New(orch, prometheus.DefaultGatherer)
	go func() {
		if err := admin.Start(profile.AdminAddr); err != nil {
			slog.Info("swarmchat: admin server stopped", "error", err)
		}
	}()

	printGreetings(profile)

	c := make(chan os.Signal, 1)
	signal.Notify(c, terminationSignals...)
	<-c

	if tg != nil {
		tg.Stop()
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := admin.Shutdown(shutdownCtx); err != nil {
		slog.Warn("swarmchat: admin server shutdown error", "error", err)
	}

	return nil
}

func printGreetings(profile *config.Profile) {
	fmt.Printf("swarmchat started successfully in %s mode\n", profile.Mode)
	fmt.Printf("Admin surface listening on %s\n", profile.AdminAddr)
	if len(profile.AIs) > 0 {
		fmt.Printf("Registered AIs:")
		for _, ai := range profile.AIs {
			fmt.Printf(" @%s", ai.Alias)
		}
		fmt.Println()
	}
	if profile.TelegramBotToken != "" {
		fmt.Println("Telegram gateway enabled")
	}
}

// isRunningAsSystemdService detects if the process is running under systemd.
func isRunningAsSystemdService() bool {
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("WATCHDOG_USEC") != ""
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("swarmchat: fatal error", "error", err)
		os.Exit(1)
	}
}
