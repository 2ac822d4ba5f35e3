package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterh/liner"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/jonboyfraser/whatsapp-spanish-tutor/internal/content"
	"github.com/jonboyfraser/whatsapp-spanish-tutor/internal/observability"
	"github.com/jonboyfraser/whatsapp-spanish-tutor/internal/oracle"
	"github.com/jonboyfraser/whatsapp-spanish-tutor/internal/store"
	"github.com/jonboyfraser/whatsapp-spanish-tutor/internal/transport"
	"github.com/jonboyfraser/whatsapp-spanish-tutor/internal/tutor"
	"github.com/jonboyfraser/whatsapp-spanish-tutor/internal/webhook"
	"github.com/jonboyfraser/whatsapp-spanish-tutor/pkg/config"
	obs "github.com/jonboyfraser/whatsapp-spanish-tutor/pkg/observability"
)

var (
	// Version information (set via ldflags)
	Version = "dev"

	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "tutor",
	Short: "WhatsApp Spanish tutor",
	Long: `tutor runs a bilingual Spanish/English tutoring service over
WhatsApp: lesson playbooks, quiz and task grading through a language
oracle, a bounded daily free-chat window, and scheduled conversation
starters.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook server and broadcast scheduler",
	RunE:  runServe,
}

var broadcastCmd = &cobra.Command{
	Use:   "broadcast",
	Short: "Push one conversation starter and exit",
	RunE:  runBroadcast,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the tutor locally on the terminal",
	Long: `chat runs the full tutoring pipeline against an in-memory
session store, printing responses to the terminal instead of sending
them through Twilio. Useful for trying playbooks before deploying.`,
	RunE: runChat,
}

var broadcastSlot string

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", envOr("CONFIG_FILE", "config/tutor.yaml"), "configuration file")
	broadcastCmd.Flags().StringVar(&broadcastSlot, "slot", "", "broadcast slot (morning, noon, evening)")
	_ = broadcastCmd.MarkFlagRequired("slot")

	rootCmd.AddCommand(serveCmd, broadcastCmd, chatCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// buildService assembles the store, oracle, machine, and service from
// configuration. The caller owns the returned store's lifetime.
func buildService(ctx context.Context, cfg *config.Config, sender transport.Sender) (*tutor.Service, store.Store, error) {
	idx, err := content.LoadIndex(cfg.Content.Playbooks, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("load playbooks: %w", err)
	}

	defaultLesson := cfg.Store.DefaultLesson
	if defaultLesson == "" {
		defaultLesson = idx.FirstLessonID()
	}

	var st store.Store
	switch cfg.Store.Backend {
	case "redis":
		st, err = store.NewRedisStore(store.RedisConfig{
			Addr:          cfg.Store.Redis.Addr,
			Password:      cfg.Store.Redis.Password,
			DB:            cfg.Store.Redis.DB,
			Prefix:        cfg.Store.Redis.Prefix,
			PoolSize:      cfg.Store.Redis.PoolSize,
			DefaultLesson: defaultLesson,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
	case "firestore":
		st, err = store.NewFirestoreStore(ctx, store.FirestoreConfig{
			ProjectID:        cfg.Store.Firestore.Project,
			CredentialsFile:  cfg.Store.Firestore.CredentialsFile,
			CollectionPrefix: cfg.Store.Firestore.Prefix,
			DefaultLesson:    defaultLesson,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect firestore: %w", err)
		}
	case "memory":
		st = store.NewMemoryStore(defaultLesson)
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	client, err := oracle.New(oracle.Config{
		Provider: cfg.Oracle.Provider,
		Model:    cfg.Oracle.Model,
		APIKey:   cfg.Oracle.APIKey,
	})
	if err != nil {
		_ = st.Close()
		return nil, nil, fmt.Errorf("create oracle client: %w", err)
	}
	instrumented := oracle.NewInstrumentedClient(client)

	eval := tutor.NewEvaluator(instrumented, cfg.Oracle.MaxTokens, cfg.Oracle.Timeout)
	limiter := tutor.NewLimiter(cfg.Chat.DailyReplyCap)
	machine := tutor.NewMachine(idx, eval, instrumented, limiter, st)
	svc := tutor.NewService(st, machine, idx, sender, limiter)

	return svc, st, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log.Printf("Starting tutor v%s", Version)
	log.Printf("Config: %s, HTTP Port: %d, Store: %s, Oracle: %s",
		configFile, cfg.Server.Port, cfg.Store.Backend, cfg.Oracle.Provider)

	obs.InitMetrics()
	if err := observability.InitFromEnv(); err != nil {
		log.Printf("Tracing disabled: %v", err)
	}

	sender, err := transport.NewTwilioSender(transport.TwilioConfig{
		AccountSID: cfg.Twilio.AccountSID,
		AuthToken:  cfg.Twilio.AuthToken,
		From:       cfg.Twilio.From,
	})
	if err != nil {
		return fmt.Errorf("create twilio sender: %w", err)
	}

	ctx := context.Background()
	svc, st, err := buildService(ctx, cfg, sender)
	if err != nil {
		return err
	}
	defer st.Close()

	healthChecker := obs.InitHealthChecker()
	healthChecker.RegisterCheck(obs.PingCheck())
	healthChecker.RegisterCheck(obs.StoreCheck(st.Ping))

	server := webhook.NewServer(cfg.Server.Port, svc, svc)
	server.SetTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)

	scheduler := cron.New()
	for slot, expr := range cfg.Schedules {
		slot := slot
		if _, err := scheduler.AddFunc(expr, func() {
			n, err := svc.Broadcast(context.Background(), slot)
			if err != nil {
				log.Printf("Scheduled broadcast %s failed: %v", slot, err)
				return
			}
			log.Printf("Scheduled broadcast %s reached %d learners", slot, n)
		}); err != nil {
			return fmt.Errorf("schedule %s (%q): %w", slot, expr, err)
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	errChan := make(chan error, 1)
	go func() {
		log.Printf("Starting HTTP server on :%d", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		log.Printf("Error: %v", err)
	case <-quit:
		log.Println("Shutting down tutor...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	if err := observability.Shutdown(shutdownCtx); err != nil {
		log.Printf("Tracing shutdown error: %v", err)
	}

	log.Println("Tutor stopped")
	return nil
}

func runBroadcast(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	obs.InitMetrics()

	sender, err := transport.NewTwilioSender(transport.TwilioConfig{
		AccountSID: cfg.Twilio.AccountSID,
		AuthToken:  cfg.Twilio.AuthToken,
		From:       cfg.Twilio.From,
	})
	if err != nil {
		return fmt.Errorf("create twilio sender: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	svc, st, err := buildService(ctx, cfg, sender)
	if err != nil {
		return err
	}
	defer st.Close()

	n, err := svc.Broadcast(ctx, broadcastSlot)
	if err != nil {
		return fmt.Errorf("broadcast %s: %w", broadcastSlot, err)
	}
	fmt.Printf("Broadcast %s reached %d learners\n", broadcastSlot, n)
	return nil
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		cfg = config.Default()
		cfg.Content.Playbooks = []string{"content/week1.json"}
	}
	cfg.Store.Backend = "memory"

	obs.InitMetrics()

	out := bufio.NewWriter(os.Stdout)
	sender := transport.SenderFunc(func(ctx context.Context, to string, lines []string) error {
		for _, line := range lines {
			fmt.Fprintf(out, "tutor> %s\n", line)
		}
		return out.Flush()
	})

	ctx := context.Background()
	svc, st, err := buildService(ctx, cfg, sender)
	if err != nil {
		return err
	}
	defer st.Close()

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Println("Local tutor session. Type HELP for commands, Ctrl-D to exit.")

	for {
		input, err := line.Prompt("you> ")
		if err != nil {
			fmt.Println()
			return nil
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if _, err := svc.HandleMessage(ctx, "local", input); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
}

func envOr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
