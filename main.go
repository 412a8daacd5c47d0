package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cart-service/config"
	"cart-service/consumers"
	"cart-service/controllers"
	"cart-service/database"
	"cart-service/datasource"
	"cart-service/engine"
	"cart-service/logger"
	"cart-service/middlewares"
	"cart-service/models"
	"cart-service/rabbitmq"
	"cart-service/routes"
	"cart-service/utils"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "cart-service",
		Short:        "Shopping cart listing with search, sort and pagination",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
	root.AddCommand(newServeCmd(), newListCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	// 加载配置
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	// 快照存储：配置了数据库时多副本共享
	var store datasource.SnapshotStore = datasource.NewMemoryStore()
	if cfg.DatabaseEnabled() {
		if err := database.InitDB(cfg); err != nil {
			log.Fatal("database initialization failed", zap.Error(err))
		}
		defer database.CloseDB()

		dbStore := database.NewSnapshotStore(database.DB)
		if err := dbStore.EnsureSchema(context.Background()); err != nil {
			log.Fatal("failed to create snapshot table", zap.Error(err))
		}
		store = dbStore
	}

	var (
		rmq  *rabbitmq.RabbitMQ
		opts []datasource.StaticOption
	)
	if cfg.MessagingEnabled() {
		rmq, err = rabbitmq.NewRabbitMQ(cfg, log)
		if err != nil {
			log.Fatal("RabbitMQ initialization failed", zap.Error(err))
		}
		defer rmq.Close()

		// 设置队列和交换机
		if err := rmq.SetupQueues(); err != nil {
			log.Fatal("failed to setup RabbitMQ queues", zap.Error(err))
		}
		opts = append(opts, datasource.WithScheduler(rmq))
	}

	fetcher := datasource.NewFetcher(cfg.CartsURL, cfg.FetchTimeout)
	sources := datasource.NewSources(fetcher, store, cfg.RevalidateWindow, log, middlewares.SourceMetrics{}, opts...)

	if rmq != nil {
		// 启动消息消费者
		consumer := consumers.NewConsumer(consumers.Revalidators(sources), log)
		if err := consumer.Start(rmq.Channel, cfg); err != nil {
			log.Fatal("failed to register consumer", zap.Error(err))
		}
	}

	controllers.SetSources(sources)
	controllers.SetViewStateSecret(cfg.ViewStateSecret)
	controllers.SetEngineOptions(engine.Options{ResetPageOnQueryChange: cfg.ResetPageOnQueryChange})
	controllers.SetRevalidateWindow(cfg.RevalidateWindow)
	controllers.SetLogger(log)
	if rmq != nil {
		controllers.SetRefreshTrigger(rmq)
	}

	r := routes.SetupRouter(log, cfg.CORSAllowOrigins)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("cart service starting", zap.String("port", cfg.Port), zap.String("upstream", cfg.CartsURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newListCmd() *cobra.Command {
	var (
		mode      string
		search    string
		sortField string
		sortOrder string
		page      int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Fetch the carts once and print one derived page as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}

			fetcher := datasource.NewFetcher(cfg.CartsURL, cfg.FetchTimeout)
			sources := datasource.NewSources(fetcher, datasource.NewMemoryStore(), cfg.RevalidateWindow, nil, nil)
			src, ok := sources[datasource.Policy(mode)]
			if !ok {
				return fmt.Errorf("unknown mode %q", mode)
			}

			data, err := src.Carts(cmd.Context())
			if err != nil {
				return err
			}

			state := utils.Normalize(models.ViewState{
				Search:    search,
				SortField: models.SortField(sortField),
				SortOrder: models.SortOrder(sortOrder),
				Page:      page,
			})
			view := engine.Derive(data.Carts, state)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"render_mode":    datasource.Policy(mode).RenderMode(),
				"view":           state,
				"carts":          view.Visible,
				"total_filtered": view.TotalFilteredCount,
				"total_pages":    view.TotalPages,
			})
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(datasource.PolicyDynamic), "render mode: client, dynamic or static")
	cmd.Flags().StringVar(&search, "search", "", "search by cart id or product title")
	cmd.Flags().StringVar(&sortField, "sort-field", string(models.SortByTotal), "total, discountedTotal or totalProducts")
	cmd.Flags().StringVar(&sortOrder, "sort-order", string(models.SortDesc), "asc or desc")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	return cmd
}
