package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"shopify_sync_v1/internal/config"
	"shopify_sync_v1/internal/controller"
	"shopify_sync_v1/internal/middleware"
	"shopify_sync_v1/internal/model"
	"shopify_sync_v1/internal/repository"
	"shopify_sync_v1/internal/router"
	"shopify_sync_v1/internal/service"
	"shopify_sync_v1/internal/task"
	"shopify_sync_v1/pkg/database"
	"shopify_sync_v1/pkg/logger"
	"shopify_sync_v1/pkg/queue"
	"shopify_sync_v1/pkg/shopify"
)

// @title Shopify 渠道同步服务 API
// @version 1.0
// @description 刊登同步、库存与集合同步、渠道订单导入与履约导出
// @BasePath /
func main() {
	app := &cli.App{
		Name:  "shopify-sync",
		Usage: "目录与店铺同步服务",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "启动 HTTP 服务、刊登消费者与定时任务",
				Action: withDeps(runServe),
			},
			{
				Name:   "worker",
				Usage:  "只运行刊登同步消费者",
				Action: withDeps(runWorker),
			},
			{
				Name:  "upload",
				Usage: "投递一个刊登的创建/更新任务",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "listing", Usage: "刊登 ID", Required: true},
				},
				Action: withDeps(runUpload),
			},
			{
				Name:   "stock",
				Usage:  "执行一次库存状态同步",
				Action: withDeps(runStock),
			},
			{
				Name:   "collections",
				Usage:  "执行一次集合同步",
				Action: withDeps(runCollections),
			},
			{
				Name:   "import-orders",
				Usage:  "拉取店铺订单",
				Action: withDeps(runImportOrders),
			},
			{
				Name:  "import-file",
				Usage: "导入渠道订单文件",
				Flags: []cli.Flag{
					&cli.PathFlag{Name: "file", Aliases: []string{"f"}, Usage: "CSV 文件路径", Required: true},
				},
				Action: withDeps(runImportFile),
			},
			{
				Name:   "export-fulfillment",
				Usage:  "生成渠道批量履约文件",
				Action: withDeps(runExportFulfillment),
			},
			{
				Name:   "fulfill-storefront",
				Usage:  "回写店铺订单履约",
				Action: withDeps(runFulfillStorefront),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// ==================== 依赖容器 ====================

// Dependencies 依赖容器
type Dependencies struct {
	Config *config.Config
	Logger *zap.Logger
	DB     *gorm.DB
	Queue  queue.Queue
	Shop   *shopify.Client
	Repos  *Repositories

	Services *Services
}

// Repositories 仓库集合
type Repositories struct {
	Catalog      *repository.CatalogUnitOfWork
	Orders       repository.OrderRepository
	Fulfillments repository.FulfillmentRepository
}

// Services 服务集合
type Services struct {
	Listing     *service.ListingService
	Stock       *service.StockService
	Collection  *service.CollectionService
	Tag         *service.TagService
	OrderImport *service.OrderImportService
	Fulfillment *service.FulfillmentService
	Storage     service.StorageProvider
}

// withDeps 命令执行前加载配置并装配依赖，收到 SIGINT/SIGTERM 时取消 ctx
func withDeps(run func(ctx context.Context, c *cli.Context, deps *Dependencies) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}
		log := logger.Must(cfg.LogLevel, cfg.Environment)
		defer func() { _ = log.Sync() }()

		deps, err := initDependencies(ctx, cfg, log)
		if err != nil {
			log.Error("初始化失败", zap.Error(err))
			return err
		}
		defer deps.Close()

		return run(ctx, c, deps)
	}
}

// initDependencies 初始化所有依赖
func initDependencies(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Dependencies, error) {
	db, err := database.InitDB(database.Config{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN,
		LogSQL: cfg.Database.LogSQL,
	}, log, append(model.AllModels(), queue.Models()...)...)
	if err != nil {
		return nil, err
	}

	q, err := initQueue(cfg, db, log)
	if err != nil {
		return nil, err
	}

	shop := shopify.NewClient(shopify.Config{
		ShopDomain:     cfg.Shopify.ShopDomain,
		AccessToken:    cfg.Shopify.AccessToken,
		APIVersion:     cfg.Shopify.APIVersion,
		RequestPause:   cfg.Shopify.RequestPause,
		RequestTimeout: cfg.Shopify.RequestTimeout,
		ReadRPS:        cfg.Shopify.ReadRPS,
		ReadBurst:      cfg.Shopify.ReadBurst,
	}, log)

	storage, err := service.NewStorageProvider(ctx, service.StorageConfig{
		Provider:  cfg.Storage.Provider,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		CDNDomain: cfg.Storage.CDNDomain,
		BasePath:  cfg.Storage.BasePath,
	})
	if err != nil {
		_ = q.Close()
		return nil, err
	}

	// -------- Repo 层 --------
	repos := &Repositories{
		Catalog:      repository.NewCatalogUnitOfWork(db),
		Orders:       repository.NewOrderRepository(db),
		Fulfillments: repository.NewFulfillmentRepository(db),
	}

	// -------- 业务服务 --------
	channels := cfg.Channels
	services := &Services{
		Listing:    service.NewListingService(repos.Catalog, shop, q, log),
		Stock:      service.NewStockService(repos.Catalog.Catalog, shop, cfg.Shopify.PushStock, cfg.Shopify.LocationID, log),
		Collection: service.NewCollectionService(repos.Catalog.Collections, shop, log),
		Tag:        service.NewTagService(repos.Catalog.Tags, log),
		OrderImport: service.NewOrderImportService(
			repos.Orders,
			service.NewLocalOrderCreator(repos.Orders, repos.Catalog.Catalog),
			shop, channels.WishCode, channels.ShopifyCode, log,
		),
		Fulfillment: service.NewFulfillmentService(
			repos.Fulfillments, repos.Orders, storage, shop,
			cfg.Shopify.LocationID, channels.WishCode, channels.ShopifyCode, log,
		),
		Storage: storage,
	}

	return &Dependencies{
		Config:   cfg,
		Logger:   log,
		DB:       db,
		Queue:    q,
		Shop:     shop,
		Repos:    repos,
		Services: services,
	}, nil
}

func initQueue(cfg *config.Config, db *gorm.DB, log *zap.Logger) (queue.Queue, error) {
	switch cfg.Queue.Backend {
	case "kafka":
		return queue.NewKafkaQueue(queue.KafkaConfig{
			Brokers: cfg.Queue.KafkaBrokers,
			Topic:   cfg.Queue.KafkaTopic,
			GroupID: cfg.Queue.KafkaGroupID,
		}, log), nil
	case "", "db":
		return queue.NewGormQueue(db, cfg.Queue.PollInterval, cfg.Queue.Lease, log), nil
	default:
		return nil, fmt.Errorf("不支持的队列类型: %s", cfg.Queue.Backend)
	}
}

// Close 释放队列与数据库连接
func (d *Dependencies) Close() {
	if err := d.Queue.Close(); err != nil {
		d.Logger.Warn("关闭队列失败", zap.Error(err))
	}
	if sqlDB, err := d.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func (d *Dependencies) taskManager(workers bool) *task.TaskManager {
	cfg := d.Config
	deps := &task.TaskManagerDeps{
		Queue:             d.Queue,
		JobRunner:         d.Services.Listing,
		StockService:      d.Services.Stock,
		CollectionService: d.Services.Collection,
		OrderImporter:     d.Services.OrderImport,
		Fulfiller:         d.Services.Fulfillment,
		Logger:            d.Logger,
	}
	// kafka 的历史由 topic retention 管理
	if gq, ok := d.Queue.(*queue.GormQueue); ok {
		deps.QueuePurger = gq
	}
	return task.NewTaskManager(deps, &task.TaskManagerConfig{
		WorkerEnabled:      workers,
		Workers:            cfg.Queue.Workers,
		JobDeadline:        cfg.Queue.JobDeadline,
		StockEnabled:       cfg.Schedule.StockEnabled,
		StockSpec:          cfg.Schedule.StockSpec,
		CollectionEnabled:  cfg.Schedule.CollectionEnabled,
		CollectionSpec:     cfg.Schedule.CollectionSpec,
		OrderEnabled:       cfg.Schedule.OrderEnabled,
		OrderSpec:          cfg.Schedule.OrderSpec,
		FulfillmentEnabled: cfg.Schedule.FulfillmentEnabled,
		FulfillmentSpec:    cfg.Schedule.FulfillmentSpec,
		CleanupSpec:        cfg.Queue.CleanupSpec,
		QueueRetention:     cfg.Queue.Retention,
	})
}

// ==================== 命令实现 ====================

func runServe(ctx context.Context, c *cli.Context, deps *Dependencies) error {
	log := deps.Logger
	tm := deps.taskManager(true)
	if err := tm.Start(); err != nil {
		return fmt.Errorf("启动定时任务失败: %w", err)
	}
	defer tm.Stop()

	if deps.Config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	svc := deps.Services
	router.InitRoutes(r, router.Controllers{
		Sync:    controller.NewSyncController(tm),
		Listing: controller.NewListingController(svc.Listing, svc.Tag, svc.Collection),
		Catalog: controller.NewCatalogController(svc.Tag, svc.Collection),
		Order:   controller.NewOrderController(svc.OrderImport, svc.Fulfillment),
	}, middleware.GetLimiter())

	srv := &http.Server{
		Addr:    ":" + deps.Config.Server.Port,
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("服务启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("服务启动失败: %w", err)
	}

	log.Info("正在关闭服务...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), deps.Config.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("服务强制关闭: %w", err)
	}
	log.Info("服务已退出")
	return nil
}

func runWorker(ctx context.Context, c *cli.Context, deps *Dependencies) error {
	cfg := deps.Config.Queue
	w := task.NewListingWorker(deps.Queue, deps.Services.Listing, cfg.Workers, cfg.JobDeadline, deps.Logger)
	return w.Run(ctx)
}

func runUpload(ctx context.Context, c *cli.Context, deps *Dependencies) error {
	update, err := deps.Services.Listing.Upload(ctx, c.Int64("listing"))
	if err != nil {
		return err
	}
	deps.Logger.Info("刊登任务已投递",
		zap.Int64("update_id", update.ID),
		zap.String("op", string(update.OperationType)))
	return nil
}

func runStock(ctx context.Context, c *cli.Context, deps *Dependencies) error {
	_, err := deps.Services.Stock.Reconcile(ctx)
	return err
}

func runCollections(ctx context.Context, c *cli.Context, deps *Dependencies) error {
	_, err := deps.Services.Collection.Refresh(ctx)
	return err
}

func runImportOrders(ctx context.Context, c *cli.Context, deps *Dependencies) error {
	_, err := deps.Services.OrderImport.ImportFeed(ctx)
	return err
}

func runImportFile(ctx context.Context, c *cli.Context, deps *Dependencies) error {
	path := c.Path("file")
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("打开订单文件失败: %w", err)
	}
	defer file.Close()

	_, err = deps.Services.OrderImport.ImportFile(ctx, filepath.Base(path), file)
	return err
}

func runExportFulfillment(ctx context.Context, c *cli.Context, deps *Dependencies) error {
	export, err := deps.Services.Fulfillment.ExportMarketplace(ctx)
	if errors.Is(err, service.ErrNothingToExport) {
		deps.Logger.Info("没有需要导出的订单")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Println(export.ArtifactURL)
	return nil
}

func runFulfillStorefront(ctx context.Context, c *cli.Context, deps *Dependencies) error {
	_, err := deps.Services.Fulfillment.FulfillStorefrontOrders(ctx)
	return err
}
