package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	app "wadserv/src/app"
	"wadserv/src/auth"
	cfg "wadserv/src/configuration"
	db "wadserv/src/repository"
)

const shutdownTimeout = 10 * time.Second

// Dependencies are the collaborators the router is built from.
type Dependencies struct {
	Store  db.Store
	Blobs  app.BlobStore
	Logger *zap.Logger
}

// RunServer wires the configured stores and serves HTTP until SIGINT or
// SIGTERM.
func RunServer(config *cfg.Properties, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := OpenStore(ctx, config)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			logger.Warn("close store", zap.Error(err))
		}
	}()

	blobs, err := OpenBlobStore(ctx, config, logger)
	if err != nil {
		return err
	}

	router := NewRouter(config, Dependencies{Store: store, Blobs: blobs, Logger: logger})
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", config.Server.Port),
		Handler:      router,
		ReadTimeout:  config.Server.ReadTimeout,
		WriteTimeout: config.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting",
			zap.String("addr", srv.Addr),
			zap.String("store", config.Store.Driver),
			zap.String("blobs", config.Blob.Driver))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// OpenStore connects the metadata store selected by STORE_DRIVER.
func OpenStore(ctx context.Context, config *cfg.Properties) (db.Store, error) {
	switch config.Store.Driver {
	case cfg.StoreMemory:
		return db.NewInMemoryDB(), nil
	case cfg.StoreMongo:
		return db.OpenMongo(ctx, config.Store.MongoURI, config.Store.Database)
	default:
		return db.OpenSQLite(config.Store.SQLitePath)
	}
}

// OpenBlobStore builds the blob store selected by BLOB_DRIVER.
func OpenBlobStore(ctx context.Context, config *cfg.Properties, logger *zap.Logger) (app.BlobStore, error) {
	if config.Blob.Driver == cfg.BlobS3 {
		clientS3, err := app.NewMinioS3Client(
			config.S3.Host,
			config.S3.AccessKey,
			config.S3.SecretKey,
			config.S3.Bucket,
			config.S3.UseSSL,
			logger)
		if err != nil {
			return nil, err
		}
		if err := clientS3.CheckBucket(ctx); err != nil {
			return nil, err
		}
		return clientS3, nil
	}
	return app.NewLocalBlobStore(config.Server.PublicDir)
}

// NewRouter builds the gin engine with every route mounted.
func NewRouter(config *cfg.Properties, deps Dependencies) *gin.Engine {
	if deps.Logger.Core().Enabled(zap.DebugLevel) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(requestLogger(deps.Logger), gin.CustomRecovery(recoverJSON(deps.Logger)))
	router.Use(cors.New(corsConfig(config.Server.AllowOrigins)))
	if config.Server.Pprof {
		pprof.Register(router)
	}

	verifier := auth.NewVerifier(config.Auth.JWTSecret, config.Auth.CookieName)
	images := app.NewProfileImages(verifier, deps.Store, deps.Blobs, deps.Logger)
	handler := NewHandler(config, deps.Store, verifier, images, deps.Logger)

	if local, ok := deps.Blobs.(*app.LocalBlobStore); ok {
		router.Static("/"+app.ProfileImagesDir, local.Dir())
	}

	router.GET("/health", handler.GetHealth)

	api := router.Group("/api")
	api.Use(bodyLimit(config.Server.MaxUploadBytes))

	api.GET("/item", handler.ListItems)
	api.POST("/item", handler.CreateItem)
	api.PATCH("/item/:id", handler.PatchItem)
	api.DELETE("/item/:id", handler.DeleteItem)

	api.POST("/user", handler.Register)
	api.POST("/user/login", handler.Login)
	api.POST("/user/logout", handler.Logout)
	api.GET("/user/profile", handler.requireIdentity, handler.GetProfile)
	api.PUT("/user/profile", handler.requireIdentity, handler.PutProfile)
	api.POST("/user/profile/image", handler.PostProfileImage)
	api.DELETE("/user/profile/image", handler.DeleteProfileImage)
	api.PATCH("/user/:id", handler.requireIdentity, handler.PatchUser)
	api.DELETE("/user/:id", handler.requireIdentity, handler.DeleteUser)
	api.POST("/user/:id/image", handler.PostUserImage)
	api.DELETE("/user/:id/image", handler.DeleteUserImage)

	router.NoRoute(func(ctx *gin.Context) { ctx.JSON(http.StatusNotFound, gin.H{"message": "Not found"}) })
	return router
}

// corsConfig answers any origin with "*" and no credentials. Cookies are
// only shared with origins listed explicitly.
func corsConfig(origins []string) cors.Config {
	config := cors.Config{
		AllowMethods:  []string{"GET", "HEAD", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Content-Length", "Accept-Encoding", "Authorization", "Cache-Control"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
		config.AllowCredentials = true
	}
	return config
}
