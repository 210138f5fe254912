package server

import (
	"context"
	"net/http"
	"time"

	sentry "github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/iconduit/go-iconduit/env"
	"github.com/iconduit/go-iconduit/middleware"
	"github.com/iconduit/go-iconduit/service/blob"
	"github.com/iconduit/go-iconduit/service/index"
	"github.com/iconduit/go-iconduit/service/logger"
	"github.com/iconduit/go-iconduit/service/memcache"
	"github.com/iconduit/go-iconduit/service/redis"
	"github.com/iconduit/go-iconduit/service/search"
	"github.com/iconduit/go-iconduit/service/store"
	"github.com/iconduit/go-iconduit/service/transform"
	"github.com/iconduit/go-iconduit/validate"
)

// rateLimitWindow is the span RATE_LIMIT_RPM is measured over.
const rateLimitWindow = time.Minute

// Init initializes the server
func Init() {
	setDefaults()

	logger.SetLoggerOptions(func(l *logrus.Logger) {
		l.SetFormatter(&logrus.JSONFormatter{})
	})
	initSentry()

	indexCache := redis.NewCache(redis.IndexCache)
	edgeCache := redis.NewCache(redis.EdgeCache)
	limiterCache := redis.NewCache(redis.RateLimitersCache)

	router := CoreInit(
		indexCache,
		newFetcher(),
		memcache.NewRedisEdge(edgeCache),
		middleware.NewKeyRateLimiter(int64(viper.GetInt("RATE_LIMIT_RPM")), rateLimitWindow, limiterCache),
	)

	http.Handle("/", router)
}

// CoreInit initializes core server functionality. This is abstracted
// so the test server can also utilize it. A nil edge disables the edge tier
// and a nil limiter disables rate limiting.
func CoreInit(kv index.KV, fetcher store.Fetcher, edge memcache.Edge, limiter *middleware.KeyRateLimiter) *gin.Engine {
	logger.For(nil).Info("initializing server...")

	if viper.GetString("ENV") != "production" {
		gin.SetMode(gin.DebugMode)
		logrus.SetLevel(logrus.DebugLevel)
	}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.Sentry(true), middleware.RequestID(), middleware.HandleCORS(), middleware.SecurityHeaders(), middleware.GinContextToContext(), middleware.ErrLogger())
	if limiter != nil {
		router.Use(middleware.RateLimited(limiter))
	}

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		logger.For(nil).Info("registering validation")
		validate.RegisterCustomValidators(v)
	}

	indexStore := index.NewStore(kv)
	blobStore := blob.NewStore(fetcher)

	res := &resources{
		index:     indexStore,
		blobs:     blobStore,
		transform: transform.NewEngine(),
		search:    search.NewEngine(indexStore),
		memory:    memcache.NewMemory(),
		edge:      edge,
	}
	res.initFlights()

	return handlersInit(router, res)
}

// newFetcher picks the blob backend: a plain HTTP file server when
// ICON_FILE_SERVER_URL is set (development), the bucket binding otherwise.
func newFetcher() store.Fetcher {
	if base := viper.GetString("ICON_FILE_SERVER_URL"); base != "" {
		logger.For(nil).Infof("serving icon blobs from local file server at %s", base)
		return store.NewLocalObjectServer(base)
	}

	credFile := ""
	if viper.GetString("ENV") == "local" {
		credFile = viper.GetString("GOOGLE_APPLICATION_CREDENTIALS")
	}
	client := store.NewStorageClient(context.Background(), credFile)
	return store.NewBucketStorer(client, viper.GetString("GCLOUD_ICON_BUCKET"))
}

func setDefaults() {
	env.RegisterValidation("REDIS_URL", "required")

	viper.SetDefault("ENV", "local")
	viper.SetDefault("PORT", 8080)
	viper.SetDefault("ALLOWED_ORIGINS", "")
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("REDIS_PASS", "")
	viper.SetDefault("GCLOUD_ICON_BUCKET", "dev-icon-content")
	viper.SetDefault("GOOGLE_APPLICATION_CREDENTIALS", "_deploy/service-key.json")
	viper.SetDefault("ICON_FILE_SERVER_URL", "")
	viper.SetDefault("RATE_LIMIT_RPM", 300)
	viper.SetDefault("SENTRY_DSN", "")
	viper.SetDefault("SENTRY_TRACES_SAMPLE_RATE", 0.2)
	viper.SetDefault("VERSION", "")
	viper.AutomaticEnv()
}

func initSentry() {
	if viper.GetString("ENV") == "local" || viper.GetString("SENTRY_DSN") == "" {
		logger.For(nil).Info("skipping sentry init")
		return
	}

	logger.For(nil).Info("initializing sentry...")

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              viper.GetString("SENTRY_DSN"),
		Environment:      viper.GetString("ENV"),
		TracesSampleRate: viper.GetFloat64("SENTRY_TRACES_SAMPLE_RATE"),
		Release:          viper.GetString("VERSION"),
		AttachStacktrace: true,
	})
	if err != nil {
		logger.For(nil).Fatalf("failed to start sentry: %s", err)
	}
}
