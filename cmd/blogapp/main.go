package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"blognest/pkg/files"
	"blognest/pkg/handlers"
	"blognest/pkg/middleware"
	"blognest/pkg/posts"
	"blognest/pkg/session"
	"blognest/pkg/user"

	"github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/gorilla/mux"
	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

const (
	createSchema = `CREATE TABLE IF NOT EXISTS users (
		id int(11) unsigned NOT NULL AUTO_INCREMENT,
		username VARCHAR(50) NOT NULL,
		password VARBINARY(100) NOT NULL,
		display_name VARCHAR(100) NOT NULL DEFAULT '',
		about VARCHAR(1000) NOT NULL DEFAULT '',
		follower_count int(11) NOT NULL DEFAULT 0,
		profile_picture VARCHAR(255) NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		UNIQUE KEY username (username)
	) ENGINE=INNODB DEFAULT CHARSET=utf8;`

	banner = "Welcome to BlogNest API"
)

func main() {
	if err := loadConfig(); err != nil {
		panic(err)
	}

	app := &Application{
		MongoConnectionString: viper.GetString("mongo.uri"),
		MongoDBName:           viper.GetString("mongo.db"),
		MongoPostsCollection:  viper.GetString("mongo.posts_collection"),
		MySQLConnectionString: viper.GetString("mysql.dsn"),
		RedisOptions: &redis.Options{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		ServerAddr:    viper.GetString("addr"),
		SessionSecret: viper.GetString("session.secret"),
		UploadsDir:    viper.GetString("uploads.dir"),
		DefaultCover:  viper.GetString("uploads.default_cover"),
		CorsOrigin:    viper.GetString("cors.origin"),
	}

	app.Run()
}

func loadConfig() error {
	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	viper.SetDefault("addr", "127.0.0.1:8000")
	viper.SetDefault("mongo.posts_collection", "posts")
	viper.SetDefault("uploads.dir", "uploads")
	viper.SetDefault("uploads.default_cover", "uploads/defaultPost.png")
	return viper.ReadInConfig()
}

type Application struct {
	MongoConnectionString string
	MongoDBName           string
	MongoPostsCollection  string
	MySQLConnectionString string
	RedisOptions          *redis.Options

	ServerAddr    string
	SessionSecret string
	UploadsDir    string
	DefaultCover  string
	CorsOrigin    string

	HTTPServer *http.Server
}

func (a *Application) Run() {
	zapLogger, _ := zap.NewProduction()
	defer zapLogger.Sync() // flushes buffer, if any
	logger := zapLogger.Sugar()

	rdb := redis.NewClient(a.RedisOptions)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		panic(err.Error())
	}

	smJWT, err := session.NewSessionsJWTManager([]byte(a.SessionSecret))
	if err != nil {
		panic(err)
	}
	sm := session.NewSessionManagerRedis(rdb, smJWT)

	db, err := sql.Open("mysql", a.MySQLConnectionString)
	if err != nil {
		panic(err.Error())
	}

	defer db.Close()
	err = db.Ping()
	if err != nil {
		panic(err)
	}

	_, err = db.Exec(createSchema)
	if err != nil {
		panic(err)
	}

	userRepo := user.NewUserRepoSQL(db)

	storage, err := files.NewDiskStorage(a.UploadsDir)
	if err != nil {
		panic(err)
	}

	userHandler := &handlers.UserHandler{
		Sm:     sm,
		Repo:   userRepo,
		Files:  storage,
		Logger: logger,
	}

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := posts.NewMongoClient(ctx, a.MongoConnectionString)
	if err != nil {
		panic(err)
	}
	err = client.Ping(ctx, readpref.Primary())
	if err != nil {
		panic(err)
	}

	postsRepo := posts.NewPostsRepoMongo(client, a.MongoDBName, a.MongoPostsCollection)

	postsHandler := &handlers.PostHandler{
		Sm:           sm,
		PostsRepo:    postsRepo,
		UsersRepo:    userRepo,
		Files:        storage,
		DefaultCover: a.DefaultCover,
		Logger:       logger,
	}

	r := mux.NewRouter()
	api := r.PathPrefix("/api/").Subrouter()

	api.HandleFunc("/register", userHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/login", userHandler.Login).Methods(http.MethodPost)
	api.HandleFunc("/logout", userHandler.Logout).Methods(http.MethodPost)

	api.HandleFunc("/post", postsHandler.GetAll).Methods(http.MethodGet)
	api.HandleFunc("/post", postsHandler.Create).Methods(http.MethodPost)
	api.HandleFunc("/post", postsHandler.Update).Methods(http.MethodPut)
	api.HandleFunc("/post/{id}", postsHandler.GetByID).Methods(http.MethodGet)
	api.HandleFunc("/post/{id}", postsHandler.Delete).Methods(http.MethodDelete)

	api.HandleFunc("/post/{id}/upvote", postsHandler.Upvote).Methods(http.MethodPost)
	api.HandleFunc("/post/{id}/downvote", postsHandler.Downvote).Methods(http.MethodPost)

	api.HandleFunc("/profile", userHandler.Me).Methods(http.MethodGet)
	api.HandleFunc("/profile/{userId}", postsHandler.Profile).Methods(http.MethodGet)
	api.HandleFunc("/profile/{userId}", userHandler.UpdateProfile).Methods(http.MethodPut)

	api.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlers.WriteError(w, "not found", http.StatusNotFound)
	})

	r.PathPrefix("/uploads/").Handler(
		http.StripPrefix("/uploads/", http.FileServer(http.Dir(a.UploadsDir))))
	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		handlers.WriteJSON(w, banner, http.StatusOK)
	}).Methods(http.MethodGet)

	handler := middleware.Auth(logger, sm, r)
	handler = middleware.Log(logger, handler)
	handler = middleware.Recover(logger, handler)
	handler = middleware.Cors(a.CorsOrigin, handler)

	srv := &http.Server{
		Handler:      handler,
		Addr:         a.ServerAddr,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}
	a.HTTPServer = srv

	go func() {
		logger.Infof("Started server at %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalw("server stopped", "err", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Infow("shutting down server...")

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatalw("server forced to shutdown", "err", err)
	}
}
