package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"fantasy-league/config"
	"fantasy-league/handlers"
	"fantasy-league/leaderboard"
	"fantasy-league/ledger"
	"fantasy-league/league"
	"fantasy-league/logging"
	"fantasy-league/middleware"
	"fantasy-league/quotes"
	"fantasy-league/store"
	"fantasy-league/valuation"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file, using environment as-is")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration: ", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatal("invalid log configuration: ", err)
	}

	db, err := config.OpenDB(cfg)
	if err != nil {
		log.Fatal(err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal("failed to get database instance: ", err)
	}
	defer sqlDB.Close()

	rdb, err := config.OpenRedis(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer rdb.Close()

	st := store.NewGormStore(db)
	if err := st.AutoMigrate(); err != nil {
		log.Fatal("failed to migrate models: ", err)
	}

	fetcher := quotes.NewAlphaVantage(cfg.AlphaVantageKey, rdb, logger)
	valuationSvc := valuation.NewService(st, fetcher, logger)

	h := &handlers.Handler{
		Store:       st,
		Ledger:      ledger.NewService(st, fetcher, logger),
		Valuation:   valuationSvc,
		Leagues:     league.NewEngine(st, logger),
		Leaderboard: leaderboard.NewAggregator(st, valuationSvc, logger),
		Quotes:      fetcher,
		Rdb:         rdb,
		JWTSecret:   cfg.JWTSecret,
		Log:         logger,
	}

	router := gin.Default()

	// Public routes
	router.POST("/signup", h.Signup)
	router.POST("/login", h.Login)
	router.POST("/verify-email", h.VerifyEmail)

	// Protected routes
	auth := router.Group("/")
	auth.Use(middleware.JWTAuth(cfg.JWTSecret))
	{
		auth.POST("/leagues", h.CreateLeague)
		auth.GET("/leagues", h.ListLeagues)
		auth.GET("/leagues/:id", h.GetLeague)
		auth.PUT("/leagues/:id", h.UpdateLeague)
		auth.POST("/leagues/:id/join", h.JoinLeague)
		auth.POST("/join", h.JoinLeagueByCode)
		auth.POST("/leagues/:id/leave", h.LeaveLeague)
		auth.POST("/leagues/:id/buy", h.Buy)
		auth.POST("/leagues/:id/sell", h.Sell)
		auth.GET("/leagues/:id/portfolio", h.GetPortfolio)
		auth.GET("/leagues/:id/transactions", h.ListTransactions)
		auth.GET("/leagues/:id/leaderboard", h.GetLeaderboard)
		auth.GET("/quotes/:symbol", h.GetQuote)
	}

	logger.Info("listening", "addr", cfg.ListenAddr)
	if err := router.Run(cfg.ListenAddr); err != nil {
		log.Fatal(err)
	}
}
