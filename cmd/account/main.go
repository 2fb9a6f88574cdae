package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	pgrepo "github.com/tianwen-game/tw-account/internal/adapters/db/postgres"
	redisrepo "github.com/tianwen-game/tw-account/internal/adapters/db/redis"
	"github.com/tianwen-game/tw-account/internal/adapters/smtp"
	"github.com/tianwen-game/tw-account/internal/adapters/transport/http/dto"
	httpmw "github.com/tianwen-game/tw-account/internal/adapters/transport/http/middleware"
	"github.com/tianwen-game/tw-account/internal/app/account/code"
	"github.com/tianwen-game/tw-account/internal/app/account/refresh"
	appsvc "github.com/tianwen-game/tw-account/internal/app/account/service"
	"github.com/tianwen-game/tw-account/internal/app/account/token"
	accountErrors "github.com/tianwen-game/tw-account/internal/domain/account/errors"
	"github.com/tianwen-game/tw-account/internal/domain/account/model"
	"github.com/tianwen-game/tw-account/internal/infra/config"
	lg "github.com/tianwen-game/tw-account/internal/infra/log"
	"github.com/tianwen-game/tw-account/internal/infra/migrate"
	"github.com/tianwen-game/tw-account/internal/infra/server"
)

const refreshCookieName = "refresh_token"

func issueTokens(c *gin.Context, pair model.TokenPair, domain string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(
		refreshCookieName,
		pair.RefreshToken,
		int(pair.RefreshTTL.Seconds()),
		"/",
		domain,
		true, // secure
		true, // httpOnly
	)

	c.JSON(http.StatusOK, dto.TokenPairDTO{
		AccessToken: pair.AccessToken,
		TokenType:   "bearer",
		ExpiresIn:   int64(pair.AccessTTL.Seconds()),
	})
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return h[len(prefix):]
	}
	return ""
}

func newRouter(cfg *config.Config, svc appsvc.Service, zapLog *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpmw.RequestLogger(zapLog))
	router.Use(httpmw.RateLimitPerIP(50, 100, 10_000, time.Hour))

	router.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowedOrigins,
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept",
			"Authorization",
			"X-Requested-With",
		},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           12 * time.Hour,
	}))

	router.POST("/email/send_verification_code", func(c *gin.Context) {
		var body dto.SendCodeDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := svc.SendVerificationCode(c.Request.Context(), body); err != nil {
			handleError(c, err)
			return
		}
		c.Status(http.StatusAccepted)
	})

	router.GET("/email/domain_restriction_info", func(c *gin.Context) {
		c.JSON(http.StatusOK, svc.DomainRestrictionInfo())
	})

	router.POST("/account/register", func(c *gin.Context) {
		var body dto.RegisterDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := svc.Register(c.Request.Context(), body); err != nil {
			handleError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})

	// login takes the classic form pair: username carries the email,
	// password carries the mailed code
	router.POST("/account/login", func(c *gin.Context) {
		body := dto.LoginDTO{
			Email:      c.PostForm("username"),
			VerifyCode: c.PostForm("password"),
		}
		pair, err := svc.Login(c.Request.Context(), body)
		if err != nil {
			handleError(c, err)
			return
		}
		issueTokens(c, pair, cfg.CookieDomain)
	})

	router.POST("/account/refresh", func(c *gin.Context) {
		raw, err := c.Cookie(refreshCookieName)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		pair, err := svc.Refresh(c.Request.Context(), raw)
		if err != nil {
			handleError(c, err)
			return
		}
		issueTokens(c, pair, cfg.CookieDomain)
	})

	router.GET("/account/me/info", func(c *gin.Context) {
		acc, err := svc.Authenticate(c.Request.Context(), bearerToken(c))
		if err != nil {
			handleError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.AccountInfoDTO{
			ID:    acc.ID.String(),
			Email: acc.Email,
		})
	})

	router.GET("/account/me/characters", func(c *gin.Context) {
		acc, err := svc.Authenticate(c.Request.Context(), bearerToken(c))
		if err != nil {
			handleError(c, err)
			return
		}
		chars, err := svc.ListCharacters(c.Request.Context(), acc.ID)
		if err != nil {
			handleError(c, err)
			return
		}
		out := make([]dto.CharacterDTO, 0, len(chars))
		for _, ch := range chars {
			out = append(out, dto.CharacterDTO{Name: ch.Name})
		}
		c.JSON(http.StatusOK, out)
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().Unix()})
	})

	return router
}

func main() {
	zapLog := lg.Must(os.Getenv("LOG_LEVEL"))
	defer zapLog.Sync()

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("failed to load config", zap.Error(err))
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		zapLog.Fatal("failed to connect to database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		zapLog.Fatal("db handle", zap.Error(err))
	}
	defer sqlDB.Close()
	if err := migrate.Up(sqlDB); err != nil {
		zapLog.Fatal("run migrations", zap.Error(err))
	}

	redisCli := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisCli.Close()

	jwtUtil, err := token.NewJWTUtil(cfg)
	if err != nil {
		zapLog.Fatal("failed to init JWT util", zap.Error(err))
	}

	mailPool := smtp.NewPool(smtp.NewDialer(cfg), cfg.MailPoolSize)
	mailer := smtp.NewMailer(mailPool, cfg, zapLog)
	defer mailer.Close()

	svc := appsvc.New(
		pgrepo.NewAccountRepo(db),
		code.NewStore(pgrepo.NewVerificationCodeRepo(db), cfg.VerificationCodeAlphabet, cfg.VerificationCodeLifespan),
		refresh.NewManager(redisrepo.NewRefreshTokenRepo(redisCli), cfg.RefreshTokenTTL),
		jwtUtil,
		mailer,
		cfg,
	)

	router := newRouter(cfg, svc, zapLog)

	rootCtx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(rootCtx)

	g.Go(func() error {
		return server.StartHTTPServer(ctx, cfg, router, zapLog)
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLog.Info("shutdown signal received")
	cancel()

	if err := g.Wait(); err != nil {
		zapLog.Error("server terminated", zap.Error(err))
	}
}

func handleError(c *gin.Context, err error) {
	switch {
	case accountErrors.IsInvalidArgument(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case accountErrors.IsAlreadyExists(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": "此账户已存在"})
	case accountErrors.IsInvalidCode(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": "验证码错误"})
	case accountErrors.IsInvalidCredentials(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "邮箱或验证码错误"})
	case accountErrors.IsInvalidToken(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
	case accountErrors.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
