package main

/* ========================
u-service based on Go gin that receives Telegram webhook updates and decodes QR codes
out of the photos sent to the registered bots. Text commands get canned replies, photos
run through the decode pipeline, duplicate webhook deliveries are suppressed against a
redis backed marker. The endpoint is agnostic to any bot - the bot uid in the url picks
the token from the registry.
author 		:kneerunjun@gmail.com
date		:14-MAR-2024
===========================*/
import (
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/eensymachines/qrbot/barcode"
	"github.com/eensymachines/qrbot/brokers"
	"github.com/eensymachines/qrbot/config"
	"github.com/eensymachines/qrbot/dedup"
	"github.com/eensymachines/qrbot/dispatch"
	"github.com/eensymachines/qrbot/models"
	"github.com/eensymachines/qrbot/telegram"
	"github.com/eensymachines/qrbot/tokens"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

var (
	FVerbose, FLogF bool
	logFile         string
)

func init() {
	flag.BoolVar(&FVerbose, "verbose", false, "debug level logging")
	flag.BoolVar(&FLogF, "flog", false, "log to file instead of stdout")
	// Setting up log configuration for the api
	log.SetFormatter(&log.TextFormatter{
		DisableColors: false,
		FullTimestamp: false,
		ForceColors:   true,
	})
	log.SetReportCaller(false)
	// By default the log output is stdout and the level is info
	log.SetOutput(os.Stdout)    // FLogF will set it main, but dfault is stdout
	log.SetLevel(log.InfoLevel) // default level info but FVerbose will set it main
	logFile = os.Getenv("LOGF")
}

// webhookDeps : everything the webhook handler needs, constructed once at process start
type webhookDeps struct {
	registry tokens.TokenRegistry
	marker   dedup.Marker
	decoder  barcode.Decoder
	broker   brokers.Broker
	httpc    *http.Client
	maxPhoto int
}

// HndlBotUpdate : function to handle one webhook delivery from the Telegram server.
// The transport contract is a fixed 200 with a small ack body no matter the internal
// outcome - a non 200 here only makes the Telegram server redeliver what we would skip.
func HndlBotUpdate(deps *webhookDeps) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		botid := ctx.Param("botid")
		ack := gin.H{"ok": true, "bot": botid}
		tok, found := deps.registry.Find(botid)
		if !found {
			log.WithFields(log.Fields{
				"botid": botid,
			}).Warn("webhook hit for an unregistered bot")
			ctx.JSON(http.StatusOK, ack)
			return
		}
		upd := models.Update{}
		if err := ctx.ShouldBindJSON(&upd); err != nil {
			log.WithFields(log.Fields{
				"botid": botid,
				"err":   err,
			}).Error("failed to unmarshal webhook payload")
			ctx.JSON(http.StatusOK, ack)
			return
		}
		gw := dispatch.Gateway{
			BotUID:       botid,
			Marker:       deps.marker,
			Bot:          telegram.NewClient(tok, deps.httpc),
			Decoder:      deps.decoder,
			Broker:       deps.broker,
			MaxPhotoSize: deps.maxPhoto,
		}
		gw.Handle(ctx.Request.Context(), &upd)
		ctx.JSON(http.StatusOK, ack)
	}
}

func main() {
	flag.Parse() // command line flags are parsed
	if FVerbose {
		log.SetLevel(log.DebugLevel)
	}
	if FLogF {
		lf, err := os.OpenFile(logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0664)
		if err != nil {
			log.WithFields(log.Fields{
				"err": err,
			}).Error("Failed to connect to log file, kindly check the privileges")
		} else {
			log.Infof("Check log file for entries @ %s", logFile)
			log.SetOutput(lf)
		}
	}
	log.Info("Now starting the qrbot webhook microservice")

	cfg, err := config.Load()
	if err != nil {
		log.WithFields(log.Fields{
			"err": err,
		}).Fatal("invalid configuration, cannot continue")
	}
	registry := tokens.NewSimpleTokenRegistry(cfg.BotTokens...)
	if registry.Count() == 0 {
		log.Fatal("none of the configured bot tokens parsed, cannot continue")
	}
	log.Infof("%d bot(s) registered for webhook handling", registry.Count())

	// dedup marker store - redis when configured, else the process local fallback
	var marker dedup.Marker
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		marker = dedup.NewRedisMarker(rdb)
		log.Infof("dedup markers persisted on redis @ %s", cfg.RedisAddr)
	} else {
		marker = dedup.NewMemoryMarker()
		log.Warn("REDIS_ADDR not set, dedup markers are in-process and wont survive a restart")
	}

	// decode event fan out - optional
	var broker brokers.Broker
	if cfg.AmqpServer != "" {
		rbmq, err := brokers.RabbitConnDial(cfg.AmqpUser, cfg.AmqpPasswd, cfg.AmqpServer)
		if err != nil {
			log.WithFields(log.Fields{
				"err": err,
			}).Fatal("failed connecting to the rabbit server")
		}
		defer rbmq.CloseConn()
		broker = rbmq
		log.Infof("decode events fan out over rabbit @ %s", cfg.AmqpServer)
	}

	deps := &webhookDeps{
		registry: registry,
		marker:   marker,
		decoder:  barcode.QRDecoder{TryHarder: true},
		broker:   broker,
		httpc:    &http.Client{Timeout: 30 * time.Second},
		maxPhoto: cfg.MaxPhotoSize,
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"app":    "Telegram QR decode bot",
			"author": "kneerunjun@gmail.com",
			"msg":    "If you are able to see this, you know the qrbot webhook service is working fine",
		})
	})
	r.POST("/bots/:botid/webhook", HndlBotUpdate(deps))
	log.Fatal(r.Run(":" + cfg.Port))
}
