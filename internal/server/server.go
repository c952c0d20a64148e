package server

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"dexpricer/internal/dex"
	"dexpricer/internal/pricing"
)

// Publisher registers pool addresses for event consumption.
type Publisher interface {
	RegisterPublisher(address string, params *dex.Params) bool
}

// PriceSource exposes finalized pricing state for queries.
type PriceSource interface {
	GetLatestPriceInUSD(token string) pricing.PriceReport
	GetHistoryUSDPrice(token string) []pricing.PricePoint
	GetLatestVolumeInUSD(poolAddr string, confirmation int) pricing.DailyVolume
}

// Server serves the pricing query API.
type Server struct {
	app       *fiber.App
	publisher Publisher
	prices    PriceSource
	logger    *zap.Logger
}

func New(publisher Publisher, prices PriceSource, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		app: fiber.New(fiber.Config{
			AppName:               "dexpricer",
			DisableStartupMessage: true,
		}),
		publisher: publisher,
		prices:    prices,
		logger:    logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("token price reporter server")
	})
	s.app.Get("/registerListener", s.registerListener)
	s.app.Get("/latestPrice", s.latestPrice)
	s.app.Get("/latestVolumeInUSD", s.latestVolumeInUSD)
	s.app.Get("/historyUSDPrice", s.historyUSDPrice)
}

// Listen blocks serving HTTP on addr until Shutdown is called.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) registerListener(c *fiber.Ctx) error {
	address := c.Query("address")
	if address == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "address is required"})
	}
	var params dex.Params
	if tokens := c.Query("tokens"); tokens != "" {
		params.Tokens = strings.Split(strings.ToLower(tokens), ",")
	}
	if s.publisher.RegisterPublisher(address, &params) {
		msg := fmt.Sprintf("%s is registered successfully", address)
		s.logger.Info("publisher registered", zap.String("address", address))
		return c.JSON(fiber.Map{"msg": msg})
	}
	msg := fmt.Sprintf("%s is registered already, ignored", address)
	s.logger.Warn("publisher already registered", zap.String("address", address))
	return c.JSON(fiber.Map{"msg": msg})
}

func (s *Server) latestPrice(c *fiber.Ctx) error {
	address := strings.ToLower(c.Query("address"))
	if address == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "address is required"})
	}
	report := s.prices.GetLatestPriceInUSD(address)
	return c.JSON(fiber.Map{
		"token":                  address,
		"price":                  report.Price,
		"volume":                 report.Volume,
		"round":                  report.Round,
		"priceWithVolumePerPool": report.Pools,
	})
}

func (s *Server) latestVolumeInUSD(c *fiber.Ctx) error {
	address := strings.ToLower(c.Query("address"))
	if address == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "address is required"})
	}
	// zero means no need to confirm
	confirmation := 0
	if raw := c.Query("confirmation"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "confirmation must be a non-negative integer"})
		}
		confirmation = parsed
	}
	return c.JSON(s.prices.GetLatestVolumeInUSD(address, confirmation))
}

func (s *Server) historyUSDPrice(c *fiber.Ctx) error {
	address := strings.ToLower(c.Query("address"))
	if address == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "address is required"})
	}
	return c.JSON(fiber.Map{
		"historyPrices": s.prices.GetHistoryUSDPrice(address),
	})
}
