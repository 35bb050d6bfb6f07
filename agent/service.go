package agent

import (
	"context"
	"errors"
	"net/http"
	"time"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jinzhu/gorm"
)

const RequestIdHeader = "X-Request-Id"

type Service struct {
	logger     cmtlog.Logger
	engine     *gin.Engine
	indexer    *ChainIndexer
	listenAddr string
}

func NewService(listenAddr string, indexer *ChainIndexer, logger cmtlog.Logger) *Service {
	r := gin.New()
	s := &Service{
		logger:     logger.With("module", "api"),
		engine:     r,
		indexer:    indexer,
		listenAddr: listenAddr,
	}
	r.Use(gin.Recovery(), requestId(), s.accessLog())
	r.GET("/airlines", s.handleGetAirlines)
	r.GET("/airlines/:address", s.handleGetAirline)
	r.GET("/flights", s.handleGetFlights)
	r.GET("/flights/:key", s.handleGetFlight)
	r.GET("/flights/:key/policies", s.handleGetPolicies)
	r.GET("/requests", s.handleGetRequests)
	r.GET("/insurees/:address/credits", s.handleGetCredits)
	return s
}

func (s *Service) Handler() http.Handler {
	return s.engine
}

// Start serves until ctx is done.
func (s *Service) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.listenAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	s.logger.Info("api listening", "addr", s.listenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// requestId tags every request, keeping an id supplied by the caller.
func requestId() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIdHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(RequestIdHeader, id)
		c.Header(RequestIdHeader, id)
		c.Next()
	}
}

func (s *Service) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"id", c.GetString(RequestIdHeader),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start))
	}
}

type PageReq struct {
	Page     int `form:"page" binding:"min=0"`
	PageSize int `form:"page_size" binding:"min=0,max=100"`
}

func (p *PageReq) size() int {
	if p.PageSize == 0 {
		return 20
	}
	return p.PageSize
}

func bindPage(c *gin.Context) (PageReq, bool) {
	var p PageReq
	if err := c.ShouldBindQuery(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return p, false
	}
	return p, true
}

func addressParam(c *gin.Context) (string, bool) {
	a := c.Param("address")
	if !common.IsHexAddress(a) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address"})
		return "", false
	}
	return common.HexToAddress(a).Hex(), true
}

func keyParam(c *gin.Context) (string, bool) {
	k := c.Param("key")
	b, err := hexBytes(k)
	if err != nil || len(b) != common.HashLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid flight key"})
		return "", false
	}
	return common.BytesToHash(b).Hex(), true
}

func hexBytes(s string) ([]byte, error) {
	return hexutil.Decode(s)
}

func (s *Service) fail(c *gin.Context, err error) {
	if gorm.IsRecordNotFoundError(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	s.logger.Error("api query fail", "path", c.Request.URL.Path, "err", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

type GetAirlinesResponse struct {
	Airlines []Airline `json:"airlines"`
	Total    uint64    `json:"total"`
}

func (s *Service) handleGetAirlines(c *gin.Context) {
	p, ok := bindPage(c)
	if !ok {
		return
	}
	airlines, total, err := s.indexer.getAirlines(p.Page, p.size())
	if err != nil {
		s.fail(c, err)
		return
	}
	if airlines == nil {
		airlines = make([]Airline, 0)
	}
	c.JSON(http.StatusOK, GetAirlinesResponse{Airlines: airlines, Total: total})
}

type AirlineInfo struct {
	Airline Airline       `json:"airline"`
	Votes   []AirlineVote `json:"votes"`
}

// handleGetAirline also answers for candidates that only have votes so far.
func (s *Service) handleGetAirline(c *gin.Context) {
	addr, ok := addressParam(c)
	if !ok {
		return
	}
	votes, err := s.indexer.getAirlineVotes(addr)
	if err != nil {
		s.fail(c, err)
		return
	}
	a, err := s.indexer.getAirline(addr)
	if err != nil {
		if !gorm.IsRecordNotFoundError(err) || len(votes) == 0 {
			s.fail(c, err)
			return
		}
		a = &Airline{Address: addr}
	}
	if votes == nil {
		votes = make([]AirlineVote, 0)
	}
	c.JSON(http.StatusOK, AirlineInfo{Airline: *a, Votes: votes})
}

type GetFlightsResponse struct {
	Flights []Flight `json:"flights"`
	Total   uint64   `json:"total"`
}

func (s *Service) handleGetFlights(c *gin.Context) {
	p, ok := bindPage(c)
	if !ok {
		return
	}
	airline := c.Query("airline")
	if airline != "" {
		if !common.IsHexAddress(airline) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid airline"})
			return
		}
		airline = common.HexToAddress(airline).Hex()
	}
	flights, total, err := s.indexer.getFlights(airline, p.Page, p.size())
	if err != nil {
		s.fail(c, err)
		return
	}
	if flights == nil {
		flights = make([]Flight, 0)
	}
	c.JSON(http.StatusOK, GetFlightsResponse{Flights: flights, Total: total})
}

func (s *Service) handleGetFlight(c *gin.Context) {
	key, ok := keyParam(c)
	if !ok {
		return
	}
	f, err := s.indexer.getFlight(key)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

type GetPoliciesResponse struct {
	Flight   Flight   `json:"flight"`
	Policies []Policy `json:"policies"`
}

func (s *Service) handleGetPolicies(c *gin.Context) {
	key, ok := keyParam(c)
	if !ok {
		return
	}
	f, err := s.indexer.getFlight(key)
	if err != nil {
		s.fail(c, err)
		return
	}
	policies, err := s.indexer.getPoliciesByFlight(key)
	if err != nil {
		s.fail(c, err)
		return
	}
	if policies == nil {
		policies = make([]Policy, 0)
	}
	c.JSON(http.StatusOK, GetPoliciesResponse{Flight: *f, Policies: policies})
}

type RequestInfo struct {
	Request StatusRequest  `json:"request"`
	Reports []OracleReport `json:"reports"`
}

type GetRequestsResponse struct {
	Requests []RequestInfo `json:"requests"`
	Total    uint64        `json:"total"`
}

func (s *Service) handleGetRequests(c *gin.Context) {
	p, ok := bindPage(c)
	if !ok {
		return
	}
	flight := c.Query("flight")
	if flight != "" {
		b, err := hexBytes(flight)
		if err != nil || len(b) != common.HashLength {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid flight key"})
			return
		}
		flight = common.BytesToHash(b).Hex()
	}
	reqs, total, err := s.indexer.getRequests(flight, p.Page, p.size())
	if err != nil {
		s.fail(c, err)
		return
	}
	response := GetRequestsResponse{Requests: make([]RequestInfo, 0, len(reqs)), Total: total}
	for _, r := range reqs {
		reports, err := s.indexer.getReportsByRequest(r.Key)
		if err != nil {
			s.fail(c, err)
			return
		}
		if reports == nil {
			reports = make([]OracleReport, 0)
		}
		response.Requests = append(response.Requests, RequestInfo{Request: r, Reports: reports})
	}
	c.JSON(http.StatusOK, response)
}

type CreditsInfo struct {
	Insuree  string   `json:"insuree"`
	Balance  uint64   `json:"balance"`
	Credited uint64   `json:"credited"`
	Paid     uint64   `json:"paid"`
	Credits  []Credit `json:"credits"`
	Payouts  []Payout `json:"payouts"`
}

func (s *Service) handleGetCredits(c *gin.Context) {
	addr, ok := addressParam(c)
	if !ok {
		return
	}
	credits, err := s.indexer.getCredits(addr)
	if err != nil {
		s.fail(c, err)
		return
	}
	payouts, err := s.indexer.getPayouts(addr)
	if err != nil {
		s.fail(c, err)
		return
	}
	info := CreditsInfo{
		Insuree: addr,
		Credits: make([]Credit, 0, len(credits)),
		Payouts: make([]Payout, 0, len(payouts)),
	}
	for _, cr := range credits {
		info.Credited += cr.Amount
		info.Credits = append(info.Credits, cr)
	}
	for _, p := range payouts {
		info.Paid += p.Amount
		info.Payouts = append(info.Payouts, p)
	}
	if info.Credited > info.Paid {
		info.Balance = info.Credited - info.Paid
	}
	c.JSON(http.StatusOK, info)
}
