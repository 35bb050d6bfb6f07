package agent

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/calehh/surety-app/surety"
	"github.com/calehh/surety-app/types"
	abci "github.com/cometbft/cometbft/abci/types"
	cmtbytes "github.com/cometbft/cometbft/libs/bytes"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	comethttp "github.com/cometbft/cometbft/rpc/client/http"
	ctypes "github.com/cometbft/cometbft/rpc/core/types"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
)

// ChainClient is the part of the CometBFT RPC the agents use.
type ChainClient interface {
	Status(ctx context.Context) (*ctypes.ResultStatus, error)
	BlockResults(ctx context.Context, height *int64) (*ctypes.ResultBlockResults, error)
	ABCIQuery(ctx context.Context, path string, data cmtbytes.HexBytes) (*ctypes.ResultABCIQuery, error)
	BroadcastTxSync(ctx context.Context, tx cmttypes.Tx) (*ctypes.ResultBroadcastTx, error)
}

func NewHTTPChainClient(url string) (*comethttp.HTTP, error) {
	return comethttp.New(url, "/websocket")
}

// EventFunc receives every event of a successful tx once it is indexed.
type EventFunc func(ctx context.Context, height int64, event abci.Event)

type ChainIndexer struct {
	logger cmtlog.Logger
	Height int64
	db     *gorm.DB
	cli    ChainClient

	eventHandlers map[string]eventHandler

	mtx         sync.RWMutex
	subscribers []EventFunc
}

func NewChainIndexer(logger cmtlog.Logger, dbPath string, cli ChainClient) (*ChainIndexer, error) {
	logger = logger.With("module", "indexer")
	logger.Info("NewChainIndexer", "dbPath", dbPath)
	db, err := gorm.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	err = db.AutoMigrate(&Height{}, &Airline{}, &AirlineVote{}, &Flight{}, &Policy{},
		&Credit{}, &Payout{}, &Oracle{}, &StatusRequest{}, &OracleReport{}).Error
	if err != nil {
		db.Close()
		return nil, err
	}
	h := Height{Id: 1}
	if err = db.First(&h).Error; err != nil && !gorm.IsRecordNotFoundError(err) {
		db.Close()
		return nil, err
	}

	c := &ChainIndexer{
		logger: logger,
		Height: int64(h.Height + 1),
		db:     db,
		cli:    cli,
	}
	c.eventHandlers = map[string]eventHandler{
		types.EventAirlineRegisteredType:  c.handleEventAirlineRegistered,
		types.EventAirlineVoteType:        c.handleEventAirlineVote,
		types.EventAirlineFundedType:      c.handleEventAirlineFunded,
		types.EventFlightRegisteredType:   c.handleEventFlightRegistered,
		types.EventInsurancePurchasedType: c.handleEventInsurancePurchased,
		types.EventCreditAvailableType:    c.handleEventCreditAvailable,
		types.EventCreditIssuedType:       c.handleEventCreditIssued,
		types.EventPayoutType:             c.handleEventPayout,
		types.EventOracleRegisteredType:   c.handleEventOracleRegistered,
		types.EventOracleRequestType:      c.handleEventOracleRequest,
		types.EventOracleReportType:       c.handleEventOracleReport,
		types.EventFlightStatusType:       c.handleEventFlightStatus,
	}
	return c, nil
}

func (c *ChainIndexer) Close() error {
	return c.db.Close()
}

// Subscribe registers fn for events indexed from now on.
func (c *ChainIndexer) Subscribe(fn EventFunc) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

type eventHandler func(event abci.Event, height int64) error

var errDecodeEvent = errors.New("decode event fail")

func (c *ChainIndexer) handleEvent(ctx context.Context, event abci.Event, height int64) {
	if h, ok := c.eventHandlers[event.Type]; ok {
		if err := h(event, height); err != nil {
			c.logger.Error("index event fail", "type", event.Type, "height", height, "err", err)
		}
	}
	c.mtx.RLock()
	subs := c.subscribers
	c.mtx.RUnlock()
	for _, fn := range subs {
		fn(ctx, height, event)
	}
}

func (c *ChainIndexer) handleEventAirlineRegistered(event abci.Event, height int64) error {
	ev := types.DecodeEventAirlineRegistered(event)
	if ev == nil {
		return errDecodeEvent
	}
	var a Airline
	err := c.db.Where("address = ?", ev.Airline.Hex()).First(&a).Error
	if err != nil && !gorm.IsRecordNotFoundError(err) {
		return err
	}
	a.Address = ev.Airline.Hex()
	a.Name = ev.Name
	a.Registered = true
	a.Votes = ev.Votes
	a.Height = uint64(height)
	return c.db.Save(&a).Error
}

func (c *ChainIndexer) handleEventAirlineVote(event abci.Event, height int64) error {
	ev := types.DecodeEventAirlineVote(event)
	if ev == nil {
		return errDecodeEvent
	}
	return c.db.Create(&AirlineVote{
		Candidate: ev.Candidate.Hex(),
		Voter:     ev.Voter.Hex(),
		Votes:     ev.Votes,
		Needed:    ev.Needed,
		Height:    uint64(height),
	}).Error
}

func (c *ChainIndexer) handleEventAirlineFunded(event abci.Event, height int64) error {
	ev := types.DecodeEventAirlineFunded(event)
	if ev == nil {
		return errDecodeEvent
	}
	a, err := c.loadAirline(ev.Airline.Hex())
	if err != nil {
		return err
	}
	a.Funds = ev.Funds
	a.Funded = ev.Funded
	return c.db.Save(a).Error
}

// loadAirline returns the indexed row of address, or a fresh registered one.
// Only registered airlines emit events, so a missing row is one admitted
// before the indexer saw it.
func (c *ChainIndexer) loadAirline(address string) (*Airline, error) {
	a := &Airline{Address: address, Registered: true}
	err := c.db.Where("address = ?", address).First(a).Error
	if err != nil && !gorm.IsRecordNotFoundError(err) {
		return nil, err
	}
	return a, nil
}

// seedAirlines stores the airlines admitted at genesis, which emit no events.
func (c *ChainIndexer) seedAirlines(ctx context.Context) error {
	var airlines []types.Airline
	found, err := queryChain(ctx, c.cli, "/airlines/", nil, &airlines)
	if err != nil || !found {
		return err
	}
	for _, v := range airlines {
		if !v.IsRegistered {
			continue
		}
		a, err := c.loadAirline(v.Address.Hex())
		if err != nil {
			return err
		}
		a.Name = v.Name
		a.Funded = v.IsFunded
		a.Funds = v.Funds
		if err = c.db.Save(a).Error; err != nil {
			return err
		}
	}
	c.logger.Info("seeded airlines", "count", len(airlines))
	return nil
}

func (c *ChainIndexer) handleEventFlightRegistered(event abci.Event, height int64) error {
	ev := types.DecodeEventFlightRegistered(event)
	if ev == nil {
		return errDecodeEvent
	}
	return c.db.Save(&Flight{
		Key:        ev.Key.Hex(),
		Airline:    ev.Airline.Hex(),
		Designator: ev.Designator,
		Timestamp:  ev.Timestamp,
		StatusName: types.StatusUnknown.String(),
		Height:     uint64(height),
	}).Error
}

func (c *ChainIndexer) handleEventInsurancePurchased(event abci.Event, height int64) error {
	ev := types.DecodeEventInsurancePurchased(event)
	if ev == nil {
		return errDecodeEvent
	}
	err := c.db.Create(&Policy{
		FlightKey: ev.Key.Hex(),
		Insuree:   ev.Insuree.Hex(),
		Airline:   ev.Airline.Hex(),
		Premium:   ev.Premium,
		Height:    uint64(height),
	}).Error
	if err != nil {
		return err
	}
	return c.setAirlineFunds(ev.Airline.Hex(), ev.Funds)
}

func (c *ChainIndexer) setAirlineFunds(address string, funds uint64) error {
	a, err := c.loadAirline(address)
	if err != nil {
		return err
	}
	a.Funds = funds
	return c.db.Save(a).Error
}

func (c *ChainIndexer) handleEventCreditAvailable(event abci.Event, height int64) error {
	ev := types.DecodeEventCreditAvailable(event)
	if ev == nil {
		return errDecodeEvent
	}
	return c.db.Create(&Credit{
		FlightKey: ev.Key.Hex(),
		Insuree:   ev.Insuree.Hex(),
		Amount:    ev.Amount,
		Height:    uint64(height),
	}).Error
}

func (c *ChainIndexer) handleEventCreditIssued(event abci.Event, height int64) error {
	ev := types.DecodeEventCreditIssued(event)
	if ev == nil {
		return errDecodeEvent
	}
	err := c.db.Model(&Flight{}).Where("key = ?", ev.Key.Hex()).Update("credited", true).Error
	if err != nil || ev.Policies == 0 {
		return err
	}
	return c.setAirlineFunds(ev.Airline.Hex(), ev.Funds)
}

func (c *ChainIndexer) handleEventPayout(event abci.Event, height int64) error {
	ev := types.DecodeEventPayout(event)
	if ev == nil {
		return errDecodeEvent
	}
	return c.db.Create(&Payout{
		Insuree: ev.Insuree.Hex(),
		Amount:  ev.Amount,
		Height:  uint64(height),
	}).Error
}

func (c *ChainIndexer) handleEventOracleRegistered(event abci.Event, height int64) error {
	ev := types.DecodeEventOracleRegistered(event)
	if ev == nil {
		return errDecodeEvent
	}
	idxs := make([]string, len(ev.Indexes))
	for i, v := range ev.Indexes {
		idxs[i] = strconv.Itoa(int(v))
	}
	return c.db.Save(&Oracle{
		Address: ev.Oracle.Hex(),
		Indexes: strings.Join(idxs, ","),
		Height:  uint64(height),
	}).Error
}

func (c *ChainIndexer) handleEventOracleRequest(event abci.Event, height int64) error {
	ev := types.DecodeEventOracleRequest(event)
	if ev == nil {
		return errDecodeEvent
	}
	return c.db.Save(&StatusRequest{
		Key:        surety.RequestKey(ev.Index, ev.Airline, ev.Designator, ev.Timestamp).Hex(),
		Index:      ev.Index,
		FlightKey:  surety.FlightKey(ev.Airline, ev.Designator, ev.Timestamp).Hex(),
		Airline:    ev.Airline.Hex(),
		Designator: ev.Designator,
		Timestamp:  ev.Timestamp,
		Requester:  ev.Requester.Hex(),
		Height:     uint64(height),
	}).Error
}

func (c *ChainIndexer) handleEventOracleReport(event abci.Event, height int64) error {
	ev := types.DecodeEventOracleReport(event)
	if ev == nil {
		return errDecodeEvent
	}
	return c.db.Create(&OracleReport{
		RequestKey: surety.RequestKey(ev.Index, ev.Airline, ev.Designator, ev.Timestamp).Hex(),
		Oracle:     ev.Oracle.Hex(),
		Status:     uint8(ev.Status),
		Count:      ev.Count,
		Height:     uint64(height),
	}).Error
}

func (c *ChainIndexer) handleEventFlightStatus(event abci.Event, height int64) error {
	ev := types.DecodeEventFlightStatus(event)
	if ev == nil {
		return errDecodeEvent
	}
	return c.db.Model(&Flight{}).Where("key = ?", ev.Key.Hex()).Updates(map[string]interface{}{
		"status":         uint8(ev.Status),
		"status_name":    ev.Status.String(),
		"status_updated": ev.UpdatedAt,
	}).Error
}

// IndexBlock indexes the events of the successful txs of one block.
func (c *ChainIndexer) IndexBlock(ctx context.Context, height int64, results []*abci.ExecTxResult) error {
	for _, res := range results {
		if res == nil || res.Code != surety.CodeOK {
			continue
		}
		for _, event := range res.Events {
			c.handleEvent(ctx, event, height)
		}
	}
	return c.db.Save(&Height{Id: 1, Height: uint64(height)}).Error
}

// Sync indexes every block up to the node's latest height.
func (c *ChainIndexer) Sync(ctx context.Context) error {
	st, err := c.cli.Status(ctx)
	if err != nil {
		return fmt.Errorf("get status: %w", err)
	}
	if c.Height == 1 && st.SyncInfo.LatestBlockHeight >= 1 {
		if err := c.seedAirlines(ctx); err != nil {
			return fmt.Errorf("seed airlines: %w", err)
		}
	}
	for st.SyncInfo.LatestBlockHeight >= c.Height {
		if err := ctx.Err(); err != nil {
			return err
		}
		height := c.Height
		res, err := c.cli.BlockResults(ctx, &height)
		if err != nil {
			return fmt.Errorf("get block results %d: %w", height, err)
		}
		c.logger.Debug("indexer syncing", "height", height)
		if err := c.IndexBlock(ctx, height, res.TxsResults); err != nil {
			return fmt.Errorf("index block %d: %w", height, err)
		}
		c.Height++
	}
	return nil
}

func (c *ChainIndexer) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Sync(ctx); err != nil && !errors.Is(err, context.Canceled) {
				c.logger.Error("indexer sync fail", "height", c.Height, "err", err)
			}
		}
	}
}

func (c *ChainIndexer) getAirlines(page int, pageSize int) ([]Airline, uint64, error) {
	var airlines []Airline
	err := c.db.Order("height asc").Offset(page * pageSize).Limit(pageSize).Find(&airlines).Error
	if err != nil {
		return nil, 0, err
	}
	var total uint64
	err = c.db.Model(&Airline{}).Count(&total).Error
	if err != nil {
		return nil, 0, err
	}
	return airlines, total, nil
}

func (c *ChainIndexer) getAirline(address string) (*Airline, error) {
	var a Airline
	err := c.db.Where("address = ?", address).First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *ChainIndexer) getAirlineVotes(candidate string) ([]AirlineVote, error) {
	var votes []AirlineVote
	err := c.db.Where("candidate = ?", candidate).Order("id asc").Find(&votes).Error
	if err != nil {
		return nil, err
	}
	return votes, nil
}

func (c *ChainIndexer) getFlights(airline string, page int, pageSize int) ([]Flight, uint64, error) {
	q := c.db.Model(&Flight{})
	if airline != "" {
		q = q.Where("airline = ?", airline)
	}
	var total uint64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var flights []Flight
	err := q.Order("timestamp desc").Offset(page * pageSize).Limit(pageSize).Find(&flights).Error
	if err != nil {
		return nil, 0, err
	}
	return flights, total, nil
}

func (c *ChainIndexer) getFlight(key string) (*Flight, error) {
	var f Flight
	err := c.db.Where("key = ?", key).First(&f).Error
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (c *ChainIndexer) getPoliciesByFlight(key string) ([]Policy, error) {
	var policies []Policy
	err := c.db.Where("flight_key = ?", key).Order("id asc").Find(&policies).Error
	if err != nil {
		return nil, err
	}
	return policies, nil
}

func (c *ChainIndexer) getRequests(flightKey string, page int, pageSize int) ([]StatusRequest, uint64, error) {
	q := c.db.Model(&StatusRequest{})
	if flightKey != "" {
		q = q.Where("flight_key = ?", flightKey)
	}
	var total uint64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var reqs []StatusRequest
	err := q.Order("height desc").Offset(page * pageSize).Limit(pageSize).Find(&reqs).Error
	if err != nil {
		return nil, 0, err
	}
	return reqs, total, nil
}

func (c *ChainIndexer) getReportsByRequest(key string) ([]OracleReport, error) {
	var reports []OracleReport
	err := c.db.Where("request_key = ?", key).Order("id asc").Find(&reports).Error
	if err != nil {
		return nil, err
	}
	return reports, nil
}

func (c *ChainIndexer) getCredits(insuree string) ([]Credit, error) {
	var credits []Credit
	err := c.db.Where("insuree = ?", insuree).Order("id desc").Find(&credits).Error
	if err != nil {
		return nil, err
	}
	return credits, nil
}

func (c *ChainIndexer) getPayouts(insuree string) ([]Payout, error) {
	var payouts []Payout
	err := c.db.Where("insuree = ?", insuree).Order("id desc").Find(&payouts).Error
	if err != nil {
		return nil, err
	}
	return payouts, nil
}
