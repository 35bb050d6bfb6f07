package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/calehh/surety-app/surety"
	"github.com/calehh/surety-app/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
)

var ErrStatusUnavailable = errors.New("flight status unavailable")

// StatusSource tells an oracle what happened to a flight.
type StatusSource interface {
	FlightStatus(ctx context.Context, airline common.Address, designator string, timestamp uint64) (types.StatusCode, error)
}

var _ StatusSource = &HTTPStatusSource{}
var _ StatusSource = &MockStatusSource{}

// HTTPStatusSource asks a flight data service at
// GET {url}/flights/{airline}/{designator}/{timestamp}, which answers
// {"status": "<name or code>"}.
type HTTPStatusSource struct {
	Url    string
	client *http.Client
	logger cmtlog.Logger
}

func NewHTTPStatusSource(baseUrl string, logger cmtlog.Logger) *HTTPStatusSource {
	return &HTTPStatusSource{
		Url:    baseUrl,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger.With("module", "statusSource"),
	}
}

type statusResponse struct {
	Status json.RawMessage `json:"status"`
}

func (s *HTTPStatusSource) FlightStatus(ctx context.Context, airline common.Address, designator string, timestamp uint64) (types.StatusCode, error) {
	u, err := url.JoinPath(s.Url, "flights", airline.Hex(), url.PathEscape(designator), strconv.FormatUint(timestamp, 10))
	if err != nil {
		return types.StatusUnknown, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return types.StatusUnknown, err
	}
	res, err := s.client.Do(req)
	if err != nil {
		s.logger.Error("get flight status fail", "url", u, "err", err)
		return types.StatusUnknown, err
	}
	defer res.Body.Close()
	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<16))
	if err != nil {
		return types.StatusUnknown, err
	}
	if res.StatusCode == http.StatusNotFound {
		return types.StatusUnknown, fmt.Errorf("%w: %s %s", ErrStatusUnavailable, designator, res.Status)
	}
	if res.StatusCode != http.StatusOK {
		return types.StatusUnknown, fmt.Errorf("status source: %s", res.Status)
	}
	var sr statusResponse
	if err = json.Unmarshal(buf, &sr); err != nil {
		return types.StatusUnknown, err
	}
	var raw string
	if err = json.Unmarshal(sr.Status, &raw); err != nil {
		// numeric code
		raw = string(sr.Status)
	}
	return types.ParseStatusCode(raw)
}

// MockStatusSource answers from a fixed table, falling back to Default.
type MockStatusSource struct {
	mtx      sync.RWMutex
	statuses map[common.Hash]types.StatusCode
	Default  types.StatusCode
}

func NewMockStatusSource(def types.StatusCode) *MockStatusSource {
	return &MockStatusSource{
		statuses: make(map[common.Hash]types.StatusCode),
		Default:  def,
	}
}

func (m *MockStatusSource) Set(airline common.Address, designator string, timestamp uint64, code types.StatusCode) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.statuses[surety.FlightKey(airline, designator, timestamp)] = code
}

func (m *MockStatusSource) FlightStatus(ctx context.Context, airline common.Address, designator string, timestamp uint64) (types.StatusCode, error) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	if c, ok := m.statuses[surety.FlightKey(airline, designator, timestamp)]; ok {
		return c, nil
	}
	if m.Default == types.StatusUnknown {
		return types.StatusUnknown, ErrStatusUnavailable
	}
	return m.Default, nil
}
