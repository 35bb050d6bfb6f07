package types

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// StatusCode is the flight status reported by oracles.
type StatusCode uint8

const (
	StatusUnknown       StatusCode = 0
	StatusOnTime        StatusCode = 10
	StatusLateAirline   StatusCode = 20
	StatusLateWeather   StatusCode = 30
	StatusLateTechnical StatusCode = 40
	StatusLateOther     StatusCode = 50
)

var statusNames = map[StatusCode]string{
	StatusUnknown:       "unknown",
	StatusOnTime:        "on_time",
	StatusLateAirline:   "late_airline",
	StatusLateWeather:   "late_weather",
	StatusLateTechnical: "late_technical",
	StatusLateOther:     "late_other",
}

func (c StatusCode) Valid() bool {
	_, ok := statusNames[c]
	return ok
}

func (c StatusCode) String() string {
	if n, ok := statusNames[c]; ok {
		return n
	}
	return fmt.Sprintf("status(%d)", uint8(c))
}

// ParseStatusCode accepts either the numeric code or its name.
func ParseStatusCode(s string) (StatusCode, error) {
	for c, n := range statusNames {
		if n == s || fmt.Sprintf("%d", c) == s {
			return c, nil
		}
	}
	return StatusUnknown, fmt.Errorf("unknown status code %q", s)
}

type Airline struct {
	Address      common.Address `json:"address"`
	Name         string         `json:"name"`
	IsRegistered bool           `json:"is_registered"`
	IsFunded     bool           `json:"is_funded"`
	Funds        uint64         `json:"funds"`
}

// AirlineVote collects the distinct registered airlines backing a candidate.
type AirlineVote struct {
	Candidate common.Address   `json:"candidate"`
	Name      string           `json:"name"`
	Voters    []common.Address `json:"voters"`
}

func (v *AirlineVote) HasVoted(voter common.Address) bool {
	for _, a := range v.Voters {
		if a == voter {
			return true
		}
	}
	return false
}

func (v *AirlineVote) Count() uint64 {
	return uint64(len(v.Voters))
}

type Flight struct {
	Key              common.Hash    `json:"key"`
	Airline          common.Address `json:"airline"`
	Designator       string         `json:"designator"`
	Timestamp        uint64         `json:"timestamp"`
	IsRegistered     bool           `json:"is_registered"`
	StatusCode       StatusCode     `json:"status_code"`
	UpdatedTimestamp uint64         `json:"updated_timestamp"`
}

type Policy struct {
	Insuree    common.Address `json:"insuree"`
	Premium    uint64         `json:"premium"`
	Airline    common.Address `json:"airline"`
	Designator string         `json:"designator"`
	Timestamp  uint64         `json:"timestamp"`
}

type Oracle struct {
	Address      common.Address `json:"address"`
	IsRegistered bool           `json:"is_registered"`
	Indexes      [3]uint8       `json:"indexes"`
}

func (o *Oracle) HasIndex(index uint8) bool {
	for _, i := range o.Indexes {
		if i == index {
			return true
		}
	}
	return false
}

type StatusResponses struct {
	Code    StatusCode       `json:"code"`
	Oracles []common.Address `json:"oracles"`
}

type StatusRequest struct {
	Key        common.Hash       `json:"key"`
	Index      uint8             `json:"index"`
	Airline    common.Address    `json:"airline"`
	Designator string            `json:"designator"`
	Timestamp  uint64            `json:"timestamp"`
	Requester  common.Address    `json:"requester"`
	IsOpen     bool              `json:"is_open"`
	Finalized  bool              `json:"finalized"`
	Responses  []StatusResponses `json:"responses"`
}

// Reported returns the position of code in Responses, or -1.
func (r *StatusRequest) Reported(code StatusCode) int {
	for i := range r.Responses {
		if r.Responses[i].Code == code {
			return i
		}
	}
	return -1
}

func (r *StatusRequest) HasReported(oracle common.Address) bool {
	for _, rs := range r.Responses {
		for _, o := range rs.Oracles {
			if o == oracle {
				return true
			}
		}
	}
	return false
}

const (
	Gwei  = uint64(1)
	Ether = 1_000_000_000 * Gwei
)

// Params are the economic and protocol constants fixed at genesis.
type Params struct {
	MinFunding        uint64 `json:"min_funding"`
	MaxInsurance      uint64 `json:"max_insurance"`
	OracleFee         uint64 `json:"oracle_fee"`
	PayoutPercentage  uint64 `json:"payout_percentage"`
	BootstrapAirlines uint64 `json:"bootstrap_airlines"`
	Quorum            uint64 `json:"quorum"`
	IndexRange        uint8  `json:"index_range"`
	NonceWrap         uint64 `json:"nonce_wrap"`
}

func DefaultParams() Params {
	return Params{
		MinFunding:        10 * Ether,
		MaxInsurance:      1 * Ether,
		OracleFee:         1 * Ether,
		PayoutPercentage:  150,
		BootstrapAirlines: 4,
		Quorum:            3,
		IndexRange:        10,
		NonceWrap:         250,
	}
}

var ErrInvalidParams = errors.New("invalid params")

// Validate checks params against the depth of the entropy history they draw from.
func (p *Params) Validate(historyDepth uint64) error {
	switch {
	case p.MinFunding == 0:
		return fmt.Errorf("%w: min_funding must be positive", ErrInvalidParams)
	case p.MaxInsurance == 0:
		return fmt.Errorf("%w: max_insurance must be positive", ErrInvalidParams)
	case p.PayoutPercentage == 0:
		return fmt.Errorf("%w: payout_percentage must be positive", ErrInvalidParams)
	case p.Quorum == 0:
		return fmt.Errorf("%w: quorum must be positive", ErrInvalidParams)
	case p.IndexRange < 3:
		return fmt.Errorf("%w: index_range must leave room for three distinct indexes", ErrInvalidParams)
	case p.NonceWrap == 0 || p.NonceWrap >= historyDepth:
		return fmt.Errorf("%w: nonce_wrap must be in (0, %d)", ErrInvalidParams, historyDepth)
	}
	return nil
}
