package types

import (
	"fmt"
	"strconv"
	"strings"

	abci "github.com/cometbft/cometbft/abci/types"
	"github.com/ethereum/go-ethereum/common"
)

const (
	EventOperatingType          = "operating"
	EventAirlineRegisteredType  = "airline_registered"
	EventAirlineVoteType        = "airline_vote"
	EventAirlineFundedType      = "airline_funded"
	EventFlightRegisteredType   = "flight_registered"
	EventInsurancePurchasedType = "insurance_purchased"
	EventCreditAvailableType    = "credit_available"
	EventCreditIssuedType       = "credit_issued"
	EventPayoutType             = "payout"
	EventOracleRegisteredType   = "oracle_registered"
	EventOracleRequestType      = "oracle_request"
	EventOracleReportType       = "oracle_report"
	EventFlightStatusType       = "flight_status"
)

// attrReader decodes event attributes, remembering the first failure.
type attrReader struct {
	vals map[string]string
	err  error
}

func newAttrReader(ev abci.Event) *attrReader {
	r := &attrReader{vals: make(map[string]string, len(ev.Attributes))}
	for _, a := range ev.Attributes {
		r.vals[a.Key] = a.Value
	}
	return r
}

func (r *attrReader) str(key string) string {
	return r.vals[key]
}

func (r *attrReader) u64(key string) uint64 {
	if r.err != nil {
		return 0
	}
	v, err := strconv.ParseUint(r.vals[key], 10, 64)
	if err != nil {
		r.err = fmt.Errorf("attribute %s: %w", key, err)
	}
	return v
}

func (r *attrReader) u8(key string) uint8 {
	if r.err != nil {
		return 0
	}
	v, err := strconv.ParseUint(r.vals[key], 10, 8)
	if err != nil {
		r.err = fmt.Errorf("attribute %s: %w", key, err)
	}
	return uint8(v)
}

func (r *attrReader) boolean(key string) bool {
	if r.err != nil {
		return false
	}
	v, err := strconv.ParseBool(r.vals[key])
	if err != nil {
		r.err = fmt.Errorf("attribute %s: %w", key, err)
	}
	return v
}

func (r *attrReader) addr(key string) common.Address {
	v := r.vals[key]
	if r.err == nil && !common.IsHexAddress(v) {
		r.err = fmt.Errorf("attribute %s: invalid address %q", key, v)
	}
	return common.HexToAddress(v)
}

func (r *attrReader) hash(key string) common.Hash {
	return common.HexToHash(r.vals[key])
}

type EventOperating struct {
	Operational bool   `json:"operational"`
	Owner       string `json:"owner"`
}

func EncodeEventOperating(event *EventOperating) abci.Event {
	return abci.Event{
		Type: EventOperatingType,
		Attributes: []abci.EventAttribute{
			{Key: "operational", Value: fmt.Sprintf("%v", event.Operational), Index: false},
			{Key: "owner", Value: event.Owner, Index: false},
		},
	}
}

type EventAirlineRegistered struct {
	Airline   common.Address `json:"airline"`
	Name      string         `json:"name"`
	Registrar common.Address `json:"registrar"`
	Votes     uint64         `json:"votes"`
}

func EncodeEventAirlineRegistered(event *EventAirlineRegistered) abci.Event {
	return abci.Event{
		Type: EventAirlineRegisteredType,
		Attributes: []abci.EventAttribute{
			{Key: "airline", Value: event.Airline.Hex(), Index: true},
			{Key: "name", Value: event.Name, Index: false},
			{Key: "registrar", Value: event.Registrar.Hex(), Index: false},
			{Key: "votes", Value: fmt.Sprintf("%v", event.Votes), Index: false},
		},
	}
}

func DecodeEventAirlineRegistered(originEvent abci.Event) *EventAirlineRegistered {
	r := newAttrReader(originEvent)
	event := &EventAirlineRegistered{
		Airline:   r.addr("airline"),
		Name:      r.str("name"),
		Registrar: r.addr("registrar"),
		Votes:     r.u64("votes"),
	}
	if r.err != nil {
		return nil
	}
	return event
}

type EventAirlineVote struct {
	Candidate common.Address `json:"candidate"`
	Voter     common.Address `json:"voter"`
	Votes     uint64         `json:"votes"`
	Needed    uint64         `json:"needed"`
}

func EncodeEventAirlineVote(event *EventAirlineVote) abci.Event {
	return abci.Event{
		Type: EventAirlineVoteType,
		Attributes: []abci.EventAttribute{
			{Key: "candidate", Value: event.Candidate.Hex(), Index: true},
			{Key: "voter", Value: event.Voter.Hex(), Index: true},
			{Key: "votes", Value: fmt.Sprintf("%v", event.Votes), Index: false},
			{Key: "needed", Value: fmt.Sprintf("%v", event.Needed), Index: false},
		},
	}
}

func DecodeEventAirlineVote(originEvent abci.Event) *EventAirlineVote {
	r := newAttrReader(originEvent)
	event := &EventAirlineVote{
		Candidate: r.addr("candidate"),
		Voter:     r.addr("voter"),
		Votes:     r.u64("votes"),
		Needed:    r.u64("needed"),
	}
	if r.err != nil {
		return nil
	}
	return event
}

type EventAirlineFunded struct {
	Airline common.Address `json:"airline"`
	Amount  uint64         `json:"amount"`
	Funds   uint64         `json:"funds"`
	Funded  bool           `json:"funded"`
}

func EncodeEventAirlineFunded(event *EventAirlineFunded) abci.Event {
	return abci.Event{
		Type: EventAirlineFundedType,
		Attributes: []abci.EventAttribute{
			{Key: "airline", Value: event.Airline.Hex(), Index: true},
			{Key: "amount", Value: fmt.Sprintf("%v", event.Amount), Index: false},
			{Key: "funds", Value: fmt.Sprintf("%v", event.Funds), Index: false},
			{Key: "funded", Value: fmt.Sprintf("%v", event.Funded), Index: false},
		},
	}
}

func DecodeEventAirlineFunded(originEvent abci.Event) *EventAirlineFunded {
	r := newAttrReader(originEvent)
	event := &EventAirlineFunded{
		Airline: r.addr("airline"),
		Amount:  r.u64("amount"),
		Funds:   r.u64("funds"),
		Funded:  r.boolean("funded"),
	}
	if r.err != nil {
		return nil
	}
	return event
}

type EventFlightRegistered struct {
	Key        common.Hash    `json:"key"`
	Airline    common.Address `json:"airline"`
	Designator string         `json:"designator"`
	Timestamp  uint64         `json:"timestamp"`
}

func EncodeEventFlightRegistered(event *EventFlightRegistered) abci.Event {
	return abci.Event{
		Type: EventFlightRegisteredType,
		Attributes: []abci.EventAttribute{
			{Key: "key", Value: event.Key.Hex(), Index: true},
			{Key: "airline", Value: event.Airline.Hex(), Index: true},
			{Key: "designator", Value: event.Designator, Index: false},
			{Key: "timestamp", Value: fmt.Sprintf("%v", event.Timestamp), Index: false},
		},
	}
}

func DecodeEventFlightRegistered(originEvent abci.Event) *EventFlightRegistered {
	r := newAttrReader(originEvent)
	event := &EventFlightRegistered{
		Key:        r.hash("key"),
		Airline:    r.addr("airline"),
		Designator: r.str("designator"),
		Timestamp:  r.u64("timestamp"),
	}
	if r.err != nil {
		return nil
	}
	return event
}

type EventInsurancePurchased struct {
	Key     common.Hash    `json:"key"`
	Insuree common.Address `json:"insuree"`
	Airline common.Address `json:"airline"`
	Premium uint64         `json:"premium"`
	Funds   uint64         `json:"funds"`
}

func EncodeEventInsurancePurchased(event *EventInsurancePurchased) abci.Event {
	return abci.Event{
		Type: EventInsurancePurchasedType,
		Attributes: []abci.EventAttribute{
			{Key: "key", Value: event.Key.Hex(), Index: true},
			{Key: "insuree", Value: event.Insuree.Hex(), Index: true},
			{Key: "airline", Value: event.Airline.Hex(), Index: false},
			{Key: "premium", Value: fmt.Sprintf("%v", event.Premium), Index: false},
			{Key: "funds", Value: fmt.Sprintf("%v", event.Funds), Index: false},
		},
	}
}

func DecodeEventInsurancePurchased(originEvent abci.Event) *EventInsurancePurchased {
	r := newAttrReader(originEvent)
	event := &EventInsurancePurchased{
		Key:     r.hash("key"),
		Insuree: r.addr("insuree"),
		Airline: r.addr("airline"),
		Premium: r.u64("premium"),
		Funds:   r.u64("funds"),
	}
	if r.err != nil {
		return nil
	}
	return event
}

type EventCreditAvailable struct {
	Key     common.Hash    `json:"key"`
	Insuree common.Address `json:"insuree"`
	Amount  uint64         `json:"amount"`
	Balance uint64         `json:"balance"`
}

func EncodeEventCreditAvailable(event *EventCreditAvailable) abci.Event {
	return abci.Event{
		Type: EventCreditAvailableType,
		Attributes: []abci.EventAttribute{
			{Key: "key", Value: event.Key.Hex(), Index: true},
			{Key: "insuree", Value: event.Insuree.Hex(), Index: true},
			{Key: "amount", Value: fmt.Sprintf("%v", event.Amount), Index: false},
			{Key: "balance", Value: fmt.Sprintf("%v", event.Balance), Index: false},
		},
	}
}

func DecodeEventCreditAvailable(originEvent abci.Event) *EventCreditAvailable {
	r := newAttrReader(originEvent)
	event := &EventCreditAvailable{
		Key:     r.hash("key"),
		Insuree: r.addr("insuree"),
		Amount:  r.u64("amount"),
		Balance: r.u64("balance"),
	}
	if r.err != nil {
		return nil
	}
	return event
}

type EventCreditIssued struct {
	Key      common.Hash    `json:"key"`
	Airline  common.Address `json:"airline"`
	Policies uint64         `json:"policies"`
	Total    uint64         `json:"total"`
	Funds    uint64         `json:"funds"`
}

func EncodeEventCreditIssued(event *EventCreditIssued) abci.Event {
	return abci.Event{
		Type: EventCreditIssuedType,
		Attributes: []abci.EventAttribute{
			{Key: "key", Value: event.Key.Hex(), Index: true},
			{Key: "airline", Value: event.Airline.Hex(), Index: true},
			{Key: "policies", Value: fmt.Sprintf("%v", event.Policies), Index: false},
			{Key: "total", Value: fmt.Sprintf("%v", event.Total), Index: false},
			{Key: "funds", Value: fmt.Sprintf("%v", event.Funds), Index: false},
		},
	}
}

func DecodeEventCreditIssued(originEvent abci.Event) *EventCreditIssued {
	r := newAttrReader(originEvent)
	event := &EventCreditIssued{
		Key:      r.hash("key"),
		Airline:  r.addr("airline"),
		Policies: r.u64("policies"),
		Total:    r.u64("total"),
		Funds:    r.u64("funds"),
	}
	if r.err != nil {
		return nil
	}
	return event
}

type EventPayout struct {
	Insuree common.Address `json:"insuree"`
	Amount  uint64         `json:"amount"`
}

func EncodeEventPayout(event *EventPayout) abci.Event {
	return abci.Event{
		Type: EventPayoutType,
		Attributes: []abci.EventAttribute{
			{Key: "insuree", Value: event.Insuree.Hex(), Index: true},
			{Key: "amount", Value: fmt.Sprintf("%v", event.Amount), Index: false},
		},
	}
}

func DecodeEventPayout(originEvent abci.Event) *EventPayout {
	r := newAttrReader(originEvent)
	event := &EventPayout{
		Insuree: r.addr("insuree"),
		Amount:  r.u64("amount"),
	}
	if r.err != nil {
		return nil
	}
	return event
}

type EventOracleRegistered struct {
	Oracle  common.Address `json:"oracle"`
	Indexes [3]uint8       `json:"indexes"`
}

func EncodeEventOracleRegistered(event *EventOracleRegistered) abci.Event {
	idxs := make([]string, len(event.Indexes))
	for i, v := range event.Indexes {
		idxs[i] = strconv.Itoa(int(v))
	}
	return abci.Event{
		Type: EventOracleRegisteredType,
		Attributes: []abci.EventAttribute{
			{Key: "oracle", Value: event.Oracle.Hex(), Index: true},
			{Key: "indexes", Value: strings.Join(idxs, ","), Index: false},
		},
	}
}

func DecodeEventOracleRegistered(originEvent abci.Event) *EventOracleRegistered {
	r := newAttrReader(originEvent)
	event := &EventOracleRegistered{
		Oracle: r.addr("oracle"),
	}
	parts := strings.Split(r.str("indexes"), ",")
	if r.err != nil || len(parts) != len(event.Indexes) {
		return nil
	}
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return nil
		}
		event.Indexes[i] = uint8(v)
	}
	return event
}

type EventOracleRequest struct {
	Index      uint8          `json:"index"`
	Airline    common.Address `json:"airline"`
	Designator string         `json:"designator"`
	Timestamp  uint64         `json:"timestamp"`
	Requester  common.Address `json:"requester"`
}

func EncodeEventOracleRequest(event *EventOracleRequest) abci.Event {
	return abci.Event{
		Type: EventOracleRequestType,
		Attributes: []abci.EventAttribute{
			{Key: "index", Value: fmt.Sprintf("%v", event.Index), Index: true},
			{Key: "airline", Value: event.Airline.Hex(), Index: true},
			{Key: "designator", Value: event.Designator, Index: false},
			{Key: "timestamp", Value: fmt.Sprintf("%v", event.Timestamp), Index: false},
			{Key: "requester", Value: event.Requester.Hex(), Index: false},
		},
	}
}

func DecodeEventOracleRequest(originEvent abci.Event) *EventOracleRequest {
	r := newAttrReader(originEvent)
	event := &EventOracleRequest{
		Index:      r.u8("index"),
		Airline:    r.addr("airline"),
		Designator: r.str("designator"),
		Timestamp:  r.u64("timestamp"),
		Requester:  r.addr("requester"),
	}
	if r.err != nil {
		return nil
	}
	return event
}

type EventOracleReport struct {
	Oracle     common.Address `json:"oracle"`
	Index      uint8          `json:"index"`
	Airline    common.Address `json:"airline"`
	Designator string         `json:"designator"`
	Timestamp  uint64         `json:"timestamp"`
	Status     StatusCode     `json:"status"`
	Count      uint64         `json:"count"`
}

func EncodeEventOracleReport(event *EventOracleReport) abci.Event {
	return abci.Event{
		Type: EventOracleReportType,
		Attributes: []abci.EventAttribute{
			{Key: "oracle", Value: event.Oracle.Hex(), Index: true},
			{Key: "index", Value: fmt.Sprintf("%v", event.Index), Index: false},
			{Key: "airline", Value: event.Airline.Hex(), Index: true},
			{Key: "designator", Value: event.Designator, Index: false},
			{Key: "timestamp", Value: fmt.Sprintf("%v", event.Timestamp), Index: false},
			{Key: "status", Value: fmt.Sprintf("%v", uint8(event.Status)), Index: false},
			{Key: "count", Value: fmt.Sprintf("%v", event.Count), Index: false},
		},
	}
}

func DecodeEventOracleReport(originEvent abci.Event) *EventOracleReport {
	r := newAttrReader(originEvent)
	event := &EventOracleReport{
		Oracle:     r.addr("oracle"),
		Index:      r.u8("index"),
		Airline:    r.addr("airline"),
		Designator: r.str("designator"),
		Timestamp:  r.u64("timestamp"),
		Status:     StatusCode(r.u8("status")),
		Count:      r.u64("count"),
	}
	if r.err != nil {
		return nil
	}
	return event
}

type EventFlightStatus struct {
	Key        common.Hash    `json:"key"`
	Airline    common.Address `json:"airline"`
	Designator string         `json:"designator"`
	Timestamp  uint64         `json:"timestamp"`
	Status     StatusCode     `json:"status"`
	UpdatedAt  uint64         `json:"updatedAt"`
}

func EncodeEventFlightStatus(event *EventFlightStatus) abci.Event {
	return abci.Event{
		Type: EventFlightStatusType,
		Attributes: []abci.EventAttribute{
			{Key: "key", Value: event.Key.Hex(), Index: true},
			{Key: "airline", Value: event.Airline.Hex(), Index: true},
			{Key: "designator", Value: event.Designator, Index: false},
			{Key: "timestamp", Value: fmt.Sprintf("%v", event.Timestamp), Index: false},
			{Key: "status", Value: fmt.Sprintf("%v", uint8(event.Status)), Index: false},
			{Key: "updatedAt", Value: fmt.Sprintf("%v", event.UpdatedAt), Index: false},
		},
	}
}

func DecodeEventFlightStatus(originEvent abci.Event) *EventFlightStatus {
	r := newAttrReader(originEvent)
	event := &EventFlightStatus{
		Key:        r.hash("key"),
		Airline:    r.addr("airline"),
		Designator: r.str("designator"),
		Timestamp:  r.u64("timestamp"),
		Status:     StatusCode(r.u8("status")),
		UpdatedAt:  r.u64("updatedAt"),
	}
	if r.err != nil {
		return nil
	}
	return event
}
