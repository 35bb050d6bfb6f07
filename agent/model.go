package agent

// sqlite models

type Height struct {
	Id     uint64 `gorm:"primary_key" json:"id"`
	Height uint64 `json:"height"`
}

type Airline struct {
	Address    string `gorm:"primary_key" json:"address"`
	Name       string `json:"name"`
	Registered bool   `json:"registered"`
	Funded     bool   `json:"funded"`
	Funds      uint64 `json:"funds"`
	Votes      uint64 `json:"votes"`
	Height     uint64 `json:"height"`
}

type AirlineVote struct {
	Id        uint64 `gorm:"primary_key" json:"id"`
	Candidate string `gorm:"index" json:"candidate"`
	Voter     string `json:"voter"`
	Votes     uint64 `json:"votes"`
	Needed    uint64 `json:"needed"`
	Height    uint64 `json:"height"`
}

type Flight struct {
	Key           string `gorm:"primary_key" json:"key"`
	Airline       string `gorm:"index" json:"airline"`
	Designator    string `json:"designator"`
	Timestamp     uint64 `json:"timestamp"`
	Status        uint8  `json:"status"`
	StatusName    string `json:"status_name"`
	StatusUpdated uint64 `json:"status_updated"`
	Credited      bool   `json:"credited"`
	Height        uint64 `json:"height"`
}

type Policy struct {
	Id        uint64 `gorm:"primary_key" json:"id"`
	FlightKey string `gorm:"index" json:"flight_key"`
	Insuree   string `gorm:"index" json:"insuree"`
	Airline   string `json:"airline"`
	Premium   uint64 `json:"premium"`
	Height    uint64 `json:"height"`
}

type Credit struct {
	Id        uint64 `gorm:"primary_key" json:"id"`
	FlightKey string `json:"flight_key"`
	Insuree   string `gorm:"index" json:"insuree"`
	Amount    uint64 `json:"amount"`
	Height    uint64 `json:"height"`
}

type Payout struct {
	Id      uint64 `gorm:"primary_key" json:"id"`
	Insuree string `gorm:"index" json:"insuree"`
	Amount  uint64 `json:"amount"`
	Height  uint64 `json:"height"`
}

type Oracle struct {
	Address string `gorm:"primary_key" json:"address"`
	Indexes string `json:"indexes"`
	Height  uint64 `json:"height"`
}

type StatusRequest struct {
	Key        string `gorm:"primary_key" json:"key"`
	Index      uint8  `json:"index"`
	FlightKey  string `gorm:"index" json:"flight_key"`
	Airline    string `json:"airline"`
	Designator string `json:"designator"`
	Timestamp  uint64 `json:"timestamp"`
	Requester  string `json:"requester"`
	Height     uint64 `json:"height"`
}

type OracleReport struct {
	Id         uint64 `gorm:"primary_key" json:"id"`
	RequestKey string `gorm:"index" json:"request_key"`
	Oracle     string `json:"oracle"`
	Status     uint8  `json:"status"`
	Count      uint64 `json:"count"`
	Height     uint64 `json:"height"`
}
