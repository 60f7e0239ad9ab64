package marketdata

// Wire shapes for the provider's snapshot/aggregate/reference endpoints.
// Field presence is never guaranteed; zero values mean "unknown".

type snapshotDay struct {
	Close  float64 `json:"c"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Open   float64 `json:"o"`
	Volume float64 `json:"v"`
}

type snapshotMinute struct {
	Close float64 `json:"c"`
	Open  float64 `json:"o"`
}

type snapshotLastTrade struct {
	Price float64 `json:"p"`
	At    int64   `json:"t"` // unix nanos
}

type snapshotTicker struct {
	Symbol    string            `json:"ticker"`
	Day       snapshotDay       `json:"day"`
	Minute    snapshotMinute    `json:"min"`
	PrevDay   snapshotDay       `json:"prevDay"`
	LastTrade snapshotLastTrade `json:"lastTrade"`
}

type snapshotResponse struct {
	Status           string         `json:"status"`
	TodaysChangePerc float64        `json:"todaysChangePerc"`
	Ticker           snapshotTicker `json:"ticker"`
}

type dailyOpenCloseResponse struct {
	Status string  `json:"status"`
	Symbol string  `json:"symbol"`
	Close  float64 `json:"close"`
}

type referenceResults struct {
	Symbol            string  `json:"ticker"`
	Name              string  `json:"name"`
	WeightedShares    float64 `json:"weighted_shares_outstanding"`
	ShareClassShares  float64 `json:"share_class_shares_outstanding"`
	SICDescription    string  `json:"sic_description"`
}

type referenceResponse struct {
	Status  string           `json:"status"`
	Results referenceResults `json:"results"`
}
