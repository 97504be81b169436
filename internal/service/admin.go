package service

import (
	"sort"

	"github.com/efreitasn/venue/internal/domain"
	"github.com/efreitasn/venue/internal/engine"
	"github.com/efreitasn/venue/internal/store"
)

// RegisterSecurityRequest represents the input for security registration.
type RegisterSecurityRequest struct {
	ISIN        string
	TickSize    int64
	LotSize     int64
	MarketPrice int64
}

// RegisterBrokerRequest represents the input for broker registration.
type RegisterBrokerRequest struct {
	BrokerID int64
	Credit   int64
}

// RegisterShareholderRequest represents the input for shareholder
// registration. Positions maps isin to quantity held.
type RegisterShareholderRequest struct {
	ShareholderID int64
	Positions     map[string]int64
}

// SecurityView is a consistent snapshot of a security's state.
type SecurityView struct {
	ISIN             string
	TickSize         int64
	LotSize          int64
	State            domain.MatchingState
	MarketPrice      int64
	OpeningPrice     int64
	TradableQuantity int64
	BuyOrders        int
	SellOrders       int
	StopBuyOrders    int
	StopSellOrders   int
}

// BookView is the aggregated depth of a security's live queues.
type BookView struct {
	ISIN           string
	State          domain.MatchingState
	MarketPrice    int64
	Bids           []engine.PriceLevel
	Asks           []engine.PriceLevel
	StopBuyOrders  int
	StopSellOrders int
}

// AdminService registers the reference data the matching core works
// against and answers read queries.
type AdminService struct {
	securities   *engine.SecurityRegistry
	matcher      *engine.Matcher
	brokers      *store.BrokerStore
	shareholders *store.ShareholderStore
	tape         *store.TradeTape
	defaultDepth int
}

// NewAdminService creates a new AdminService. defaultDepth is the number
// of price levels Book returns when the caller asks for none.
func NewAdminService(
	securities *engine.SecurityRegistry,
	matcher *engine.Matcher,
	brokers *store.BrokerStore,
	shareholders *store.ShareholderStore,
	tape *store.TradeTape,
	defaultDepth int,
) *AdminService {
	return &AdminService{
		securities:   securities,
		matcher:      matcher,
		brokers:      brokers,
		shareholders: shareholders,
		tape:         tape,
		defaultDepth: defaultDepth,
	}
}

// RegisterSecurity validates the request and adds a security in
// continuous trading with an empty book.
func (s *AdminService) RegisterSecurity(req RegisterSecurityRequest) (SecurityView, error) {
	v := &validation{}
	v.check(req.ISIN != "", "isin is required")
	v.check(req.TickSize > 0, "tick_size must be positive")
	v.check(req.LotSize > 0, "lot_size must be positive")
	v.check(req.MarketPrice >= 0, "market_price must be >= 0")
	if err := v.err(); err != nil {
		return SecurityView{}, err
	}

	sec := engine.NewSecurity(req.ISIN, req.TickSize, req.LotSize, s.matcher)
	sec.SetMarketPrice(req.MarketPrice)
	if err := s.securities.Add(sec); err != nil {
		return SecurityView{}, err
	}
	sec.RLock()
	defer sec.RUnlock()
	return view(sec), nil
}

// GetSecurity returns a snapshot of the security.
func (s *AdminService) GetSecurity(isin string) (SecurityView, error) {
	sec, err := s.securities.Get(isin)
	if err != nil {
		return SecurityView{}, err
	}
	sec.RLock()
	defer sec.RUnlock()
	return view(sec), nil
}

// ListSecurities returns a snapshot of every security ordered by isin.
func (s *AdminService) ListSecurities() []SecurityView {
	secs := s.securities.List()
	out := make([]SecurityView, 0, len(secs))
	for _, sec := range secs {
		sec.RLock()
		out = append(out, view(sec))
		sec.RUnlock()
	}
	return out
}

func view(sec *engine.Security) SecurityView {
	book := sec.Book()
	return SecurityView{
		ISIN:             sec.ISIN(),
		TickSize:         sec.TickSize(),
		LotSize:          sec.LotSize(),
		State:            sec.State(),
		MarketPrice:      sec.MarketPrice(),
		OpeningPrice:     sec.OpeningPrice(),
		TradableQuantity: sec.TradableQuantity(),
		BuyOrders:        book.Len(domain.SideBuy),
		SellOrders:       book.Len(domain.SideSell),
		StopBuyOrders:    book.StopLen(domain.SideBuy),
		StopSellOrders:   book.StopLen(domain.SideSell),
	}
}

// Book returns up to depth aggregated price levels per side. A depth
// <= 0 uses the configured default.
func (s *AdminService) Book(isin string, depth int) (BookView, error) {
	sec, err := s.securities.Get(isin)
	if err != nil {
		return BookView{}, err
	}
	if depth <= 0 {
		depth = s.defaultDepth
	}
	sec.RLock()
	defer sec.RUnlock()

	book := sec.Book()
	return BookView{
		ISIN:           isin,
		State:          sec.State(),
		MarketPrice:    sec.MarketPrice(),
		Bids:           book.Levels(domain.SideBuy, depth),
		Asks:           book.Levels(domain.SideSell, depth),
		StopBuyOrders:  book.StopLen(domain.SideBuy),
		StopSellOrders: book.StopLen(domain.SideSell),
	}, nil
}

// Trades returns the security's trade tape, oldest first.
func (s *AdminService) Trades(isin string) ([]*domain.Trade, error) {
	if _, err := s.securities.Get(isin); err != nil {
		return nil, err
	}
	return s.tape.List(isin), nil
}

// RegisterBroker validates the request and creates a broker.
func (s *AdminService) RegisterBroker(req RegisterBrokerRequest) (*domain.Broker, error) {
	v := &validation{}
	v.check(req.BrokerID > 0, "broker_id must be positive")
	v.check(req.Credit >= 0, "credit must be >= 0")
	if err := v.err(); err != nil {
		return nil, err
	}

	b := domain.NewBroker(req.BrokerID, req.Credit)
	if err := s.brokers.Create(b); err != nil {
		return nil, err
	}
	return b, nil
}

// GetBroker returns the broker or domain.ErrBrokerNotFound.
func (s *AdminService) GetBroker(id int64) (*domain.Broker, error) {
	return s.brokers.Get(id)
}

// ListBrokers returns every broker ordered by id.
func (s *AdminService) ListBrokers() []*domain.Broker {
	return s.brokers.List()
}

// RegisterShareholder validates the request and creates a shareholder.
func (s *AdminService) RegisterShareholder(req RegisterShareholderRequest) (*domain.Shareholder, error) {
	v := &validation{}
	v.check(req.ShareholderID > 0, "shareholder_id must be positive")
	isins := make([]string, 0, len(req.Positions))
	for isin := range req.Positions {
		isins = append(isins, isin)
	}
	sort.Strings(isins)
	for _, isin := range isins {
		v.check(isin != "", "position isin is required")
		v.check(req.Positions[isin] >= 0, "position quantity must be >= 0 for "+isin)
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	sh := domain.NewShareholder(req.ShareholderID, req.Positions)
	if err := s.shareholders.Create(sh); err != nil {
		return nil, err
	}
	return sh, nil
}

// GetShareholder returns the shareholder or domain.ErrShareholderNotFound.
func (s *AdminService) GetShareholder(id int64) (*domain.Shareholder, error) {
	return s.shareholders.Get(id)
}
