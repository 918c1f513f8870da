package polymarket

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/polytrage/polytrage/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// flexFloat unmarshals from a JSON number or a numeric string, which the
// Gamma and CLOB APIs use interchangeably for prices and volumes.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var v float64
	if err := json.Unmarshal(data, &v); err == nil {
		*f = flexFloat(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(parsed)
	return nil
}

// flexString unmarshals from a JSON string or number; Gamma sends market IDs
// both ways.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// stringList unmarshals from a JSON array of strings or from a JSON string
// containing an encoded array, e.g. "[\"Yes\",\"No\"]". Gamma ships its list
// fields in the encoded form.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var direct []string
	if err := json.Unmarshal(data, &direct); err == nil {
		*l = direct
		return nil
	}
	var encoded string
	if err := json.Unmarshal(data, &encoded); err != nil {
		return err
	}
	var nested []string
	if err := json.Unmarshal([]byte(encoded), &nested); err != nil {
		return err
	}
	*l = nested
	return nil
}

// floatList is stringList's numeric counterpart; elements may themselves be
// numbers or numeric strings.
type floatList []float64

func (l *floatList) UnmarshalJSON(data []byte) error {
	var direct []flexFloat
	if err := json.Unmarshal(data, &direct); err == nil {
		*l = toFloats(direct)
		return nil
	}
	var encoded string
	if err := json.Unmarshal(data, &encoded); err != nil {
		return err
	}
	var nested []flexFloat
	if err := json.Unmarshal([]byte(encoded), &nested); err != nil {
		return err
	}
	*l = toFloats(nested)
	return nil
}

func toFloats(in []flexFloat) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// apiMarket represents a market as returned by the Polymarket Gamma API.
type apiMarket struct {
	ID            flexString `json:"id"`
	Question      string     `json:"question"`
	Slug          string     `json:"slug"`
	Outcomes      stringList `json:"outcomes"`      // JSON-encoded: e.g. "[\"Yes\",\"No\"]"
	OutcomePrices floatList  `json:"outcomePrices"` // JSON-encoded: e.g. "[\"0.5\",\"0.5\"]"
	ClobTokenIDs  stringList `json:"clobTokenIds"`  // JSON-encoded: e.g. "[\"123\",\"456\"]"
	NegRisk       flexBool   `json:"negRisk"`
	Volume        flexFloat  `json:"volume"`
	Liquidity     flexFloat  `json:"liquidity"`
	Active        *flexBool  `json:"active"` // absent means active
}

// errMarketIncomplete marks markets without tradable CLOB data; they are
// skipped without noise.
var errMarketIncomplete = errors.New("market missing order book data")

// toDomain converts a Gamma apiMarket to a domain.Market. Markets without
// CLOB token data or with fewer than two outcomes return
// errMarketIncomplete; markets whose parallel lists disagree in length are
// rejected as malformed so downstream code can index them freely.
func (m *apiMarket) toDomain() (domain.Market, error) {
	if len(m.ClobTokenIDs) == 0 || len(m.OutcomePrices) == 0 || len(m.Outcomes) == 0 {
		return domain.Market{}, errMarketIncomplete
	}
	if len(m.ClobTokenIDs) < 2 {
		return domain.Market{}, errMarketIncomplete
	}
	if len(m.Outcomes) != len(m.ClobTokenIDs) || len(m.OutcomePrices) != len(m.ClobTokenIDs) {
		return domain.Market{}, fmt.Errorf("outcome lists disagree: %d outcomes, %d prices, %d tokens",
			len(m.Outcomes), len(m.OutcomePrices), len(m.ClobTokenIDs))
	}

	active := true
	if m.Active != nil {
		active = bool(*m.Active)
	}

	return domain.Market{
		ID:            string(m.ID),
		Question:      m.Question,
		Slug:          m.Slug,
		Outcomes:      []string(m.Outcomes),
		TokenIDs:      []string(m.ClobTokenIDs),
		OutcomePrices: []float64(m.OutcomePrices),
		NegRisk:       bool(m.NegRisk),
		Volume:        float64(m.Volume),
		Liquidity:     float64(m.Liquidity),
		Active:        active,
	}, nil
}

// --------------------------------------------------------------------------
// CLOB API DTOs
// --------------------------------------------------------------------------

// apiBookLevel is a single price level in a CLOB order book response.
type apiBookLevel struct {
	Price flexFloat `json:"price"`
	Size  flexFloat `json:"size"`
}

// apiBook represents an order book as returned by the CLOB API, best price
// first on both sides.
type apiBook struct {
	Bids []apiBookLevel `json:"bids"`
	Asks []apiBookLevel `json:"asks"`
}

func (b *apiBook) toDomain() domain.OrderBook {
	book := domain.OrderBook{
		Bids: make([]domain.BookLevel, 0, len(b.Bids)),
		Asks: make([]domain.BookLevel, 0, len(b.Asks)),
	}
	for _, lvl := range b.Bids {
		book.Bids = append(book.Bids, domain.BookLevel{Price: float64(lvl.Price), Size: float64(lvl.Size)})
	}
	for _, lvl := range b.Asks {
		book.Asks = append(book.Asks, domain.BookLevel{Price: float64(lvl.Price), Size: float64(lvl.Size)})
	}
	return book
}

// apiPrice is the CLOB /price response.
type apiPrice struct {
	Price *flexFloat `json:"price"`
}

// apiMidpoint is the CLOB /midpoint response.
type apiMidpoint struct {
	Mid *flexFloat `json:"mid"`
}
