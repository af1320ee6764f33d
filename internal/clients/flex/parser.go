package flex

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Cloud956/wheel-tracker/internal/domain"
)

// sendResponse is the SendRequest acknowledgement document.
type sendResponse struct {
	XMLName       xml.Name `xml:"FlexStatementResponse"`
	Status        string   `xml:"Status"`
	ReferenceCode string   `xml:"ReferenceCode"`
	ErrorCode     string   `xml:"ErrorCode"`
	ErrorMessage  string   `xml:"ErrorMessage"`
}

func parseSendResponse(body []byte) (*sendResponse, error) {
	var resp sendResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode send response: %w", err)
	}
	return &resp, nil
}

// isPending reports whether a GetStatement body is the "still generating"
// error document rather than the statement itself.
func isPending(body []byte) (bool, string) {
	var resp sendResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		// Not a FlexStatementResponse: assume it is the statement.
		return false, ""
	}
	return true, resp.ErrorMessage
}

// Raw statement document shapes.
type flexQueryResponse struct {
	XMLName    xml.Name `xml:"FlexQueryResponse"`
	Statements []struct {
		AccountID string     `xml:"accountId,attr"`
		Trades    []xmlTrade `xml:"Trades>Trade"`
		Positions []xmlPos   `xml:"OpenPositions>OpenPosition"`
	} `xml:"FlexStatements>FlexStatement"`
}

type xmlTrade struct {
	TradeID       string `xml:"tradeID,attr"`
	Symbol        string `xml:"symbol,attr"`
	AssetCategory string `xml:"assetCategory,attr"`
	PutCall       string `xml:"putCall,attr"`
	Strike        string `xml:"strike,attr"`
	Quantity      string `xml:"quantity,attr"`
	TradePrice    string `xml:"tradePrice,attr"`
	IBCommission  string `xml:"ibCommission,attr"`
	TradeDate     string `xml:"tradeDate,attr"`
	DateTime      string `xml:"dateTime,attr"`
	Description   string `xml:"description,attr"`
}

type xmlPos struct {
	Symbol     string `xml:"symbol,attr"`
	Position   string `xml:"position,attr"`
	MarkPrice  string `xml:"markPrice,attr"`
	Multiplier string `xml:"multiplier,attr"`
}

// ParseStatement decodes a Flex statement document into normalized trade
// records and the open-position snapshot. Rows that cannot be normalized are
// skipped; they never abort the batch.
func ParseStatement(body []byte) (*Statement, error) {
	var doc flexQueryResponse
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode statement document: %w", err)
	}
	if len(doc.Statements) == 0 {
		return nil, fmt.Errorf("statement document contains no FlexStatement")
	}

	stmt := &Statement{AccountID: doc.Statements[0].AccountID}
	for _, raw := range doc.Statements {
		for _, xt := range raw.Trades {
			trade, err := normalizeTrade(xt)
			if err != nil {
				continue
			}
			stmt.Trades = append(stmt.Trades, trade)
		}
		for _, xp := range raw.Positions {
			pos, err := normalizePosition(xp)
			if err != nil {
				continue
			}
			stmt.Positions = append(stmt.Positions, pos)
		}
	}
	return stmt, nil
}

func normalizeTrade(xt xmlTrade) (domain.Trade, error) {
	qty, err := strconv.ParseFloat(xt.Quantity, 64)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("bad quantity %q: %w", xt.Quantity, err)
	}
	price, err := strconv.ParseFloat(xt.TradePrice, 64)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("bad trade price %q: %w", xt.TradePrice, err)
	}

	commission := 0.0
	if xt.IBCommission != "" {
		if v, err := strconv.ParseFloat(xt.IBCommission, 64); err == nil {
			commission = v
		}
	}

	executedAt, err := parseFlexTime(xt.DateTime, xt.TradeDate)
	if err != nil {
		return domain.Trade{}, err
	}

	t := domain.Trade{
		Symbol:      strings.ToUpper(strings.TrimSpace(xt.Symbol)),
		Quantity:    qty,
		Price:       price,
		Commission:  commission,
		ExecutedAt:  executedAt,
		Description: xt.Description,
	}

	switch xt.AssetCategory {
	case "OPT":
		t.AssetClass = domain.AssetOption
		t.Right = domain.OptionRight(xt.PutCall)
		if xt.Strike != "" {
			if strike, err := strconv.ParseFloat(xt.Strike, 64); err == nil {
				t.Strike = &strike
			}
		}
	case "STK":
		t.AssetClass = domain.AssetStock
	default:
		return domain.Trade{}, fmt.Errorf("unsupported asset category %q", xt.AssetCategory)
	}

	t.ID = xt.TradeID
	if t.ID == "" {
		t.ID = synthesizeTradeID(t, xt.TradeDate, xt.Strike)
	}
	return t, nil
}

// synthesizeTradeID builds a stable composite key for executions the broker
// reports without a trade id. The fingerprint must reproduce identically
// across re-fetches of the same execution. The date component is the raw
// tradeDate attribute when present: a fill whose dateTime falls on a
// different calendar day must still fingerprint by its trade date.
func synthesizeTradeID(t domain.Trade, tradeDate, strike string) string {
	if tradeDate == "" {
		tradeDate = t.ExecutedAt.UTC().Format("20060102")
	}
	if strike == "" {
		strike = "0"
	}
	return fmt.Sprintf("%s_%s_%s_%s_%s",
		tradeDate,
		t.Symbol,
		strconv.FormatFloat(t.Quantity, 'f', -1, 64),
		strconv.FormatFloat(t.Price, 'f', -1, 64),
		strike)
}

func normalizePosition(xp xmlPos) (domain.Position, error) {
	qty, err := strconv.ParseFloat(xp.Position, 64)
	if err != nil {
		return domain.Position{}, fmt.Errorf("bad position quantity %q: %w", xp.Position, err)
	}
	mark, err := strconv.ParseFloat(xp.MarkPrice, 64)
	if err != nil {
		return domain.Position{}, fmt.Errorf("bad mark price %q: %w", xp.MarkPrice, err)
	}
	multiplier := 1.0
	if xp.Multiplier != "" {
		if v, err := strconv.ParseFloat(xp.Multiplier, 64); err == nil {
			multiplier = v
		}
	}
	return domain.Position{
		Symbol:     strings.ToUpper(strings.TrimSpace(xp.Symbol)),
		Quantity:   qty,
		MarkPrice:  mark,
		Multiplier: multiplier,
	}, nil
}

// parseFlexTime handles the broker's "yyyyMMdd;HHmmss" execution timestamps,
// falling back to the bare trade date when no time component is present.
func parseFlexTime(dateTime, tradeDate string) (time.Time, error) {
	if dateTime != "" {
		for _, layout := range []string{"20060102;150405", "20060102 150405", "20060102"} {
			if ts, err := time.Parse(layout, dateTime); err == nil {
				return ts.UTC(), nil
			}
		}
	}
	if tradeDate != "" {
		if ts, err := time.Parse("20060102", tradeDate); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable execution time %q / %q", dateTime, tradeDate)
}
