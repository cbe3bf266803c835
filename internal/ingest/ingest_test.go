package ingest

import (
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/schema"
	"main/pkg/exception"
)

var feedSymbol = schema.Symbol{
	ID:         1,
	Name:       "BTCUSDT",
	BaseAsset:  "BTC",
	QuoteAsset: "USDT",
	Scale:      schema.ScaleSpec{PriceScale: 2, QuantityScale: 3},
}

func TestConvertBookTickerEvent(t *testing.T) {
	raw := `{"u":400900217,"s":"BTCUSDT","b":"25100.50","B":"31.210","a":"25100.80","A":"40.660"}`
	var event binanceEvent
	require.NoError(t, sonic.ConfigFastest.Unmarshal([]byte(raw), &event))
	require.True(t, event.isBookTicker())
	require.False(t, event.isTrade())

	ticker, err := event.toBookTicker(feedSymbol)
	require.NoError(t, err)
	assert.Equal(t, schema.BookTicker{
		SymbolID: 1,
		BidPrice: 2_510_050, BidQty: 31_210,
		AskPrice: 2_510_080, AskQty: 40_660,
	}, ticker)
}

func TestConvertTradeEvent(t *testing.T) {
	raw := `{"e":"trade","E":1672515782136,"s":"BTCUSDT","t":12345,"p":"25100.01","q":"0.0012","T":1672515782134,"m":true}`
	var event binanceEvent
	require.NoError(t, sonic.ConfigFastest.Unmarshal([]byte(raw), &event))
	require.True(t, event.isTrade())
	require.False(t, event.isBookTicker())

	trade, tsEvent, err := event.toTrade(feedSymbol)
	require.NoError(t, err)
	assert.Equal(t, schema.Trade{SymbolID: 1, Price: 2_510_001, Qty: 1, BuyerMaker: true}, trade)
	assert.Equal(t, int64(1672515782134*1_000_000), tsEvent)
}

func TestConvertSnapshotResponse(t *testing.T) {
	raw := `{"symbol":"BTCUSDT","bidPrice":"25000.00","bidQty":"10.000","askPrice":"25001.00","askQty":"5.000"}`
	var snap snapshotResponse
	require.NoError(t, sonic.ConfigFastest.Unmarshal([]byte(raw), &snap))

	ticker, err := snap.toBookTicker(feedSymbol)
	require.NoError(t, err)
	assert.Equal(t, int64(2_500_000), ticker.BidPrice)
	assert.Equal(t, int64(2_500_100), ticker.AskPrice)
	assert.Equal(t, int64(10_000), ticker.BidQty)
	assert.Equal(t, int64(5_000), ticker.AskQty)
}

func TestNewBinanceFeedRejectsUnknownSymbol(t *testing.T) {
	registry := schema.NewRegistry()
	_, err := registry.AddSymbol("ETHUSDT", "ETH", "USDT", 10, schema.ScaleSpec{})
	require.NoError(t, err)

	_, err = NewBinanceFeed(t.Context(), Config{Symbol: "BTCUSDT"}, registry)
	require.ErrorIs(t, err, exception.ErrSymbolNotFound)
}
