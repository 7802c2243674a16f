package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"pairwatch/internal/market"
	"pairwatch/internal/metrics"
)

type binanceEnvelope struct {
	Stream string       `json:"stream"`
	Data   binanceTrade `json:"data"`
}

type binanceTrade struct {
	Symbol    string `json:"s"`
	Price     string `json:"p"`
	Quantity  string `json:"q"`
	TradeTime int64  `json:"T"`
}

func (f *Feed) runBinance(ctx context.Context) error {
	if len(f.symbols) == 0 {
		return fmt.Errorf("binance feed requires at least one symbol")
	}

	streams := make([]string, len(f.symbols))
	for i, sym := range f.symbols {
		streams[i] = strings.ToLower(sym) + "@trade"
	}
	url := fmt.Sprintf("wss://stream.binance.com:9443/stream?streams=%s", strings.Join(streams, "/"))

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := f.consumeBinanceStream(ctx, url); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.log.Warn().Err(err).Msg("binance feed disconnected, retrying")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff = time.Duration(math.Min(float64(maxBackoff), float64(backoff)*1.8))
			continue
		}
		return nil
	}
}

func (f *Feed) consumeBinanceStream(ctx context.Context, url string) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	f.log.Info().Str("provider", ProviderBinance).Strs("symbols", f.symbols).Msg("connected market data feed")

	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		return nil
	})

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					f.log.Warn().Err(err).Msg("binance ping failed")
					return
				}
			case <-pingCtx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		tick, ok := f.decodeBinanceTrade(message)
		if !ok {
			continue
		}
		f.sink.AddTick(tick)
		metrics.TicksTotal.WithLabelValues(tick.Symbol).Inc()
	}
}

// decodeBinanceTrade parses a combined-stream trade message, rejecting
// anything malformed so the store only ever sees valid ticks.
func (f *Feed) decodeBinanceTrade(message []byte) (market.Tick, bool) {
	var env binanceEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		f.log.Warn().Err(err).Msg("failed to decode binance message")
		return market.Tick{}, false
	}
	symbol := env.Data.Symbol
	if symbol == "" {
		symbol = parseBinanceSymbol(env.Stream)
	}
	if symbol == "" {
		return market.Tick{}, false
	}
	px, err := strconv.ParseFloat(env.Data.Price, 64)
	if err != nil || px <= 0 {
		f.log.Warn().Str("price", env.Data.Price).Msg("invalid price from binance")
		return market.Tick{}, false
	}
	qty, err := strconv.ParseFloat(env.Data.Quantity, 64)
	if err != nil || qty < 0 {
		f.log.Warn().Str("quantity", env.Data.Quantity).Msg("invalid quantity from binance")
		return market.Tick{}, false
	}
	return market.Tick{
		Timestamp: float64(env.Data.TradeTime) / 1000.0,
		Symbol:    symbol,
		Price:     px,
		Quantity:  qty,
	}, true
}

func parseBinanceSymbol(stream string) string {
	parts := strings.Split(stream, "@")
	if len(parts) == 0 || parts[0] == "" {
		return ""
	}
	return strings.ToUpper(parts[0])
}
