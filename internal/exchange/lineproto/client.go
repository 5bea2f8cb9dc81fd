// Package lineproto talks to the exchange's newline-delimited text protocol over TCP.
package lineproto

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fxarb/internal/exchange/common"
	"fxarb/internal/graph"
	"fxarb/internal/infra/network"
)

// Reply layout: values start at fixed columns after a human-readable label.
const (
	statusAmountsCol = 29
	statusTotalCol   = 10
	oneRateCol       = 32
	exchangeCol      = 35
	exchangeLines    = 4
)

type Config struct {
	Addr              string
	User              string
	Password          string
	Currencies        int
	DialTimeout       time.Duration
	RequestTimeout    time.Duration
	ReconnectInterval time.Duration
}

var (
	_ common.Venue    = (*Client)(nil)
	_ common.OneRater = (*Client)(nil)
	_ common.Resetter = (*Client)(nil)
)

type Client struct {
	cfg       Config
	dialer    *net.Dialer
	reconnect *network.TokenBucket
	logger    zerolog.Logger

	mu   sync.Mutex
	conn net.Conn
	r    *bufio.Reader
}

func New(cfg Config, logger zerolog.Logger) *Client {
	if cfg.Currencies == 0 {
		cfg.Currencies = graph.NumCurrencies
	}
	return &Client{
		cfg:       cfg,
		dialer:    network.NewDialer(cfg.DialTimeout),
		reconnect: network.Every(cfg.ReconnectInterval),
		logger:    logger.With().Str("component", "lineproto").Str("addr", cfg.Addr).Logger(),
	}
}

func (c *Client) Name() string { return "lineproto" }

// Open dials the venue and returns its greeting line.
func (c *Client) Open(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn, c.r = nil, nil
	}
	if err := c.reconnect.Wait(ctx); err != nil {
		return "", err
	}
	conn, err := c.dialer.DialContext(ctx, "tcp", c.cfg.Addr)
	if err != nil {
		return "", fmt.Errorf("dial %s: %v: %w", c.cfg.Addr, err, common.ErrTransport)
	}
	c.conn, c.r = conn, bufio.NewReader(conn)
	lines, err := c.receive(ctx, 1)
	if err != nil {
		_ = conn.Close()
		c.conn, c.r = nil, nil
		return "", fmt.Errorf("greeting: %w", err)
	}
	c.logger.Debug().Str("greeting", lines[0]).Msg("connected")
	return lines[0], nil
}

func (c *Client) Status(ctx context.Context) (common.Holdings, error) {
	lines, err := c.call(ctx, c.command("getStatus"), 2)
	if err != nil {
		return common.Holdings{}, fmt.Errorf("getStatus: %w", err)
	}
	amounts, err := valuesFrom(lines[0], statusAmountsCol)
	if err != nil {
		return common.Holdings{}, fmt.Errorf("getStatus amounts: %w", err)
	}
	if len(amounts) != c.cfg.Currencies {
		return common.Holdings{}, fmt.Errorf("getStatus: %d amounts for %d currencies: %w", len(amounts), c.cfg.Currencies, common.ErrProtocol)
	}
	total, err := valueAt(lines[1], statusTotalCol)
	if err != nil {
		return common.Holdings{}, fmt.Errorf("getStatus total: %w", err)
	}
	return common.Holdings{Amounts: amounts, Total: total}, nil
}

func (c *Client) Rates(ctx context.Context) (*graph.Matrix, error) {
	lines, err := c.call(ctx, c.command("getAllRates"), c.cfg.Currencies)
	if err != nil {
		return nil, fmt.Errorf("getAllRates: %w", err)
	}
	rows := make([][]float64, len(lines))
	for i, line := range lines {
		if rows[i], err = parseValues(line); err != nil {
			return nil, fmt.Errorf("getAllRates row %d: %w", i, err)
		}
	}
	m, err := graph.NewMatrix(rows)
	if err != nil {
		return nil, fmt.Errorf("getAllRates: %v: %w", err, common.ErrProtocol)
	}
	return m, nil
}

func (c *Client) OneRate(ctx context.Context, from, to graph.Currency) (float64, error) {
	lines, err := c.call(ctx, c.command("getOneRate", strconv.Itoa(int(from)), strconv.Itoa(int(to))), 1)
	if err != nil {
		return 0, fmt.Errorf("getOneRate %d %d: %w", from, to, err)
	}
	return valueAt(lines[0], oneRateCol)
}

// Exchange sends a single exchange request. Amounts go out truncated to 6 decimals.
func (c *Client) Exchange(ctx context.Context, from graph.Currency, amount float64, to graph.Currency) (float64, error) {
	cmd := c.command("exchange", strconv.Itoa(int(from)), FormatAmount(amount), strconv.Itoa(int(to)))
	lines, err := c.call(ctx, cmd, exchangeLines)
	if err != nil {
		return 0, fmt.Errorf("exchange %d->%d: %w", from, to, err)
	}
	got, err := valueAt(lines[exchangeLines-1], exchangeCol)
	if err != nil {
		return 0, fmt.Errorf("exchange %d->%d reply: %w", from, to, err)
	}
	return got, nil
}

// SaveMe asks the venue to reset the account.
func (c *Client) SaveMe(ctx context.Context) (string, error) {
	lines, err := c.call(ctx, c.command("saveMe"), 1)
	if err != nil {
		return "", fmt.Errorf("saveMe: %w", err)
	}
	return lines[0], nil
}

// Close says DONE and drops the connection. It is safe to call on a closed client.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	_, err := c.roundTrip(ctx, "DONE", 1)
	cerr := c.conn.Close()
	c.conn, c.r = nil, nil
	if err != nil {
		return fmt.Errorf("DONE: %w", err)
	}
	if cerr != nil {
		return fmt.Errorf("close: %v: %w", cerr, common.ErrTransport)
	}
	return nil
}

func (c *Client) command(name string, args ...string) string {
	parts := append([]string{c.cfg.User, c.cfg.Password, name}, args...)
	return strings.Join(parts, " ")
}

func (c *Client) call(ctx context.Context, cmd string, lines int) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roundTrip(ctx, cmd, lines)
}

func (c *Client) roundTrip(ctx context.Context, cmd string, lines int) ([]string, error) {
	if c.conn == nil {
		return nil, fmt.Errorf("not connected: %w", common.ErrTransport)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.setDeadline(ctx)
	if _, err := c.conn.Write([]byte(cmd + "\n")); err != nil {
		return nil, fmt.Errorf("write: %v: %w", err, common.ErrTransport)
	}
	return c.receive(ctx, lines)
}

func (c *Client) receive(ctx context.Context, n int) ([]string, error) {
	c.setDeadline(ctx)
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		line, err := c.r.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("read line %d/%d: %v: %w", i+1, n, err, common.ErrTransport)
		}
		out = append(out, strings.TrimRight(line, "\r\n"))
	}
	return out, nil
}

func (c *Client) setDeadline(ctx context.Context) {
	var deadline time.Time
	if c.cfg.RequestTimeout > 0 {
		deadline = time.Now().Add(c.cfg.RequestTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	_ = c.conn.SetDeadline(deadline)
}

// FormatAmount renders a as the venue expects: truncated, never rounded, to 6 decimals.
func FormatAmount(a float64) string {
	return decimal.NewFromFloat(a).Truncate(6).StringFixed(6)
}

func valueAt(line string, col int) (float64, error) {
	vals, err := valuesFrom(line, col)
	if err != nil {
		return 0, err
	}
	if len(vals) == 0 {
		return 0, fmt.Errorf("no value after column %d in %q: %w", col, line, common.ErrProtocol)
	}
	return vals[0], nil
}

func valuesFrom(line string, col int) ([]float64, error) {
	if len(line) < col {
		return nil, fmt.Errorf("reply %q shorter than %d columns: %w", line, col, common.ErrProtocol)
	}
	return parseValues(line[col:])
}

func parseValues(s string) ([]float64, error) {
	fields := strings.Fields(s)
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("value %q: %w", f, common.ErrProtocol)
		}
		out[i] = v
	}
	return out, nil
}
