// The analytics service tails the economy event stream and writes playback
// and ledger measurements to InfluxDB for dashboards. It is read-only with
// respect to the economy itself.
package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/timelinkhq/tlcore/pkg/messaging"
)

type Config struct {
	NATSUrl      string
	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string
}

func loadConfig() *Config {
	return &Config{
		NATSUrl:      getEnv("NATS_URL", "nats://localhost:4222"),
		InfluxURL:    getEnv("INFLUX_URL", "http://localhost:8086"),
		InfluxToken:  getEnv("INFLUX_TOKEN", ""),
		InfluxOrg:    getEnv("INFLUX_ORG", "timelink"),
		InfluxBucket: getEnv("INFLUX_BUCKET", "economy"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

type collector struct {
	writer api.WriteAPIBlocking
	log    *logrus.Entry
}

func main() {
	cfg := loadConfig()

	logrus.SetFormatter(&logrus.JSONFormatter{})
	log := logrus.WithField("service", "analytics")

	influx := influxdb2.NewClient(cfg.InfluxURL, cfg.InfluxToken)
	defer influx.Close()

	col := &collector{
		writer: influx.WriteAPIBlocking(cfg.InfluxOrg, cfg.InfluxBucket),
		log:    log,
	}

	msgClient, err := messaging.NewClient(messaging.Config{
		URL:            cfg.NATSUrl,
		Name:           "tl-analytics",
		ReconnectWait:  time.Second,
		MaxReconnects:  60,
		ConnectTimeout: 10 * time.Second,
	})
	if err != nil {
		log.WithError(err).Fatal("NATS connection failed")
	}
	defer msgClient.Close()

	subs := map[string]func(*nats.Msg){
		messaging.SubjectPlaybackProcessed: col.onPlayback,
		messaging.SubjectLedgerEntry:       col.onLedgerEntry,
		messaging.SubjectReputationChanged: col.onReputation,
	}
	for subject, handler := range subs {
		if err := msgClient.QueueSubscribe(subject, "analytics", handler); err != nil {
			log.WithError(err).WithField("subject", subject).Fatal("subscription failed")
		}
	}

	log.Info("analytics collector running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	msgClient.Drain()
}

func (c *collector) onPlayback(m *nats.Msg) {
	var ev messaging.PlaybackEvent
	if err := json.Unmarshal(m.Data, &ev); err != nil {
		c.log.WithError(err).Warn("malformed playback event")
		return
	}

	point := write.NewPoint("playback",
		map[string]string{
			"escrow_id": ev.EscrowID.String(),
			"boost":     strconv.FormatBool(ev.BoostMode),
		},
		map[string]interface{}{
			"deducted":         parseFloat(ev.Deducted),
			"revenue_credited": parseFloat(ev.RevenueCredited),
			"duration_seconds": ev.DurationSeconds,
		},
		ev.CreatedAt)
	c.write(point)
}

func (c *collector) onLedgerEntry(m *nats.Msg) {
	var ev messaging.LedgerEntryEvent
	if err := json.Unmarshal(m.Data, &ev); err != nil {
		c.log.WithError(err).Warn("malformed ledger event")
		return
	}

	point := write.NewPoint("ledger_entry",
		map[string]string{"kind": ev.Kind},
		map[string]interface{}{
			"amount":        parseFloat(ev.Amount),
			"balance_after": parseFloat(ev.BalanceAfter),
		},
		ev.CreatedAt)
	c.write(point)
}

func (c *collector) onReputation(m *nats.Msg) {
	var ev messaging.ReputationEvent
	if err := json.Unmarshal(m.Data, &ev); err != nil {
		c.log.WithError(err).Warn("malformed reputation event")
		return
	}

	point := write.NewPoint("reputation",
		map[string]string{"reason": ev.Reason},
		map[string]interface{}{
			"delta":       parseFloat(ev.Delta),
			"index_after": parseFloat(ev.IndexAfter),
		},
		ev.CreatedAt)
	c.write(point)
}

func (c *collector) write(point *write.Point) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.writer.WritePoint(ctx, point); err != nil {
		c.log.WithError(err).Warn("influx write failed")
	}
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
