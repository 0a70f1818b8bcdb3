package emitter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/khaledhikmat/aicam-go/model"
	"github.com/khaledhikmat/aicam-go/service/config"
	"github.com/khaledhikmat/aicam-go/service/lgr"
	"golang.org/x/xerrors"
)

const queueSize = 8

type publishFunc func(topic string, qos byte, payload []byte) error

type mqttService struct {
	params  config.EmitterParameters
	client  mqtt.Client
	publish publishFunc

	queue chan *model.DetectionSet
	wg    sync.WaitGroup
	once  sync.Once
	canx  context.CancelFunc

	connected atomic.Bool
	published atomic.Uint64
	dropped   atomic.Uint64
	errors    atomic.Uint64
}

// NewMQTT connects to the configured broker and starts the publisher
// goroutine. Sets that arrive while the queue is full are dropped.
func NewMQTT(canxCtx context.Context, params config.EmitterParameters) (IService, error) {
	svc := &mqttService{params: params}

	broker := params.Broker
	if !strings.Contains(broker, "://") {
		broker = fmt.Sprintf("tcp://%s", broker)
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(params.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(_ mqtt.Client) {
		svc.connected.Store(true)
		lgr.Logger.Info("mqtt connection established",
			slog.String("broker", broker),
			slog.String("clientId", params.ClientID),
		)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		svc.connected.Store(false)
		lgr.Logger.Warn("mqtt connection lost, will auto-reconnect",
			slog.String("broker", broker),
			slog.Any("error", err),
		)
	}

	svc.client = mqtt.NewClient(opts)
	token := svc.client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return nil, xerrors.Errorf("mqtt connection to %s timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, xerrors.Errorf("mqtt connection failed: %w", err)
	}
	svc.connected.Store(true)

	svc.publish = func(topic string, qos byte, payload []byte) error {
		t := svc.client.Publish(topic, qos, false, payload)
		if !t.WaitTimeout(2 * time.Second) {
			return xerrors.New("publish timeout")
		}
		return t.Error()
	}

	svc.start(canxCtx)
	return svc, nil
}

func newWithPublisher(canxCtx context.Context, params config.EmitterParameters, publish publishFunc) *mqttService {
	svc := &mqttService{params: params, publish: publish}
	svc.connected.Store(true)
	svc.start(canxCtx)
	return svc
}

func (svc *mqttService) start(canxCtx context.Context) {
	ctx, cancel := context.WithCancel(canxCtx)
	svc.canx = cancel
	svc.queue = make(chan *model.DetectionSet, queueSize)

	svc.wg.Add(1)
	go func() {
		defer svc.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case set := <-svc.queue:
				svc.send(set)
			}
		}
	}()
}

func (svc *mqttService) send(set *model.DetectionSet) {
	payload, err := encode(svc.params.Format, newEvent(svc.params.ClientID, set))
	if err != nil {
		svc.errors.Add(1)
		lgr.Logger.Error("encoding detection set", slog.Any("error", err))
		return
	}

	if err := svc.publish(svc.params.Topic, svc.params.QoS, payload); err != nil {
		svc.errors.Add(1)
		lgr.Logger.Warn("publishing detection set",
			slog.String("topic", svc.params.Topic),
			slog.Any("error", err),
		)
		return
	}

	svc.published.Add(1)
	lgr.Logger.Debug("detection set published",
		slog.String("topic", svc.params.Topic),
		slog.Int("size", len(payload)),
	)
}

func (svc *mqttService) Emit(set *model.DetectionSet) {
	if set == nil {
		return
	}

	select {
	case svc.queue <- set:
	default:
		svc.dropped.Add(1)
	}
}

func (svc *mqttService) Stats() Stats {
	return Stats{
		Connected: svc.connected.Load(),
		Published: svc.published.Load(),
		Dropped:   svc.dropped.Load(),
		Errors:    svc.errors.Load(),
	}
}

func (svc *mqttService) Close() error {
	svc.once.Do(func() {
		svc.canx()
		svc.wg.Wait()
		if svc.client != nil && svc.client.IsConnected() {
			svc.client.Disconnect(250)
			lgr.Logger.Info("mqtt disconnected")
		}
		svc.connected.Store(false)
	})
	return nil
}
