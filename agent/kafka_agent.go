package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"wifi-survey/core"
)

// SurveyRequest : message reçu sur le topic des demandes de mesure.
// Action vaut "start" (défaut) ou "stop".
type SurveyRequest struct {
	Action   string        `json:"action,omitempty"`
	Settings core.Settings `json:"settings"`
}

// SurveyResultMessage : message publié pour chaque point terminé.
type SurveyResultMessage struct {
	Settings  core.Settings     `json:"settings"`
	Result    core.SurveyResult `json:"result"`
	Timestamp time.Time         `json:"timestamp"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publie les résultats terminés ; c'est un ResultSink.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
		topic: topic,
	}
}

// SaveSurveyResult envoie le résultat, avec le BSSID mesuré comme clé.
func (p *KafkaPublisher) SaveSurveyResult(ctx context.Context, settings core.Settings, result core.SurveyResult) error {
	data, err := json.Marshal(SurveyResultMessage{Settings: settings, Result: result, Timestamp: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encodage JSON du résultat : %w", err)
	}

	msg := kafka.Message{Value: data}
	if result.Results != nil && result.Results.WifiData != nil {
		msg.Key = []byte(result.Results.WifiData.BSSID)
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("envoi Kafka sur %s : %w", p.topic, err)
	}
	core.Log.Infof("kafka", "📤 résultat publié sur %s", p.topic)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// RequestHandler traite un message de demande de mesure.
type RequestHandler func(ctx context.Context, msg kafka.Message) error

// HandleSurveyRequests décode les demandes et pilote le contrôleur.
// Les champs absents sont complétés par la config.
func HandleSurveyRequests(c *Controller, cfg Config) RequestHandler {
	return func(_ context.Context, msg kafka.Message) error {
		var req SurveyRequest
		if err := json.Unmarshal(msg.Value, &req); err != nil {
			return fmt.Errorf("décodage JSON de la demande : %w", err)
		}

		switch req.Action {
		case "", "start":
			settings := cfg.WithDefaults(req.Settings)
			core.Log.Infof("kafka", "✅ demande de mesure reçue : %+v", settings)
			return c.Start(settings)
		case "stop":
			c.Stop()
			return nil
		default:
			return fmt.Errorf("action inconnue %q", req.Action)
		}
	}
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// ListenForSurveyRequests lit le topic des demandes jusqu'à l'annulation de ctx.
// Une demande invalide ou refusée (mesure déjà en cours) est journalisée puis ignorée.
func ListenForSurveyRequests(ctx context.Context, cfg Config, handle RequestHandler) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.TestRequestTopic,
		GroupID: cfg.Kafka.GroupID,
	})
	consumeRequests(ctx, reader, handle, 2*time.Second)
}

func consumeRequests(ctx context.Context, reader messageReader, handle RequestHandler, backoff time.Duration) {
	defer reader.Close()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				core.Log.Infof("kafka", "⚠️ écoute Kafka arrêtée")
				return
			}
			core.Log.Errorf("kafka", "lecture Kafka : %v", err)
			sleepCtx(ctx, backoff)
			continue
		}

		if err := handle(ctx, msg); err != nil {
			if errors.Is(err, ErrRunInProgress) {
				core.Log.Warnf("kafka", "demande ignorée : %v", err)
				continue
			}
			core.Log.Errorf("kafka", "demande offset %d ignorée : %v", msg.Offset, err)
		}
	}
}
