package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/nursery/internal/domain"
	"github.com/vladislavdragonenkov/nursery/internal/metrics"
	"github.com/vladislavdragonenkov/nursery/internal/service/inventory"
)

// Deduper — быстрый фильтр повторных доставок вебхука. Рекомендательный:
// корректность подтверждения держится на маркерах инвентаря, а не на нём.
type Deduper interface {
	// Seen отмечает ключ и сообщает, встречался ли он раньше.
	Seen(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Gateway подтверждает оплату online-заказов. Оба пути — вебхук провайдера и
// локальная имитация — сходятся в одном идемпотентном применении инвентаря.
type Gateway struct {
	orders      domain.OrderRepository
	engine      *inventory.Engine
	secret      []byte
	environment string
	dedup       Deduper
	logger      *log.Entry
	metrics     *metrics.OrderMetrics
}

// GatewayConfig — зависимости и настройки шлюза подтверждения.
type GatewayConfig struct {
	Orders      domain.OrderRepository
	Engine      *inventory.Engine
	Secret      []byte
	Environment string
	Dedup       Deduper
	Logger      *log.Entry
	Metrics     *metrics.OrderMetrics
}

// NewGateway создаёт шлюз подтверждения оплаты. Dedup и Metrics опциональны.
func NewGateway(cfg GatewayConfig) *Gateway {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New().WithField("component", "payment_gateway")
	}
	return &Gateway{
		orders:      cfg.Orders,
		engine:      cfg.Engine,
		secret:      cfg.Secret,
		environment: cfg.Environment,
		dedup:       cfg.Dedup,
		logger:      logger,
		metrics:     cfg.Metrics,
	}
}

// dedupTTL — горизонт хранения ключей повторных доставок.
const dedupTTL = 24 * time.Hour

// webhookEvent — формат уведомления провайдера об оплате ссылки.
type webhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				PaymentLinkID string `json:"payment_link_id"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// HandleWebhook обрабатывает уведомление платёжного провайдера. Подпись —
// hex(HMAC-SHA256) от сырого тела; проверяется до разбора JSON. eventID
// используется только для рекомендательной дедупликации и может быть пустым.
func (g *Gateway) HandleWebhook(ctx context.Context, rawBody []byte, signature, eventID string) (domain.WebhookOutcome, error) {
	if !g.verifySignature(rawBody, signature) {
		g.logger.Warn("webhook signature mismatch")
		return "", domain.ErrInvalidSignature
	}

	var event webhookEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		g.logger.WithError(err).Warn("webhook payload malformed")
		return "", domain.ErrInvalidSignature
	}
	if event.Event != "payment_link.paid" {
		g.logger.WithField("event", event.Event).Debug("webhook event ignored")
		return g.outcome(domain.WebhookOutcomeIgnored), nil
	}

	if eventID != "" && g.dedup != nil {
		seen, err := g.dedup.Seen(ctx, "dedup:webhook:"+eventID, dedupTTL)
		if err != nil {
			// Недоступный dedup не роняет подтверждение: идемпотентность
			// гарантируют маркеры инвентаря.
			g.logger.WithError(err).Warn("webhook dedup unavailable")
		} else if seen {
			return g.outcome(domain.WebhookOutcomeAlreadyHandled), nil
		}
	}

	return g.confirm(ctx, event.Payload.Payment.Entity.PaymentLinkID)
}

// ConfirmSimulated подтверждает оплату по локальной платёжной ссылке.
// Доступно только вне продакшена.
func (g *Gateway) ConfirmSimulated(ctx context.Context, linkID, token string) (domain.WebhookOutcome, error) {
	if g.isProduction() {
		return "", domain.ErrForbidden
	}

	expected := SignLinkToken(g.secret, linkID)
	if !hmac.Equal([]byte(expected), []byte(token)) {
		g.logger.WithField("link_id", linkID).Warn("simulated confirm token mismatch")
		return "", domain.ErrInvalidSignature
	}

	return g.confirm(ctx, linkID)
}

// confirm — общий идемпотентный путь подтверждения: находит заказ по
// платёжной ссылке и применяет инвентарь с отменой при нехватке остатка.
func (g *Gateway) confirm(ctx context.Context, linkID string) (domain.WebhookOutcome, error) {
	order, err := g.orders.GetByPaymentRef(linkID)
	if err != nil {
		return "", err
	}

	result, err := g.engine.Apply(ctx, order.ID, inventory.ApplyOptions{
		CancelOnShortfall: true,
		TargetStatus:      domain.OrderStatusPaid,
	})
	if err != nil {
		return "", err
	}

	entry := g.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"link_id":  linkID,
	})
	switch result.Outcome {
	case inventory.OutcomeApplied:
		entry.Info("payment confirmed")
		return g.outcome(domain.WebhookOutcomeConfirmed), nil
	case inventory.OutcomeAlreadyApplied:
		entry.Info("payment already handled")
		return g.outcome(domain.WebhookOutcomeAlreadyHandled), nil
	case inventory.OutcomeCancelled:
		entry.Warn("order cancelled on confirmation shortfall")
		return g.outcome(domain.WebhookOutcomeCancelled), nil
	case inventory.OutcomeNotApplied:
		// Заказ уже отменён: подтверждение квитируется без изменений.
		entry.Warn("confirmation for cancelled order ignored")
		return g.outcome(domain.WebhookOutcomeIgnored), nil
	default:
		entry.WithField("outcome", result.Outcome).Error("unexpected apply outcome")
		return g.outcome(domain.WebhookOutcomeIgnored), nil
	}
}

// isProduction нормализует окружение так же, как app.Config.IsProduction:
// "Production" и " PRODUCTION " закрывают имитацию наравне с "production".
func (g *Gateway) isProduction() bool {
	return strings.EqualFold(strings.TrimSpace(g.environment), "production")
}

func (g *Gateway) verifySignature(rawBody []byte, signature string) bool {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (g *Gateway) outcome(o domain.WebhookOutcome) domain.WebhookOutcome {
	if g.metrics != nil {
		g.metrics.RecordWebhookOutcome(string(o))
	}
	return o
}
