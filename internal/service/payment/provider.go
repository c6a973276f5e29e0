package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/nursery/internal/domain"
)

// FakeProvider — локальная имитация платёжного провайдера для dev/test
// окружений. Ссылка ведёт на встроенную страницу оплаты, а токен в ней —
// HMAC от идентификатора ссылки, поэтому подтвердить оплату может только тот,
// кто получил ссылку от нас.
// NOTE: продакшен-окружение подключает внешнего провайдера вместо имитации;
// ConfirmSimulated в продакшене выключен.
type FakeProvider struct {
	secret  []byte
	baseURL string
	logger  *log.Entry
}

// NewFakeProvider создаёт имитацию провайдера. baseURL — внешний адрес
// сервиса, на котором живёт страница оплаты.
func NewFakeProvider(secret []byte, baseURL string, logger *log.Entry) *FakeProvider {
	if logger == nil {
		logger = log.New().WithField("component", "payment_provider")
	}
	return &FakeProvider{secret: secret, baseURL: baseURL, logger: logger}
}

// CreateLink выдаёт платёжную ссылку под заказ.
func (p *FakeProvider) CreateLink(ctx context.Context, req domain.CreateLinkRequest) (domain.PaymentLink, error) {
	if err := ctx.Err(); err != nil {
		return domain.PaymentLink{}, err
	}

	linkID := "plink_" + uuid.NewString()
	token := SignLinkToken(p.secret, linkID)

	q := url.Values{}
	q.Set("pl", linkID)
	q.Set("token", token)

	link := domain.PaymentLink{
		ID:          linkID,
		RedirectURL: fmt.Sprintf("%s/fake-pay.html?%s", p.baseURL, q.Encode()),
		CreatedAt:   time.Now().UTC(),
	}
	p.logger.WithFields(log.Fields{
		"order_id": req.OrderID,
		"link_id":  linkID,
		"amount":   req.AmountMinor,
	}).Info("payment link created")
	return link, nil
}

// SignLinkToken считает токен подтверждения для платёжной ссылки:
// hex(HMAC-SHA256(secret, linkID)).
func SignLinkToken(secret []byte, linkID string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(linkID))
	return hex.EncodeToString(mac.Sum(nil))
}

var _ domain.PaymentProvider = (*FakeProvider)(nil)
