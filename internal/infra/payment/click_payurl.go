package payment

import (
	"net/url"
	"strconv"

	"balans-ai/internal/domain/ports/adapter"
)

var _ adapter.PayURLBuilder = (*ClickPayURL)(nil)

const defaultClickPayURL = "https://my.click.uz/services/pay"

// ClickPayURL renders the hosted Click checkout link. The merchant transaction
// id travels as transaction_param and comes back in merchant_trans_id.
type ClickPayURL struct {
	base       string
	serviceID  string
	merchantID string
	returnURL  string
}

func NewClickPayURL(base, serviceID, merchantID, returnURL string) *ClickPayURL {
	if base == "" {
		base = defaultClickPayURL
	}
	return &ClickPayURL{base: base, serviceID: serviceID, merchantID: merchantID, returnURL: returnURL}
}

func (c *ClickPayURL) PayURL(merchantTransID string, amount int64) string {
	q := url.Values{}
	q.Set("service_id", c.serviceID)
	q.Set("merchant_id", c.merchantID)
	q.Set("amount", strconv.FormatInt(amount, 10))
	q.Set("transaction_param", merchantTransID)
	if c.returnURL != "" {
		q.Set("return_url", c.returnURL)
	}
	return c.base + "?" + q.Encode()
}
