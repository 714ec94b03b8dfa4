package web

import (
	"fmt"
	"strings"

	"webshop-payments/internal/domain/model"
	"webshop-payments/internal/domain/ports/adapter"
)

var _ adapter.CallbackURLBuilder = CallbackURLs{}

// CallbackURLs builds the absolute return/abort/report URLs for one
// provider family, rooted at the payment's merchant host.
type CallbackURLs struct {
	family string
	secret string
}

func NewCallbackURLs(family, secret string) CallbackURLs {
	return CallbackURLs{family: family, secret: secret}
}

func (b CallbackURLs) base(p *model.Payment) string {
	prefix := p.Realm
	if !strings.Contains(prefix, "://") {
		prefix = "http://" + prefix
	}
	return strings.TrimRight(prefix, "/")
}

func (b CallbackURLs) ReturnURL(p *model.Payment) string {
	return fmt.Sprintf("%s/api/%s/%d/return/%s", b.base(p), b.family, p.ID, ReturnKey(b.secret, p.ID))
}

func (b CallbackURLs) AbortURL(p *model.Payment) string {
	return fmt.Sprintf("%s/api/%s/%d/abort", b.base(p), b.family, p.ID)
}

func (b CallbackURLs) ReportURL(p *model.Payment) string {
	return fmt.Sprintf("%s/api/%s/%d/report", b.base(p), b.family, p.ID)
}
