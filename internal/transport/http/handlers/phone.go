package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/i18n"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/numbering"
)

// PhoneHandler serves the country picker and phone normalization.
type PhoneHandler struct {
	plan       *numbering.Plan
	defaultISO string
	respond    *Responder
}

// NewPhoneHandler constructs PhoneHandler.
func NewPhoneHandler(plan *numbering.Plan, defaultISO string, respond *Responder) *PhoneHandler {
	if defaultISO == "" {
		defaultISO = "CD"
	}
	return &PhoneHandler{plan: plan, defaultISO: defaultISO, respond: respond}
}

// RegisterRoutes binds phone routes.
func (h *PhoneHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/countries", h.Countries)
	r.POST("/phone/normalize", h.Normalize)
}

// Countries lists the supported countries in picker order.
func (h *PhoneHandler) Countries(c *gin.Context) {
	countries := h.plan.Countries()
	out := make([]CountryPayload, 0, len(countries))
	for _, country := range countries {
		out = append(out, CountryPayload{
			ISO:              country.ISO,
			Name:             country.Name,
			DialCode:         country.DialCode,
			Flag:             country.Flag,
			SubscriberLength: country.SubscriberLength,
		})
	}
	c.Header("Cache-Control", "public, max-age=3600")
	c.JSON(http.StatusOK, CountryListResponse{Version: h.plan.Version(), Countries: out})
}

// Normalize returns the canonical form of a number and whether it is valid.
// An invalid number is still a 200; only an unsupported country is rejected.
func (h *PhoneHandler) Normalize(c *gin.Context) {
	var req PhoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respond.Fail(c, http.StatusBadRequest, i18n.KeyInvalidPayload)
		return
	}

	iso := strings.ToUpper(strings.TrimSpace(req.CountryISO))
	if iso == "" {
		iso = h.defaultISO
	}
	details, err := h.plan.Parse(req.Phone, iso)
	if errors.Is(err, domain.ErrUnsupportedCountry) {
		h.respond.Fail(c, http.StatusBadRequest, i18n.KeyUnsupportedCountry)
		return
	}

	resp := PhoneNormalizeResponse{Phone: newPhonePayload(details), Valid: err == nil}
	if err != nil {
		resp.Code = phoneErrorCode(err)
		resp.Error = h.respond.Text(c, resp.Code)
	}
	c.JSON(http.StatusOK, resp)
}

func phoneErrorCode(err error) string {
	if errors.Is(err, domain.ErrUnknownCarrier) {
		return i18n.KeyUnknownCarrier
	}
	return i18n.KeyInvalidPhone
}
