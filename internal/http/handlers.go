package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sqmu-io/sqmu-dapp/internal/apperr"
	"github.com/sqmu-io/sqmu-dapp/internal/orchestrator"
	"github.com/sqmu-io/sqmu-dapp/internal/wallet"
	"github.com/sqmu-io/sqmu-dapp/internal/widgetconfig"
	"github.com/sqmu-io/sqmu-dapp/internal/widgets"
)

type Handler struct {
	widgets *widgets.Manager
	origins map[string]struct{}
}

func NewHandler(manager *widgets.Manager, allowedOrigins []string) *Handler {
	return &Handler{
		widgets: manager,
		origins: originSet(allowedOrigins),
	}
}

// widgetView is what the host page needs to render a mount point.
type widgetView struct {
	ID      string                `json:"id"`
	Config  widgetconfig.Resolved `json:"config"`
	Session wallet.Snapshot       `json:"session"`
	Status  widgets.Status        `json:"status"`
}

func viewOf(w *widgets.Instance) widgetView {
	return widgetView{
		ID:      w.ID,
		Config:  w.Config,
		Session: w.Session().Snapshot(),
		Status:  w.Status(),
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// widget resolves :id, answering 404 itself when there is no such widget.
func (h *Handler) widget(c *gin.Context) (*widgets.Instance, bool) {
	w, ok := h.widgets.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, envelope{Error: "not_found", Detail: "unknown widget " + c.Param("id")})
		return nil, false
	}
	return w, true
}

// bind decodes a JSON action body. Validation of the values is left to the flows.
func bind(c *gin.Context, action string, out any) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		writeErr(c, action, apperr.Invalid("body", err.Error()))
		return false
	}
	return true
}

// GET /widgets
func (h *Handler) ListWidgets(c *gin.Context) {
	all := h.widgets.List()
	out := make([]widgetView, 0, len(all))
	for _, w := range all {
		out = append(out, viewOf(w))
	}
	writeOK(c, "", out)
}

// GET /widgets/:id
func (h *Handler) GetWidget(c *gin.Context) {
	w, ok := h.widget(c)
	if !ok {
		return
	}
	v := viewOf(w)
	writeOK(c, v.Status.Message, v)
}

// POST /widgets/:id/connect
func (h *Handler) Connect(c *gin.Context) {
	w, ok := h.widget(c)
	if !ok {
		return
	}
	snap, err := w.Connect(c.Request.Context())
	if err != nil {
		writeErr(c, "Connect", err)
		return
	}
	writeOK(c, w.Status().Message, snap)
}

// POST /widgets/:id/disconnect
func (h *Handler) Disconnect(c *gin.Context) {
	w, ok := h.widget(c)
	if !ok {
		return
	}
	snap := w.Disconnect(c.Request.Context())
	writeOK(c, w.Status().Message, snap)
}

// POST /widgets/:id/chain
func (h *Handler) SwitchChain(c *gin.Context) {
	w, ok := h.widget(c)
	if !ok {
		return
	}
	snap, err := w.SwitchChain(c.Request.Context())
	if err != nil {
		writeErr(c, "Switch network", err)
		return
	}
	writeOK(c, w.Status().Message, snap)
}

// GET /widgets/:id/property?code=
func (h *Handler) Property(c *gin.Context) {
	w, ok := h.widget(c)
	if !ok {
		return
	}
	v, err := w.Property(c.Request.Context(), c.Query("code"))
	if err != nil {
		writeErr(c, "Load property", err)
		return
	}
	writeOK(c, "", v)
}

// GET /widgets/:id/payment-tokens
func (h *Handler) PaymentTokens(c *gin.Context) {
	w, ok := h.widget(c)
	if !ok {
		return
	}
	v, err := w.PaymentTokens(c.Request.Context())
	if err != nil {
		writeErr(c, "Load payment tokens", err)
		return
	}
	writeOK(c, "", v)
}

// POST /widgets/:id/buy
func (h *Handler) Buy(c *gin.Context) {
	w, ok := h.widget(c)
	if !ok {
		return
	}
	var req orchestrator.BuyRequest
	if !bind(c, "Purchase", &req) {
		return
	}
	res, err := w.Buy(c.Request.Context(), req)
	if err != nil {
		writeErr(c, "Purchase", err)
		return
	}
	writeOK(c, w.Status().Message, res)
}

// GET /widgets/:id/portfolio
func (h *Handler) Portfolio(c *gin.Context) {
	w, ok := h.widget(c)
	if !ok {
		return
	}
	v, err := w.Portfolio(c.Request.Context())
	if err != nil {
		writeErr(c, "Load portfolio", err)
		return
	}
	writeOK(c, "", v)
}

// GET /widgets/:id/listings
func (h *Handler) Listings(c *gin.Context) {
	w, ok := h.widget(c)
	if !ok {
		return
	}
	v, err := w.Listings(c.Request.Context())
	if err != nil {
		writeErr(c, "Load listings", err)
		return
	}
	writeOK(c, "", v)
}

// POST /widgets/:id/sell
func (h *Handler) Sell(c *gin.Context) {
	w, ok := h.widget(c)
	if !ok {
		return
	}
	var req orchestrator.SellRequest
	if !bind(c, "Sell", &req) {
		return
	}
	res, err := w.Sell(c.Request.Context(), req)
	if err != nil {
		writeErr(c, "Sell", err)
		return
	}
	writeOK(c, w.Status().Message, res)
}

// POST /widgets/:id/listings/buy
func (h *Handler) BuyListing(c *gin.Context) {
	w, ok := h.widget(c)
	if !ok {
		return
	}
	var req orchestrator.BuyListingRequest
	if !bind(c, "Buy", &req) {
		return
	}
	res, err := w.BuyListing(c.Request.Context(), req)
	if err != nil {
		writeErr(c, "Buy", err)
		return
	}
	writeOK(c, w.Status().Message, res)
}
