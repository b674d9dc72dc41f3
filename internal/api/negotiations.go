package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/zulandar/dealscout/internal/ledger"
	"github.com/zulandar/dealscout/internal/listing"
	"github.com/zulandar/dealscout/internal/negotiation"
	"github.com/zulandar/dealscout/internal/scout"
)

type negotiationRequest struct {
	ListingIDs  []string `json:"listing_ids"`
	BuyerBudget *float64 `json:"buyer_budget"`
}

func (h *handlers) startNegotiations(c *gin.Context) {
	var req negotiationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	if len(req.ListingIDs) == 0 {
		badRequest(c, "listing_ids required")
		return
	}

	ctx := c.Request.Context()
	if len(req.ListingIDs) == 1 {
		out, err := h.svc.Negotiate(ctx, req.ListingIDs[0], req.BuyerBudget, nil)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, []scout.Outcome{*out})
		return
	}
	outs, err := h.svc.NegotiateMany(ctx, req.ListingIDs, req.BuyerBudget, nil)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, outs)
}

// streamNegotiation runs the first requested negotiation, streaming each
// transcript message as it is produced.
func (h *handlers) streamNegotiation(c *gin.Context) {
	var req negotiationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	if len(req.ListingIDs) == 0 {
		badRequest(c, "listing_ids required")
		return
	}
	id := req.ListingIDs[0]
	if _, err := listing.Get(h.svc.DB, id); err != nil {
		h.fail(c, err)
		return
	}

	startSSE(c)
	sendSSE(c, "connected", gin.H{"stream_id": uuid.NewString(), "listing_id": id})

	out, err := h.svc.Negotiate(c.Request.Context(), id, req.BuyerBudget, func(m negotiation.Message) {
		sendSSE(c, "message", m)
	})
	if err != nil {
		sendSSE(c, "error", gin.H{"message": err.Error()})
		return
	}
	sendSSE(c, "result", gin.H{"id": out.ID, "result": out.Result})
	sendSSE(c, "complete", gin.H{"type": "complete"})
}

func (h *handlers) listNegotiations(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	rows, err := ledger.List(h.svc.DB, ledger.ListFilters{
		ListingID: c.Query("listing_id"),
		Status:    c.Query("status"),
		HuntID:    c.Query("hunt_id"),
		WatchName: c.Query("watch"),
		Limit:     limit,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *handlers) getNegotiation(c *gin.Context) {
	n, err := ledger.Get(h.svc.DB, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":      n.ID,
		"hunt_id": n.HuntID,
		"listing": n.Listing,
		"result":  ledger.ToResult(*n),
	})
}
