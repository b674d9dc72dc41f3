package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/dealscout/internal/listing"
)

type createListingRequest struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	AskingPrice float64  `json:"asking_price"`
	Condition   string   `json:"condition"`
	Extras      []string `json:"extras"`
	SellerID    string   `json:"seller_id"`
	Location    string   `json:"location"`
}

type parseRequest struct {
	Query string `json:"query"`
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handlers) parseQuery(c *gin.Context) {
	var req parseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, listing.ParseQuery(req.Query))
}

func (h *handlers) listListings(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	if q := c.Query("q"); q != "" {
		f := listing.ParseQuery(q).Filters(limit)
		f.Condition = c.Query("condition")
		f.Category = c.Query("category")
		rows, err := listing.Search(h.svc.DB, f)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, rows)
		return
	}
	rows, err := listing.List(h.svc.DB, listing.ListFilters{
		Status:   c.Query("status"),
		Category: c.Query("category"),
		SellerID: c.Query("seller_id"),
		Limit:    limit,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *handlers) createListing(c *gin.Context) {
	var req createListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	l, err := listing.Create(h.svc.DB, listing.CreateOpts{
		ID:          req.ID,
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		AskingPrice: req.AskingPrice,
		Condition:   req.Condition,
		Extras:      req.Extras,
		SellerID:    req.SellerID,
		Location:    req.Location,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, l)
}

func (h *handlers) getListing(c *gin.Context) {
	l, err := listing.Get(h.svc.DB, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}
