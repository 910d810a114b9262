package handlers

import (
	"net/http"

	"gigflow_backend/internal/services"
	"gigflow_backend/internal/services/dto"

	"github.com/gin-gonic/gin"
)

type BidHandler struct {
	*BaseHandler
	bidService services.BidService
}

func NewBidHandler(base *BaseHandler, bidService services.BidService) *BidHandler {
	return &BidHandler{
		BaseHandler: base,
		bidService:  bidService,
	}
}

func (h *BidHandler) RegisterRoutes(r *gin.RouterGroup) {
	bids := r.Group("/bids")
	{
		bids.POST("", h.SubmitBid)
		bids.GET("/my", h.GetMyBids)
		bids.GET("/:gigId", h.GetBidsForGig)
		bids.PATCH("/:bidId", h.UpdateBid)
		bids.DELETE("/:bidId", h.DeleteBid)
		bids.PATCH("/:bidId/hire", h.HireBid)
	}
}

func (h *BidHandler) SubmitBid(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.SubmitBidRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	bid, err := h.bidService.SubmitBid(c.Request.Context(), userID, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Bid submitted successfully", "bid": bid})
}

func (h *BidHandler) GetMyBids(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	bids, err := h.bidService.GetMyBids(c.Request.Context(), userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"bids": bids, "total": len(bids)})
}

func (h *BidHandler) GetBidsForGig(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	gigID, ok := h.RequireParam(c, "gigId")
	if !ok {
		return
	}

	resp, err := h.bidService.GetBidsForGig(c.Request.Context(), gigID, userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *BidHandler) UpdateBid(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	bidID, ok := h.RequireParam(c, "bidId")
	if !ok {
		return
	}

	var req dto.UpdateBidRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	bid, err := h.bidService.UpdateBid(c.Request.Context(), bidID, userID, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Bid updated successfully", "bid": bid})
}

func (h *BidHandler) DeleteBid(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	bidID, ok := h.RequireParam(c, "bidId")
	if !ok {
		return
	}

	if err := h.bidService.DeleteBid(c.Request.Context(), bidID, userID); err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Bid withdrawn successfully"})
}

func (h *BidHandler) HireBid(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	bidID, ok := h.RequireParam(c, "bidId")
	if !ok {
		return
	}

	resp, err := h.bidService.HireBid(c.Request.Context(), bidID, userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
