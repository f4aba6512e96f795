package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ulaundry/laundry-api/internal/handler/dto"
	"github.com/ulaundry/laundry-api/internal/service"
)

// LaundryItemHandler serves the catalog.
type LaundryItemHandler struct {
	itemService *service.LaundryItemService
}

func NewLaundryItemHandler(itemService *service.LaundryItemService) *LaundryItemHandler {
	return &LaundryItemHandler{itemService: itemService}
}

func (h *LaundryItemHandler) ListActive(c *gin.Context) {
	items, err := h.itemService.ListActive(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *LaundryItemHandler) ListAll(c *gin.Context) {
	items, err := h.itemService.ListAll(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *LaundryItemHandler) Get(c *gin.Context) {
	item, err := h.itemService.Get(c.Request.Context(), c.GetUint("item_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": item})
}

func (h *LaundryItemHandler) Create(c *gin.Context) {
	var req dto.CreateItemRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "Invalid request data")
		return
	}
	image, closeImage, err := formUpload(c, "image")
	if err != nil {
		handleError(c, err)
		return
	}
	defer closeImage()

	item, err := h.itemService.Create(c.Request.Context(), service.CreateItemInput{
		Title:               req.Title,
		PricePerUnit:        req.PricePerUnit,
		MaxQuantityPerOrder: req.MaxQuantityPerOrder,
		Category:            req.Category,
		Description:         req.Description,
		IsActive:            req.IsActive,
		Image:               image,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"item": item, "message": "Laundry item created successfully"})
}

func (h *LaundryItemHandler) Update(c *gin.Context) {
	var req dto.UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request data")
		return
	}
	item, err := h.itemService.Update(c.Request.Context(), c.GetUint("item_id"), service.UpdateItemInput{
		Title:               req.Title,
		PricePerUnit:        req.PricePerUnit,
		MaxQuantityPerOrder: req.MaxQuantityPerOrder,
		Category:            req.Category,
		Description:         req.Description,
		IsActive:            req.IsActive,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": item, "message": "Laundry item updated successfully"})
}

func (h *LaundryItemHandler) UpdateImage(c *gin.Context) {
	image, closeImage, err := formUpload(c, "image")
	if err != nil {
		handleError(c, err)
		return
	}
	defer closeImage()
	if image == nil {
		badRequest(c, "Image file is missing")
		return
	}
	item, err := h.itemService.UpdateImage(c.Request.Context(), c.GetUint("item_id"), *image)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": item, "message": "Image updated successfully"})
}

func (h *LaundryItemHandler) Delete(c *gin.Context) {
	if err := h.itemService.Delete(c.Request.Context(), c.GetUint("item_id")); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Laundry item deleted successfully"})
}
